package engine

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/nurpe/invoice-engine/internal/model"
)

type WorkItemInput struct {
	Name        string
	Description *string
	Quantity    decimal.Decimal
	Unit        string
	UnitPrice   decimal.Decimal
}

type NewInvoice struct {
	ID              uuid.UUID
	OrganizationID  uuid.UUID
	InvoiceNumber   string
	ClientReference string
	WorkItems       []WorkItemInput
	SupervisionFee  decimal.Decimal
	// Percentage is nil when the caller gave none; the default then applies.
	Percentage  *decimal.Decimal
	InvoiceDate time.Time
	DueDate     time.Time
	CreatedBy   uuid.UUID
}

type ManualStatusRequest struct {
	Status          model.InvoiceStatus
	PaidAmount      *decimal.Decimal
	Reason          string
	ActorID         uuid.UUID
	ExpectedVersion int
}

// Create finalizes a composed invoice. Every invoice starts Pending.
func Create(in NewInvoice, now time.Time) (*model.Invoice, error) {
	if len(in.WorkItems) == 0 {
		return nil, fail(ErrMissingRequiredField, "an invoice needs at least one work item")
	}
	if strings.TrimSpace(in.ClientReference) == "" {
		return nil, fail(ErrMissingRequiredField, "client reference is required")
	}
	if in.DueDate.IsZero() {
		return nil, fail(ErrMissingRequiredField, "due date is required")
	}
	if in.SupervisionFee.IsNegative() {
		return nil, fail(ErrInvalidAmount, "supervision fee cannot be negative")
	}
	if in.Percentage != nil {
		if in.Percentage.IsNegative() {
			return nil, fail(ErrInvalidAmount, "general conditions percentage cannot be negative")
		}
		if !in.Percentage.LessThan(maxPercentage) || !fitsScale(*in.Percentage, inputPlaces) {
			return nil, fail(ErrInvalidAmount, "general conditions percentage %s must be below %s with at most %d decimals", in.Percentage.String(), maxPercentage.String(), inputPlaces)
		}
	}
	if !in.SupervisionFee.LessThan(maxMoneyValue) {
		return nil, fail(ErrInvalidAmount, "supervision fee %s is too large", in.SupervisionFee.String())
	}

	items := make([]model.WorkItem, 0, len(in.WorkItems))
	for i, w := range in.WorkItems {
		if strings.TrimSpace(w.Name) == "" {
			return nil, fail(ErrMissingRequiredField, "work item %d has no name", i+1)
		}
		if w.Quantity.IsNegative() {
			return nil, fail(ErrInvalidAmount, "work item %q has a negative quantity", w.Name)
		}
		if w.UnitPrice.IsNegative() {
			return nil, fail(ErrInvalidAmount, "work item %q has a negative unit price", w.Name)
		}
		if !fitsScale(w.Quantity, inputPlaces) || !fitsScale(w.UnitPrice, inputPlaces) {
			return nil, fail(ErrInvalidAmount, "work item %q: quantity and unit price allow at most %d decimals", w.Name, inputPlaces)
		}
		if !w.Quantity.LessThan(maxInputValue) || !w.UnitPrice.LessThan(maxInputValue) {
			return nil, fail(ErrInvalidAmount, "work item %q: quantity and unit price must be below %s", w.Name, maxInputValue.String())
		}
		items = append(items, model.WorkItem{
			ID:          uuid.New(),
			Position:    i,
			Name:        strings.TrimSpace(w.Name),
			Description: trimmedPtr(w.Description),
			Quantity:    w.Quantity,
			Unit:        strings.TrimSpace(w.Unit),
			UnitPrice:   w.UnitPrice,
		})
	}

	cost := CalculateCost(items, in.SupervisionFee, in.Percentage)
	if !cost.TotalCost.IsPositive() {
		return nil, fail(ErrInvalidAmount, "invoice total must be greater than zero; check work item quantities and prices")
	}
	if !cost.TotalCost.LessThan(maxMoneyValue) {
		return nil, fail(ErrInvalidAmount, "invoice total %s is too large", FormatMoney(cost.TotalCost))
	}

	id := in.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	invoiceDate := in.InvoiceDate
	if invoiceDate.IsZero() {
		invoiceDate = now
	}

	inv := &model.Invoice{
		ID:                          id,
		OrganizationID:              in.OrganizationID,
		InvoiceNumber:               in.InvoiceNumber,
		ClientReference:             strings.TrimSpace(in.ClientReference),
		WorkItems:                   items,
		GeneralConditionsPercentage: cost.Percentage,
		SupervisionFee:              cost.SupervisionFee,
		LineItemsTotal:              cost.LineItemsTotal,
		GeneralConditions:           cost.GeneralConditions,
		TotalCost:                   cost.TotalCost,
		Status:                      model.InvoiceStatusPending,
		StatusSource:                model.StatusSourceCreate,
		PaidAmount:                  decimal.Zero,
		ManualAdjustment:            decimal.Zero,
		InvoiceDate:                 dateOnly(invoiceDate),
		DueDate:                     dateOnly(in.DueDate),
		CreatedBy:                   in.CreatedBy,
		Version:                     1,
		CreatedAt:                   now,
		UpdatedAt:                   now,
	}
	return inv, nil
}

// RecordPayment appends a payment through the ledger and re-derives status.
// On error the returned invoice is nil and inv is untouched.
func RecordPayment(inv *model.Invoice, req PaymentRequest, now time.Time) (*model.Invoice, error) {
	if err := checkVersion(inv, req.ExpectedVersion); err != nil {
		return nil, err
	}
	state, err := ApplyPayment(inv, req, now)
	if err != nil {
		return nil, err
	}

	next := Clone(inv)
	next.Payments = state.Payments
	next.PaidAmount = state.PaidAmount
	actor := req.PaidBy
	transition(next, deriveFor(next, now), model.StatusSourceLedger, &actor, now)
	touch(next, now)
	return next, nil
}

// VoidPayment compensates a recorded payment and re-derives status.
func VoidPayment(inv *model.Invoice, req VoidRequest, now time.Time) (*model.Invoice, error) {
	if err := checkVersion(inv, req.ExpectedVersion); err != nil {
		return nil, err
	}
	voids, paid, err := ApplyVoid(inv, req, now)
	if err != nil {
		return nil, err
	}

	next := Clone(inv)
	next.Voids = voids
	next.PaidAmount = paid
	actor := req.VoidedBy
	transition(next, deriveFor(next, now), model.StatusSourceVoid, &actor, now)
	touch(next, now)
	return next, nil
}

// SetManualStatus is the administrative override. It never appends payments;
// the difference between the declared amount and the ledger is kept as an
// explicit manual adjustment.
func SetManualStatus(inv *model.Invoice, req ManualStatusRequest, now time.Time) (*model.Invoice, error) {
	if err := checkVersion(inv, req.ExpectedVersion); err != nil {
		return nil, err
	}
	if !req.Status.Valid() {
		return nil, fail(ErrInvalidStatus, "unknown status %q", string(req.Status))
	}
	paid, err := ManualPaidAmount(inv, req.Status, req.PaidAmount)
	if err != nil {
		return nil, err
	}

	next := Clone(inv)
	next.ManualAdjustment = paid.Sub(sumPayments(ActivePayments(inv)))
	next.PaidAmount = paid
	override := model.ManualOverride{
		ID:         uuid.New(),
		Status:     req.Status,
		PaidAmount: paid,
		Reason:     strings.TrimSpace(req.Reason),
		ByUserID:   req.ActorID,
		At:         now,
	}
	next.Overrides = append(next.Overrides, override)
	next.ManualOverride = &override
	actor := req.ActorID
	if !transition(next, req.Status, model.StatusSourceManual, &actor, now) {
		next.StatusSource = model.StatusSourceManual
	}
	touch(next, now)
	return next, nil
}

// OpenBalance is what is still owed. A Paid invoice whose balance does not
// reconcile keeps reporting the shortfall.
func OpenBalance(inv *model.Invoice) decimal.Decimal {
	switch inv.Status {
	case model.InvoiceStatusCancelled:
		return decimal.Zero
	case model.InvoiceStatusPaid:
		if inv.PaidAmount.GreaterThanOrEqual(inv.TotalCost) {
			return decimal.Zero
		}
		return inv.TotalCost.Sub(inv.PaidAmount)
	default:
		return inv.TotalCost.Sub(inv.PaidAmount)
	}
}

// Clone copies an invoice deeply enough that engine mutations on the copy
// never reach the original.
func Clone(inv *model.Invoice) *model.Invoice {
	next := *inv
	next.WorkItems = append([]model.WorkItem(nil), inv.WorkItems...)
	next.Payments = lo.Map(inv.Payments, func(p model.Payment, _ int) model.Payment {
		p.Documents = append([]string(nil), p.Documents...)
		return p
	})
	next.Voids = append([]model.PaymentVoid(nil), inv.Voids...)
	next.StatusEvents = append([]model.StatusEvent(nil), inv.StatusEvents...)
	next.Overrides = append([]model.ManualOverride(nil), inv.Overrides...)
	if inv.ManualOverride != nil {
		override := *inv.ManualOverride
		next.ManualOverride = &override
	}
	return &next
}

func checkVersion(inv *model.Invoice, expected int) error {
	if expected != inv.Version {
		return fail(ErrVersionConflict, "invoice %s is at version %d but version %d was expected; reload and retry", inv.InvoiceNumber, inv.Version, expected)
	}
	return nil
}

func touch(inv *model.Invoice, now time.Time) {
	inv.Version++
	inv.UpdatedAt = now
}
