package engine

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/nurpe/invoice-engine/internal/model"
)

type PaymentRequest struct {
	ID              uuid.UUID
	Amount          decimal.Decimal
	PaymentDate     time.Time
	Method          model.PaymentMethod
	CheckNumber     *string
	ReferenceNumber *string
	PaidBy          uuid.UUID
	Notes           string
	Documents       []string
	ExpectedVersion int
}

type LedgerState struct {
	Payments   []model.Payment
	PaidAmount decimal.Decimal
	Remaining  decimal.Decimal
}

// ActivePayments are the payments not compensated by a void.
func ActivePayments(inv *model.Invoice) []model.Payment {
	return lo.Filter(inv.Payments, func(p model.Payment, _ int) bool {
		return !inv.IsVoided(p.ID)
	})
}

func sumPayments(payments []model.Payment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p.Amount)
	}
	return total
}

// PaidAmount recomputes paid-to-date from the ledger. It is never read back
// from a stored field during payment flow.
func PaidAmount(inv *model.Invoice) decimal.Decimal {
	return sumPayments(ActivePayments(inv)).Add(inv.ManualAdjustment)
}

func RemainingBalance(inv *model.Invoice) decimal.Decimal {
	return inv.TotalCost.Sub(PaidAmount(inv))
}

// ApplyPayment validates req against the invoice and returns the ledger as it
// would be with the payment appended. inv itself is not modified.
func ApplyPayment(inv *model.Invoice, req PaymentRequest, now time.Time) (LedgerState, error) {
	if !req.Amount.IsPositive() {
		return LedgerState{}, fail(ErrInvalidAmount, "payment amount must be greater than zero, got %s", req.Amount.String())
	}
	if !Round2(req.Amount).Equal(req.Amount) {
		return LedgerState{}, fail(ErrInvalidAmount, "payment amount %s has more than two decimal places", req.Amount.String())
	}
	if !req.Method.Valid() {
		return LedgerState{}, fail(ErrInvalidPaymentMethod, "unknown payment method %q", string(req.Method))
	}
	if inv.Status == model.InvoiceStatusCancelled {
		return LedgerState{}, fail(ErrInvalidStatus, "invoice %s is cancelled and cannot accept payments", inv.InvoiceNumber)
	}

	remaining := RemainingBalance(inv)
	if req.Amount.GreaterThan(remaining) {
		return LedgerState{}, fail(ErrOverpaymentRejected, "payment exceeds remaining balance of %s", FormatMoney(remaining))
	}

	id := req.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	paymentDate := req.PaymentDate
	if paymentDate.IsZero() {
		paymentDate = now
	}

	payment := model.Payment{
		ID:              id,
		InvoiceID:       inv.ID,
		Amount:          req.Amount,
		PaymentDate:     paymentDate,
		Method:          req.Method,
		CheckNumber:     trimmedPtr(req.CheckNumber),
		ReferenceNumber: trimmedPtr(req.ReferenceNumber),
		PaidBy:          req.PaidBy,
		Notes:           strings.TrimSpace(req.Notes),
		Documents:       append([]string(nil), req.Documents...),
		CreatedAt:       now,
	}

	payments := append(append([]model.Payment(nil), inv.Payments...), payment)
	next := &model.Invoice{Payments: payments, Voids: inv.Voids, ManualAdjustment: inv.ManualAdjustment}
	paid := PaidAmount(next)

	return LedgerState{
		Payments:   payments,
		PaidAmount: paid,
		Remaining:  inv.TotalCost.Sub(paid),
	}, nil
}

type VoidRequest struct {
	PaymentID       uuid.UUID
	Reason          string
	VoidedBy        uuid.UUID
	ExpectedVersion int
}

// ApplyVoid appends a compensating void for one payment.
func ApplyVoid(inv *model.Invoice, req VoidRequest, now time.Time) ([]model.PaymentVoid, decimal.Decimal, error) {
	payment, ok := inv.FindPayment(req.PaymentID)
	if !ok {
		return nil, decimal.Zero, fail(ErrPaymentNotFound, "payment %s does not belong to invoice %s", req.PaymentID, inv.InvoiceNumber)
	}
	if inv.IsVoided(payment.ID) {
		return nil, decimal.Zero, fail(ErrPaymentAlreadyVoided, "payment %s was already voided", payment.ID)
	}
	if strings.TrimSpace(req.Reason) == "" {
		return nil, decimal.Zero, fail(ErrMissingRequiredField, "a reason is required to void a payment")
	}

	voids := append(append([]model.PaymentVoid(nil), inv.Voids...), model.PaymentVoid{
		ID:        uuid.New(),
		PaymentID: payment.ID,
		Reason:    strings.TrimSpace(req.Reason),
		VoidedBy:  req.VoidedBy,
		CreatedAt: now,
	})
	paid := PaidAmount(&model.Invoice{Payments: inv.Payments, Voids: voids, ManualAdjustment: inv.ManualAdjustment})
	if paid.IsNegative() {
		return nil, decimal.Zero, fail(ErrInvalidAmount, "voiding payment %s would make the paid amount negative; override the status first", payment.ID)
	}
	return voids, paid, nil
}

// ManualPaidAmount validates the amount for an administrative status override
// and returns the paid amount the invoice should carry afterwards.
//
// The declared amount may never fall below the active payments already on the
// ledger: the adjustment stays non-negative, so recorded payments can never
// exceed the total.
func ManualPaidAmount(inv *model.Invoice, status model.InvoiceStatus, explicit *decimal.Decimal) (decimal.Decimal, error) {
	current := PaidAmount(inv)
	ledger := sumPayments(ActivePayments(inv))
	switch status {
	case model.InvoiceStatusCancelled:
		return current, nil
	case model.InvoiceStatusPartialPaid:
		if explicit != nil && !Round2(*explicit).Equal(*explicit) {
			return decimal.Zero, fail(ErrInvalidPartialAmount, "partial amount %s has more than two decimal places", explicit.String())
		}
		if explicit == nil || !explicit.IsPositive() || !explicit.LessThan(inv.TotalCost) {
			return decimal.Zero, fail(ErrInvalidPartialAmount, "partial amount must be greater than 0 and less than the total of %s", FormatMoney(inv.TotalCost))
		}
		if explicit.LessThan(ledger) {
			return decimal.Zero, fail(ErrInvalidPartialAmount, "partial amount %s is below the %s already recorded as payments; void payments first", FormatMoney(*explicit), FormatMoney(ledger))
		}
		return *explicit, nil
	case model.InvoiceStatusPaid:
		if explicit == nil {
			return inv.TotalCost, nil
		}
		if !Round2(*explicit).Equal(*explicit) {
			return decimal.Zero, fail(ErrInvalidAmount, "paid amount %s has more than two decimal places", explicit.String())
		}
		if explicit.IsNegative() {
			return decimal.Zero, fail(ErrInvalidAmount, "paid amount cannot be negative")
		}
		if explicit.GreaterThan(inv.TotalCost) {
			return decimal.Zero, fail(ErrOverpaymentRejected, "paid amount %s exceeds the total of %s", FormatMoney(*explicit), FormatMoney(inv.TotalCost))
		}
		if explicit.LessThan(ledger) {
			return decimal.Zero, fail(ErrInvalidAmount, "paid amount %s is below the %s already recorded as payments; void payments first", FormatMoney(*explicit), FormatMoney(ledger))
		}
		return *explicit, nil
	case model.InvoiceStatusPending, model.InvoiceStatusOverdue:
		if !current.IsZero() || (explicit != nil && !explicit.IsZero()) {
			return decimal.Zero, fail(ErrInvalidStatus, "status %s requires a zero paid amount; current paid amount is %s", status, FormatMoney(current))
		}
		return decimal.Zero, nil
	default:
		return decimal.Zero, fail(ErrInvalidStatus, "unknown status %q", string(status))
	}
}

func trimmedPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
