package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoiceStatusPending     InvoiceStatus = "PENDING"
	InvoiceStatusOverdue     InvoiceStatus = "OVERDUE"
	InvoiceStatusPartialPaid InvoiceStatus = "PARTIAL_PAID"
	InvoiceStatusPaid        InvoiceStatus = "PAID"
	InvoiceStatusCancelled   InvoiceStatus = "CANCELLED"
)

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceStatusPending, InvoiceStatusOverdue, InvoiceStatusPartialPaid, InvoiceStatusPaid, InvoiceStatusCancelled:
		return true
	}
	return false
}

// StatusSource tags who moved an invoice into its current status.
type StatusSource string

const (
	StatusSourceCreate StatusSource = "create"
	StatusSourceLedger StatusSource = "ledger"
	StatusSourceSweep  StatusSource = "sweep"
	StatusSourceManual StatusSource = "manual"
	StatusSourceVoid   StatusSource = "void"
)

type WorkItem struct {
	ID          uuid.UUID       `json:"id"`
	Position    int             `json:"position"`
	Name        string          `json:"name"`
	Description *string         `json:"description,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// LineTotal is exact; rounding happens when totals are summed.
func (w WorkItem) LineTotal() decimal.Decimal {
	return w.Quantity.Mul(w.UnitPrice)
}

type Invoice struct {
	ID                          uuid.UUID       `json:"id"`
	OrganizationID              uuid.UUID       `json:"organization_id"`
	InvoiceNumber               string          `json:"invoice_number"`
	ClientReference             string          `json:"client_reference"`
	WorkItems                   []WorkItem      `json:"work_items"`
	GeneralConditionsPercentage decimal.Decimal `json:"general_conditions_percentage"`
	SupervisionFee              decimal.Decimal `json:"supervision_fee"`
	LineItemsTotal              decimal.Decimal `json:"line_items_total"`
	GeneralConditions           decimal.Decimal `json:"general_conditions"`
	TotalCost                   decimal.Decimal `json:"total_cost"`
	Status                      InvoiceStatus   `json:"status"`
	StatusSource                StatusSource    `json:"status_source"`
	PaidAmount                  decimal.Decimal `json:"paid_amount"`
	// ManualAdjustment is the part of PaidAmount not backed by payments.
	ManualAdjustment decimal.Decimal `json:"manual_adjustment"`
	ManualOverride   *ManualOverride `json:"manual_override,omitempty"`
	// Overrides is append-only; ManualOverride is its latest entry.
	Overrides    []ManualOverride `json:"overrides"`
	Payments     []Payment        `json:"payments"`
	Voids        []PaymentVoid    `json:"voids"`
	StatusEvents []StatusEvent    `json:"status_events"`
	InvoiceDate  time.Time        `json:"invoice_date"`
	DueDate      time.Time        `json:"due_date"`
	CreatedBy    uuid.UUID        `json:"created_by"`
	Version      int              `json:"version"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

type ManualOverride struct {
	ID         uuid.UUID       `json:"id"`
	Status     InvoiceStatus   `json:"status"`
	PaidAmount decimal.Decimal `json:"paid_amount"`
	Reason     string          `json:"reason,omitempty"`
	ByUserID   uuid.UUID       `json:"by_user_id"`
	At         time.Time       `json:"at"`
}

type StatusEvent struct {
	ID        uuid.UUID     `json:"id"`
	From      InvoiceStatus `json:"from"`
	To        InvoiceStatus `json:"to"`
	Source    StatusSource  `json:"source"`
	ActorID   *uuid.UUID    `json:"actor_id,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// Discrepancy reports a Paid status that the balance does not back.
func (i *Invoice) Discrepancy() bool {
	return i.Status == InvoiceStatusPaid && i.PaidAmount.LessThan(i.TotalCost)
}

func (i *Invoice) FindPayment(id uuid.UUID) (*Payment, bool) {
	for idx := range i.Payments {
		if i.Payments[idx].ID == id {
			return &i.Payments[idx], true
		}
	}
	return nil, false
}

func (i *Invoice) IsVoided(paymentID uuid.UUID) bool {
	for _, v := range i.Voids {
		if v.PaymentID == paymentID {
			return true
		}
	}
	return false
}
