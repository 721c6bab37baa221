package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentMethodCheck      PaymentMethod = "check"
	PaymentMethodWire       PaymentMethod = "wire"
	PaymentMethodACH        PaymentMethod = "ach"
	PaymentMethodCreditCard PaymentMethod = "creditCard"
	PaymentMethodCash       PaymentMethod = "cash"
	PaymentMethodOther      PaymentMethod = "other"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCheck, PaymentMethodWire, PaymentMethodACH,
		PaymentMethodCreditCard, PaymentMethodCash, PaymentMethodOther:
		return true
	}
	return false
}

// Payment is append-only. Documents are references into the document store
// and are tracked beside the payment, not as part of it.
type Payment struct {
	ID              uuid.UUID       `json:"id"`
	InvoiceID       uuid.UUID       `json:"invoice_id"`
	Amount          decimal.Decimal `json:"amount"`
	PaymentDate     time.Time       `json:"payment_date"`
	Method          PaymentMethod   `json:"method"`
	CheckNumber     *string         `json:"check_number,omitempty"`
	ReferenceNumber *string         `json:"reference_number,omitempty"`
	PaidBy          uuid.UUID       `json:"paid_by"`
	Notes           string          `json:"notes,omitempty"`
	Documents       []string        `json:"documents"`
	CreatedAt       time.Time       `json:"created_at"`
}

// PaymentVoid compensates a payment without touching it.
type PaymentVoid struct {
	ID        uuid.UUID `json:"id"`
	PaymentID uuid.UUID `json:"payment_id"`
	Reason    string    `json:"reason"`
	VoidedBy  uuid.UUID `json:"voided_by"`
	CreatedAt time.Time `json:"created_at"`
}
