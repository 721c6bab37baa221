package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceReport is the read-only projection handed to renderers.
type InvoiceReport struct {
	InvoiceID                   uuid.UUID       `json:"invoice_id"`
	InvoiceNumber               string          `json:"invoice_number"`
	ClientReference             string          `json:"client_reference"`
	InvoiceDate                 time.Time       `json:"invoice_date"`
	DueDate                     time.Time       `json:"due_date"`
	Lines                       []ReportLine    `json:"work_items"`
	LineItemsTotal              decimal.Decimal `json:"line_items_total"`
	GeneralConditionsPercentage decimal.Decimal `json:"general_conditions_percentage"`
	GeneralConditions           decimal.Decimal `json:"general_conditions"`
	SupervisionFee              decimal.Decimal `json:"supervision_fee"`
	TotalCost                   decimal.Decimal `json:"total_cost"`
	PaidAmount                  decimal.Decimal `json:"paid_amount"`
	ManualAdjustment            decimal.Decimal `json:"manual_adjustment"`
	OpenBalance                 decimal.Decimal `json:"open_balance"`
	Status                      InvoiceStatus   `json:"status"`
	StatusSource                StatusSource    `json:"status_source"`
	Discrepancy                 bool            `json:"discrepancy"`
	Payments                    []ReportPayment `json:"payments"`
}

type ReportLine struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

type ReportPayment struct {
	ID              uuid.UUID       `json:"id"`
	Amount          decimal.Decimal `json:"amount"`
	PaymentDate     time.Time       `json:"payment_date"`
	Method          PaymentMethod   `json:"method"`
	CheckNumber     string          `json:"check_number,omitempty"`
	ReferenceNumber string          `json:"reference_number,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	Voided          bool            `json:"voided"`
	Documents       []string        `json:"documents"`
}

// Statement groups reports for a list export.
type Statement struct {
	OrganizationID uuid.UUID
	GeneratedAt    time.Time
	Invoices       []InvoiceReport
}
