package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/nurpe/invoice-engine/internal/model"
)

type SweepResult struct {
	// Invoices holds every input invoice, with transitioned ones replaced by
	// their updated copies, in input order.
	Invoices        []*model.Invoice
	Transitioned    []*model.Invoice
	TransitionedIDs []uuid.UUID
}

// Sweep moves Pending invoices whose due date has passed to Overdue. Invoices
// in any other status are not evaluated, so a second run with the same now
// changes nothing.
func Sweep(invoices []*model.Invoice, now time.Time) SweepResult {
	result := SweepResult{
		Invoices:        make([]*model.Invoice, 0, len(invoices)),
		TransitionedIDs: []uuid.UUID{},
	}
	for _, inv := range invoices {
		if inv.Status != model.InvoiceStatusPending || !IsPastDue(inv.DueDate, now) {
			result.Invoices = append(result.Invoices, inv)
			continue
		}
		if deriveFor(inv, now) != model.InvoiceStatusOverdue {
			result.Invoices = append(result.Invoices, inv)
			continue
		}

		next := Clone(inv)
		transition(next, model.InvoiceStatusOverdue, model.StatusSourceSweep, nil, now)
		touch(next, now)

		result.Invoices = append(result.Invoices, next)
		result.Transitioned = append(result.Transitioned, next)
		result.TransitionedIDs = append(result.TransitionedIDs, next.ID)
	}
	return result
}
