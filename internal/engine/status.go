package engine

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nurpe/invoice-engine/internal/model"
)

type StatusInput struct {
	Current    model.InvoiceStatus
	PaidAmount decimal.Decimal
	TotalCost  decimal.Decimal
	DueDate    time.Time
	Now        time.Time
}

// DeriveStatus applies the status rules in precedence order. It never runs
// on its own; callers evaluate it after a ledger change or during a sweep.
func DeriveStatus(in StatusInput) model.InvoiceStatus {
	if in.Current == model.InvoiceStatusCancelled {
		return model.InvoiceStatusCancelled
	}
	if in.PaidAmount.IsPositive() && in.PaidAmount.GreaterThanOrEqual(in.TotalCost) {
		return model.InvoiceStatusPaid
	}
	if in.PaidAmount.IsPositive() && in.PaidAmount.LessThan(in.TotalCost) {
		return model.InvoiceStatusPartialPaid
	}

	// nothing paid: a voided Paid/PartialPaid invoice falls back to Pending
	base := in.Current
	if base == model.InvoiceStatusPaid || base == model.InvoiceStatusPartialPaid {
		base = model.InvoiceStatusPending
	}
	if base == model.InvoiceStatusPending && IsPastDue(in.DueDate, in.Now) {
		return model.InvoiceStatusOverdue
	}
	return base
}

// IsPastDue compares calendar dates only: the due day itself is not overdue.
func IsPastDue(dueDate, now time.Time) bool {
	if dueDate.IsZero() {
		return false
	}
	return dateOnly(dueDate).Before(dateOnly(now))
}

func deriveFor(inv *model.Invoice, now time.Time) model.InvoiceStatus {
	return DeriveStatus(StatusInput{
		Current:    inv.Status,
		PaidAmount: inv.PaidAmount,
		TotalCost:  inv.TotalCost,
		DueDate:    inv.DueDate,
		Now:        now,
	})
}

// transition records a status change with its source. Unchanged statuses
// leave no event.
func transition(inv *model.Invoice, to model.InvoiceStatus, source model.StatusSource, actor *uuid.UUID, now time.Time) bool {
	if inv.Status == to {
		return false
	}
	inv.StatusEvents = append(inv.StatusEvents, model.StatusEvent{
		ID:        uuid.New(),
		From:      inv.Status,
		To:        to,
		Source:    source,
		ActorID:   actor,
		CreatedAt: now,
	})
	inv.Status = to
	inv.StatusSource = source
	return true
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
