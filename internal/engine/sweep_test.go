package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/invoice-engine/internal/model"
)

func TestSweep(t *testing.T) {
	overdue := newTestInvoice(t, "1000", testNow.AddDate(0, 0, -1))
	dueToday := newTestInvoice(t, "1000", testNow)
	future := newTestInvoice(t, "1000", testNow.AddDate(0, 0, 7))
	partial := pay(t, newTestInvoice(t, "1000", testNow.AddDate(0, 0, -9)), "10")

	input := []*model.Invoice{overdue, dueToday, future, partial}
	result := Sweep(input, testNow)

	require.Len(t, result.Invoices, 4)
	assert.Equal(t, []string{overdue.ID.String()}, idStrings(result))
	assert.Equal(t, model.InvoiceStatusOverdue, result.Invoices[0].Status)
	assert.Equal(t, model.StatusSourceSweep, result.Invoices[0].StatusSource)
	assert.Equal(t, "1000.00", FormatMoney(OpenBalance(result.Invoices[0])))
	assert.Equal(t, overdue.Version+1, result.Invoices[0].Version)
	assert.Same(t, dueToday, result.Invoices[1])
	assert.Same(t, future, result.Invoices[2])
	assert.Equal(t, model.InvoiceStatusPartialPaid, result.Invoices[3].Status)

	assert.Equal(t, model.InvoiceStatusPending, overdue.Status, "input is not mutated")
}

func TestSweepIsIdempotent(t *testing.T) {
	input := []*model.Invoice{
		newTestInvoice(t, "1000", testNow.AddDate(0, 0, -1)),
		newTestInvoice(t, "20", testNow.AddDate(0, -2, 0)),
		newTestInvoice(t, "30", testNow.AddDate(0, 0, 2)),
	}

	first := Sweep(input, testNow)
	assert.Len(t, first.TransitionedIDs, 2)

	second := Sweep(first.Invoices, testNow)
	assert.Empty(t, second.TransitionedIDs)
	assert.Empty(t, second.Transitioned)
	for i := range first.Invoices {
		assert.Same(t, first.Invoices[i], second.Invoices[i])
	}
}

func idStrings(result SweepResult) []string {
	out := make([]string, 0, len(result.TransitionedIDs))
	for _, id := range result.TransitionedIDs {
		out = append(out, id.String())
	}
	return out
}
