package pdf

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/invoice-engine/internal/model"
)

func TestGenerate(t *testing.T) {
	report := model.InvoiceReport{
		InvoiceID:       uuid.New(),
		InvoiceNumber:   "INV-2026-000007",
		ClientReference: "Café on Harbor Street",
		InvoiceDate:     time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		DueDate:         time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		Lines: []model.ReportLine{
			{Name: "Drywall", Description: "second floor", Quantity: decimal.RequireFromString("12.5"), Unit: "m2", UnitPrice: decimal.RequireFromString("40"), LineTotal: decimal.RequireFromString("500")},
		},
		LineItemsTotal:              decimal.RequireFromString("500"),
		GeneralConditionsPercentage: decimal.RequireFromString("18.5"),
		GeneralConditions:           decimal.RequireFromString("111"),
		SupervisionFee:              decimal.RequireFromString("100"),
		TotalCost:                   decimal.RequireFromString("711"),
		PaidAmount:                  decimal.RequireFromString("700"),
		ManualAdjustment:            decimal.RequireFromString("500"),
		OpenBalance:                 decimal.RequireFromString("11"),
		Status:                      model.InvoiceStatusPaid,
		StatusSource:                model.StatusSourceManual,
		Discrepancy:                 true,
		Payments: []model.ReportPayment{
			{ID: uuid.New(), Amount: decimal.RequireFromString("200"), Method: model.PaymentMethodCheck, CheckNumber: "1042", PaymentDate: time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)},
			{ID: uuid.New(), Amount: decimal.RequireFromString("50"), Method: model.PaymentMethodCash, Voided: true, Notes: "counterfeit"},
		},
	}

	out, err := NewGenerator().Generate(report)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.Greater(t, len(out), 500)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
