package engine

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/invoice-engine/internal/model"
)

var testNow = time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)

// newTestInvoice builds an invoice whose total equals total exactly.
func newTestInvoice(t *testing.T, total string, due time.Time) *model.Invoice {
	t.Helper()
	inv, err := Create(NewInvoice{
		InvoiceNumber:   "INV-2026-000001",
		ClientReference: "client-42",
		WorkItems: []WorkItemInput{
			{Name: "Framing", Quantity: dec("1"), Unit: "lot", UnitPrice: dec(total)},
		},
		SupervisionFee: decimal.Zero,
		Percentage:     decimalPtr("0"),
		DueDate:        due,
		CreatedBy:      uuid.New(),
	}, testNow)
	require.NoError(t, err)
	return inv
}

func pay(t *testing.T, inv *model.Invoice, amount string) *model.Invoice {
	t.Helper()
	next, err := RecordPayment(inv, PaymentRequest{
		Amount:          dec(amount),
		Method:          model.PaymentMethodWire,
		PaidBy:          uuid.New(),
		ExpectedVersion: inv.Version,
	}, testNow)
	require.NoError(t, err)
	return next
}

func TestCreate(t *testing.T) {
	inv, err := Create(NewInvoice{
		ClientReference: " client-7 ",
		WorkItems: []WorkItemInput{
			{Name: "Concrete", Quantity: dec("3"), Unit: "m3", UnitPrice: dec("12.50")},
			{Name: "Labour", Quantity: dec("1.5"), Unit: "h", UnitPrice: dec("20")},
		},
		SupervisionFee: dec("100"),
		DueDate:        testNow.AddDate(0, 0, 30),
	}, testNow)
	require.NoError(t, err)

	assert.Equal(t, model.InvoiceStatusPending, inv.Status)
	assert.Equal(t, "client-7", inv.ClientReference)
	assert.Equal(t, 1, inv.Version)
	assert.True(t, inv.GeneralConditionsPercentage.Equal(dec("18.5")))
	assert.True(t, inv.TotalCost.Equal(dec("198.49")))
	assert.True(t, inv.PaidAmount.IsZero())
	assert.Len(t, inv.WorkItems, 2)
	assert.Equal(t, 1, inv.WorkItems[1].Position)
	assert.True(t, OpenBalance(inv).Equal(inv.TotalCost))
}

func TestCreateRejectsMissingFields(t *testing.T) {
	valid := NewInvoice{
		ClientReference: "client",
		WorkItems:       []WorkItemInput{{Name: "x", Quantity: dec("1"), UnitPrice: dec("1")}},
		DueDate:         testNow,
	}

	noItems := valid
	noItems.WorkItems = nil
	noClient := valid
	noClient.ClientReference = "  "
	noDue := valid
	noDue.DueDate = time.Time{}

	for name, in := range map[string]NewInvoice{"items": noItems, "client": noClient, "due": noDue} {
		_, err := Create(in, testNow)
		assert.ErrorIs(t, err, ErrMissingRequiredField, name)
		assert.NotEmpty(t, Hint(err), name)
	}

	negative := valid
	negative.WorkItems = []WorkItemInput{{Name: "x", Quantity: dec("-1"), UnitPrice: dec("1")}}
	_, err := Create(negative, testNow)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestCreateRejectsZeroTotal(t *testing.T) {
	for name, item := range map[string]WorkItemInput{
		"zero quantity": {Name: "Survey", Quantity: dec("0"), UnitPrice: dec("150")},
		"zero price":    {Name: "Survey", Quantity: dec("2"), UnitPrice: dec("0")},
	} {
		_, err := Create(NewInvoice{
			ClientReference: "client",
			WorkItems:       []WorkItemInput{item},
			Percentage:      decimalPtr("0"),
			DueDate:         testNow.AddDate(0, 0, -1),
		}, testNow)
		assert.ErrorIs(t, err, ErrInvalidAmount, name)
		assert.Contains(t, Hint(err), "greater than zero", name)
	}

	// a supervision fee alone is a billable total
	inv, err := Create(NewInvoice{
		ClientReference: "client",
		WorkItems:       []WorkItemInput{{Name: "Survey", Quantity: dec("0"), UnitPrice: dec("150")}},
		SupervisionFee:  dec("80"),
		Percentage:      decimalPtr("0"),
		DueDate:         testNow.AddDate(0, 0, 5),
	}, testNow)
	require.NoError(t, err)
	assert.True(t, inv.TotalCost.Equal(dec("80")))
}

func TestCreateEnforcesColumnLimits(t *testing.T) {
	build := func(qty, price string, pct *decimal.Decimal) NewInvoice {
		return NewInvoice{
			ClientReference: "client",
			WorkItems:       []WorkItemInput{{Name: "Steel", Quantity: dec(qty), UnitPrice: dec(price)}},
			Percentage:      pct,
			DueDate:         testNow.AddDate(0, 0, 30),
		}
	}

	rejected := map[string]NewInvoice{
		"price scale":         build("3", "0.33333", decimalPtr("0")),
		"quantity scale":      build("1.23456", "10", decimalPtr("0")),
		"percentage at limit": build("1", "10", decimalPtr("1000")),
		"percentage scale":    build("1", "10", decimalPtr("18.12345")),
		"quantity too large":  build("100000000000000", "1", decimalPtr("0")),
		"price too large":     build("1", "100000000000000", decimalPtr("0")),
		"total too large":     build("99999999999999", "99999999999999", decimalPtr("0")),
	}
	for name, in := range rejected {
		_, err := Create(in, testNow)
		assert.ErrorIs(t, err, ErrInvalidAmount, name)
		assert.NotEmpty(t, Hint(err), name)
	}

	inv, err := Create(build("3", "0.3333", decimalPtr("999.9999")), testNow)
	require.NoError(t, err)
	assert.True(t, inv.WorkItems[0].UnitPrice.Equal(dec("0.3333")))
	assert.True(t, inv.GeneralConditionsPercentage.Equal(dec("999.9999")))
}

func TestOpenBalanceScenarios(t *testing.T) {
	inv := newTestInvoice(t, "1000", testNow.AddDate(0, 0, 10))
	assert.Equal(t, model.InvoiceStatusPending, inv.Status)
	assert.Equal(t, "1000.00", FormatMoney(OpenBalance(inv)))

	inv = pay(t, inv, "400")
	assert.Equal(t, model.InvoiceStatusPartialPaid, inv.Status)
	assert.Equal(t, "600.00", FormatMoney(OpenBalance(inv)))

	inv = pay(t, inv, "600")
	assert.Equal(t, model.InvoiceStatusPaid, inv.Status)
	assert.Equal(t, "0.00", FormatMoney(OpenBalance(inv)))
	assert.Equal(t, model.StatusSourceLedger, inv.StatusSource)
	assert.Len(t, inv.StatusEvents, 2)
}

func TestPaidStaysPaidAfterRejectedPayments(t *testing.T) {
	inv := newTestInvoice(t, "500", testNow.AddDate(0, 0, 10))
	inv = pay(t, inv, "500")
	require.Equal(t, model.InvoiceStatusPaid, inv.Status)

	for _, amount := range []string{"1", "0.01", "500"} {
		next, err := RecordPayment(inv, PaymentRequest{
			Amount:          dec(amount),
			Method:          model.PaymentMethodCash,
			ExpectedVersion: inv.Version,
		}, testNow)
		assert.ErrorIs(t, err, ErrOverpaymentRejected)
		assert.Nil(t, next)
	}
	assert.Equal(t, model.InvoiceStatusPaid, inv.Status)
	assert.True(t, inv.PaidAmount.Equal(dec("500")))
	assert.Len(t, inv.Payments, 1)
}

func TestRecordPaymentVersionConflict(t *testing.T) {
	inv := newTestInvoice(t, "1000", testNow.AddDate(0, 0, 10))
	stale := inv.Version
	inv = pay(t, inv, "100")

	_, err := RecordPayment(inv, PaymentRequest{
		Amount:          dec("100"),
		Method:          model.PaymentMethodACH,
		ExpectedVersion: stale,
	}, testNow)
	assert.ErrorIs(t, err, ErrVersionConflict)
	assert.Equal(t, "version_conflict", Code(err))
}

func TestRecordPaymentDoesNotMutateInput(t *testing.T) {
	inv := newTestInvoice(t, "1000", testNow.AddDate(0, 0, 10))
	next := pay(t, inv, "250")

	assert.Empty(t, inv.Payments)
	assert.Equal(t, model.InvoiceStatusPending, inv.Status)
	assert.Equal(t, 1, inv.Version)
	assert.Equal(t, 2, next.Version)
}

func TestSetManualStatusPartialPaid(t *testing.T) {
	inv := newTestInvoice(t, "1000", testNow.AddDate(0, 0, 10))

	for _, amount := range []*decimal.Decimal{nil, decimalPtr("0"), decimalPtr("-5"), decimalPtr("1000"), decimalPtr("1200")} {
		_, err := SetManualStatus(inv, ManualStatusRequest{
			Status:          model.InvoiceStatusPartialPaid,
			PaidAmount:      amount,
			ExpectedVersion: inv.Version,
		}, testNow)
		assert.ErrorIs(t, err, ErrInvalidPartialAmount)
	}

	next, err := SetManualStatus(inv, ManualStatusRequest{
		Status:          model.InvoiceStatusPartialPaid,
		PaidAmount:      decimalPtr("300"),
		Reason:          "legacy import",
		ActorID:         uuid.New(),
		ExpectedVersion: inv.Version,
	}, testNow)
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceStatusPartialPaid, next.Status)
	assert.Equal(t, model.StatusSourceManual, next.StatusSource)
	assert.True(t, next.PaidAmount.Equal(dec("300")))
	assert.True(t, next.ManualAdjustment.Equal(dec("300")))
	assert.Empty(t, next.Payments)
	require.NotNil(t, next.ManualOverride)
	assert.Equal(t, "legacy import", next.ManualOverride.Reason)

	// ledger payments stack on top of the adjustment
	paid := pay(t, next, "700")
	assert.Equal(t, model.InvoiceStatusPaid, paid.Status)
	assert.True(t, paid.PaidAmount.Equal(dec("1000")))
	assert.True(t, PaidAmount(paid).Equal(paid.PaidAmount))

	_, err = RecordPayment(next, PaymentRequest{Amount: dec("700.01"), Method: model.PaymentMethodCash, ExpectedVersion: next.Version}, testNow)
	assert.ErrorIs(t, err, ErrOverpaymentRejected)
	assert.Equal(t, "payment exceeds remaining balance of 700.00", Hint(err))
}

func TestSetManualStatusCannotUndercutRecordedPayments(t *testing.T) {
	inv := newTestInvoice(t, "1000", testNow.AddDate(0, 0, 10))
	inv = pay(t, inv, "800")

	_, err := SetManualStatus(inv, ManualStatusRequest{
		Status:          model.InvoiceStatusPartialPaid,
		PaidAmount:      decimalPtr("100"),
		ExpectedVersion: inv.Version,
	}, testNow)
	assert.ErrorIs(t, err, ErrInvalidPartialAmount)
	assert.Contains(t, Hint(err), "800.00")

	_, err = SetManualStatus(inv, ManualStatusRequest{
		Status:          model.InvoiceStatusPaid,
		PaidAmount:      decimalPtr("100"),
		ExpectedVersion: inv.Version,
	}, testNow)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = RecordPayment(inv, PaymentRequest{Amount: dec("900"), Method: model.PaymentMethodWire, ExpectedVersion: inv.Version}, testNow)
	assert.ErrorIs(t, err, ErrOverpaymentRejected)
	assert.Equal(t, "payment exceeds remaining balance of 200.00", Hint(err))

	next, err := SetManualStatus(inv, ManualStatusRequest{
		Status:          model.InvoiceStatusPartialPaid,
		PaidAmount:      decimalPtr("900"),
		ExpectedVersion: inv.Version,
	}, testNow)
	require.NoError(t, err)
	assert.True(t, next.ManualAdjustment.Equal(dec("100")))

	_, err = RecordPayment(next, PaymentRequest{Amount: dec("100.01"), Method: model.PaymentMethodWire, ExpectedVersion: next.Version}, testNow)
	assert.ErrorIs(t, err, ErrOverpaymentRejected)

	settled := pay(t, next, "100")
	assert.Equal(t, model.InvoiceStatusPaid, settled.Status)
	assert.False(t, settled.ManualAdjustment.IsNegative())
	assert.True(t, sumPayments(ActivePayments(settled)).LessThanOrEqual(settled.TotalCost))
}

func TestSetManualStatusKeepsOverrideHistory(t *testing.T) {
	inv := newTestInvoice(t, "1000", testNow.AddDate(0, 0, 10))

	first, err := SetManualStatus(inv, ManualStatusRequest{
		Status:          model.InvoiceStatusPartialPaid,
		PaidAmount:      decimalPtr("300"),
		Reason:          "first cheque",
		ActorID:         uuid.New(),
		ExpectedVersion: inv.Version,
	}, testNow)
	require.NoError(t, err)

	second, err := SetManualStatus(first, ManualStatusRequest{
		Status:          model.InvoiceStatusPartialPaid,
		PaidAmount:      decimalPtr("500"),
		Reason:          "second cheque",
		ActorID:         uuid.New(),
		ExpectedVersion: first.Version,
	}, testNow.Add(time.Hour))
	require.NoError(t, err)

	require.Len(t, second.Overrides, 2)
	assert.True(t, second.Overrides[0].PaidAmount.Equal(dec("300")))
	assert.Equal(t, "first cheque", second.Overrides[0].Reason)
	assert.True(t, second.Overrides[1].PaidAmount.Equal(dec("500")))
	assert.NotEqual(t, second.Overrides[0].ID, second.Overrides[1].ID)
	require.NotNil(t, second.ManualOverride)
	assert.Equal(t, second.Overrides[1].ID, second.ManualOverride.ID)
	assert.Len(t, second.StatusEvents, 1, "same-status override records no transition")
	assert.Len(t, first.Overrides, 1, "input is not mutated")
}

func TestSetManualStatusRejectsSubCentAmounts(t *testing.T) {
	inv := newTestInvoice(t, "1000", testNow.AddDate(0, 0, 10))

	for _, amount := range []string{"999.999", "0.001"} {
		_, err := SetManualStatus(inv, ManualStatusRequest{
			Status:          model.InvoiceStatusPartialPaid,
			PaidAmount:      decimalPtr(amount),
			ExpectedVersion: inv.Version,
		}, testNow)
		assert.ErrorIs(t, err, ErrInvalidPartialAmount, amount)
		assert.Contains(t, Hint(err), "more than two decimal places", amount)
	}

	_, err := SetManualStatus(inv, ManualStatusRequest{
		Status:          model.InvoiceStatusPaid,
		PaidAmount:      decimalPtr("999.995"),
		ExpectedVersion: inv.Version,
	}, testNow)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	assert.Contains(t, Hint(err), "more than two decimal places")

	next, err := SetManualStatus(inv, ManualStatusRequest{
		Status:          model.InvoiceStatusPartialPaid,
		PaidAmount:      decimalPtr("999.99"),
		ExpectedVersion: inv.Version,
	}, testNow)
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceStatusPartialPaid, next.Status)
	assert.True(t, OpenBalance(next).Equal(dec("0.01")))
}

func TestSetManualStatusPaidWithShortfallIsVisible(t *testing.T) {
	inv := newTestInvoice(t, "1000", testNow.AddDate(0, 0, 10))

	next, err := SetManualStatus(inv, ManualStatusRequest{
		Status:          model.InvoiceStatusPaid,
		PaidAmount:      decimalPtr("400"),
		ExpectedVersion: inv.Version,
	}, testNow)
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceStatusPaid, next.Status)
	assert.True(t, next.Discrepancy())
	assert.Equal(t, "600.00", FormatMoney(OpenBalance(next)))

	full, err := SetManualStatus(inv, ManualStatusRequest{
		Status:          model.InvoiceStatusPaid,
		ExpectedVersion: inv.Version,
	}, testNow)
	require.NoError(t, err)
	assert.False(t, full.Discrepancy())
	assert.True(t, full.PaidAmount.Equal(dec("1000")))
	assert.True(t, OpenBalance(full).IsZero())

	_, err = SetManualStatus(inv, ManualStatusRequest{
		Status:          model.InvoiceStatusPaid,
		PaidAmount:      decimalPtr("1000.01"),
		ExpectedVersion: inv.Version,
	}, testNow)
	assert.ErrorIs(t, err, ErrOverpaymentRejected)
}

func TestSetManualStatusCancelled(t *testing.T) {
	inv := newTestInvoice(t, "1000", testNow.AddDate(0, 0, 10))
	inv = pay(t, inv, "250")

	cancelled, err := SetManualStatus(inv, ManualStatusRequest{
		Status:          model.InvoiceStatusCancelled,
		ExpectedVersion: inv.Version,
	}, testNow)
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceStatusCancelled, cancelled.Status)
	assert.True(t, OpenBalance(cancelled).IsZero())
	assert.True(t, cancelled.PaidAmount.Equal(dec("250")))
	assert.True(t, cancelled.ManualAdjustment.IsZero())

	_, err = RecordPayment(cancelled, PaymentRequest{Amount: dec("10"), Method: model.PaymentMethodCash, ExpectedVersion: cancelled.Version}, testNow)
	assert.ErrorIs(t, err, ErrInvalidStatus)

	swept := Sweep([]*model.Invoice{cancelled}, testNow.AddDate(1, 0, 0))
	assert.Empty(t, swept.TransitionedIDs)
}

func TestSetManualStatusRejectsUnknownAndReopenWithBalance(t *testing.T) {
	inv := newTestInvoice(t, "1000", testNow.AddDate(0, 0, 10))
	_, err := SetManualStatus(inv, ManualStatusRequest{Status: "ARCHIVED", ExpectedVersion: inv.Version}, testNow)
	assert.ErrorIs(t, err, ErrInvalidStatus)

	inv = pay(t, inv, "10")
	_, err = SetManualStatus(inv, ManualStatusRequest{Status: model.InvoiceStatusPending, ExpectedVersion: inv.Version}, testNow)
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestBuildReport(t *testing.T) {
	inv := newTestInvoice(t, "1000", testNow.AddDate(0, 0, 10))
	inv = pay(t, inv, "400")

	report := BuildReport(inv)
	assert.Equal(t, inv.InvoiceNumber, report.InvoiceNumber)
	assert.Equal(t, "600.00", FormatMoney(report.OpenBalance))
	assert.Equal(t, model.InvoiceStatusPartialPaid, report.Status)
	require.Len(t, report.Lines, 1)
	assert.True(t, report.Lines[0].LineTotal.Equal(dec("1000")))
	require.Len(t, report.Payments, 1)
	assert.False(t, report.Payments[0].Voided)
	assert.False(t, report.Discrepancy)
}
