package engine

import (
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/invoice-engine/internal/model"
)

func TestApplyPaymentValidation(t *testing.T) {
	inv := newTestInvoice(t, "1000", testNow.AddDate(0, 0, 5))

	tests := []struct {
		name   string
		amount string
		method model.PaymentMethod
		want   error
	}{
		{"zero", "0", model.PaymentMethodCash, ErrInvalidAmount},
		{"negative", "-10", model.PaymentMethodCash, ErrInvalidAmount},
		{"sub-cent", "10.005", model.PaymentMethodCash, ErrInvalidAmount},
		{"unknown method", "10", "bitcoin", ErrInvalidPaymentMethod},
		{"one cent over", "1000.01", model.PaymentMethodCheck, ErrOverpaymentRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ApplyPayment(inv, PaymentRequest{Amount: dec(tt.amount), Method: tt.method}, testNow)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	state, err := ApplyPayment(inv, PaymentRequest{Amount: dec("1000"), Method: model.PaymentMethodCheck}, testNow)
	require.NoError(t, err)
	assert.True(t, state.Remaining.IsZero())
	assert.Len(t, state.Payments, 1)
	assert.Equal(t, testNow, state.Payments[0].PaymentDate)
}

func TestApplyPaymentTrimsOptionalReferences(t *testing.T) {
	inv := newTestInvoice(t, "100", testNow.AddDate(0, 0, 5))
	blank := "  "
	check := " 10023 "

	state, err := ApplyPayment(inv, PaymentRequest{
		Amount:          dec("10"),
		Method:          model.PaymentMethodCheck,
		CheckNumber:     &check,
		ReferenceNumber: &blank,
	}, testNow)
	require.NoError(t, err)
	p := state.Payments[0]
	require.NotNil(t, p.CheckNumber)
	assert.Equal(t, "10023", *p.CheckNumber)
	assert.Nil(t, p.ReferenceNumber)
}

func TestLedgerConservation(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for run := 0; run < 50; run++ {
		inv := newTestInvoice(t, "2500.75", testNow.AddDate(0, 0, 5))
		accepted := decimal.Zero

		for step := 0; step < 20; step++ {
			amount := decimal.New(rng.Int63n(90000)+1, -2)
			next, err := RecordPayment(inv, PaymentRequest{
				Amount:          amount,
				Method:          model.PaymentMethodACH,
				ExpectedVersion: inv.Version,
			}, testNow)
			if err != nil {
				assert.ErrorIs(t, err, ErrOverpaymentRejected)
				assert.True(t, amount.GreaterThan(RemainingBalance(inv)))
				continue
			}
			inv = next
			accepted = accepted.Add(amount)

			assert.True(t, inv.PaidAmount.Equal(accepted))
			assert.True(t, inv.PaidAmount.Equal(sumPayments(inv.Payments)))
			assert.True(t, inv.PaidAmount.LessThanOrEqual(inv.TotalCost))
		}

		remaining := RemainingBalance(inv)
		_, err := RecordPayment(inv, PaymentRequest{
			Amount:          remaining.Add(dec("0.01")),
			Method:          model.PaymentMethodACH,
			ExpectedVersion: inv.Version,
		}, testNow)
		assert.ErrorIs(t, err, ErrOverpaymentRejected)
	}
}

func TestVoidPayment(t *testing.T) {
	inv := newTestInvoice(t, "1000", testNow.AddDate(0, 0, -3))
	inv = pay(t, inv, "400")
	require.Equal(t, model.InvoiceStatusPartialPaid, inv.Status)
	paymentID := inv.Payments[0].ID

	voided, err := VoidPayment(inv, VoidRequest{
		PaymentID:       paymentID,
		Reason:          "bounced check",
		VoidedBy:        uuid.New(),
		ExpectedVersion: inv.Version,
	}, testNow)
	require.NoError(t, err)

	assert.Len(t, voided.Payments, 1, "voided payments stay on the ledger")
	assert.True(t, voided.PaidAmount.IsZero())
	assert.Equal(t, model.InvoiceStatusOverdue, voided.Status, "past due invoice falls back past Pending")
	assert.Equal(t, model.StatusSourceVoid, voided.StatusSource)

	_, err = VoidPayment(voided, VoidRequest{PaymentID: paymentID, Reason: "again", ExpectedVersion: voided.Version}, testNow)
	assert.ErrorIs(t, err, ErrPaymentAlreadyVoided)

	_, err = VoidPayment(voided, VoidRequest{PaymentID: uuid.New(), Reason: "x", ExpectedVersion: voided.Version}, testNow)
	assert.ErrorIs(t, err, ErrPaymentNotFound)

	_, err = VoidPayment(inv, VoidRequest{PaymentID: paymentID, ExpectedVersion: inv.Version}, testNow)
	assert.ErrorIs(t, err, ErrMissingRequiredField)
}

func TestVoidCannotDrivePaidNegative(t *testing.T) {
	inv := newTestInvoice(t, "1000", testNow.AddDate(0, 0, 5))
	inv = pay(t, inv, "400")
	inv, err := SetManualStatus(inv, ManualStatusRequest{
		Status:          model.InvoiceStatusPartialPaid,
		PaidAmount:      decimalPtr("100"),
		ExpectedVersion: inv.Version,
	}, testNow)
	require.NoError(t, err)
	require.True(t, inv.ManualAdjustment.Equal(dec("-300")))

	_, err = VoidPayment(inv, VoidRequest{PaymentID: inv.Payments[0].ID, Reason: "x", ExpectedVersion: inv.Version}, testNow)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}
