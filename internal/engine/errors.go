package engine

import (
	"github.com/cockroachdb/errors"
)

// Error kinds. Concrete failures wrap one of these and carry a hint
// describing what the caller can do about it.
var (
	ErrMissingRequiredField = errors.New("missing required field")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrOverpaymentRejected  = errors.New("overpayment rejected")
	ErrInvalidPartialAmount = errors.New("invalid partial amount")
	ErrInvoiceNotFound      = errors.New("invoice not found")
	ErrVersionConflict      = errors.New("version conflict")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrInvalidStatus        = errors.New("invalid status")
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrPaymentAlreadyVoided = errors.New("payment already voided")
)

var errorCodes = map[error]string{
	ErrMissingRequiredField: "missing_required_field",
	ErrInvalidAmount:        "invalid_amount",
	ErrOverpaymentRejected:  "overpayment_rejected",
	ErrInvalidPartialAmount: "invalid_partial_amount",
	ErrInvoiceNotFound:      "invoice_not_found",
	ErrVersionConflict:      "version_conflict",
	ErrInvalidPaymentMethod: "invalid_payment_method",
	ErrInvalidStatus:        "invalid_status",
	ErrPaymentNotFound:      "payment_not_found",
	ErrPaymentAlreadyVoided: "payment_already_voided",
}

func fail(kind error, format string, args ...any) error {
	return errors.WithHintf(errors.WithStack(kind), format, args...)
}

// Code returns the machine-readable kind of err, or "" when err is not an
// engine error.
func Code(err error) string {
	for kind, code := range errorCodes {
		if errors.Is(err, kind) {
			return code
		}
	}
	return ""
}

// Hint returns the first actionable hint attached to err.
func Hint(err error) string {
	hints := errors.GetAllHints(err)
	if len(hints) == 0 {
		return ""
	}
	return hints[0]
}
