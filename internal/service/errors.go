package service

import (
	"errors"

	"github.com/nurpe/invoice-engine/internal/engine"
)

var (
	ErrNotFound          = engine.ErrInvoiceNotFound
	ErrPermissionDenied  = errors.New("permission denied")
	ErrInvalidInput      = errors.New("invalid input")
	ErrDocumentsDisabled = errors.New("payment documents are not configured")
)
