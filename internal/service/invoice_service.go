package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/nurpe/invoice-engine/internal/config"
	"github.com/nurpe/invoice-engine/internal/engine"
	"github.com/nurpe/invoice-engine/internal/model"
)

type InvoiceRepository interface {
	Create(ctx context.Context, inv *model.Invoice) error
	Get(ctx context.Context, id uuid.UUID) (*model.Invoice, error)
	ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]*model.Invoice, error)
	ListByStatus(ctx context.Context, status model.InvoiceStatus) ([]*model.Invoice, error)
	// Update persists inv only if the stored version still equals expectedVersion.
	Update(ctx context.Context, inv *model.Invoice, expectedVersion int) error
	NextInvoiceSequence(ctx context.Context, year int) (int64, error)
	AddPaymentDocument(ctx context.Context, paymentID uuid.UUID, objectKey string, uploadedAt time.Time) error
}

type DocumentStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

const documentLinkTTL = 15 * time.Minute

type PDFGenerator interface {
	Generate(report model.InvoiceReport) ([]byte, error)
}

type ExcelGenerator interface {
	Generate(statement model.Statement) ([]byte, error)
}

type InvoiceService struct {
	repo         InvoiceRepository
	docs         DocumentStore
	pdf          PDFGenerator
	excel        ExcelGenerator
	numberPrefix string
	log          zerolog.Logger
	now          func() time.Time
}

func NewInvoiceService(
	repo InvoiceRepository,
	docs DocumentStore,
	pdf PDFGenerator,
	excel ExcelGenerator,
	cfg *config.Config,
	log zerolog.Logger,
) *InvoiceService {
	return &InvoiceService{
		repo:         repo,
		docs:         docs,
		pdf:          pdf,
		excel:        excel,
		numberPrefix: cfg.Invoices.NumberPrefix,
		log:          log.With().Str("component", "invoice_service").Logger(),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

type CreateInvoiceInput struct {
	Principal       model.Principal
	ClientReference string
	WorkItems       []engine.WorkItemInput
	SupervisionFee  decimal.Decimal
	Percentage      *decimal.Decimal
	InvoiceDate     time.Time
	DueDate         time.Time
}

type Attachment struct {
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type RecordPaymentInput struct {
	Principal   model.Principal
	InvoiceID   uuid.UUID
	Payment     engine.PaymentRequest
	Attachments []Attachment
}

type RecordPaymentResult struct {
	Invoice     *model.Invoice
	Payment     model.Payment
	OpenBalance decimal.Decimal
	// FailedAttachments names uploads that did not make it; the payment stands.
	FailedAttachments []string
}

type ListInvoicesResult struct {
	Invoices        []*model.Invoice
	TransitionedIDs []uuid.UUID
}

type DocumentLink struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

type FileResult struct {
	FileName string
	Content  []byte
}

func (s *InvoiceService) CreateInvoice(ctx context.Context, input CreateInvoiceInput) (*model.Invoice, error) {
	if !input.Principal.CanWrite() {
		return nil, ErrPermissionDenied
	}

	now := s.now()
	inv, err := engine.Create(engine.NewInvoice{
		OrganizationID:  input.Principal.OrgID,
		ClientReference: input.ClientReference,
		WorkItems:       input.WorkItems,
		SupervisionFee:  input.SupervisionFee,
		Percentage:      input.Percentage,
		InvoiceDate:     input.InvoiceDate,
		DueDate:         input.DueDate,
		CreatedBy:       input.Principal.UserID,
	}, now)
	if err != nil {
		return nil, err
	}

	year := inv.InvoiceDate.Year()
	seq, err := s.repo.NextInvoiceSequence(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("allocate invoice number: %w", err)
	}
	inv.InvoiceNumber = formatInvoiceNumber(s.numberPrefix, year, seq)

	if err := s.repo.Create(ctx, inv); err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}
	s.log.Info().
		Str("invoice_id", inv.ID.String()).
		Str("invoice_number", inv.InvoiceNumber).
		Str("total_cost", inv.TotalCost.StringFixed(2)).
		Msg("invoice created")
	return inv, nil
}

func (s *InvoiceService) GetInvoice(ctx context.Context, principal model.Principal, id uuid.UUID) (*model.Invoice, error) {
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.OrganizationID != principal.OrgID {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return inv, nil
}

func (s *InvoiceService) RecordPayment(ctx context.Context, input RecordPaymentInput) (*RecordPaymentResult, error) {
	if !input.Principal.CanWrite() {
		return nil, ErrPermissionDenied
	}
	inv, err := s.GetInvoice(ctx, input.Principal, input.InvoiceID)
	if err != nil {
		return nil, err
	}

	req := input.Payment
	req.PaidBy = input.Principal.UserID
	next, err := engine.RecordPayment(inv, req, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, next, inv.Version); err != nil {
		return nil, err
	}

	payment := next.Payments[len(next.Payments)-1]
	result := &RecordPaymentResult{
		Invoice:           next,
		OpenBalance:       engine.OpenBalance(next),
		FailedAttachments: []string{},
	}

	for _, att := range input.Attachments {
		key, err := s.storeDocument(ctx, next.ID, payment.ID, att)
		if err != nil {
			s.log.Warn().Err(err).
				Str("invoice_id", next.ID.String()).
				Str("payment_id", payment.ID.String()).
				Str("file_name", att.FileName).
				Msg("payment document upload failed; payment kept")
			result.FailedAttachments = append(result.FailedAttachments, att.FileName)
			continue
		}
		payment.Documents = append(payment.Documents, key)
	}
	next.Payments[len(next.Payments)-1] = payment
	result.Payment = payment

	s.log.Info().
		Str("invoice_id", next.ID.String()).
		Str("amount", payment.Amount.StringFixed(2)).
		Str("status", string(next.Status)).
		Msg("payment recorded")
	return result, nil
}

func (s *InvoiceService) VoidPayment(ctx context.Context, principal model.Principal, invoiceID uuid.UUID, req engine.VoidRequest) (*model.Invoice, error) {
	if !principal.IsAdmin() {
		return nil, ErrPermissionDenied
	}
	inv, err := s.GetInvoice(ctx, principal, invoiceID)
	if err != nil {
		return nil, err
	}

	req.VoidedBy = principal.UserID
	next, err := engine.VoidPayment(inv, req, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, next, inv.Version); err != nil {
		return nil, err
	}
	return next, nil
}

func (s *InvoiceService) SetManualStatus(ctx context.Context, principal model.Principal, invoiceID uuid.UUID, req engine.ManualStatusRequest) (*model.Invoice, error) {
	if !principal.IsAdmin() {
		return nil, ErrPermissionDenied
	}
	inv, err := s.GetInvoice(ctx, principal, invoiceID)
	if err != nil {
		return nil, err
	}

	req.ActorID = principal.UserID
	next, err := engine.SetManualStatus(inv, req, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, next, inv.Version); err != nil {
		return nil, err
	}

	event := s.log.Info()
	if next.Discrepancy() {
		event = s.log.Warn()
	}
	event.
		Str("invoice_id", next.ID.String()).
		Str("status", string(next.Status)).
		Str("paid_amount", next.PaidAmount.StringFixed(2)).
		Bool("discrepancy", next.Discrepancy()).
		Msg("invoice status overridden")
	return next, nil
}

// AttachPaymentDocument retries or adds a document for an existing payment.
func (s *InvoiceService) AttachPaymentDocument(ctx context.Context, principal model.Principal, invoiceID, paymentID uuid.UUID, att Attachment) (string, error) {
	if !principal.CanWrite() {
		return "", ErrPermissionDenied
	}
	inv, err := s.GetInvoice(ctx, principal, invoiceID)
	if err != nil {
		return "", err
	}
	if _, ok := inv.FindPayment(paymentID); !ok {
		return "", fmt.Errorf("%w: payment %s", engine.ErrPaymentNotFound, paymentID)
	}
	return s.storeDocument(ctx, inv.ID, paymentID, att)
}

// PaymentDocumentLinks returns short-lived download links for a payment's documents.
func (s *InvoiceService) PaymentDocumentLinks(ctx context.Context, principal model.Principal, invoiceID, paymentID uuid.UUID) ([]DocumentLink, error) {
	if s.docs == nil {
		return nil, ErrDocumentsDisabled
	}
	inv, err := s.GetInvoice(ctx, principal, invoiceID)
	if err != nil {
		return nil, err
	}
	payment, ok := inv.FindPayment(paymentID)
	if !ok {
		return nil, fmt.Errorf("%w: payment %s", engine.ErrPaymentNotFound, paymentID)
	}

	links := make([]DocumentLink, 0, len(payment.Documents))
	for _, key := range payment.Documents {
		url, err := s.docs.PresignedURL(ctx, key, documentLinkTTL)
		if err != nil {
			return nil, err
		}
		links = append(links, DocumentLink{Key: key, URL: url})
	}
	return links, nil
}

// ListInvoices runs the overdue sweep over the organization's invoices and
// persists whatever it moved.
func (s *InvoiceService) ListInvoices(ctx context.Context, principal model.Principal, now time.Time) (*ListInvoicesResult, error) {
	invoices, err := s.repo.ListByOrganization(ctx, principal.OrgID)
	if err != nil {
		return nil, err
	}
	if now.IsZero() {
		now = s.now()
	}
	swept, ids := s.sweep(ctx, invoices, now)
	return &ListInvoicesResult{Invoices: swept, TransitionedIDs: ids}, nil
}

// SweepAll sweeps every pending invoice regardless of organization.
func (s *InvoiceService) SweepAll(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	pending, err := s.repo.ListByStatus(ctx, model.InvoiceStatusPending)
	if err != nil {
		return nil, err
	}
	if now.IsZero() {
		now = s.now()
	}
	_, ids := s.sweep(ctx, pending, now)
	return ids, nil
}

func (s *InvoiceService) sweep(ctx context.Context, original []*model.Invoice, now time.Time) ([]*model.Invoice, []uuid.UUID) {
	result := engine.Sweep(original, now)
	if len(result.Transitioned) == 0 {
		return result.Invoices, result.TransitionedIDs
	}

	failed := map[uuid.UUID]struct{}{}
	for _, inv := range result.Transitioned {
		err := s.repo.Update(ctx, inv, inv.Version-1)
		if err == nil {
			continue
		}
		failed[inv.ID] = struct{}{}
		if errors.Is(err, engine.ErrVersionConflict) {
			s.log.Debug().Str("invoice_id", inv.ID.String()).Msg("invoice changed during sweep; skipped")
		} else {
			s.log.Error().Err(err).Str("invoice_id", inv.ID.String()).Msg("persist overdue transition failed")
		}
	}

	invoices := lo.Map(result.Invoices, func(inv *model.Invoice, i int) *model.Invoice {
		if _, ok := failed[inv.ID]; ok {
			return original[i]
		}
		return inv
	})
	ids := lo.Filter(result.TransitionedIDs, func(id uuid.UUID, _ int) bool {
		_, ok := failed[id]
		return !ok
	})
	if len(ids) > 0 {
		s.log.Info().Int("count", len(ids)).Msg("invoices moved to overdue")
	}
	return invoices, ids
}

func (s *InvoiceService) ExportInvoice(ctx context.Context, principal model.Principal, id uuid.UUID) (*model.InvoiceReport, error) {
	inv, err := s.GetInvoice(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	report := engine.BuildReport(inv)
	return &report, nil
}

func (s *InvoiceService) ExportInvoicePDF(ctx context.Context, principal model.Principal, id uuid.UUID) (*FileResult, error) {
	report, err := s.ExportInvoice(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	content, err := s.pdf.Generate(*report)
	if err != nil {
		return nil, err
	}
	name := sanitizeFileName(report.InvoiceNumber)
	if name == "" {
		name = report.InvoiceID.String()
	}
	return &FileResult{FileName: fmt.Sprintf("invoice-%s.pdf", name), Content: content}, nil
}

func (s *InvoiceService) ExportStatementXLSX(ctx context.Context, principal model.Principal) (*FileResult, error) {
	now := s.now()
	list, err := s.ListInvoices(ctx, principal, now)
	if err != nil {
		return nil, err
	}
	content, err := s.excel.Generate(engine.BuildStatement(principal.OrgID, list.Invoices, now))
	if err != nil {
		return nil, err
	}
	return &FileResult{
		FileName: fmt.Sprintf("invoices-%s.xlsx", now.Format("20060102")),
		Content:  content,
	}, nil
}

func (s *InvoiceService) storeDocument(ctx context.Context, invoiceID, paymentID uuid.UUID, att Attachment) (string, error) {
	if s.docs == nil {
		return "", ErrDocumentsDisabled
	}
	name := sanitizeFileName(path.Base(att.FileName))
	if name == "" {
		name = "document"
	}
	key := fmt.Sprintf("invoices/%s/payments/%s/%s-%s", invoiceID, paymentID, uuid.NewString(), name)
	if err := s.docs.Put(ctx, key, att.Body, att.Size, att.ContentType); err != nil {
		return "", fmt.Errorf("upload %s: %w", att.FileName, err)
	}
	if err := s.repo.AddPaymentDocument(ctx, paymentID, key, s.now()); err != nil {
		return "", fmt.Errorf("record document %s: %w", key, err)
	}
	return key, nil
}

func formatInvoiceNumber(prefix string, year int, seq int64) string {
	return fmt.Sprintf("%s-%d-%06d", prefix, year, seq)
}

func sanitizeFileName(input string) string {
	result := make([]rune, 0, len(input))
	for _, r := range input {
		switch {
		case r >= 'a' && r <= 'z':
			result = append(result, r)
		case r >= 'A' && r <= 'Z':
			result = append(result, r)
		case r >= '0' && r <= '9':
			result = append(result, r)
		case r == '-', r == '_', r == '.':
			result = append(result, r)
		default:
			result = append(result, '-')
		}
	}
	return strings.Trim(string(result), "-.")
}
