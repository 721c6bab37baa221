package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/nurpe/invoice-engine/internal/engine"
	"github.com/nurpe/invoice-engine/internal/http/middleware"
	"github.com/nurpe/invoice-engine/internal/model"
	"github.com/nurpe/invoice-engine/internal/service"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypePDF  = "application/pdf"
)

type Handler struct {
	invoices       *service.InvoiceService
	maxUploadBytes int64
	log            zerolog.Logger
}

func NewHandler(invoices *service.InvoiceService, maxUploadMB int64, log zerolog.Logger) *Handler {
	return &Handler{
		invoices:       invoices,
		maxUploadBytes: maxUploadMB << 20,
		log:            log.With().Str("component", "http").Logger(),
	}
}

func (h *Handler) Register(router *gin.Engine, authMiddleware gin.HandlerFunc) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	protected := router.Group("/")
	protected.Use(authMiddleware)
	protected.POST("/invoices", h.createInvoice)
	protected.GET("/invoices", h.listInvoices)
	protected.POST("/invoices/sweep", h.sweepInvoices)
	protected.GET("/invoices/export/xlsx", h.exportStatementXLSX)
	protected.GET("/invoices/:id", h.getInvoice)
	protected.GET("/invoices/:id/export", h.exportInvoice)
	protected.GET("/invoices/:id/export/pdf", h.exportInvoicePDF)
	protected.POST("/invoices/:id/payments", h.recordPayment)
	protected.POST("/invoices/:id/payments/:paymentId/void", h.voidPayment)
	protected.POST("/invoices/:id/payments/:paymentId/documents", h.attachPaymentDocument)
	protected.GET("/invoices/:id/payments/:paymentId/documents", h.paymentDocumentLinks)
	protected.POST("/invoices/:id/status", h.setManualStatus)
}

type invoiceResponse struct {
	*model.Invoice
	OpenBalance decimal.Decimal `json:"open_balance"`
	Discrepancy bool            `json:"discrepancy"`
}

func newInvoiceResponse(inv *model.Invoice) invoiceResponse {
	return invoiceResponse{
		Invoice:     inv,
		OpenBalance: engine.OpenBalance(inv),
		Discrepancy: inv.Discrepancy(),
	}
}

type workItemRequest struct {
	Name        string          `json:"name"`
	Description *string         `json:"description"`
	Quantity    json.RawMessage `json:"quantity"`
	Unit        string          `json:"unit"`
	UnitPrice   json.RawMessage `json:"unit_price"`
}

type createInvoiceRequest struct {
	ClientReference             string            `json:"client_reference"`
	WorkItems                   []workItemRequest `json:"work_items"`
	SupervisionFee              json.RawMessage   `json:"supervision_fee"`
	GeneralConditionsPercentage json.RawMessage   `json:"general_conditions_percentage"`
	InvoiceDate                 string            `json:"invoice_date"`
	DueDate                     string            `json:"due_date"`
}

func (h *Handler) createInvoice(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var req createInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	items := make([]engine.WorkItemInput, 0, len(req.WorkItems))
	for i, item := range req.WorkItems {
		quantity, err := parseDecimal(item.Quantity, decimal.Zero)
		if err != nil {
			h.handleError(c, fmt.Errorf("work item %d quantity: %w", i+1, err))
			return
		}
		unitPrice, err := parseDecimal(item.UnitPrice, decimal.Zero)
		if err != nil {
			h.handleError(c, fmt.Errorf("work item %d unit_price: %w", i+1, err))
			return
		}
		items = append(items, engine.WorkItemInput{
			Name:        item.Name,
			Description: item.Description,
			Quantity:    quantity,
			Unit:        item.Unit,
			UnitPrice:   unitPrice,
		})
	}

	fee, err := parseDecimal(req.SupervisionFee, decimal.Zero)
	if err != nil {
		h.handleError(c, fmt.Errorf("supervision_fee: %w", err))
		return
	}

	var percentage *decimal.Decimal
	if raw, present := rawValue(req.GeneralConditionsPercentage); present {
		percentage = lo.ToPtr(engine.ParsePercentage(raw))
	}

	invoiceDate, err := parseOptionalDate(req.InvoiceDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid invoice_date"})
		return
	}
	dueDate, err := parseOptionalDate(req.DueDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid due_date"})
		return
	}

	inv, err := h.invoices.CreateInvoice(c.Request.Context(), service.CreateInvoiceInput{
		Principal:       principal,
		ClientReference: req.ClientReference,
		WorkItems:       items,
		SupervisionFee:  fee,
		Percentage:      percentage,
		InvoiceDate:     invoiceDate,
		DueDate:         dueDate,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newInvoiceResponse(inv))
}

func (h *Handler) listInvoices(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	result, err := h.invoices.ListInvoices(c.Request.Context(), principal, time.Time{})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"invoices":         lo.Map(result.Invoices, func(inv *model.Invoice, _ int) invoiceResponse { return newInvoiceResponse(inv) }),
		"transitioned_ids": result.TransitionedIDs,
	})
}

type sweepRequest struct {
	Now string `json:"now"`
}

func (h *Handler) sweepInvoices(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var req sweepRequest
	if c.Request.Body != nil && c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	now, err := parseOptionalDate(req.Now)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid now"})
		return
	}

	result, err := h.invoices.ListInvoices(c.Request.Context(), principal, now)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transitioned_ids": result.TransitionedIDs})
}

func (h *Handler) getInvoice(c *gin.Context) {
	principal, id, ok := h.principalAndInvoiceID(c)
	if !ok {
		return
	}
	inv, err := h.invoices.GetInvoice(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, newInvoiceResponse(inv))
}

func (h *Handler) exportInvoice(c *gin.Context) {
	principal, id, ok := h.principalAndInvoiceID(c)
	if !ok {
		return
	}
	report, err := h.invoices.ExportInvoice(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) exportInvoicePDF(c *gin.Context) {
	principal, id, ok := h.principalAndInvoiceID(c)
	if !ok {
		return
	}
	result, err := h.invoices.ExportInvoicePDF(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=\""+result.FileName+"\"")
	c.Data(http.StatusOK, contentTypePDF, result.Content)
}

func (h *Handler) exportStatementXLSX(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	result, err := h.invoices.ExportStatementXLSX(c.Request.Context(), principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=\""+result.FileName+"\"")
	c.Data(http.StatusOK, contentTypeXLSX, result.Content)
}

type recordPaymentRequest struct {
	Amount          json.RawMessage `json:"amount"`
	PaymentDate     string          `json:"payment_date"`
	Method          string          `json:"method"`
	CheckNumber     *string         `json:"check_number"`
	ReferenceNumber *string         `json:"reference_number"`
	Notes           string          `json:"notes"`
	Version         int             `json:"version" binding:"required"`
}

// recordPayment accepts JSON, or multipart with the JSON in a "payload"
// field and files under "documents".
func (h *Handler) recordPayment(c *gin.Context) {
	principal, id, ok := h.principalAndInvoiceID(c)
	if !ok {
		return
	}

	var (
		req         recordPaymentRequest
		attachments []service.Attachment
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+(1<<20))
		form, err := c.MultipartForm()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
			return
		}
		payload := form.Value["payload"]
		if len(payload) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "payload field required"})
			return
		}
		if err := json.Unmarshal([]byte(payload[0]), &req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
			return
		}
		files, closeAll, err := h.openAttachments(form.File["documents"])
		defer closeAll()
		if err != nil {
			h.handleError(c, err)
			return
		}
		attachments = files
	} else if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Version <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "version is required"})
		return
	}

	raw, _ := rawValue(req.Amount)
	amount, err := engine.ParseAmount(raw)
	if err != nil {
		h.handleError(c, err)
		return
	}
	paymentDate, err := parseOptionalDate(req.PaymentDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payment_date"})
		return
	}

	result, err := h.invoices.RecordPayment(c.Request.Context(), service.RecordPaymentInput{
		Principal: principal,
		InvoiceID: id,
		Payment: engine.PaymentRequest{
			Amount:          amount,
			PaymentDate:     paymentDate,
			Method:          model.PaymentMethod(strings.TrimSpace(req.Method)),
			CheckNumber:     req.CheckNumber,
			ReferenceNumber: req.ReferenceNumber,
			Notes:           req.Notes,
			ExpectedVersion: req.Version,
		},
		Attachments: attachments,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"invoice":            newInvoiceResponse(result.Invoice),
		"payment":            result.Payment,
		"status":             result.Invoice.Status,
		"paid_amount":        result.Invoice.PaidAmount,
		"open_balance":       result.OpenBalance,
		"failed_attachments": result.FailedAttachments,
	})
}

type voidPaymentRequest struct {
	Reason  string `json:"reason"`
	Version int    `json:"version" binding:"required"`
}

func (h *Handler) voidPayment(c *gin.Context) {
	principal, id, ok := h.principalAndInvoiceID(c)
	if !ok {
		return
	}
	paymentID, err := uuid.Parse(c.Param("paymentId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payment id"})
		return
	}

	var req voidPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	inv, err := h.invoices.VoidPayment(c.Request.Context(), principal, id, engine.VoidRequest{
		PaymentID:       paymentID,
		Reason:          req.Reason,
		ExpectedVersion: req.Version,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, newInvoiceResponse(inv))
}

func (h *Handler) attachPaymentDocument(c *gin.Context) {
	principal, id, ok := h.principalAndInvoiceID(c)
	if !ok {
		return
	}
	paymentID, err := uuid.Parse(c.Param("paymentId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payment id"})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+(1<<20))
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file field required"})
		return
	}
	files, closeAll, err := h.openAttachments([]*multipart.FileHeader{header})
	defer closeAll()
	if err != nil {
		h.handleError(c, err)
		return
	}

	key, err := h.invoices.AttachPaymentDocument(c.Request.Context(), principal, id, paymentID, files[0])
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"document": key})
}

func (h *Handler) paymentDocumentLinks(c *gin.Context) {
	principal, id, ok := h.principalAndInvoiceID(c)
	if !ok {
		return
	}
	paymentID, err := uuid.Parse(c.Param("paymentId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payment id"})
		return
	}

	links, err := h.invoices.PaymentDocumentLinks(c.Request.Context(), principal, id, paymentID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": links})
}

type manualStatusRequest struct {
	Status     string          `json:"status" binding:"required"`
	PaidAmount json.RawMessage `json:"paid_amount"`
	Reason     string          `json:"reason"`
	Version    int             `json:"version" binding:"required"`
}

func (h *Handler) setManualStatus(c *gin.Context) {
	principal, id, ok := h.principalAndInvoiceID(c)
	if !ok {
		return
	}

	var req manualStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var paid *decimal.Decimal
	if raw, present := rawValue(req.PaidAmount); present {
		amount, err := engine.ParseAmount(raw)
		if err != nil {
			h.handleError(c, err)
			return
		}
		paid = &amount
	}

	inv, err := h.invoices.SetManualStatus(c.Request.Context(), principal, id, engine.ManualStatusRequest{
		Status:          parseStatus(req.Status),
		PaidAmount:      paid,
		Reason:          req.Reason,
		ExpectedVersion: req.Version,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, newInvoiceResponse(inv))
}

func (h *Handler) principalAndInvoiceID(c *gin.Context) (model.Principal, uuid.UUID, bool) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return model.Principal{}, uuid.Nil, false
	}
	id, err := uuid.Parse(strings.TrimSpace(c.Param("id")))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid invoice id"})
		return model.Principal{}, uuid.Nil, false
	}
	return principal, id, true
}

func (h *Handler) openAttachments(headers []*multipart.FileHeader) ([]service.Attachment, func(), error) {
	var opened []multipart.File
	closeAll := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}

	attachments := make([]service.Attachment, 0, len(headers))
	for _, header := range headers {
		if header.Size > h.maxUploadBytes {
			return nil, closeAll, fmt.Errorf("%w: %s exceeds the %d MB upload limit", service.ErrInvalidInput, header.Filename, h.maxUploadBytes>>20)
		}
		file, err := header.Open()
		if err != nil {
			return nil, closeAll, err
		}
		opened = append(opened, file)
		attachments = append(attachments, service.Attachment{
			FileName:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Body:        file,
		})
	}
	return attachments, closeAll, nil
}

func (h *Handler) handleError(c *gin.Context, err error) {
	body := gin.H{"error": err.Error()}
	if code := engine.Code(err); code != "" {
		body["code"] = code
	}
	if hint := engine.Hint(err); hint != "" {
		body["hint"] = hint
	}

	switch {
	case errors.Is(err, service.ErrPermissionDenied):
		body["code"] = "permission_denied"
		c.JSON(http.StatusForbidden, body)
	case errors.Is(err, service.ErrInvalidInput):
		body["code"] = "invalid_input"
		c.JSON(http.StatusBadRequest, body)
	case errors.Is(err, service.ErrDocumentsDisabled):
		body["code"] = "documents_disabled"
		c.JSON(http.StatusServiceUnavailable, body)
	case errors.Is(err, engine.ErrInvoiceNotFound), errors.Is(err, engine.ErrPaymentNotFound):
		c.JSON(http.StatusNotFound, body)
	case errors.Is(err, engine.ErrOverpaymentRejected),
		errors.Is(err, engine.ErrVersionConflict),
		errors.Is(err, engine.ErrPaymentAlreadyVoided):
		c.JSON(http.StatusConflict, body)
	case errors.Is(err, engine.ErrMissingRequiredField),
		errors.Is(err, engine.ErrInvalidAmount),
		errors.Is(err, engine.ErrInvalidPartialAmount),
		errors.Is(err, engine.ErrInvalidPaymentMethod),
		errors.Is(err, engine.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, body)
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// rawValue unwraps a JSON number or string. Absent and null are not present.
func rawValue(raw json.RawMessage) (string, bool) {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	return text, true
}

func parseDecimal(raw json.RawMessage, fallback decimal.Decimal) (decimal.Decimal, error) {
	text, present := rawValue(raw)
	if !present || strings.TrimSpace(text) == "" {
		return fallback, nil
	}
	return engine.ParseAmount(text)
}

func parseStatus(raw string) model.InvoiceStatus {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	switch strings.ReplaceAll(normalized, "_", "") {
	case "PARTIALPAID":
		return model.InvoiceStatusPartialPaid
	default:
		return model.InvoiceStatus(normalized)
	}
}

func parseOptionalDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02",
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, service.ErrInvalidInput
}
