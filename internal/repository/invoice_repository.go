package repository

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nurpe/invoice-engine/internal/engine"
	"github.com/nurpe/invoice-engine/internal/model"
)

type InvoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

func (r *InvoiceRepository) Create(ctx context.Context, inv *model.Invoice) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record := toInvoiceRecord(inv)
		if err := tx.Create(&record).Error; err != nil {
			return err
		}
		items := lo.Map(inv.WorkItems, func(w model.WorkItem, _ int) workItemRecord {
			return toWorkItemRecord(inv.ID, w)
		})
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return err
			}
		}
		return insertLedger(tx, inv)
	})
}

func (r *InvoiceRepository) Get(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	var record invoiceRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.WithHintf(errors.WithStack(engine.ErrInvoiceNotFound), "invoice %s does not exist", id)
	}
	if err != nil {
		return nil, err
	}
	invoices, err := r.hydrate(ctx, []invoiceRecord{record})
	if err != nil {
		return nil, err
	}
	return invoices[0], nil
}

func (r *InvoiceRepository) ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]*model.Invoice, error) {
	var records []invoiceRecord
	err := r.db.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Order("invoice_date DESC, invoice_number DESC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return r.hydrate(ctx, records)
}

func (r *InvoiceRepository) ListByStatus(ctx context.Context, status model.InvoiceStatus) ([]*model.Invoice, error) {
	var records []invoiceRecord
	err := r.db.WithContext(ctx).
		Where("status = ?", string(status)).
		Order("due_date ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return r.hydrate(ctx, records)
}

// Update writes the invoice header guarded by the version it was read at and
// appends any ledger rows not yet stored. Work items never change after Create.
func (r *InvoiceRepository) Update(ctx context.Context, inv *model.Invoice, expectedVersion int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record := toInvoiceRecord(inv)
		res := tx.Model(&invoiceRecord{}).
			Where("id = ? AND version = ?", inv.ID, expectedVersion).
			Select(
				"status", "status_source", "paid_amount", "manual_adjustment",
				"version", "updated_at",
			).
			Updates(&record)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var current int
			err := tx.Model(&invoiceRecord{}).Select("version").Where("id = ?", inv.ID).Scan(&current).Error
			if err != nil {
				return err
			}
			if current == 0 {
				return errors.WithStack(engine.ErrInvoiceNotFound)
			}
			return errors.WithHintf(errors.WithStack(engine.ErrVersionConflict),
				"invoice %s is at version %d but version %d was expected; reload and retry", inv.InvoiceNumber, current, expectedVersion)
		}
		return insertLedger(tx, inv)
	})
}

func (r *InvoiceRepository) NextInvoiceSequence(ctx context.Context, year int) (int64, error) {
	var value int64
	err := r.db.WithContext(ctx).Raw(`
		INSERT INTO invoice_sequences (year, last_value)
		VALUES (?, 1)
		ON CONFLICT (year) DO UPDATE SET last_value = invoice_sequences.last_value + 1
		RETURNING last_value
	`, year).Scan(&value).Error
	if err != nil {
		return 0, err
	}
	return value, nil
}

func (r *InvoiceRepository) AddPaymentDocument(ctx context.Context, paymentID uuid.UUID, objectKey string, uploadedAt time.Time) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&paymentDocumentRecord{
			ID:         uuid.New(),
			PaymentID:  paymentID,
			ObjectKey:  objectKey,
			UploadedAt: uploadedAt,
		}).Error
}

func insertLedger(tx *gorm.DB, inv *model.Invoice) error {
	ignore := clause.OnConflict{DoNothing: true}

	payments := lo.Map(inv.Payments, func(p model.Payment, _ int) paymentRecord {
		return toPaymentRecord(p)
	})
	if len(payments) > 0 {
		if err := tx.Clauses(ignore).Create(&payments).Error; err != nil {
			return err
		}
	}

	docs := lo.FlatMap(inv.Payments, func(p model.Payment, _ int) []paymentDocumentRecord {
		return lo.Map(p.Documents, func(key string, _ int) paymentDocumentRecord {
			return paymentDocumentRecord{ID: uuid.New(), PaymentID: p.ID, ObjectKey: key, UploadedAt: p.CreatedAt}
		})
	})
	if len(docs) > 0 {
		if err := tx.Clauses(ignore).Create(&docs).Error; err != nil {
			return err
		}
	}

	voids := lo.Map(inv.Voids, func(v model.PaymentVoid, _ int) paymentVoidRecord {
		return paymentVoidRecord{ID: v.ID, InvoiceID: inv.ID, PaymentID: v.PaymentID, Reason: v.Reason, VoidedBy: v.VoidedBy, CreatedAt: v.CreatedAt}
	})
	if len(voids) > 0 {
		if err := tx.Clauses(ignore).Create(&voids).Error; err != nil {
			return err
		}
	}

	overrides := lo.Map(inv.Overrides, func(o model.ManualOverride, _ int) manualOverrideRecord {
		return manualOverrideRecord{
			ID:         o.ID,
			InvoiceID:  inv.ID,
			Status:     string(o.Status),
			PaidAmount: o.PaidAmount,
			Reason:     o.Reason,
			ByUserID:   o.ByUserID,
			CreatedAt:  o.At,
		}
	})
	if len(overrides) > 0 {
		if err := tx.Clauses(ignore).Create(&overrides).Error; err != nil {
			return err
		}
	}

	events := lo.Map(inv.StatusEvents, func(e model.StatusEvent, _ int) statusEventRecord {
		return statusEventRecord{
			ID:         e.ID,
			InvoiceID:  inv.ID,
			FromStatus: string(e.From),
			ToStatus:   string(e.To),
			Source:     string(e.Source),
			ActorID:    e.ActorID,
			CreatedAt:  e.CreatedAt,
		}
	})
	if len(events) > 0 {
		if err := tx.Clauses(ignore).Create(&events).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *InvoiceRepository) hydrate(ctx context.Context, records []invoiceRecord) ([]*model.Invoice, error) {
	if len(records) == 0 {
		return []*model.Invoice{}, nil
	}
	ids := lo.Map(records, func(rec invoiceRecord, _ int) uuid.UUID { return rec.ID })
	db := r.db.WithContext(ctx)

	var items []workItemRecord
	if err := db.Where("invoice_id IN ?", ids).Order("position ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	var payments []paymentRecord
	if err := db.Where("invoice_id IN ?", ids).Order("created_at ASC, id ASC").Find(&payments).Error; err != nil {
		return nil, err
	}
	var docs []paymentDocumentRecord
	if len(payments) > 0 {
		paymentIDs := lo.Map(payments, func(p paymentRecord, _ int) uuid.UUID { return p.ID })
		if err := db.Where("payment_id IN ?", paymentIDs).Order("uploaded_at ASC, object_key ASC").Find(&docs).Error; err != nil {
			return nil, err
		}
	}
	var voids []paymentVoidRecord
	if err := db.Where("invoice_id IN ?", ids).Order("created_at ASC").Find(&voids).Error; err != nil {
		return nil, err
	}
	var events []statusEventRecord
	if err := db.Where("invoice_id IN ?", ids).Order("created_at ASC").Find(&events).Error; err != nil {
		return nil, err
	}
	var overrides []manualOverrideRecord
	if err := db.Where("invoice_id IN ?", ids).Order("created_at ASC, id ASC").Find(&overrides).Error; err != nil {
		return nil, err
	}

	itemsBy := lo.GroupBy(items, func(w workItemRecord) uuid.UUID { return w.InvoiceID })
	paymentsBy := lo.GroupBy(payments, func(p paymentRecord) uuid.UUID { return p.InvoiceID })
	docsBy := lo.GroupBy(docs, func(d paymentDocumentRecord) uuid.UUID { return d.PaymentID })
	voidsBy := lo.GroupBy(voids, func(v paymentVoidRecord) uuid.UUID { return v.InvoiceID })
	eventsBy := lo.GroupBy(events, func(e statusEventRecord) uuid.UUID { return e.InvoiceID })
	overridesBy := lo.GroupBy(overrides, func(o manualOverrideRecord) uuid.UUID { return o.InvoiceID })

	return lo.Map(records, func(rec invoiceRecord, _ int) *model.Invoice {
		inv := rec.toModel()
		inv.WorkItems = lo.Map(itemsBy[rec.ID], func(w workItemRecord, _ int) model.WorkItem { return w.toModel() })
		inv.Payments = lo.Map(paymentsBy[rec.ID], func(p paymentRecord, _ int) model.Payment {
			payment := p.toModel()
			payment.Documents = lo.Map(docsBy[p.ID], func(d paymentDocumentRecord, _ int) string { return d.ObjectKey })
			return payment
		})
		inv.Voids = lo.Map(voidsBy[rec.ID], func(v paymentVoidRecord, _ int) model.PaymentVoid {
			return model.PaymentVoid{ID: v.ID, PaymentID: v.PaymentID, Reason: v.Reason, VoidedBy: v.VoidedBy, CreatedAt: v.CreatedAt}
		})
		inv.StatusEvents = lo.Map(eventsBy[rec.ID], func(e statusEventRecord, _ int) model.StatusEvent {
			return model.StatusEvent{
				ID:        e.ID,
				From:      model.InvoiceStatus(e.FromStatus),
				To:        model.InvoiceStatus(e.ToStatus),
				Source:    model.StatusSource(e.Source),
				ActorID:   e.ActorID,
				CreatedAt: e.CreatedAt,
			}
		})
		inv.Overrides = lo.Map(overridesBy[rec.ID], func(o manualOverrideRecord, _ int) model.ManualOverride {
			return model.ManualOverride{
				ID:         o.ID,
				Status:     model.InvoiceStatus(o.Status),
				PaidAmount: o.PaidAmount,
				Reason:     o.Reason,
				ByUserID:   o.ByUserID,
				At:         o.CreatedAt,
			}
		})
		if n := len(inv.Overrides); n > 0 {
			inv.ManualOverride = &inv.Overrides[n-1]
		}
		return inv
	}), nil
}

type invoiceRecord struct {
	ID                          uuid.UUID `gorm:"type:uuid;primaryKey"`
	OrganizationID              uuid.UUID `gorm:"type:uuid"`
	InvoiceNumber               string
	ClientReference             string
	GeneralConditionsPercentage decimal.Decimal `gorm:"type:numeric(7,4)"`
	SupervisionFee              decimal.Decimal `gorm:"type:numeric(18,2)"`
	LineItemsTotal              decimal.Decimal `gorm:"type:numeric(18,2)"`
	GeneralConditions           decimal.Decimal `gorm:"type:numeric(18,2)"`
	TotalCost                   decimal.Decimal `gorm:"type:numeric(18,2)"`
	Status                      string
	StatusSource                string
	PaidAmount                  decimal.Decimal `gorm:"type:numeric(18,2)"`
	ManualAdjustment            decimal.Decimal `gorm:"type:numeric(18,2)"`
	InvoiceDate                 time.Time       `gorm:"type:date"`
	DueDate                     time.Time       `gorm:"type:date"`
	CreatedBy                   uuid.UUID       `gorm:"type:uuid"`
	Version                     int
	CreatedAt                   time.Time
	UpdatedAt                   time.Time
}

func (invoiceRecord) TableName() string { return "invoices" }

func toInvoiceRecord(inv *model.Invoice) invoiceRecord {
	rec := invoiceRecord{
		ID:                          inv.ID,
		OrganizationID:              inv.OrganizationID,
		InvoiceNumber:               inv.InvoiceNumber,
		ClientReference:             inv.ClientReference,
		GeneralConditionsPercentage: inv.GeneralConditionsPercentage,
		SupervisionFee:              inv.SupervisionFee,
		LineItemsTotal:              inv.LineItemsTotal,
		GeneralConditions:           inv.GeneralConditions,
		TotalCost:                   inv.TotalCost,
		Status:                      string(inv.Status),
		StatusSource:                string(inv.StatusSource),
		PaidAmount:                  inv.PaidAmount,
		ManualAdjustment:            inv.ManualAdjustment,
		InvoiceDate:                 inv.InvoiceDate,
		DueDate:                     inv.DueDate,
		CreatedBy:                   inv.CreatedBy,
		Version:                     inv.Version,
		CreatedAt:                   inv.CreatedAt,
		UpdatedAt:                   inv.UpdatedAt,
	}
	return rec
}

func (rec invoiceRecord) toModel() *model.Invoice {
	inv := &model.Invoice{
		ID:                          rec.ID,
		OrganizationID:              rec.OrganizationID,
		InvoiceNumber:               rec.InvoiceNumber,
		ClientReference:             rec.ClientReference,
		GeneralConditionsPercentage: rec.GeneralConditionsPercentage,
		SupervisionFee:              rec.SupervisionFee,
		LineItemsTotal:              rec.LineItemsTotal,
		GeneralConditions:           rec.GeneralConditions,
		TotalCost:                   rec.TotalCost,
		Status:                      model.InvoiceStatus(rec.Status),
		StatusSource:                model.StatusSource(rec.StatusSource),
		PaidAmount:                  rec.PaidAmount,
		ManualAdjustment:            rec.ManualAdjustment,
		InvoiceDate:                 rec.InvoiceDate,
		DueDate:                     rec.DueDate,
		CreatedBy:                   rec.CreatedBy,
		Version:                     rec.Version,
		CreatedAt:                   rec.CreatedAt,
		UpdatedAt:                   rec.UpdatedAt,
	}
	return inv
}

type workItemRecord struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	InvoiceID   uuid.UUID `gorm:"type:uuid"`
	Position    int
	Name        string
	Description *string
	Quantity    decimal.Decimal `gorm:"type:numeric(18,4)"`
	Unit        string
	UnitPrice   decimal.Decimal `gorm:"type:numeric(18,4)"`
}

func (workItemRecord) TableName() string { return "invoice_work_items" }

func toWorkItemRecord(invoiceID uuid.UUID, w model.WorkItem) workItemRecord {
	return workItemRecord{
		ID:          w.ID,
		InvoiceID:   invoiceID,
		Position:    w.Position,
		Name:        w.Name,
		Description: w.Description,
		Quantity:    w.Quantity,
		Unit:        w.Unit,
		UnitPrice:   w.UnitPrice,
	}
}

func (w workItemRecord) toModel() model.WorkItem {
	return model.WorkItem{
		ID:          w.ID,
		Position:    w.Position,
		Name:        w.Name,
		Description: w.Description,
		Quantity:    w.Quantity,
		Unit:        w.Unit,
		UnitPrice:   w.UnitPrice,
	}
}

type paymentRecord struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey"`
	InvoiceID       uuid.UUID       `gorm:"type:uuid"`
	Amount          decimal.Decimal `gorm:"type:numeric(18,2)"`
	PaymentDate     time.Time
	Method          string
	CheckNumber     *string
	ReferenceNumber *string
	PaidBy          uuid.UUID `gorm:"type:uuid"`
	Notes           string
	CreatedAt       time.Time
}

func (paymentRecord) TableName() string { return "invoice_payments" }

func toPaymentRecord(p model.Payment) paymentRecord {
	return paymentRecord{
		ID:              p.ID,
		InvoiceID:       p.InvoiceID,
		Amount:          p.Amount,
		PaymentDate:     p.PaymentDate,
		Method:          string(p.Method),
		CheckNumber:     p.CheckNumber,
		ReferenceNumber: p.ReferenceNumber,
		PaidBy:          p.PaidBy,
		Notes:           p.Notes,
		CreatedAt:       p.CreatedAt,
	}
}

func (p paymentRecord) toModel() model.Payment {
	return model.Payment{
		ID:              p.ID,
		InvoiceID:       p.InvoiceID,
		Amount:          p.Amount,
		PaymentDate:     p.PaymentDate,
		Method:          model.PaymentMethod(p.Method),
		CheckNumber:     p.CheckNumber,
		ReferenceNumber: p.ReferenceNumber,
		PaidBy:          p.PaidBy,
		Notes:           p.Notes,
		CreatedAt:       p.CreatedAt,
	}
}

type paymentDocumentRecord struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	PaymentID  uuid.UUID `gorm:"type:uuid"`
	ObjectKey  string
	UploadedAt time.Time
}

func (paymentDocumentRecord) TableName() string { return "payment_documents" }

type paymentVoidRecord struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	InvoiceID uuid.UUID `gorm:"type:uuid"`
	PaymentID uuid.UUID `gorm:"type:uuid"`
	Reason    string
	VoidedBy  uuid.UUID `gorm:"type:uuid"`
	CreatedAt time.Time
}

func (paymentVoidRecord) TableName() string { return "payment_voids" }

type statusEventRecord struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	InvoiceID  uuid.UUID `gorm:"type:uuid"`
	FromStatus string
	ToStatus   string
	Source     string
	ActorID    *uuid.UUID `gorm:"type:uuid"`
	CreatedAt  time.Time
}

func (statusEventRecord) TableName() string { return "invoice_status_events" }

type manualOverrideRecord struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	InvoiceID  uuid.UUID `gorm:"type:uuid"`
	Status     string
	PaidAmount decimal.Decimal `gorm:"type:numeric(18,2)"`
	Reason     string
	ByUserID   uuid.UUID `gorm:"type:uuid"`
	CreatedAt  time.Time
}

func (manualOverrideRecord) TableName() string { return "invoice_manual_overrides" }
