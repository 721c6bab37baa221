package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "pgcrypto";`,
	`CREATE TABLE IF NOT EXISTS invoices (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		organization_id UUID NOT NULL,
		invoice_number VARCHAR(64) NOT NULL,
		client_reference TEXT NOT NULL,
		general_conditions_percentage NUMERIC(7,4) NOT NULL,
		supervision_fee NUMERIC(18,2) NOT NULL DEFAULT 0,
		line_items_total NUMERIC(18,2) NOT NULL,
		general_conditions NUMERIC(18,2) NOT NULL,
		total_cost NUMERIC(18,2) NOT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'PENDING',
		status_source VARCHAR(16) NOT NULL DEFAULT 'create',
		paid_amount NUMERIC(18,2) NOT NULL DEFAULT 0,
		manual_adjustment NUMERIC(18,2) NOT NULL DEFAULT 0,
		invoice_date DATE NOT NULL,
		due_date DATE NOT NULL,
		created_by UUID NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT chk_invoices_status CHECK (status IN ('PENDING', 'OVERDUE', 'PARTIAL_PAID', 'PAID', 'CANCELLED')),
		CONSTRAINT chk_invoices_paid_non_negative CHECK (paid_amount >= 0)
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_invoices_number ON invoices (invoice_number);`,
	`CREATE INDEX IF NOT EXISTS idx_invoices_organization ON invoices (organization_id, invoice_date DESC);`,
	`CREATE INDEX IF NOT EXISTS idx_invoices_pending_due ON invoices (due_date) WHERE status = 'PENDING';`,
	`CREATE TABLE IF NOT EXISTS invoice_work_items (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		invoice_id UUID NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		description TEXT,
		quantity NUMERIC(18,4) NOT NULL,
		unit VARCHAR(32) NOT NULL DEFAULT '',
		unit_price NUMERIC(18,4) NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_invoice_work_items_invoice ON invoice_work_items (invoice_id, position);`,
	`CREATE TABLE IF NOT EXISTS invoice_payments (
		id UUID PRIMARY KEY,
		invoice_id UUID NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
		amount NUMERIC(18,2) NOT NULL CHECK (amount > 0),
		payment_date TIMESTAMPTZ NOT NULL,
		method VARCHAR(16) NOT NULL,
		check_number VARCHAR(64),
		reference_number VARCHAR(128),
		paid_by UUID NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_invoice_payments_invoice ON invoice_payments (invoice_id, created_at);`,
	`CREATE TABLE IF NOT EXISTS payment_documents (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		payment_id UUID NOT NULL REFERENCES invoice_payments(id) ON DELETE CASCADE,
		object_key TEXT NOT NULL,
		uploaded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_payment_documents_key ON payment_documents (payment_id, object_key);`,
	`CREATE TABLE IF NOT EXISTS payment_voids (
		id UUID PRIMARY KEY,
		invoice_id UUID NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
		payment_id UUID NOT NULL REFERENCES invoice_payments(id),
		reason TEXT NOT NULL,
		voided_by UUID NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_payment_voids_payment ON payment_voids (payment_id);`,
	`CREATE TABLE IF NOT EXISTS invoice_manual_overrides (
		id UUID PRIMARY KEY,
		invoice_id UUID NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
		status VARCHAR(16) NOT NULL,
		paid_amount NUMERIC(18,2) NOT NULL CHECK (paid_amount >= 0),
		reason TEXT NOT NULL DEFAULT '',
		by_user_id UUID NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_invoice_manual_overrides_invoice ON invoice_manual_overrides (invoice_id, created_at);`,
	`CREATE TABLE IF NOT EXISTS invoice_status_events (
		id UUID PRIMARY KEY,
		invoice_id UUID NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
		from_status VARCHAR(16) NOT NULL,
		to_status VARCHAR(16) NOT NULL,
		source VARCHAR(16) NOT NULL,
		actor_id UUID,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_invoice_status_events_invoice ON invoice_status_events (invoice_id, created_at);`,
	`CREATE TABLE IF NOT EXISTS invoice_sequences (
		year INTEGER PRIMARY KEY,
		last_value BIGINT NOT NULL
	);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
