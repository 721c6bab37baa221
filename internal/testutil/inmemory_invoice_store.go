package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/nurpe/invoice-engine/internal/engine"
	"github.com/nurpe/invoice-engine/internal/model"
)

// InMemoryInvoiceStore implements service.InvoiceRepository
type InMemoryInvoiceStore struct {
	mu        sync.Mutex
	invoices  map[uuid.UUID]*model.Invoice
	sequences map[int]int64
	updates   int
}

func NewInMemoryInvoiceStore() *InMemoryInvoiceStore {
	return &InMemoryInvoiceStore{
		invoices:  map[uuid.UUID]*model.Invoice{},
		sequences: map[int]int64{},
	}
}

func (s *InMemoryInvoiceStore) Create(_ context.Context, inv *model.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.invoices[inv.ID]; exists {
		return fmt.Errorf("invoice %s already exists", inv.ID)
	}
	s.invoices[inv.ID] = engine.Clone(inv)
	return nil
}

func (s *InMemoryInvoiceStore) Get(_ context.Context, id uuid.UUID) (*model.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invoices[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", engine.ErrInvoiceNotFound, id)
	}
	return engine.Clone(inv), nil
}

func (s *InMemoryInvoiceStore) ListByOrganization(_ context.Context, orgID uuid.UUID) ([]*model.Invoice, error) {
	return s.list(func(inv *model.Invoice) bool { return inv.OrganizationID == orgID }), nil
}

func (s *InMemoryInvoiceStore) ListByStatus(_ context.Context, status model.InvoiceStatus) ([]*model.Invoice, error) {
	return s.list(func(inv *model.Invoice) bool { return inv.Status == status }), nil
}

func (s *InMemoryInvoiceStore) list(keep func(*model.Invoice) bool) []*model.Invoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := lo.FilterMap(lo.Values(s.invoices), func(inv *model.Invoice, _ int) (*model.Invoice, bool) {
		if !keep(inv) {
			return nil, false
		}
		return engine.Clone(inv), true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].InvoiceNumber < out[j].InvoiceNumber })
	return out
}

func (s *InMemoryInvoiceStore) Update(_ context.Context, inv *model.Invoice, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.invoices[inv.ID]
	if !ok {
		return fmt.Errorf("%w: %s", engine.ErrInvoiceNotFound, inv.ID)
	}
	if stored.Version != expectedVersion {
		return fmt.Errorf("%w: stored version %d, expected %d", engine.ErrVersionConflict, stored.Version, expectedVersion)
	}
	// Documents attached after the caller loaded inv must survive the write.
	next := engine.Clone(inv)
	for i := range next.Payments {
		if existing, ok := stored.FindPayment(next.Payments[i].ID); ok {
			next.Payments[i].Documents = lo.Union(existing.Documents, next.Payments[i].Documents)
		}
	}
	s.invoices[inv.ID] = next
	s.updates++
	return nil
}

func (s *InMemoryInvoiceStore) NextInvoiceSequence(_ context.Context, year int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sequences[year]++
	return s.sequences[year], nil
}

func (s *InMemoryInvoiceStore) AddPaymentDocument(_ context.Context, paymentID uuid.UUID, key string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inv := range s.invoices {
		if p, ok := inv.FindPayment(paymentID); ok {
			if !lo.Contains(p.Documents, key) {
				p.Documents = append(p.Documents, key)
			}
			return nil
		}
	}
	return fmt.Errorf("%w: %s", engine.ErrPaymentNotFound, paymentID)
}

// Bump advances the stored version as a concurrent writer would.
func (s *InMemoryInvoiceStore) Bump(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoices[id].Version++
}

func (s *InMemoryInvoiceStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.invoices)
}

func (s *InMemoryInvoiceStore) Updates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updates
}
