package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"bizledger/internal/model"
	"bizledger/internal/repository"

	"github.com/google/uuid"
)

// InMemoryInvoiceStore implements repository.InvoiceRepository over a map.
type InMemoryInvoiceStore struct {
	mu       sync.Mutex
	invoices map[uuid.UUID]*model.Invoice

	// AfterFind, when set, runs after each unlocked FindByID returns its
	// copy. Tests use it to commit a competing write between a read and
	// the write-back that follows it.
	AfterFind func(invoice *model.Invoice)
}

func NewInMemoryInvoiceStore() *InMemoryInvoiceStore {
	return &InMemoryInvoiceStore{invoices: make(map[uuid.UUID]*model.Invoice)}
}

func copyInvoice(src *model.Invoice) *model.Invoice {
	dst := *src
	dst.LineItems = append([]model.InvoiceLineItem(nil), src.LineItems...)
	dst.Payments = append([]model.Payment(nil), src.Payments...)
	dst.CreditApplied = append([]model.CreditApplication(nil), src.CreditApplied...)
	return &dst
}

func (s *InMemoryInvoiceStore) Create(ctx context.Context, invoice *model.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if invoice.ID == uuid.Nil {
		invoice.ID = uuid.New()
	}
	if invoice.CreatedAt.IsZero() {
		invoice.CreatedAt = time.Now()
	}
	for i := range invoice.LineItems {
		if invoice.LineItems[i].ID == uuid.Nil {
			invoice.LineItems[i].ID = uuid.New()
		}
		invoice.LineItems[i].InvoiceID = invoice.ID
	}
	if invoice.Version == 0 {
		invoice.Version = 1
	}
	s.invoices[invoice.ID] = copyInvoice(invoice)
	return nil
}

func (s *InMemoryInvoiceStore) find(id uuid.UUID) (*model.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	invoice, ok := s.invoices[id]
	if !ok {
		return nil, notFound("invoice", id)
	}
	return copyInvoice(invoice), nil
}

func (s *InMemoryInvoiceStore) FindByID(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	invoice, err := s.find(id)
	if err != nil {
		return nil, err
	}
	if s.AfterFind != nil {
		s.AfterFind(invoice)
	}
	return invoice, nil
}

func (s *InMemoryInvoiceStore) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	return s.find(id)
}

func (s *InMemoryInvoiceStore) List(ctx context.Context, filter repository.InvoiceListFilter) ([]model.Invoice, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []model.Invoice
	for _, invoice := range s.invoices {
		if filter.Status != "" && invoice.Status != filter.Status {
			continue
		}
		if filter.ClientID != nil && invoice.ClientID != *filter.ClientID {
			continue
		}
		if filter.InvoiceNo != "" && !strings.Contains(invoice.InvoiceNo, filter.InvoiceNo) {
			continue
		}
		matched = append(matched, *copyInvoice(invoice))
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	page, limit := filter.Page, filter.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	start := (page - 1) * limit
	if start >= len(matched) {
		return []model.Invoice{}, total, nil
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (s *InMemoryInvoiceStore) ListByStatuses(ctx context.Context, statuses []string) ([]model.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	include := func(status string) bool {
		if len(statuses) == 0 {
			return true
		}
		for _, want := range statuses {
			if status == want {
				return true
			}
		}
		return false
	}

	var matched []model.Invoice
	for _, invoice := range s.invoices {
		if include(invoice.Status) {
			matched = append(matched, *copyInvoice(invoice))
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].DueDate.Before(matched[j].DueDate)
	})
	return matched, nil
}

func (s *InMemoryInvoiceStore) Update(ctx context.Context, invoice *model.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.invoices[invoice.ID]
	if !ok {
		return notFound("invoice", invoice.ID)
	}
	invoice.Version = stored.Version + 1
	updated := copyInvoice(invoice)
	// Associations are persisted through their own methods, as the real
	// repository omits them on Update.
	updated.LineItems = stored.LineItems
	updated.Payments = stored.Payments
	updated.CreditApplied = stored.CreditApplied
	s.invoices[invoice.ID] = updated
	return nil
}

func (s *InMemoryInvoiceStore) UpdateDerivedStatus(ctx context.Context, invoice *model.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.invoices[invoice.ID]
	if !ok {
		return notFound("invoice", invoice.ID)
	}
	if stored.Version != invoice.Version {
		return repository.ErrStaleVersion
	}
	stored.Status = invoice.Status
	if invoice.PaidDate != nil {
		paidDate := *invoice.PaidDate
		stored.PaidDate = &paidDate
	} else {
		stored.PaidDate = nil
	}
	stored.Version++
	invoice.Version++
	return nil
}

func (s *InMemoryInvoiceStore) ReplaceLineItems(ctx context.Context, invoiceID uuid.UUID, items []model.InvoiceLineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	invoice, ok := s.invoices[invoiceID]
	if !ok {
		return notFound("invoice", invoiceID)
	}
	replaced := make([]model.InvoiceLineItem, len(items))
	copy(replaced, items)
	for i := range replaced {
		if replaced[i].ID == uuid.Nil {
			replaced[i].ID = uuid.New()
		}
		replaced[i].InvoiceID = invoiceID
	}
	invoice.LineItems = replaced
	return nil
}

func (s *InMemoryInvoiceStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.invoices[id]; !ok {
		return notFound("invoice", id)
	}
	delete(s.invoices, id)
	return nil
}

func (s *InMemoryInvoiceStore) AddPayment(ctx context.Context, payment *model.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	invoice, ok := s.invoices[payment.InvoiceID]
	if !ok {
		return notFound("invoice", payment.InvoiceID)
	}
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now()
	}
	invoice.Payments = append(invoice.Payments, *payment)
	return nil
}

func (s *InMemoryInvoiceStore) AddCreditApplication(ctx context.Context, application *model.CreditApplication) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	invoice, ok := s.invoices[application.InvoiceID]
	if !ok {
		return notFound("invoice", application.InvoiceID)
	}
	if application.ID == uuid.Nil {
		application.ID = uuid.New()
	}
	if application.CreatedAt.IsZero() {
		application.CreatedAt = time.Now()
	}
	invoice.CreditApplied = append(invoice.CreditApplied, *application)
	return nil
}
