package repository

import (
	"context"
	"errors"

	"bizledger/internal/apperror"
	"bizledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrStaleVersion reports an optimistic write that lost to a concurrent
// writer. Callers re-read instead of retrying blindly.
var ErrStaleVersion = errors.New("invoice version is stale")

// InvoiceListFilter narrows List results.
type InvoiceListFilter struct {
	Status    string // empty for all
	ClientID  *uuid.UUID
	InvoiceNo string // partial match
	Page      int
	Limit     int
}

type InvoiceRepository interface {
	Create(ctx context.Context, invoice *model.Invoice) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Invoice, error)
	// FindByIDForUpdate loads the invoice under a row lock; must run inside
	// a transaction.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Invoice, error)
	List(ctx context.Context, filter InvoiceListFilter) ([]model.Invoice, int64, error)
	// ListByStatuses returns all invoices in any of the given statuses,
	// ordered by due date ascending. Empty slice means every status.
	ListByStatuses(ctx context.Context, statuses []string) ([]model.Invoice, error)
	Update(ctx context.Context, invoice *model.Invoice) error
	// UpdateDerivedStatus writes only status and paid_date, guarded by the
	// version the invoice was read at. Returns ErrStaleVersion when another
	// writer advanced the row first; the ledger fields are never touched.
	UpdateDerivedStatus(ctx context.Context, invoice *model.Invoice) error
	ReplaceLineItems(ctx context.Context, invoiceID uuid.UUID, items []model.InvoiceLineItem) error
	Delete(ctx context.Context, id uuid.UUID) error
	AddPayment(ctx context.Context, payment *model.Payment) error
	AddCreditApplication(ctx context.Context, application *model.CreditApplication) error
}

type invoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

func (r *invoiceRepository) Create(ctx context.Context, invoice *model.Invoice) error {
	return GetDB(ctx, r.db).Create(invoice).Error
}

func (r *invoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	var invoice model.Invoice
	err := GetDB(ctx, r.db).
		Preload("LineItems", func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }).
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at asc") }).
		Preload("CreditApplied", func(db *gorm.DB) *gorm.DB { return db.Order("created_at asc") }).
		First(&invoice, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFoundf("invoice not found")
		}
		return nil, err
	}
	return &invoice, nil
}

func (r *invoiceRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	var invoice model.Invoice
	// Lock the row first, then load associations without the lock
	if err := GetDB(ctx, r.db).Clauses(forUpdate()).First(&invoice, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFoundf("invoice not found")
		}
		return nil, err
	}
	return r.FindByID(ctx, id)
}

func (r *invoiceRepository) List(ctx context.Context, filter InvoiceListFilter) ([]model.Invoice, int64, error) {
	var invoices []model.Invoice
	var total int64

	db := GetDB(ctx, r.db)
	query := db.Model(&model.Invoice{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.ClientID != nil {
		query = query.Where("client_id = ?", *filter.ClientID)
	}
	if filter.InvoiceNo != "" {
		query = query.Where("invoice_no ILIKE ?", "%"+filter.InvoiceNo+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	if err := query.Preload("LineItems").Order("issue_date desc, created_at desc").
		Offset(offset).Limit(filter.Limit).Find(&invoices).Error; err != nil {
		return nil, 0, err
	}

	return invoices, total, nil
}

func (r *invoiceRepository) ListByStatuses(ctx context.Context, statuses []string) ([]model.Invoice, error) {
	var invoices []model.Invoice
	query := GetDB(ctx, r.db).Model(&model.Invoice{})
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	if err := query.Preload("LineItems", func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }).
		Order("due_date asc").Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *invoiceRepository) Update(ctx context.Context, invoice *model.Invoice) error {
	invoice.Version++
	return GetDB(ctx, r.db).Omit("LineItems", "Payments", "CreditApplied", "Client").Save(invoice).Error
}

func (r *invoiceRepository) UpdateDerivedStatus(ctx context.Context, invoice *model.Invoice) error {
	result := GetDB(ctx, r.db).Model(&model.Invoice{}).
		Where("id = ? AND version = ?", invoice.ID, invoice.Version).
		Updates(map[string]interface{}{
			"status":    invoice.Status,
			"paid_date": invoice.PaidDate,
			"version":   invoice.Version + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleVersion
	}
	invoice.Version++
	return nil
}

func (r *invoiceRepository) ReplaceLineItems(ctx context.Context, invoiceID uuid.UUID, items []model.InvoiceLineItem) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("invoice_id = ?", invoiceID).Delete(&model.InvoiceLineItem{}).Error; err != nil {
		return err
	}
	for i := range items {
		items[i].InvoiceID = invoiceID
		items[i].Position = i
	}
	if len(items) == 0 {
		return nil
	}
	return db.Create(&items).Error
}

func (r *invoiceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := GetDB(ctx, r.db).Delete(&model.Invoice{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperror.NotFoundf("invoice not found")
	}
	return nil
}

func (r *invoiceRepository) AddPayment(ctx context.Context, payment *model.Payment) error {
	return GetDB(ctx, r.db).Create(payment).Error
}

func (r *invoiceRepository) AddCreditApplication(ctx context.Context, application *model.CreditApplication) error {
	return GetDB(ctx, r.db).Create(application).Error
}
