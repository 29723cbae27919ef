package repository

import (
	"context"
	"errors"

	"bizledger/internal/apperror"
	"bizledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CreditNoteRepository interface {
	Create(ctx context.Context, note *model.CreditNote) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.CreditNote, error)
	// FindByIDForUpdate loads the credit note under a row lock; must run
	// inside a transaction.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.CreditNote, error)
	List(ctx context.Context, page, limit int) ([]model.CreditNote, int64, error)
	// ListAvailableByClient returns the client's credit notes that still
	// have a remaining balance and are not cancelled, newest first.
	ListAvailableByClient(ctx context.Context, clientID uuid.UUID) ([]model.CreditNote, error)
	Update(ctx context.Context, note *model.CreditNote) error
}

type creditNoteRepository struct {
	db *gorm.DB
}

func NewCreditNoteRepository(db *gorm.DB) CreditNoteRepository {
	return &creditNoteRepository{db: db}
}

func (r *creditNoteRepository) Create(ctx context.Context, note *model.CreditNote) error {
	return GetDB(ctx, r.db).Create(note).Error
}

func (r *creditNoteRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.CreditNote, error) {
	var note model.CreditNote
	if err := GetDB(ctx, r.db).First(&note, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFoundf("credit note not found")
		}
		return nil, err
	}
	return &note, nil
}

func (r *creditNoteRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.CreditNote, error) {
	var note model.CreditNote
	if err := GetDB(ctx, r.db).Clauses(forUpdate()).First(&note, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFoundf("credit note not found")
		}
		return nil, err
	}
	return &note, nil
}

func (r *creditNoteRepository) List(ctx context.Context, page, limit int) ([]model.CreditNote, int64, error) {
	var notes []model.CreditNote
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.CreditNote{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Order("created_at desc").Offset(offset).Limit(limit).Find(&notes).Error; err != nil {
		return nil, 0, err
	}
	return notes, total, nil
}

func (r *creditNoteRepository) ListAvailableByClient(ctx context.Context, clientID uuid.UUID) ([]model.CreditNote, error) {
	var notes []model.CreditNote
	err := GetDB(ctx, r.db).
		Where("client_id = ? AND remaining_amount > 0 AND status <> ?", clientID, model.CreditNoteCancelled).
		Order("created_at desc").
		Find(&notes).Error
	if err != nil {
		return nil, err
	}
	return notes, nil
}

func (r *creditNoteRepository) Update(ctx context.Context, note *model.CreditNote) error {
	return GetDB(ctx, r.db).Omit("Client").Save(note).Error
}
