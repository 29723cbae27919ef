package repository

import (
	"context"
	"errors"

	"bizledger/internal/apperror"
	"bizledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ClientRepository interface {
	Create(ctx context.Context, client *model.Client) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Client, error)
	List(ctx context.Context) ([]model.Client, error)
}

type clientRepository struct {
	db *gorm.DB
}

func NewClientRepository(db *gorm.DB) ClientRepository {
	return &clientRepository{db: db}
}

func (r *clientRepository) Create(ctx context.Context, client *model.Client) error {
	return GetDB(ctx, r.db).Create(client).Error
}

func (r *clientRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Client, error) {
	var client model.Client
	if err := GetDB(ctx, r.db).First(&client, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFoundf("client not found")
		}
		return nil, err
	}
	return &client, nil
}

func (r *clientRepository) List(ctx context.Context) ([]model.Client, error) {
	var clients []model.Client
	if err := GetDB(ctx, r.db).Order("company_name asc").Find(&clients).Error; err != nil {
		return nil, err
	}
	return clients, nil
}
