package service

import (
	"context"

	"bizledger/internal/apperror"
	"bizledger/internal/model"
	"bizledger/internal/repository"

	"github.com/google/uuid"
)

// --- DTOs ---

type CreateClientRequest struct {
	CompanyName string `json:"company_name" binding:"required"`
	Email       string `json:"email" binding:"omitempty,email"`
}

type ClientResponse struct {
	ID          string `json:"id"`
	CompanyName string `json:"company_name"`
	Email       string `json:"email"`
}

// --- Interface ---

// ClientService is the thin boundary to the client roster. Full client
// management lives in a separate system; invoicing only needs a valid
// counterparty to bill.
type ClientService interface {
	CreateClient(ctx context.Context, req CreateClientRequest) (ClientResponse, error)
	GetClient(ctx context.Context, id string) (ClientResponse, error)
	ListClients(ctx context.Context) ([]ClientResponse, error)
}

type clientService struct {
	clientRepo repository.ClientRepository
}

func NewClientService(clientRepo repository.ClientRepository) ClientService {
	return &clientService{clientRepo: clientRepo}
}

// --- Implementation ---

func (s *clientService) CreateClient(ctx context.Context, req CreateClientRequest) (ClientResponse, error) {
	client := &model.Client{
		CompanyName: req.CompanyName,
		Email:       req.Email,
	}
	if err := s.clientRepo.Create(ctx, client); err != nil {
		return ClientResponse{}, err
	}
	return toClientResponse(client), nil
}

func (s *clientService) GetClient(ctx context.Context, id string) (ClientResponse, error) {
	clientID, err := uuid.Parse(id)
	if err != nil {
		return ClientResponse{}, apperror.Validationf("invalid client id: %v", err)
	}
	client, err := s.clientRepo.FindByID(ctx, clientID)
	if err != nil {
		return ClientResponse{}, err
	}
	return toClientResponse(client), nil
}

func (s *clientService) ListClients(ctx context.Context) ([]ClientResponse, error) {
	clients, err := s.clientRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]ClientResponse, 0, len(clients))
	for i := range clients {
		result = append(result, toClientResponse(&clients[i]))
	}
	return result, nil
}

func toClientResponse(client *model.Client) ClientResponse {
	return ClientResponse{
		ID:          client.ID.String(),
		CompanyName: client.CompanyName,
		Email:       client.Email,
	}
}
