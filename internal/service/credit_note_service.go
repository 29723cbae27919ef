package service

import (
	"context"
	"fmt"
	"time"

	"bizledger/internal/apperror"
	"bizledger/internal/model"
	"bizledger/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- DTOs ---

type CreateCreditNoteRequest struct {
	ClientID  string `json:"client_id" binding:"required"`
	InvoiceID string `json:"invoice_id"` // originating invoice, optional
	Amount    string `json:"amount" binding:"required"`
	Reason    string `json:"reason"`
	Notes     string `json:"notes"`
	IssueDate string `json:"issue_date"` // YYYY-MM-DD, defaults to today
}

type CreditNoteResponse struct {
	ID              string  `json:"id"`
	CreditNo        string  `json:"credit_no"`
	ClientID        string  `json:"client_id"`
	InvoiceID       *string `json:"invoice_id"`
	Amount          string  `json:"amount"`
	AppliedAmount   string  `json:"applied_amount"`
	RemainingAmount string  `json:"remaining_amount"`
	Status          string  `json:"status"`
	Reason          string  `json:"reason"`
	Notes           string  `json:"notes"`
	IssueDate       string  `json:"issue_date"`
	CreatedAt       string  `json:"created_at"`
}

// --- Interface ---

type CreditNoteService interface {
	CreateCreditNote(ctx context.Context, req CreateCreditNoteRequest) (CreditNoteResponse, error)
	GetCreditNote(ctx context.Context, id string) (CreditNoteResponse, error)
	ListCreditNotes(ctx context.Context, page, limit int) ([]CreditNoteResponse, int64, error)
	// AvailableForClient returns the client's credit notes that still carry
	// a remaining balance, newest first. Cancelled and exhausted notes are
	// never included.
	AvailableForClient(ctx context.Context, clientID string) ([]CreditNoteResponse, error)
	// VoidCreditNote cancels a credit note that has not been applied yet.
	VoidCreditNote(ctx context.Context, id string) (CreditNoteResponse, error)
}

type creditNoteService struct {
	creditNoteRepo repository.CreditNoteRepository
	clientRepo     repository.ClientRepository
	invoiceRepo    repository.InvoiceRepository
	seqRepo        repository.SequenceRepository
	auditRepo      repository.AuditRepository
	txManager      repository.TransactionManager
	notifier       Notifier
}

func NewCreditNoteService(
	creditNoteRepo repository.CreditNoteRepository,
	clientRepo repository.ClientRepository,
	invoiceRepo repository.InvoiceRepository,
	seqRepo repository.SequenceRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	notifier Notifier,
) CreditNoteService {
	return &creditNoteService{
		creditNoteRepo: creditNoteRepo,
		clientRepo:     clientRepo,
		invoiceRepo:    invoiceRepo,
		seqRepo:        seqRepo,
		auditRepo:      auditRepo,
		txManager:      txManager,
		notifier:       notifier,
	}
}

// --- Implementation ---

func (s *creditNoteService) CreateCreditNote(ctx context.Context, req CreateCreditNoteRequest) (CreditNoteResponse, error) {
	clientID, err := uuid.Parse(req.ClientID)
	if err != nil {
		return CreditNoteResponse{}, apperror.Validationf("invalid client_id: %v", err)
	}
	if _, err := s.clientRepo.FindByID(ctx, clientID); err != nil {
		return CreditNoteResponse{}, err
	}

	var invoiceID *uuid.UUID
	if req.InvoiceID != "" {
		parsed, parseErr := uuid.Parse(req.InvoiceID)
		if parseErr != nil {
			return CreditNoteResponse{}, apperror.Validationf("invalid invoice_id: %v", parseErr)
		}
		if _, findErr := s.invoiceRepo.FindByID(ctx, parsed); findErr != nil {
			return CreditNoteResponse{}, findErr
		}
		invoiceID = &parsed
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return CreditNoteResponse{}, apperror.Validationf("invalid amount: %v", err)
	}
	if !amount.IsPositive() {
		return CreditNoteResponse{}, apperror.Validationf("credit note amount must be positive")
	}

	issueDate := model.DateOnly(time.Now())
	if req.IssueDate != "" {
		if issueDate, err = parseDate("issue_date", req.IssueDate); err != nil {
			return CreditNoteResponse{}, err
		}
	}

	var note model.CreditNote
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		seq, seqErr := s.seqRepo.Next(txCtx, model.DocTypeCreditNote, time.Now().Year())
		if seqErr != nil {
			return fmt.Errorf("failed to allocate credit note number: %w", seqErr)
		}

		note = model.CreditNote{
			CreditNo:        fmt.Sprintf("%s-%d-%03d", model.DocTypeCreditNote, time.Now().Year(), seq),
			ClientID:        clientID,
			InvoiceID:       invoiceID,
			Amount:          amount,
			AppliedAmount:   decimal.Zero,
			RemainingAmount: amount,
			Status:          model.CreditNoteDraft,
			Reason:          req.Reason,
			Notes:           req.Notes,
			IssueDate:       issueDate,
		}
		if createErr := s.creditNoteRepo.Create(txCtx, &note); createErr != nil {
			return fmt.Errorf("failed to create credit note: %w", createErr)
		}

		writeAudit(txCtx, s.auditRepo, model.ActionCreateCreditNote, note.ID.String(), note.CreditNo, map[string]string{
			"amount": note.Amount.String(),
			"reason": note.Reason,
		})
		return nil
	})
	if err != nil {
		return CreditNoteResponse{}, err
	}

	resp := toCreditNoteResponse(note)
	notify(s.notifier, EventCreditNoteCreated, resp)
	return resp, nil
}

func (s *creditNoteService) GetCreditNote(ctx context.Context, id string) (CreditNoteResponse, error) {
	noteID, err := uuid.Parse(id)
	if err != nil {
		return CreditNoteResponse{}, apperror.Validationf("invalid credit note id: %v", err)
	}
	note, err := s.creditNoteRepo.FindByID(ctx, noteID)
	if err != nil {
		return CreditNoteResponse{}, err
	}
	return toCreditNoteResponse(*note), nil
}

func (s *creditNoteService) ListCreditNotes(ctx context.Context, page, limit int) ([]CreditNoteResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	notes, total, err := s.creditNoteRepo.List(ctx, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch credit notes: %w", err)
	}

	result := make([]CreditNoteResponse, 0, len(notes))
	for _, note := range notes {
		result = append(result, toCreditNoteResponse(note))
	}
	return result, total, nil
}

func (s *creditNoteService) AvailableForClient(ctx context.Context, clientID string) ([]CreditNoteResponse, error) {
	id, err := uuid.Parse(clientID)
	if err != nil {
		return nil, apperror.Validationf("invalid client id: %v", err)
	}

	notes, err := s.creditNoteRepo.ListAvailableByClient(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch credit notes: %w", err)
	}

	result := make([]CreditNoteResponse, 0, len(notes))
	for _, note := range notes {
		result = append(result, toCreditNoteResponse(note))
	}
	return result, nil
}

func (s *creditNoteService) VoidCreditNote(ctx context.Context, id string) (CreditNoteResponse, error) {
	noteID, err := uuid.Parse(id)
	if err != nil {
		return CreditNoteResponse{}, apperror.Validationf("invalid credit note id: %v", err)
	}

	var note *model.CreditNote
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var findErr error
		note, findErr = s.creditNoteRepo.FindByIDForUpdate(txCtx, noteID)
		if findErr != nil {
			return findErr
		}

		if note.Status == model.CreditNoteCancelled {
			return apperror.Validationf("credit note %s is already cancelled", note.CreditNo)
		}
		if note.AppliedAmount.IsPositive() {
			return apperror.Validationf("cannot void credit note %s: %s already applied", note.CreditNo, note.AppliedAmount.String())
		}

		note.Status = model.CreditNoteCancelled
		if updateErr := s.creditNoteRepo.Update(txCtx, note); updateErr != nil {
			return fmt.Errorf("failed to update credit note: %w", updateErr)
		}

		writeAudit(txCtx, s.auditRepo, model.ActionVoidCreditNote, note.ID.String(), note.CreditNo, nil)
		return nil
	})
	if err != nil {
		return CreditNoteResponse{}, err
	}
	return toCreditNoteResponse(*note), nil
}

// --- Helpers ---

func toCreditNoteResponse(note model.CreditNote) CreditNoteResponse {
	var invoiceID *string
	if note.InvoiceID != nil {
		s := note.InvoiceID.String()
		invoiceID = &s
	}
	return CreditNoteResponse{
		ID:              note.ID.String(),
		CreditNo:        note.CreditNo,
		ClientID:        note.ClientID.String(),
		InvoiceID:       invoiceID,
		Amount:          note.Amount.String(),
		AppliedAmount:   note.AppliedAmount.String(),
		RemainingAmount: note.RemainingAmount.String(),
		Status:          note.Status,
		Reason:          note.Reason,
		Notes:           note.Notes,
		IssueDate:       formatDate(note.IssueDate),
		CreatedAt:       note.CreatedAt.Format(time.RFC3339),
	}
}
