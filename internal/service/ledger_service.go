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

type RecordPaymentRequest struct {
	Amount    string `json:"amount" binding:"required"`
	Method    string `json:"method" binding:"required,oneof=bank_transfer check cash card paypal stripe other"`
	Reference string `json:"reference"`
	Notes     string `json:"notes"`
	Date      string `json:"date"` // YYYY-MM-DD, defaults to today
}

// ApplyCreditResult carries both updated entities so the caller can render
// a combined receipt.
type ApplyCreditResult struct {
	Invoice           InvoiceResponse    `json:"invoice"`
	CreditNote        CreditNoteResponse `json:"credit_note"`
	ApplicationAmount string             `json:"application_amount"`
}

// --- Interface ---

// LedgerService is the only writer of invoice ledger fields (amount_paid,
// balance_due) and credit note balances. Each call is a new economic
// event; idempotence is the caller's concern.
type LedgerService interface {
	RecordPayment(ctx context.Context, invoiceID string, req RecordPaymentRequest) (InvoiceResponse, error)
	ApplyCreditNote(ctx context.Context, creditNoteID, invoiceID, amount string) (ApplyCreditResult, error)
}

type ledgerService struct {
	invoiceRepo    repository.InvoiceRepository
	creditNoteRepo repository.CreditNoteRepository
	auditRepo      repository.AuditRepository
	txManager      repository.TransactionManager
	notifier       Notifier
}

func NewLedgerService(
	invoiceRepo repository.InvoiceRepository,
	creditNoteRepo repository.CreditNoteRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	notifier Notifier,
) LedgerService {
	return &ledgerService{
		invoiceRepo:    invoiceRepo,
		creditNoteRepo: creditNoteRepo,
		auditRepo:      auditRepo,
		txManager:      txManager,
		notifier:       notifier,
	}
}

// --- Implementation ---

func (s *ledgerService) RecordPayment(ctx context.Context, invoiceID string, req RecordPaymentRequest) (InvoiceResponse, error) {
	id, err := uuid.Parse(invoiceID)
	if err != nil {
		return InvoiceResponse{}, apperror.Validationf("invalid invoice id: %v", err)
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return InvoiceResponse{}, apperror.Validationf("invalid amount: %v", err)
	}
	if !amount.IsPositive() {
		return InvoiceResponse{}, apperror.Validationf("payment amount must be positive")
	}

	paymentDate := model.DateOnly(time.Now())
	if req.Date != "" {
		if paymentDate, err = parseDate("date", req.Date); err != nil {
			return InvoiceResponse{}, err
		}
	}

	var invoice *model.Invoice
	var becamePaid bool
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var findErr error
		invoice, findErr = s.invoiceRepo.FindByIDForUpdate(txCtx, id)
		if findErr != nil {
			return findErr
		}
		invoice.DeriveStatus(time.Now())

		remaining := invoice.Total.Sub(invoice.AmountPaid)
		if amount.GreaterThan(remaining) {
			return apperror.Validationf("payment amount cannot exceed remaining balance of %s", remaining.String())
		}

		payment := &model.Payment{
			InvoiceID: invoice.ID,
			Amount:    amount,
			Method:    req.Method,
			Reference: req.Reference,
			Notes:     req.Notes,
			Date:      paymentDate,
		}
		if addErr := s.invoiceRepo.AddPayment(txCtx, payment); addErr != nil {
			return fmt.Errorf("failed to record payment: %w", addErr)
		}

		invoice.AmountPaid = invoice.AmountPaid.Add(amount)
		invoice.BalanceDue = invoice.Total.Sub(invoice.AmountPaid)
		wasPaid := invoice.Status == model.InvoicePaid
		// paid_date, if derivation flips the status now, is the date of the
		// payment that crossed the threshold
		invoice.DeriveStatus(paymentDate)
		becamePaid = !wasPaid && invoice.Status == model.InvoicePaid

		if !invoice.CheckLedgerInvariant() {
			return apperror.Consistencyf("ledger invariant violated on invoice %s", invoice.InvoiceNo)
		}

		if updateErr := s.invoiceRepo.Update(txCtx, invoice); updateErr != nil {
			return fmt.Errorf("failed to update invoice: %w", updateErr)
		}

		writeAudit(txCtx, s.auditRepo, model.ActionRecordPayment, invoice.ID.String(), invoice.InvoiceNo, map[string]string{
			"amount": amount.String(),
			"method": req.Method,
		})
		return nil
	})
	if err != nil {
		return InvoiceResponse{}, err
	}

	reloaded, err := s.invoiceRepo.FindByID(ctx, id)
	if err != nil {
		return InvoiceResponse{}, fmt.Errorf("failed to reload invoice: %w", err)
	}

	resp := toInvoiceResponse(*reloaded)
	notify(s.notifier, EventPaymentRecorded, resp)
	if becamePaid {
		notify(s.notifier, EventInvoicePaid, resp)
	}
	return resp, nil
}

func (s *ledgerService) ApplyCreditNote(ctx context.Context, creditNoteID, invoiceID, amountInput string) (ApplyCreditResult, error) {
	noteID, err := uuid.Parse(creditNoteID)
	if err != nil {
		return ApplyCreditResult{}, apperror.Validationf("invalid credit note id: %v", err)
	}
	invID, err := uuid.Parse(invoiceID)
	if err != nil {
		return ApplyCreditResult{}, apperror.Validationf("invalid invoice id: %v", err)
	}

	amount, err := decimal.NewFromString(amountInput)
	if err != nil {
		return ApplyCreditResult{}, apperror.Validationf("invalid amount: %v", err)
	}
	if !amount.IsPositive() {
		return ApplyCreditResult{}, apperror.Validationf("application amount must be positive")
	}

	var invoice *model.Invoice
	var note *model.CreditNote
	var becamePaid bool
	appliedDate := model.DateOnly(time.Now())

	// Both rows are locked and updated inside one transaction. Lock order is
	// fixed (credit note, then invoice) so concurrent applications cannot
	// deadlock.
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var findErr error
		note, findErr = s.creditNoteRepo.FindByIDForUpdate(txCtx, noteID)
		if findErr != nil {
			return findErr
		}
		invoice, findErr = s.invoiceRepo.FindByIDForUpdate(txCtx, invID)
		if findErr != nil {
			return findErr
		}
		invoice.DeriveStatus(time.Now())

		if note.Status == model.CreditNoteCancelled {
			return apperror.Validationf("credit note %s has been cancelled", note.CreditNo)
		}
		if amount.GreaterThan(note.RemainingAmount) {
			return apperror.Validationf("amount cannot exceed remaining credit balance of %s", note.RemainingAmount.String())
		}
		if amount.GreaterThan(invoice.BalanceDue) {
			return apperror.Validationf("credit amount cannot exceed invoice balance of %s", invoice.BalanceDue.String())
		}

		note.AppliedAmount = note.AppliedAmount.Add(amount)
		note.RemainingAmount = note.RemainingAmount.Sub(amount)
		if note.RemainingAmount.IsZero() {
			note.Status = model.CreditNoteApplied
		}
		if !note.CheckConservation() {
			return apperror.Consistencyf("credit note conservation violated on %s", note.CreditNo)
		}

		application := &model.CreditApplication{
			InvoiceID:    invoice.ID,
			CreditNoteID: note.ID,
			CreditNo:     note.CreditNo,
			Amount:       amount,
			AppliedDate:  appliedDate,
		}
		if addErr := s.invoiceRepo.AddCreditApplication(txCtx, application); addErr != nil {
			return fmt.Errorf("failed to record credit application: %w", addErr)
		}

		invoice.AmountPaid = invoice.AmountPaid.Add(amount)
		invoice.BalanceDue = invoice.Total.Sub(invoice.AmountPaid)
		wasPaid := invoice.Status == model.InvoicePaid
		invoice.DeriveStatus(appliedDate)
		becamePaid = !wasPaid && invoice.Status == model.InvoicePaid

		if !invoice.CheckLedgerInvariant() {
			return apperror.Consistencyf("ledger invariant violated on invoice %s", invoice.InvoiceNo)
		}

		if updateErr := s.creditNoteRepo.Update(txCtx, note); updateErr != nil {
			return fmt.Errorf("failed to update credit note: %w", updateErr)
		}
		if updateErr := s.invoiceRepo.Update(txCtx, invoice); updateErr != nil {
			return fmt.Errorf("failed to update invoice: %w", updateErr)
		}

		writeAudit(txCtx, s.auditRepo, model.ActionApplyCreditNote, note.ID.String(), note.CreditNo, map[string]string{
			"invoice_no": invoice.InvoiceNo,
			"amount":     amount.String(),
		})
		return nil
	})
	if err != nil {
		return ApplyCreditResult{}, err
	}

	reloaded, err := s.invoiceRepo.FindByID(ctx, invID)
	if err != nil {
		return ApplyCreditResult{}, fmt.Errorf("failed to reload invoice: %w", err)
	}

	result := ApplyCreditResult{
		Invoice:           toInvoiceResponse(*reloaded),
		CreditNote:        toCreditNoteResponse(*note),
		ApplicationAmount: amount.String(),
	}
	notify(s.notifier, EventCreditNoteApplied, result)
	if becamePaid {
		notify(s.notifier, EventInvoicePaid, result.Invoice)
	}
	return result, nil
}
