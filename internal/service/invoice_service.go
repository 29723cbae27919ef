package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"bizledger/internal/apperror"
	"bizledger/internal/model"
	"bizledger/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- DTOs ---

type LineItemInput struct {
	Description string `json:"description" binding:"required"`
	Quantity    string `json:"quantity" binding:"required"`
	Rate        string `json:"rate" binding:"required"`
}

type CreateInvoiceRequest struct {
	ClientID       string          `json:"client_id" binding:"required"`
	ProjectID      string          `json:"project_id"`
	Currency       string          `json:"currency"`
	PaymentTerms   string          `json:"payment_terms"`
	IssueDate      string          `json:"issue_date"` // YYYY-MM-DD, defaults to today
	DueDate        string          `json:"due_date" binding:"required"`
	TaxRate        string          `json:"tax_rate"`
	DiscountAmount string          `json:"discount_amount"`
	DiscountType   string          `json:"discount_type" binding:"omitempty,oneof=fixed percentage"`
	Items          []LineItemInput `json:"items"`
	Notes          string          `json:"notes"`
	Terms          string          `json:"terms"`
}

// UpdateInvoiceRequest is the explicit patch type for invoices. Financial
// fields (items, rates, discount, currency, dates) are draft-only;
// annotations (notes, terms, payment terms) may change in any non-terminal
// state.
type UpdateInvoiceRequest struct {
	Currency       *string          `json:"currency"`
	PaymentTerms   *string          `json:"payment_terms"`
	IssueDate      *string          `json:"issue_date"`
	DueDate        *string          `json:"due_date"`
	TaxRate        *string          `json:"tax_rate"`
	DiscountAmount *string          `json:"discount_amount"`
	DiscountType   *string          `json:"discount_type"`
	Items          *[]LineItemInput `json:"items"`
	Notes          *string          `json:"notes"`
	Terms          *string          `json:"terms"`
}

func (r UpdateInvoiceRequest) touchesFinancials() bool {
	return r.Currency != nil || r.IssueDate != nil || r.DueDate != nil ||
		r.TaxRate != nil || r.DiscountAmount != nil || r.DiscountType != nil ||
		r.Items != nil
}

type InvoiceListFilter struct {
	Status    string
	ClientID  string
	InvoiceNo string
	Page      int
	Limit     int
}

type LineItemResponse struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	Rate        string `json:"rate"`
	Amount      string `json:"amount"`
}

type PaymentResponse struct {
	ID        string `json:"id"`
	Amount    string `json:"amount"`
	Method    string `json:"method"`
	Reference string `json:"reference"`
	Notes     string `json:"notes"`
	Date      string `json:"date"`
	CreatedAt string `json:"created_at"`
}

type CreditApplicationResponse struct {
	ID           string `json:"id"`
	CreditNoteID string `json:"credit_note_id"`
	CreditNo     string `json:"credit_no"`
	Amount       string `json:"amount"`
	AppliedDate  string `json:"applied_date"`
	CreatedAt    string `json:"created_at"`
}

type InvoiceResponse struct {
	ID             string                      `json:"id"`
	InvoiceNo      string                      `json:"invoice_no"`
	ClientID       string                      `json:"client_id"`
	ProjectID      *string                     `json:"project_id"`
	Status         string                      `json:"status"`
	Currency       string                      `json:"currency"`
	PaymentTerms   string                      `json:"payment_terms"`
	IssueDate      string                      `json:"issue_date"`
	DueDate        string                      `json:"due_date"`
	SentDate       *string                     `json:"sent_date"`
	PaidDate       *string                     `json:"paid_date"`
	TaxRate        string                      `json:"tax_rate"`
	DiscountAmount string                      `json:"discount_amount"`
	DiscountType   string                      `json:"discount_type"`
	Subtotal       string                      `json:"subtotal"`
	DiscountValue  string                      `json:"discount_value"`
	TaxAmount      string                      `json:"tax_amount"`
	Total          string                      `json:"total"`
	AmountPaid     string                      `json:"amount_paid"`
	BalanceDue     string                      `json:"balance_due"`
	Notes          string                      `json:"notes"`
	Terms          string                      `json:"terms"`
	LineItems      []LineItemResponse          `json:"line_items"`
	Payments       []PaymentResponse           `json:"payments,omitempty"`
	CreditApplied  []CreditApplicationResponse `json:"credit_applications,omitempty"`
	CreatedAt      string                      `json:"created_at"`
}

type SendInvoiceResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	SentAt  string `json:"sent_at"`
}

type DashboardStats struct {
	TotalInvoices    int               `json:"total_invoices"`
	TotalOutstanding string            `json:"total_outstanding"`
	TotalPaid        string            `json:"total_paid"`
	OverdueCount     int               `json:"overdue_count"`
	RecentInvoices   []InvoiceResponse `json:"recent_invoices"`
}

// --- Interface ---

type InvoiceService interface {
	CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (InvoiceResponse, error)
	GetInvoice(ctx context.Context, id string) (InvoiceResponse, error)
	ListInvoices(ctx context.Context, filter InvoiceListFilter) ([]InvoiceResponse, int64, error)
	UpdateInvoice(ctx context.Context, id string, req UpdateInvoiceRequest) (InvoiceResponse, error)
	DeleteInvoice(ctx context.Context, id string) error
	SendInvoice(ctx context.Context, id string, recipient string) (SendInvoiceResult, error)
	MarkViewed(ctx context.Context, id string) (InvoiceResponse, error)
	CancelInvoice(ctx context.Context, id string) (InvoiceResponse, error)
	DuplicateInvoice(ctx context.Context, id string) (InvoiceResponse, error)
	GetOutstandingInvoices(ctx context.Context) ([]InvoiceResponse, error)
	GetDashboardStats(ctx context.Context) (DashboardStats, error)
}

type invoiceService struct {
	invoiceRepo repository.InvoiceRepository
	clientRepo  repository.ClientRepository
	seqRepo     repository.SequenceRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
	notifier    Notifier
}

func NewInvoiceService(
	invoiceRepo repository.InvoiceRepository,
	clientRepo repository.ClientRepository,
	seqRepo repository.SequenceRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	notifier Notifier,
) InvoiceService {
	return &invoiceService{
		invoiceRepo: invoiceRepo,
		clientRepo:  clientRepo,
		seqRepo:     seqRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
		notifier:    notifier,
	}
}

// --- Implementation ---

func (s *invoiceService) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (InvoiceResponse, error) {
	clientID, err := uuid.Parse(req.ClientID)
	if err != nil {
		return InvoiceResponse{}, apperror.Validationf("invalid client_id: %v", err)
	}
	if _, err := s.clientRepo.FindByID(ctx, clientID); err != nil {
		return InvoiceResponse{}, err
	}

	var projectID *uuid.UUID
	if req.ProjectID != "" {
		parsed, parseErr := uuid.Parse(req.ProjectID)
		if parseErr != nil {
			return InvoiceResponse{}, apperror.Validationf("invalid project_id: %v", parseErr)
		}
		projectID = &parsed
	}

	issueDate := model.DateOnly(time.Now())
	if req.IssueDate != "" {
		if issueDate, err = parseDate("issue_date", req.IssueDate); err != nil {
			return InvoiceResponse{}, err
		}
	}
	dueDate, err := parseDate("due_date", req.DueDate)
	if err != nil {
		return InvoiceResponse{}, err
	}

	taxRate, err := parseRate("tax_rate", req.TaxRate)
	if err != nil {
		return InvoiceResponse{}, err
	}
	discountAmount, err := parseRate("discount_amount", req.DiscountAmount)
	if err != nil {
		return InvoiceResponse{}, err
	}

	discountType := req.DiscountType
	if discountType == "" {
		discountType = model.DiscountFixed
	}

	items, err := itemsFromInput(req.Items)
	if err != nil {
		return InvoiceResponse{}, err
	}

	totals := model.ComputeTotals(items, taxRate, discountAmount, discountType)
	if totals.Subtotal.Sub(totals.Discount).IsNegative() {
		return InvoiceResponse{}, apperror.Validationf("discount cannot exceed subtotal")
	}

	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}
	paymentTerms := req.PaymentTerms
	if paymentTerms == "" {
		paymentTerms = model.TermsNet30
	}

	var invoice model.Invoice
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		seq, seqErr := s.seqRepo.Next(txCtx, model.DocTypeInvoice, time.Now().Year())
		if seqErr != nil {
			return fmt.Errorf("failed to allocate invoice number: %w", seqErr)
		}

		invoice = model.Invoice{
			InvoiceNo:      fmt.Sprintf("%s-%d-%03d", model.DocTypeInvoice, time.Now().Year(), seq),
			ClientID:       clientID,
			ProjectID:      projectID,
			Status:         model.InvoiceDraft,
			Currency:       currency,
			PaymentTerms:   paymentTerms,
			IssueDate:      issueDate,
			DueDate:        dueDate,
			TaxRate:        taxRate,
			DiscountAmount: discountAmount,
			DiscountType:   discountType,
			Subtotal:       totals.Subtotal,
			DiscountValue:  totals.Discount,
			TaxAmount:      totals.Tax,
			Total:          totals.Total,
			AmountPaid:     decimal.Zero,
			BalanceDue:     totals.Total,
			Notes:          req.Notes,
			Terms:          req.Terms,
			LineItems:      items,
		}

		if createErr := s.invoiceRepo.Create(txCtx, &invoice); createErr != nil {
			return fmt.Errorf("failed to create invoice: %w", createErr)
		}

		s.audit(txCtx, model.ActionCreateInvoice, invoice.ID.String(), invoice.InvoiceNo, map[string]string{
			"total":    invoice.Total.String(),
			"currency": invoice.Currency,
		})
		return nil
	})
	if err != nil {
		return InvoiceResponse{}, err
	}

	reloaded, err := s.invoiceRepo.FindByID(ctx, invoice.ID)
	if err != nil {
		return InvoiceResponse{}, fmt.Errorf("failed to reload invoice: %w", err)
	}
	return toInvoiceResponse(*reloaded), nil
}

func (s *invoiceService) GetInvoice(ctx context.Context, id string) (InvoiceResponse, error) {
	invoice, err := s.loadFresh(ctx, id, time.Now())
	if err != nil {
		return InvoiceResponse{}, err
	}
	return toInvoiceResponse(*invoice), nil
}

func (s *invoiceService) ListInvoices(ctx context.Context, filter InvoiceListFilter) ([]InvoiceResponse, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}

	repoFilter := repository.InvoiceListFilter{
		Status:    filter.Status,
		InvoiceNo: filter.InvoiceNo,
		Page:      filter.Page,
		Limit:     filter.Limit,
	}
	if filter.ClientID != "" {
		clientID, err := uuid.Parse(filter.ClientID)
		if err != nil {
			return nil, 0, apperror.Validationf("invalid client_id: %v", err)
		}
		repoFilter.ClientID = &clientID
	}

	invoices, total, err := s.invoiceRepo.List(ctx, repoFilter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch invoices: %w", err)
	}

	now := time.Now()
	result := make([]InvoiceResponse, 0, len(invoices))
	for i := range invoices {
		s.refreshStatus(ctx, &invoices[i], now)
		result = append(result, toInvoiceResponse(invoices[i]))
	}
	return result, total, nil
}

func (s *invoiceService) UpdateInvoice(ctx context.Context, id string, req UpdateInvoiceRequest) (InvoiceResponse, error) {
	invoiceID, err := uuid.Parse(id)
	if err != nil {
		return InvoiceResponse{}, apperror.Validationf("invalid invoice id: %v", err)
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		invoice, findErr := s.invoiceRepo.FindByIDForUpdate(txCtx, invoiceID)
		if findErr != nil {
			return findErr
		}
		invoice.DeriveStatus(time.Now())

		if req.touchesFinancials() && invoice.Status != model.InvoiceDraft {
			return apperror.Validationf("cannot edit financial fields of an invoice that has been sent")
		}
		if invoice.IsTerminal() {
			return apperror.Validationf("cannot edit a %s invoice", invoice.Status)
		}

		if req.Notes != nil {
			invoice.Notes = *req.Notes
		}
		if req.Terms != nil {
			invoice.Terms = *req.Terms
		}
		if req.PaymentTerms != nil {
			invoice.PaymentTerms = *req.PaymentTerms
		}
		if req.Currency != nil {
			invoice.Currency = *req.Currency
		}
		if req.IssueDate != nil {
			if invoice.IssueDate, err = parseDate("issue_date", *req.IssueDate); err != nil {
				return err
			}
		}
		if req.DueDate != nil {
			if invoice.DueDate, err = parseDate("due_date", *req.DueDate); err != nil {
				return err
			}
		}
		if req.TaxRate != nil {
			if invoice.TaxRate, err = parseRate("tax_rate", *req.TaxRate); err != nil {
				return err
			}
		}
		if req.DiscountAmount != nil {
			if invoice.DiscountAmount, err = parseRate("discount_amount", *req.DiscountAmount); err != nil {
				return err
			}
		}
		if req.DiscountType != nil {
			if *req.DiscountType != model.DiscountFixed && *req.DiscountType != model.DiscountPercentage {
				return apperror.Validationf("invalid discount_type %q", *req.DiscountType)
			}
			invoice.DiscountType = *req.DiscountType
		}

		items := invoice.LineItems
		if req.Items != nil {
			if items, err = itemsFromInput(*req.Items); err != nil {
				return err
			}
			if replaceErr := s.invoiceRepo.ReplaceLineItems(txCtx, invoice.ID, items); replaceErr != nil {
				return fmt.Errorf("failed to replace line items: %w", replaceErr)
			}
		}

		totals := model.ComputeTotals(items, invoice.TaxRate, invoice.DiscountAmount, invoice.DiscountType)
		if totals.Subtotal.Sub(totals.Discount).IsNegative() {
			return apperror.Validationf("discount cannot exceed subtotal")
		}
		invoice.Subtotal = totals.Subtotal
		invoice.DiscountValue = totals.Discount
		invoice.TaxAmount = totals.Tax
		invoice.Total = totals.Total
		invoice.BalanceDue = invoice.Total.Sub(invoice.AmountPaid)

		if updateErr := s.invoiceRepo.Update(txCtx, invoice); updateErr != nil {
			return fmt.Errorf("failed to update invoice: %w", updateErr)
		}

		s.audit(txCtx, model.ActionUpdateInvoice, invoice.ID.String(), invoice.InvoiceNo, nil)
		return nil
	})
	if err != nil {
		return InvoiceResponse{}, err
	}

	reloaded, err := s.invoiceRepo.FindByID(ctx, invoiceID)
	if err != nil {
		return InvoiceResponse{}, fmt.Errorf("failed to reload invoice: %w", err)
	}
	return toInvoiceResponse(*reloaded), nil
}

func (s *invoiceService) DeleteInvoice(ctx context.Context, id string) error {
	invoiceID, err := uuid.Parse(id)
	if err != nil {
		return apperror.Validationf("invalid invoice id: %v", err)
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		invoice, findErr := s.invoiceRepo.FindByIDForUpdate(txCtx, invoiceID)
		if findErr != nil {
			return findErr
		}
		invoice.DeriveStatus(time.Now())

		if invoice.Status == model.InvoicePaid {
			return apperror.Validationf("cannot delete a paid invoice")
		}

		if deleteErr := s.invoiceRepo.Delete(txCtx, invoiceID); deleteErr != nil {
			return deleteErr
		}
		s.audit(txCtx, model.ActionDeleteInvoice, invoice.ID.String(), invoice.InvoiceNo, nil)
		return nil
	})
}

func (s *invoiceService) SendInvoice(ctx context.Context, id string, recipient string) (SendInvoiceResult, error) {
	invoiceID, err := uuid.Parse(id)
	if err != nil {
		return SendInvoiceResult{}, apperror.Validationf("invalid invoice id: %v", err)
	}

	var invoice *model.Invoice
	sentAt := time.Now()
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var findErr error
		invoice, findErr = s.invoiceRepo.FindByIDForUpdate(txCtx, invoiceID)
		if findErr != nil {
			return findErr
		}
		invoice.DeriveStatus(sentAt)

		if invoice.IsTerminal() {
			return apperror.Validationf("cannot send a %s invoice", invoice.Status)
		}

		sentDate := model.DateOnly(sentAt)
		invoice.Status = model.InvoiceSent
		invoice.SentDate = &sentDate
		// Sending past the due date goes straight back to overdue
		invoice.DeriveStatus(sentAt)

		if updateErr := s.invoiceRepo.Update(txCtx, invoice); updateErr != nil {
			return fmt.Errorf("failed to update invoice: %w", updateErr)
		}
		s.audit(txCtx, model.ActionSendInvoice, invoice.ID.String(), invoice.InvoiceNo, map[string]string{"recipient": recipient})
		return nil
	})
	if err != nil {
		return SendInvoiceResult{}, err
	}

	notify(s.notifier, EventInvoiceSent, toInvoiceResponse(*invoice))
	return SendInvoiceResult{
		Success: true,
		Message: fmt.Sprintf("Invoice %s sent successfully to %s", invoice.InvoiceNo, recipient),
		SentAt:  sentAt.Format(time.RFC3339),
	}, nil
}

func (s *invoiceService) MarkViewed(ctx context.Context, id string) (InvoiceResponse, error) {
	invoiceID, err := uuid.Parse(id)
	if err != nil {
		return InvoiceResponse{}, apperror.Validationf("invalid invoice id: %v", err)
	}

	var invoice *model.Invoice
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var findErr error
		invoice, findErr = s.invoiceRepo.FindByIDForUpdate(txCtx, invoiceID)
		if findErr != nil {
			return findErr
		}
		invoice.DeriveStatus(time.Now())

		switch invoice.Status {
		case model.InvoiceViewed:
			return nil // already viewed
		case model.InvoiceSent:
			invoice.Status = model.InvoiceViewed
			return s.invoiceRepo.Update(txCtx, invoice)
		default:
			return apperror.Validationf("cannot mark a %s invoice as viewed", invoice.Status)
		}
	})
	if err != nil {
		return InvoiceResponse{}, err
	}
	return toInvoiceResponse(*invoice), nil
}

func (s *invoiceService) CancelInvoice(ctx context.Context, id string) (InvoiceResponse, error) {
	invoiceID, err := uuid.Parse(id)
	if err != nil {
		return InvoiceResponse{}, apperror.Validationf("invalid invoice id: %v", err)
	}

	var invoice *model.Invoice
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var findErr error
		invoice, findErr = s.invoiceRepo.FindByIDForUpdate(txCtx, invoiceID)
		if findErr != nil {
			return findErr
		}
		invoice.DeriveStatus(time.Now())

		if invoice.IsTerminal() {
			return apperror.Validationf("cannot cancel a %s invoice", invoice.Status)
		}

		invoice.Status = model.InvoiceCancelled
		if updateErr := s.invoiceRepo.Update(txCtx, invoice); updateErr != nil {
			return fmt.Errorf("failed to update invoice: %w", updateErr)
		}
		s.audit(txCtx, model.ActionCancelInvoice, invoice.ID.String(), invoice.InvoiceNo, nil)
		return nil
	})
	if err != nil {
		return InvoiceResponse{}, err
	}

	notify(s.notifier, EventInvoiceCancelled, toInvoiceResponse(*invoice))
	return toInvoiceResponse(*invoice), nil
}

func (s *invoiceService) DuplicateInvoice(ctx context.Context, id string) (InvoiceResponse, error) {
	invoiceID, err := uuid.Parse(id)
	if err != nil {
		return InvoiceResponse{}, apperror.Validationf("invalid invoice id: %v", err)
	}

	original, err := s.invoiceRepo.FindByID(ctx, invoiceID)
	if err != nil {
		return InvoiceResponse{}, err
	}

	now := time.Now()
	var copied model.Invoice
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		seq, seqErr := s.seqRepo.Next(txCtx, model.DocTypeInvoice, now.Year())
		if seqErr != nil {
			return fmt.Errorf("failed to allocate invoice number: %w", seqErr)
		}

		items := make([]model.InvoiceLineItem, len(original.LineItems))
		for i, item := range original.LineItems {
			items[i] = model.InvoiceLineItem{
				Position:    i,
				Description: item.Description,
				Quantity:    item.Quantity,
				Rate:        item.Rate,
				Amount:      item.Quantity.Mul(item.Rate),
			}
		}

		copied = model.Invoice{
			InvoiceNo:      fmt.Sprintf("%s-%d-%03d", model.DocTypeInvoice, now.Year(), seq),
			ClientID:       original.ClientID,
			ProjectID:      original.ProjectID,
			Status:         model.InvoiceDraft,
			Currency:       original.Currency,
			PaymentTerms:   original.PaymentTerms,
			IssueDate:      model.DateOnly(now),
			DueDate:        model.DateOnly(now.AddDate(0, 0, 30)),
			TaxRate:        original.TaxRate,
			DiscountAmount: original.DiscountAmount,
			DiscountType:   original.DiscountType,
			Subtotal:       original.Subtotal,
			DiscountValue:  original.DiscountValue,
			TaxAmount:      original.TaxAmount,
			Total:          original.Total,
			AmountPaid:     decimal.Zero,
			BalanceDue:     original.Total,
			Notes:          original.Notes,
			Terms:          original.Terms,
			LineItems:      items,
		}
		if createErr := s.invoiceRepo.Create(txCtx, &copied); createErr != nil {
			return fmt.Errorf("failed to create invoice: %w", createErr)
		}
		s.audit(txCtx, model.ActionCreateInvoice, copied.ID.String(), copied.InvoiceNo, map[string]string{"duplicated_from": original.InvoiceNo})
		return nil
	})
	if err != nil {
		return InvoiceResponse{}, err
	}

	reloaded, err := s.invoiceRepo.FindByID(ctx, copied.ID)
	if err != nil {
		return InvoiceResponse{}, fmt.Errorf("failed to reload invoice: %w", err)
	}
	return toInvoiceResponse(*reloaded), nil
}

func (s *invoiceService) GetOutstandingInvoices(ctx context.Context) ([]InvoiceResponse, error) {
	invoices, err := s.invoiceRepo.ListByStatuses(ctx, []string{model.InvoiceSent, model.InvoiceViewed, model.InvoiceOverdue})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch outstanding invoices: %w", err)
	}

	now := time.Now()
	result := make([]InvoiceResponse, 0, len(invoices))
	for i := range invoices {
		s.refreshStatus(ctx, &invoices[i], now)
		result = append(result, toInvoiceResponse(invoices[i]))
	}
	return result, nil
}

func (s *invoiceService) GetDashboardStats(ctx context.Context) (DashboardStats, error) {
	invoices, err := s.invoiceRepo.ListByStatuses(ctx, nil)
	if err != nil {
		return DashboardStats{}, fmt.Errorf("failed to fetch invoices: %w", err)
	}

	now := time.Now()
	stats := DashboardStats{TotalInvoices: len(invoices)}
	outstanding := decimal.Zero
	paid := decimal.Zero
	for i := range invoices {
		s.refreshStatus(ctx, &invoices[i], now)
		switch invoices[i].Status {
		case model.InvoicePaid:
			paid = paid.Add(invoices[i].Total)
		case model.InvoiceCancelled:
			// excluded from both figures
		default:
			outstanding = outstanding.Add(invoices[i].BalanceDue)
		}
		if invoices[i].Status == model.InvoiceOverdue {
			stats.OverdueCount++
		}
	}
	stats.TotalOutstanding = outstanding.String()
	stats.TotalPaid = paid.String()

	sort.Slice(invoices, func(a, b int) bool {
		return invoices[a].CreatedAt.After(invoices[b].CreatedAt)
	})
	limit := 5
	if len(invoices) < limit {
		limit = len(invoices)
	}
	for _, inv := range invoices[:limit] {
		stats.RecentInvoices = append(stats.RecentInvoices, toInvoiceResponse(inv))
	}
	return stats, nil
}

// --- Helpers ---

// loadFresh fetches an invoice and runs lifecycle derivation so callers
// never observe a stale status. Derived changes are written back.
func (s *invoiceService) loadFresh(ctx context.Context, id string, asOf time.Time) (*model.Invoice, error) {
	invoiceID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperror.Validationf("invalid invoice id: %v", err)
	}
	invoice, err := s.invoiceRepo.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	s.refreshStatus(ctx, invoice, asOf)
	return invoice, nil
}

// refreshStatus persists a derived status change through the version-guarded
// column write, so an unlocked read path can never clobber ledger fields a
// concurrent payment just committed. Best effort: a lost guard or a failed
// write leaves the caller with the freshly derived in-memory state, and the
// next read re-derives from the winner's row.
func (s *invoiceService) refreshStatus(ctx context.Context, invoice *model.Invoice, asOf time.Time) {
	if !invoice.DeriveStatus(asOf) {
		return
	}
	err := s.invoiceRepo.UpdateDerivedStatus(ctx, invoice)
	if err != nil && !errors.Is(err, repository.ErrStaleVersion) {
		log.Printf("failed to persist derived status for %s: %v", invoice.InvoiceNo, err)
	}
}

func (s *invoiceService) audit(ctx context.Context, action, entityID, entityName string, details any) {
	writeAudit(ctx, s.auditRepo, action, entityID, entityName, details)
}

func parseDate(field, value string) (time.Time, error) {
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, apperror.Validationf("invalid %s: expected YYYY-MM-DD", field)
	}
	return parsed, nil
}

// parseRate parses a non-negative decimal, treating "" as zero.
func parseRate(field, value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, nil
	}
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, apperror.Validationf("invalid %s: %v", field, err)
	}
	if parsed.IsNegative() {
		return decimal.Decimal{}, apperror.Validationf("%s must not be negative", field)
	}
	return parsed, nil
}

func itemsFromInput(inputs []LineItemInput) ([]model.InvoiceLineItem, error) {
	items := make([]model.InvoiceLineItem, 0, len(inputs))
	for i, input := range inputs {
		quantity, err := decimal.NewFromString(input.Quantity)
		if err != nil {
			return nil, apperror.Validationf("invalid quantity on line %d: %v", i+1, err)
		}
		rate, err := decimal.NewFromString(input.Rate)
		if err != nil {
			return nil, apperror.Validationf("invalid rate on line %d: %v", i+1, err)
		}
		if !quantity.IsPositive() {
			return nil, apperror.Validationf("quantity on line %d must be positive", i+1)
		}
		if rate.IsNegative() {
			return nil, apperror.Validationf("rate on line %d must not be negative", i+1)
		}
		items = append(items, model.InvoiceLineItem{
			Position:    i,
			Description: input.Description,
			Quantity:    quantity,
			Rate:        rate,
			Amount:      quantity.Mul(rate),
		})
	}
	return items, nil
}

func formatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

func formatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatDate(*t)
	return &s
}

func toInvoiceResponse(inv model.Invoice) InvoiceResponse {
	var projectID *string
	if inv.ProjectID != nil {
		s := inv.ProjectID.String()
		projectID = &s
	}

	items := make([]LineItemResponse, 0, len(inv.LineItems))
	for _, item := range inv.LineItems {
		items = append(items, LineItemResponse{
			ID:          item.ID.String(),
			Description: item.Description,
			Quantity:    item.Quantity.String(),
			Rate:        item.Rate.String(),
			Amount:      item.Amount.String(),
		})
	}

	payments := make([]PaymentResponse, 0, len(inv.Payments))
	for _, p := range inv.Payments {
		payments = append(payments, PaymentResponse{
			ID:        p.ID.String(),
			Amount:    p.Amount.String(),
			Method:    p.Method,
			Reference: p.Reference,
			Notes:     p.Notes,
			Date:      formatDate(p.Date),
			CreatedAt: p.CreatedAt.Format(time.RFC3339),
		})
	}

	applications := make([]CreditApplicationResponse, 0, len(inv.CreditApplied))
	for _, a := range inv.CreditApplied {
		applications = append(applications, CreditApplicationResponse{
			ID:           a.ID.String(),
			CreditNoteID: a.CreditNoteID.String(),
			CreditNo:     a.CreditNo,
			Amount:       a.Amount.String(),
			AppliedDate:  formatDate(a.AppliedDate),
			CreatedAt:    a.CreatedAt.Format(time.RFC3339),
		})
	}

	return InvoiceResponse{
		ID:             inv.ID.String(),
		InvoiceNo:      inv.InvoiceNo,
		ClientID:       inv.ClientID.String(),
		ProjectID:      projectID,
		Status:         inv.Status,
		Currency:       inv.Currency,
		PaymentTerms:   inv.PaymentTerms,
		IssueDate:      formatDate(inv.IssueDate),
		DueDate:        formatDate(inv.DueDate),
		SentDate:       formatDatePtr(inv.SentDate),
		PaidDate:       formatDatePtr(inv.PaidDate),
		TaxRate:        inv.TaxRate.String(),
		DiscountAmount: inv.DiscountAmount.String(),
		DiscountType:   inv.DiscountType,
		Subtotal:       inv.Subtotal.String(),
		DiscountValue:  inv.DiscountValue.String(),
		TaxAmount:      inv.TaxAmount.String(),
		Total:          inv.Total.String(),
		AmountPaid:     inv.AmountPaid.String(),
		BalanceDue:     inv.BalanceDue.String(),
		Notes:          inv.Notes,
		Terms:          inv.Terms,
		LineItems:      items,
		Payments:       payments,
		CreditApplied:  applications,
		CreatedAt:      inv.CreatedAt.Format(time.RFC3339),
	}
}
