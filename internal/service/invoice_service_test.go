package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"bizledger/internal/apperror"
	"bizledger/internal/model"
	"bizledger/internal/service"

	"github.com/stretchr/testify/suite"
)

type InvoiceServiceSuite struct {
	suite.Suite
	f   *fixture
	ctx context.Context
}

func TestInvoiceServiceSuite(t *testing.T) {
	suite.Run(t, new(InvoiceServiceSuite))
}

func (s *InvoiceServiceSuite) SetupTest() {
	s.f = newFixture(s.T())
	s.ctx = context.Background()
}

func (s *InvoiceServiceSuite) TestCreateComputesTotals() {
	due := time.Now().AddDate(0, 0, 30)
	inv := s.f.createInvoice(s.T(), due)

	s.Equal(model.InvoiceDraft, inv.Status)
	s.Equal("1000", inv.Subtotal)
	s.Equal("100", inv.TaxAmount)
	s.Equal("1100", inv.Total)
	s.Equal("0", inv.AmountPaid)
	s.Equal("1100", inv.BalanceDue)
	s.Len(inv.LineItems, 1)
	s.Equal(fmt.Sprintf("INV-%d-001", time.Now().Year()), inv.InvoiceNo)
}

func (s *InvoiceServiceSuite) TestCreateNumbersAreSequential() {
	due := time.Now().AddDate(0, 0, 30)
	first := s.f.createInvoice(s.T(), due)
	second := s.f.createInvoice(s.T(), due)

	year := time.Now().Year()
	s.Equal(fmt.Sprintf("INV-%d-001", year), first.InvoiceNo)
	s.Equal(fmt.Sprintf("INV-%d-002", year), second.InvoiceNo)
}

func (s *InvoiceServiceSuite) TestCreateRejectsUnknownClient() {
	_, err := s.f.invoiceSvc.CreateInvoice(s.ctx, service.CreateInvoiceRequest{
		ClientID: "3c84c8f2-91e5-44b4-b9d1-1f1fced0ab09",
		DueDate:  "2030-01-01",
		Items:    []service.LineItemInput{{Description: "x", Quantity: "1", Rate: "1"}},
	})
	s.True(apperror.IsNotFound(err))
}

func (s *InvoiceServiceSuite) TestCreateRejectsDiscountExceedingSubtotal() {
	_, err := s.f.invoiceSvc.CreateInvoice(s.ctx, service.CreateInvoiceRequest{
		ClientID:       s.f.client.ID.String(),
		DueDate:        "2030-01-01",
		DiscountAmount: "2000",
		DiscountType:   model.DiscountFixed,
		Items:          []service.LineItemInput{{Description: "x", Quantity: "10", Rate: "100"}},
	})
	s.True(apperror.IsValidation(err))
}

func (s *InvoiceServiceSuite) TestCreateRejectsNonPositiveQuantity() {
	_, err := s.f.invoiceSvc.CreateInvoice(s.ctx, service.CreateInvoiceRequest{
		ClientID: s.f.client.ID.String(),
		DueDate:  "2030-01-01",
		Items:    []service.LineItemInput{{Description: "x", Quantity: "0", Rate: "100"}},
	})
	s.True(apperror.IsValidation(err))
}

func (s *InvoiceServiceSuite) TestUpdateDraftRecomputesTotals() {
	inv := s.f.createInvoice(s.T(), time.Now().AddDate(0, 0, 30))

	items := []service.LineItemInput{{Description: "Revised", Quantity: "5", Rate: "200"}}
	taxRate := "20"
	updated, err := s.f.invoiceSvc.UpdateInvoice(s.ctx, inv.ID, service.UpdateInvoiceRequest{
		Items:   &items,
		TaxRate: &taxRate,
	})
	s.NoError(err)
	s.Equal("1000", updated.Subtotal)
	s.Equal("200", updated.TaxAmount)
	s.Equal("1200", updated.Total)
	s.Equal("1200", updated.BalanceDue)
}

func (s *InvoiceServiceSuite) TestUpdateFinancialFieldsRejectedAfterSend() {
	inv := s.f.sentInvoice(s.T(), time.Now().AddDate(0, 0, 30))

	taxRate := "20"
	_, err := s.f.invoiceSvc.UpdateInvoice(s.ctx, inv.ID, service.UpdateInvoiceRequest{TaxRate: &taxRate})
	s.True(apperror.IsValidation(err))
}

func (s *InvoiceServiceSuite) TestUpdateNotesAllowedAfterSend() {
	inv := s.f.sentInvoice(s.T(), time.Now().AddDate(0, 0, 30))

	notes := "thank you"
	updated, err := s.f.invoiceSvc.UpdateInvoice(s.ctx, inv.ID, service.UpdateInvoiceRequest{Notes: &notes})
	s.NoError(err)
	s.Equal("thank you", updated.Notes)
	s.Equal(model.InvoiceSent, updated.Status)
}

func (s *InvoiceServiceSuite) TestSendTransitionsDraftToSent() {
	inv := s.f.createInvoice(s.T(), time.Now().AddDate(0, 0, 30))

	result, err := s.f.invoiceSvc.SendInvoice(s.ctx, inv.ID, "client@example.test")
	s.NoError(err)
	s.True(result.Success)

	reloaded, err := s.f.invoiceSvc.GetInvoice(s.ctx, inv.ID)
	s.NoError(err)
	s.Equal(model.InvoiceSent, reloaded.Status)
	s.NotNil(reloaded.SentDate)
}

func (s *InvoiceServiceSuite) TestSendPastDueGoesStraightToOverdue() {
	inv := s.f.createInvoice(s.T(), time.Now().AddDate(0, 0, -5))

	_, err := s.f.invoiceSvc.SendInvoice(s.ctx, inv.ID, "client@example.test")
	s.NoError(err)

	reloaded, err := s.f.invoiceSvc.GetInvoice(s.ctx, inv.ID)
	s.NoError(err)
	s.Equal(model.InvoiceOverdue, reloaded.Status)
}

func (s *InvoiceServiceSuite) TestSendCancelledRejected() {
	inv := s.f.createInvoice(s.T(), time.Now().AddDate(0, 0, 30))
	_, err := s.f.invoiceSvc.CancelInvoice(s.ctx, inv.ID)
	s.NoError(err)

	_, err = s.f.invoiceSvc.SendInvoice(s.ctx, inv.ID, "client@example.test")
	s.True(apperror.IsValidation(err))
}

func (s *InvoiceServiceSuite) TestMarkViewed() {
	inv := s.f.sentInvoice(s.T(), time.Now().AddDate(0, 0, 30))

	viewed, err := s.f.invoiceSvc.MarkViewed(s.ctx, inv.ID)
	s.NoError(err)
	s.Equal(model.InvoiceViewed, viewed.Status)

	// idempotent
	again, err := s.f.invoiceSvc.MarkViewed(s.ctx, inv.ID)
	s.NoError(err)
	s.Equal(model.InvoiceViewed, again.Status)
}

func (s *InvoiceServiceSuite) TestMarkViewedRejectsDraft() {
	inv := s.f.createInvoice(s.T(), time.Now().AddDate(0, 0, 30))

	_, err := s.f.invoiceSvc.MarkViewed(s.ctx, inv.ID)
	s.True(apperror.IsValidation(err))
}

func (s *InvoiceServiceSuite) TestDeletePaidRejected() {
	inv := s.f.sentInvoice(s.T(), time.Now().AddDate(0, 0, 30))
	_, err := s.f.ledgerSvc.RecordPayment(s.ctx, inv.ID, service.RecordPaymentRequest{
		Amount: "1100", Method: model.PaymentBankTransfer,
	})
	s.NoError(err)

	err = s.f.invoiceSvc.DeleteInvoice(s.ctx, inv.ID)
	s.True(apperror.IsValidation(err))

	_, err = s.f.invoiceSvc.GetInvoice(s.ctx, inv.ID)
	s.NoError(err)
}

func (s *InvoiceServiceSuite) TestDeleteDraft() {
	inv := s.f.createInvoice(s.T(), time.Now().AddDate(0, 0, 30))

	s.NoError(s.f.invoiceSvc.DeleteInvoice(s.ctx, inv.ID))

	_, err := s.f.invoiceSvc.GetInvoice(s.ctx, inv.ID)
	s.True(apperror.IsNotFound(err))
}

func (s *InvoiceServiceSuite) TestCancelPaidRejected() {
	inv := s.f.sentInvoice(s.T(), time.Now().AddDate(0, 0, 30))
	_, err := s.f.ledgerSvc.RecordPayment(s.ctx, inv.ID, service.RecordPaymentRequest{
		Amount: "1100", Method: model.PaymentCash,
	})
	s.NoError(err)

	_, err = s.f.invoiceSvc.CancelInvoice(s.ctx, inv.ID)
	s.True(apperror.IsValidation(err))
}

func (s *InvoiceServiceSuite) TestDuplicateResetsLedger() {
	inv := s.f.sentInvoice(s.T(), time.Now().AddDate(0, 0, 30))
	_, err := s.f.ledgerSvc.RecordPayment(s.ctx, inv.ID, service.RecordPaymentRequest{
		Amount: "500", Method: model.PaymentCard,
	})
	s.NoError(err)

	copied, err := s.f.invoiceSvc.DuplicateInvoice(s.ctx, inv.ID)
	s.NoError(err)
	s.Equal(model.InvoiceDraft, copied.Status)
	s.NotEqual(inv.InvoiceNo, copied.InvoiceNo)
	s.Equal("1100", copied.Total)
	s.Equal("0", copied.AmountPaid)
	s.Equal("1100", copied.BalanceDue)
	s.Len(copied.LineItems, 1)
	s.Empty(copied.Payments)
}

func (s *InvoiceServiceSuite) TestListFiltersByStatus() {
	due := time.Now().AddDate(0, 0, 30)
	s.f.createInvoice(s.T(), due)
	s.f.sentInvoice(s.T(), due)

	drafts, total, err := s.f.invoiceSvc.ListInvoices(s.ctx, service.InvoiceListFilter{Status: model.InvoiceDraft})
	s.NoError(err)
	s.Equal(int64(1), total)
	s.Len(drafts, 1)
	s.Equal(model.InvoiceDraft, drafts[0].Status)
}

func (s *InvoiceServiceSuite) TestGetRefreshesOverdueStatus() {
	inv := s.f.sentInvoice(s.T(), time.Now().AddDate(0, 0, 5))

	// Backdate the stored due date so the invoice is now late.
	stored, err := s.f.invoices.FindByID(s.ctx, mustUUID(s.T(), inv.ID))
	s.NoError(err)
	stored.DueDate = time.Now().AddDate(0, 0, -5)
	s.NoError(s.f.invoices.Update(s.ctx, stored))

	reloaded, err := s.f.invoiceSvc.GetInvoice(s.ctx, inv.ID)
	s.NoError(err)
	s.Equal(model.InvoiceOverdue, reloaded.Status)
}

func (s *InvoiceServiceSuite) TestDashboardStats() {
	due := time.Now().AddDate(0, 0, 30)
	s.f.createInvoice(s.T(), due)
	s.f.sentInvoice(s.T(), due)
	paid := s.f.sentInvoice(s.T(), due)
	_, err := s.f.ledgerSvc.RecordPayment(s.ctx, paid.ID, service.RecordPaymentRequest{
		Amount: "1100", Method: model.PaymentStripe,
	})
	s.NoError(err)

	stats, err := s.f.invoiceSvc.GetDashboardStats(s.ctx)
	s.NoError(err)
	s.Equal(3, stats.TotalInvoices)
	s.Equal("2200", stats.TotalOutstanding) // draft + sent balances
	s.Equal("1100", stats.TotalPaid)
	s.Equal(0, stats.OverdueCount)
	s.NotEmpty(stats.RecentInvoices)
}

func (s *InvoiceServiceSuite) TestAuditTrailWritten() {
	inv := s.f.createInvoice(s.T(), time.Now().AddDate(0, 0, 30))
	_, err := s.f.invoiceSvc.SendInvoice(s.ctx, inv.ID, "client@example.test")
	s.NoError(err)

	s.Equal([]string{model.ActionCreateInvoice, model.ActionSendInvoice}, s.f.audits.Actions())
}

func (s *InvoiceServiceSuite) TestStatusRefreshKeepsConcurrentPayment() {
	inv := s.f.sentInvoice(s.T(), time.Now().AddDate(0, 0, 30))

	stored, err := s.f.invoices.FindByID(s.ctx, mustUUID(s.T(), inv.ID))
	s.NoError(err)
	stored.DueDate = time.Now().AddDate(0, 0, -5)
	s.NoError(s.f.invoices.Update(s.ctx, stored))

	// A payment commits between GetInvoice's unlocked read and its
	// overdue write-back. The guarded write must lose and leave the
	// payment's ledger fields untouched.
	s.f.invoices.AfterFind = func(*model.Invoice) {
		s.f.invoices.AfterFind = nil
		_, payErr := s.f.ledgerSvc.RecordPayment(s.ctx, inv.ID, service.RecordPaymentRequest{
			Amount: "700", Method: "bank_transfer", Date: time.Now().Format("2006-01-02"),
		})
		s.NoError(payErr)
	}

	_, err = s.f.invoiceSvc.GetInvoice(s.ctx, inv.ID)
	s.NoError(err)

	after, err := s.f.invoices.FindByID(s.ctx, mustUUID(s.T(), inv.ID))
	s.NoError(err)
	s.Equal("700", after.AmountPaid.String())
	s.Equal("400", after.BalanceDue.String())
	s.Len(after.Payments, 1)
	s.True(after.CheckLedgerInvariant())
}

func (s *InvoiceServiceSuite) TestStatusRefreshPersistsWhenUncontended() {
	inv := s.f.sentInvoice(s.T(), time.Now().AddDate(0, 0, 30))

	stored, err := s.f.invoices.FindByID(s.ctx, mustUUID(s.T(), inv.ID))
	s.NoError(err)
	stored.DueDate = time.Now().AddDate(0, 0, -5)
	s.NoError(s.f.invoices.Update(s.ctx, stored))
	version := stored.Version

	got, err := s.f.invoiceSvc.GetInvoice(s.ctx, inv.ID)
	s.NoError(err)
	s.Equal(model.InvoiceOverdue, got.Status)

	after, err := s.f.invoices.FindByID(s.ctx, mustUUID(s.T(), inv.ID))
	s.NoError(err)
	s.Equal(model.InvoiceOverdue, after.Status)
	s.Equal(version+1, after.Version)
}

func (s *InvoiceServiceSuite) TestOutstandingInvoicesSortedByDueDate() {
	later := s.f.sentInvoice(s.T(), time.Now().AddDate(0, 0, 60))
	sooner := s.f.sentInvoice(s.T(), time.Now().AddDate(0, 0, 10))
	s.f.createInvoice(s.T(), time.Now().AddDate(0, 0, 5)) // draft, excluded

	paid := s.f.sentInvoice(s.T(), time.Now().AddDate(0, 0, 20))
	_, err := s.f.ledgerSvc.RecordPayment(s.ctx, paid.ID, service.RecordPaymentRequest{
		Amount: "1100", Method: "bank_transfer", Date: time.Now().Format("2006-01-02"),
	})
	s.NoError(err)

	outstanding, err := s.f.invoiceSvc.GetOutstandingInvoices(s.ctx)
	s.NoError(err)
	s.Len(outstanding, 2)
	s.Equal(sooner.ID, outstanding[0].ID)
	s.Equal(later.ID, outstanding[1].ID)
	s.NotEmpty(outstanding[0].LineItems)
}

func (s *InvoiceServiceSuite) TestAuditTrailFilteredByEntity() {
	first := s.f.createInvoice(s.T(), time.Now().AddDate(0, 0, 30))
	second := s.f.createInvoice(s.T(), time.Now().AddDate(0, 0, 30))
	_, err := s.f.invoiceSvc.SendInvoice(s.ctx, second.ID, "")
	s.NoError(err)

	auditSvc := service.NewAuditService(s.f.audits)

	logs, total, err := auditSvc.GetAuditLogs(s.ctx, second.ID, 1, 20)
	s.NoError(err)
	s.Equal(int64(2), total)
	for _, l := range logs {
		s.Equal(second.ID, l.EntityID)
	}

	logs, total, err = auditSvc.GetAuditLogs(s.ctx, first.ID, 1, 20)
	s.NoError(err)
	s.Equal(int64(1), total)
	s.Len(logs, 1)
	s.Equal(model.ActionCreateInvoice, logs[0].Action)
}
