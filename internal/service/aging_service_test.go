package service_test

import (
	"context"
	"testing"
	"time"

	"bizledger/internal/model"
	"bizledger/internal/service"

	"github.com/stretchr/testify/suite"
)

type AgingServiceSuite struct {
	suite.Suite
	f    *fixture
	ctx  context.Context
	asOf time.Time
}

func TestAgingServiceSuite(t *testing.T) {
	suite.Run(t, new(AgingServiceSuite))
}

func (s *AgingServiceSuite) SetupTest() {
	s.f = newFixture(s.T())
	s.ctx = context.Background()
	s.asOf = time.Now()
}

// pastDue returns a due date n days before the reference date.
func (s *AgingServiceSuite) pastDue(days int) time.Time {
	return s.asOf.AddDate(0, 0, -days)
}

func (s *AgingServiceSuite) TestInvoice45DaysLateLandsInThirtyToSixty() {
	s.f.sentInvoice(s.T(), s.pastDue(45))

	report, err := s.f.agingSvc.GetAgingReport(s.ctx, s.asOf)
	s.NoError(err)

	s.Empty(report.AgingBuckets.Current)
	s.Len(report.AgingBuckets.ThirtyToSixty, 1)
	s.Empty(report.AgingBuckets.SixtyToNinety)
	s.Empty(report.AgingBuckets.OverNinety)

	s.Equal("1100", report.Totals.ThirtyToSixty)
	s.Equal("1100", report.Totals.Total)
	s.Equal("1100", report.TotalReceivables)

	client := report.ClientBreakdown[s.f.client.ID.String()]
	s.Equal("1100", client.ThirtyToSixty)
	s.Equal("1100", client.Total)
	s.Equal("Acme Corp", client.CompanyName)
}

func (s *AgingServiceSuite) TestBucketBoundaries() {
	tests := []struct {
		daysPastDue int
		bucket      string
	}{
		{0, "current"},
		{30, "current"},
		{31, "thirtyToSixty"},
		{60, "thirtyToSixty"},
		{61, "sixtyToNinety"},
		{90, "sixtyToNinety"},
		{91, "overNinety"},
		{400, "overNinety"},
	}

	for _, tt := range tests {
		f := newFixture(s.T())
		f.sentInvoice(s.T(), s.asOf.AddDate(0, 0, -tt.daysPastDue))

		report, err := f.agingSvc.GetAgingReport(s.ctx, s.asOf)
		s.NoError(err)

		counts := map[string]int{
			"current":       len(report.AgingBuckets.Current),
			"thirtyToSixty": len(report.AgingBuckets.ThirtyToSixty),
			"sixtyToNinety": len(report.AgingBuckets.SixtyToNinety),
			"overNinety":    len(report.AgingBuckets.OverNinety),
		}
		for bucket, count := range counts {
			want := 0
			if bucket == tt.bucket {
				want = 1
			}
			s.Equal(want, count, "%d days past due: bucket %s", tt.daysPastDue, bucket)
		}
	}
}

func (s *AgingServiceSuite) TestNotYetDueIsCurrent() {
	s.f.sentInvoice(s.T(), s.asOf.AddDate(0, 0, 20))

	report, err := s.f.agingSvc.GetAgingReport(s.ctx, s.asOf)
	s.NoError(err)
	s.Len(report.AgingBuckets.Current, 1)
	s.Equal("1100", report.Totals.Current)
}

func (s *AgingServiceSuite) TestDraftPaidCancelledExcluded() {
	s.f.createInvoice(s.T(), s.pastDue(45)) // draft

	paid := s.f.sentInvoice(s.T(), s.pastDue(45))
	_, err := s.f.ledgerSvc.RecordPayment(s.ctx, paid.ID, service.RecordPaymentRequest{
		Amount: "1100", Method: model.PaymentBankTransfer,
	})
	s.NoError(err)

	cancelled := s.f.createInvoice(s.T(), s.pastDue(45))
	_, err = s.f.invoiceSvc.CancelInvoice(s.ctx, cancelled.ID)
	s.NoError(err)

	report, err := s.f.agingSvc.GetAgingReport(s.ctx, s.asOf)
	s.NoError(err)
	s.Equal("0", report.TotalReceivables)
	s.Empty(report.ClientBreakdown)
}

func (s *AgingServiceSuite) TestViewedAndPartialBalancesCount() {
	inv := s.f.sentInvoice(s.T(), s.asOf.AddDate(0, 0, 5))
	_, err := s.f.invoiceSvc.MarkViewed(s.ctx, inv.ID)
	s.NoError(err)
	_, err = s.f.ledgerSvc.RecordPayment(s.ctx, inv.ID, service.RecordPaymentRequest{
		Amount: "600", Method: model.PaymentCash,
	})
	s.NoError(err)

	// push the viewed invoice 75 days past due; viewed never flips to
	// overdue but still ages
	stored, err := s.f.invoices.FindByID(s.ctx, mustUUID(s.T(), inv.ID))
	s.NoError(err)
	stored.DueDate = s.pastDue(75)
	s.NoError(s.f.invoices.Update(s.ctx, stored))

	report, err := s.f.agingSvc.GetAgingReport(s.ctx, s.asOf)
	s.NoError(err)
	s.Len(report.AgingBuckets.SixtyToNinety, 1)
	// only the open balance is receivable
	s.Equal("500", report.Totals.SixtyToNinety)
	s.Equal("500", report.TotalReceivables)
}

func (s *AgingServiceSuite) TestTotalsReconcileAcrossBucketsAndClients() {
	other := s.f.newClient(s.T(), "Globex")

	s.f.sentInvoice(s.T(), s.pastDue(10))                        // current, Acme
	s.f.sentInvoice(s.T(), s.pastDue(45))                        // 31-60, Acme
	s.f.sentInvoiceFor(s.T(), other.ID.String(), s.pastDue(100)) // >90, Globex

	report, err := s.f.agingSvc.GetAgingReport(s.ctx, s.asOf)
	s.NoError(err)

	s.Equal("1100", report.Totals.Current)
	s.Equal("1100", report.Totals.ThirtyToSixty)
	s.Equal("0", report.Totals.SixtyToNinety)
	s.Equal("1100", report.Totals.OverNinety)
	s.Equal("3300", report.Totals.Total)

	acme := report.ClientBreakdown[s.f.client.ID.String()]
	s.Equal("2200", acme.Total)
	globex := report.ClientBreakdown[other.ID.String()]
	s.Equal("1100", globex.Total)
	s.Equal("Globex", globex.CompanyName)
}

func (s *AgingServiceSuite) TestReportDoesNotMutateStore() {
	inv := s.f.sentInvoice(s.T(), s.asOf.AddDate(0, 0, 5))

	// backdate the stored due date so the report must derive overdue
	stored, err := s.f.invoices.FindByID(s.ctx, mustUUID(s.T(), inv.ID))
	s.NoError(err)
	stored.DueDate = s.pastDue(45)
	s.NoError(s.f.invoices.Update(s.ctx, stored))

	report, err := s.f.agingSvc.GetAgingReport(s.ctx, s.asOf)
	s.NoError(err)
	s.Len(report.AgingBuckets.ThirtyToSixty, 1)

	stored, err = s.f.invoices.FindByID(s.ctx, mustUUID(s.T(), inv.ID))
	s.NoError(err)
	s.Equal(model.InvoiceSent, stored.Status)
}
