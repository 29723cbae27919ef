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

type CreditNoteServiceSuite struct {
	suite.Suite
	f   *fixture
	ctx context.Context
}

func TestCreditNoteServiceSuite(t *testing.T) {
	suite.Run(t, new(CreditNoteServiceSuite))
}

func (s *CreditNoteServiceSuite) SetupTest() {
	s.f = newFixture(s.T())
	s.ctx = context.Background()
}

func (s *CreditNoteServiceSuite) TestCreate() {
	note := s.f.createCreditNote(s.T(), "500")

	s.Equal(fmt.Sprintf("CN-%d-001", time.Now().Year()), note.CreditNo)
	s.Equal(model.CreditNoteDraft, note.Status)
	s.Equal("500", note.Amount)
	s.Equal("0", note.AppliedAmount)
	s.Equal("500", note.RemainingAmount)
}

func (s *CreditNoteServiceSuite) TestNumberSequenceIndependentFromInvoices() {
	s.f.createInvoice(s.T(), time.Now().AddDate(0, 0, 30))
	note := s.f.createCreditNote(s.T(), "100")

	s.Equal(fmt.Sprintf("CN-%d-001", time.Now().Year()), note.CreditNo)
}

func (s *CreditNoteServiceSuite) TestCreateRejectsNonPositiveAmount() {
	for _, amount := range []string{"0", "-100"} {
		_, err := s.f.noteSvc.CreateCreditNote(s.ctx, service.CreateCreditNoteRequest{
			ClientID: s.f.client.ID.String(),
			Amount:   amount,
		})
		s.True(apperror.IsValidation(err), "amount %s should be rejected", amount)
	}
}

func (s *CreditNoteServiceSuite) TestCreateRejectsUnknownClient() {
	_, err := s.f.noteSvc.CreateCreditNote(s.ctx, service.CreateCreditNoteRequest{
		ClientID: "9f2a3f6e-11cb-49a1-8e10-7d6c8f7f8b1a",
		Amount:   "100",
	})
	s.True(apperror.IsNotFound(err))
}

func (s *CreditNoteServiceSuite) TestCreateRejectsUnknownInvoice() {
	_, err := s.f.noteSvc.CreateCreditNote(s.ctx, service.CreateCreditNoteRequest{
		ClientID:  s.f.client.ID.String(),
		InvoiceID: "9f2a3f6e-11cb-49a1-8e10-7d6c8f7f8b1a",
		Amount:    "100",
	})
	s.True(apperror.IsNotFound(err))
}

func (s *CreditNoteServiceSuite) TestAvailableForClientFilters() {
	other := s.f.newClient(s.T(), "Globex")

	open := s.f.createCreditNote(s.T(), "300")
	voided := s.f.createCreditNote(s.T(), "200")
	_, err := s.f.noteSvc.VoidCreditNote(s.ctx, voided.ID)
	s.NoError(err)

	exhausted := s.f.createCreditNote(s.T(), "400")
	inv := s.f.sentInvoice(s.T(), time.Now().AddDate(0, 0, 30))
	_, err = s.f.ledgerSvc.ApplyCreditNote(s.ctx, exhausted.ID, inv.ID, "400")
	s.NoError(err)

	// belongs to a different client
	_, err = s.f.noteSvc.CreateCreditNote(s.ctx, service.CreateCreditNoteRequest{
		ClientID: other.ID.String(),
		Amount:   "900",
	})
	s.NoError(err)

	available, err := s.f.noteSvc.AvailableForClient(s.ctx, s.f.client.ID.String())
	s.NoError(err)
	s.Len(available, 1)
	s.Equal(open.ID, available[0].ID)
}

func (s *CreditNoteServiceSuite) TestPartiallyAppliedNoteStaysAvailable() {
	note := s.f.createCreditNote(s.T(), "500")
	inv := s.f.sentInvoice(s.T(), time.Now().AddDate(0, 0, 30))
	_, err := s.f.ledgerSvc.ApplyCreditNote(s.ctx, note.ID, inv.ID, "300")
	s.NoError(err)

	available, err := s.f.noteSvc.AvailableForClient(s.ctx, s.f.client.ID.String())
	s.NoError(err)
	s.Len(available, 1)
	s.Equal("200", available[0].RemainingAmount)
}

func (s *CreditNoteServiceSuite) TestVoidUnappliedNote() {
	note := s.f.createCreditNote(s.T(), "500")

	voided, err := s.f.noteSvc.VoidCreditNote(s.ctx, note.ID)
	s.NoError(err)
	s.Equal(model.CreditNoteCancelled, voided.Status)
}

func (s *CreditNoteServiceSuite) TestVoidAppliedNoteRejected() {
	note := s.f.createCreditNote(s.T(), "500")
	inv := s.f.sentInvoice(s.T(), time.Now().AddDate(0, 0, 30))
	_, err := s.f.ledgerSvc.ApplyCreditNote(s.ctx, note.ID, inv.ID, "100")
	s.NoError(err)

	_, err = s.f.noteSvc.VoidCreditNote(s.ctx, note.ID)
	s.True(apperror.IsValidation(err))
}

func (s *CreditNoteServiceSuite) TestVoidTwiceRejected() {
	note := s.f.createCreditNote(s.T(), "500")
	_, err := s.f.noteSvc.VoidCreditNote(s.ctx, note.ID)
	s.NoError(err)

	_, err = s.f.noteSvc.VoidCreditNote(s.ctx, note.ID)
	s.True(apperror.IsValidation(err))
}

func (s *CreditNoteServiceSuite) TestList() {
	s.f.createCreditNote(s.T(), "100")
	s.f.createCreditNote(s.T(), "200")

	notes, total, err := s.f.noteSvc.ListCreditNotes(s.ctx, 1, 10)
	s.NoError(err)
	s.Equal(int64(2), total)
	s.Len(notes, 2)
}
