package service_test

import (
	"context"
	"testing"
	"time"

	"bizledger/internal/model"
	"bizledger/internal/service"
	"bizledger/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func mustUUID(t *testing.T, s string) uuid.UUID {
	t.Helper()
	id, err := uuid.Parse(s)
	require.NoError(t, err)
	return id
}

// fixture wires every service against in-memory stores. Shared by all the
// service suites in this package.
type fixture struct {
	invoices *testutil.InMemoryInvoiceStore
	notes    *testutil.InMemoryCreditNoteStore
	clients  *testutil.InMemoryClientStore
	seqs     *testutil.InMemorySequenceStore
	audits   *testutil.InMemoryAuditStore

	invoiceSvc service.InvoiceService
	ledgerSvc  service.LedgerService
	noteSvc    service.CreditNoteService
	agingSvc   service.AgingService

	client model.Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		invoices: testutil.NewInMemoryInvoiceStore(),
		notes:    testutil.NewInMemoryCreditNoteStore(),
		clients:  testutil.NewInMemoryClientStore(),
		seqs:     testutil.NewInMemorySequenceStore(),
		audits:   testutil.NewInMemoryAuditStore(),
	}
	tx := testutil.FakeTxManager{}

	f.invoiceSvc = service.NewInvoiceService(f.invoices, f.clients, f.seqs, f.audits, tx, nil)
	f.ledgerSvc = service.NewLedgerService(f.invoices, f.notes, f.audits, tx, nil)
	f.noteSvc = service.NewCreditNoteService(f.notes, f.clients, f.invoices, f.seqs, f.audits, tx, nil)
	f.agingSvc = service.NewAgingService(f.invoices, f.clients)

	f.client = model.Client{CompanyName: "Acme Corp", Email: "billing@acme.test"}
	require.NoError(t, f.clients.Create(context.Background(), &f.client))

	return f
}

func (f *fixture) newClient(t *testing.T, name string) model.Client {
	t.Helper()
	client := model.Client{CompanyName: name}
	require.NoError(t, f.clients.Create(context.Background(), &client))
	return client
}

// createInvoice creates a draft invoice for the fixture client with a
// single 10 x 100 line and 10% tax, yielding a 1100 total.
func (f *fixture) createInvoice(t *testing.T, dueDate time.Time) service.InvoiceResponse {
	t.Helper()
	return f.createInvoiceFor(t, f.client.ID.String(), dueDate)
}

func (f *fixture) createInvoiceFor(t *testing.T, clientID string, dueDate time.Time) service.InvoiceResponse {
	t.Helper()
	resp, err := f.invoiceSvc.CreateInvoice(context.Background(), service.CreateInvoiceRequest{
		ClientID: clientID,
		DueDate:  dueDate.Format("2006-01-02"),
		TaxRate:  "10",
		Items: []service.LineItemInput{
			{Description: "Consulting", Quantity: "10", Rate: "100"},
		},
	})
	require.NoError(t, err)
	return resp
}

// sentInvoice creates and immediately sends an invoice.
func (f *fixture) sentInvoice(t *testing.T, dueDate time.Time) service.InvoiceResponse {
	t.Helper()
	return f.sentInvoiceFor(t, f.client.ID.String(), dueDate)
}

func (f *fixture) sentInvoiceFor(t *testing.T, clientID string, dueDate time.Time) service.InvoiceResponse {
	t.Helper()
	created := f.createInvoiceFor(t, clientID, dueDate)
	_, err := f.invoiceSvc.SendInvoice(context.Background(), created.ID, "client@example.test")
	require.NoError(t, err)
	reloaded, err := f.invoiceSvc.GetInvoice(context.Background(), created.ID)
	require.NoError(t, err)
	return reloaded
}

func (f *fixture) createCreditNote(t *testing.T, amount string) service.CreditNoteResponse {
	t.Helper()
	note, err := f.noteSvc.CreateCreditNote(context.Background(), service.CreateCreditNoteRequest{
		ClientID: f.client.ID.String(),
		Amount:   amount,
		Reason:   "service credit",
	})
	require.NoError(t, err)
	return note
}
