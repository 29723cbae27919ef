package service

import (
	"context"
	"fmt"
	"time"

	"bizledger/internal/model"
	"bizledger/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- DTOs ---

// AgingBuckets holds the outstanding invoices grouped by days past due.
// Boundaries are inclusive: ≤30 current, 31-60, 61-90, >90. Invoices not
// yet due land in current.
type AgingBuckets struct {
	Current       []InvoiceResponse `json:"current"`
	ThirtyToSixty []InvoiceResponse `json:"thirtyToSixty"`
	SixtyToNinety []InvoiceResponse `json:"sixtyToNinety"`
	OverNinety    []InvoiceResponse `json:"overNinety"`
}

type AgingTotals struct {
	Current       string `json:"current"`
	ThirtyToSixty string `json:"thirtyToSixty"`
	SixtyToNinety string `json:"sixtyToNinety"`
	OverNinety    string `json:"overNinety"`
	Total         string `json:"total"`
}

type ClientAging struct {
	Current       string `json:"current"`
	ThirtyToSixty string `json:"thirtyToSixty"`
	SixtyToNinety string `json:"sixtyToNinety"`
	OverNinety    string `json:"overNinety"`
	Total         string `json:"total"`
	CompanyName   string `json:"company_name,omitempty"`
}

type AgingReport struct {
	AgingBuckets     AgingBuckets           `json:"agingBuckets"`
	Totals           AgingTotals            `json:"totals"`
	ClientBreakdown  map[string]ClientAging `json:"clientBreakdown"`
	TotalReceivables string                 `json:"totalReceivables"`
	GeneratedAt      string                 `json:"generatedAt"`
}

// --- Interface ---

// AgingService produces the receivables aging report. A read-only batch
// consumer of the invoice store; the reference date is injected so
// reports are reproducible.
type AgingService interface {
	GetAgingReport(ctx context.Context, asOf time.Time) (AgingReport, error)
}

type agingService struct {
	invoiceRepo repository.InvoiceRepository
	clientRepo  repository.ClientRepository
}

func NewAgingService(invoiceRepo repository.InvoiceRepository, clientRepo repository.ClientRepository) AgingService {
	return &agingService{invoiceRepo: invoiceRepo, clientRepo: clientRepo}
}

// --- Implementation ---

type bucketKey int

const (
	bucketCurrent bucketKey = iota
	bucketThirtyToSixty
	bucketSixtyToNinety
	bucketOverNinety
)

func bucketFor(daysPastDue int) bucketKey {
	switch {
	case daysPastDue <= 30:
		return bucketCurrent
	case daysPastDue <= 60:
		return bucketThirtyToSixty
	case daysPastDue <= 90:
		return bucketSixtyToNinety
	default:
		return bucketOverNinety
	}
}

func (s *agingService) GetAgingReport(ctx context.Context, asOf time.Time) (AgingReport, error) {
	invoices, err := s.invoiceRepo.ListByStatuses(ctx, nil)
	if err != nil {
		return AgingReport{}, fmt.Errorf("failed to fetch invoices: %w", err)
	}

	report := AgingReport{
		ClientBreakdown: make(map[string]ClientAging),
		GeneratedAt:     asOf.Format(time.RFC3339),
	}

	var bucketTotals [4]decimal.Decimal
	type clientTotals struct {
		buckets [4]decimal.Decimal
		total   decimal.Decimal
	}
	perClient := make(map[string]*clientTotals)
	grand := decimal.Zero

	for i := range invoices {
		inv := &invoices[i]
		// Recompute lifecycle first so overdue is current as of the
		// reference date; the report never mutates the store.
		inv.DeriveStatus(asOf)

		switch inv.Status {
		case model.InvoiceSent, model.InvoiceViewed, model.InvoiceOverdue:
			// outstanding
		default:
			continue // draft, paid, cancelled are excluded
		}

		key := bucketFor(inv.DaysPastDue(asOf))
		resp := toInvoiceResponse(*inv)
		switch key {
		case bucketCurrent:
			report.AgingBuckets.Current = append(report.AgingBuckets.Current, resp)
		case bucketThirtyToSixty:
			report.AgingBuckets.ThirtyToSixty = append(report.AgingBuckets.ThirtyToSixty, resp)
		case bucketSixtyToNinety:
			report.AgingBuckets.SixtyToNinety = append(report.AgingBuckets.SixtyToNinety, resp)
		case bucketOverNinety:
			report.AgingBuckets.OverNinety = append(report.AgingBuckets.OverNinety, resp)
		}

		bucketTotals[key] = bucketTotals[key].Add(inv.BalanceDue)
		grand = grand.Add(inv.BalanceDue)

		clientID := inv.ClientID.String()
		ct, ok := perClient[clientID]
		if !ok {
			ct = &clientTotals{}
			perClient[clientID] = ct
		}
		ct.buckets[key] = ct.buckets[key].Add(inv.BalanceDue)
		ct.total = ct.total.Add(inv.BalanceDue)
	}

	report.Totals = AgingTotals{
		Current:       bucketTotals[bucketCurrent].String(),
		ThirtyToSixty: bucketTotals[bucketThirtyToSixty].String(),
		SixtyToNinety: bucketTotals[bucketSixtyToNinety].String(),
		OverNinety:    bucketTotals[bucketOverNinety].String(),
		Total:         grand.String(),
	}
	report.TotalReceivables = grand.String()

	for clientID, ct := range perClient {
		entry := ClientAging{
			Current:       ct.buckets[bucketCurrent].String(),
			ThirtyToSixty: ct.buckets[bucketThirtyToSixty].String(),
			SixtyToNinety: ct.buckets[bucketSixtyToNinety].String(),
			OverNinety:    ct.buckets[bucketOverNinety].String(),
			Total:         ct.total.String(),
		}
		if parsed, parseErr := uuid.Parse(clientID); parseErr == nil {
			if client, clientErr := s.clientRepo.FindByID(ctx, parsed); clientErr == nil {
				entry.CompanyName = client.CompanyName
			}
		}
		report.ClientBreakdown[clientID] = entry
	}

	return report, nil
}
