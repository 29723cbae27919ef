package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func item(qty, rate string) InvoiceLineItem {
	return InvoiceLineItem{Quantity: d(qty), Rate: d(rate), Amount: d(qty).Mul(d(rate))}
}

func TestComputeTotals(t *testing.T) {
	tests := []struct {
		name           string
		items          []InvoiceLineItem
		taxRate        string
		discountAmount string
		discountType   string
		wantSubtotal   string
		wantDiscount   string
		wantTax        string
		wantTotal      string
	}{
		{
			name:         "single item with tax",
			items:        []InvoiceLineItem{item("10", "100")},
			taxRate:      "10",
			discountType: DiscountFixed,
			wantSubtotal: "1000", wantDiscount: "0", wantTax: "100", wantTotal: "1100",
		},
		{
			name:         "no items",
			items:        nil,
			taxRate:      "10",
			discountType: DiscountFixed,
			wantSubtotal: "0", wantDiscount: "0", wantTax: "0", wantTotal: "0",
		},
		{
			name:           "fixed discount applied before tax",
			items:          []InvoiceLineItem{item("10", "100")},
			taxRate:        "10",
			discountAmount: "200",
			discountType:   DiscountFixed,
			wantSubtotal:   "1000", wantDiscount: "200", wantTax: "80", wantTotal: "880",
		},
		{
			name:           "percentage discount",
			items:          []InvoiceLineItem{item("10", "100")},
			taxRate:        "10",
			discountAmount: "20",
			discountType:   DiscountPercentage,
			wantSubtotal:   "1000", wantDiscount: "200", wantTax: "80", wantTotal: "880",
		},
		{
			name:         "multiple items sum into subtotal",
			items:        []InvoiceLineItem{item("2", "150.50"), item("1", "99")},
			taxRate:      "0",
			discountType: DiscountFixed,
			wantSubtotal: "400", wantDiscount: "0", wantTax: "0", wantTotal: "400",
		},
		{
			name:         "fractional quantity",
			items:        []InvoiceLineItem{item("1.5", "100")},
			taxRate:      "8.25",
			discountType: DiscountFixed,
			wantSubtotal: "150", wantDiscount: "0", wantTax: "12.375", wantTotal: "162.375",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			discount := decimal.Zero
			if tt.discountAmount != "" {
				discount = d(tt.discountAmount)
			}
			totals := ComputeTotals(tt.items, d(tt.taxRate), discount, tt.discountType)

			assert.True(t, totals.Subtotal.Equal(d(tt.wantSubtotal)), "subtotal: got %s", totals.Subtotal)
			assert.True(t, totals.Discount.Equal(d(tt.wantDiscount)), "discount: got %s", totals.Discount)
			assert.True(t, totals.Tax.Equal(d(tt.wantTax)), "tax: got %s", totals.Tax)
			assert.True(t, totals.Total.Equal(d(tt.wantTotal)), "total: got %s", totals.Total)
		})
	}
}

func TestDaysPastDue(t *testing.T) {
	due := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	inv := &Invoice{DueDate: due}

	assert.Equal(t, 0, inv.DaysPastDue(due))
	assert.Equal(t, 1, inv.DaysPastDue(due.AddDate(0, 0, 1)))
	assert.Equal(t, 45, inv.DaysPastDue(due.AddDate(0, 0, 45)))
	assert.Equal(t, -3, inv.DaysPastDue(due.AddDate(0, 0, -3)))
	// time-of-day is irrelevant
	assert.Equal(t, 1, inv.DaysPastDue(due.AddDate(0, 0, 1).Add(23*time.Hour)))
}

func TestDeriveStatus(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	future := now.AddDate(0, 0, 10)
	past := now.AddDate(0, 0, -10)

	t.Run("draft stays draft past due date", func(t *testing.T) {
		inv := &Invoice{Status: InvoiceDraft, DueDate: past, Total: d("100"), BalanceDue: d("100")}
		require.False(t, inv.DeriveStatus(now))
		assert.Equal(t, InvoiceDraft, inv.Status)
	})

	t.Run("sent becomes overdue after due date", func(t *testing.T) {
		inv := &Invoice{Status: InvoiceSent, DueDate: past, Total: d("100"), BalanceDue: d("100")}
		require.True(t, inv.DeriveStatus(now))
		assert.Equal(t, InvoiceOverdue, inv.Status)
	})

	t.Run("sent before due date stays sent", func(t *testing.T) {
		inv := &Invoice{Status: InvoiceSent, DueDate: future, Total: d("100"), BalanceDue: d("100")}
		require.False(t, inv.DeriveStatus(now))
		assert.Equal(t, InvoiceSent, inv.Status)
	})

	t.Run("viewed never becomes overdue", func(t *testing.T) {
		inv := &Invoice{Status: InvoiceViewed, DueDate: past, Total: d("100"), BalanceDue: d("100")}
		require.False(t, inv.DeriveStatus(now))
		assert.Equal(t, InvoiceViewed, inv.Status)
	})

	t.Run("fully paid flips to paid and stamps paid date once", func(t *testing.T) {
		inv := &Invoice{Status: InvoiceSent, DueDate: future, Total: d("100"), AmountPaid: d("100")}
		require.True(t, inv.DeriveStatus(now))
		assert.Equal(t, InvoicePaid, inv.Status)
		require.NotNil(t, inv.PaidDate)
		assert.Equal(t, DateOnly(now), *inv.PaidDate)

		stamped := *inv.PaidDate
		inv.DeriveStatus(now.AddDate(0, 0, 5))
		assert.Equal(t, stamped, *inv.PaidDate)
	})

	t.Run("paid wins over overdue", func(t *testing.T) {
		inv := &Invoice{Status: InvoiceSent, DueDate: past, Total: d("100"), AmountPaid: d("100")}
		require.True(t, inv.DeriveStatus(now))
		assert.Equal(t, InvoicePaid, inv.Status)
	})

	t.Run("zero total never derives paid", func(t *testing.T) {
		inv := &Invoice{Status: InvoiceDraft, DueDate: future, Total: decimal.Zero, AmountPaid: decimal.Zero}
		require.False(t, inv.DeriveStatus(now))
		assert.Equal(t, InvoiceDraft, inv.Status)
	})

	t.Run("cancelled is final", func(t *testing.T) {
		inv := &Invoice{Status: InvoiceCancelled, DueDate: past, Total: d("100"), AmountPaid: d("100")}
		require.False(t, inv.DeriveStatus(now))
		assert.Equal(t, InvoiceCancelled, inv.Status)
	})

	t.Run("paid is sticky", func(t *testing.T) {
		inv := &Invoice{Status: InvoicePaid, DueDate: past, Total: d("100"), AmountPaid: d("100")}
		require.False(t, inv.DeriveStatus(now))
		assert.Equal(t, InvoicePaid, inv.Status)
	})
}

func TestCheckLedgerInvariant(t *testing.T) {
	ok := &Invoice{Total: d("100"), AmountPaid: d("60"), BalanceDue: d("40")}
	assert.True(t, ok.CheckLedgerInvariant())

	drift := &Invoice{Total: d("100"), AmountPaid: d("60"), BalanceDue: d("50")}
	assert.False(t, drift.CheckLedgerInvariant())

	negative := &Invoice{Total: d("100"), AmountPaid: d("120"), BalanceDue: d("-20")}
	assert.False(t, negative.CheckLedgerInvariant())
}

func TestCreditNoteConservation(t *testing.T) {
	ok := &CreditNote{Amount: d("500"), AppliedAmount: d("300"), RemainingAmount: d("200")}
	assert.True(t, ok.CheckConservation())

	drift := &CreditNote{Amount: d("500"), AppliedAmount: d("300"), RemainingAmount: d("250")}
	assert.False(t, drift.CheckConservation())

	negative := &CreditNote{Amount: d("500"), AppliedAmount: d("600"), RemainingAmount: d("-100")}
	assert.False(t, negative.CheckConservation())
}
