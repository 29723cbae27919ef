package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceStatus enum constants
const (
	InvoiceDraft     = "draft"
	InvoiceSent      = "sent"
	InvoiceViewed    = "viewed"
	InvoicePaid      = "paid"
	InvoiceOverdue   = "overdue"
	InvoiceCancelled = "cancelled"
)

// DiscountType enum constants
const (
	DiscountFixed      = "fixed"
	DiscountPercentage = "percentage"
)

// PaymentMethod enum constants
const (
	PaymentBankTransfer = "bank_transfer"
	PaymentCheck        = "check"
	PaymentCash         = "cash"
	PaymentCard         = "card"
	PaymentPaypal       = "paypal"
	PaymentStripe       = "stripe"
	PaymentOther        = "other"
)

// PaymentTerms enum constants
const (
	TermsDueOnReceipt = "due_on_receipt"
	TermsNet15        = "net_15"
	TermsNet30        = "net_30"
	TermsNet60        = "net_60"
)

// Invoice is the central receivables entity. Ledger fields (amount_paid,
// balance_due, status, paid_date) are owned by the ledger service and must
// not be written by any other component.
type Invoice struct {
	ID             uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	InvoiceNo      string              `gorm:"type:varchar(30);uniqueIndex;not null" json:"invoice_no"` // INV-<year>-<seq>, never reused
	ClientID       uuid.UUID           `gorm:"type:uuid;not null;index" json:"client_id"`
	Client         *Client             `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	ProjectID      *uuid.UUID          `gorm:"type:uuid;index" json:"project_id"`
	Status         string              `gorm:"type:varchar(20);not null;default:'draft';index" json:"status"`
	Currency       string              `gorm:"type:varchar(3);not null;default:'USD'" json:"currency"`
	PaymentTerms   string              `gorm:"type:varchar(20);not null;default:'net_30'" json:"payment_terms"`
	IssueDate      time.Time           `gorm:"type:date;not null" json:"issue_date"`
	DueDate        time.Time           `gorm:"type:date;not null;index" json:"due_date"`
	SentDate       *time.Time          `gorm:"type:date" json:"sent_date"`
	PaidDate       *time.Time          `gorm:"type:date" json:"paid_date"` // set once, never overwritten
	TaxRate        decimal.Decimal     `gorm:"type:decimal(8,4);not null;default:0" json:"tax_rate"` // percentage
	DiscountAmount decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0" json:"discount_amount"`
	DiscountType   string              `gorm:"type:varchar(20);not null;default:'fixed'" json:"discount_type"`
	Subtotal       decimal.Decimal     `gorm:"type:decimal(18,4);not null" json:"subtotal"`
	DiscountValue  decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0" json:"discount_value"`
	TaxAmount      decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0" json:"tax_amount"`
	Total          decimal.Decimal     `gorm:"type:decimal(18,4);not null" json:"total"`
	AmountPaid     decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0" json:"amount_paid"`
	BalanceDue     decimal.Decimal     `gorm:"type:decimal(18,4);not null" json:"balance_due"` // invariant: total - amount_paid
	Notes          string              `gorm:"type:text" json:"notes"`
	Terms          string              `gorm:"type:text" json:"terms"`
	LineItems      []InvoiceLineItem   `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE" json:"line_items,omitempty"`
	Payments       []Payment           `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE" json:"payments,omitempty"`
	CreditApplied  []CreditApplication `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE" json:"credit_applications,omitempty"`
	Version        int                 `gorm:"not null;default:1" json:"version"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// InvoiceLineItem contributes quantity*rate to the invoice subtotal.
type InvoiceLineItem struct {
	ID          uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	InvoiceID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"invoice_id"`
	Position    int             `gorm:"not null;default:0" json:"position"`
	Description string          `gorm:"type:varchar(255);not null" json:"description"`
	Quantity    decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"quantity"`
	Rate        decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"rate"`
	Amount      decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount"` // quantity * rate
	CreatedAt   time.Time       `json:"created_at"`
}

// Payment is an immutable ledger event. Corrections are new offsetting
// entries, never edits.
type Payment struct {
	ID        uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	InvoiceID uuid.UUID       `gorm:"type:uuid;not null;index" json:"invoice_id"`
	Amount    decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount"`
	Method    string          `gorm:"type:varchar(20);not null" json:"method"`
	Reference string          `gorm:"type:varchar(100)" json:"reference"`
	Notes     string          `gorm:"type:text" json:"notes"`
	Date      time.Time       `gorm:"type:date;not null" json:"date"`
	CreatedAt time.Time       `json:"created_at"`
}

// CreditApplication is an immutable ledger event recording a credit note
// applied against this invoice. It contributes to amount_paid just like a
// cash payment but stays a distinct record type for reporting.
type CreditApplication struct {
	ID           uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	InvoiceID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"invoice_id"`
	CreditNoteID uuid.UUID       `gorm:"type:uuid;not null;index" json:"credit_note_id"`
	CreditNo     string          `gorm:"type:varchar(30);not null" json:"credit_no"`
	Amount       decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount"`
	AppliedDate  time.Time       `gorm:"type:date;not null" json:"applied_date"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Totals holds the derived monetary figures of an invoice.
type Totals struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// ComputeTotals derives subtotal, discount, tax and total from line items
// and rate inputs. Pure. The discount is not clamped to the subtotal here;
// a negative discounted subtotal is the caller's validation problem.
func ComputeTotals(items []InvoiceLineItem, taxRate, discountAmount decimal.Decimal, discountType string) Totals {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.Quantity.Mul(item.Rate))
	}

	discount := discountAmount
	if discountType == DiscountPercentage {
		discount = subtotal.Mul(discountAmount).Div(decimal.NewFromInt(100))
	}

	discounted := subtotal.Sub(discount)
	tax := discounted.Mul(taxRate).Div(decimal.NewFromInt(100))

	return Totals{
		Subtotal: subtotal,
		Discount: discount,
		Tax:      tax,
		Total:    discounted.Add(tax),
	}
}

// DateOnly truncates a timestamp to its calendar date in UTC. Due/issue/paid
// dates carry no time-of-day semantics.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysPastDue returns the whole days between asOf and the due date.
// Zero or negative means not yet due.
func (i *Invoice) DaysPastDue(asOf time.Time) int {
	return int(DateOnly(asOf).Sub(DateOnly(i.DueDate)).Hours() / 24)
}

// IsTerminal reports whether the invoice can no longer change status.
func (i *Invoice) IsTerminal() bool {
	return i.Status == InvoicePaid || i.Status == InvoiceCancelled
}

// DeriveStatus recomputes the invoice status from its dates and ledger
// fields as of the given instant. Idempotent; callers run it before any
// read or mutation so a stale status is never observed.
//
// Rules: cancelled is final. paid is sticky and wins whenever amount_paid
// covers a positive total; paid_date is set exactly once, to asOf, unless a
// ledger operation already stamped it. overdue only derives from sent;
// viewed invoices stay viewed. Returns true when the status changed.
func (i *Invoice) DeriveStatus(asOf time.Time) bool {
	if i.Status == InvoiceCancelled || i.Status == InvoicePaid {
		return false
	}

	if i.Total.IsPositive() && i.AmountPaid.GreaterThanOrEqual(i.Total) {
		i.Status = InvoicePaid
		if i.PaidDate == nil {
			d := DateOnly(asOf)
			i.PaidDate = &d
		}
		return true
	}

	if i.Status == InvoiceSent && i.DaysPastDue(asOf) > 0 {
		i.Status = InvoiceOverdue
		return true
	}

	return false
}

// CheckLedgerInvariant verifies amount_paid + balance_due == total with a
// non-negative balance. Checked after every ledger mutation; a violation
// aborts the transaction.
func (i *Invoice) CheckLedgerInvariant() bool {
	return i.AmountPaid.Add(i.BalanceDue).Equal(i.Total) && !i.BalanceDue.IsNegative()
}
