package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreditNoteStatus enum constants
const (
	CreditNoteDraft     = "draft"
	CreditNoteApplied   = "applied"
	CreditNoteCancelled = "cancelled"
)

// CreditNote is a client-facing credit instrument that can be partially
// applied across invoices over time. The face value is immutable after
// creation; applied_amount + remaining_amount always equals amount.
type CreditNote struct {
	ID              uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CreditNo        string          `gorm:"type:varchar(30);uniqueIndex;not null" json:"credit_no"` // CN-<year>-<seq>, never reused
	ClientID        uuid.UUID       `gorm:"type:uuid;not null;index" json:"client_id"`
	Client          *Client         `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	InvoiceID       *uuid.UUID      `gorm:"type:uuid;index" json:"invoice_id"` // originating invoice, if any
	Amount          decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount"`
	AppliedAmount   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"applied_amount"`
	RemainingAmount decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"remaining_amount"`
	Status          string          `gorm:"type:varchar(20);not null;default:'draft';index" json:"status"`
	Reason          string          `gorm:"type:varchar(255)" json:"reason"`
	Notes           string          `gorm:"type:text" json:"notes"`
	IssueDate       time.Time       `gorm:"type:date;not null" json:"issue_date"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// CheckConservation verifies applied_amount + remaining_amount == amount
// with a non-negative remainder.
func (c *CreditNote) CheckConservation() bool {
	return c.AppliedAmount.Add(c.RemainingAmount).Equal(c.Amount) && !c.RemainingAmount.IsNegative()
}
