package model

import "time"

// Document type codes for numbered documents
const (
	DocTypeInvoice    = "INV"
	DocTypeCreditNote = "CN"
)

// DocumentSequence backs the per-year document numbering (INV-<year>-<seq>,
// CN-<year>-<seq>). Rows are incremented under a row lock so numbers are
// monotonic and never reused, even across concurrent writers.
type DocumentSequence struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	DocType   string    `gorm:"type:varchar(10);not null;uniqueIndex:idx_doc_sequences_type_year" json:"doc_type"`
	Year      int       `gorm:"not null;uniqueIndex:idx_doc_sequences_type_year" json:"year"`
	LastValue int64     `gorm:"not null;default:0" json:"last_value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
