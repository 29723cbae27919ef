package model

import (
	"time"

	"github.com/google/uuid"
)

// Client is the billing counterparty for invoices and credit notes. Full
// client management lives outside this service; we keep just enough here
// for foreign keys and the per-client aging breakdown.
type Client struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CompanyName string    `gorm:"type:varchar(255);not null" json:"company_name"`
	Email       string    `gorm:"type:varchar(255)" json:"email"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
