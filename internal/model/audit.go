package model

import (
	"time"

	"github.com/google/uuid"
)

// Audit action codes for ledger and lifecycle mutations
const (
	ActionCreateInvoice    = "CREATE_INVOICE"
	ActionUpdateInvoice    = "UPDATE_INVOICE"
	ActionDeleteInvoice    = "DELETE_INVOICE"
	ActionSendInvoice      = "SEND_INVOICE"
	ActionCancelInvoice    = "CANCEL_INVOICE"
	ActionRecordPayment    = "RECORD_PAYMENT"
	ActionCreateCreditNote = "CREATE_CREDIT_NOTE"
	ActionApplyCreditNote  = "APPLY_CREDIT_NOTE"
	ActionVoidCreditNote   = "VOID_CREDIT_NOTE"
)

// AuditLog tracks who changed what and when for ledger-affecting operations
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // nil for automated callers
	User       *User      `gorm:"foreignKey:UserID" json:"user"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`        // invoice/credit note uuid
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"` // document number
	Details    string     `gorm:"type:jsonb" json:"details"`                      // serialized JSON payload of the action
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}
