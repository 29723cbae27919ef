package service

import (
	"context"

	"github.com/google/uuid"
)

// Ledger event types broadcast to connected clients
const (
	EventInvoiceSent       = "invoice.sent"
	EventInvoicePaid       = "invoice.paid"
	EventInvoiceCancelled  = "invoice.cancelled"
	EventPaymentRecorded   = "payment.recorded"
	EventCreditNoteCreated = "credit_note.created"
	EventCreditNoteApplied = "credit_note.applied"
)

// Notifier pushes ledger events to interested listeners (the websocket
// hub in production). Implementations must not block.
type Notifier interface {
	Notify(event string, payload any)
}

func notify(n Notifier, event string, payload any) {
	if n != nil {
		n.Notify(event, payload)
	}
}

type actorKey struct{}

// WithActor stamps the acting user onto the context for audit records.
func WithActor(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, actorKey{}, userID)
}

// ActorFrom returns the acting user, or nil for unauthenticated/automated
// callers.
func ActorFrom(ctx context.Context) *uuid.UUID {
	if id, ok := ctx.Value(actorKey{}).(uuid.UUID); ok {
		return &id
	}
	return nil
}
