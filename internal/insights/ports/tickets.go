package ports

import (
	"context"

	"rightsize_backend/internal/insights/domain"
)

// TicketSystem mirrors lifecycle transitions onto the external
// change-management system. Every call is idempotent at the ticket level.
// Failures here are side-channel: callers log them and continue.
type TicketSystem interface {
	// Open creates a change ticket from the insight tag snapshot and
	// returns its id.
	Open(ctx context.Context, tags map[string]string) (string, error)
	// Schedule records the maintenance window assignment on the ticket.
	Schedule(ctx context.Context, ticketID string, window domain.MaintenanceWindow) error
	// Close marks the ticket complete.
	Close(ctx context.Context, ticketID string) error
	// Cancel voids the ticket when its recommendation is superseded.
	Cancel(ctx context.Context, ticketID string) error
	// Update overwrites named fields on the ticket.
	Update(ctx context.Context, ticketID string, fields map[string]string) error
	// Attach uploads a file onto the ticket.
	Attach(ctx context.Context, ticketID, name string, content []byte) error
}
