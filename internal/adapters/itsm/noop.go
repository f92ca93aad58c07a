package itsm

import (
	"context"

	"rightsize_backend/internal/insights/domain"
	"rightsize_backend/internal/insights/ports"
	"rightsize_backend/platform/config"
	"rightsize_backend/platform/logger"
)

var (
	_ ports.TicketSystem = (*Client)(nil)
	_ ports.TicketSystem = (*Noop)(nil)
)

// Noop stands in when no ticket system is configured. Records still move
// through the lifecycle, they just never get an external ticket.
type Noop struct {
	log *logger.Logger
}

func NewNoop(log *logger.Logger) *Noop {
	return &Noop{log: log}
}

// New returns the REST client when a base URL is configured and the noop
// fallback otherwise.
func New(cfg config.TicketConfig, log *logger.Logger) ports.TicketSystem {
	if cfg.GetTicketBaseURL() == "" {
		log.Warn("ticket system not configured, ticket operations disabled")
		return NewNoop(log)
	}
	return NewClient(cfg, log)
}

func (n *Noop) Open(ctx context.Context, tags map[string]string) (string, error) {
	n.log.Debug("ticket open skipped, no ticket system configured")
	return "", nil
}

func (n *Noop) Schedule(ctx context.Context, ticketID string, window domain.MaintenanceWindow) error {
	return nil
}

func (n *Noop) Close(ctx context.Context, ticketID string) error {
	return nil
}

func (n *Noop) Cancel(ctx context.Context, ticketID string) error {
	return nil
}

func (n *Noop) Update(ctx context.Context, ticketID string, fields map[string]string) error {
	return nil
}

func (n *Noop) Attach(ctx context.Context, ticketID, name string, content []byte) error {
	return nil
}
