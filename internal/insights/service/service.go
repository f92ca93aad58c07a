// Package service implements the insight lifecycle: change detection,
// label transitions, correlation bookkeeping, the pre-execution drift
// gate and the fan-out to the ticket system.
package service

import (
	"context"
	"io"
	"time"

	"rightsize_backend/internal/events"
	"rightsize_backend/internal/insights/ports"
	"rightsize_backend/platform/apperr"
	"rightsize_backend/platform/config"
	"rightsize_backend/platform/logger"
)

// lastUpdatedKey is the store key stamped on every approval so external
// consumers can detect that the parameter surface moved.
const lastUpdatedKey = "/optimizer/config/lastUpdatedTimestamp"

// Config is the configuration surface the service needs.
type Config interface {
	config.ReconcilerConfig
	config.DriftGateConfig
	config.RetryConfig
}

// Service drives tracked records through the lifecycle. All external
// collaborators are reached through ports; ticket failures are logged
// and never block a transition.
type Service struct {
	store   ports.ResourceStore
	tracker ports.CorrelationTracker
	windows ports.WindowScheduler
	stack   ports.StackDeployer
	tickets ports.TicketSystem
	reports ports.ReportArchive
	bus     events.Bus
	cfg     Config
	log     *logger.Logger

	// now is swappable for tests.
	now func() time.Time
}

// New wires the lifecycle service.
func New(
	store ports.ResourceStore,
	tracker ports.CorrelationTracker,
	windows ports.WindowScheduler,
	stack ports.StackDeployer,
	tickets ports.TicketSystem,
	bus events.Bus,
	cfg Config,
	log *logger.Logger,
) *Service {
	return &Service{
		store:   store,
		tracker: tracker,
		windows: windows,
		stack:   stack,
		tickets: tickets,
		bus:     bus,
		cfg:     cfg,
		log:     log,
		now:     time.Now,
	}
}

// SetReportArchive attaches the optional close-report archive. Closing
// records works without it; reports are simply not kept.
func (s *Service) SetReportArchive(archive ports.ReportArchive) {
	s.reports = archive
}

// FetchReport streams an archived change report back to the caller.
func (s *Service) FetchReport(ctx context.Context, path string) (io.ReadCloser, error) {
	if s.reports == nil {
		return nil, apperr.NotFound("report archive is not configured").WithOp("service.FetchReport")
	}
	return s.reports.Fetch(ctx, path)
}
