// Package insights provides the rightsizing lifecycle bounded context.
// This file defines the module that encapsulates setup and route
// registration.
package insights

import (
	"context"

	"rightsize_backend/internal/adapters/itsm"
	"rightsize_backend/internal/adapters/opsitems"
	"rightsize_backend/internal/adapters/paramstore"
	"rightsize_backend/internal/adapters/stackapi"
	"rightsize_backend/internal/adapters/windows"
	"rightsize_backend/internal/events"
	apphttp "rightsize_backend/internal/http"
	"rightsize_backend/internal/insights/domain"
	"rightsize_backend/internal/insights/handler"
	"rightsize_backend/internal/insights/ports"
	"rightsize_backend/internal/insights/service"
	"rightsize_backend/internal/insights/transport"
	"rightsize_backend/platform/config"
	"rightsize_backend/platform/logger"
	"rightsize_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the insights bounded context implementing http.Module.
type Module struct {
	handler *handler.Handler
	svc     *service.Service
	windows *windows.Scheduler
}

// NewModule wires the insight lifecycle: Postgres-backed stores, the
// outbound stack and ticket clients, the lifecycle service and its event
// subscriptions.
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, val *validator.Validator, cfg *config.Config, log *logger.Logger) *Module {
	store := paramstore.New(pool)
	tracker := opsitems.New(pool)
	windowStore := windows.New(pool)
	stackClient := stackapi.NewClient(cfg, log)
	tickets := itsm.New(cfg, log)

	if err := transport.RegisterValidations(val); err != nil {
		log.Error("failed to register insight validations", "error", err)
	}

	svc := service.New(store, tracker, windowStore, stackClient, tickets, eventBus, cfg, log)

	// Label transitions fan out asynchronously through the bus so the
	// write path and its side effects stay decoupled.
	eventBus.Subscribe(events.RecordLabeled{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.RecordLabeled)
		if !ok {
			return nil
		}
		label, err := domain.ParseLabel(e.Label)
		if err != nil {
			return nil
		}
		return svc.OnRecordLabeled(ctx, e.ParameterKey, label)
	}))

	// Window firings arrive from the task worker through the same bus.
	eventBus.Subscribe(events.WindowFired{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.WindowFired)
		if !ok {
			return nil
		}
		return svc.OnWindowFired(ctx, e.OpsItemID)
	}))

	return &Module{
		handler: handler.New(svc, val),
		svc:     svc,
		windows: windowStore,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "insights"
}

// RegisterRoutes mounts the lifecycle endpoints on the authenticated
// API group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/insights"))
}

// Service returns the lifecycle service for worker-side wiring.
func (m *Module) Service() *service.Service {
	return m.svc
}

// WindowSource returns the due-window source for the dispatcher.
func (m *Module) WindowSource() *windows.Scheduler {
	return m.windows
}

// SetReportArchive attaches the optional close-report archive.
func (m *Module) SetReportArchive(archive ports.ReportArchive) {
	m.svc.SetReportArchive(archive)
}
