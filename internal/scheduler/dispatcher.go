package scheduler

import (
	"context"
	"encoding/json"
	"time"

	"rightsize_backend/platform/config"
	"rightsize_backend/platform/logger"

	"github.com/google/uuid"
)

// DueWindow is a maintenance window whose next firing time has passed.
type DueWindow struct {
	ID      uuid.UUID
	Name    string
	Payload []byte
}

// WindowSource yields due windows and advances their schedule after a
// firing has been enqueued.
type WindowSource interface {
	ListDue(ctx context.Context, now time.Time) ([]DueWindow, error)
	Reschedule(ctx context.Context, id uuid.UUID, firedAt time.Time) error
}

// Dispatcher periodically scans for due maintenance windows and enqueues
// their firing tasks.
type Dispatcher struct {
	source   WindowSource
	client   *Client
	interval time.Duration
	log      *logger.Logger
}

func NewDispatcher(cfg config.SchedulerConfig, source WindowSource, client *Client, log *logger.Logger) *Dispatcher {
	interval := cfg.GetWindowScanInterval()
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Dispatcher{
		source:   source,
		client:   client,
		interval: interval,
		log:      log,
	}
}

func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			d.scan(ctx, now)
		}
	}
}

func (d *Dispatcher) scan(ctx context.Context, now time.Time) {
	due, err := d.source.ListDue(ctx, now)
	if err != nil {
		d.log.Error("window scan failed", "error", err.Error())
		return
	}

	for _, window := range due {
		var payload WindowFirePayload
		if err := json.Unmarshal(window.Payload, &payload); err != nil {
			d.log.Error("window payload unreadable", "window", window.Name, "error", err.Error())
			continue
		}
		if err := d.client.EnqueueWindowFire(ctx, payload); err != nil {
			d.log.Error("window fire enqueue failed", "window", window.Name, "error", err.Error())
			continue
		}
		if err := d.source.Reschedule(ctx, window.ID, now); err != nil {
			d.log.Error("window reschedule failed", "window", window.Name, "error", err.Error())
			continue
		}
		d.log.Info("maintenance window fired", "window", window.Name)
	}
}
