package service

import (
	"context"
	"encoding/json"
	"time"

	"rightsize_backend/internal/insights/domain"
	"rightsize_backend/internal/insights/ports"
	"rightsize_backend/internal/scheduler"
	"rightsize_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// ScheduleRequest assigns a correlation item (and through it, its
// deployment) to a maintenance window.
type ScheduleRequest struct {
	OpsItemID      uuid.UUID
	CronExpression string
	Timezone       string
	DurationHours  int
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Schedule creates or reuses the deployment's maintenance window, stamps
// the window details onto the item and its siblings, and advances every
// Approved sibling record to Scheduled. One window per deployment; a
// second resource scheduling into the same deployment rewrites the
// window's schedule instead of creating another.
func (s *Service) Schedule(ctx context.Context, req ScheduleRequest) (*domain.MaintenanceWindow, error) {
	const op = "service.Schedule"

	if req.DurationHours < 1 || req.DurationHours > 24 {
		return nil, apperr.Validation("duration must be between 1 and 24 hours").WithOp(op)
	}
	location := time.UTC
	if req.Timezone != "" {
		var err error
		location, err = time.LoadLocation(req.Timezone)
		if err != nil {
			return nil, apperr.Validation("unknown timezone").WithOp(op)
		}
	}
	nextFire, err := s.nextFireAt(req.CronExpression, location)
	if err != nil {
		return nil, err
	}

	item, err := s.tracker.Get(ctx, req.OpsItemID)
	if err != nil {
		return nil, err
	}
	deployment := item.Deployment()
	if deployment == "" {
		return nil, apperr.Conflict("correlation item has no deployment").WithOp(op)
	}
	log := s.log.WithDeployment(deployment)

	window, err := s.ensureWindow(ctx, item, deployment, req, nextFire)
	if err != nil {
		return nil, err
	}

	// Stamp the assignment on the item and all of its siblings, move each
	// item to InProgress, then advance every Approved sibling record.
	inProgress := domain.StatusInProgress
	members := append([]uuid.UUID{item.ID}, item.Related.IDs()...)
	for _, id := range members {
		member, err := s.tracker.Get(ctx, id)
		if err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				continue
			}
			return nil, apperr.Wrap(err, apperr.KindUpstream, "read item").WithOp(op)
		}
		member.SetWindowDetails(*window)
		update := ports.ItemUpdate{Status: &inProgress, OperationalData: member.OperationalData}
		if err := s.tracker.Update(ctx, id, update); err != nil {
			return nil, apperr.Wrap(err, apperr.KindUpstream, "stamp window details").WithOp(op)
		}

		if key := member.ParameterKey(); key != "" {
			if err := s.markScheduled(ctx, key, *window); err != nil {
				log.WithRecord(key).Error("schedule transition failed", "error", err.Error())
			}
		}
	}

	log.Info("deployment scheduled",
		"window", window.Name,
		"cron", window.CronExpression,
		"fires_at", window.NextFireAt,
	)
	return window, nil
}

// nextFireAt resolves a schedule expression to its next firing time.
// Recurring cron expressions and one-shot "at(<timestamp>)" expressions
// are both accepted.
func (s *Service) nextFireAt(expr string, location *time.Location) (time.Time, error) {
	const op = "service.nextFireAt"

	if stamp, ok := domain.OneShotExpression(expr); ok {
		at, err := time.ParseInLocation(domain.OneShotLayout, stamp, location)
		if err != nil {
			return time.Time{}, apperr.Validation("invalid one-shot schedule").WithOp(op)
		}
		return at, nil
	}
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return time.Time{}, apperr.Validation("invalid cron expression").WithOp(op)
	}
	return schedule.Next(s.now().In(location)), nil
}

func (s *Service) ensureWindow(ctx context.Context, item *domain.OpsItem, deployment string, req ScheduleRequest, nextFire time.Time) (*domain.MaintenanceWindow, error) {
	const op = "service.ensureWindow"

	name := domain.WindowName(deployment)
	window, err := s.windows.FindActive(ctx, name)
	if err != nil && !apperr.Is(err, apperr.KindNotFound) {
		return nil, apperr.Wrap(err, apperr.KindUpstream, "find window").WithOp(op)
	}

	if window != nil {
		window.CronExpression = req.CronExpression
		window.Timezone = req.Timezone
		window.DurationHours = req.DurationHours
		window.NextFireAt = nextFire
		if err := s.windows.Update(ctx, *window); err != nil {
			return nil, apperr.Wrap(err, apperr.KindUpstream, "update window").WithOp(op)
		}
		return window, nil
	}

	fresh := domain.MaintenanceWindow{
		Name:           name,
		CronExpression: req.CronExpression,
		Timezone:       req.Timezone,
		DurationHours:  req.DurationHours,
		Enabled:        true,
		NextFireAt:     nextFire,
	}
	windowID, err := s.windows.Create(ctx, fresh)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindUpstream, "create window").WithOp(op)
	}
	fresh.ID = windowID

	payload, err := json.Marshal(scheduler.WindowFirePayload{
		OpsItemID:  item.ID.String(),
		Deployment: deployment,
	})
	if err != nil {
		return nil, apperr.Internal("encode window task", err).WithOp(op)
	}
	if err := s.windows.RegisterTask(ctx, windowID, payload); err != nil {
		return nil, apperr.Wrap(err, apperr.KindUpstream, "register window task").WithOp(op)
	}
	return &fresh, nil
}

// markScheduled advances one record from Approved to Scheduled and
// notifies the change ticket. Records in any other state are skipped.
func (s *Service) markScheduled(ctx context.Context, key string, window domain.MaintenanceWindow) error {
	const op = "service.markScheduled"

	record, err := s.store.Get(ctx, key)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil
		}
		return err
	}
	if record.Label != domain.LabelApproved {
		s.log.TransitionSkipped(key, record.Label.String(), domain.LabelApproved.String())
		return nil
	}

	version, err := s.store.Put(ctx, key, record.Value, record.Description)
	if err != nil {
		return apperr.Wrap(err, apperr.KindUpstream, "write scheduled version").WithOp(op)
	}
	if err := s.store.Label(ctx, key, version, domain.LabelScheduled); err != nil {
		return apperr.Wrap(err, apperr.KindUpstream, "label scheduled").WithOp(op)
	}

	if ticketID := record.TicketID(); ticketID != "" {
		if err := s.tickets.Schedule(ctx, ticketID, window); err != nil {
			s.log.WithRecord(key).AdapterError("tickets", "schedule", err)
		}
	}

	s.log.Transition(key, domain.LabelApproved.String(), domain.LabelScheduled.String())
	s.publishLabeled(ctx, key, domain.LabelScheduled, record.Tag("stackName"))
	return nil
}
