// Package windows persists maintenance windows in Postgres and feeds the
// dispatcher with due firings.
package windows

import (
	"context"
	"errors"
	"time"

	"rightsize_backend/internal/insights/domain"
	"rightsize_backend/internal/scheduler"
	"rightsize_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Scheduler implements ports.WindowScheduler and scheduler.WindowSource
// on Postgres.
type Scheduler struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Scheduler {
	return &Scheduler{pool: pool}
}

func (s *Scheduler) FindActive(ctx context.Context, name string) (*domain.MaintenanceWindow, error) {
	const op = "windows.FindActive"

	window := &domain.MaintenanceWindow{Name: name, Enabled: true}
	err := s.pool.QueryRow(ctx, `
		SELECT id, cron_expression, timezone, duration_hours, next_fire_at, created_at
		FROM maintenance_windows
		WHERE name = $1 AND enabled`, name,
	).Scan(&window.ID, &window.CronExpression, &window.Timezone,
		&window.DurationHours, &window.NextFireAt, &window.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("maintenance window not found").WithOp(op)
		}
		return nil, apperr.Internal("query window", err).WithOp(op)
	}
	return window, nil
}

func (s *Scheduler) Create(ctx context.Context, window domain.MaintenanceWindow) (uuid.UUID, error) {
	const op = "windows.Create"

	id := uuid.New()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO maintenance_windows (id, name, cron_expression, timezone, duration_hours, enabled, next_fire_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, window.Name, window.CronExpression, window.Timezone,
		window.DurationHours, window.Enabled, window.NextFireAt)
	if err != nil {
		return uuid.Nil, apperr.Internal("insert window", err).WithOp(op)
	}
	return id, nil
}

func (s *Scheduler) Update(ctx context.Context, window domain.MaintenanceWindow) error {
	const op = "windows.Update"

	tag, err := s.pool.Exec(ctx, `
		UPDATE maintenance_windows
		SET cron_expression = $2, timezone = $3, duration_hours = $4, next_fire_at = $5
		WHERE id = $1`,
		window.ID, window.CronExpression, window.Timezone,
		window.DurationHours, window.NextFireAt)
	if err != nil {
		return apperr.Internal("update window", err).WithOp(op)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("maintenance window not found").WithOp(op)
	}
	return nil
}

func (s *Scheduler) RegisterTask(ctx context.Context, windowID uuid.UUID, payload []byte) error {
	const op = "windows.RegisterTask"

	tag, err := s.pool.Exec(ctx, `
		UPDATE maintenance_windows SET task_payload = $2 WHERE id = $1`,
		windowID, payload)
	if err != nil {
		return apperr.Internal("register task", err).WithOp(op)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("maintenance window not found").WithOp(op)
	}
	return nil
}

func (s *Scheduler) Delete(ctx context.Context, windowID uuid.UUID) error {
	const op = "windows.Delete"

	_, err := s.pool.Exec(ctx, `
		DELETE FROM maintenance_windows WHERE id = $1`, windowID)
	if err != nil {
		return apperr.Internal("delete window", err).WithOp(op)
	}
	return nil
}

// ListDue returns enabled windows with a registered task whose next
// firing time has passed.
func (s *Scheduler) ListDue(ctx context.Context, now time.Time) ([]scheduler.DueWindow, error) {
	const op = "windows.ListDue"

	rows, err := s.pool.Query(ctx, `
		SELECT id, name, task_payload
		FROM maintenance_windows
		WHERE enabled AND task_payload IS NOT NULL AND next_fire_at <= $1
		ORDER BY next_fire_at`, now)
	if err != nil {
		return nil, apperr.Internal("query due windows", err).WithOp(op)
	}
	defer rows.Close()

	var due []scheduler.DueWindow
	for rows.Next() {
		var window scheduler.DueWindow
		if err := rows.Scan(&window.ID, &window.Name, &window.Payload); err != nil {
			return nil, apperr.Internal("scan window", err).WithOp(op)
		}
		due = append(due, window)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal("iterate windows", err).WithOp(op)
	}
	return due, nil
}

// Reschedule advances a fired window to its next occurrence. One-shot
// windows have no next occurrence and are disabled instead.
func (s *Scheduler) Reschedule(ctx context.Context, id uuid.UUID, firedAt time.Time) error {
	const op = "windows.Reschedule"

	var (
		expression string
		timezone   string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT cron_expression, timezone FROM maintenance_windows WHERE id = $1`, id,
	).Scan(&expression, &timezone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("maintenance window not found").WithOp(op)
		}
		return apperr.Internal("query window schedule", err).WithOp(op)
	}

	if _, ok := domain.OneShotExpression(expression); ok {
		_, err := s.pool.Exec(ctx, `
			UPDATE maintenance_windows SET enabled = FALSE WHERE id = $1`, id)
		if err != nil {
			return apperr.Internal("disable window", err).WithOp(op)
		}
		return nil
	}

	schedule, err := cronParser.Parse(expression)
	if err != nil {
		return apperr.Internal("parse window schedule", err).WithOp(op)
	}
	location := time.UTC
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err == nil {
			location = loc
		}
	}
	next := schedule.Next(firedAt.In(location))

	_, err = s.pool.Exec(ctx, `
		UPDATE maintenance_windows SET next_fire_at = $2 WHERE id = $1`, id, next)
	if err != nil {
		return apperr.Internal("advance window", err).WithOp(op)
	}
	return nil
}
