// Package opsitems persists correlation items in Postgres.
package opsitems

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"rightsize_backend/internal/insights/domain"
	"rightsize_backend/internal/insights/ports"
	"rightsize_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Tracker implements ports.CorrelationTracker on Postgres. Operational
// data is a jsonb document; the related list is a uuid array treated as
// a set.
type Tracker struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Tracker {
	return &Tracker{pool: pool}
}

func (t *Tracker) Create(ctx context.Context, item *domain.OpsItem) (uuid.UUID, error) {
	const op = "opsitems.Create"

	id := uuid.New()
	opData, err := json.Marshal(item.OperationalData)
	if err != nil {
		return uuid.Nil, apperr.Internal("encode operational data", err).WithOp(op)
	}

	_, err = t.pool.Exec(ctx, `
		INSERT INTO ops_items (id, title, description, status, category, severity, operational_data, related)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, item.Title, item.Description, string(item.Status),
		item.Category, item.Severity, opData, item.Related.IDs())
	if err != nil {
		return uuid.Nil, apperr.Internal("insert item", err).WithOp(op)
	}

	item.ID = id
	return id, nil
}

func (t *Tracker) Update(ctx context.Context, id uuid.UUID, update ports.ItemUpdate) error {
	const op = "opsitems.Update"

	sets := []string{"updated_at = now()"}
	args := []interface{}{id}

	if update.Status != nil {
		args = append(args, string(*update.Status))
		sets = append(sets, fmt.Sprintf("status = $%d", len(args)))
	}
	if update.OperationalData != nil {
		opData, err := json.Marshal(update.OperationalData)
		if err != nil {
			return apperr.Internal("encode operational data", err).WithOp(op)
		}
		args = append(args, opData)
		sets = append(sets, fmt.Sprintf("operational_data = operational_data || $%d", len(args)))
	}
	if update.Related != nil {
		args = append(args, update.Related.IDs())
		sets = append(sets, fmt.Sprintf("related = $%d", len(args)))
	}

	query := "UPDATE ops_items SET "
	for i, set := range sets {
		if i > 0 {
			query += ", "
		}
		query += set
	}
	query += " WHERE id = $1"

	tag, err := t.pool.Exec(ctx, query, args...)
	if err != nil {
		return apperr.Internal("update item", err).WithOp(op)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("correlation item not found").WithOp(op)
	}
	return nil
}

func (t *Tracker) Query(ctx context.Context, filter ports.ItemFilter) ([]uuid.UUID, error) {
	const op = "opsitems.Query"

	opData, err := json.Marshal(filter.OperationalData)
	if err != nil {
		return nil, apperr.Internal("encode filter", err).WithOp(op)
	}
	statuses := make([]string, 0, len(filter.StatusIn))
	for _, status := range filter.StatusIn {
		statuses = append(statuses, string(status))
	}

	rows, err := t.pool.Query(ctx, `
		SELECT id FROM ops_items
		WHERE operational_data @> $1 AND status = ANY($2)
		ORDER BY created_at`, opData, statuses)
	if err != nil {
		return nil, apperr.Internal("query items", err).WithOp(op)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, apperr.Internal("scan id", err).WithOp(op)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal("iterate items", err).WithOp(op)
	}
	return ids, nil
}

func (t *Tracker) Get(ctx context.Context, id uuid.UUID) (*domain.OpsItem, error) {
	const op = "opsitems.Get"

	item := &domain.OpsItem{ID: id}
	var (
		status  string
		opData  []byte
		related []uuid.UUID
	)
	err := t.pool.QueryRow(ctx, `
		SELECT title, description, status, category, severity, operational_data, related, created_at, updated_at
		FROM ops_items WHERE id = $1`, id,
	).Scan(&item.Title, &item.Description, &status, &item.Category,
		&item.Severity, &opData, &related, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("correlation item not found").WithOp(op)
		}
		return nil, apperr.Internal("query item", err).WithOp(op)
	}

	item.Status = domain.ItemStatus(status)
	if err := json.Unmarshal(opData, &item.OperationalData); err != nil {
		return nil, apperr.Internal("decode operational data", err).WithOp(op)
	}
	item.Related = domain.NewRelatedSet(related...)

	return item, nil
}
