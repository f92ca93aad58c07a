// Package paramstore persists tracked records as versioned, labeled,
// tagged parameters in Postgres.
package paramstore

import (
	"context"
	"errors"

	"rightsize_backend/internal/insights/domain"
	"rightsize_backend/platform/apperr"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store implements ports.ResourceStore on Postgres. Versions are append
// only; a label row points at exactly one version per key.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Get(ctx context.Context, key string) (*domain.TrackedRecord, error) {
	const op = "paramstore.Get"

	record := &domain.TrackedRecord{Key: key}
	err := s.pool.QueryRow(ctx, `
		SELECT p.description, v.version, v.value, v.created_at
		FROM parameters p
		JOIN parameter_versions v ON v.key = p.key
		WHERE p.key = $1
		ORDER BY v.version DESC
		LIMIT 1`, key,
	).Scan(&record.Description, &record.Version, &record.Value, &record.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("tracked record not found").WithOp(op)
		}
		return nil, apperr.Internal("query tracked record", err).WithOp(op)
	}

	var raw string
	err = s.pool.QueryRow(ctx, `
		SELECT label FROM parameter_labels
		WHERE key = $1 AND version = $2`, key, record.Version,
	).Scan(&raw)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.Internal("query record label", err).WithOp(op)
	}
	label, err := domain.ParseLabel(raw)
	if err != nil {
		return nil, apperr.Internal("parse record label", err).WithOp(op)
	}
	record.Label = label

	tags, err := s.ListTags(ctx, key)
	if err != nil {
		return nil, err
	}
	record.Tags = tags

	return record, nil
}

func (s *Store) Put(ctx context.Context, key, value, description string) (int64, error) {
	const op = "paramstore.Put"

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, apperr.Internal("begin", err).WithOp(op)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO parameters (key, description)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE
		SET description = EXCLUDED.description, updated_at = now()`,
		key, description)
	if err != nil {
		return 0, apperr.Internal("upsert parameter", err).WithOp(op)
	}

	var version int64
	err = tx.QueryRow(ctx, `
		INSERT INTO parameter_versions (key, version, value)
		SELECT $1, COALESCE(MAX(version), 0) + 1, $2
		FROM parameter_versions WHERE key = $1
		RETURNING version`,
		key, value).Scan(&version)
	if err != nil {
		return 0, apperr.Internal("insert version", err).WithOp(op)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, apperr.Internal("commit", err).WithOp(op)
	}
	return version, nil
}

func (s *Store) Label(ctx context.Context, key string, version int64, label domain.Label) error {
	const op = "paramstore.Label"

	_, err := s.pool.Exec(ctx, `
		INSERT INTO parameter_labels (key, label, version)
		VALUES ($1, $2, $3)
		ON CONFLICT (key, label) DO UPDATE
		SET version = EXCLUDED.version, moved_at = now()`,
		key, label.String(), version)
	if err != nil {
		return apperr.Internal("move label", err).WithOp(op)
	}

	// A version carries at most one of our lifecycle labels; moving a
	// label onto a version clears any other label previously on it.
	_, err = s.pool.Exec(ctx, `
		DELETE FROM parameter_labels
		WHERE key = $1 AND version = $2 AND label <> $3`,
		key, version, label.String())
	if err != nil {
		return apperr.Internal("clear stale labels", err).WithOp(op)
	}
	return nil
}

func (s *Store) ListTags(ctx context.Context, key string) (map[string]string, error) {
	const op = "paramstore.ListTags"

	rows, err := s.pool.Query(ctx, `
		SELECT name, value FROM parameter_tags WHERE key = $1`, key)
	if err != nil {
		return nil, apperr.Internal("query tags", err).WithOp(op)
	}
	defer rows.Close()

	tags := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, apperr.Internal("scan tag", err).WithOp(op)
		}
		tags[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal("iterate tags", err).WithOp(op)
	}
	return tags, nil
}

func (s *Store) AddTags(ctx context.Context, key string, tags map[string]string) error {
	const op = "paramstore.AddTags"

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return apperr.Internal("begin", err).WithOp(op)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for name, value := range tags {
		_, err := tx.Exec(ctx, `
			INSERT INTO parameter_tags (key, name, value)
			VALUES ($1, $2, $3)
			ON CONFLICT (key, name) DO UPDATE SET value = EXCLUDED.value`,
			key, name, value)
		if err != nil {
			return apperr.Internal("upsert tag", err).WithOp(op)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return apperr.Internal("commit", err).WithOp(op)
	}
	return nil
}

func (s *Store) RemoveTags(ctx context.Context, key string, names []string) error {
	const op = "paramstore.RemoveTags"

	if len(names) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		DELETE FROM parameter_tags WHERE key = $1 AND name = ANY($2)`,
		key, names)
	if err != nil {
		return apperr.Internal("delete tags", err).WithOp(op)
	}
	return nil
}
