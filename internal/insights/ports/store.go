// Package ports defines the interfaces the insight lifecycle depends on.
// Adapters implement them; services consume them.
package ports

import (
	"context"

	"rightsize_backend/internal/insights/domain"
)

// ResourceStore is the versioned key/value store holding tracked records.
// Implementations return apperr.KindNotFound when a key is absent.
type ResourceStore interface {
	// Get returns the current version of the record at key.
	Get(ctx context.Context, key string) (*domain.TrackedRecord, error)
	// Put writes a new version and returns its number. History is never
	// mutated.
	Put(ctx context.Context, key, value, description string) (int64, error)
	// Label attaches a lifecycle label to the given version, moving it
	// off the previously labeled version.
	Label(ctx context.Context, key string, version int64, label domain.Label) error
	// ListTags returns the record's tag map.
	ListTags(ctx context.Context, key string) (map[string]string, error)
	// AddTags merges tags onto the record.
	AddTags(ctx context.Context, key string, tags map[string]string) error
	// RemoveTags deletes the named tags from the record.
	RemoveTags(ctx context.Context, key string, names []string) error
}
