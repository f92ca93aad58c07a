package ports

import (
	"context"

	"rightsize_backend/internal/insights/domain"

	"github.com/google/uuid"
)

// ItemUpdate is a partial update for a correlation item. Nil fields are
// left untouched.
type ItemUpdate struct {
	Status          *domain.ItemStatus
	OperationalData map[string]string
	Related         *domain.RelatedSet
}

// ItemFilter selects correlation items by operational data equality and
// status membership.
type ItemFilter struct {
	OperationalData map[string]string
	StatusIn        []domain.ItemStatus
}

// CorrelationTracker is the operational-ticket store holding correlation
// items. Implementations return apperr.KindNotFound for absent ids.
type CorrelationTracker interface {
	// Create stores a new item and returns its id.
	Create(ctx context.Context, item *domain.OpsItem) (uuid.UUID, error)
	// Update applies a partial update to an item.
	Update(ctx context.Context, id uuid.UUID, update ItemUpdate) error
	// Query returns the ids of items matching the filter.
	Query(ctx context.Context, filter ItemFilter) ([]uuid.UUID, error)
	// Get returns one item by id.
	Get(ctx context.Context, id uuid.UUID) (*domain.OpsItem, error)
}
