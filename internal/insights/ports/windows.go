package ports

import (
	"context"

	"rightsize_backend/internal/insights/domain"

	"github.com/google/uuid"
)

// WindowScheduler manages maintenance windows and their firing tasks.
// Implementations return apperr.KindNotFound for absent windows.
type WindowScheduler interface {
	// FindActive returns the enabled window with the given name.
	FindActive(ctx context.Context, name string) (*domain.MaintenanceWindow, error)
	// Create registers a new window and returns its id.
	Create(ctx context.Context, window domain.MaintenanceWindow) (uuid.UUID, error)
	// Update rewrites the schedule of an existing window.
	Update(ctx context.Context, window domain.MaintenanceWindow) error
	// RegisterTask attaches the firing payload executed when the window
	// opens.
	RegisterTask(ctx context.Context, windowID uuid.UUID, payload []byte) error
	// Delete removes a window and its tasks.
	Delete(ctx context.Context, windowID uuid.UUID) error
}
