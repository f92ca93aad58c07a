package ports

import (
	"context"
	"time"
)

// Drift detection run statuses reported by the stack service.
const (
	DetectionInProgress = "DETECTION_IN_PROGRESS"
	DetectionComplete   = "DETECTION_COMPLETE"
	DetectionFailed     = "DETECTION_FAILED"

	// StackInSync is the drift status of a deployment matching its template.
	StackInSync = "IN_SYNC"
)

// DriftPoll is one observation of a drift detection run.
type DriftPoll struct {
	// DetectionStatus is one of the Detection* constants.
	DetectionStatus string
	// StackDriftStatus is meaningful once detection completes.
	StackDriftStatus string
	// CheckedAt timestamps the underlying check. A poll is only fresh
	// when this differs from the previously known timestamp.
	CheckedAt time.Time
}

// StackDeployer runs drift detection and dispatches deployment updates.
type StackDeployer interface {
	// DetectDrift starts a detection run and returns its id.
	DetectDrift(ctx context.Context, stackID string) (string, error)
	// PollDrift reads the current state of a detection run.
	PollDrift(ctx context.Context, detectionID string) (DriftPoll, error)
	// Update dispatches an asynchronous deployment update. Completion is
	// reported later through stack events.
	Update(ctx context.Context, stackID string) error
	// Status reads the deployment's current status.
	Status(ctx context.Context, stackID string) (string, error)
}
