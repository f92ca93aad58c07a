package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// WindowNamePrefix prefixes every maintenance window name so windows
// owned by this system can be recognized.
const WindowNamePrefix = "mw-"

// WindowName derives the maintenance window name for a deployment.
// At most one active window exists per deployment name.
func WindowName(stackName string) string {
	return WindowNamePrefix + stackName
}

// OneShotLayout is the timestamp format accepted inside one-shot
// "at(...)" schedule expressions.
const OneShotLayout = "2006-01-02T15:04:05"

// OneShotExpression reports whether expr is a one-shot "at(<timestamp>)"
// schedule and returns the embedded timestamp text.
func OneShotExpression(expr string) (string, bool) {
	inner, ok := strings.CutPrefix(expr, "at(")
	if !ok {
		return "", false
	}
	inner, ok = strings.CutSuffix(inner, ")")
	if !ok {
		return "", false
	}
	return inner, true
}

// MaintenanceWindow is the execution slot shared by all resources of one
// deployment.
type MaintenanceWindow struct {
	ID             uuid.UUID
	Name           string
	CronExpression string
	Timezone       string
	DurationHours  int
	Enabled        bool
	NextFireAt     time.Time
	CreatedAt      time.Time
}

// Details renders the window assignment recorded on correlation items.
func (w MaintenanceWindow) Details() string {
	return fmt.Sprintf("WindowId=%s\nCronExpression=%s\nDuration=%d",
		w.ID, w.CronExpression, w.DurationHours)
}

// StartsWithin reports whether the window fires inside the given
// threshold from now. Used to decide whether an in-flight execution is
// too close to cancel safely.
func (w MaintenanceWindow) StartsWithin(threshold time.Duration, now time.Time) bool {
	if w.NextFireAt.IsZero() {
		return false
	}
	return w.NextFireAt.Sub(now) < threshold
}
