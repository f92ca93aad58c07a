package domain

// DriftOutcome is the typed result of the pre-execution consistency
// check on a deployment.
type DriftOutcome int

const (
	// DriftUnknown means no fresh result was obtained within the poll
	// budget. Treated as a refusal (fail safe).
	DriftUnknown DriftOutcome = iota
	// DriftInSync means the live deployment matches its template.
	DriftInSync
	// DriftDetected means the live deployment has diverged.
	DriftDetected
	// DriftDetectionFailed means the detection run itself failed.
	DriftDetectionFailed
)

// String returns a log-friendly name for the outcome.
func (d DriftOutcome) String() string {
	switch d {
	case DriftInSync:
		return "IN_SYNC"
	case DriftDetected:
		return "DRIFTED"
	case DriftDetectionFailed:
		return "DETECTION_FAILED"
	default:
		return "UNKNOWN"
	}
}

// Executable reports whether the deployment update may proceed.
func (d DriftOutcome) Executable() bool {
	return d == DriftInSync
}

// ExecutionResult reports the outcome of an execution attempt.
type ExecutionResult struct {
	OK      bool
	Outcome DriftOutcome
}
