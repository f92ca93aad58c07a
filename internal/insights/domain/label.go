package domain

import "fmt"

// Label is the lifecycle state attached to the current version of a
// tracked record. Only the label on the current version is authoritative.
type Label int

const (
	// LabelNone means the record has no label yet.
	LabelNone Label = iota
	// LabelInitialize marks a freshly tracked recommendation.
	LabelInitialize
	// LabelApproved marks a recommendation accepted for execution.
	LabelApproved
	// LabelScheduled marks a recommendation assigned to a maintenance window.
	LabelScheduled
	// LabelExecuted marks a recommendation whose deployment update ran.
	LabelExecuted
	// LabelClosed is terminal; the record may be reused by a future insight.
	LabelClosed
)

var labelNames = map[Label]string{
	LabelInitialize: "Initialize",
	LabelApproved:   "Approved",
	LabelScheduled:  "Scheduled",
	LabelExecuted:   "Executed",
	LabelClosed:     "Closed",
}

// String returns the label as stored on the record version.
func (l Label) String() string {
	if name, ok := labelNames[l]; ok {
		return name
	}
	return "None"
}

// ParseLabel converts a stored label string back to a Label.
func ParseLabel(s string) (Label, error) {
	for label, name := range labelNames {
		if name == s {
			return label, nil
		}
	}
	if s == "" {
		return LabelNone, nil
	}
	return LabelNone, fmt.Errorf("unknown label %q", s)
}

// Precedes reports whether l comes strictly before other in the lifecycle
// order Initialize < Approved < Scheduled < Executed < Closed.
func (l Label) Precedes(other Label) bool {
	return l < other
}

// CanAdvanceTo reports whether a transition from l to next is a legal
// forward step. Reset to Initialize is allowed from any non-terminal state
// when the underlying recommendation changes.
func (l Label) CanAdvanceTo(next Label) bool {
	if next == LabelInitialize {
		return l != LabelClosed
	}
	return next == l+1
}
