package domain

import (
	"fmt"
	"strings"
)

// StackEvent is a deployment status notification parsed from the
// structured text block emitted by the stack service. Each line has the
// form key='value'.
type StackEvent struct {
	StackID            string
	StackName          string
	LogicalResourceID  string
	PhysicalResourceID string
	ResourceType       string
	ResourceStatus     string
	Timestamp          string
}

// completionStates are the resource statuses that end an update, whether
// it succeeded or rolled back.
var completionStates = map[string]struct{}{
	"CREATE_COMPLETE":          {},
	"UPDATE_COMPLETE":          {},
	"DELETE_COMPLETE":          {},
	"UPDATE_ROLLBACK_COMPLETE": {},
	"UPDATE_ROLLBACK_FAILED":   {},
	"ROLLBACK_COMPLETE":        {},
	"CREATE_FAILED":            {},
	"UPDATE_FAILED":            {},
	"ROLLBACK_FAILED":          {},
}

// Complete reports whether the event's status terminates the update.
func (e StackEvent) Complete() bool {
	_, ok := completionStates[e.ResourceStatus]
	return ok
}

// Succeeded reports whether the event's status is a clean completion.
func (e StackEvent) Succeeded() bool {
	return strings.HasSuffix(e.ResourceStatus, "_COMPLETE") &&
		!strings.Contains(e.ResourceStatus, "ROLLBACK")
}

// TopLevel reports whether the event describes the deployment itself
// rather than one of its nested resources.
func (e StackEvent) TopLevel() bool {
	return e.LogicalResourceID == e.StackName
}

// LogEntry renders the event as the ordered log line appended to a
// correlation item.
func (e StackEvent) LogEntry() string {
	return fmt.Sprintf("%s-%s", e.ResourceStatus, e.Timestamp)
}

// ParseStackEvent parses the key='value' message body of a deployment
// status notification. Unknown keys are ignored; quotes around values
// are optional.
func ParseStackEvent(body string) (StackEvent, error) {
	var event StackEvent
	seen := false

	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		value = strings.Trim(value, "'")
		seen = true

		switch key {
		case "StackId":
			event.StackID = value
		case "StackName":
			event.StackName = value
		case "LogicalResourceId":
			event.LogicalResourceID = value
		case "PhysicalResourceId":
			event.PhysicalResourceID = value
		case "ResourceType":
			event.ResourceType = value
		case "ResourceStatus":
			event.ResourceStatus = value
		case "Timestamp":
			event.Timestamp = value
		}
	}

	if !seen || event.ResourceStatus == "" {
		return StackEvent{}, fmt.Errorf("malformed stack event body")
	}
	return event, nil
}
