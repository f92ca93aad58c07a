// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"rightsize_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Insight Lifecycle Domain Events
// =============================================================================

// RecordLabeled is published after a lifecycle label lands on a tracked
// record's current version. Subscribers fan the transition out to the
// correlation tracker and ticket system.
type RecordLabeled struct {
	BaseEvent
	ParameterKey string `json:"parameterKey"`
	Label        string `json:"label"`
	Deployment   string `json:"deployment,omitempty"`
}

func (e RecordLabeled) EventName() string { return "insights.record.labeled" }

// RecordReset is published when a changed recommendation supersedes an
// in-flight lifecycle and the record is rewritten at Initialize.
type RecordReset struct {
	BaseEvent
	ParameterKey string `json:"parameterKey"`
	Deployment   string `json:"deployment,omitempty"`
}

func (e RecordReset) EventName() string { return "insights.record.reset" }

// WindowFired is published when a maintenance window opens for a
// deployment and its scheduled items are due for execution.
type WindowFired struct {
	BaseEvent
	OpsItemID  uuid.UUID `json:"opsItemId"`
	Deployment string    `json:"deployment"`
}

func (e WindowFired) EventName() string { return "insights.window.fired" }

// ExecutionRefused is published when the drift gate blocks a deployment
// update.
type ExecutionRefused struct {
	BaseEvent
	Deployment string `json:"deployment"`
	Outcome    string `json:"outcome"`
}

func (e ExecutionRefused) EventName() string { return "insights.execution.refused" }

// DeploymentCompleted is published when the top-level stack event for a
// deployment update reports completion.
type DeploymentCompleted struct {
	BaseEvent
	Deployment string `json:"deployment"`
	StackID    string `json:"stackId"`
	Status     string `json:"status"`
}

func (e DeploymentCompleted) EventName() string { return "insights.deployment.completed" }
