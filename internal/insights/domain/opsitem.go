package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ItemStatus is the workflow status of a correlation item.
type ItemStatus string

const (
	StatusOpen       ItemStatus = "Open"
	StatusInProgress ItemStatus = "InProgress"
	StatusResolved   ItemStatus = "Resolved"
)

// Active reports whether the item still participates in window gating.
func (s ItemStatus) Active() bool {
	return s == StatusOpen || s == StatusInProgress
}

// Operational data keys on a correlation item.
const (
	// OpDataParameterKey back-references exactly one tracked record.
	OpDataParameterKey = "parameterKey"
	// OpDataDeployment groups items belonging to one stack.
	OpDataDeployment = "stackName"
	// OpDataWindowDetails holds the maintenance window assignment once
	// the item is scheduled.
	OpDataWindowDetails = "scheduledMaintenanceWindowDetails"
	// OpDataEventLog accumulates per-resource deployment status entries.
	OpDataEventLog = "resourceEvents"
	// OpDataFailureNote records a structured execution refusal.
	OpDataFailureNote = "executionFailure"
)

// Correlation item categories.
const (
	CategoryCostOptimization = "Cost"
	CategoryPerformance      = "Performance"
	CategoryRecovery         = "Recovery"
)

// OpsItem is the per-deployment correlation ticket. One item tracks one
// tracked record; siblings for the same deployment reference each other
// through Related.
type OpsItem struct {
	ID              uuid.UUID
	Title           string
	Description     string
	Status          ItemStatus
	Category        string
	Severity        int
	OperationalData map[string]string
	Related         RelatedSet
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ParameterKey returns the tracked record this item tracks.
func (o *OpsItem) ParameterKey() string {
	return o.OperationalData[OpDataParameterKey]
}

// Deployment returns the stack this item belongs to.
func (o *OpsItem) Deployment() string {
	return o.OperationalData[OpDataDeployment]
}

// SetWindowDetails records the maintenance window assignment on the item.
func (o *OpsItem) SetWindowDetails(w MaintenanceWindow) {
	if o.OperationalData == nil {
		o.OperationalData = make(map[string]string)
	}
	o.OperationalData[OpDataWindowDetails] = w.Details()
}

// AppendEvent appends an ordered deployment status entry to the item's
// operational data without advancing its status.
func (o *OpsItem) AppendEvent(entry string) {
	if o.OperationalData == nil {
		o.OperationalData = make(map[string]string)
	}
	existing := o.OperationalData[OpDataEventLog]
	if existing == "" {
		o.OperationalData[OpDataEventLog] = entry
		return
	}
	o.OperationalData[OpDataEventLog] = fmt.Sprintf("%s\n%s", existing, entry)
}
