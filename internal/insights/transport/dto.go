package transport

import "time"

// InsightRequest is one rightsizing insight in an inbound batch.
type InsightRequest struct {
	ResourceID      string            `json:"resourceId" validate:"required_if=ServiceType ec2,max=128"`
	Name            string            `json:"name" validate:"required_if=ServiceType rds,max=128"`
	ServiceType     string            `json:"serviceType" validate:"required,oneof=ec2 rds"`
	Region          string            `json:"region" validate:"required,max=32"`
	CurrentType     string            `json:"currentType" validate:"required,instancetype"`
	RecommendedType string            `json:"recommendedType" validate:"required,instancetype"`
	SavingsEstimate string            `json:"savingsEstimate" validate:"max=64"`
	StackID         string            `json:"stackId" validate:"max=512"`
	StackName       string            `json:"stackName" validate:"max=255"`
	LogicalID       string            `json:"logicalId" validate:"max=255"`
	Attributes      map[string]string `json:"attributes"`
}

// BatchRequest carries a reconciliation batch for one deployment.
type BatchRequest struct {
	StackName string           `json:"stackName" validate:"required,max=255"`
	Insights  []InsightRequest `json:"insights" validate:"required,min=1,max=500,dive"`
}

// BatchResponse reports what the reconciler did with a batch.
type BatchResponse struct {
	Applied   int `json:"applied"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
}

// TransitionRequest identifies a tracked record for approve and close.
type TransitionRequest struct {
	ServiceType string `json:"serviceType" validate:"required,oneof=ec2 rds"`
	Name        string `json:"name" validate:"required_if=ServiceType rds,max=128"`
	ResourceID  string `json:"resourceId" validate:"required_if=ServiceType ec2,max=128"`
	Region      string `json:"region" validate:"max=32"`
}

// TransitionResponse reports whether the transition was applied or
// skipped as a benign no-op.
type TransitionResponse struct {
	Applied bool `json:"applied"`
}

// LabelEventRequest is an inbound label change notification.
type LabelEventRequest struct {
	ParameterKey string `json:"parameterKey" validate:"required,startswith=/,max=512"`
	Label        string `json:"label" validate:"required,max=32"`
}

// ScheduleRequest attaches a maintenance window to a correlation item
// and its deployment siblings.
type ScheduleRequest struct {
	OpsItemID      string `json:"opsItemId" validate:"required,uuid"`
	CronExpression string `json:"cronExpression" validate:"required,max=64"`
	Timezone       string `json:"timezone" validate:"required,max=64"`
	Duration       int    `json:"duration" validate:"required,min=1,max=24"`
}

// RecordResponse is the external view of a tracked record.
type RecordResponse struct {
	ParameterKey string            `json:"parameterKey"`
	Value        string            `json:"value"`
	Version      int64             `json:"version"`
	Label        string            `json:"label"`
	Tags         map[string]string `json:"tags,omitempty"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}
