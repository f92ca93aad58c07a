// Package domain contains the core types for the rightsizing insight
// lifecycle: insights, tracked records, correlation items and maintenance
// windows. It has no dependencies on adapters or transport.
package domain

import "fmt"

// ServiceType identifies the kind of cloud resource an insight targets.
type ServiceType string

const (
	// ServiceCompute is a compute instance (sized by instance type).
	ServiceCompute ServiceType = "ec2"
	// ServiceDatabase is a managed database (sized by instance class).
	ServiceDatabase ServiceType = "rds"
)

// Valid reports whether the service type is one of the known variants.
func (s ServiceType) Valid() bool {
	return s == ServiceCompute || s == ServiceDatabase
}

// Insight is a proposed or current rightsizing recommendation for one
// resource. Immutable once received from the analysis engine.
type Insight struct {
	ResourceID      string
	Name            string
	ServiceType     ServiceType
	Region          string
	CurrentType     string
	RecommendedType string
	SavingsEstimate string
	StackID         string
	StackName       string
	LogicalID       string
	// Attributes carries the remaining free-form insight fields, synced
	// to the tracked record as tags.
	Attributes map[string]string
}

// ParameterKey derives the tracked record key for this insight.
// Compute resources key on resource id, databases on name.
func (i Insight) ParameterKey() string {
	if i.ServiceType == ServiceDatabase {
		return fmt.Sprintf("/optimizer/iaas/rds/%s/dbInstanceClass", i.Name)
	}
	return fmt.Sprintf("/optimizer/iaas/ec2/%s/instanceType", i.ResourceID)
}

// ParameterKeyFor derives the tracked record key from the identity fields
// of an approve/close request.
func ParameterKeyFor(serviceType ServiceType, resourceID, name string) string {
	return Insight{ServiceType: serviceType, ResourceID: resourceID, Name: name}.ParameterKey()
}

// Workflow tags attached to a tracked record alongside the insight
// attributes. These are owned by the lifecycle, not by the insight, and
// are ignored by change detection.
const (
	TagTicketID     = "itsmTicketId"
	TagOpsItemID    = "opsItemId"
	TagApprovalType = "approvalType"
	TagCurrentType  = "currentType"
	TagRecommended  = "recommendedType"
)

// Tags flattens the insight into the tag map stored on its tracked record.
func (i Insight) Tags() map[string]string {
	tags := make(map[string]string, len(i.Attributes)+8)
	for k, v := range i.Attributes {
		tags[k] = v
	}
	tags[TagCurrentType] = i.CurrentType
	tags[TagRecommended] = i.RecommendedType
	tags["resourceId"] = i.ResourceID
	tags["name"] = i.Name
	tags["serviceType"] = string(i.ServiceType)
	if i.Region != "" {
		tags["region"] = i.Region
	}
	if i.StackID != "" {
		tags["stackId"] = i.StackID
	}
	if i.StackName != "" {
		tags["stackName"] = i.StackName
	}
	if i.LogicalID != "" {
		tags["logicalId"] = i.LogicalID
	}
	if i.SavingsEstimate != "" {
		tags["savingsEstimate"] = i.SavingsEstimate
	}
	return tags
}
