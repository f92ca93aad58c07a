package domain

import "time"

// TrackedRecord is the versioned, labeled key/value entry representing one
// resource's current lifecycle state. Each label transition writes a new
// version; history is never mutated.
type TrackedRecord struct {
	Key         string
	Value       string
	Description string
	Version     int64
	Label       Label
	Tags        map[string]string
	UpdatedAt   time.Time
}

// Tag returns the named tag value, or empty string when absent.
func (r *TrackedRecord) Tag(name string) string {
	if r == nil || r.Tags == nil {
		return ""
	}
	return r.Tags[name]
}

// TicketID returns the change ticket reference stored on the record.
func (r *TrackedRecord) TicketID() string {
	return r.Tag(TagTicketID)
}

// OpsItemID returns the correlation item reference stored on the record.
func (r *TrackedRecord) OpsItemID() string {
	return r.Tag(TagOpsItemID)
}
