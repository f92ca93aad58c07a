package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"rightsize_backend/internal/events"
	"rightsize_backend/internal/insights/domain"
	"rightsize_backend/internal/insights/ports"
	"rightsize_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

// Severities for correlation items created on approval. Rightsizing for
// savings is routine; a downsizing taken for performance reasons gets a
// closer look.
const (
	severityCost        = 2
	severityPerformance = 1
)

// GetRecord reads one tracked record by parameter key.
func (s *Service) GetRecord(ctx context.Context, key string) (*domain.TrackedRecord, error) {
	return s.store.Get(ctx, key)
}

// Approve advances a record from Initialize to Approved: a new version
// holding the recommended type is written, the approval tag set, the
// global last-update timestamp stamped. Returns false when the current
// label is not Initialize (benign no-op).
func (s *Service) Approve(ctx context.Context, serviceType domain.ServiceType, resourceID, name string) (bool, error) {
	const op = "service.Approve"
	key := domain.ParameterKeyFor(serviceType, resourceID, name)

	record, err := s.store.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if record.Label != domain.LabelInitialize {
		s.log.TransitionSkipped(key, record.Label.String(), domain.LabelInitialize.String())
		return false, nil
	}

	recommended := record.Tag(domain.TagRecommended)
	if recommended == "" {
		return false, apperr.Conflict("record has no recommended type").WithOp(op)
	}

	version, err := s.store.Put(ctx, key, recommended, record.Description)
	if err != nil {
		return false, apperr.Wrap(err, apperr.KindUpstream, "write approved version").WithOp(op)
	}
	if err := s.store.AddTags(ctx, key, map[string]string{domain.TagApprovalType: "Approved"}); err != nil {
		return false, apperr.Wrap(err, apperr.KindUpstream, "tag approval").WithOp(op)
	}
	if err := s.store.Label(ctx, key, version, domain.LabelApproved); err != nil {
		return false, apperr.Wrap(err, apperr.KindUpstream, "label approved").WithOp(op)
	}
	s.stampLastUpdated(ctx)

	s.log.Transition(key, domain.LabelInitialize.String(), domain.LabelApproved.String())
	s.publishLabeled(ctx, key, domain.LabelApproved, record.Tag("stackName"))
	return true, nil
}

// Close advances a record from Executed to Closed, resolving its
// correlation item, closing the change ticket and stripping tags.
// Returns false when the current label is not Executed (benign no-op).
func (s *Service) Close(ctx context.Context, serviceType domain.ServiceType, resourceID, name string) (bool, error) {
	key := domain.ParameterKeyFor(serviceType, resourceID, name)
	record, err := s.store.Get(ctx, key)
	if err != nil {
		return false, err
	}
	return s.closeRecord(ctx, record)
}

func (s *Service) closeRecord(ctx context.Context, record *domain.TrackedRecord) (bool, error) {
	const op = "service.closeRecord"
	key := record.Key
	log := s.log.WithRecord(key)

	if record.Label != domain.LabelExecuted {
		s.log.TransitionSkipped(key, record.Label.String(), domain.LabelExecuted.String())
		return false, nil
	}

	version, err := s.store.Put(ctx, key, record.Value, record.Description)
	if err != nil {
		return false, apperr.Wrap(err, apperr.KindUpstream, "write closed version").WithOp(op)
	}
	if err := s.store.Label(ctx, key, version, domain.LabelClosed); err != nil {
		return false, apperr.Wrap(err, apperr.KindUpstream, "label closed").WithOp(op)
	}

	s.archiveCloseReport(ctx, record)
	if ticketID := record.TicketID(); ticketID != "" {
		if err := s.tickets.Close(ctx, ticketID); err != nil {
			log.AdapterError("tickets", "close", err)
		}
	}
	if err := s.resolveTrackedItem(ctx, record); err != nil {
		return false, err
	}

	names := make([]string, 0, len(record.Tags))
	for name := range record.Tags {
		names = append(names, name)
	}
	if err := s.store.RemoveTags(ctx, key, names); err != nil {
		return false, apperr.Wrap(err, apperr.KindUpstream, "strip tags").WithOp(op)
	}

	deployment := record.Tag("stackName")
	s.log.Transition(key, domain.LabelExecuted.String(), domain.LabelClosed.String())
	s.publishLabeled(ctx, key, domain.LabelClosed, deployment)

	if deployment != "" {
		if _, err := s.ResolveIfOrphaned(ctx, deployment); err != nil {
			log.Error("orphan window check failed", "error", err.Error())
		}
	}
	return true, nil
}

// OnRecordLabeled fans a label transition out to the collaborators that
// track it. Initialize opens the change ticket; Approved creates the
// correlation item and links it to its deployment siblings. Both paths
// are idempotent against re-delivery.
func (s *Service) OnRecordLabeled(ctx context.Context, parameterKey string, label domain.Label) error {
	switch label {
	case domain.LabelInitialize:
		return s.ensureTicket(ctx, parameterKey)
	case domain.LabelApproved:
		return s.ensureCorrelationItem(ctx, parameterKey)
	default:
		return nil
	}
}

func (s *Service) ensureTicket(ctx context.Context, parameterKey string) error {
	log := s.log.WithRecord(parameterKey)

	tags, err := s.store.ListTags(ctx, parameterKey)
	if err != nil {
		return apperr.Wrap(err, apperr.KindUpstream, "read tags").WithOp("service.ensureTicket")
	}
	if tags[domain.TagTicketID] != "" {
		return nil
	}

	ticketID, err := s.tickets.Open(ctx, tags)
	if err != nil {
		// External ticket failures never block the lifecycle.
		log.AdapterError("tickets", "open", err)
		return nil
	}
	if ticketID == "" {
		return nil
	}
	return s.addTagsVerified(ctx, parameterKey, map[string]string{domain.TagTicketID: ticketID})
}

func (s *Service) ensureCorrelationItem(ctx context.Context, parameterKey string) error {
	const op = "service.ensureCorrelationItem"

	tags, err := s.store.ListTags(ctx, parameterKey)
	if err != nil {
		return apperr.Wrap(err, apperr.KindUpstream, "read tags").WithOp(op)
	}
	if tags[domain.TagOpsItemID] != "" {
		return nil
	}
	deployment := tags["stackName"]

	// A positive savings estimate is a cost play; a negative one means
	// the resource is being sized up for performance.
	category := domain.CategoryCostOptimization
	severity := severityCost
	if savings, err := strconv.ParseFloat(tags["savingsEstimate"], 64); err == nil && savings < 0 {
		category = domain.CategoryPerformance
		severity = severityPerformance
	}

	opData := map[string]string{
		domain.OpDataParameterKey: parameterKey,
		domain.OpDataDeployment:   deployment,
	}
	for _, name := range []string{"serviceType", "resourceId", "name", "stackId", "logicalId", "reportUrl"} {
		if tags[name] != "" {
			opData[name] = tags[name]
		}
	}

	item := &domain.OpsItem{
		Title:           fmt.Sprintf("Rightsizing %s", tags["resourceId"]),
		Description:     fmt.Sprintf("Approved rightsizing of %s from %s to %s", tags["resourceId"], tags[domain.TagCurrentType], tags[domain.TagRecommended]),
		Status:          domain.StatusOpen,
		Category:        category,
		Severity:        severity,
		OperationalData: opData,
	}
	itemID, err := s.tracker.Create(ctx, item)
	if err != nil {
		return apperr.Wrap(err, apperr.KindUpstream, "create correlation item").WithOp(op)
	}

	if deployment != "" {
		if err := s.LinkSiblings(ctx, deployment, itemID); err != nil {
			return err
		}
		s.inheritWindowDetails(ctx, deployment, itemID)
	}
	return s.addTagsVerified(ctx, parameterKey, map[string]string{domain.TagOpsItemID: itemID.String()})
}

// inheritWindowDetails copies an already-scheduled sibling's window
// assignment onto a freshly created item, so a deployment keeps a single
// shared window even when approvals trickle in after scheduling.
func (s *Service) inheritWindowDetails(ctx context.Context, deployment string, itemID uuid.UUID) {
	log := s.log.WithDeployment(deployment)

	ids, err := s.activeItems(ctx, deployment)
	if err != nil {
		log.Warn("sibling window lookup failed", "error", err.Error())
		return
	}
	for _, id := range ids {
		if id == itemID {
			continue
		}
		sibling, err := s.tracker.Get(ctx, id)
		if err != nil {
			continue
		}
		details := sibling.OperationalData[domain.OpDataWindowDetails]
		if details == "" {
			continue
		}
		update := ports.ItemUpdate{
			OperationalData: map[string]string{domain.OpDataWindowDetails: details},
		}
		if err := s.tracker.Update(ctx, itemID, update); err != nil {
			log.Warn("window inheritance failed", "error", err.Error())
		}
		return
	}
}

// addTagsVerified writes tags and reads them back until the store agrees,
// bounded by the configured attempt count. The tag store is eventually
// consistent.
func (s *Service) addTagsVerified(ctx context.Context, key string, tags map[string]string) error {
	const op = "service.addTagsVerified"

	if err := s.store.AddTags(ctx, key, tags); err != nil {
		return apperr.Wrap(err, apperr.KindUpstream, "add tags").WithOp(op)
	}

	attempts := s.cfg.GetTicketRetryAttempts()
	if attempts < 1 {
		attempts = 1
	}
	backoff := retry.WithMaxRetries(uint64(attempts), retry.NewConstant(s.cfg.GetTicketRetryDelay()))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		have, err := s.store.ListTags(ctx, key)
		if err != nil {
			return retry.RetryableError(err)
		}
		for name, want := range tags {
			if have[name] != want {
				if err := s.store.AddTags(ctx, key, tags); err != nil {
					return retry.RetryableError(err)
				}
				return retry.RetryableError(fmt.Errorf("tag %s not yet visible", name))
			}
		}
		return nil
	})
	if err != nil {
		s.log.WithRecord(key).Warn("tag read-back mismatch after retries", "error", err.Error())
	}
	return nil
}

// archiveCloseReport keeps a record of what was executed. Archival is
// best effort; a report that cannot be stored never blocks the close.
func (s *Service) archiveCloseReport(ctx context.Context, record *domain.TrackedRecord) {
	if s.reports == nil {
		return
	}
	log := s.log.WithRecord(record.Key)

	report := struct {
		ParameterKey string            `json:"parameterKey"`
		CurrentType  string            `json:"currentType"`
		AppliedType  string            `json:"appliedType"`
		TicketID     string            `json:"ticketId,omitempty"`
		Deployment   string            `json:"stackName,omitempty"`
		Tags         map[string]string `json:"tags,omitempty"`
		ClosedAt     time.Time         `json:"closedAt"`
	}{
		ParameterKey: record.Key,
		CurrentType:  record.Tag(domain.TagCurrentType),
		AppliedType:  record.Value,
		TicketID:     record.TicketID(),
		Deployment:   record.Tag("stackName"),
		Tags:         record.Tags,
		ClosedAt:     s.now().UTC(),
	}

	data, err := json.Marshal(report)
	if err != nil {
		log.Error("encode close report", "error", err.Error())
		return
	}
	name := fmt.Sprintf("close-%s-%d.json", strings.ReplaceAll(strings.TrimPrefix(record.Key, "/"), "/", "-"), record.Version)
	path, err := s.reports.Store(ctx, name, bytes.NewReader(data), int64(len(data)))
	if err != nil {
		log.AdapterError("reports", "store", err)
		return
	}

	if ticketID := record.TicketID(); ticketID != "" {
		if err := s.tickets.Attach(ctx, ticketID, name, data); err != nil {
			log.AdapterError("tickets", "attach", err)
		}
		if err := s.tickets.Update(ctx, ticketID, map[string]string{"work_notes": "change report archived at " + path}); err != nil {
			log.AdapterError("tickets", "update", err)
		}
	}
}

func (s *Service) stampLastUpdated(ctx context.Context) {
	stamp := s.now().UTC().Format(time.RFC3339)
	if _, err := s.store.Put(ctx, lastUpdatedKey, stamp, "Last lifecycle update"); err != nil {
		s.log.AdapterError("store", "stamp last updated", err)
	}
}

func (s *Service) publishLabeled(ctx context.Context, key string, label domain.Label, deployment string) {
	if s.bus == nil {
		return
	}
	evt := events.RecordLabeled{
		BaseEvent:    events.NewBaseEvent(),
		ParameterKey: key,
		Label:        label.String(),
		Deployment:   deployment,
	}
	if err := s.bus.PublishSync(ctx, evt); err != nil {
		s.log.WithRecord(key).Error("label fan-out failed", "error", err.Error())
	}
}

func (s *Service) publishReset(ctx context.Context, key, deployment string) {
	if s.bus == nil {
		return
	}
	evt := events.RecordReset{
		BaseEvent:    events.NewBaseEvent(),
		ParameterKey: key,
		Deployment:   deployment,
	}
	if err := s.bus.PublishSync(ctx, evt); err != nil {
		s.log.WithRecord(key).Error("reset fan-out failed", "error", err.Error())
	}
}
