package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"rightsize_backend/internal/events"
	"rightsize_backend/internal/insights/domain"
	"rightsize_backend/internal/insights/ports"
	"rightsize_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

const severityRecovery = 1

var (
	errStalePoll        = errors.New("stale drift poll")
	errDetectionPending = errors.New("drift detection in progress")
)

// OnWindowFired runs when a deployment's maintenance window opens. The
// drift gate must pass before the deployment update is dispatched; a
// refusal produces an error correlation item and leaves the lifecycle at
// Scheduled for the next window.
func (s *Service) OnWindowFired(ctx context.Context, opsItemID uuid.UUID) error {
	const op = "service.OnWindowFired"

	item, err := s.tracker.Get(ctx, opsItemID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			s.log.Warn("window fired for unknown item", "ops_item_id", opsItemID)
			return nil
		}
		return err
	}
	deployment := item.Deployment()
	log := s.log.WithDeployment(deployment)

	record, err := s.store.Get(ctx, item.ParameterKey())
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			log.Warn("window fired for untracked record", "parameter_key", item.ParameterKey())
			return nil
		}
		return err
	}
	if record.Label != domain.LabelScheduled {
		s.log.TransitionSkipped(record.Key, record.Label.String(), domain.LabelScheduled.String())
		return nil
	}

	stackID := record.Tag("stackId")
	if stackID == "" {
		stackID = deployment
	}

	outcome := s.checkDrift(ctx, stackID)
	if !outcome.Executable() {
		log.Warn("execution refused", "outcome", outcome.String())
		if err := s.refuseExecution(ctx, deployment, outcome); err != nil {
			return err
		}
		s.publishRefused(ctx, deployment, outcome)
		return nil
	}

	if err := s.stack.Update(ctx, stackID); err != nil {
		return apperr.Wrap(err, apperr.KindUpstream, "dispatch deployment update").WithOp(op)
	}
	log.Info("deployment update dispatched", "stack_id", stackID)

	// Advance every scheduled sibling record and note the dispatch on
	// each related item.
	dispatchNote := fmt.Sprintf("execution dispatched for %s", stackID)
	members := append([]uuid.UUID{item.ID}, item.Related.IDs()...)
	for _, id := range members {
		member, err := s.tracker.Get(ctx, id)
		if err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				continue
			}
			return apperr.Wrap(err, apperr.KindUpstream, "read item").WithOp(op)
		}
		member.AppendEvent(dispatchNote)
		status := domain.StatusInProgress
		if err := s.tracker.Update(ctx, id, ports.ItemUpdate{Status: &status, OperationalData: member.OperationalData}); err != nil {
			return apperr.Wrap(err, apperr.KindUpstream, "note dispatch").WithOp(op)
		}

		if key := member.ParameterKey(); key != "" {
			if err := s.markExecuted(ctx, key); err != nil {
				log.WithRecord(key).Error("executed transition failed", "error", err.Error())
			}
		}
	}
	return nil
}

// checkDrift runs the bounded drift poll. A poll is only accepted when
// its check timestamp is no older than the start of this gate, guarding
// against stale cached results. An exhausted budget yields DriftUnknown,
// which refuses execution.
func (s *Service) checkDrift(ctx context.Context, stackID string) domain.DriftOutcome {
	start := s.now()

	detectionID, err := s.stack.DetectDrift(ctx, stackID)
	if err != nil {
		s.log.AdapterError("stack", "detect drift", err)
		return domain.DriftDetectionFailed
	}

	outcome := domain.DriftUnknown
	backoff := retry.WithMaxDuration(s.cfg.GetDriftPollBudget(), retry.NewConstant(s.cfg.GetDriftPollInterval()))
	_ = retry.Do(ctx, backoff, func(ctx context.Context) error {
		poll, err := s.stack.PollDrift(ctx, detectionID)
		if err != nil {
			return retry.RetryableError(err)
		}
		if poll.CheckedAt.Before(start) {
			return retry.RetryableError(errStalePoll)
		}
		switch poll.DetectionStatus {
		case ports.DetectionFailed:
			outcome = domain.DriftDetectionFailed
			return nil
		case ports.DetectionComplete:
			if poll.StackDriftStatus == ports.StackInSync {
				outcome = domain.DriftInSync
			} else {
				outcome = domain.DriftDetected
			}
			return nil
		default:
			return retry.RetryableError(errDetectionPending)
		}
	})
	return outcome
}

// refuseExecution creates an error correlation item for the deployment
// and moves every active sibling to InProgress with a failure note. The
// underlying recommendations stay pending.
func (s *Service) refuseExecution(ctx context.Context, deployment string, outcome domain.DriftOutcome) error {
	const op = "service.refuseExecution"

	note := fmt.Sprintf("execution refused: %s", outcome)
	errorItem := &domain.OpsItem{
		Title:       fmt.Sprintf("Execution refused for %s", deployment),
		Description: "Deployment failed its pre-execution consistency check",
		Status:      domain.StatusOpen,
		Category:    domain.CategoryRecovery,
		Severity:    severityRecovery,
		OperationalData: map[string]string{
			domain.OpDataDeployment:  deployment,
			domain.OpDataFailureNote: note,
		},
	}
	errorItemID, err := s.tracker.Create(ctx, errorItem)
	if err != nil {
		return apperr.Wrap(err, apperr.KindUpstream, "create error item").WithOp(op)
	}
	if err := s.LinkSiblings(ctx, deployment, errorItemID); err != nil {
		return err
	}

	ids, err := s.activeItems(ctx, deployment)
	if err != nil {
		return err
	}
	status := domain.StatusInProgress
	for _, id := range ids {
		if id == errorItemID {
			continue
		}
		update := ports.ItemUpdate{
			Status:          &status,
			OperationalData: map[string]string{domain.OpDataFailureNote: note},
		}
		if err := s.tracker.Update(ctx, id, update); err != nil {
			return apperr.Wrap(err, apperr.KindUpstream, "flag sibling item").WithOp(op)
		}
	}
	return nil
}

// markExecuted advances one record from Scheduled to Executed.
func (s *Service) markExecuted(ctx context.Context, key string) error {
	const op = "service.markExecuted"

	record, err := s.store.Get(ctx, key)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil
		}
		return err
	}
	if record.Label != domain.LabelScheduled {
		s.log.TransitionSkipped(key, record.Label.String(), domain.LabelScheduled.String())
		return nil
	}

	version, err := s.store.Put(ctx, key, record.Value, record.Description)
	if err != nil {
		return apperr.Wrap(err, apperr.KindUpstream, "write executed version").WithOp(op)
	}
	if err := s.store.Label(ctx, key, version, domain.LabelExecuted); err != nil {
		return apperr.Wrap(err, apperr.KindUpstream, "label executed").WithOp(op)
	}

	s.log.Transition(key, domain.LabelScheduled.String(), domain.LabelExecuted.String())
	s.publishLabeled(ctx, key, domain.LabelExecuted, record.Tag("stackName"))
	return nil
}

// OnStackEvent processes one deployment status notification. Nested
// resource events are appended to the correlation items' event log;
// the top-level completion event closes out the deployment.
func (s *Service) OnStackEvent(ctx context.Context, body string) error {
	const op = "service.OnStackEvent"

	event, err := domain.ParseStackEvent(body)
	if err != nil {
		return apperr.Validation("malformed stack event").WithOp(op)
	}
	deployment := event.StackName
	if deployment == "" {
		deployment = stackNameFromID(event.StackID)
	}
	if deployment == "" {
		return apperr.Validation("stack event has no deployment identity").WithOp(op)
	}
	log := s.log.WithDeployment(deployment)

	if !event.TopLevel() {
		return s.appendToActiveItems(ctx, deployment, event.LogEntry())
	}
	if !event.Complete() {
		return s.appendToActiveItems(ctx, deployment, event.LogEntry())
	}

	// The event may lag the deployment; only the live status counts.
	stackID := event.StackID
	if stackID == "" {
		stackID = deployment
	}
	live, err := s.stack.Status(ctx, stackID)
	if err != nil {
		return apperr.Wrap(err, apperr.KindUpstream, "verify stack status").WithOp(op)
	}
	if live != event.ResourceStatus {
		log.Warn("stack event does not match live status", "event_status", event.ResourceStatus, "live_status", live)
		return s.appendToActiveItems(ctx, deployment, event.LogEntry())
	}

	s.publishCompleted(ctx, deployment, event)

	if !event.Succeeded() {
		log.Warn("deployment update did not succeed", "status", event.ResourceStatus)
		return s.failDeployment(ctx, deployment, event)
	}

	// Clean completion: close out every executed record of the deployment.
	ids, err := s.activeItems(ctx, deployment)
	if err != nil {
		return err
	}
	for _, id := range ids {
		item, err := s.tracker.Get(ctx, id)
		if err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				continue
			}
			return apperr.Wrap(err, apperr.KindUpstream, "read item").WithOp(op)
		}
		key := item.ParameterKey()
		if key == "" {
			continue
		}
		record, err := s.store.Get(ctx, key)
		if err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				continue
			}
			return err
		}
		if _, err := s.closeRecord(ctx, record); err != nil {
			log.WithRecord(key).Error("close failed", "error", err.Error())
		}
	}
	return nil
}

// failDeployment handles an update that completed without succeeding: an
// error correlation item is raised, every active sibling is flagged
// InProgress with the terminal status, and each sibling's change ticket
// gets the status as a work note. Records stay at Executed so the failed
// deployment can be inspected and closed out manually.
func (s *Service) failDeployment(ctx context.Context, deployment string, event domain.StackEvent) error {
	const op = "service.failDeployment"

	errorItem := &domain.OpsItem{
		Title:       fmt.Sprintf("Deployment update failed for %s", deployment),
		Description: "Stack did not update correctly",
		Status:      domain.StatusOpen,
		Category:    domain.CategoryRecovery,
		Severity:    severityRecovery,
		OperationalData: map[string]string{
			domain.OpDataDeployment:  deployment,
			domain.OpDataFailureNote: event.ResourceStatus,
		},
	}
	errorItemID, err := s.tracker.Create(ctx, errorItem)
	if err != nil {
		return apperr.Wrap(err, apperr.KindUpstream, "create error item").WithOp(op)
	}
	if err := s.LinkSiblings(ctx, deployment, errorItemID); err != nil {
		return err
	}

	ids, err := s.activeItems(ctx, deployment)
	if err != nil {
		return err
	}
	status := domain.StatusInProgress
	for _, id := range ids {
		if id == errorItemID {
			continue
		}
		item, err := s.tracker.Get(ctx, id)
		if err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				continue
			}
			return apperr.Wrap(err, apperr.KindUpstream, "read item").WithOp(op)
		}
		item.AppendEvent(event.LogEntry())
		item.OperationalData[domain.OpDataFailureNote] = event.ResourceStatus
		if err := s.tracker.Update(ctx, id, ports.ItemUpdate{Status: &status, OperationalData: item.OperationalData}); err != nil {
			return apperr.Wrap(err, apperr.KindUpstream, "flag sibling item").WithOp(op)
		}

		key := item.ParameterKey()
		if key == "" {
			continue
		}
		record, err := s.store.Get(ctx, key)
		if err != nil {
			continue
		}
		if ticketID := record.TicketID(); ticketID != "" {
			if err := s.tickets.Update(ctx, ticketID, map[string]string{"work_notes": event.ResourceStatus}); err != nil {
				s.log.WithRecord(key).AdapterError("tickets", "update", err)
			}
		}
	}
	return nil
}

func (s *Service) appendToActiveItems(ctx context.Context, deployment, entry string) error {
	const op = "service.appendToActiveItems"

	ids, err := s.activeItems(ctx, deployment)
	if err != nil {
		return err
	}
	for _, id := range ids {
		item, err := s.tracker.Get(ctx, id)
		if err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				continue
			}
			return apperr.Wrap(err, apperr.KindUpstream, "read item").WithOp(op)
		}
		item.AppendEvent(entry)
		if err := s.tracker.Update(ctx, id, ports.ItemUpdate{OperationalData: item.OperationalData}); err != nil {
			return apperr.Wrap(err, apperr.KindUpstream, "append event").WithOp(op)
		}
	}
	return nil
}

// stackNameFromID extracts the stack name from an ARN-shaped stack id.
func stackNameFromID(stackID string) string {
	parts := strings.Split(stackID, "/")
	if len(parts) >= 2 {
		return parts[1]
	}
	return ""
}

func (s *Service) publishRefused(ctx context.Context, deployment string, outcome domain.DriftOutcome) {
	if s.bus == nil {
		return
	}
	evt := events.ExecutionRefused{
		BaseEvent:  events.NewBaseEvent(),
		Deployment: deployment,
		Outcome:    outcome.String(),
	}
	if err := s.bus.PublishSync(ctx, evt); err != nil {
		s.log.WithDeployment(deployment).Error("refusal fan-out failed", "error", err.Error())
	}
}

func (s *Service) publishCompleted(ctx context.Context, deployment string, event domain.StackEvent) {
	if s.bus == nil {
		return
	}
	evt := events.DeploymentCompleted{
		BaseEvent:  events.NewBaseEvent(),
		Deployment: deployment,
		StackID:    event.StackID,
		Status:     event.ResourceStatus,
	}
	if err := s.bus.PublishSync(ctx, evt); err != nil {
		s.log.WithDeployment(deployment).Error("completion fan-out failed", "error", err.Error())
	}
}
