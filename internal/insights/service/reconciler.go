package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rightsize_backend/internal/insights/domain"
	"rightsize_backend/platform/apperr"

	"golang.org/x/sync/errgroup"
)

// BatchResult summarizes one reconciliation pass over a deployment.
type BatchResult struct {
	Applied   int `json:"applied"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
}

// ProcessBatch reconciles a batch of insights for one deployment over a
// bounded worker pool. A failed resource never fails the batch; the wait
// ceiling abandons unfinished workers, whose partial effects stand.
func (s *Service) ProcessBatch(ctx context.Context, deployment string, insights []domain.Insight) BatchResult {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.GetWaitCeiling())
	defer cancel()

	log := s.log.WithDeployment(deployment)
	log.Info("reconciling batch", "insights", len(insights))

	var (
		mu     sync.Mutex
		result BatchResult
	)

	g := new(errgroup.Group)
	g.SetLimit(s.cfg.GetWorkerPoolSize())

	for _, insight := range insights {
		insight := insight
		g.Go(func() error {
			applied, err := s.reconcileOne(ctx, insight)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				result.Failed++
				log.WithRecord(insight.ParameterKey()).Error("reconcile failed", "error", err.Error())
			case applied:
				result.Applied++
			default:
				result.Unchanged++
			}
			return nil
		})
	}
	_ = g.Wait()

	// Post pass: concurrent link/unlink for siblings of the same
	// deployment may have raced; restore relational symmetry and tear
	// down the window if nothing active remains.
	if err := s.Resymmetrize(ctx, deployment); err != nil {
		log.Error("resymmetrize failed", "error", err.Error())
	}
	if _, err := s.ResolveIfOrphaned(ctx, deployment); err != nil {
		log.Error("orphan window check failed", "error", err.Error())
	}

	log.Info("batch reconciled",
		"applied", result.Applied,
		"unchanged", result.Unchanged,
		"failed", result.Failed,
	)
	return result
}

// reconcileOne classifies one insight against its tracked record and
// applies the resulting transition. Returns whether anything changed.
func (s *Service) reconcileOne(ctx context.Context, insight domain.Insight) (bool, error) {
	key := insight.ParameterKey()
	log := s.log.WithRecord(key)

	record, err := s.store.Get(ctx, key)
	if err != nil && !apperr.Is(err, apperr.KindNotFound) {
		return false, apperr.Wrap(err, apperr.KindUpstream, "read tracked record").WithOp("service.reconcileOne")
	}

	var stored map[string]string
	if record != nil {
		stored = record.Tags
	}
	change := domain.Classify(stored, insight)

	switch {
	case change.None():
		log.Debug("insight unchanged")
		return false, nil

	case record == nil || record.Label == domain.LabelClosed:
		// Fresh resource, or a closed record being reused.
		return true, s.trackNew(ctx, insight)

	case change.Recommendation:
		return s.reset(ctx, record, insight)

	default:
		// Tag-only drift: resync tags, no label movement.
		if err := s.store.AddTags(ctx, key, insight.Tags()); err != nil {
			return false, apperr.Wrap(err, apperr.KindUpstream, "resync tags").WithOp("service.reconcileOne")
		}
		log.Info("tags resynced")
		return true, nil
	}
}

// trackNew creates (or rewrites) the tracked record at Initialize.
func (s *Service) trackNew(ctx context.Context, insight domain.Insight) error {
	const op = "service.trackNew"
	key := insight.ParameterKey()

	description := fmt.Sprintf("Rightsizing recommendation for %s %s",
		insight.ServiceType, insight.ResourceID)
	version, err := s.store.Put(ctx, key, insight.CurrentType, description)
	if err != nil {
		return apperr.Wrap(err, apperr.KindUpstream, "create tracked record").WithOp(op)
	}
	if err := s.store.AddTags(ctx, key, insight.Tags()); err != nil {
		return apperr.Wrap(err, apperr.KindUpstream, "tag tracked record").WithOp(op)
	}
	if err := s.store.Label(ctx, key, version, domain.LabelInitialize); err != nil {
		return apperr.Wrap(err, apperr.KindUpstream, "label tracked record").WithOp(op)
	}

	s.log.WithRecord(key).Transition(key, domain.LabelNone.String(), domain.LabelInitialize.String())
	s.publishLabeled(ctx, key, domain.LabelInitialize, insight.StackName)
	return nil
}

// reset tears down an in-flight lifecycle superseded by a changed
// recommendation and rewrites the record at Initialize. When the
// maintenance window is inside the cancellation threshold the in-flight
// execution is left alone.
func (s *Service) reset(ctx context.Context, record *domain.TrackedRecord, insight domain.Insight) (bool, error) {
	const op = "service.reset"
	key := record.Key
	log := s.log.WithRecord(key)
	deployment := record.Tag("stackName")
	if deployment == "" {
		deployment = insight.StackName
	}

	if record.Label == domain.LabelScheduled || record.Label == domain.LabelApproved {
		window, err := s.windows.FindActive(ctx, domain.WindowName(deployment))
		if err != nil && !apperr.Is(err, apperr.KindNotFound) {
			return false, apperr.Wrap(err, apperr.KindUpstream, "check window proximity").WithOp(op)
		}
		if window != nil && window.StartsWithin(s.cancellationThreshold(), s.now()) {
			log.Warn("recommendation changed but window is imminent, leaving execution in flight",
				"window", window.Name,
				"fires_at", window.NextFireAt,
			)
			return false, nil
		}
	}

	if err := s.resolveTrackedItem(ctx, record); err != nil {
		return false, err
	}
	if ticketID := record.TicketID(); ticketID != "" {
		if err := s.tickets.Cancel(ctx, ticketID); err != nil {
			log.AdapterError("tickets", "cancel", err)
		}
	}

	names := make([]string, 0, len(record.Tags))
	for name := range record.Tags {
		names = append(names, name)
	}
	if err := s.store.RemoveTags(ctx, key, names); err != nil {
		return false, apperr.Wrap(err, apperr.KindUpstream, "strip tags").WithOp(op)
	}

	if err := s.trackNew(ctx, insight); err != nil {
		return false, err
	}
	log.Info("record reset", "from", record.Label.String())
	s.publishReset(ctx, key, deployment)

	// The reset may have resolved the last active item for the deployment.
	if _, err := s.ResolveIfOrphaned(ctx, deployment); err != nil {
		log.Error("orphan window check failed", "error", err.Error())
	}
	return true, nil
}

// resolveTrackedItem unlinks and resolves the correlation item referenced
// by the record, if any.
func (s *Service) resolveTrackedItem(ctx context.Context, record *domain.TrackedRecord) error {
	itemID, ok := parseItemID(record.OpsItemID())
	if !ok {
		return nil
	}
	if err := s.Unlink(ctx, itemID); err != nil && !apperr.Is(err, apperr.KindNotFound) {
		return err
	}
	return s.markResolved(ctx, itemID)
}

func (s *Service) cancellationThreshold() time.Duration {
	return time.Duration(s.cfg.GetCancellationThreshold() * float64(time.Second))
}
