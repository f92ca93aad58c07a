package service

import (
	"context"

	"rightsize_backend/internal/insights/domain"
	"rightsize_backend/internal/insights/ports"
	"rightsize_backend/platform/apperr"

	"github.com/google/uuid"
)

// activeItems returns the Open/InProgress correlation items for a
// deployment.
func (s *Service) activeItems(ctx context.Context, deployment string) ([]uuid.UUID, error) {
	ids, err := s.tracker.Query(ctx, ports.ItemFilter{
		OperationalData: map[string]string{domain.OpDataDeployment: deployment},
		StatusIn:        []domain.ItemStatus{domain.StatusOpen, domain.StatusInProgress},
	})
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindUpstream, "query correlation items").WithOp("service.activeItems")
	}
	return ids, nil
}

// LinkSiblings sets the new item's related list to the other active items
// of the deployment and adds the new item to each of theirs. Each sibling
// is re-read immediately before mutation so concurrent links for the same
// deployment converge.
func (s *Service) LinkSiblings(ctx context.Context, deployment string, newItemID uuid.UUID) error {
	const op = "service.LinkSiblings"

	ids, err := s.activeItems(ctx, deployment)
	if err != nil {
		return err
	}

	siblings := domain.NewRelatedSet()
	for _, id := range ids {
		if id != newItemID {
			siblings.Add(id)
		}
	}

	if err := s.tracker.Update(ctx, newItemID, ports.ItemUpdate{Related: &siblings}); err != nil {
		return apperr.Wrap(err, apperr.KindUpstream, "set related items").WithOp(op)
	}

	for _, id := range siblings.IDs() {
		sibling, err := s.tracker.Get(ctx, id)
		if err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				continue
			}
			return apperr.Wrap(err, apperr.KindUpstream, "read sibling item").WithOp(op)
		}
		if sibling.Related.Contains(newItemID) {
			continue
		}
		sibling.Related.Add(newItemID)
		if err := s.tracker.Update(ctx, id, ports.ItemUpdate{Related: &sibling.Related}); err != nil {
			return apperr.Wrap(err, apperr.KindUpstream, "link sibling item").WithOp(op)
		}
	}
	return nil
}

// Unlink removes the item from every sibling's related list and empties
// its own.
func (s *Service) Unlink(ctx context.Context, itemID uuid.UUID) error {
	const op = "service.Unlink"

	item, err := s.tracker.Get(ctx, itemID)
	if err != nil {
		return err
	}

	for _, id := range item.Related.IDs() {
		sibling, err := s.tracker.Get(ctx, id)
		if err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				continue
			}
			return apperr.Wrap(err, apperr.KindUpstream, "read sibling item").WithOp(op)
		}
		if !sibling.Related.Contains(itemID) {
			continue
		}
		sibling.Related.Remove(itemID)
		if err := s.tracker.Update(ctx, id, ports.ItemUpdate{Related: &sibling.Related}); err != nil {
			return apperr.Wrap(err, apperr.KindUpstream, "unlink sibling item").WithOp(op)
		}
	}

	empty := domain.NewRelatedSet()
	if err := s.tracker.Update(ctx, itemID, ports.ItemUpdate{Related: &empty}); err != nil {
		return apperr.Wrap(err, apperr.KindUpstream, "clear related items").WithOp(op)
	}
	return nil
}

// ResolveIfOrphaned deletes the deployment's maintenance window when no
// Open/InProgress item remains. This is the single authority for window
// teardown. Returns whether a window was deleted.
func (s *Service) ResolveIfOrphaned(ctx context.Context, deployment string) (bool, error) {
	const op = "service.ResolveIfOrphaned"

	ids, err := s.activeItems(ctx, deployment)
	if err != nil {
		return false, err
	}
	if len(ids) > 0 {
		return false, nil
	}

	window, err := s.windows.FindActive(ctx, domain.WindowName(deployment))
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return false, nil
		}
		return false, apperr.Wrap(err, apperr.KindUpstream, "find window").WithOp(op)
	}
	if err := s.windows.Delete(ctx, window.ID); err != nil {
		return false, apperr.Wrap(err, apperr.KindUpstream, "delete window").WithOp(op)
	}
	s.log.WithDeployment(deployment).Info("maintenance window deleted", "window", window.Name)
	return true, nil
}

// Resymmetrize repairs the related-items graph after a concurrent batch:
// whenever either of two active items lists the other, both end up
// listing each other.
func (s *Service) Resymmetrize(ctx context.Context, deployment string) error {
	const op = "service.Resymmetrize"

	ids, err := s.activeItems(ctx, deployment)
	if err != nil {
		return err
	}
	if len(ids) < 2 {
		return nil
	}

	items := make(map[uuid.UUID]*domain.OpsItem, len(ids))
	for _, id := range ids {
		item, err := s.tracker.Get(ctx, id)
		if err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				continue
			}
			return apperr.Wrap(err, apperr.KindUpstream, "read item").WithOp(op)
		}
		items[id] = item
	}

	dirty := make(map[uuid.UUID]bool)
	for aID, a := range items {
		for bID, b := range items {
			if aID == bID {
				continue
			}
			if a.Related.Contains(bID) && !b.Related.Contains(aID) {
				b.Related.Add(aID)
				dirty[bID] = true
			}
		}
	}

	for id := range dirty {
		item := items[id]
		if err := s.tracker.Update(ctx, id, ports.ItemUpdate{Related: &item.Related}); err != nil {
			return apperr.Wrap(err, apperr.KindUpstream, "repair related items").WithOp(op)
		}
	}
	return nil
}

// markResolved sets the item status to Resolved.
func (s *Service) markResolved(ctx context.Context, itemID uuid.UUID) error {
	status := domain.StatusResolved
	if err := s.tracker.Update(ctx, itemID, ports.ItemUpdate{Status: &status}); err != nil {
		return apperr.Wrap(err, apperr.KindUpstream, "resolve item").WithOp("service.markResolved")
	}
	return nil
}

// parseItemID parses the opsItemId workflow tag.
func parseItemID(raw string) (uuid.UUID, bool) {
	if raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
