package domain

import (
	"sort"

	"github.com/google/uuid"
)

// RelatedSet is the set of sibling correlation item ids. All mutation of
// the related-items graph goes through this type so that re-running a
// link or unlink for the same pair never duplicates entries.
type RelatedSet struct {
	ids map[uuid.UUID]struct{}
}

// NewRelatedSet builds a set from the given ids, deduplicating.
func NewRelatedSet(ids ...uuid.UUID) RelatedSet {
	s := RelatedSet{ids: make(map[uuid.UUID]struct{}, len(ids))}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

// Add inserts an id. Adding an existing id is a no-op.
func (s *RelatedSet) Add(id uuid.UUID) {
	if s.ids == nil {
		s.ids = make(map[uuid.UUID]struct{})
	}
	s.ids[id] = struct{}{}
}

// Remove deletes an id. Removing an absent id is a no-op.
func (s *RelatedSet) Remove(id uuid.UUID) {
	delete(s.ids, id)
}

// Contains reports membership.
func (s RelatedSet) Contains(id uuid.UUID) bool {
	_, ok := s.ids[id]
	return ok
}

// Len returns the number of siblings.
func (s RelatedSet) Len() int {
	return len(s.ids)
}

// IDs returns the members in a stable order.
func (s RelatedSet) IDs() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
