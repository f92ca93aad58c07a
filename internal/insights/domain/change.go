package domain

// Change classifies an inbound insight against the last-synchronized tag
// snapshot of its tracked record.
type Change struct {
	// Recommendation is true when currentType or recommendedType differs
	// from the stored values. A recommendation change supersedes any
	// in-flight lifecycle.
	Recommendation bool
	// Tags is true when any other candidate attribute is absent from or
	// differs from the stored tag of the same name.
	Tags bool
}

// None reports whether the insight is identical to the stored snapshot.
func (c Change) None() bool {
	return !c.Recommendation && !c.Tags
}

// Classify compares a candidate insight against the stored tag snapshot.
// A record with no stored tags is treated as a fresh resource.
// Pure function over the two maps.
func Classify(stored map[string]string, candidate Insight) Change {
	if len(stored) == 0 {
		return Change{Recommendation: true, Tags: true}
	}

	change := Change{
		Recommendation: stored[TagCurrentType] != candidate.CurrentType ||
			stored[TagRecommended] != candidate.RecommendedType,
	}

	for key, want := range candidate.Tags() {
		if key == TagCurrentType || key == TagRecommended {
			continue
		}
		if have, ok := stored[key]; !ok || have != want {
			change.Tags = true
			break
		}
	}

	return change
}
