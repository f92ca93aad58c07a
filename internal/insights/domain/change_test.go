package domain

import "testing"

func sampleInsight() Insight {
	return Insight{
		ResourceID:      "i-0abc123",
		Name:            "web-1",
		ServiceType:     ServiceCompute,
		Region:          "us-east-1",
		CurrentType:     "m5.large",
		RecommendedType: "m5.xlarge",
		StackName:       "web-stack",
		Attributes:      map[string]string{"predictedUptime": "99.2"},
	}
}

func TestClassifyFreshResource(t *testing.T) {
	change := Classify(nil, sampleInsight())
	if !change.Recommendation || !change.Tags {
		t.Fatalf("fresh resource must flag both changes, got %+v", change)
	}
}

func TestClassifyIdenticalInsight(t *testing.T) {
	insight := sampleInsight()
	stored := insight.Tags()
	// Workflow tags on the record never count as a change.
	stored[TagOpsItemID] = "9a1f0d2e"
	stored[TagTicketID] = "CHG0001"

	change := Classify(stored, insight)
	if !change.None() {
		t.Fatalf("identical insight must classify as no change, got %+v", change)
	}
}

func TestClassifyRecommendationChanged(t *testing.T) {
	insight := sampleInsight()
	stored := insight.Tags()
	insight.RecommendedType = "m5.2xlarge"

	change := Classify(stored, insight)
	if !change.Recommendation {
		t.Fatal("changed recommendedType must flag a recommendation change")
	}
	if change.Tags {
		t.Fatal("recommendation change alone must not flag a tag change")
	}
}

func TestClassifyTagOnlyChange(t *testing.T) {
	insight := sampleInsight()
	stored := insight.Tags()
	insight.Attributes["predictedUptime"] = "97.5"

	change := Classify(stored, insight)
	if change.Recommendation {
		t.Fatal("attribute change must not flag a recommendation change")
	}
	if !change.Tags {
		t.Fatal("attribute change must flag a tag change")
	}
}

func TestClassifyMissingStoredAttribute(t *testing.T) {
	insight := sampleInsight()
	stored := insight.Tags()
	delete(stored, "predictedUptime")

	change := Classify(stored, insight)
	if !change.Tags {
		t.Fatal("attribute absent from store must flag a tag change")
	}
}
