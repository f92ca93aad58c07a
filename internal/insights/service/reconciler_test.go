package service

import (
	"context"
	"testing"
	"time"

	"rightsize_backend/internal/insights/domain"
)

func TestProcessBatchTracksNewInsights(t *testing.T) {
	env := newTestEnv(defaultTestConfig())
	ctx := context.Background()

	insights := []domain.Insight{
		computeInsight("i-0abc", "m5.2xlarge", "m5.xlarge"),
		computeInsight("i-0def", "c5.4xlarge", "c5.2xlarge"),
	}
	result := env.svc.ProcessBatch(ctx, "web-stack", insights)

	if result.Applied != 2 || result.Unchanged != 0 || result.Failed != 0 {
		t.Fatalf("expected 2 applied, got %+v", result)
	}
	for _, in := range insights {
		record, err := env.store.Get(ctx, in.ParameterKey())
		if err != nil {
			t.Fatalf("get record: %v", err)
		}
		if record.Label != domain.LabelInitialize {
			t.Fatalf("expected label=%q, got %q", domain.LabelInitialize, record.Label)
		}
	}
}

func TestProcessBatchIsIdempotent(t *testing.T) {
	env := newTestEnv(defaultTestConfig())
	ctx := context.Background()
	insights := []domain.Insight{computeInsight("i-0abc", "m5.2xlarge", "m5.xlarge")}

	env.svc.ProcessBatch(ctx, "web-stack", insights)
	versionAfterFirst := env.store.versionOf(insights[0].ParameterKey())

	result := env.svc.ProcessBatch(ctx, "web-stack", insights)
	if result.Unchanged != 1 || result.Applied != 0 {
		t.Fatalf("expected second batch unchanged, got %+v", result)
	}
	if got := env.store.versionOf(insights[0].ParameterKey()); got != versionAfterFirst {
		t.Fatalf("expected no new version, got %d -> %d", versionAfterFirst, got)
	}
}

func TestChangedRecommendationResetsLifecycle(t *testing.T) {
	env := newTestEnv(defaultTestConfig())
	ctx := context.Background()
	insight := computeInsight("i-0abc", "m5.2xlarge", "m5.xlarge")
	key := insight.ParameterKey()
	env.advance(t, insight, domain.LabelApproved)

	changed := insight
	changed.RecommendedType = "m5.large"
	result := env.svc.ProcessBatch(ctx, "web-stack", []domain.Insight{changed})
	if result.Applied != 1 {
		t.Fatalf("expected reset to apply, got %+v", result)
	}

	record, err := env.store.Get(ctx, key)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if record.Label != domain.LabelInitialize {
		t.Fatalf("expected reset to Initialize, got %q", record.Label)
	}
	if record.Tag(domain.TagRecommended) != "m5.large" {
		t.Fatalf("expected new recommendation tag, got %q", record.Tag(domain.TagRecommended))
	}
	if len(env.tickets.cancelled) != 1 {
		t.Fatalf("expected superseded ticket cancelled, got %d", len(env.tickets.cancelled))
	}
}

func TestResetSkippedWhenWindowImminent(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.cancellationThreshold = 600 // ten minutes
	env := newTestEnv(cfg)
	ctx := context.Background()
	insight := computeInsight("i-0abc", "m5.2xlarge", "m5.xlarge")
	key := insight.ParameterKey()
	env.advance(t, insight, domain.LabelScheduled)

	// Pin the window's next firing inside the cancellation threshold.
	window, err := env.windows.FindActive(ctx, domain.WindowName("web-stack"))
	if err != nil {
		t.Fatalf("find window: %v", err)
	}
	window.NextFireAt = time.Now().Add(5 * time.Minute)
	if err := env.windows.Update(ctx, *window); err != nil {
		t.Fatalf("update window: %v", err)
	}

	changed := insight
	changed.RecommendedType = "m5.large"
	result := env.svc.ProcessBatch(ctx, "web-stack", []domain.Insight{changed})
	if result.Applied != 0 || result.Unchanged != 1 {
		t.Fatalf("expected reset to be skipped, got %+v", result)
	}

	record, err := env.store.Get(ctx, key)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if record.Label != domain.LabelScheduled {
		t.Fatalf("expected record left at Scheduled, got %q", record.Label)
	}
	if len(env.tickets.cancelled) != 0 {
		t.Fatalf("expected no ticket cancellation, got %d", len(env.tickets.cancelled))
	}
}

func TestTagOnlyChangeResyncsWithoutTransition(t *testing.T) {
	env := newTestEnv(defaultTestConfig())
	ctx := context.Background()
	insight := computeInsight("i-0abc", "m5.2xlarge", "m5.xlarge")
	key := insight.ParameterKey()
	env.advance(t, insight, domain.LabelApproved)
	versionBefore := env.store.versionOf(key)

	changed := insight
	changed.SavingsEstimate = "99.00"
	result := env.svc.ProcessBatch(ctx, "web-stack", []domain.Insight{changed})
	if result.Applied != 1 {
		t.Fatalf("expected tag resync to apply, got %+v", result)
	}

	record, err := env.store.Get(ctx, key)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if record.Label != domain.LabelApproved {
		t.Fatalf("expected label untouched by tag resync, got %q", record.Label)
	}
	if record.Tag("savingsEstimate") != "99.00" {
		t.Fatalf("expected updated savings tag, got %q", record.Tag("savingsEstimate"))
	}
	if got := env.store.versionOf(key); got != versionBefore {
		t.Fatalf("expected no new version for tag resync, got %d -> %d", versionBefore, got)
	}
}

func TestClosedRecordIsReusedForNewInsight(t *testing.T) {
	env := newTestEnv(defaultTestConfig())
	ctx := context.Background()
	insight := computeInsight("i-0abc", "m5.2xlarge", "m5.xlarge")
	key := insight.ParameterKey()
	env.advance(t, insight, domain.LabelExecuted)
	if _, err := env.svc.Close(ctx, insight.ServiceType, insight.ResourceID, insight.Name); err != nil {
		t.Fatalf("close: %v", err)
	}

	next := computeInsight("i-0abc", "m5.xlarge", "m5.large")
	result := env.svc.ProcessBatch(ctx, "web-stack", []domain.Insight{next})
	if result.Applied != 1 {
		t.Fatalf("expected closed record to restart, got %+v", result)
	}

	record, err := env.store.Get(ctx, key)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if record.Label != domain.LabelInitialize {
		t.Fatalf("expected restarted lifecycle at Initialize, got %q", record.Label)
	}
}
