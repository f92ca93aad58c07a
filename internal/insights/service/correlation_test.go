package service

import (
	"context"
	"testing"

	"rightsize_backend/internal/insights/domain"
	"rightsize_backend/internal/insights/ports"
)

func createItem(t *testing.T, env *testEnv, deployment string) *domain.OpsItem {
	t.Helper()
	id, err := env.tracker.Create(context.Background(), &domain.OpsItem{
		Title:    "Rightsizing test",
		Status:   domain.StatusOpen,
		Category: domain.CategoryCostOptimization,
		Severity: severityCost,
		OperationalData: map[string]string{
			domain.OpDataDeployment: deployment,
		},
	})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	return env.tracker.get(id)
}

func TestUnlinkRestoresSymmetry(t *testing.T) {
	env := newTestEnv(defaultTestConfig())
	ctx := context.Background()
	a := createItem(t, env, "web-stack")
	b := createItem(t, env, "web-stack")
	c := createItem(t, env, "web-stack")
	if err := env.svc.LinkSiblings(ctx, "web-stack", b.ID); err != nil {
		t.Fatalf("link: %v", err)
	}
	if err := env.svc.LinkSiblings(ctx, "web-stack", c.ID); err != nil {
		t.Fatalf("link: %v", err)
	}

	if err := env.svc.Unlink(ctx, b.ID); err != nil {
		t.Fatalf("unlink: %v", err)
	}

	if env.tracker.get(b.ID).Related.Len() != 0 {
		t.Fatalf("expected unlinked item to reference nothing")
	}
	for _, other := range []*domain.OpsItem{a, c} {
		if env.tracker.get(other.ID).Related.Contains(b.ID) {
			t.Fatalf("expected %s to forget unlinked item", other.ID)
		}
	}
	if !env.tracker.get(a.ID).Related.Contains(c.ID) || !env.tracker.get(c.ID).Related.Contains(a.ID) {
		t.Fatalf("expected remaining pair to stay linked")
	}
}

func TestResymmetrizeRepairsOneSidedLinks(t *testing.T) {
	env := newTestEnv(defaultTestConfig())
	ctx := context.Background()
	a := createItem(t, env, "web-stack")
	b := createItem(t, env, "web-stack")

	// Simulate a race: a knows b, b does not know a.
	related := domain.NewRelatedSet(b.ID)
	if err := env.tracker.Update(ctx, a.ID, ports.ItemUpdate{Related: &related}); err != nil {
		t.Fatalf("seed asymmetry: %v", err)
	}

	if err := env.svc.Resymmetrize(ctx, "web-stack"); err != nil {
		t.Fatalf("resymmetrize: %v", err)
	}
	if !env.tracker.get(b.ID).Related.Contains(a.ID) {
		t.Fatalf("expected one-sided link repaired")
	}
}

func TestResolveIfOrphanedKeepsWindowWhileItemsActive(t *testing.T) {
	env := newTestEnv(defaultTestConfig())
	ctx := context.Background()
	createItem(t, env, "web-stack")
	if _, err := env.windows.Create(ctx, domain.MaintenanceWindow{
		Name:    domain.WindowName("web-stack"),
		Enabled: true,
	}); err != nil {
		t.Fatalf("create window: %v", err)
	}

	deleted, err := env.svc.ResolveIfOrphaned(ctx, "web-stack")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if deleted {
		t.Fatalf("expected window kept while an item is active")
	}
	if env.windows.count() != 1 {
		t.Fatalf("expected window to survive")
	}
}

func TestResolveIfOrphanedDeletesWindowWhenNothingActive(t *testing.T) {
	env := newTestEnv(defaultTestConfig())
	ctx := context.Background()
	item := createItem(t, env, "web-stack")
	if _, err := env.windows.Create(ctx, domain.MaintenanceWindow{
		Name:    domain.WindowName("web-stack"),
		Enabled: true,
	}); err != nil {
		t.Fatalf("create window: %v", err)
	}

	if err := env.svc.markResolved(ctx, item.ID); err != nil {
		t.Fatalf("resolve item: %v", err)
	}
	deleted, err := env.svc.ResolveIfOrphaned(ctx, "web-stack")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !deleted {
		t.Fatalf("expected window deleted")
	}
	if env.windows.count() != 0 {
		t.Fatalf("expected no windows left")
	}
}
