package goadmin_test

import (
	"context"
	"errors"
	"testing"
	"time"

	core "github.com/goliatone/go-incubator-dashboard/components/dashboard"
	"github.com/goliatone/go-incubator-dashboard/components/dashboard/incubator"
	activitypkg "github.com/goliatone/go-incubator-dashboard/pkg/activity"
	dashboardpkg "github.com/goliatone/go-incubator-dashboard/pkg/dashboard"
	"github.com/goliatone/go-incubator-dashboard/pkg/goadmin"
)

type stubMenuBuilder struct {
	items []goadmin.MenuItem
	err   error
}

func (s *stubMenuBuilder) EnsureMenuItem(_ context.Context, _ string, item goadmin.MenuItem) error {
	if s.err != nil {
		return s.err
	}
	s.items = append(s.items, item)
	return nil
}

func newService(t *testing.T) *dashboardpkg.Service {
	t.Helper()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	service, err := dashboardpkg.NewService(dashboardpkg.Options{
		Source: incubator.NewMemorySource(incubator.DemoData(now), func() time.Time { return now }),
	})
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}
	t.Cleanup(func() { _ = service.Close(context.Background()) })
	return service
}

func TestAdminBootstrapSeedsMenuPerRole(t *testing.T) {
	builder := &stubMenuBuilder{}
	admin, err := goadmin.New(goadmin.Config{
		EnableDashboard: true,
		Service:         newService(t),
		MenuBuilder:     builder,
		RoleIcons:       map[string]string{"mentor": "users"},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if err := admin.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap returned error: %v", err)
	}
	if len(builder.items) != 3 {
		t.Fatalf("expected 3 menu items, got %d", len(builder.items))
	}
	first := builder.items[0]
	if first.Label != "Program Overview" || first.Roles[0] != "admin" {
		t.Fatalf("unexpected admin item: %+v", first)
	}
	if first.Route != "/incubator/dashboard?role=admin" {
		t.Fatalf("unexpected route %q", first.Route)
	}
	mentor := builder.items[2]
	if mentor.Icon != "users" || mentor.Position != 2 {
		t.Fatalf("unexpected mentor item: %+v", mentor)
	}
	if admin.Dashboard() == nil {
		t.Fatalf("expected dashboard service")
	}
}

func TestAdminBootstrapWrapsBuilderErrors(t *testing.T) {
	builder := &stubMenuBuilder{err: errors.New("menu offline")}
	admin, err := goadmin.New(goadmin.Config{EnableDashboard: true, Service: newService(t), MenuBuilder: builder})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if err := admin.Bootstrap(context.Background()); err == nil || !errors.Is(err, builder.err) {
		t.Fatalf("expected wrapped builder error, got %v", err)
	}
}

func TestAdminDisabledSkipsBootstrap(t *testing.T) {
	builder := &stubMenuBuilder{}
	admin, err := goadmin.New(goadmin.Config{
		EnableDashboard: false,
		MenuBuilder:     builder,
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if err := admin.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap returned error: %v", err)
	}
	if len(builder.items) != 0 {
		t.Fatalf("expected 0 calls, got %d", len(builder.items))
	}
	if admin.Dashboard() != nil {
		t.Fatalf("expected nil dashboard when disabled")
	}
	if items := admin.MenuItems(); len(items) != 1 || items[0].Label != "Dashboard" {
		t.Fatalf("expected default menu item, got %+v", items)
	}
}

func TestAdminEnabledRequiresService(t *testing.T) {
	if _, err := goadmin.New(goadmin.Config{EnableDashboard: true}); err == nil {
		t.Fatalf("expected error without service")
	}
}

func TestAdminMountHookEmitsActivity(t *testing.T) {
	capture := &activitypkg.CaptureHook{}
	admin, err := goadmin.New(goadmin.Config{
		ActivityHooks:  activitypkg.Hooks{capture},
		ActivityConfig: activitypkg.Config{Enabled: true},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if !admin.Emitter().Enabled() {
		t.Fatalf("expected enabled emitter")
	}
	admin.MountHook()(context.Background(), core.MountEvent{
		MountID: "m-1",
		Reason:  "mount",
		Variant: "Mentor Desk",
		Role:    core.RoleMentor,
		Viewer:  core.ViewerContext{UserID: "mentor-ada", Role: core.RoleMentor},
		At:      time.Now(),
	})
	events := capture.Snapshot()
	if len(events) != 1 || events[0].Verb != "dashboard.mount" {
		t.Fatalf("expected one dashboard.mount event, got %+v", events)
	}
}
