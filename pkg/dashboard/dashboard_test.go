package dashboard_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-incubator-dashboard/components/dashboard/commands"
	"github.com/goliatone/go-incubator-dashboard/components/dashboard/incubator"
	"github.com/goliatone/go-incubator-dashboard/components/dashboard/queries"
	dashboardpkg "github.com/goliatone/go-incubator-dashboard/pkg/dashboard"
)

type nameRenderer struct{}

func (nameRenderer) Render(name string, _ any, out ...io.Writer) (string, error) {
	if len(out) > 0 {
		io.WriteString(out[0], name)
	}
	return name, nil
}

func newService(t *testing.T) *dashboardpkg.Service {
	t.Helper()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	service, err := dashboardpkg.NewService(dashboardpkg.Options{
		Source:   incubator.NewMemorySource(incubator.DemoData(now), func() time.Time { return now }),
		Renderer: nameRenderer{},
		CacheTTL: time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = service.Close(context.Background()) })
	return service
}

func TestNewServiceRequiresSource(t *testing.T) {
	_, err := dashboardpkg.NewService(dashboardpkg.Options{})
	assert.Error(t, err)
}

func TestServicePlansPerRole(t *testing.T) {
	service := newService(t)
	ctx := context.Background()
	planQuery, _, _ := service.Queries()

	mentor, err := planQuery.Query(ctx, queries.PlanInput{User: dashboardpkg.User{ID: "mentor-ada", Role: dashboardpkg.RoleMentor}})
	require.NoError(t, err)
	assert.Equal(t, "Mentor Desk", mentor.Variant)
	assert.Len(t, mentor.Entries, 3)

	admin, err := planQuery.Query(ctx, queries.PlanInput{User: dashboardpkg.User{ID: "admin-1", Role: dashboardpkg.RoleAdmin}})
	require.NoError(t, err)
	assert.Equal(t, "Program Overview", admin.Variant)
	assert.Equal(t, 2, service.Sessions.Len())
}

func TestServiceExecutorRunsCommands(t *testing.T) {
	service := newService(t)
	ctx := context.Background()
	executor := service.Executor()
	user := dashboardpkg.User{ID: "founder-loom", Role: dashboardpkg.RoleStartup}

	require.NoError(t, executor.Refresh(ctx, commands.RefreshDashboardInput{User: user}))
	_, _, snapshotQuery := service.Queries()
	require.Eventually(t, func() bool {
		state, err := snapshotQuery.Query(ctx, queries.SnapshotInput{User: user})
		return err == nil && state.Resources["milestones"] != nil
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, executor.Preferences(ctx, commands.SavePreferencesInput{
		User:           user,
		HiddenSections: []string{"traction"},
	}))
	prefs, err := service.Controller.Preferences(ctx, &user)
	require.NoError(t, err)
	assert.Equal(t, []string{"traction"}, prefs.HiddenSections)

	require.NoError(t, executor.Release(ctx, commands.ReleaseSessionInput{UserID: user.ID}))
	assert.Zero(t, service.Sessions.Len())
}
