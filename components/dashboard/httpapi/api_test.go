package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goliatone/go-incubator-dashboard/components/dashboard"
	"github.com/goliatone/go-incubator-dashboard/components/dashboard/commands"
	"github.com/goliatone/go-incubator-dashboard/components/dashboard/queries"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCommander[T any] struct {
	last  T
	calls int
	err   error
}

func (s *stubCommander[T]) Execute(ctx context.Context, msg T) error {
	s.last = msg
	s.calls++
	return s.err
}

type stubQuerier[T, R any] struct {
	last   T
	calls  int
	result R
	err    error
}

func (s *stubQuerier[T, R]) Query(ctx context.Context, msg T) (R, error) {
	s.last = msg
	s.calls++
	return s.result, s.err
}

type stubHTML struct {
	calls int
	err   error
}

func (s *stubHTML) RenderHTML(_ context.Context, user *dashboard.User, _ dashboard.PageRequest, out io.Writer) error {
	s.calls++
	if s.err != nil {
		return s.err
	}
	_, err := fmt.Fprintf(out, "<section data-role=%q></section>", user.Role)
	return err
}

func withUser(req *http.Request, id, role string) *http.Request {
	req.Header.Set(HeaderUserID, id)
	req.Header.Set(HeaderUserRole, role)
	return req
}

func TestRoutesRejectAnonymousRequests(t *testing.T) {
	api := &Handlers{Plan: &stubQuerier[queries.PlanInput, dashboard.PlanPayload]{}}
	rec := httptest.NewRecorder()
	api.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/plan", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandlePlanParsesRequest(t *testing.T) {
	plan := &stubQuerier[queries.PlanInput, dashboard.PlanPayload]{
		result: dashboard.PlanPayload{Variant: "Mentor", Entries: []dashboard.PlanEntry{{SectionID: "mentees", Span: 6}}},
	}
	api := &Handlers{Plan: plan}
	req := withUser(httptest.NewRequest(http.MethodGet, "/plan?breakpoint=md&min_priority=high", nil), "u-1", "Mentor")
	rec := httptest.NewRecorder()
	api.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, plan.calls)
	assert.Equal(t, dashboard.RoleMentor, plan.last.User.Role)
	require.NotNil(t, plan.last.Request.Breakpoint)
	assert.Equal(t, dashboard.BreakpointMD, *plan.last.Request.Breakpoint)
	assert.Equal(t, dashboard.PriorityHigh, plan.last.Request.MinPriority)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "Mentor", out["variant"])
}

func TestHandlePlanRejectsBadBreakpoint(t *testing.T) {
	plan := &stubQuerier[queries.PlanInput, dashboard.PlanPayload]{}
	api := &Handlers{Plan: plan}
	req := withUser(httptest.NewRequest(http.MethodGet, "/plan?breakpoint=huge", nil), "u-1", "admin")
	rec := httptest.NewRecorder()
	api.Routes().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if plan.calls != 0 {
		t.Fatalf("expected query not to run")
	}
}

func TestHandleSnapshotMapsUnknownVariant(t *testing.T) {
	snapshot := &stubQuerier[queries.SnapshotInput, dashboard.RefreshState]{
		err: fmt.Errorf("%w %q", dashboard.ErrUnknownVariant, "guest"),
	}
	api := &Handlers{Snapshot: snapshot}
	req := withUser(httptest.NewRequest(http.MethodGet, "/snapshot", nil), "u-1", "guest")
	rec := httptest.NewRecorder()
	api.Routes().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandlePageRendersHTML(t *testing.T) {
	html := &stubHTML{}
	api := &Handlers{HTML: html}
	req := withUser(httptest.NewRequest(http.MethodGet, "/", nil), "u-1", "startup")
	rec := httptest.NewRecorder()
	api.Routes().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `data-role="startup"`)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
}

func TestHandleRefresh(t *testing.T) {
	refresh := &stubCommander[commands.RefreshDashboardInput]{}
	api := &Handlers{Refresh: refresh}
	req := withUser(httptest.NewRequest(http.MethodPost, "/refresh", nil), "u-1", "admin")
	rec := httptest.NewRecorder()
	api.Routes().ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if refresh.calls != 1 || refresh.last.User.ID != "u-1" {
		t.Fatalf("expected refresh to execute for u-1")
	}
}

func TestHandleRetrySection(t *testing.T) {
	retry := &stubCommander[commands.RetrySectionInput]{}
	api := &Handlers{Retry: retry}
	req := withUser(httptest.NewRequest(http.MethodPost, "/sections/pipeline/retry?breakpoint=xs", nil), "u-1", "admin")
	rec := httptest.NewRecorder()
	api.Routes().ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if retry.last.SectionID != "pipeline" {
		t.Fatalf("expected section id propagation, got %q", retry.last.SectionID)
	}
	if retry.last.Breakpoint == nil || *retry.last.Breakpoint != dashboard.BreakpointXS {
		t.Fatalf("expected breakpoint propagation")
	}
}

func TestHandleSavePreferences(t *testing.T) {
	prefs := &stubCommander[commands.SavePreferencesInput]{}
	api := &Handlers{Preferences: prefs}
	body, _ := json.Marshal(map[string]any{"hidden_sections": []string{"milestones"}, "min_priority": "medium"})
	req := withUser(httptest.NewRequest(http.MethodPost, "/preferences", bytes.NewReader(body)), "u-2", "startup")
	rec := httptest.NewRecorder()
	api.Routes().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if prefs.last.User.ID != "u-2" || len(prefs.last.HiddenSections) != 1 {
		t.Fatalf("unexpected payload %+v", prefs.last)
	}
	if prefs.last.MinPriority != dashboard.PriorityMedium {
		t.Fatalf("expected medium priority, got %v", prefs.last.MinPriority)
	}
}

func TestHandleRelease(t *testing.T) {
	release := &stubCommander[commands.ReleaseSessionInput]{}
	api := &Handlers{Release: release}
	req := withUser(httptest.NewRequest(http.MethodDelete, "/session", nil), "u-3", "mentor")
	rec := httptest.NewRecorder()
	api.Routes().ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if release.last.UserID != "u-3" {
		t.Fatalf("expected user id propagation")
	}
}
