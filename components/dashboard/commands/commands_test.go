package commands

import (
	"context"
	"errors"
	"testing"

	dashboard "github.com/goliatone/go-incubator-dashboard/components/dashboard"
)

type stubService struct {
	refreshCalls int
	retryCalls   int
	saveCalls    int
	lastUser     *dashboard.User
	lastSection  string
	lastPrefs    dashboard.Preferences
	lastRequest  dashboard.PageRequest
	err          error
}

func (s *stubService) Refresh(_ context.Context, user *dashboard.User) error {
	s.refreshCalls++
	s.lastUser = user
	return s.err
}

func (s *stubService) RetrySection(_ context.Context, user *dashboard.User, sectionID string, req dashboard.PageRequest) (dashboard.RenderedSection, error) {
	s.retryCalls++
	s.lastUser = user
	s.lastSection = sectionID
	s.lastRequest = req
	return dashboard.RenderedSection{ID: sectionID}, s.err
}

func (s *stubService) SavePreferences(_ context.Context, user *dashboard.User, prefs dashboard.Preferences) error {
	s.saveCalls++
	s.lastUser = user
	s.lastPrefs = prefs
	return s.err
}

type stubSessions struct {
	released []string
}

func (s *stubSessions) Release(_ context.Context, userID string) error {
	s.released = append(s.released, userID)
	return nil
}

type stubTelemetry struct {
	calls  int
	events []string
}

func (s *stubTelemetry) Record(_ context.Context, event string, _ map[string]any) {
	s.calls++
	s.events = append(s.events, event)
}

func TestRefreshDashboardCommand(t *testing.T) {
	service := &stubService{}
	telemetry := &stubTelemetry{}
	cmd := NewRefreshDashboardCommand(service, telemetry)
	user := dashboard.User{ID: "u-1", Role: dashboard.RoleAdmin}
	if err := cmd.Execute(context.Background(), RefreshDashboardInput{User: user}); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if service.refreshCalls != 1 || service.lastUser.ID != "u-1" {
		t.Fatalf("expected refresh call for u-1, got %d calls", service.refreshCalls)
	}
	if telemetry.calls != 1 || telemetry.events[0] != "dashboard.refresh.command" {
		t.Fatalf("expected telemetry event, got %v", telemetry.events)
	}
}

func TestRefreshDashboardCommandRequiresUser(t *testing.T) {
	service := &stubService{}
	cmd := NewRefreshDashboardCommand(service, nil)
	if err := cmd.Execute(context.Background(), RefreshDashboardInput{}); err == nil {
		t.Fatalf("expected error without user id")
	}
	if service.refreshCalls != 0 {
		t.Fatalf("expected no refresh call")
	}
}

func TestRefreshDashboardCommandPropagatesError(t *testing.T) {
	boom := errors.New("boom")
	cmd := NewRefreshDashboardCommand(&stubService{err: boom}, nil)
	err := cmd.Execute(context.Background(), RefreshDashboardInput{User: dashboard.User{ID: "u-1"}})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestRetrySectionCommand(t *testing.T) {
	service := &stubService{}
	cmd := NewRetrySectionCommand(service, nil)
	bp := dashboard.BreakpointMD
	err := cmd.Execute(context.Background(), RetrySectionInput{
		User:       dashboard.User{ID: "u-1", Role: dashboard.RoleMentor},
		SectionID:  "mentees",
		Breakpoint: &bp,
	})
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if service.retryCalls != 1 || service.lastSection != "mentees" {
		t.Fatalf("expected retry of mentees, got %q", service.lastSection)
	}
	if service.lastRequest.Breakpoint == nil || *service.lastRequest.Breakpoint != dashboard.BreakpointMD {
		t.Fatalf("expected breakpoint to propagate")
	}
}

func TestRetrySectionCommandRequiresSection(t *testing.T) {
	cmd := NewRetrySectionCommand(&stubService{}, nil)
	if err := cmd.Execute(context.Background(), RetrySectionInput{User: dashboard.User{ID: "u-1"}}); err == nil {
		t.Fatalf("expected error without section id")
	}
}

func TestSavePreferencesCommand(t *testing.T) {
	service := &stubService{}
	cmd := NewSavePreferencesCommand(service, nil)
	err := cmd.Execute(context.Background(), SavePreferencesInput{
		User:           dashboard.User{ID: "u-1", Role: dashboard.RoleStartup},
		HiddenSections: []string{"milestones"},
		MinPriority:    dashboard.PriorityHigh,
	})
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if service.saveCalls != 1 {
		t.Fatalf("expected save call")
	}
	if len(service.lastPrefs.HiddenSections) != 1 || service.lastPrefs.MinPriority != dashboard.PriorityHigh {
		t.Fatalf("unexpected preferences %+v", service.lastPrefs)
	}
}

func TestSavePreferencesCommandRequiresService(t *testing.T) {
	cmd := NewSavePreferencesCommand(nil, nil)
	if err := cmd.Execute(context.Background(), SavePreferencesInput{User: dashboard.User{ID: "u-1"}}); err == nil {
		t.Fatalf("expected error without service")
	}
}

func TestReleaseSessionCommand(t *testing.T) {
	sessions := &stubSessions{}
	cmd := NewReleaseSessionCommand(sessions, nil)
	if err := cmd.Execute(context.Background(), ReleaseSessionInput{UserID: "u-1"}); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if len(sessions.released) != 1 || sessions.released[0] != "u-1" {
		t.Fatalf("expected u-1 released, got %v", sessions.released)
	}
}
