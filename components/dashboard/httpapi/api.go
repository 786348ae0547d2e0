package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-incubator-dashboard/components/dashboard"
	"github.com/goliatone/go-incubator-dashboard/components/dashboard/commands"
	"github.com/goliatone/go-incubator-dashboard/components/dashboard/queries"
)

// Header names read by HeaderUser.
const (
	HeaderUserID     = "X-User-ID"
	HeaderUserRole   = "X-User-Role"
	HeaderUserLocale = "X-User-Locale"
)

// ErrNoUser is returned by a UserResolver when the request carries no identity.
var ErrNoUser = errors.New("httpapi: request has no user")

// UserResolver extracts the current user from a request.
type UserResolver func(r *http.Request) (*dashboard.User, error)

// HeaderUser reads the user from X-User-* headers set by an upstream auth proxy.
func HeaderUser(r *http.Request) (*dashboard.User, error) {
	id := r.Header.Get(HeaderUserID)
	if id == "" {
		return nil, ErrNoUser
	}
	return &dashboard.User{
		ID:     id,
		Role:   dashboard.ParseRole(r.Header.Get(HeaderUserRole)),
		Locale: r.Header.Get(HeaderUserLocale),
	}, nil
}

type htmlRenderer interface {
	RenderHTML(ctx context.Context, user *dashboard.User, req dashboard.PageRequest, out io.Writer) error
}

// Handlers exposes HTTP endpoints backed by shared commands and queries.
type Handlers struct {
	User        UserResolver
	HTML        htmlRenderer
	Page        gocommand.Querier[queries.PlanInput, dashboard.Page]
	Plan        gocommand.Querier[queries.PlanInput, dashboard.PlanPayload]
	Snapshot    gocommand.Querier[queries.SnapshotInput, dashboard.RefreshState]
	Refresh     gocommand.Commander[commands.RefreshDashboardInput]
	Retry       gocommand.Commander[commands.RetrySectionInput]
	Preferences gocommand.Commander[commands.SavePreferencesInput]
	Release     gocommand.Commander[commands.ReleaseSessionInput]
	Broadcast   *dashboard.BroadcastHook
}

// Routes mounts the handlers on a chi router.
func (h *Handlers) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.HandlePage)
	r.Get("/page", h.HandlePageJSON)
	r.Get("/plan", h.HandlePlan)
	r.Get("/snapshot", h.HandleSnapshot)
	r.Get("/stream", h.HandleStream)
	r.Post("/refresh", h.HandleRefresh)
	r.Post("/sections/{section}/retry", h.HandleRetrySection)
	r.Post("/preferences", h.HandleSavePreferences)
	r.Delete("/session", h.HandleRelease)
	return r
}

// HandlePage renders the HTML dashboard for the current user.
func (h *Handlers) HandlePage(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	req, err := pageRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.HTML.RenderHTML(r.Context(), user, req, w); err != nil {
		writeError(w, err)
	}
}

// HandlePageJSON returns the rendered page as JSON.
func (h *Handlers) HandlePageJSON(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	req, err := pageRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	page, err := h.Page.Query(r.Context(), queries.PlanInput{User: *user, Request: req})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// HandlePlan returns the render plan as JSON.
func (h *Handlers) HandlePlan(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	req, err := pageRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	plan, err := h.Plan.Query(r.Context(), queries.PlanInput{User: *user, Request: req})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// HandleSnapshot returns the refresh state as JSON.
func (h *Handlers) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	state, err := h.Snapshot.Query(r.Context(), queries.SnapshotInput{User: *user})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// HandleStream streams the user's refresh snapshots as Server-Sent Events.
func (h *Handlers) HandleStream(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	if h.Broadcast == nil {
		http.Error(w, "streaming disabled", http.StatusNotImplemented)
		return
	}
	h.Broadcast.ServeSSEFiltered(w, r, dashboard.ForUser(user.ID))
}

// HandleRefresh queues an immediate refresh.
func (h *Handlers) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	if err := h.Refresh.Execute(r.Context(), commands.RefreshDashboardInput{User: *user}); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// HandleRetrySection re-mounts a faulted section.
func (h *Handlers) HandleRetrySection(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	req, err := pageRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	input := commands.RetrySectionInput{
		User:       *user,
		SectionID:  chi.URLParam(r, "section"),
		Breakpoint: req.Breakpoint,
	}
	if err := h.Retry.Execute(r.Context(), input); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// HandleSavePreferences stores planner preferences for the user's role.
func (h *Handlers) HandleSavePreferences(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	var payload commands.SavePreferencesInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	payload.User = *user
	if err := h.Preferences.Execute(r.Context(), payload); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// HandleRelease drops the user's dashboard session.
func (h *Handlers) HandleRelease(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	if err := h.Release.Execute(r.Context(), commands.ReleaseSessionInput{UserID: user.ID}); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) user(w http.ResponseWriter, r *http.Request) (*dashboard.User, bool) {
	resolve := h.User
	if resolve == nil {
		resolve = HeaderUser
	}
	user, err := resolve(r)
	if err != nil || user == nil {
		http.Error(w, ErrNoUser.Error(), http.StatusUnauthorized)
		return nil, false
	}
	return user, true
}

func pageRequest(r *http.Request) (dashboard.PageRequest, error) {
	var req dashboard.PageRequest
	q := r.URL.Query()
	if raw := q.Get("breakpoint"); raw != "" {
		bp, err := dashboard.ParseBreakpoint(raw)
		if err != nil {
			return req, err
		}
		req.Breakpoint = &bp
	}
	if raw := q.Get("min_priority"); raw != "" {
		p, err := dashboard.ParsePriority(raw)
		if err != nil {
			return req, err
		}
		req.MinPriority = p
	}
	return req, nil
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, dashboard.ErrUnknownVariant) {
		status = http.StatusNotFound
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
