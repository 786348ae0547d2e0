package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
)

const defaultPageTemplate = "dashboard.html"

// DefaultBreakpoint is used when neither the request nor stored preferences
// name one.
const DefaultBreakpoint = BreakpointLG

var errNoMount = errors.New("dashboard: no mounted dashboard for user")

// ControllerOptions wires the collaborators used by Controller.
type ControllerOptions struct {
	Sessions    *SessionPool
	Preferences PreferenceStore
	Renderer    Renderer
	Template    string
	Telemetry   Telemetry
	Logger      *zap.Logger
}

// PageRequest carries per-request planner inputs. A nil Breakpoint falls back
// to stored preferences and then DefaultBreakpoint.
type PageRequest struct {
	Breakpoint  *Breakpoint `json:"breakpoint,omitempty"`
	MinPriority Priority    `json:"min_priority,omitempty"`
}

// PlanPayload is the JSON form of a render plan.
type PlanPayload struct {
	Variant     string      `json:"variant"`
	Role        Role        `json:"role"`
	Breakpoint  Breakpoint  `json:"breakpoint"`
	Entries     []PlanEntry `json:"entries"`
	Preferences Preferences `json:"preferences"`
}

// Controller orchestrates transports for the role dashboards. It is
// HTTP-agnostic; httpapi and gorouter adapt it.
type Controller struct {
	sessions    *SessionPool
	preferences PreferenceStore
	renderer    Renderer
	template    string
	telemetry   Telemetry
	logger      *zap.Logger
}

// NewController wires the session pool into a controller.
func NewController(opts ControllerOptions) *Controller {
	if opts.Preferences == nil {
		opts.Preferences = NewInMemoryPreferenceStore()
	}
	if opts.Template == "" {
		opts.Template = defaultPageTemplate
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Controller{
		sessions:    opts.Sessions,
		preferences: opts.Preferences,
		renderer:    opts.Renderer,
		template:    opts.Template,
		telemetry:   normalizeTelemetry(opts.Telemetry),
		logger:      opts.Logger,
	}
}

// Page renders the user's variant into a Page.
func (c *Controller) Page(ctx context.Context, user *User, req PageRequest) (Page, error) {
	mount, err := c.mount(ctx, user)
	if err != nil {
		return Page{}, err
	}
	opts, _, err := c.planOptions(ctx, mount, req)
	if err != nil {
		return Page{}, err
	}
	return mount.Render(ctx, opts)
}

// RenderHTML renders the page template. The whole variant sits behind a
// page-level boundary, so a template failure renders the fallback instead.
func (c *Controller) RenderHTML(ctx context.Context, user *User, req PageRequest, out io.Writer) error {
	if c.renderer == nil {
		return fmt.Errorf("dashboard: controller has no renderer")
	}
	page, err := c.Page(ctx, user, req)
	if err != nil {
		return err
	}
	boundary := NewBoundary(BoundaryOptions{
		ID: "page:" + page.Variant,
		Render: func(_ context.Context, w io.Writer) error {
			_, err := c.renderer.Render(c.template, pageView(page), w)
			return err
		},
		Telemetry: c.telemetry,
		Logger:    c.logger,
	})
	return boundary.Render(ctx, out)
}

// Plan returns the render plan without rendering.
func (c *Controller) Plan(ctx context.Context, user *User, req PageRequest) (PlanPayload, error) {
	mount, err := c.mount(ctx, user)
	if err != nil {
		return PlanPayload{}, err
	}
	opts, prefs, err := c.planOptions(ctx, mount, req)
	if err != nil {
		return PlanPayload{}, err
	}
	return PlanPayload{
		Variant:     mount.Variant().Name,
		Role:        mount.Variant().Role,
		Breakpoint:  opts.Breakpoint,
		Entries:     mount.Plan(opts),
		Preferences: prefs,
	}, nil
}

// Snapshot returns the current refresh state of the user's variant.
func (c *Controller) Snapshot(ctx context.Context, user *User) (RefreshState, error) {
	mount, err := c.mount(ctx, user)
	if err != nil {
		return RefreshState{}, err
	}
	return mount.Controller().Snapshot(), nil
}

// Refresh queues an immediate refresh cycle for the user's variant.
func (c *Controller) Refresh(ctx context.Context, user *User) error {
	mount, err := c.mount(ctx, user)
	if err != nil {
		return err
	}
	mount.Controller().RefreshNow()
	c.telemetry.Record(ctx, "dashboard.refresh.requested", map[string]any{
		"mount_id": mount.ID(),
		"user":     user.ID,
	})
	return nil
}

// RetrySection re-mounts a faulted section.
func (c *Controller) RetrySection(ctx context.Context, user *User, sectionID string, req PageRequest) (RenderedSection, error) {
	mount, err := c.mount(ctx, user)
	if err != nil {
		return RenderedSection{}, err
	}
	opts, _, err := c.planOptions(ctx, mount, req)
	if err != nil {
		return RenderedSection{}, err
	}
	return mount.RetrySection(ctx, sectionID, opts.Breakpoint)
}

// Preferences returns the stored preferences of the user for their role.
func (c *Controller) Preferences(ctx context.Context, user *User) (Preferences, error) {
	if user == nil {
		return Preferences{}, errMissingUserID
	}
	return c.preferences.Preferences(ctx, user.Viewer())
}

// SavePreferences stores preferences for the user's current role.
func (c *Controller) SavePreferences(ctx context.Context, user *User, prefs Preferences) error {
	if user == nil {
		return errMissingUserID
	}
	viewer := user.Viewer()
	if err := c.preferences.SavePreferences(ctx, viewer, prefs); err != nil {
		return err
	}
	c.telemetry.Record(ctx, "dashboard.preferences.saved", map[string]any{
		"user":   user.ID,
		"role":   string(viewer.Role),
		"hidden": len(prefs.HiddenSections),
	})
	return nil
}

func (c *Controller) mount(ctx context.Context, user *User) (*Mount, error) {
	if c.sessions == nil {
		return nil, fmt.Errorf("dashboard: controller has no session pool")
	}
	router, err := c.sessions.Acquire(ctx, user)
	if err != nil {
		return nil, err
	}
	mount, err := router.Mount()
	if err != nil {
		return nil, err
	}
	if mount == nil {
		return nil, errNoMount
	}
	return mount, nil
}

func (c *Controller) planOptions(ctx context.Context, mount *Mount, req PageRequest) (PlanOptions, Preferences, error) {
	viewer := mount.Viewer()
	prefs, err := c.preferences.Preferences(ctx, viewer)
	if err != nil {
		return PlanOptions{}, Preferences{}, fmt.Errorf("dashboard: load preferences: %w", err)
	}
	opts := prefs.PlanOptions(mount.Variant().Config, DefaultBreakpoint)
	if req.Breakpoint != nil {
		opts.Breakpoint = *req.Breakpoint
	}
	if req.MinPriority != 0 {
		opts.MinPriority = req.MinPriority
	}
	return opts, prefs, nil
}

func pageView(page Page) map[string]any {
	sections := make([]map[string]any, len(page.Sections))
	for i, s := range page.Sections {
		sections[i] = map[string]any{
			"id":       s.ID,
			"title":    s.Title,
			"span":     s.Span,
			"priority": s.Priority.String(),
			"html":     s.HTML,
			"faulted":  s.Faulted,
			"errors":   s.Errors,
		}
	}
	return map[string]any{
		"mount_id":     page.MountID,
		"variant":      page.Variant,
		"role":         string(page.Role),
		"layout":       string(page.Layout),
		"spacing":      page.Spacing,
		"breakpoint":   page.Breakpoint.String(),
		"loading":      page.Loading,
		"error":        page.Error,
		"stale":        page.Stale,
		"last_updated": page.LastUpdated,
		"sections":     sections,
	}
}
