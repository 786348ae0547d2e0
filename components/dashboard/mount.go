package dashboard

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MountEvent describes a dashboard variant being mounted or torn down.
type MountEvent struct {
	MountID string
	Reason  string
	Variant string
	Role    Role
	Viewer  ViewerContext
	At      time.Time
}

// MountHook observes mount lifecycle transitions.
type MountHook func(ctx context.Context, event MountEvent)

// Page is the rendered form of one mounted variant.
type Page struct {
	MountID     string            `json:"mount_id"`
	Variant     string            `json:"variant"`
	Role        Role              `json:"role"`
	Layout      LayoutMode        `json:"layout"`
	Spacing     int               `json:"spacing"`
	Breakpoint  Breakpoint        `json:"breakpoint"`
	Loading     bool              `json:"loading"`
	Error       string            `json:"error,omitempty"`
	Stale       bool              `json:"stale"`
	LastUpdated time.Time         `json:"last_updated"`
	Sections    []RenderedSection `json:"sections"`
}

// Empty reports whether nothing was rendered.
func (p Page) Empty() bool {
	return p.MountID == "" && len(p.Sections) == 0
}

// RenderedSection is one planned section after rendering.
type RenderedSection struct {
	ID              string            `json:"id"`
	Title           string            `json:"title,omitempty"`
	Span            int               `json:"span"`
	Priority        Priority          `json:"priority"`
	RefreshInterval time.Duration     `json:"refresh_interval,omitempty"`
	HTML            string            `json:"html"`
	Faulted         bool              `json:"faulted"`
	Fault           string            `json:"fault,omitempty"`
	Errors          map[string]string `json:"errors,omitempty"`
}

type mountOptions struct {
	Viewer    ViewerContext
	Hook      RefreshHook
	Telemetry Telemetry
	Logger    *zap.Logger
	Cache     RenderCache
	Fallback  FallbackFunc
	Observer  FaultObserver
}

// Mount is one live dashboard variant: its refresh controller plus one error
// boundary per section. It is created and torn down by RoleRouter.
type Mount struct {
	id         string
	variant    Variant
	viewer     ViewerContext
	controller *RefreshController
	opts       mountOptions

	mu         sync.Mutex
	boundaries map[string]*Boundary
}

func newMount(variant Variant, opts mountOptions) *Mount {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	opts.Telemetry = normalizeTelemetry(opts.Telemetry)
	id := uuid.NewString()
	return &Mount{
		id:      id,
		variant: variant,
		viewer:  opts.Viewer,
		opts:    opts,
		controller: NewRefreshController(RefreshOptions{
			MountID:   id,
			UserID:    opts.Viewer.UserID,
			Variant:   variant.Name,
			Hook:      opts.Hook,
			Telemetry: opts.Telemetry,
			Logger:    opts.Logger,
		}),
		boundaries: make(map[string]*Boundary, variant.Config.Len()),
	}
}

func (m *Mount) start(ctx context.Context) error {
	if !m.variant.Config.LazyLoading() {
		for _, section := range m.variant.Config.sections {
			if _, err := section.Resolve(); err != nil {
				m.opts.Logger.Warn("section unit failed to preload",
					zap.String("section", section.ID),
					zap.Error(err),
				)
			}
		}
	}
	return m.controller.Start(WithViewer(ctx, m.viewer), m.variant.Fetchers, m.variant.Config.PollInterval())
}

func (m *Mount) stop() {
	m.controller.Stop()
	if m.opts.Cache != nil {
		m.opts.Cache.Purge(m.id + ":")
	}
}

// ID returns the unique mount id.
func (m *Mount) ID() string { return m.id }

// Variant returns the mounted variant.
func (m *Mount) Variant() Variant { return m.variant }

// Viewer returns the viewer the variant was mounted for.
func (m *Mount) Viewer() ViewerContext { return m.viewer }

// Controller exposes the mount's refresh controller.
func (m *Mount) Controller() *RefreshController { return m.controller }

// Plan computes the render plan for the mounted config.
func (m *Mount) Plan(opts PlanOptions) []PlanEntry {
	return Plan(m.variant.Config, opts)
}

// Render plans the layout and renders every planned section inside its own
// boundary. A faulted section renders its fallback; the error return is only
// set when writing a fallback fails.
func (m *Mount) Render(ctx context.Context, opts PlanOptions) (Page, error) {
	snapshot := m.controller.Snapshot()
	page := Page{
		MountID:     m.id,
		Variant:     m.variant.Name,
		Role:        m.variant.Role,
		Layout:      m.variant.Config.Layout(),
		Spacing:     m.variant.Config.Spacing(),
		Breakpoint:  opts.Breakpoint,
		Loading:     snapshot.Loading,
		Error:       snapshot.Error,
		Stale:       m.controller.Stale(),
		LastUpdated: snapshot.LastUpdated,
	}
	ctx = withSnapshot(ctx, snapshot)
	plan := m.Plan(opts)
	page.Sections = make([]RenderedSection, 0, len(plan))
	for _, entry := range plan {
		rendered, err := m.renderEntry(ctx, entry, snapshot)
		if err != nil {
			return page, err
		}
		page.Sections = append(page.Sections, rendered)
	}
	return page, nil
}

// RetrySection resets a section's boundary and renders it again.
func (m *Mount) RetrySection(ctx context.Context, sectionID string, bp Breakpoint) (RenderedSection, error) {
	section, ok := m.variant.Config.Section(sectionID)
	if !ok {
		return RenderedSection{}, fmt.Errorf("dashboard: unknown section %s", sectionID)
	}
	m.boundary(section).Reset()
	snapshot := m.controller.Snapshot()
	entry := PlanEntry{
		SectionID:       section.ID,
		Span:            section.Span.Resolve(bp),
		Priority:        section.Priority,
		RefreshInterval: section.RefreshInterval,
	}
	return m.renderEntry(withSnapshot(ctx, snapshot), entry, snapshot)
}

// SectionState reports the boundary state of a section.
func (m *Mount) SectionState(sectionID string) (BoundaryState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.boundaries[sectionID]
	if !ok {
		_, known := m.variant.Config.Section(sectionID)
		return BoundaryHealthy, known
	}
	return b.State(), true
}

func (m *Mount) renderEntry(ctx context.Context, entry PlanEntry, snapshot RefreshState) (RenderedSection, error) {
	section, _ := m.variant.Config.Section(entry.SectionID)
	boundary := m.boundary(section)
	var buf bytes.Buffer
	if err := boundary.Render(ctx, &buf); err != nil {
		return RenderedSection{}, err
	}
	_, errs := snapshot.Subset(section.Resources)
	rendered := RenderedSection{
		ID:              section.ID,
		Title:           section.Title,
		Span:            entry.Span,
		Priority:        entry.Priority,
		RefreshInterval: entry.RefreshInterval,
		HTML:            buf.String(),
		Errors:          errs,
	}
	if fault, faulted := boundary.Fault(); faulted {
		rendered.Faulted = true
		rendered.Fault = fault.Message
	}
	return rendered, nil
}

func (m *Mount) boundary(section Section) *Boundary {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.boundaries[section.ID]; ok {
		return b
	}
	b := NewBoundary(BoundaryOptions{
		ID: section.ID,
		Render: func(ctx context.Context, out io.Writer) error {
			return m.renderSection(ctx, section, out)
		},
		Fallback:  m.opts.Fallback,
		Observer:  m.opts.Observer,
		Telemetry: m.opts.Telemetry,
		Logger:    m.opts.Logger,
	})
	m.boundaries[section.ID] = b
	return b
}

func (m *Mount) renderSection(ctx context.Context, section Section, out io.Writer) error {
	unit, err := section.Resolve()
	if err != nil {
		return err
	}
	snapshot, ok := snapshotFrom(ctx)
	if !ok {
		snapshot = m.controller.Snapshot()
	}
	data, errs := snapshot.Subset(section.Resources)
	meta := SectionContext{
		Section:   section,
		Viewer:    m.viewer,
		Data:      data,
		Errors:    errs,
		Loading:   snapshot.Loading,
		Refreshed: snapshot.LastUpdated,
	}
	if m.opts.Cache == nil {
		return unit.Render(ctx, meta, out)
	}
	key := fmt.Sprintf("%s:%s:%d:%t", m.id, section.ID, snapshot.Cycles, snapshot.Loading)
	html, err := m.opts.Cache.GetOrRender(key, func() (string, error) {
		var buf bytes.Buffer
		if err := unit.Render(ctx, meta, &buf); err != nil {
			return "", err
		}
		return buf.String(), nil
	})
	if err != nil {
		return err
	}
	_, err = io.WriteString(out, html)
	return err
}

type snapshotKey struct{}

type viewerKey struct{}

// WithViewer attaches the viewer a fetch runs on behalf of.
func WithViewer(ctx context.Context, viewer ViewerContext) context.Context {
	return context.WithValue(ctx, viewerKey{}, viewer)
}

// ViewerFromContext returns the viewer set by WithViewer. Fetchers started by
// a mount always see the mounted viewer.
func ViewerFromContext(ctx context.Context) (ViewerContext, bool) {
	viewer, ok := ctx.Value(viewerKey{}).(ViewerContext)
	return viewer, ok
}

func withSnapshot(ctx context.Context, s RefreshState) context.Context {
	return context.WithValue(ctx, snapshotKey{}, s)
}

func snapshotFrom(ctx context.Context) (RefreshState, bool) {
	s, ok := ctx.Value(snapshotKey{}).(RefreshState)
	return s, ok
}
