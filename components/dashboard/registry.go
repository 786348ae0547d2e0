package dashboard

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrDuplicateSectionID is returned when two sections share an id.
	ErrDuplicateSectionID = errors.New("dashboard: duplicate section id")
	// ErrCyclicDependency is returned when depends_on forms a cycle.
	ErrCyclicDependency = errors.New("dashboard: cyclic section dependency")
	// ErrInvalidSpan is returned when a span value is outside the grid.
	ErrInvalidSpan = errors.New("dashboard: invalid section span")

	errMissingSectionID = errors.New("dashboard: section id is required")
)

// ConfigError reports a registry problem detected by BuildConfig.
type ConfigError struct {
	Kind      error
	SectionID string
	Path      []string
	Detail    string
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.SectionID != "" {
		b.WriteString(" ")
		b.WriteString(e.SectionID)
	}
	if len(e.Path) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(e.Path, " -> "))
		b.WriteString(")")
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

// Unwrap lets errors.Is match the sentinel kind.
func (e *ConfigError) Unwrap() error { return e.Kind }

// LayoutMode selects the density of the dashboard grid.
type LayoutMode string

const (
	LayoutDefault  LayoutMode = "default"
	LayoutCompact  LayoutMode = "compact"
	LayoutExpanded LayoutMode = "expanded"
)

// ConfigInput is the ordered declaration handed to BuildConfig.
type ConfigInput struct {
	Sections              []Section
	Spacing               int
	RefreshInterval       time.Duration
	Layout                LayoutMode
	EnableRealTimeUpdates bool
	EnableLazyLoading     bool
}

// DashboardConfig is the validated, read-only registry of one dashboard
// variant. It is safe to share between goroutines.
type DashboardConfig struct {
	sections              []Section
	index                 map[string]int
	spacing               int
	refreshInterval       time.Duration
	layout                LayoutMode
	enableRealTimeUpdates bool
	enableLazyLoading     bool
}

// BuildConfig validates the declarations and returns a frozen config. On any
// error no config is returned.
func BuildConfig(input ConfigInput) (DashboardConfig, error) {
	index := make(map[string]int, len(input.Sections))
	sections := make([]Section, 0, len(input.Sections))
	for _, decl := range input.Sections {
		id := strings.TrimSpace(decl.ID)
		if id == "" {
			return DashboardConfig{}, errMissingSectionID
		}
		if _, exists := index[id]; exists {
			return DashboardConfig{}, &ConfigError{Kind: ErrDuplicateSectionID, SectionID: id}
		}
		if err := decl.Span.validate(); err != nil {
			return DashboardConfig{}, &ConfigError{Kind: ErrInvalidSpan, SectionID: id, Detail: err.Error()}
		}
		index[id] = len(sections)
		sections = append(sections, freezeSection(decl, id))
	}
	if path := findCycle(sections, index); len(path) > 0 {
		return DashboardConfig{}, &ConfigError{Kind: ErrCyclicDependency, SectionID: path[0], Path: path}
	}
	layout := input.Layout
	if layout == "" {
		layout = LayoutDefault
	}
	switch layout {
	case LayoutDefault, LayoutCompact, LayoutExpanded:
	default:
		return DashboardConfig{}, fmt.Errorf("dashboard: unknown layout mode %q", layout)
	}
	return DashboardConfig{
		sections:              sections,
		index:                 index,
		spacing:               input.Spacing,
		refreshInterval:       input.RefreshInterval,
		layout:                layout,
		enableRealTimeUpdates: input.EnableRealTimeUpdates,
		enableLazyLoading:     input.EnableLazyLoading,
	}, nil
}

// MustBuildConfig panics when the declarations are invalid. Intended for
// package-level variant tables.
func MustBuildConfig(input ConfigInput) DashboardConfig {
	cfg, err := BuildConfig(input)
	if err != nil {
		panic(err)
	}
	return cfg
}

func freezeSection(decl Section, id string) Section {
	priority := decl.Priority
	if priority == 0 {
		priority = PriorityMedium
	}
	return Section{
		ID:              id,
		Title:           decl.Title,
		Unit:            decl.Unit,
		Span:            decl.Span.clone(),
		Priority:        priority,
		RefreshInterval: decl.RefreshInterval,
		DependsOn:       append([]string(nil), decl.DependsOn...),
		Resources:       append([]string(nil), decl.Resources...),
		lazy:            &lazyUnit{factory: decl.Unit},
	}
}

// findCycle walks depends_on edges between registered sections and returns
// the first cycle found as a path of ids. Edges to unknown ids are ignored;
// those dependents are dropped by the planner instead.
func findCycle(sections []Section, index map[string]int) []string {
	const (
		unvisited = iota
		visiting
		visited
	)
	state := make([]int, len(sections))
	var stack []string
	var visit func(i int) []string
	visit = func(i int) []string {
		state[i] = visiting
		stack = append(stack, sections[i].ID)
		for _, dep := range sections[i].DependsOn {
			j, ok := index[dep]
			if !ok {
				continue
			}
			switch state[j] {
			case visiting:
				start := 0
				for k, id := range stack {
					if id == dep {
						start = k
						break
					}
				}
				cycle := append([]string(nil), stack[start:]...)
				return append(cycle, dep)
			case unvisited:
				if cycle := visit(j); cycle != nil {
					return cycle
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[i] = visited
		return nil
	}
	for i := range sections {
		if state[i] == unvisited {
			if cycle := visit(i); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// Sections returns the sections in registration order.
func (c DashboardConfig) Sections() []Section {
	out := make([]Section, len(c.sections))
	copy(out, c.sections)
	return out
}

// Section looks up a section by id.
func (c DashboardConfig) Section(id string) (Section, bool) {
	i, ok := c.index[id]
	if !ok {
		return Section{}, false
	}
	return c.sections[i], true
}

// SectionIDs returns ids in registration order.
func (c DashboardConfig) SectionIDs() []string {
	ids := make([]string, len(c.sections))
	for i, s := range c.sections {
		ids[i] = s.ID
	}
	return ids
}

// Len returns the number of registered sections.
func (c DashboardConfig) Len() int { return len(c.sections) }

// Spacing returns the grid gutter size.
func (c DashboardConfig) Spacing() int { return c.spacing }

// RefreshInterval returns the global default refresh interval.
func (c DashboardConfig) RefreshInterval() time.Duration { return c.refreshInterval }

// Layout returns the layout mode.
func (c DashboardConfig) Layout() LayoutMode { return c.layout }

// RealTimeUpdates reports whether the dashboard polls continuously.
func (c DashboardConfig) RealTimeUpdates() bool { return c.enableRealTimeUpdates }

// LazyLoading reports whether section units resolve on first render.
func (c DashboardConfig) LazyLoading() bool { return c.enableLazyLoading }

// PollInterval is the interval handed to the refresh controller: zero when
// real-time updates are off, otherwise the global interval or, if unset, the
// shortest section interval.
func (c DashboardConfig) PollInterval() time.Duration {
	if !c.enableRealTimeUpdates {
		return 0
	}
	if c.refreshInterval > 0 {
		return c.refreshInterval
	}
	var shortest time.Duration
	for _, s := range c.sections {
		if s.RefreshInterval > 0 && (shortest == 0 || s.RefreshInterval < shortest) {
			shortest = s.RefreshInterval
		}
	}
	return shortest
}

// Resources lists the distinct resource names referenced by sections, in
// first-seen order.
func (c DashboardConfig) Resources() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, s := range c.sections {
		for _, r := range s.Resources {
			if _, ok := seen[r]; ok {
				continue
			}
			seen[r] = struct{}{}
			out = append(out, r)
		}
	}
	return out
}
