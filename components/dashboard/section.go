package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// GridColumns is the column count of the dashboard grid.
const GridColumns = 12

// Priority ranks sections for filtering. The zero value is treated as PriorityMedium.
type Priority int

const (
	PriorityLow Priority = iota + 1
	PriorityMedium
	PriorityHigh
)

// ParsePriority accepts low, medium or high (case-insensitive).
func ParsePriority(value string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "low":
		return PriorityLow, nil
	case "medium", "":
		return PriorityMedium, nil
	case "high":
		return PriorityHigh, nil
	}
	return 0, fmt.Errorf("dashboard: unknown priority %q", value)
}

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	}
	return ""
}

// MarshalJSON encodes the priority by name.
func (p Priority) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON decodes a priority name.
func (p *Priority) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParsePriority(raw)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Breakpoint is a named viewport width tier, ordered xs < sm < md < lg < xl.
type Breakpoint int

const (
	BreakpointXS Breakpoint = iota
	BreakpointSM
	BreakpointMD
	BreakpointLG
	BreakpointXL
)

var breakpointNames = [...]string{"xs", "sm", "md", "lg", "xl"}

// Breakpoints lists every breakpoint from smallest to largest.
func Breakpoints() []Breakpoint {
	return []Breakpoint{BreakpointXS, BreakpointSM, BreakpointMD, BreakpointLG, BreakpointXL}
}

// ParseBreakpoint resolves a breakpoint name.
func ParseBreakpoint(value string) (Breakpoint, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	for i, name := range breakpointNames {
		if name == value {
			return Breakpoint(i), nil
		}
	}
	return 0, fmt.Errorf("dashboard: unknown breakpoint %q", value)
}

func (b Breakpoint) String() string {
	if b < BreakpointXS || b > BreakpointXL {
		return fmt.Sprintf("breakpoint(%d)", int(b))
	}
	return breakpointNames[b]
}

// MarshalJSON encodes the breakpoint by name.
func (b Breakpoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}

// UnmarshalJSON decodes a breakpoint name.
func (b *Breakpoint) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseBreakpoint(raw)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// Span is either a uniform column count or a per-breakpoint map.
// The zero value means no span was declared and resolves to full width, so
// Cols(0) is never an explicit span.
type Span struct {
	Uniform int
	Sizes   map[Breakpoint]int
}

// Cols returns a uniform span.
func Cols(n int) Span {
	return Span{Uniform: n}
}

// Responsive returns a per-breakpoint span.
func Responsive(sizes map[Breakpoint]int) Span {
	copied := make(map[Breakpoint]int, len(sizes))
	for bp, n := range sizes {
		copied[bp] = n
	}
	return Span{Sizes: copied}
}

// IsResponsive reports whether the span is defined per breakpoint.
func (s Span) IsResponsive() bool {
	return len(s.Sizes) > 0
}

// Resolve picks the span for the given breakpoint: the value of the largest
// defined breakpoint not above bp, otherwise full width.
func (s Span) Resolve(bp Breakpoint) int {
	if !s.IsResponsive() {
		if s.Uniform <= 0 {
			return GridColumns
		}
		return s.Uniform
	}
	for candidate := bp; candidate >= BreakpointXS; candidate-- {
		if n, ok := s.Sizes[candidate]; ok {
			return n
		}
	}
	return GridColumns
}

func (s Span) validate() error {
	if !s.IsResponsive() {
		if s.Uniform < 0 || s.Uniform > GridColumns {
			return fmt.Errorf("span %d outside 1..%d", s.Uniform, GridColumns)
		}
		return nil
	}
	for _, bp := range s.breakpoints() {
		if bp < BreakpointXS || bp > BreakpointXL {
			return fmt.Errorf("span uses unknown %s", bp)
		}
		if n := s.Sizes[bp]; n < 1 || n > GridColumns {
			return fmt.Errorf("span %s=%d outside 1..%d", bp, n, GridColumns)
		}
	}
	return nil
}

func (s Span) breakpoints() []Breakpoint {
	keys := make([]Breakpoint, 0, len(s.Sizes))
	for bp := range s.Sizes {
		keys = append(keys, bp)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func (s Span) clone() Span {
	if !s.IsResponsive() {
		return Span{Uniform: s.Uniform}
	}
	return Responsive(s.Sizes)
}

// UnmarshalYAML accepts `span: 6` or `span: {xs: 12, lg: 6}`.
func (s *Span) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var n int
		if err := node.Decode(&n); err != nil {
			return fmt.Errorf("dashboard: span must be an integer: %w", err)
		}
		if n < 1 || n > GridColumns {
			return fmt.Errorf("%w: %d outside 1..%d (line %d)", ErrInvalidSpan, n, GridColumns, node.Line)
		}
		*s = Cols(n)
		return nil
	case yaml.MappingNode:
		var raw map[string]int
		if err := node.Decode(&raw); err != nil {
			return fmt.Errorf("dashboard: span map must hold integers: %w", err)
		}
		sizes := make(map[Breakpoint]int, len(raw))
		for key, n := range raw {
			bp, err := ParseBreakpoint(key)
			if err != nil {
				return err
			}
			sizes[bp] = n
		}
		*s = Span{Sizes: sizes}
		return nil
	}
	return fmt.Errorf("dashboard: span must be an integer or a breakpoint map (line %d)", node.Line)
}

// MarshalYAML writes the compact form back out.
func (s Span) MarshalYAML() (any, error) {
	if !s.IsResponsive() {
		return s.Uniform, nil
	}
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, bp := range s.breakpoints() {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: bp.String()},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: fmt.Sprint(s.Sizes[bp])},
		)
	}
	return node, nil
}

// SectionContext is handed to a unit when it renders.
type SectionContext struct {
	Section   Section
	Viewer    ViewerContext
	Data      map[string]any
	Errors    map[string]string
	Loading   bool
	Refreshed time.Time
}

// SectionUnit renders one section body.
type SectionUnit interface {
	Render(ctx context.Context, meta SectionContext, out io.Writer) error
}

// SectionUnitFunc adapts a function into a SectionUnit.
type SectionUnitFunc func(ctx context.Context, meta SectionContext, out io.Writer) error

// Render calls the underlying function.
func (f SectionUnitFunc) Render(ctx context.Context, meta SectionContext, out io.Writer) error {
	return f(ctx, meta, out)
}

// UnitFactory produces a section unit on first use.
type UnitFactory func() (SectionUnit, error)

// Static wraps an already constructed unit.
func Static(unit SectionUnit) UnitFactory {
	return func() (SectionUnit, error) { return unit, nil }
}

// Section declares one addressable unit of dashboard content.
type Section struct {
	ID              string
	Title           string
	Unit            UnitFactory
	Span            Span
	Priority        Priority
	RefreshInterval time.Duration
	DependsOn       []string
	Resources       []string

	lazy *lazyUnit
}

// Resolve returns the section unit, building it on the first call. Both the
// unit and a construction error are memoized.
func (s Section) Resolve() (SectionUnit, error) {
	if s.lazy == nil {
		return nil, fmt.Errorf("dashboard: section %s was not built through BuildConfig", s.ID)
	}
	return s.lazy.get()
}

// Resolved reports whether the unit has already been built.
func (s Section) Resolved() bool {
	return s.lazy != nil && s.lazy.done()
}

type lazyUnit struct {
	once    sync.Once
	factory UnitFactory
	unit    SectionUnit
	err     error
	loaded  bool
	mu      sync.Mutex
}

func (l *lazyUnit) get() (SectionUnit, error) {
	l.once.Do(func() {
		unit, err := l.build()
		l.mu.Lock()
		l.unit, l.err, l.loaded = unit, err, true
		l.mu.Unlock()
	})
	return l.unit, l.err
}

func (l *lazyUnit) build() (unit SectionUnit, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dashboard: unit factory panicked: %v", r)
		}
	}()
	if l.factory == nil {
		return nil, fmt.Errorf("dashboard: section has no unit")
	}
	unit, err = l.factory()
	if err == nil && unit == nil {
		err = fmt.Errorf("dashboard: unit factory returned nil")
	}
	return unit, err
}

func (l *lazyUnit) done() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loaded
}
