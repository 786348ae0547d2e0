package dashboard

import (
	"context"
	"fmt"
	"sync"
)

// Preferences are per-viewer adjustments applied on top of a variant's plan.
type Preferences struct {
	HiddenSections []string    `json:"hidden_sections,omitempty"`
	MinPriority    Priority    `json:"min_priority,omitempty"`
	Breakpoint     *Breakpoint `json:"breakpoint,omitempty"`
}

// PlanOptions converts preferences into planner options for cfg. Without any
// hidden sections every section stays visible. The stored breakpoint is used
// when present, otherwise fallback.
func (p Preferences) PlanOptions(cfg DashboardConfig, fallback Breakpoint) PlanOptions {
	opts := PlanOptions{MinPriority: p.MinPriority, Breakpoint: fallback}
	if p.Breakpoint != nil {
		opts.Breakpoint = *p.Breakpoint
	}
	if len(p.HiddenSections) == 0 {
		return opts
	}
	hidden := make(map[string]bool, len(p.HiddenSections))
	for _, id := range p.HiddenSections {
		hidden[id] = true
	}
	opts.VisibleSectionIDs = make([]string, 0, cfg.Len())
	for _, id := range cfg.SectionIDs() {
		if !hidden[id] {
			opts.VisibleSectionIDs = append(opts.VisibleSectionIDs, id)
		}
	}
	return opts
}

// PreferenceStore persists viewer preferences.
type PreferenceStore interface {
	Preferences(ctx context.Context, viewer ViewerContext) (Preferences, error)
	SavePreferences(ctx context.Context, viewer ViewerContext, prefs Preferences) error
}

// InMemoryPreferenceStore provides a concurrency-safe default store.
type InMemoryPreferenceStore struct {
	mu   sync.RWMutex
	data map[string]Preferences
}

// NewInMemoryPreferenceStore creates an empty preference store.
func NewInMemoryPreferenceStore() *InMemoryPreferenceStore {
	return &InMemoryPreferenceStore{
		data: make(map[string]Preferences),
	}
}

// Preferences returns stored preferences or defaults.
func (s *InMemoryPreferenceStore) Preferences(_ context.Context, viewer ViewerContext) (Preferences, error) {
	if viewer.UserID == "" {
		return Preferences{}, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	prefs, ok := s.data[s.key(viewer)]
	if !ok {
		return Preferences{}, nil
	}
	prefs.HiddenSections = append([]string(nil), prefs.HiddenSections...)
	if prefs.Breakpoint != nil {
		bp := *prefs.Breakpoint
		prefs.Breakpoint = &bp
	}
	return prefs, nil
}

// SavePreferences persists preferences for a viewer.
func (s *InMemoryPreferenceStore) SavePreferences(_ context.Context, viewer ViewerContext, prefs Preferences) error {
	if viewer.UserID == "" {
		return fmt.Errorf("preference store requires viewer user id")
	}
	if bp := prefs.Breakpoint; bp != nil && (*bp < BreakpointXS || *bp > BreakpointXL) {
		return fmt.Errorf("dashboard: unknown breakpoint %d", int(*bp))
	}
	prefs.HiddenSections = dedupe(prefs.HiddenSections)
	if prefs.Breakpoint != nil {
		bp := *prefs.Breakpoint
		prefs.Breakpoint = &bp
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[s.key(viewer)] = prefs
	return nil
}

func (s *InMemoryPreferenceStore) key(viewer ViewerContext) string {
	role := ParseRole(string(viewer.Role))
	if role == "" {
		return viewer.UserID
	}
	return viewer.UserID + "::" + string(role)
}

func dedupe(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
