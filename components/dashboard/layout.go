package dashboard

import "time"

// PlanOptions narrows and sizes a render plan. A nil VisibleSectionIDs keeps
// every section; a non-nil empty slice hides them all. A zero MinPriority
// disables the priority filter.
type PlanOptions struct {
	VisibleSectionIDs []string   `json:"visible_section_ids,omitempty"`
	MinPriority       Priority   `json:"min_priority,omitempty"`
	Breakpoint        Breakpoint `json:"breakpoint"`
}

// PlanEntry is one section ready to mount.
type PlanEntry struct {
	SectionID       string        `json:"section_id"`
	Span            int           `json:"span"`
	Priority        Priority      `json:"priority"`
	RefreshInterval time.Duration `json:"refresh_interval,omitempty"`
}

// Plan filters the config by visibility and priority, drops sections whose
// dependencies did not survive (repeating until nothing changes), and
// resolves spans for the breakpoint. Output keeps registration order.
func Plan(cfg DashboardConfig, opts PlanOptions) []PlanEntry {
	sections := cfg.sections
	keep := make([]bool, len(sections))
	var visible map[string]struct{}
	if opts.VisibleSectionIDs != nil {
		visible = make(map[string]struct{}, len(opts.VisibleSectionIDs))
		for _, id := range opts.VisibleSectionIDs {
			visible[id] = struct{}{}
		}
	}
	for i, s := range sections {
		if visible != nil {
			if _, ok := visible[s.ID]; !ok {
				continue
			}
		}
		if opts.MinPriority != 0 && s.Priority < opts.MinPriority {
			continue
		}
		keep[i] = true
	}

	for changed := true; changed; {
		changed = false
		for i, s := range sections {
			if keep[i] && !dependenciesKept(cfg, keep, s.DependsOn) {
				keep[i] = false
				changed = true
			}
		}
	}

	plan := make([]PlanEntry, 0, len(sections))
	for i, s := range sections {
		if !keep[i] {
			continue
		}
		plan = append(plan, PlanEntry{
			SectionID:       s.ID,
			Span:            s.Span.Resolve(opts.Breakpoint),
			Priority:        s.Priority,
			RefreshInterval: s.RefreshInterval,
		})
	}
	return plan
}

func dependenciesKept(cfg DashboardConfig, keep []bool, deps []string) bool {
	for _, dep := range deps {
		j, ok := cfg.index[dep]
		if !ok || !keep[j] {
			return false
		}
	}
	return true
}

// PlanIDs is a convenience for callers that only need the ordered ids.
func PlanIDs(plan []PlanEntry) []string {
	ids := make([]string, len(plan))
	for i, entry := range plan {
		ids[i] = entry.SectionID
	}
	return ids
}
