package incubator

import (
	"errors"
	"time"

	dashboard "github.com/goliatone/go-incubator-dashboard/components/dashboard"
)

// Options wires the incubator variants.
type Options struct {
	Source   Source
	Renderer dashboard.Renderer
	// Manifest overrides the built-in variant declarations.
	Manifest *dashboard.ManifestDocument
	Fetchers FetcherOptions
}

// NewVariantTable returns the admin, startup and mentor dashboards bound to
// opts.Source. Variants load lazily on their first resolve.
func NewVariantTable(opts Options) (*dashboard.VariantTable, error) {
	if opts.Source == nil {
		return nil, errors.New("incubator: source is required")
	}
	renderer := opts.Renderer
	if renderer == nil {
		var err error
		if renderer, err = dashboard.NewTemplateRenderer(); err != nil {
			return nil, err
		}
	}
	units, err := Units(renderer)
	if err != nil {
		return nil, err
	}
	doc := opts.Manifest
	if doc == nil {
		doc = DefaultManifest()
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return dashboard.NewVariantTable(doc.Descriptors(units, Fetchers(opts.Source, opts.Fetchers))...)
}

// Units registers the chart and template section units.
func Units(renderer dashboard.Renderer) (*dashboard.UnitCatalog, error) {
	catalog := dashboard.NewUnitCatalog()
	if err := catalog.Register(dashboard.ChartUnitSpec()); err != nil {
		return nil, err
	}
	if err := catalog.Register(dashboard.TemplateUnitSpec(renderer)); err != nil {
		return nil, err
	}
	return catalog, nil
}

func responsive(xs, md, lg int) dashboard.Span {
	sizes := map[dashboard.Breakpoint]int{dashboard.BreakpointXS: xs}
	if md > 0 {
		sizes[dashboard.BreakpointMD] = md
	}
	if lg > 0 {
		sizes[dashboard.BreakpointLG] = lg
	}
	return dashboard.Responsive(sizes)
}

func listOptions(template, empty string) map[string]any {
	opts := map[string]any{"template": template}
	if empty != "" {
		opts["empty"] = empty
	}
	return opts
}

// DefaultManifest declares the three incubator dashboards.
func DefaultManifest() *dashboard.ManifestDocument {
	return &dashboard.ManifestDocument{
		Version: dashboard.ManifestVersion,
		Name:    "incubator",
		Variants: []dashboard.ManifestVariant{
			{
				Role:            string(dashboard.RoleAdmin),
				Name:            "Program Overview",
				Spacing:         16,
				RefreshInterval: 30 * time.Second,
				Layout:          string(dashboard.LayoutExpanded),
				RealTime:        true,
				LazyLoading:     true,
				Sections: []dashboard.ManifestSection{
					{ID: "program-overview", Title: "Program overview", Unit: "template", Span: responsive(12, 6, 4), Priority: "high",
						Resources: []string{ResourceMetrics}, Options: listOptions("sections/metric_list.html", "")},
					{ID: "pipeline", Title: "Startup pipeline", Unit: "chart", Span: responsive(12, 6, 8), Priority: "high",
						Resources: []string{ResourcePipeline}, Options: map[string]any{"type": "bar", "resource": ResourcePipeline, "series": "Startups"}},
					{ID: "startups", Title: "Startups", Unit: "template", Span: responsive(12, 0, 6), Priority: "medium",
						Resources: []string{ResourceStartups}, Options: listOptions("sections/list.html", "No startups enrolled yet")},
					{ID: "mentor-roster", Title: "Mentor roster", Unit: "template", Span: responsive(12, 0, 6), Priority: "medium",
						Resources: []string{ResourceMentors}, Options: listOptions("sections/list.html", "No mentors onboarded")},
					{ID: "assessments", Title: "Assessments queue", Unit: "template", Span: responsive(12, 0, 6), Priority: "medium",
						DependsOn: []string{"startups"}, Resources: []string{ResourceAssessments}, Options: listOptions("sections/list.html", "Queue is clear")},
					{ID: "funding", Title: "Funding by stage", Unit: "chart", Span: responsive(12, 0, 6), Priority: "low", RefreshInterval: 5 * time.Minute,
						Resources: []string{ResourceFunding}, Options: map[string]any{"type": "bar", "resource": ResourceFunding, "series": "Raised (k$)"}},
					{ID: "mentor-load", Title: "Mentor load", Unit: "chart", Span: responsive(12, 0, 6), Priority: "low",
						DependsOn: []string{"mentor-roster"}, Resources: []string{ResourceMentorLoad}, Options: map[string]any{"type": "pie", "resource": ResourceMentorLoad}},
				},
			},
			{
				Role:            string(dashboard.RoleStartup),
				Name:            "Startup Workspace",
				Spacing:         12,
				RefreshInterval: time.Minute,
				RealTime:        true,
				Sections: []dashboard.ManifestSection{
					{ID: "milestones", Title: "Milestones", Unit: "template", Span: responsive(12, 6, 0), Priority: "high",
						Resources: []string{ResourceMilestones}, Options: listOptions("sections/list.html", "No milestones scheduled")},
					{ID: "sessions", Title: "Upcoming mentor sessions", Unit: "template", Span: responsive(12, 6, 0),
						Resources: []string{ResourceSessions}, Options: listOptions("sections/list.html", "No sessions booked")},
					{ID: "traction", Title: "Traction", Unit: "chart", Span: dashboard.Cols(12), Priority: "low",
						Resources: []string{ResourceTraction}, Options: map[string]any{"type": "line", "resource": ResourceTraction, "series": "Weekly active users"}},
				},
			},
			{
				Role:   string(dashboard.RoleMentor),
				Name:   "Mentor Desk",
				Layout: string(dashboard.LayoutCompact),
				Sections: []dashboard.ManifestSection{
					{ID: "mentees", Title: "Mentees", Unit: "template", Span: responsive(12, 0, 6), Priority: "high",
						Resources: []string{ResourceMentees}, Options: listOptions("sections/list.html", "No mentees assigned")},
					{ID: "office-hours", Title: "Office hours", Unit: "template", Span: responsive(12, 0, 6),
						DependsOn: []string{"mentees"}, Resources: []string{ResourceSessions}, Options: listOptions("sections/list.html", "")},
					{ID: "reviews", Title: "Reviews due", Unit: "template", Span: dashboard.Cols(12), Priority: "low",
						DependsOn: []string{"mentees"}, Resources: []string{ResourceAssessments}, Options: listOptions("sections/list.html", "Nothing to review")},
				},
			},
		},
	}
}
