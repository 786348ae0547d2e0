package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/goliatone/go-incubator-dashboard/components/dashboard"
)

type planCmd struct {
	Manifest    string   `arg:"" type:"existingfile" help:"Manifest file."`
	Role        string   `required:"" help:"Role whose variant is planned."`
	Breakpoint  string   `default:"lg" enum:"xs,sm,md,lg,xl" help:"Viewport breakpoint used to resolve spans."`
	MinPriority string   `name:"min-priority" help:"Drop sections below this priority (low, medium, high)."`
	Visible     []string `help:"Restrict the plan to these section ids (repeatable)."`
	JSON        bool     `name:"json" help:"Emit the plan as JSON."`
}

func (cmd *planCmd) Run(_ context.Context) error {
	doc, err := dashboard.ReadManifest(cmd.Manifest)
	if err != nil {
		return err
	}
	variant, ok := doc.Variant(dashboard.ParseRole(cmd.Role))
	if !ok {
		return fmt.Errorf("dashctl: %s has no variant for role %s", cmd.Manifest, cmd.Role)
	}
	input, err := variant.ConfigInput(nil)
	if err != nil {
		return err
	}
	cfg, err := dashboard.BuildConfig(input)
	if err != nil {
		return err
	}
	opts, err := cmd.options()
	if err != nil {
		return err
	}
	plan := dashboard.Plan(cfg, opts)

	if cmd.JSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"variant":    variant.Name,
			"breakpoint": opts.Breakpoint,
			"entries":    plan,
		})
	}
	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s (%s)\n", variant.Name, opts.Breakpoint)
	fmt.Fprintln(w, "SECTION\tSPAN\tPRIORITY\tREFRESH")
	for _, entry := range plan {
		refresh := "-"
		if entry.RefreshInterval > 0 {
			refresh = entry.RefreshInterval.String()
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", entry.SectionID, entry.Span, entry.Priority, refresh)
	}
	return w.Flush()
}

func (cmd *planCmd) options() (dashboard.PlanOptions, error) {
	bp, err := dashboard.ParseBreakpoint(cmd.Breakpoint)
	if err != nil {
		return dashboard.PlanOptions{}, err
	}
	opts := dashboard.PlanOptions{Breakpoint: bp}
	if strings.TrimSpace(cmd.MinPriority) != "" {
		if opts.MinPriority, err = dashboard.ParsePriority(cmd.MinPriority); err != nil {
			return dashboard.PlanOptions{}, err
		}
	}
	if cmd.Visible != nil {
		opts.VisibleSectionIDs = cmd.Visible
	}
	return opts, nil
}
