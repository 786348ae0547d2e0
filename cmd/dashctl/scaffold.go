package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ettle/strcase"

	"github.com/goliatone/go-incubator-dashboard/components/dashboard"
)

type scaffoldCmd struct {
	ManifestPath   string   `name:"manifest" required:"" type:"path" help:"Manifest YAML to update (created when missing)."`
	Role           string   `required:"" help:"Role of the variant receiving the section."`
	Title          string   `required:"" help:"Section title."`
	ID             string   `name:"id" help:"Section id (defaults to the kebab-cased title)."`
	Unit           string   `default:"template" enum:"template,chart" help:"Section unit kind."`
	Template       string   `default:"sections/list.html" help:"Template rendered by template units."`
	Chart          string   `default:"bar" enum:"bar,line,pie" help:"Chart type for chart units."`
	Resource       []string `help:"Resources fetched for the section (repeatable)."`
	Span           string   `default:"12" help:"Column span: a number or a breakpoint list such as xs=12,lg=6."`
	Priority       string   `default:"medium" enum:"low,medium,high" help:"Section priority."`
	DependsOn      []string `name:"depends-on" help:"Sections this one depends on (repeatable)."`
	Overwrite      bool     `help:"Replace an existing section with the same id."`
	FetcherOut     string   `name:"fetcher-out" type:"path" help:"Write a fetcher stub for the section resources to this file."`
	FetcherPackage string   `name:"fetcher-package" default:"incubator" help:"Package clause of the generated fetcher stub."`
}

func (cmd *scaffoldCmd) Run(_ context.Context) error {
	section, err := cmd.section()
	if err != nil {
		return err
	}
	path, err := filepath.Abs(cmd.ManifestPath)
	if err != nil {
		return fmt.Errorf("dashctl: resolve manifest path: %w", err)
	}
	doc, err := loadOrInitManifest(path)
	if err != nil {
		return err
	}
	if err := cmd.apply(doc, section); err != nil {
		return err
	}
	if err := writeManifest(path, doc); err != nil {
		return err
	}
	if cmd.FetcherOut == "" {
		fmt.Fprintf(stdout, "✓ Added %s to the %s dashboard in %s\n", section.ID, dashboard.ParseRole(cmd.Role), path)
		return nil
	}
	if err := writeFetcherStub(cmd.FetcherOut, cmd.FetcherPackage, section.Resources, cmd.Overwrite); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "✓ Added %s to %s and generated %s\n", section.ID, path, cmd.FetcherOut)
	return nil
}

func (cmd *scaffoldCmd) section() (dashboard.ManifestSection, error) {
	id := strings.TrimSpace(cmd.ID)
	if id == "" {
		id = strcase.ToKebab(cmd.Title)
	}
	if id == "" {
		return dashboard.ManifestSection{}, errors.New("dashctl: section id is empty")
	}
	span, err := parseSpan(cmd.Span)
	if err != nil {
		return dashboard.ManifestSection{}, err
	}
	section := dashboard.ManifestSection{
		ID:        id,
		Title:     cmd.Title,
		Unit:      cmd.Unit,
		Span:      span,
		Priority:  cmd.Priority,
		DependsOn: cmd.DependsOn,
		Resources: cmd.Resource,
	}
	switch cmd.Unit {
	case "chart":
		if len(cmd.Resource) == 0 {
			return dashboard.ManifestSection{}, errors.New("dashctl: chart sections need --resource")
		}
		section.Options = map[string]any{"type": cmd.Chart, "resource": cmd.Resource[0]}
	default:
		section.Options = map[string]any{"template": cmd.Template}
	}
	return section, nil
}

// apply inserts or replaces the section and rebuilds the variant so a bad
// entry never reaches disk.
func (cmd *scaffoldCmd) apply(doc *dashboard.ManifestDocument, section dashboard.ManifestSection) error {
	role := dashboard.ParseRole(cmd.Role)
	idx := -1
	for i, variant := range doc.Variants {
		if dashboard.ParseRole(variant.Role) == role {
			idx = i
			break
		}
	}
	if idx < 0 {
		doc.Variants = append(doc.Variants, dashboard.ManifestVariant{Role: string(role), Name: strcase.ToPascal(string(role))})
		idx = len(doc.Variants) - 1
	}
	variant := &doc.Variants[idx]

	replaced := false
	for i := range variant.Sections {
		if variant.Sections[i].ID != section.ID {
			continue
		}
		if !cmd.Overwrite {
			return fmt.Errorf("dashctl: %s already defines section %s (use --overwrite to replace)", role, section.ID)
		}
		variant.Sections[i] = section
		replaced = true
	}
	if !replaced {
		variant.Sections = append(variant.Sections, section)
	}

	input, err := variant.ConfigInput(nil)
	if err != nil {
		return err
	}
	if _, err := dashboard.BuildConfig(input); err != nil {
		return fmt.Errorf("dashctl: %s would become invalid: %w", role, err)
	}
	return nil
}

func parseSpan(value string) (dashboard.Span, error) {
	value = strings.TrimSpace(value)
	if n, err := strconv.Atoi(value); err == nil {
		if n < 1 || n > dashboard.GridColumns {
			return dashboard.Span{}, fmt.Errorf("dashctl: %w: %d outside 1..%d", dashboard.ErrInvalidSpan, n, dashboard.GridColumns)
		}
		return dashboard.Cols(n), nil
	}
	sizes := map[dashboard.Breakpoint]int{}
	for _, part := range strings.Split(value, ",") {
		key, raw, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return dashboard.Span{}, fmt.Errorf("dashctl: span entry %q must look like lg=6", part)
		}
		bp, err := dashboard.ParseBreakpoint(key)
		if err != nil {
			return dashboard.Span{}, err
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return dashboard.Span{}, fmt.Errorf("dashctl: span %s: %w", key, err)
		}
		sizes[bp] = n
	}
	return dashboard.Responsive(sizes), nil
}

func loadOrInitManifest(path string) (*dashboard.ManifestDocument, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &dashboard.ManifestDocument{Version: dashboard.ManifestVersion, Source: path}, nil
		}
		return nil, fmt.Errorf("dashctl: stat manifest: %w", err)
	}
	return dashboard.ReadManifest(path)
}

func writeManifest(path string, doc *dashboard.ManifestDocument) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("dashctl: mkdir %s: %w", filepath.Dir(path), err)
	}
	file, err := os.Create(path) //nolint:gosec
	if err != nil {
		return fmt.Errorf("dashctl: create manifest %s: %w", path, err)
	}
	defer file.Close()
	return dashboard.EncodeManifest(file, doc)
}

func writeFetcherStub(path, pkg string, resources []string, overwrite bool) error {
	if len(resources) == 0 {
		return errors.New("dashctl: --fetcher-out needs at least one --resource")
	}
	if _, err := os.Stat(path); err == nil && !overwrite {
		return fmt.Errorf("dashctl: fetcher stub %s already exists (use --overwrite)", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("dashctl: mkdir fetcher dir: %w", err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "package %s\n\nimport (\n\t\"context\"\n\n\tdashboard \"github.com/goliatone/go-incubator-dashboard/components/dashboard\"\n)\n", pkg)
	for _, resource := range resources {
		name := strcase.ToPascal(resource) + "Fetcher"
		fmt.Fprintf(&b, `
// %s loads the %q resource. Register it in the fetcher catalog under that name.
func %s(src Source) dashboard.Fetcher {
	return func(ctx context.Context) (any, error) {
		viewer, _ := dashboard.ViewerFromContext(ctx)
		_ = viewer
		return []dashboard.ListItem{{Title: "replace with %s data"}}, nil
	}
}
`, name, resource, name, resource)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("dashctl: write fetcher stub: %w", err)
	}
	return nil
}
