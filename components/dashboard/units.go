package dashboard

import (
	"context"
	"fmt"
	"html"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
)

const (
	defaultChartHeight = "360px"
	// envChartAssetsHost overrides where the ECharts runtime is loaded from.
	envChartAssetsHost = "DASHBOARD_ECHARTS_ASSETS_HOST"
)

// UnitBuilder constructs a section unit from the options declared in a manifest.
type UnitBuilder func(options map[string]any) (SectionUnit, error)

// UnitSpec registers a unit kind in a UnitCatalog.
type UnitSpec struct {
	Key         string
	Description string
	// Schema is an optional JSON schema for the manifest options.
	Schema map[string]any
	Build  UnitBuilder
}

// UnitCatalog maps unit keys used by manifests to unit builders.
type UnitCatalog struct {
	mu        sync.RWMutex
	specs     map[string]UnitSpec
	validator *JSONSchemaValidator
}

// NewUnitCatalog returns an empty catalog.
func NewUnitCatalog() *UnitCatalog {
	return &UnitCatalog{
		specs:     make(map[string]UnitSpec),
		validator: NewJSONSchemaValidator(),
	}
}

// Register adds a unit kind.
func (c *UnitCatalog) Register(spec UnitSpec) error {
	if spec.Key == "" {
		return fmt.Errorf("dashboard: unit key is required")
	}
	if spec.Build == nil {
		return fmt.Errorf("dashboard: unit %s has no builder", spec.Key)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.specs[spec.Key]; exists {
		return fmt.Errorf("dashboard: unit %s already registered", spec.Key)
	}
	c.specs[spec.Key] = spec
	return nil
}

// Spec returns a registered unit kind.
func (c *UnitCatalog) Spec(key string) (UnitSpec, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	spec, ok := c.specs[key]
	return spec, ok
}

// Keys lists registered unit keys in lexical order.
func (c *UnitCatalog) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.specs))
	for key := range c.specs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Factory returns a lazy factory for key. Options are validated against the
// unit schema when the factory runs, so a bad section only fails its own
// boundary.
func (c *UnitCatalog) Factory(key string, options map[string]any) (UnitFactory, error) {
	spec, ok := c.Spec(key)
	if !ok {
		return nil, fmt.Errorf("dashboard: unknown unit %q", key)
	}
	return func() (SectionUnit, error) {
		if err := c.validator.Validate(spec.Key, spec.Schema, options); err != nil {
			return nil, err
		}
		return spec.Build(options)
	}, nil
}

// TemplateUnit renders a section through a named template.
type TemplateUnit struct {
	Renderer Renderer
	Template string
	Extra    map[string]any
}

// Render executes the template with the section context flattened into a map.
func (u TemplateUnit) Render(_ context.Context, meta SectionContext, out io.Writer) error {
	if u.Renderer == nil {
		return fmt.Errorf("dashboard: template unit %s has no renderer", u.Template)
	}
	data := map[string]any{
		"section":   sectionView(meta.Section),
		"viewer":    meta.Viewer,
		"data":      meta.Data,
		"errors":    meta.Errors,
		"loading":   meta.Loading,
		"refreshed": meta.Refreshed,
	}
	for k, v := range u.Extra {
		data[k] = v
	}
	_, err := u.Renderer.Render(u.Template, data, out)
	return err
}

func sectionView(s Section) map[string]any {
	return map[string]any{
		"id":        s.ID,
		"title":     s.Title,
		"priority":  s.Priority.String(),
		"resources": s.Resources,
	}
}

// ListItem is one row of the built-in list and metric templates. Metric rows
// carry the figure in Badge.
type ListItem struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle,omitempty"`
	Badge    string `json:"badge,omitempty"`
}

// ChartPoint is one labelled value.
type ChartPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// ChartUnit renders a go-echarts chart from one resource of the refresh bundle.
type ChartUnit struct {
	Kind       string
	Title      string
	Subtitle   string
	Series     string
	Resource   string
	Theme      string
	AssetsHost string
}

// NewChartUnit builds a chart unit, defaulting the theme and assets host.
func NewChartUnit(kind, resource, title string) ChartUnit {
	return ChartUnit{
		Kind:       strings.ToLower(kind),
		Resource:   resource,
		Title:      title,
		Theme:      types.ThemeWesteros,
		AssetsHost: DefaultChartAssetsHost(),
	}
}

// Render writes the chart markup. While the resource is still loading an
// empty placeholder is written instead.
func (u ChartUnit) Render(_ context.Context, meta SectionContext, out io.Writer) error {
	raw, ok := meta.Data[u.Resource]
	if !ok {
		if msg, failed := meta.Errors[u.Resource]; failed {
			return fmt.Errorf("dashboard: chart %s: %s", u.Resource, msg)
		}
		_, err := fmt.Fprintf(out, `<div class="dashboard-chart dashboard-chart--pending" data-resource="%s"></div>`, html.EscapeString(u.Resource))
		return err
	}
	points, err := chartPoints(raw)
	if err != nil {
		return fmt.Errorf("dashboard: chart %s: %w", u.Resource, err)
	}
	title := u.Title
	if title == "" {
		title = meta.Section.Title
	}
	series := u.Series
	if series == "" {
		series = title
	}
	switch u.Kind {
	case "bar", "":
		bar := charts.NewBar()
		bar.SetGlobalOptions(u.globalOptions(title)...)
		bar.SetXAxis(chartLabels(points))
		bar.AddSeries(series, toBarData(points))
		return bar.Render(out)
	case "line":
		line := charts.NewLine()
		line.SetGlobalOptions(u.globalOptions(title)...)
		line.SetXAxis(chartLabels(points))
		line.AddSeries(series, toLineData(points))
		line.SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))
		return line.Render(out)
	case "pie":
		pie := charts.NewPie()
		pie.SetGlobalOptions(u.globalOptions(title)...)
		pie.AddSeries(series, toPieData(points))
		return pie.Render(out)
	}
	return fmt.Errorf("dashboard: unsupported chart type: %s", u.Kind)
}

func (u ChartUnit) globalOptions(title string) []charts.GlobalOpts {
	initOpts := opts.Initialization{
		Theme:  u.Theme,
		Width:  "100%",
		Height: defaultChartHeight,
	}
	if u.AssetsHost != "" {
		initOpts.AssetsHost = u.AssetsHost
	}
	return []charts.GlobalOpts{
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: u.Subtitle}),
		charts.WithInitializationOpts(initOpts),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	}
}

// DefaultChartAssetsHost returns the ECharts assets host from the environment,
// or an empty string to keep the go-echarts default.
func DefaultChartAssetsHost() string {
	host := strings.TrimSpace(os.Getenv(envChartAssetsHost))
	if host == "" || strings.HasSuffix(host, "/") {
		return host
	}
	return host + "/"
}

func chartPoints(v any) ([]ChartPoint, error) {
	switch value := v.(type) {
	case []ChartPoint:
		return value, nil
	case map[string]float64:
		keys := make([]string, 0, len(value))
		for k := range value {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		points := make([]ChartPoint, len(keys))
		for i, k := range keys {
			points[i] = ChartPoint{Label: k, Value: value[k]}
		}
		return points, nil
	case map[string]int:
		keys := make([]string, 0, len(value))
		for k := range value {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		points := make([]ChartPoint, len(keys))
		for i, k := range keys {
			points[i] = ChartPoint{Label: k, Value: float64(value[k])}
		}
		return points, nil
	case []float64:
		points := make([]ChartPoint, len(value))
		for i, n := range value {
			points[i] = ChartPoint{Label: fmt.Sprintf("%d", i+1), Value: n}
		}
		return points, nil
	}
	return nil, fmt.Errorf("unsupported series payload %T", v)
}

func chartLabels(points []ChartPoint) []string {
	labels := make([]string, len(points))
	for i, p := range points {
		labels[i] = p.Label
	}
	return labels
}

func toBarData(points []ChartPoint) []opts.BarData {
	data := make([]opts.BarData, len(points))
	for i, point := range points {
		data[i] = opts.BarData{Name: point.Label, Value: point.Value}
	}
	return data
}

func toLineData(points []ChartPoint) []opts.LineData {
	data := make([]opts.LineData, len(points))
	for i, point := range points {
		data[i] = opts.LineData{Name: point.Label, Value: point.Value}
	}
	return data
}

func toPieData(points []ChartPoint) []opts.PieData {
	data := make([]opts.PieData, len(points))
	for i, point := range points {
		name := point.Label
		if name == "" {
			name = fmt.Sprintf("Slice %d", i+1)
		}
		data[i] = opts.PieData{Name: name, Value: point.Value}
	}
	return data
}

// ChartUnitSpec registers the built-in "chart" unit kind. Options: type,
// resource, title, subtitle, series, theme.
func ChartUnitSpec() UnitSpec {
	return UnitSpec{
		Key:         "chart",
		Description: "go-echarts chart over one refresh resource",
		Schema: map[string]any{
			"type":     "object",
			"required": []any{"resource"},
			"properties": map[string]any{
				"type":     map[string]any{"type": "string", "enum": []any{"bar", "line", "pie"}},
				"resource": map[string]any{"type": "string", "minLength": 1},
				"title":    map[string]any{"type": "string"},
				"subtitle": map[string]any{"type": "string"},
				"series":   map[string]any{"type": "string"},
				"theme":    map[string]any{"type": "string"},
			},
		},
		Build: func(options map[string]any) (SectionUnit, error) {
			unit := NewChartUnit(optString(options, "type", "bar"), optString(options, "resource", ""), optString(options, "title", ""))
			unit.Subtitle = optString(options, "subtitle", "")
			unit.Series = optString(options, "series", "")
			if theme := optString(options, "theme", ""); theme != "" {
				unit.Theme = theme
			}
			return unit, nil
		},
	}
}

// TemplateUnitSpec registers the built-in "template" unit kind. Options:
// template (required) plus any extra values exposed to the template.
func TemplateUnitSpec(renderer Renderer) UnitSpec {
	return UnitSpec{
		Key:         "template",
		Description: "go-template partial",
		Schema: map[string]any{
			"type":     "object",
			"required": []any{"template"},
			"properties": map[string]any{
				"template": map[string]any{"type": "string", "minLength": 1},
			},
		},
		Build: func(options map[string]any) (SectionUnit, error) {
			extra := make(map[string]any, len(options))
			for k, v := range options {
				if k != "template" {
					extra[k] = v
				}
			}
			return TemplateUnit{Renderer: renderer, Template: optString(options, "template", ""), Extra: extra}, nil
		},
	}
}

func optString(options map[string]any, key, fallback string) string {
	if v, ok := options[key].(string); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}
