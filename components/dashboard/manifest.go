package dashboard

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	manifestVersionV1 = "1"
	// ManifestVersion exposes the current manifest format version for tooling.
	ManifestVersion = manifestVersionV1
)

// ManifestDocument models a YAML manifest describing role dashboards.
type ManifestDocument struct {
	Version  string            `json:"version" yaml:"version"`
	Name     string            `json:"name,omitempty" yaml:"name,omitempty"`
	Variants []ManifestVariant `json:"variants" yaml:"variants"`
	Source   string            `json:"-" yaml:"-"`
}

// ManifestVariant describes the dashboard of one role.
type ManifestVariant struct {
	Role            string            `json:"role" yaml:"role"`
	Name            string            `json:"name,omitempty" yaml:"name,omitempty"`
	Spacing         int               `json:"spacing,omitempty" yaml:"spacing,omitempty"`
	RefreshInterval time.Duration     `json:"refresh_interval,omitempty" yaml:"refresh_interval,omitempty"`
	Layout          string            `json:"layout,omitempty" yaml:"layout,omitempty"`
	RealTime        bool              `json:"realtime,omitempty" yaml:"realtime,omitempty"`
	LazyLoading     bool              `json:"lazy_loading,omitempty" yaml:"lazy_loading,omitempty"`
	Sections        []ManifestSection `json:"sections" yaml:"sections"`
}

// ManifestSection describes one section entry.
type ManifestSection struct {
	ID              string         `json:"id" yaml:"id"`
	Title           string         `json:"title,omitempty" yaml:"title,omitempty"`
	Unit            string         `json:"unit" yaml:"unit"`
	Options         map[string]any `json:"options,omitempty" yaml:"options,omitempty"`
	Span            Span           `json:"-" yaml:"span,omitempty"`
	Priority        string         `json:"priority,omitempty" yaml:"priority,omitempty"`
	RefreshInterval time.Duration  `json:"refresh_interval,omitempty" yaml:"refresh_interval,omitempty"`
	DependsOn       []string       `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	Resources       []string       `json:"resources,omitempty" yaml:"resources,omitempty"`
}

// FetcherCatalog resolves the resource names referenced by sections.
type FetcherCatalog map[string]Fetcher

// ReadManifest loads a manifest file from disk.
func ReadManifest(path string) (*ManifestDocument, error) {
	f, err := os.Open(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("dashboard: open manifest %s: %w", path, err)
	}
	defer f.Close()
	doc, err := DecodeManifest(f)
	if err != nil {
		return nil, fmt.Errorf("dashboard: decode manifest %s: %w", path, err)
	}
	doc.Source = path
	return doc, nil
}

// DecodeManifest reads a manifest from any reader. The raw tree is checked
// against the manifest schema before the typed decode.
func DecodeManifest(r io.Reader) (*ManifestDocument, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("dashboard: read manifest: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("dashboard: manifest is empty")
	}
	var tree any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("dashboard: parse manifest: %w", err)
	}
	if err := NewJSONSchemaValidator().ValidateManifest(tree); err != nil {
		return nil, err
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	var doc ManifestDocument
	if err := decoder.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("dashboard: manifest is empty")
		}
		return nil, fmt.Errorf("dashboard: parse manifest: %w", err)
	}
	doc.applyDefaults()
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// EncodeManifest writes the manifest as YAML.
func EncodeManifest(w io.Writer, doc *ManifestDocument) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("dashboard: encode manifest: %w", err)
	}
	return encoder.Close()
}

// Validate ensures the manifest satisfies required fields. Section level
// rules (duplicate ids, spans, cycles) are left to BuildConfig.
func (doc *ManifestDocument) Validate() error {
	if doc.Version != manifestVersionV1 {
		return fmt.Errorf("dashboard: unsupported manifest version %q", doc.Version)
	}
	seen := make(map[Role]struct{}, len(doc.Variants))
	for idx, variant := range doc.Variants {
		role := ParseRole(variant.Role)
		if role == "" {
			return fmt.Errorf("dashboard: manifest variant at index %d is missing role", idx)
		}
		if _, exists := seen[role]; exists {
			return fmt.Errorf("dashboard: manifest duplicates variant role %s", role)
		}
		seen[role] = struct{}{}
		for sidx, section := range variant.Sections {
			if section.Unit == "" {
				return fmt.Errorf("dashboard: manifest section %s (index %d) in %s is missing unit", section.ID, sidx, role)
			}
			if _, err := ParsePriority(section.Priority); err != nil {
				return err
			}
		}
	}
	return nil
}

func (doc *ManifestDocument) applyDefaults() {
	if doc.Version == "" {
		doc.Version = manifestVersionV1
	}
	for i := range doc.Variants {
		if doc.Variants[i].Name == "" {
			doc.Variants[i].Name = doc.Variants[i].Role
		}
	}
}

// Variant returns the entry for role.
func (doc *ManifestDocument) Variant(role Role) (ManifestVariant, bool) {
	for _, v := range doc.Variants {
		if ParseRole(v.Role) == ParseRole(string(role)) {
			return v, true
		}
	}
	return ManifestVariant{}, false
}

// ConfigInput converts a manifest variant into registry input. Units are
// looked up in the catalog; fetchers are not needed at this stage.
func (v ManifestVariant) ConfigInput(units *UnitCatalog) (ConfigInput, error) {
	input := ConfigInput{
		Spacing:               v.Spacing,
		RefreshInterval:       v.RefreshInterval,
		Layout:                LayoutMode(v.Layout),
		EnableRealTimeUpdates: v.RealTime,
		EnableLazyLoading:     v.LazyLoading,
		Sections:              make([]Section, 0, len(v.Sections)),
	}
	for _, entry := range v.Sections {
		priority, err := ParsePriority(entry.Priority)
		if err != nil {
			return ConfigInput{}, err
		}
		section := Section{
			ID:              entry.ID,
			Title:           entry.Title,
			Span:            entry.Span,
			Priority:        priority,
			RefreshInterval: entry.RefreshInterval,
			DependsOn:       entry.DependsOn,
			Resources:       entry.Resources,
		}
		if units != nil {
			factory, err := units.Factory(entry.Unit, entry.Options)
			if err != nil {
				return ConfigInput{}, fmt.Errorf("dashboard: section %s: %w", entry.ID, err)
			}
			section.Unit = factory
		}
		input.Sections = append(input.Sections, section)
	}
	return input, nil
}

// Descriptors turns every manifest variant into a lazily loaded variant
// descriptor. Registry validation runs when the role is first resolved.
func (doc *ManifestDocument) Descriptors(units *UnitCatalog, fetchers FetcherCatalog) []VariantDescriptor {
	out := make([]VariantDescriptor, 0, len(doc.Variants))
	for _, mv := range doc.Variants {
		out = append(out, VariantDescriptor{
			Role: ParseRole(mv.Role),
			Name: mv.Name,
			Load: func(context.Context) (Variant, error) {
				input, err := mv.ConfigInput(units)
				if err != nil {
					return Variant{}, err
				}
				cfg, err := BuildConfig(input)
				if err != nil {
					return Variant{}, err
				}
				bundle := make(map[string]Fetcher, len(cfg.Resources()))
				for _, name := range cfg.Resources() {
					fetch, ok := fetchers[name]
					if !ok {
						return Variant{}, fmt.Errorf("dashboard: no fetcher for resource %s", name)
					}
					bundle[name] = fetch
				}
				return Variant{Name: mv.Name, Config: cfg, Fetchers: bundle}, nil
			},
		})
	}
	return out
}
