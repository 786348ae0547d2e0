package dashboard

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const mentorManifest = `
version: 1
name: pilot
variants:
  - role: Mentor
    refresh_interval: 45s
    realtime: true
    layout: compact
    sections:
      - id: mentees
        title: Mentees
        unit: chart
        span: {xs: 12, lg: 6}
        priority: high
        resources: [mentees]
        options:
          type: bar
          resource: mentees
      - id: notes
        unit: chart
        span: 4
        depends_on: [mentees]
        resources: [notes]
        options:
          resource: notes
`

func TestDecodeManifest(t *testing.T) {
	doc, err := DecodeManifest(strings.NewReader(mentorManifest))
	require.NoError(t, err)
	assert.Equal(t, ManifestVersion, doc.Version)
	require.Len(t, doc.Variants, 1)

	variant, ok := doc.Variant(RoleMentor)
	require.True(t, ok)
	assert.Equal(t, "Mentor", variant.Name, "name defaults to the role")
	assert.Equal(t, 45*time.Second, variant.RefreshInterval)
	assert.True(t, variant.RealTime)
	require.Len(t, variant.Sections, 2)

	mentees := variant.Sections[0]
	assert.Equal(t, 6, mentees.Span.Resolve(BreakpointXL))
	assert.Equal(t, 12, mentees.Span.Resolve(BreakpointMD))
	assert.Equal(t, "high", mentees.Priority)
	assert.Equal(t, 4, variant.Sections[1].Span.Resolve(BreakpointXS))
}

func TestDecodeManifestRejectsSchemaViolations(t *testing.T) {
	cases := map[string]string{
		"unknown field":    "variants:\n  - role: admin\n    colour: red\n    sections: []\n",
		"missing unit":     "variants:\n  - role: admin\n    sections:\n      - id: x\n",
		"bad priority":     "variants:\n  - role: admin\n    sections:\n      - id: x\n        unit: chart\n        priority: urgent\n",
		"bad duration":     "variants:\n  - role: admin\n    refresh_interval: soon\n    sections: []\n",
		"bad span key":     "variants:\n  - role: admin\n    sections:\n      - id: x\n        unit: chart\n        span: {xxl: 3}\n",
		"missing variants": "name: empty\n",
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeManifest(strings.NewReader(payload))
			assert.Error(t, err)
		})
	}
}

func TestDecodeManifestRejectsDuplicateRoles(t *testing.T) {
	const payload = `
variants:
  - role: admin
    sections: []
  - role: ADMIN
    sections: []
`
	_, err := DecodeManifest(strings.NewReader(payload))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicates variant role")
}

func TestDecodeManifestEmpty(t *testing.T) {
	_, err := DecodeManifest(strings.NewReader("  \n"))
	assert.Error(t, err)
}

func TestManifestDescriptorsBuildVariants(t *testing.T) {
	doc, err := DecodeManifest(strings.NewReader(mentorManifest))
	require.NoError(t, err)

	units := NewUnitCatalog()
	require.NoError(t, units.Register(ChartUnitSpec()))
	fetchers := FetcherCatalog{
		"mentees": func(context.Context) (any, error) { return map[string]int{"acme": 3}, nil },
		"notes":   func(context.Context) (any, error) { return []float64{1, 2}, nil },
	}
	table, err := NewVariantTable(doc.Descriptors(units, fetchers)...)
	require.NoError(t, err)

	variant, err := table.Resolve(context.Background(), RoleMentor)
	require.NoError(t, err)
	assert.Equal(t, RoleMentor, variant.Role)
	assert.Equal(t, []string{"mentees", "notes"}, variant.Config.SectionIDs())
	assert.Equal(t, 45*time.Second, variant.Config.PollInterval())
	assert.Equal(t, LayoutCompact, variant.Config.Layout())
	assert.Len(t, variant.Fetchers, 2)
}

func TestManifestDescriptorsRequireFetchers(t *testing.T) {
	doc, err := DecodeManifest(strings.NewReader(mentorManifest))
	require.NoError(t, err)
	units := NewUnitCatalog()
	require.NoError(t, units.Register(ChartUnitSpec()))

	descs := doc.Descriptors(units, FetcherCatalog{})
	_, err = descs[0].Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no fetcher for resource mentees")
}

func TestManifestDescriptorsSurfaceRegistryErrors(t *testing.T) {
	doc := &ManifestDocument{Version: ManifestVersion, Variants: []ManifestVariant{{
		Role: "admin",
		Sections: []ManifestSection{
			{ID: "a", Unit: "chart", Span: Cols(13), Options: map[string]any{"resource": "a"}},
		},
	}}}
	units := NewUnitCatalog()
	require.NoError(t, units.Register(ChartUnitSpec()))
	_, err := doc.Descriptors(units, FetcherCatalog{})[0].Load(context.Background())
	assert.True(t, errors.Is(err, ErrInvalidSpan))
}

func TestManifestRejectsOutOfRangeSpans(t *testing.T) {
	for _, span := range []string{"0", "13", "{xs: 0}", "{lg: 14}"} {
		payload := `
variants:
  - role: admin
    sections:
      - id: a
        unit: chart
        span: ` + span + `
`
		_, err := DecodeManifest(strings.NewReader(payload))
		assert.Error(t, err, "span %s", span)
	}
}

func TestSpanYAMLRejectsZero(t *testing.T) {
	var section ManifestSection
	err := yaml.Unmarshal([]byte("id: a\nunit: chart\nspan: 0\n"), &section)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidSpan))

	require.NoError(t, yaml.Unmarshal([]byte("id: a\nunit: chart\n"), &section))
	assert.Equal(t, Span{}, section.Span)
	assert.Equal(t, GridColumns, section.Span.Resolve(BreakpointMD))
}

func TestManifestUnknownUnit(t *testing.T) {
	doc, err := DecodeManifest(strings.NewReader(mentorManifest))
	require.NoError(t, err)
	variant, _ := doc.Variant(RoleMentor)
	_, err = variant.ConfigInput(NewUnitCatalog())
	assert.ErrorContains(t, err, "unknown unit")
}

func TestEncodeManifestRoundTrip(t *testing.T) {
	doc, err := DecodeManifest(strings.NewReader(mentorManifest))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, EncodeManifest(&buf, doc))
	again, err := DecodeManifest(&buf)
	require.NoError(t, err)
	assert.Equal(t, doc.Variants[0].RefreshInterval, again.Variants[0].RefreshInterval)
	assert.Equal(t, 6, again.Variants[0].Sections[0].Span.Resolve(BreakpointLG))
}

func TestDocsManifestsAreValid(t *testing.T) {
	dir := filepath.Join("..", "..", "docs", "manifests")
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	roles := map[Role]string{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		doc, err := ReadManifest(path)
		require.NoErrorf(t, err, "manifest %s should parse", path)
		for _, variant := range doc.Variants {
			role := ParseRole(variant.Role)
			if prev, exists := roles[role]; exists {
				t.Fatalf("role %s defined in both %s and %s", role, prev, path)
			}
			roles[role] = path
			input, err := variant.ConfigInput(nil)
			require.NoError(t, err)
			_, err = BuildConfig(input)
			require.NoErrorf(t, err, "variant %s in %s should build", role, path)
		}
	}
}
