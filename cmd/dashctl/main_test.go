package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-incubator-dashboard/components/dashboard"
)

func captureStdout(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	prev := stdout
	stdout = buf
	t.Cleanup(func() { stdout = prev })
	return buf
}

func parse(t *testing.T, args ...string) *kong.Context {
	t.Helper()
	parser, err := kong.New(&cli{}, kong.Name("dashctl"), kong.Exit(func(int) { t.Fatalf("unexpected exit") }))
	require.NoError(t, err)
	ctx, err := parser.Parse(args)
	require.NoError(t, err)
	return ctx
}

func TestScaffoldCreatesManifestAndPlans(t *testing.T) {
	out := captureStdout(t)
	dir := t.TempDir()
	manifest := filepath.Join(dir, "mentor.yaml")
	stub := filepath.Join(dir, "fetchers", "mentor_notes.go")

	ctx := parse(t, "scaffold", "--manifest", manifest, "--role", "mentor", "--title", "Mentee Notes",
		"--resource", "mentee_notes", "--span", "xs=12,lg=6", "--priority", "high", "--fetcher-out", stub)
	require.NoError(t, ctx.Run(context.Background()))
	assert.Contains(t, out.String(), "mentee-notes")

	ctx = parse(t, "scaffold", "--manifest", manifest, "--role", "mentor", "--title", "Follow ups",
		"--depends-on", "mentee-notes", "--priority", "low")
	require.NoError(t, ctx.Run(context.Background()))

	doc, err := dashboard.ReadManifest(manifest)
	require.NoError(t, err)
	variant, ok := doc.Variant(dashboard.RoleMentor)
	require.True(t, ok)
	require.Len(t, variant.Sections, 2)
	assert.Equal(t, "follow-ups", variant.Sections[1].ID)
	assert.Equal(t, 6, variant.Sections[0].Span.Resolve(dashboard.BreakpointXL))

	code, err := os.ReadFile(stub)
	require.NoError(t, err)
	assert.Contains(t, string(code), "func MenteeNotesFetcher(src Source) dashboard.Fetcher")

	out.Reset()
	ctx = parse(t, "plan", manifest, "--role", "mentor", "--breakpoint", "sm", "--json")
	require.NoError(t, ctx.Run(context.Background()))
	var payload struct {
		Variant string                `json:"variant"`
		Entries []dashboard.PlanEntry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &payload))
	assert.Equal(t, []string{"mentee-notes", "follow-ups"}, dashboard.PlanIDs(payload.Entries))
	assert.Equal(t, 12, payload.Entries[0].Span)

	out.Reset()
	ctx = parse(t, "plan", manifest, "--role", "mentor", "--min-priority", "high")
	require.NoError(t, ctx.Run(context.Background()))
	assert.Contains(t, out.String(), "mentee-notes")
	assert.NotContains(t, out.String(), "follow-ups")
}

func TestScaffoldRejectsDuplicatesAndCycles(t *testing.T) {
	captureStdout(t)
	manifest := filepath.Join(t.TempDir(), "startup.yaml")
	run := func(args ...string) error {
		return parse(t, append([]string{"scaffold", "--manifest", manifest, "--role", "startup"}, args...)...).Run(context.Background())
	}
	require.NoError(t, run("--title", "Runway", "--id", "runway", "--depends-on", "burn"))
	assert.ErrorContains(t, run("--title", "Runway"), "already defines")
	assert.ErrorContains(t, run("--title", "Burn", "--depends-on", "runway"), "cyclic")
	assert.Error(t, run("--title", "Bad span", "--span", "lg"))

	require.NoError(t, run("--title", "Runway", "--overwrite", "--priority", "high"))
	doc, err := dashboard.ReadManifest(manifest)
	require.NoError(t, err)
	require.Len(t, doc.Variants[0].Sections, 1)
	assert.Equal(t, "high", doc.Variants[0].Sections[0].Priority)
}

func TestValidateReportsEachManifest(t *testing.T) {
	out := captureStdout(t)
	good := filepath.Join("..", "..", "docs", "manifests", "incubator.yaml")
	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte(`version: 1
variants:
  - role: admin
    sections:
      - {id: a, unit: template, span: 13}
`), 0o644))

	err := parse(t, "validate", good, bad).Run(context.Background())
	require.Error(t, err)
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "✓"))
	assert.True(t, strings.HasPrefix(lines[1], "✗"))

	out.Reset()
	require.NoError(t, parse(t, "validate", "--strict", good).Run(context.Background()))
}

func TestParseSpan(t *testing.T) {
	span, err := parseSpan("4")
	require.NoError(t, err)
	assert.Equal(t, 4, span.Resolve(dashboard.BreakpointXS))

	span, err = parseSpan("xs=12, md=6")
	require.NoError(t, err)
	assert.Equal(t, 12, span.Resolve(dashboard.BreakpointSM))
	assert.Equal(t, 6, span.Resolve(dashboard.BreakpointXL))

	_, err = parseSpan("huge=3")
	assert.Error(t, err)

	_, err = parseSpan("0")
	assert.ErrorIs(t, err, dashboard.ErrInvalidSpan)
}
