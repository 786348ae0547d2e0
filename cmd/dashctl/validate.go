package main

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/goliatone/go-incubator-dashboard/components/dashboard"
	"github.com/goliatone/go-incubator-dashboard/components/dashboard/incubator"
)

type validateCmd struct {
	Manifests []string `arg:"" help:"Manifest files to check."`
	Strict    bool     `help:"Fail when a section references a resource the incubator fetchers do not serve."`
}

func (cmd *validateCmd) Run(_ context.Context) error {
	var failed *multierror.Error
	for _, path := range cmd.Manifests {
		if err := cmd.check(path); err != nil {
			fmt.Fprintf(stdout, "✗ %s: %v\n", path, err)
			failed = multierror.Append(failed, err)
			continue
		}
		fmt.Fprintf(stdout, "✓ %s\n", path)
	}
	if failed.ErrorOrNil() != nil {
		return fmt.Errorf("dashctl: %d manifest(s) failed validation", failed.Len())
	}
	return nil
}

func (cmd *validateCmd) check(path string) error {
	doc, err := dashboard.ReadManifest(path)
	if err != nil {
		return err
	}
	var served dashboard.FetcherCatalog
	if cmd.Strict {
		served = incubator.Fetchers(incubator.NewMemorySource(incubator.Data{}, nil), incubator.FetcherOptions{})
	}
	for _, variant := range doc.Variants {
		input, err := variant.ConfigInput(nil)
		if err != nil {
			return fmt.Errorf("variant %s: %w", variant.Role, err)
		}
		cfg, err := dashboard.BuildConfig(input)
		if err != nil {
			return fmt.Errorf("variant %s: %w", variant.Role, err)
		}
		for _, resource := range cfg.Resources() {
			if served == nil {
				break
			}
			if _, ok := served[resource]; !ok {
				return fmt.Errorf("variant %s: unknown resource %s", variant.Role, resource)
			}
		}
	}
	return nil
}
