package main

import (
	"context"
	"io"
	"os"

	"github.com/alecthomas/kong"
)

var stdout io.Writer = os.Stdout

type cli struct {
	Validate validateCmd `cmd:"" help:"Validate dashboard manifests (schema, duplicate ids, spans, dependency cycles)."`
	Plan     planCmd     `cmd:"" help:"Print the layout plan of one role for a breakpoint and filters."`
	Scaffold scaffoldCmd `cmd:"" help:"Append a section entry to a manifest and optionally generate a fetcher stub."`
}

func main() {
	ctx := kong.Parse(&cli{},
		kong.Name("dashctl"),
		kong.Description("Manifest tooling for role dashboards."),
		kong.UsageOnError(),
	)
	err := ctx.Run(context.Background())
	ctx.FatalIfErrorf(err)
}
