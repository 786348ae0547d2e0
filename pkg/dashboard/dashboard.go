package dashboard

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	core "github.com/goliatone/go-incubator-dashboard/components/dashboard"
	"github.com/goliatone/go-incubator-dashboard/components/dashboard/commands"
	"github.com/goliatone/go-incubator-dashboard/components/dashboard/httpapi"
	"github.com/goliatone/go-incubator-dashboard/components/dashboard/incubator"
	"github.com/goliatone/go-incubator-dashboard/components/dashboard/queries"
)

// Re-exports of the core types most hosts need.
type (
	Controller      = core.Controller
	SessionPool     = core.SessionPool
	VariantTable    = core.VariantTable
	User            = core.User
	Role            = core.Role
	PageRequest     = core.PageRequest
	Preferences     = core.Preferences
	BroadcastHook   = core.BroadcastHook
	RefreshHook     = core.RefreshHook
	Renderer        = core.Renderer
	Telemetry       = core.Telemetry
	PreferenceStore = core.PreferenceStore
)

const (
	RoleAdmin   = core.RoleAdmin
	RoleStartup = core.RoleStartup
	RoleMentor  = core.RoleMentor
)

// Options assembles the incubator dashboards for a host application.
type Options struct {
	Source      incubator.Source
	Renderer    core.Renderer
	Manifest    *core.ManifestDocument
	Hook        core.RefreshHook
	MountHook   core.MountHook
	Observer    core.FaultObserver
	Telemetry   core.Telemetry
	Logger      *zap.Logger
	Preferences core.PreferenceStore
	IdleTTL     time.Duration
	// CacheTTL enables the section fragment cache when positive.
	CacheTTL time.Duration
	Fetchers incubator.FetcherOptions
}

// Service bundles the variant table, the per-user session pool and the
// controller built on top of them.
type Service struct {
	Variants   *core.VariantTable
	Sessions   *core.SessionPool
	Controller *core.Controller
	telemetry  core.Telemetry
}

// NewService wires every collaborator with defaults. A nil Renderer uses the
// embedded templates.
func NewService(opts Options) (*Service, error) {
	if opts.Source == nil {
		return nil, errors.New("dashboard: incubator source is required")
	}
	renderer := opts.Renderer
	if renderer == nil {
		var err error
		if renderer, err = core.NewTemplateRenderer(); err != nil {
			return nil, err
		}
	}
	variants, err := incubator.NewVariantTable(incubator.Options{
		Source:   opts.Source,
		Renderer: renderer,
		Manifest: opts.Manifest,
		Fetchers: opts.Fetchers,
	})
	if err != nil {
		return nil, err
	}
	var cache core.RenderCache
	if opts.CacheTTL > 0 {
		cache = core.NewFragmentCache(opts.CacheTTL)
	}
	sessions, err := core.NewSessionPool(core.SessionPoolOptions{
		Router: core.RouterOptions{
			Variants:  variants,
			Hook:      opts.Hook,
			MountHook: opts.MountHook,
			Telemetry: opts.Telemetry,
			Logger:    opts.Logger,
			Cache:     cache,
			Observer:  opts.Observer,
		},
		IdleTTL: opts.IdleTTL,
		Logger:  opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	controller := core.NewController(core.ControllerOptions{
		Sessions:    sessions,
		Preferences: opts.Preferences,
		Renderer:    renderer,
		Telemetry:   opts.Telemetry,
		Logger:      opts.Logger,
	})
	return &Service{Variants: variants, Sessions: sessions, Controller: controller, telemetry: opts.Telemetry}, nil
}

// Executor returns the go-command backed write API for the transports.
func (s *Service) Executor() httpapi.CommandExecutor {
	return httpapi.CommandExecutor{
		RefreshCmd:     commands.NewRefreshDashboardCommand(s.Controller, s.telemetry),
		RetryCmd:       commands.NewRetrySectionCommand(s.Controller, s.telemetry),
		PreferencesCmd: commands.NewSavePreferencesCommand(s.Controller, s.telemetry),
		ReleaseCmd:     commands.NewReleaseSessionCommand(s.Sessions, s.telemetry),
	}
}

// Queries returns the go-command read side.
func (s *Service) Queries() (*queries.PlanQuery, *queries.PageQuery, *queries.SnapshotQuery) {
	return queries.NewPlanQuery(s.Controller), queries.NewPageQuery(s.Controller), queries.NewSnapshotQuery(s.Controller)
}

// Run evicts idle sessions every interval until ctx is done.
func (s *Service) Run(ctx context.Context, interval time.Duration) error {
	return s.Sessions.Run(ctx, interval)
}

// Close stops every mounted dashboard.
func (s *Service) Close(ctx context.Context) error {
	return s.Sessions.Close(ctx)
}
