package goadmin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	core "github.com/goliatone/go-incubator-dashboard/components/dashboard"
	activitypkg "github.com/goliatone/go-incubator-dashboard/pkg/activity"
	dashboardpkg "github.com/goliatone/go-incubator-dashboard/pkg/dashboard"
)

// MenuBuilder ensures dashboard entries exist within the admin navigation.
type MenuBuilder interface {
	EnsureMenuItem(ctx context.Context, menuCode string, item MenuItem) error
}

// MenuItem captures dashboard link metadata. Roles limits visibility of the
// entry; an empty list shows it to everyone.
type MenuItem struct {
	Label    string
	Route    string
	Icon     string
	Position int
	Roles    []string
}

// Config wires the incubator dashboard service and feature flags into an
// admin shell.
type Config struct {
	EnableDashboard bool
	MenuCode        string
	MenuBuilder     MenuBuilder
	Service         *dashboardpkg.Service
	// BasePath prefixes the per-role dashboard routes.
	BasePath        string
	DefaultMenuItem MenuItem
	// RoleIcons overrides the icon per role.
	RoleIcons      map[string]string
	ActivityHooks  activitypkg.Hooks
	ActivityConfig activitypkg.Config
	Logger         *zap.Logger
}

// Admin exposes helpers for go-admin style applications.
type Admin struct {
	cfg     Config
	emitter *activitypkg.Emitter
}

// New creates an Admin helper that can seed dashboard menus.
func New(cfg Config) (*Admin, error) {
	if cfg.EnableDashboard && cfg.Service == nil {
		return nil, errors.New("goadmin: dashboard service is required when enabled")
	}
	if cfg.MenuCode == "" {
		cfg.MenuCode = "admin.main"
	}
	if cfg.BasePath == "" {
		cfg.BasePath = "/incubator/dashboard"
	}
	if cfg.DefaultMenuItem.Label == "" {
		cfg.DefaultMenuItem.Label = "Dashboard"
	}
	if cfg.DefaultMenuItem.Route == "" {
		cfg.DefaultMenuItem.Route = cfg.BasePath
	}
	if cfg.DefaultMenuItem.Icon == "" {
		cfg.DefaultMenuItem.Icon = "home"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Admin{
		cfg:     cfg,
		emitter: activitypkg.NewEmitter(cfg.ActivityHooks, cfg.ActivityConfig),
	}, nil
}

// Dashboard exposes the configured dashboard service when enabled.
func (a *Admin) Dashboard() *dashboardpkg.Service {
	if !a.cfg.EnableDashboard {
		return nil
	}
	return a.cfg.Service
}

// Emitter returns the activity emitter built from the configured hooks.
func (a *Admin) Emitter() *activitypkg.Emitter {
	return a.emitter
}

// MountHook reports dashboard mounts and unmounts to the activity hooks.
func (a *Admin) MountHook() core.MountHook {
	return core.ActivityMountHook(a.emitter, a.cfg.Logger)
}

// FaultObserver reports section faults to the activity hooks.
func (a *Admin) FaultObserver() core.FaultObserver {
	return core.ActivityFaultObserver(a.emitter, a.cfg.Logger)
}

// MenuItems returns one entry per registered role variant, in registration
// order. Without variants the default item is returned alone.
func (a *Admin) MenuItems() []MenuItem {
	if a.cfg.Service == nil || a.cfg.Service.Variants == nil {
		return []MenuItem{a.cfg.DefaultMenuItem}
	}
	roles := a.cfg.Service.Variants.Roles()
	if len(roles) == 0 {
		return []MenuItem{a.cfg.DefaultMenuItem}
	}
	items := make([]MenuItem, 0, len(roles))
	for i, role := range roles {
		item := a.cfg.DefaultMenuItem
		item.Position = a.cfg.DefaultMenuItem.Position + i
		item.Roles = []string{string(role)}
		item.Route = strings.TrimRight(a.cfg.BasePath, "/") + "?role=" + string(role)
		if desc, ok := a.cfg.Service.Variants.Lookup(role); ok && desc.Name != "" {
			item.Label = desc.Name
		}
		if icon := a.cfg.RoleIcons[string(role)]; icon != "" {
			item.Icon = icon
		}
		items = append(items, item)
	}
	return items
}

// Bootstrap seeds menu entries when dashboard support is enabled.
func (a *Admin) Bootstrap(ctx context.Context) error {
	if !a.cfg.EnableDashboard || a.cfg.MenuBuilder == nil {
		return nil
	}
	for _, item := range a.MenuItems() {
		if err := a.cfg.MenuBuilder.EnsureMenuItem(ctx, a.cfg.MenuCode, item); err != nil {
			return fmt.Errorf("goadmin: ensure menu item %s: %w", item.Label, err)
		}
	}
	return nil
}
