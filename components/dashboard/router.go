package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/qmuntal/stateless"
	"go.uber.org/zap"
)

// RouterState is the state of a RoleRouter.
type RouterState string

const (
	StateUnresolved RouterState = "unresolved"
	StateResolved   RouterState = "resolved"
	StateUnknown    RouterState = "unknown"
)

const (
	triggerMatched   = "role_matched"
	triggerUnmatched = "role_unmatched"
	triggerCleared   = "user_cleared"
)

var errMissingVariants = errors.New("dashboard: router requires a variant table")

// RouterOptions configures a RoleRouter.
type RouterOptions struct {
	Variants  *VariantTable
	Hook      RefreshHook
	MountHook MountHook
	Telemetry Telemetry
	Logger    *zap.Logger
	Cache     RenderCache
	Fallback  FallbackFunc
	Observer  FaultObserver
	// Context parents every refresh controller started by the router.
	Context context.Context
}

// RoleRouter owns one dashboard slot. It picks the variant bound to the
// current user's role and keeps at most one mounted variant alive; on a role
// change the previous mount is stopped before the next one starts.
type RoleRouter struct {
	opts      RouterOptions
	logger    *zap.Logger
	telemetry Telemetry

	mu       sync.Mutex
	machine  *stateless.StateMachine
	user     *User
	mount    *Mount
	mountErr error
}

// NewRoleRouter builds a router in the unresolved state.
func NewRoleRouter(opts RouterOptions) (*RoleRouter, error) {
	if opts.Variants == nil {
		return nil, errMissingVariants
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	r := &RoleRouter{
		opts:      opts,
		logger:    opts.Logger,
		telemetry: normalizeTelemetry(opts.Telemetry),
	}
	r.machine = r.newMachine()
	return r, nil
}

func (r *RoleRouter) newMachine() *stateless.StateMachine {
	sm := stateless.NewStateMachine(StateUnresolved)
	sm.Configure(StateUnresolved).
		Permit(triggerMatched, StateResolved).
		Permit(triggerUnmatched, StateUnknown).
		Ignore(triggerCleared)
	sm.Configure(StateResolved).
		PermitReentry(triggerMatched).
		Permit(triggerUnmatched, StateUnknown).
		Permit(triggerCleared, StateUnresolved).
		OnEntry(r.enterResolved).
		OnExit(r.exitResolved)
	sm.Configure(StateUnknown).
		Permit(triggerMatched, StateResolved).
		PermitReentry(triggerUnmatched).
		Permit(triggerCleared, StateUnresolved)
	return sm
}

// SetUser applies the identity reported by the user collaborator. A nil user
// returns the router to the unresolved state.
func (r *RoleRouter) SetUser(ctx context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user == nil {
		r.user = nil
		return r.machine.FireCtx(ctx, triggerCleared)
	}
	next := *user
	next.Role = ParseRole(string(next.Role))
	if _, ok := r.opts.Variants.Lookup(next.Role); !ok {
		r.user = &next
		r.logger.Info("no dashboard variant for role",
			zap.String("user", next.ID),
			zap.String("role", string(next.Role)),
		)
		return r.machine.FireCtx(ctx, triggerUnmatched, &next)
	}
	if r.current() == StateResolved && r.user != nil && r.user.ID == next.ID && r.user.Role == next.Role {
		r.user = &next
		return r.mountErr
	}
	r.user = &next
	return r.machine.FireCtx(ctx, triggerMatched, &next)
}

// Watch applies every user published by src until ctx is done or the source
// closes its channel.
func (r *RoleRouter) Watch(ctx context.Context, src UserSource) {
	updates, cancel := src.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case user, ok := <-updates:
			if !ok {
				return
			}
			if err := r.SetUser(ctx, user); err != nil {
				r.logger.Error("apply user update failed", zap.Error(err))
			}
		}
	}
}

// Close tears down the mounted variant, if any.
func (r *RoleRouter) Close(ctx context.Context) error {
	return r.SetUser(ctx, nil)
}

// State returns the current router state.
func (r *RoleRouter) State() RouterState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current()
}

// User returns a copy of the current user, or nil.
func (r *RoleRouter) User() *User {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.user == nil {
		return nil
	}
	u := *r.user
	return &u
}

// Mount returns the live mount. In the resolved state a nil mount comes with
// the error that prevented the variant from mounting.
func (r *RoleRouter) Mount() (*Mount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.current() {
	case StateUnknown:
		role := Role("")
		if r.user != nil {
			role = r.user.Role
		}
		return nil, fmt.Errorf("%w %q", ErrUnknownVariant, role)
	case StateResolved:
		return r.mount, r.mountErr
	}
	return nil, nil
}

// Render renders the mounted variant. While unresolved it renders nothing
// and returns an empty page.
func (r *RoleRouter) Render(ctx context.Context, opts PlanOptions) (Page, error) {
	mount, err := r.Mount()
	if err != nil {
		return Page{}, err
	}
	if mount == nil {
		return Page{}, nil
	}
	return mount.Render(ctx, opts)
}

func (r *RoleRouter) current() RouterState {
	return r.machine.MustState().(RouterState)
}

func (r *RoleRouter) enterResolved(ctx context.Context, args ...any) error {
	user, _ := args[0].(*User)
	if user == nil {
		return errors.New("dashboard: resolved without a user")
	}
	variant, err := r.opts.Variants.Resolve(ctx, user.Role)
	if err != nil {
		r.mountErr = err
		r.logger.Error("dashboard variant failed to load",
			zap.String("role", string(user.Role)),
			zap.Error(err),
		)
		return err
	}
	mount := newMount(variant, mountOptions{
		Viewer:    user.Viewer(),
		Hook:      r.opts.Hook,
		Telemetry: r.telemetry,
		Logger:    r.logger,
		Cache:     r.opts.Cache,
		Fallback:  r.opts.Fallback,
		Observer:  r.opts.Observer,
	})
	if err := mount.start(r.opts.Context); err != nil {
		r.mountErr = err
		return err
	}
	r.mount, r.mountErr = mount, nil
	r.notifyMount(ctx, mount, "mount")
	return nil
}

func (r *RoleRouter) exitResolved(ctx context.Context, _ ...any) error {
	mount := r.mount
	r.mount, r.mountErr = nil, nil
	if mount == nil {
		return nil
	}
	mount.stop()
	r.notifyMount(ctx, mount, "unmount")
	return nil
}

func (r *RoleRouter) notifyMount(ctx context.Context, mount *Mount, reason string) {
	r.logger.Info("dashboard variant "+reason,
		zap.String("mount_id", mount.ID()),
		zap.String("variant", mount.variant.Name),
		zap.String("user", mount.viewer.UserID),
	)
	r.telemetry.Record(ctx, "dashboard.variant."+reason, map[string]any{
		"mount_id": mount.ID(),
		"variant":  mount.variant.Name,
		"role":     string(mount.variant.Role),
	})
	if r.opts.MountHook != nil {
		r.opts.MountHook(ctx, MountEvent{
			MountID: mount.ID(),
			Reason:  reason,
			Variant: mount.variant.Name,
			Role:    mount.variant.Role,
			Viewer:  mount.viewer,
			At:      time.Now(),
		})
	}
}
