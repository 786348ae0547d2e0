package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var errControllerRunning = errors.New("dashboard: refresh controller already started; call Stop first")

// Fetcher loads one named resource. The payload is opaque to the controller.
type Fetcher func(ctx context.Context) (any, error)

// RefreshState is a published snapshot of a controller's data bundle.
type RefreshState struct {
	Resources   map[string]any    `json:"resources"`
	Loading     bool              `json:"loading"`
	Error       string            `json:"error,omitempty"`
	Errors      map[string]string `json:"errors,omitempty"`
	LastUpdated time.Time         `json:"last_updated"`
	Cycles      int               `json:"cycles"`
}

// IsStale reports whether the last fully successful fetch is older than maxAge.
// A state that never completed a successful cycle is always stale.
func (s RefreshState) IsStale(now time.Time, maxAge time.Duration) bool {
	if s.LastUpdated.IsZero() {
		return true
	}
	return now.Sub(s.LastUpdated) > maxAge
}

// Subset returns the resource values and errors for the given names.
func (s RefreshState) Subset(names []string) (map[string]any, map[string]string) {
	data := make(map[string]any, len(names))
	var errs map[string]string
	for _, name := range names {
		if v, ok := s.Resources[name]; ok {
			data[name] = v
		}
		if msg, ok := s.Errors[name]; ok {
			if errs == nil {
				errs = map[string]string{}
			}
			errs[name] = msg
		}
	}
	return data, errs
}

func (s RefreshState) clone() RefreshState {
	out := s
	out.Resources = make(map[string]any, len(s.Resources))
	for k, v := range s.Resources {
		out.Resources[k] = v
	}
	if s.Errors != nil {
		out.Errors = make(map[string]string, len(s.Errors))
		for k, v := range s.Errors {
			out.Errors[k] = v
		}
	}
	return out
}

// RefreshOptions configures a RefreshController.
type RefreshOptions struct {
	MountID   string
	UserID    string
	Variant   string
	Hook      RefreshHook
	Telemetry Telemetry
	Logger    *zap.Logger
	Now       func() time.Time
}

// RefreshController owns the polling loop of one mounted dashboard. Every
// Start must be paired with a Stop.
type RefreshController struct {
	opts      RefreshOptions
	hook      RefreshHook
	telemetry Telemetry
	logger    *zap.Logger

	mu       sync.RWMutex
	state    RefreshState
	gen      uint64
	running  bool
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
	trigger  chan struct{}
}

// NewRefreshController builds an idle controller.
func NewRefreshController(opts RefreshOptions) *RefreshController {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &RefreshController{
		opts:      opts,
		hook:      normalizeRefreshHook(opts.Hook),
		telemetry: normalizeTelemetry(opts.Telemetry),
		logger:    opts.Logger.With(zap.String("mount_id", opts.MountID), zap.String("variant", opts.Variant)),
		state:     RefreshState{Resources: map[string]any{}},
	}
}

// Start fetches every resource once and, when interval > 0, keeps polling on
// that interval until Stop is called or ctx is cancelled.
func (c *RefreshController) Start(ctx context.Context, fetchers map[string]Fetcher, interval time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return errControllerRunning
	}
	bundle := make(map[string]Fetcher, len(fetchers))
	for name, fetch := range fetchers {
		if fetch != nil {
			bundle[name] = fetch
		}
	}
	loopCtx, cancel := context.WithCancel(ctx)
	c.gen++
	c.running = true
	c.interval = interval
	c.cancel = cancel
	c.done = make(chan struct{})
	c.trigger = make(chan struct{}, 1)
	c.state.Loading = true
	go c.loop(loopCtx, c.gen, bundle, interval, c.trigger, c.done)
	c.logger.Debug("refresh controller started",
		zap.Int("resources", len(bundle)),
		zap.Duration("interval", interval),
	)
	return nil
}

// Stop cancels the schedule and any in-flight fetches, then waits for the
// loop to exit. Calling Stop on an idle controller is a no-op.
func (c *RefreshController) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.gen++
	c.state.Loading = false
	cancel, done := c.cancel, c.done
	c.cancel, c.done, c.trigger = nil, nil, nil
	c.mu.Unlock()

	cancel()
	<-done
	c.logger.Debug("refresh controller stopped")
}

// RefreshNow queues one out-of-band cycle without touching the schedule.
// Requests made while one is already pending are coalesced.
func (c *RefreshController) RefreshNow() {
	c.mu.RLock()
	trigger, running := c.trigger, c.running
	c.mu.RUnlock()
	if !running {
		return
	}
	select {
	case trigger <- struct{}{}:
	default:
	}
}

// Snapshot returns a copy of the current state.
func (c *RefreshController) Snapshot() RefreshState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.clone()
}

// Running reports whether a Start is active.
func (c *RefreshController) Running() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

// Stale reports whether data is older than two polling intervals. Single-shot
// controllers are only stale until their first successful cycle.
func (c *RefreshController) Stale() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.interval <= 0 {
		return c.state.LastUpdated.IsZero()
	}
	return c.state.IsStale(c.opts.Now(), 2*c.interval)
}

func (c *RefreshController) loop(ctx context.Context, gen uint64, fetchers map[string]Fetcher, interval time.Duration, trigger <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	c.cycle(ctx, gen, fetchers)

	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			c.abandon(ctx, gen)
			return
		case <-tick:
			c.cycle(ctx, gen, fetchers)
		case <-trigger:
			c.cycle(ctx, gen, fetchers)
		}
	}
}

// abandon settles the state when the parent context ends the loop without a
// Stop: the controller reports idle and a later Stop is a no-op.
func (c *RefreshController) abandon(ctx context.Context, gen uint64) {
	c.mu.Lock()
	if gen != c.gen || !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.gen++
	c.state.Loading = false
	cancel := c.cancel
	c.cancel, c.done, c.trigger = nil, nil, nil
	snapshot := c.state.clone()
	c.mu.Unlock()

	cancel()
	c.publish(context.WithoutCancel(ctx), snapshot)
	c.logger.Debug("refresh controller abandoned by parent context")
}

type fetchResult struct {
	name  string
	value any
	err   error
}

func (c *RefreshController) cycle(ctx context.Context, gen uint64, fetchers map[string]Fetcher) {
	if ctx.Err() != nil {
		return
	}
	if !c.markLoading(ctx, gen) {
		return
	}
	results := make(chan fetchResult, len(fetchers))
	var g errgroup.Group
	for name, fetch := range fetchers {
		g.Go(func() error {
			value, err := invokeFetcher(ctx, fetch)
			results <- fetchResult{name: name, value: value, err: err}
			return nil
		})
	}
	settled := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(settled)
	}()
	select {
	case <-settled:
	case <-ctx.Done():
		return
	}
	close(results)
	collected := make([]fetchResult, 0, len(fetchers))
	for r := range results {
		collected = append(collected, r)
	}
	sort.Slice(collected, func(i, j int) bool { return collected[i].name < collected[j].name })
	c.apply(ctx, gen, collected)
}

func (c *RefreshController) markLoading(ctx context.Context, gen uint64) bool {
	c.mu.Lock()
	if gen != c.gen || !c.running {
		c.mu.Unlock()
		return false
	}
	wasLoading := c.state.Loading
	c.state.Loading = true
	snapshot := c.state.clone()
	c.mu.Unlock()
	if !wasLoading {
		c.publish(ctx, snapshot)
	}
	return true
}

func (c *RefreshController) apply(ctx context.Context, gen uint64, results []fetchResult) {
	var merr *multierror.Error
	c.mu.Lock()
	if gen != c.gen || !c.running {
		c.mu.Unlock()
		return
	}
	resources := make(map[string]any, len(c.state.Resources)+len(results))
	for k, v := range c.state.Resources {
		resources[k] = v
	}
	var errs map[string]string
	for _, r := range results {
		if r.err != nil {
			merr = multierror.Append(merr, fmt.Errorf("%s: %w", r.name, r.err))
			if errs == nil {
				errs = map[string]string{}
			}
			errs[r.name] = r.err.Error()
			continue
		}
		resources[r.name] = r.value
	}
	c.state.Resources = resources
	c.state.Errors = errs
	c.state.Loading = false
	c.state.Cycles++
	if merr != nil {
		merr.ErrorFormat = joinErrors
		c.state.Error = merr.Error()
	} else {
		c.state.Error = ""
		c.state.LastUpdated = c.opts.Now()
	}
	snapshot := c.state.clone()
	c.mu.Unlock()

	if merr != nil {
		c.logger.Warn("refresh cycle failed",
			zap.Int("failed", len(errs)),
			zap.Int("resources", len(results)),
			zap.Error(merr),
		)
	}
	c.telemetry.Record(ctx, "dashboard.refresh.cycle", map[string]any{
		"mount_id": c.opts.MountID,
		"variant":  c.opts.Variant,
		"failed":   len(errs),
		"cycle":    snapshot.Cycles,
	})
	c.publish(ctx, snapshot)
}

func (c *RefreshController) publish(ctx context.Context, state RefreshState) {
	event := SnapshotEvent{
		MountID: c.opts.MountID,
		UserID:  c.opts.UserID,
		Variant: c.opts.Variant,
		State:   state,
	}
	if err := c.hook.SnapshotPublished(ctx, event); err != nil {
		c.logger.Warn("refresh hook failed", zap.Error(err))
	}
}

func invokeFetcher(ctx context.Context, fetch Fetcher) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fetcher panicked: %v", r)
		}
	}()
	return fetch(ctx)
}

func joinErrors(errs []error) string {
	parts := make([]string, len(errs))
	for i, err := range errs {
		parts[i] = err.Error()
	}
	return strings.Join(parts, "; ")
}
