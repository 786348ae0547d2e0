package dashboard

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"
)

// BoundaryState is the health of an error boundary.
type BoundaryState string

const (
	BoundaryHealthy BoundaryState = "healthy"
	BoundaryFaulted BoundaryState = "faulted"
)

// Fault describes a captured render failure.
type Fault struct {
	BoundaryID string    `json:"boundary_id"`
	Err        error     `json:"-"`
	Message    string    `json:"message"`
	Panicked   bool      `json:"panicked"`
	Stack      string    `json:"-"`
	At         time.Time `json:"at"`
}

// RenderFunc is the subtree guarded by a boundary.
type RenderFunc func(ctx context.Context, out io.Writer) error

// FallbackFunc renders in place of a faulted subtree.
type FallbackFunc func(ctx context.Context, fault Fault, out io.Writer) error

// FaultObserver is notified every time a boundary enters the faulted state.
type FaultObserver func(ctx context.Context, fault Fault)

// BoundaryOptions configures a Boundary.
type BoundaryOptions struct {
	ID        string
	Render    RenderFunc
	Fallback  FallbackFunc
	Observer  FaultObserver
	Telemetry Telemetry
	Logger    *zap.Logger
}

// Boundary isolates failures of one subtree. Output of a failed render is
// discarded and replaced by the fallback; the rest of the page is untouched.
type Boundary struct {
	opts BoundaryOptions

	mu    sync.Mutex
	state BoundaryState
	fault *Fault
}

// NewBoundary builds a healthy boundary.
func NewBoundary(opts BoundaryOptions) *Boundary {
	if opts.Fallback == nil {
		opts.Fallback = DefaultFallback
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	opts.Telemetry = normalizeTelemetry(opts.Telemetry)
	return &Boundary{opts: opts, state: BoundaryHealthy}
}

// Render writes the subtree, or the fallback when the subtree fails or the
// boundary is already faulted. It only returns errors from writing to out or
// from the fallback itself.
func (b *Boundary) Render(ctx context.Context, out io.Writer) error {
	b.mu.Lock()
	if b.state == BoundaryFaulted {
		fault := *b.fault
		b.mu.Unlock()
		return b.opts.Fallback(ctx, fault, out)
	}
	b.mu.Unlock()

	var buf bytes.Buffer
	fault := b.attempt(ctx, &buf)
	if fault == nil {
		_, err := out.Write(buf.Bytes())
		return err
	}

	b.mu.Lock()
	b.state = BoundaryFaulted
	b.fault = fault
	b.mu.Unlock()

	b.opts.Logger.Warn("section render faulted",
		zap.String("boundary", b.opts.ID),
		zap.Bool("panicked", fault.Panicked),
		zap.Error(fault.Err),
	)
	b.opts.Telemetry.Record(ctx, "dashboard.section.fault", map[string]any{
		"boundary": b.opts.ID,
		"panicked": fault.Panicked,
	})
	if b.opts.Observer != nil {
		b.opts.Observer(ctx, *fault)
	}
	return b.opts.Fallback(ctx, *fault, out)
}

// Retry returns the boundary to healthy and renders the subtree again. If the
// same failure recurs the boundary faults again; no retry limit is applied.
func (b *Boundary) Retry(ctx context.Context, out io.Writer) error {
	b.Reset()
	return b.Render(ctx, out)
}

// Reset clears a captured fault without rendering.
func (b *Boundary) Reset() {
	b.mu.Lock()
	b.state = BoundaryHealthy
	b.fault = nil
	b.mu.Unlock()
}

// State returns the current boundary state.
func (b *Boundary) State() BoundaryState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Fault returns the captured fault while faulted.
func (b *Boundary) Fault() (Fault, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fault == nil {
		return Fault{}, false
	}
	return *b.fault, true
}

func (b *Boundary) attempt(ctx context.Context, out io.Writer) (fault *Fault) {
	defer func() {
		if r := recover(); r != nil {
			err, ok := r.(error)
			if !ok {
				err = fmt.Errorf("%v", r)
			}
			fault = &Fault{
				BoundaryID: b.opts.ID,
				Err:        err,
				Message:    err.Error(),
				Panicked:   true,
				Stack:      string(debug.Stack()),
				At:         time.Now(),
			}
		}
	}()
	if b.opts.Render == nil {
		return nil
	}
	if err := b.opts.Render(ctx, out); err != nil {
		return &Fault{BoundaryID: b.opts.ID, Err: err, Message: err.Error(), At: time.Now()}
	}
	return nil
}

// DefaultFallback renders a short notice with a retry affordance.
func DefaultFallback(_ context.Context, fault Fault, out io.Writer) error {
	id := html.EscapeString(fault.BoundaryID)
	_, err := fmt.Fprintf(out,
		`<div class="dashboard-fault" role="alert" data-boundary="%s"><p>This section failed to load.</p><button type="button" data-action="retry" data-boundary="%s">Retry</button></div>`,
		id, id,
	)
	return err
}
