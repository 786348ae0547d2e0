package dashboard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRefreshHook struct {
	mu     sync.Mutex
	events []SnapshotEvent
}

func (h *recordingRefreshHook) SnapshotPublished(_ context.Context, event SnapshotEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	return nil
}

func (h *recordingRefreshHook) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

func (h *recordingRefreshHook) Last() SnapshotEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.events[len(h.events)-1]
}

func waitCycles(t *testing.T, c *RefreshController, n int) RefreshState {
	t.Helper()
	require.Eventually(t, func() bool {
		return c.Snapshot().Cycles >= n
	}, 2*time.Second, 5*time.Millisecond)
	return c.Snapshot()
}

func TestRefreshKeepsLastGoodValueOnFailure(t *testing.T) {
	var failB atomic.Bool
	fetchers := map[string]Fetcher{
		"a": func(context.Context) (any, error) { return 1, nil },
		"b": func(context.Context) (any, error) {
			if failB.Load() {
				return nil, errors.New("upstream down")
			}
			return 2, nil
		},
		"c": func(context.Context) (any, error) { return 3, nil },
	}
	hook := &recordingRefreshHook{}
	c := NewRefreshController(RefreshOptions{MountID: "m-1", UserID: "u-1", Variant: "Admin", Hook: hook})
	require.NoError(t, c.Start(context.Background(), fetchers, 0))
	defer c.Stop()

	first := waitCycles(t, c, 1)
	assert.Equal(t, map[string]any{"a": 1, "b": 2, "c": 3}, first.Resources)
	assert.Empty(t, first.Error)
	assert.False(t, first.LastUpdated.IsZero())

	failB.Store(true)
	c.RefreshNow()
	second := waitCycles(t, c, 2)
	assert.Equal(t, 2, second.Resources["b"], "failed resource keeps its previous value")
	assert.Equal(t, 1, second.Resources["a"])
	assert.Contains(t, second.Error, "upstream down")
	assert.Equal(t, "upstream down", second.Errors["b"])
	assert.Equal(t, first.LastUpdated, second.LastUpdated, "partial failure does not bump last updated")
	assert.False(t, second.Loading)

	last := hook.Last()
	assert.Equal(t, "m-1", last.MountID)
	assert.Equal(t, "u-1", last.UserID)
	assert.Equal(t, "Admin", last.Variant)

	failB.Store(false)
	c.RefreshNow()
	third := waitCycles(t, c, 3)
	assert.Empty(t, third.Error, "a clean cycle clears the error")
	assert.Empty(t, third.Errors)
}

func TestRefreshNonPositiveIntervalFetchesOnce(t *testing.T) {
	var calls atomic.Int32
	c := NewRefreshController(RefreshOptions{})
	require.NoError(t, c.Start(context.Background(), map[string]Fetcher{
		"startups": func(context.Context) (any, error) {
			calls.Add(1)
			return []string{"acme"}, nil
		},
	}, -time.Second))
	defer c.Stop()

	waitCycles(t, c, 1)
	time.Sleep(40 * time.Millisecond)
	assert.EqualValues(t, 1, calls.Load())

	c.RefreshNow()
	waitCycles(t, c, 2)
	assert.EqualValues(t, 2, calls.Load(), "refresh now still works without a schedule")
}

func TestRefreshPollsOnInterval(t *testing.T) {
	var calls atomic.Int32
	c := NewRefreshController(RefreshOptions{})
	require.NoError(t, c.Start(context.Background(), map[string]Fetcher{
		"events": func(context.Context) (any, error) {
			calls.Add(1)
			return nil, nil
		},
	}, 10*time.Millisecond))
	defer c.Stop()
	waitCycles(t, c, 3)
	assert.GreaterOrEqual(t, calls.Load(), int32(3))
}

func TestRefreshNoUpdatesAfterStop(t *testing.T) {
	var calls atomic.Int32
	hook := &recordingRefreshHook{}
	c := NewRefreshController(RefreshOptions{Hook: hook})
	require.NoError(t, c.Start(context.Background(), map[string]Fetcher{
		"events": func(context.Context) (any, error) {
			calls.Add(1)
			return nil, nil
		},
	}, 5*time.Millisecond))
	waitCycles(t, c, 2)
	c.Stop()
	assert.False(t, c.Running())

	// fetch goroutines of a cancelled cycle may still be winding down
	time.Sleep(10 * time.Millisecond)
	stoppedCalls := calls.Load()
	stoppedEvents := hook.Len()
	cycles := c.Snapshot().Cycles
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, stoppedCalls, calls.Load())
	assert.Equal(t, stoppedEvents, hook.Len())
	assert.Equal(t, cycles, c.Snapshot().Cycles)

	c.RefreshNow()
	c.Stop()
	assert.Equal(t, cycles, c.Snapshot().Cycles, "refresh now and stop are no-ops when idle")
}

func TestRefreshStopDiscardsInFlightFetch(t *testing.T) {
	started := make(chan struct{})
	c := NewRefreshController(RefreshOptions{})
	require.NoError(t, c.Start(context.Background(), map[string]Fetcher{
		"slow": func(ctx context.Context) (any, error) {
			close(started)
			<-ctx.Done()
			return "late", nil
		},
	}, 0))
	<-started
	c.Stop()

	state := c.Snapshot()
	assert.Zero(t, state.Cycles)
	assert.NotContains(t, state.Resources, "slow")
	assert.False(t, state.Loading)
}

func TestRefreshLoadingFlag(t *testing.T) {
	release := make(chan struct{})
	c := NewRefreshController(RefreshOptions{})
	require.NoError(t, c.Start(context.Background(), map[string]Fetcher{
		"mentors": func(context.Context) (any, error) {
			<-release
			return 4, nil
		},
	}, 0))
	defer c.Stop()

	assert.True(t, c.Snapshot().Loading)
	close(release)
	state := waitCycles(t, c, 1)
	assert.False(t, state.Loading)
	assert.Equal(t, 4, state.Resources["mentors"])
}

func TestRefreshRecoversPanickingFetcher(t *testing.T) {
	c := NewRefreshController(RefreshOptions{})
	require.NoError(t, c.Start(context.Background(), map[string]Fetcher{
		"ok":    func(context.Context) (any, error) { return "fine", nil },
		"panic": func(context.Context) (any, error) { panic("boom") },
	}, 0))
	defer c.Stop()

	state := waitCycles(t, c, 1)
	assert.Equal(t, "fine", state.Resources["ok"])
	assert.Contains(t, state.Errors["panic"], "boom")
}

func TestRefreshStartTwiceFails(t *testing.T) {
	c := NewRefreshController(RefreshOptions{})
	require.NoError(t, c.Start(context.Background(), nil, 0))
	defer c.Stop()
	assert.ErrorIs(t, c.Start(context.Background(), nil, 0), errControllerRunning)
}

func TestRefreshRestartAfterStop(t *testing.T) {
	c := NewRefreshController(RefreshOptions{})
	fetchers := map[string]Fetcher{"a": func(context.Context) (any, error) { return 1, nil }}
	require.NoError(t, c.Start(context.Background(), fetchers, 0))
	waitCycles(t, c, 1)
	c.Stop()
	require.NoError(t, c.Start(context.Background(), fetchers, 0))
	defer c.Stop()
	waitCycles(t, c, 2)
}

func TestRefreshStale(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	c := NewRefreshController(RefreshOptions{Now: clock})
	assert.True(t, c.Stale(), "never refreshed")

	require.NoError(t, c.Start(context.Background(), map[string]Fetcher{
		"a": func(context.Context) (any, error) { return 1, nil },
	}, time.Hour))
	defer c.Stop()
	state := waitCycles(t, c, 1)
	assert.Equal(t, now, state.LastUpdated)
	assert.False(t, c.Stale())
	assert.True(t, state.IsStale(now.Add(3*time.Hour), 2*time.Hour))
}

func TestRefreshStateSubset(t *testing.T) {
	state := RefreshState{
		Resources: map[string]any{"a": 1, "b": 2},
		Errors:    map[string]string{"c": "down"},
	}
	data, errs := state.Subset([]string{"a", "c"})
	assert.Equal(t, map[string]any{"a": 1}, data)
	assert.Equal(t, map[string]string{"c": "down"}, errs)

	_, none := state.Subset([]string{"b"})
	assert.Nil(t, none)
}

func TestRefreshParentCancelSettlesState(t *testing.T) {
	hook := &recordingRefreshHook{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var calls atomic.Int32
	c := NewRefreshController(RefreshOptions{Hook: hook})
	require.NoError(t, c.Start(ctx, map[string]Fetcher{
		"funding": func(ctx context.Context) (any, error) {
			if calls.Add(1) == 1 {
				return 8450, nil
			}
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}, 0))
	waitCycles(t, c, 1)

	c.RefreshNow()
	require.Eventually(t, func() bool { return c.Snapshot().Loading }, time.Second, 5*time.Millisecond)
	cancel()

	require.Eventually(t, func() bool {
		return !c.Running() && !hook.Last().State.Loading
	}, time.Second, 5*time.Millisecond)
	state := c.Snapshot()
	assert.False(t, state.Loading)
	assert.Equal(t, 8450, state.Resources["funding"])
	c.Stop()
}
