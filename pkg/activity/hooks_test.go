package activity

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestHooksDeliverTrimmedMountEvents(t *testing.T) {
	var seen []Event
	hooks := Hooks{
		nil,
		HookFunc(func(_ context.Context, evt Event) error {
			seen = append(seen, evt)
			return nil
		}),
	}

	if err := hooks.Notify(context.Background(), Event{ObjectType: "dashboard_variant"}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(seen) != 0 {
		t.Fatalf("events without a verb must be dropped, got %d", len(seen))
	}

	err := hooks.Notify(context.Background(), Event{
		Verb:       " dashboard.mount ",
		ObjectType: " dashboard_variant ",
		ObjectID:   " mount-1 ",
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(seen) != 1 {
		t.Fatalf("expected one delivery, got %d", len(seen))
	}
	if seen[0].Verb != "dashboard.mount" || seen[0].ObjectID != "mount-1" {
		t.Fatalf("expected trimmed event, got %+v", seen[0])
	}
}

func TestHooksCollectEveryFailure(t *testing.T) {
	first := errors.New("audit log offline")
	second := errors.New("webhook timeout")
	capture := &CaptureHook{}
	hooks := Hooks{
		HookFunc(func(context.Context, Event) error { return first }),
		capture,
		HookFunc(func(context.Context, Event) error { return second }),
	}

	err := hooks.Notify(context.Background(), Event{Verb: "dashboard.section.fault", ObjectType: "dashboard_section", ObjectID: "funding"})
	if !errors.Is(err, first) || !errors.Is(err, second) {
		t.Fatalf("expected both failures, got %v", err)
	}
	if got := capture.Snapshot(); len(got) != 1 || got[0].ObjectID != "funding" {
		t.Fatalf("hooks after a failure should still run, got %+v", got)
	}
}

func TestNormalizeEventDetachesFaultMetadata(t *testing.T) {
	meta := map[string]any{"message": "template missing"}
	recipients := []string{"ops@incubator.test"}

	n := NormalizeEvent(Event{
		Verb:       "dashboard.section.fault",
		ObjectType: "dashboard_section",
		ObjectID:   "mentor-load",
		Metadata:   meta,
		Recipients: recipients,
	})

	n.Metadata["message"] = "changed"
	n.Recipients[0] = "someone@else.test"
	if meta["message"] != "template missing" || recipients[0] != "ops@incubator.test" {
		t.Fatalf("normalized event must not share state with the caller")
	}
	if n.OccurredAt.IsZero() || time.Since(n.OccurredAt) > time.Minute {
		t.Fatalf("expected occurred_at to default to now, got %v", n.OccurredAt)
	}

	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	if got := NormalizeEvent(Event{Verb: "dashboard.unmount", OccurredAt: at}).OccurredAt; !got.Equal(at) {
		t.Fatalf("expected occurred_at preserved, got %v", got)
	}
}
