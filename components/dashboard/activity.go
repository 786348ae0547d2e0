package dashboard

import (
	"context"

	"github.com/goliatone/go-incubator-dashboard/pkg/activity"
	"go.uber.org/zap"
)

// ActivityMountHook emits dashboard.mount / dashboard.unmount activity events
// for every router transition. The actor defaults to the viewer unless one is
// attached with activity.WithActor.
func ActivityMountHook(emitter *activity.Emitter, logger *zap.Logger) MountHook {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, event MountEvent) {
		if !emitter.Enabled() {
			return
		}
		actor := activity.ActorFrom(ctx)
		if actor.ActorID == "" {
			actor.ActorID = event.Viewer.UserID
		}
		err := emitter.Emit(ctx, activity.Event{
			Verb:       "dashboard." + event.Reason,
			ActorID:    actor.ActorID,
			UserID:     event.Viewer.UserID,
			TenantID:   actor.TenantID,
			ObjectType: "dashboard_variant",
			ObjectID:   event.MountID,
			Metadata: map[string]any{
				"variant": event.Variant,
				"role":    string(event.Role),
				"locale":  event.Viewer.Locale,
			},
			OccurredAt: event.At,
		})
		if err != nil {
			logger.Warn("emit dashboard activity failed", zap.String("verb", event.Reason), zap.Error(err))
		}
	}
}

// ActivityFaultObserver emits dashboard.section.fault events when a section
// boundary faults.
func ActivityFaultObserver(emitter *activity.Emitter, logger *zap.Logger) FaultObserver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, fault Fault) {
		if !emitter.Enabled() {
			return
		}
		actor := activity.ActorFrom(ctx)
		err := emitter.Emit(ctx, activity.Event{
			Verb:       "dashboard.section.fault",
			ActorID:    actor.ActorID,
			TenantID:   actor.TenantID,
			ObjectType: "dashboard_section",
			ObjectID:   fault.BoundaryID,
			Metadata: map[string]any{
				"message":  fault.Message,
				"panicked": fault.Panicked,
			},
			OccurredAt: fault.At,
		})
		if err != nil {
			logger.Warn("emit fault activity failed", zap.String("section", fault.BoundaryID), zap.Error(err))
		}
	}
}

// ChainMountHooks calls each hook in order.
func ChainMountHooks(hooks ...MountHook) MountHook {
	return func(ctx context.Context, event MountEvent) {
		for _, hook := range hooks {
			if hook != nil {
				hook(ctx, event)
			}
		}
	}
}
