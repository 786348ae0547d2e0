package dashboard

import "context"

// NotificationsClient defines the minimal interface needed from go-notifications (or similar).
type NotificationsClient interface {
	PublishDashboardEvent(ctx context.Context, channel string, event SnapshotEvent) error
}

// NotificationsHook forwards refresh snapshots that carry fetch errors to an
// external notifications client. Healthy snapshots are not forwarded.
type NotificationsHook struct {
	Client  NotificationsClient
	Channel string
}

// SnapshotPublished publishes failing snapshots to the configured client.
func (h *NotificationsHook) SnapshotPublished(ctx context.Context, event SnapshotEvent) error {
	if h == nil || h.Client == nil || event.State.Error == "" || event.State.Loading {
		return nil
	}
	channel := h.Channel
	if channel == "" {
		channel = "dashboard"
	}
	return h.Client.PublishDashboardEvent(ctx, channel, event)
}
