package commands

import (
	"context"
	"errors"

	gocommand "github.com/goliatone/go-command"
	dashboard "github.com/goliatone/go-incubator-dashboard/components/dashboard"
)

// RefreshDashboardInput requests an immediate refresh cycle for a user's dashboard.
type RefreshDashboardInput struct {
	User dashboard.User `json:"user"`
}

type refresher interface {
	Refresh(ctx context.Context, user *dashboard.User) error
}

// RefreshDashboardCommand triggers refreshNow on the mounted variant without
// touching its polling schedule.
type RefreshDashboardCommand struct {
	service   refresher
	telemetry Telemetry
}

// NewRefreshDashboardCommand creates the command.
func NewRefreshDashboardCommand(service refresher, telemetry Telemetry) *RefreshDashboardCommand {
	return &RefreshDashboardCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[RefreshDashboardInput] = (*RefreshDashboardCommand)(nil)

// Execute queues the refresh.
func (c *RefreshDashboardCommand) Execute(ctx context.Context, msg RefreshDashboardInput) error {
	if c.service == nil {
		return errors.New("refresh command requires service")
	}
	if msg.User.ID == "" {
		return errors.New("refresh command requires user id")
	}
	if err := c.service.Refresh(ctx, &msg.User); err != nil {
		return err
	}
	c.telemetry.Record(ctx, "dashboard.refresh.command", map[string]any{
		"user_id": msg.User.ID,
		"role":    string(msg.User.Role),
	})
	return nil
}
