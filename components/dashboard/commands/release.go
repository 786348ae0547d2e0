package commands

import (
	"context"
	"errors"

	gocommand "github.com/goliatone/go-command"
)

// ReleaseSessionInput tears down the dashboard slot of a user, e.g. on sign-out.
type ReleaseSessionInput struct {
	UserID string `json:"user_id"`
}

type sessionReleaser interface {
	Release(ctx context.Context, userID string) error
}

// ReleaseSessionCommand stops the user's refresh controller and drops the session.
type ReleaseSessionCommand struct {
	sessions  sessionReleaser
	telemetry Telemetry
}

// NewReleaseSessionCommand creates the command.
func NewReleaseSessionCommand(sessions sessionReleaser, telemetry Telemetry) *ReleaseSessionCommand {
	return &ReleaseSessionCommand{sessions: sessions, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[ReleaseSessionInput] = (*ReleaseSessionCommand)(nil)

// Execute releases the session.
func (c *ReleaseSessionCommand) Execute(ctx context.Context, msg ReleaseSessionInput) error {
	if c.sessions == nil {
		return errors.New("release command requires session pool")
	}
	if msg.UserID == "" {
		return errors.New("release command requires user id")
	}
	if err := c.sessions.Release(ctx, msg.UserID); err != nil {
		return err
	}
	c.telemetry.Record(ctx, "dashboard.session.release", map[string]any{"user_id": msg.UserID})
	return nil
}
