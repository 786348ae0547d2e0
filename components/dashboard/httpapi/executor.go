package httpapi

import (
	"context"
	"errors"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-incubator-dashboard/components/dashboard/commands"
)

// Executor is the transport-neutral view of the dashboard write operations.
type Executor interface {
	Refresh(ctx context.Context, input commands.RefreshDashboardInput) error
	Retry(ctx context.Context, input commands.RetrySectionInput) error
	Preferences(ctx context.Context, input commands.SavePreferencesInput) error
	Release(ctx context.Context, input commands.ReleaseSessionInput) error
}

var errCommandNotConfigured = errors.New("httpapi: command not configured")

// CommandExecutor adapts go-command commanders to Executor.
type CommandExecutor struct {
	RefreshCmd     gocommand.Commander[commands.RefreshDashboardInput]
	RetryCmd       gocommand.Commander[commands.RetrySectionInput]
	PreferencesCmd gocommand.Commander[commands.SavePreferencesInput]
	ReleaseCmd     gocommand.Commander[commands.ReleaseSessionInput]
}

var _ Executor = CommandExecutor{}

func (e CommandExecutor) Refresh(ctx context.Context, input commands.RefreshDashboardInput) error {
	return execute(ctx, e.RefreshCmd, input)
}

func (e CommandExecutor) Retry(ctx context.Context, input commands.RetrySectionInput) error {
	return execute(ctx, e.RetryCmd, input)
}

func (e CommandExecutor) Preferences(ctx context.Context, input commands.SavePreferencesInput) error {
	return execute(ctx, e.PreferencesCmd, input)
}

func (e CommandExecutor) Release(ctx context.Context, input commands.ReleaseSessionInput) error {
	return execute(ctx, e.ReleaseCmd, input)
}

func execute[T any](ctx context.Context, cmd gocommand.Commander[T], input T) error {
	if cmd == nil {
		return errCommandNotConfigured
	}
	return cmd.Execute(ctx, input)
}
