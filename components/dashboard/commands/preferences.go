package commands

import (
	"context"
	"errors"

	gocommand "github.com/goliatone/go-command"
	dashboard "github.com/goliatone/go-incubator-dashboard/components/dashboard"
)

// SavePreferencesInput captures viewer overrides for the planner.
type SavePreferencesInput struct {
	User           dashboard.User        `json:"user"`
	HiddenSections []string              `json:"hidden_sections"`
	MinPriority    dashboard.Priority    `json:"min_priority,omitempty"`
	Breakpoint     *dashboard.Breakpoint `json:"breakpoint,omitempty"`
}

type preferenceService interface {
	SavePreferences(ctx context.Context, user *dashboard.User, prefs dashboard.Preferences) error
}

// SavePreferencesCommand persists per-user, per-role plan preferences.
type SavePreferencesCommand struct {
	service   preferenceService
	telemetry Telemetry
}

// NewSavePreferencesCommand creates the command.
func NewSavePreferencesCommand(service preferenceService, telemetry Telemetry) *SavePreferencesCommand {
	return &SavePreferencesCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[SavePreferencesInput] = (*SavePreferencesCommand)(nil)

// Execute stores the provided preferences for the user.
func (c *SavePreferencesCommand) Execute(ctx context.Context, msg SavePreferencesInput) error {
	if c.service == nil {
		return errors.New("preferences command requires service")
	}
	if msg.User.ID == "" {
		return errors.New("preferences command requires user id")
	}
	prefs := dashboard.Preferences{
		HiddenSections: msg.HiddenSections,
		MinPriority:    msg.MinPriority,
		Breakpoint:     msg.Breakpoint,
	}
	if err := c.service.SavePreferences(ctx, &msg.User, prefs); err != nil {
		return err
	}
	c.telemetry.Record(ctx, "dashboard.preferences.save", map[string]any{
		"user_id":    msg.User.ID,
		"role":       string(msg.User.Role),
		"hidden_cnt": len(msg.HiddenSections),
	})
	return nil
}
