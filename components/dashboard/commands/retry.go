package commands

import (
	"context"
	"errors"

	gocommand "github.com/goliatone/go-command"
	dashboard "github.com/goliatone/go-incubator-dashboard/components/dashboard"
)

// RetrySectionInput asks a faulted section to mount again.
type RetrySectionInput struct {
	User       dashboard.User        `json:"user"`
	SectionID  string                `json:"section_id"`
	Breakpoint *dashboard.Breakpoint `json:"breakpoint,omitempty"`
}

type retrier interface {
	RetrySection(ctx context.Context, user *dashboard.User, sectionID string, req dashboard.PageRequest) (dashboard.RenderedSection, error)
}

// RetrySectionCommand resets a section boundary and renders it again.
type RetrySectionCommand struct {
	service   retrier
	telemetry Telemetry
}

// NewRetrySectionCommand creates the command.
func NewRetrySectionCommand(service retrier, telemetry Telemetry) *RetrySectionCommand {
	return &RetrySectionCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[RetrySectionInput] = (*RetrySectionCommand)(nil)

// Execute retries the section. A section that faults again is not an error;
// its fallback is served on the next render.
func (c *RetrySectionCommand) Execute(ctx context.Context, msg RetrySectionInput) error {
	if c.service == nil {
		return errors.New("retry command requires service")
	}
	if msg.SectionID == "" {
		return errors.New("retry command requires section id")
	}
	section, err := c.service.RetrySection(ctx, &msg.User, msg.SectionID, dashboard.PageRequest{Breakpoint: msg.Breakpoint})
	if err != nil {
		return err
	}
	c.telemetry.Record(ctx, "dashboard.section.retry", map[string]any{
		"user_id":    msg.User.ID,
		"section_id": msg.SectionID,
		"faulted":    section.Faulted,
	})
	return nil
}
