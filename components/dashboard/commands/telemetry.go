package commands

import "context"

// Telemetry receives one event per executed dashboard command, for example
// dashboard.refresh.command or dashboard.session.release.
type Telemetry interface {
	Record(ctx context.Context, event string, payload map[string]any)
}

type noopTelemetry struct{}

func (noopTelemetry) Record(context.Context, string, map[string]any) {}

func normalizeTelemetry(t Telemetry) Telemetry {
	if t != nil {
		return t
	}
	return noopTelemetry{}
}
