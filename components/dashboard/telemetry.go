package dashboard

import "context"

// Telemetry counts engine events such as dashboard.refresh.cycle,
// dashboard.section.fault and dashboard.variant.mount.
type Telemetry interface {
	Record(ctx context.Context, event string, payload map[string]any)
}

type noopTelemetry struct{}

func (noopTelemetry) Record(context.Context, string, map[string]any) {}

// normalizeTelemetry lets every component hold a non-nil recorder.
func normalizeTelemetry(t Telemetry) Telemetry {
	if t != nil {
		return t
	}
	return noopTelemetry{}
}
