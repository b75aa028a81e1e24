package display

import (
	"github.com/Ryan-Atkinson87/trive-aquasense/internal/logger"
)

// LoggingDisplay renders snapshots into the structured log. Useful on
// headless installs and as a render path that always works.
type LoggingDisplay struct {
	gate refreshGate
	now  nowFunc
}

func NewLoggingDisplay(cfg map[string]any) *LoggingDisplay {
	return &LoggingDisplay{
		gate: refreshGate{period: refreshPeriodFrom(cfg)},
		now:  defaultNow,
	}
}

func (d *LoggingDisplay) Render(snapshot Snapshot) error {
	if !d.gate.shouldRender(d.now()) {
		return nil
	}

	logger.Info().
		Str("device_name", snapshot.DeviceName).
		Int64("ts", snapshot.TS).
		Interface("values", snapshot.Values).
		Msg("Telemetry snapshot")

	return nil
}

func (d *LoggingDisplay) RenderStartup(message string) error {
	logger.Info().Str("status", message).Msg("Display status")
	return nil
}

func (d *LoggingDisplay) Close() error { return nil }
