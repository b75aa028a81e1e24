// Package display renders finished telemetry snapshots to output devices.
// Displays consume, they never collect: timing and data ownership stay with
// the agent.
package display

import (
	"time"

	"github.com/Ryan-Atkinson87/trive-aquasense/internal/errors"
)

const (
	ErrInit   = errors.ErrorCode("display_init_failed")
	ErrRender = errors.ErrorCode("display_render_failed")
	ErrClose  = errors.ErrorCode("display_close_failed")
)

// Snapshot is one finished collection cycle handed to the rendering layer.
type Snapshot struct {
	TS         int64
	DeviceName string
	Values     map[string]any
}

// Display is the contract every output device implements. Render failures
// must never propagate into the collection cycle; the Manager enforces that.
type Display interface {
	Render(snapshot Snapshot) error
	RenderStartup(message string) error
	Close() error
}

// Status projects the canonical aquarium keys out of a snapshot for
// fixed-layout hardware displays. Missing keys stay nil.
type Status struct {
	DeviceName       string
	WaterTemperature *float64
	AirTemperature   *float64
	AirHumidity      *float64
	WaterFlow        *float64
	Timestamp        time.Time
}

// StatusFromSnapshot extracts the known canonical keys from a snapshot.
func StatusFromSnapshot(snapshot Snapshot) Status {
	s := Status{
		DeviceName: snapshot.DeviceName,
		Timestamp:  time.UnixMilli(snapshot.TS),
	}

	s.WaterTemperature = numericValue(snapshot.Values, "water_temperature")
	s.AirTemperature = numericValue(snapshot.Values, "air_temperature")
	s.AirHumidity = numericValue(snapshot.Values, "air_humidity")
	s.WaterFlow = numericValue(snapshot.Values, "water_flow")

	return s
}

func numericValue(values map[string]any, key string) *float64 {
	v, ok := values[key]
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case float64:
		return &t
	case float32:
		f := float64(t)
		return &f
	case int:
		f := float64(t)
		return &f
	case int64:
		f := float64(t)
		return &f
	default:
		return nil
	}
}

// refreshGate rate-limits hardware redraws. A period of zero renders every
// snapshot.
type refreshGate struct {
	period     time.Duration
	lastRender time.Time
}

func (g *refreshGate) shouldRender(now time.Time) bool {
	if g.period <= 0 {
		return true
	}
	if now.Sub(g.lastRender) >= g.period {
		g.lastRender = now
		return true
	}
	return false
}
