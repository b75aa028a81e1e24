// Package telemetry turns sensor bundle readings into one flat canonical
// telemetry mapping per collection cycle.
package telemetry

import (
	"time"

	"github.com/Ryan-Atkinson87/trive-aquasense/internal/logger"
	"github.com/Ryan-Atkinson87/trive-aquasense/internal/sensor"
)

// emaKey identifies one smoothed series: a bundle and one of its canonical
// keys.
type emaKey struct {
	bundle string
	key    string
}

// Collector owns the bundle set and the per-bundle state maps. It is driven
// by a single goroutine (the agent loop); Collect must not be called
// concurrently.
type Collector struct {
	bundles  []*sensor.Bundle
	lastRead map[string]time.Time
	ema      map[emaKey]float64

	now func() time.Time
}

// NewCollector creates a collector over the given bundles. Bundle order is
// preserved: it determines processing order and therefore which bundle wins
// on canonical-key collisions.
func NewCollector(bundles []*sensor.Bundle) *Collector {
	return &Collector{
		bundles:  bundles,
		lastRead: make(map[string]time.Time),
		ema:      make(map[emaKey]float64),
		now:      time.Now,
	}
}

// Collect reads every due bundle and returns the merged canonical mapping.
// Per-bundle failures are logged and isolated; the caller always gets a
// mapping, possibly empty, never an error.
func (c *Collector) Collect() map[string]any {
	values := make(map[string]any)

	// One timestamp for the whole cycle so every due-check sees the same
	// instant.
	now := c.now()

	for _, bundle := range c.bundles {
		if !c.isDue(bundle, now) {
			continue
		}

		raw, err := bundle.Driver.Read()
		if err != nil {
			logger.Warn().
				Str("bundle", bundle.ID).
				Err(err).
				Msg("Sensor read failed, skipping bundle this cycle")
			// No timestamp update: a failed read does not consume interval
			// credit, so the bundle is retried next cycle.
			continue
		}

		mapped := c.mapKeys(bundle, raw)
		calibrated := c.applyCalibration(bundle, mapped)
		smoothed := c.applySmoothing(bundle, calibrated)
		ranged := c.applyRanges(bundle, smoothed)

		c.lastRead[bundle.ID] = now

		for key, value := range ranged {
			values[key] = value
		}
	}

	return values
}

// isDue reports whether the bundle should be read this cycle. Bundles
// without an interval are always due; otherwise the interval must have
// elapsed since the last successful read.
func (c *Collector) isDue(bundle *sensor.Bundle, now time.Time) bool {
	if bundle.Interval <= 0 {
		return true
	}

	last, ok := c.lastRead[bundle.ID]
	if !ok {
		return true
	}

	return now.Sub(last) >= time.Duration(bundle.Interval)*time.Second
}

// mapKeys translates raw driver keys into canonical keys. Raw keys without
// a mapping are dropped.
func (c *Collector) mapKeys(bundle *sensor.Bundle, raw map[string]any) map[string]any {
	mapped := make(map[string]any, len(raw))
	for rawKey, value := range raw {
		canonical, ok := bundle.Keys[rawKey]
		if !ok {
			logger.Debug().
				Str("bundle", bundle.ID).
				Str("raw_key", rawKey).
				Msg("Dropping unmapped key")
			continue
		}
		mapped[canonical] = value
	}

	return mapped
}

// applyCalibration replaces numeric values with value*slope + offset where a
// calibration entry exists. Everything else passes through unchanged.
func (c *Collector) applyCalibration(bundle *sensor.Bundle, mapped map[string]any) map[string]any {
	calibrated := make(map[string]any, len(mapped))
	for key, value := range mapped {
		cal, ok := bundle.Calibration[key]
		if !ok {
			calibrated[key] = value
			continue
		}
		v, numeric := toFloat(value)
		if !numeric {
			calibrated[key] = value
			continue
		}
		calibrated[key] = v*cal.Slope + cal.Offset
	}

	return calibrated
}

// applySmoothing applies an exponential moving average for keys with a
// window of at least 2. The first observation seeds the state and is
// emitted as-is; a stored value of zero is a valid prior, not "unset".
func (c *Collector) applySmoothing(bundle *sensor.Bundle, calibrated map[string]any) map[string]any {
	smoothed := make(map[string]any, len(calibrated))
	for key, value := range calibrated {
		window, hasWindow := bundle.Smoothing[key]
		v, numeric := toFloat(value)
		if !hasWindow || window < 2 || !numeric {
			smoothed[key] = value
			continue
		}

		state := emaKey{bundle: bundle.ID, key: key}
		prev, seeded := c.ema[state]
		if !seeded {
			c.ema[state] = v
			smoothed[key] = v
			continue
		}

		alpha := 2.0 / (float64(window) + 1.0)
		next := alpha*v + (1-alpha)*prev
		c.ema[state] = next
		smoothed[key] = next
	}

	return smoothed
}

// applyRanges drops numeric values that fall outside their configured
// inclusive bounds. Dropped values are simply absent, never clamped.
func (c *Collector) applyRanges(bundle *sensor.Bundle, smoothed map[string]any) map[string]any {
	ranged := make(map[string]any, len(smoothed))
	for key, value := range smoothed {
		limits, ok := bundle.Ranges[key]
		if !ok {
			ranged[key] = value
			continue
		}
		v, numeric := toFloat(value)
		if !numeric {
			ranged[key] = value
			continue
		}
		if v < limits.Min || v > limits.Max {
			logger.Debug().
				Str("bundle", bundle.ID).
				Str("key", key).
				Float64("value", v).
				Float64("min", limits.Min).
				Float64("max", limits.Max).
				Msg("Dropping out-of-range value")
			continue
		}
		ranged[key] = value
	}

	return ranged
}

// toFloat reports whether the value is numeric and returns it as float64.
func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	default:
		return 0, false
	}
}
