// Package agent drives the fixed-period monitoring loop: collect telemetry,
// forward it to the transport, render it, send device attributes, sleep the
// remainder of the period.
package agent

import (
	"context"
	"time"

	"github.com/Ryan-Atkinson87/trive-aquasense/internal/display"
	"github.com/Ryan-Atkinson87/trive-aquasense/internal/errors"
	"github.com/Ryan-Atkinson87/trive-aquasense/internal/logger"
)

// TelemetrySource produces one flat canonical telemetry mapping per call.
type TelemetrySource interface {
	Collect() map[string]any
}

// AttributeSource produces the device attribute mapping.
type AttributeSource interface {
	DeviceName() string
	Collect() map[string]any
}

// Publisher is the outbound transport boundary.
type Publisher interface {
	SendTelemetry(values map[string]any) error
	SendAttributes(attributes map[string]any) error
}

// Renderer consumes finished snapshots. Rendering failures never reach the
// agent; the display manager swallows them.
type Renderer interface {
	Render(snapshot display.Snapshot)
}

// Agent runs the blocking monitoring loop. One instance, one goroutine;
// cycles never overlap.
type Agent struct {
	telemetry  TelemetrySource
	attributes AttributeSource
	publisher  Publisher
	renderer   Renderer
	pollPeriod time.Duration

	now func() time.Time
}

func New(
	telemetry TelemetrySource,
	attrs AttributeSource,
	publisher Publisher,
	renderer Renderer,
	pollPeriod time.Duration,
) *Agent {
	return &Agent{
		telemetry:  telemetry,
		attributes: attrs,
		publisher:  publisher,
		renderer:   renderer,
		pollPeriod: pollPeriod,
		now:        time.Now,
	}
}

// Run blocks until the context is cancelled. Each iteration runs one cycle
// and then sleeps whatever remains of the poll period, never a negative
// duration.
func (a *Agent) Run(ctx context.Context) error {
	if a.pollPeriod <= 0 {
		return errors.New().WithMessage(errors.ErrInvalidInterval, "poll period must be positive")
	}

	logger.Info().Dur("poll_period", a.pollPeriod).Msg("Monitoring agent started")

	for {
		start := a.now()
		a.RunCycle()

		remainder := a.pollPeriod - a.now().Sub(start)
		if remainder < 0 {
			remainder = 0
		}

		select {
		case <-ctx.Done():
			logger.Info().Msg("Monitoring agent stopping")
			return nil
		case <-time.After(remainder):
		}
	}
}

// RunCycle performs one collect/send/render/attributes pass.
func (a *Agent) RunCycle() {
	a.sendTelemetry()
	a.sendAttributes()
}

func (a *Agent) sendTelemetry() {
	values := a.telemetry.Collect()
	if len(values) == 0 {
		logger.Debug().Msg("No sensors due this cycle")
		return
	}

	logger.Info().Interface("values", values).Msg("Collected telemetry")

	if err := a.publisher.SendTelemetry(values); err != nil {
		logger.Warn().Err(err).Msg("Failed to send telemetry")
	}

	a.renderer.Render(display.Snapshot{
		TS:         a.now().UnixMilli(),
		DeviceName: a.attributes.DeviceName(),
		Values:     values,
	})
}

func (a *Agent) sendAttributes() {
	attrs := a.attributes.Collect()
	if len(attrs) == 0 {
		return
	}

	if err := a.publisher.SendAttributes(attrs); err != nil {
		logger.Warn().Err(err).Msg("Failed to send attributes")
	}
}
