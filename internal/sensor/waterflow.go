package sensor

import (
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"

	"github.com/Ryan-Atkinson87/trive-aquasense/internal/errors"
	"github.com/Ryan-Atkinson87/trive-aquasense/internal/pulse"
)

const (
	defaultSampleWindow  = 1 * time.Second
	defaultSlidingWindow = 3 * time.Second
	defaultGlitchMicros  = 200
	defaultPulsesPerLMin = 4.5

	// edgeWaitTimeout bounds WaitForEdge so the producer goroutine notices
	// a pending Stop.
	edgeWaitTimeout = 500 * time.Millisecond
)

// WaterFlow measures flow rate from a hall-effect pulse sensor. Falling
// edges are collected by a background goroutine into a sliding-window
// accumulator; Read waits one sampling window and then converts pulse
// frequency into litres per minute.
type WaterFlow struct {
	id      string
	pinName string

	sampleWindow  time.Duration
	slidingWindow time.Duration
	glitchMicros  uint32
	calibration   float64

	pin   gpio.PinIn
	acc   *pulse.Accumulator
	epoch time.Time

	mu      sync.Mutex
	done    chan struct{}
	stopped bool
}

func waterFlowRegistration() Registration {
	return Registration{
		Descriptor: Descriptor{
			Accepted: []string{
				"id", "pin", "sample_window", "sliding_window_s", "glitch_us", "calibration_constant",
			},
			Required: []string{"id", "pin"},
			Coercers: map[string]Coercer{
				"id":                   CoerceString,
				"pin":                  CoerceInt,
				"sample_window":        CoerceFloat,
				"sliding_window_s":     CoerceFloat,
				"glitch_us":            CoerceInt,
				"calibration_constant": CoerceFloat,
			},
		},
		Construct: newWaterFlow,
	}
}

func newWaterFlow(fields map[string]any) (Driver, error) {
	pinNumber, _ := fields["pin"].(int)
	if err := checkPin(pinNumber); err != nil {
		return nil, err
	}

	if err := initHost(); err != nil {
		return nil, err
	}

	id, _ := fields["id"].(string)

	w := &WaterFlow{
		id:            id,
		pinName:       fmt.Sprintf("GPIO%d", pinNumber),
		sampleWindow:  defaultSampleWindow,
		slidingWindow: defaultSlidingWindow,
		glitchMicros:  defaultGlitchMicros,
		calibration:   defaultPulsesPerLMin,
		epoch:         time.Now(),
		done:          make(chan struct{}),
	}

	if v, ok := fields["sample_window"].(float64); ok && v > 0 {
		w.sampleWindow = time.Duration(v * float64(time.Second))
	}
	if v, ok := fields["sliding_window_s"].(float64); ok && v > 0 {
		w.slidingWindow = time.Duration(v * float64(time.Second))
	}
	if v, ok := fields["glitch_us"].(int); ok && v >= 0 {
		w.glitchMicros = uint32(v)
	}
	if v, ok := fields["calibration_constant"].(float64); ok && v > 0 {
		w.calibration = v
	}

	w.acc = pulse.NewAccumulator(w.slidingWindow, w.calibration)

	pin := gpioreg.ByName(w.pinName)
	if pin == nil {
		return nil, errors.New().WithMessage(errors.ErrSensorInit,
			fmt.Sprintf("GPIO pin %s not available", w.pinName))
	}
	if err := pin.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		return nil, errors.New().Wrap(errors.ErrSensorInit, err).
			WithMessage(fmt.Sprintf("configuring %s for edge detection", w.pinName))
	}
	w.pin = pin

	go w.watch()

	return w, nil
}

func (w *WaterFlow) Name() string  { return "water_flow" }
func (w *WaterFlow) Kind() string  { return "Flow" }
func (w *WaterFlow) Units() string { return "l/min" }

func (w *WaterFlow) Identity() string {
	if w.id != "" {
		return w.id
	}
	return w.pinName
}

// tick returns microseconds since the driver epoch on the wrapping 32-bit
// counter the accumulator expects.
func (w *WaterFlow) tick() uint32 {
	return uint32(time.Since(w.epoch).Microseconds())
}

// watch is the producer side: it blocks on hardware edges and feeds the
// accumulator until Stop is called. Edges closer together than the glitch
// filter are discarded as contact bounce.
func (w *WaterFlow) watch() {
	var lastTick uint32
	var havePulse bool

	for {
		select {
		case <-w.done:
			return
		default:
		}

		if !w.pin.WaitForEdge(edgeWaitTimeout) {
			continue
		}

		tick := w.tick()
		if havePulse && pulse.TickDiff(lastTick, tick) < w.glitchMicros {
			continue
		}
		lastTick = tick
		havePulse = true

		w.acc.Add(tick)
	}
}

// Read waits the configured sampling window to let pulses accumulate, then
// returns {"flow_instant": ..., "flow_smoothed": ...} in l/min. The delay is
// an intentional sampling period, not a retry.
func (w *WaterFlow) Read() (map[string]any, error) {
	w.mu.Lock()
	stopped := w.stopped
	w.mu.Unlock()
	if stopped {
		return nil, errors.New().WithMessage(errors.ErrSensorRead, "water flow sensor is stopped")
	}

	time.Sleep(w.sampleWindow)

	instant, windowed := w.acc.Rates(w.tick())

	return map[string]any{
		"flow_instant":  instant,
		"flow_smoothed": windowed,
	}, nil
}

// Stop cancels edge collection and releases the pin. Safe to call multiple
// times.
func (w *WaterFlow) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.done)

	if err := w.pin.Halt(); err != nil {
		return errors.New().Wrap(errors.ErrSensorStop, err).
			WithMessage(fmt.Sprintf("halting %s", w.pinName))
	}

	return nil
}
