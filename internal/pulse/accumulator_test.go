package pulse_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Ryan-Atkinson87/trive-aquasense/internal/pulse"
)

const second = uint32(1_000_000)

func TestTickDiff(t *testing.T) {
	assert.Equal(t, uint32(500), pulse.TickDiff(1000, 1500))
	assert.Equal(t, uint32(0), pulse.TickDiff(1000, 1000))
}

func TestTickDiffWraparound(t *testing.T) {
	// The counter wraps at 2^32; the distance across the wrap must come out
	// as the short way around the circle.
	earlier := uint32(0xFFFFFF00)
	later := uint32(0x100)
	assert.Equal(t, uint32(0x200), pulse.TickDiff(earlier, later))
}

func TestRatesWithNoPulsesIsZero(t *testing.T) {
	acc := pulse.NewAccumulator(3*time.Second, 4.5)

	instant, windowed := acc.Rates(10 * second)
	assert.Zero(t, instant)
	assert.Zero(t, windowed)
}

func TestRatesWithSinglePulseIsZero(t *testing.T) {
	acc := pulse.NewAccumulator(3*time.Second, 4.5)
	acc.Add(1 * second)

	instant, windowed := acc.Rates(1*second + 100)
	assert.Zero(t, instant)
	assert.Zero(t, windowed)
}

func TestRatesSteadyFlow(t *testing.T) {
	// Three pulses one second apart: 1 Hz, divided by the calibration
	// constant.
	acc := pulse.NewAccumulator(3*time.Second, 2.0)
	acc.Add(0)
	acc.Add(1 * second)
	acc.Add(2 * second)

	instant, windowed := acc.Rates(2 * second)
	assert.InDelta(t, 0.5, windowed, 1e-9)
	assert.InDelta(t, 0.5, instant, 1e-9)
}

func TestInstantTracksLastInterval(t *testing.T) {
	// Last inter-pulse gap is 0.5s: instantaneous 2 Hz while the windowed
	// average stays lower.
	acc := pulse.NewAccumulator(5*time.Second, 1.0)
	acc.Add(0)
	acc.Add(1 * second)
	acc.Add(1*second + second/2)

	instant, windowed := acc.Rates(1*second + second/2)
	assert.InDelta(t, 2.0, instant, 1e-9)
	assert.InDelta(t, 2.0/1.5, windowed, 1e-9)
}

func TestAddTrimsOldPulses(t *testing.T) {
	acc := pulse.NewAccumulator(3*time.Second, 1.0)
	acc.Add(0)
	acc.Add(4 * second)

	// The first pulse is outside the 3s window relative to the newest.
	assert.Equal(t, 1, acc.Len())
}

func TestRatesTrimsAgainstCurrentTime(t *testing.T) {
	// No pulses arrived for a while: the stale buffer must read as no flow.
	acc := pulse.NewAccumulator(3*time.Second, 1.0)
	acc.Add(0)
	acc.Add(1 * second)

	instant, windowed := acc.Rates(10 * second)
	assert.Zero(t, instant)
	assert.Zero(t, windowed)
	assert.Zero(t, acc.Len())
}

func TestTrimAcrossCounterWrap(t *testing.T) {
	// Two pulses straddling the wrap stay inside the window; rates come out
	// as if the counter were linear.
	acc := pulse.NewAccumulator(3*time.Second, 1.0)
	first := uint32(0xFFFFFFFF) - second/2
	secondTick := first + second // wraps

	acc.Add(first)
	acc.Add(secondTick)
	assert.Equal(t, 2, acc.Len())

	instant, windowed := acc.Rates(secondTick + 1000)
	assert.InDelta(t, 1.0, instant, 1e-6)
	assert.InDelta(t, 1.0, windowed, 1e-6)
}

func TestReset(t *testing.T) {
	acc := pulse.NewAccumulator(3*time.Second, 1.0)
	acc.Add(0)
	acc.Add(second)
	acc.Reset()

	assert.Zero(t, acc.Len())
}

func TestConcurrentProducerAndReader(t *testing.T) {
	// Producer goroutine appends while the reader computes; exercised under
	// -race this validates the locking contract.
	acc := pulse.NewAccumulator(time.Hour, 1.0)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := uint32(0); i < 1000; i++ {
			acc.Add(i * 1000)
		}
	}()

	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			acc.Rates(1000 * 1000)
		}
	}()

	wg.Wait()
	assert.Equal(t, 1000, acc.Len())
}
