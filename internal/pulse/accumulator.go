// Package pulse converts a stream of hardware pulse edges into flow rates.
//
// A background producer (the GPIO edge goroutine of a rate-based sensor)
// appends tick timestamps while the collection cycle reads rates out. Ticks
// are 32-bit microsecond counters that wrap around roughly every 71 minutes,
// so all duration arithmetic is modular.
package pulse

import (
	"sync"
	"time"
)

const microsPerSecond = 1_000_000

// TickDiff returns the elapsed microseconds from earlier to later on the
// wrapping 32-bit tick counter. Unsigned subtraction is exact on the circular
// number line as long as the real distance is below 2^32 microseconds.
func TickDiff(earlier, later uint32) uint32 {
	return later - earlier
}

// Accumulator is a bounded-time buffer of pulse ticks.
//
// Add and Rates may be called from different goroutines; both hold the lock
// only for the append/trim/compute critical section. The sampling-window
// sleep of the owning driver happens outside the Accumulator.
type Accumulator struct {
	mu    sync.Mutex
	ticks []uint32

	windowMicros uint32
	calibration  float64
}

// NewAccumulator creates an accumulator keeping pulses inside the given
// sliding window. The calibration constant converts pulse frequency (Hz)
// into the physical rate unit; a hall-effect flow sensor datasheet states it
// as pulses per second per litre/minute.
func NewAccumulator(window time.Duration, calibration float64) *Accumulator {
	if window <= 0 {
		window = 3 * time.Second
	}
	if calibration <= 0 {
		calibration = 1.0
	}

	return &Accumulator{
		windowMicros: uint32(window.Microseconds()),
		calibration:  calibration,
	}
}

// Add records a pulse edge at the given tick and trims entries that have
// fallen out of the sliding window relative to this newest tick.
func (a *Accumulator) Add(tick uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.ticks = append(a.ticks, tick)
	a.trim(tick)
}

// Len returns the number of buffered pulses.
func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return len(a.ticks)
}

// Reset discards all buffered pulses.
func (a *Accumulator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.ticks = a.ticks[:0]
}

// Rates trims the buffer against the current tick and returns the
// instantaneous and windowed rates, both divided by the calibration
// constant.
//
// Fewer than two remaining pulses is the physically valid "no flow" state
// and yields zero for both measures. The window may contain stale pulses
// when no edge arrived since the last Add, which is why the trim runs again
// here against now rather than against the newest buffered tick.
func (a *Accumulator) Rates(now uint32) (instant, windowed float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.trim(now)

	n := len(a.ticks)
	if n < 2 {
		return 0, 0
	}

	spanMicros := TickDiff(a.ticks[0], a.ticks[n-1])
	if spanMicros == 0 {
		return 0, 0
	}

	pulsesPerSec := float64(n-1) / (float64(spanMicros) / microsPerSecond)

	lastDelta := TickDiff(a.ticks[n-2], a.ticks[n-1])
	instFreq := pulsesPerSec
	if lastDelta > 0 {
		instFreq = microsPerSecond / float64(lastDelta)
	}

	return instFreq / a.calibration, pulsesPerSec / a.calibration
}

// trim drops leading ticks older than the window relative to ref.
// Caller must hold the lock.
func (a *Accumulator) trim(ref uint32) {
	cut := 0
	for cut < len(a.ticks) && TickDiff(a.ticks[cut], ref) > a.windowMicros {
		cut++
	}
	if cut > 0 {
		a.ticks = a.ticks[:copy(a.ticks, a.ticks[cut:])]
	}
}
