package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ryan-Atkinson87/trive-aquasense/internal/errors"
	"github.com/Ryan-Atkinson87/trive-aquasense/internal/sensor"
)

// scriptDriver returns queued readings in order, then repeats the last one.
// A nil reading in the script produces a read error.
type scriptDriver struct {
	name     string
	identity string
	script   []map[string]any
	calls    int
}

func (s *scriptDriver) Name() string     { return s.name }
func (s *scriptDriver) Kind() string     { return "Temperature" }
func (s *scriptDriver) Units() string    { return "C" }
func (s *scriptDriver) Identity() string { return s.identity }

func (s *scriptDriver) Read() (map[string]any, error) {
	idx := s.calls
	if idx >= len(s.script) {
		idx = len(s.script) - 1
	}
	s.calls++

	reading := s.script[idx]
	if reading == nil {
		return nil, errors.New().WithMessage(errors.ErrSensorRead, "scripted failure")
	}

	out := make(map[string]any, len(reading))
	for k, v := range reading {
		out[k] = v
	}
	return out, nil
}

// fixedClock advances only when the test says so.
type fixedClock struct {
	t time.Time
}

func (c *fixedClock) now() time.Time          { return c.t }
func (c *fixedClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCollector(bundles ...*sensor.Bundle) (*Collector, *fixedClock) {
	clock := &fixedClock{t: time.Unix(1_700_000_000, 0)}
	c := NewCollector(bundles)
	c.now = clock.now
	return c, clock
}

func tempBundle(id string, script ...map[string]any) (*sensor.Bundle, *scriptDriver) {
	driver := &scriptDriver{name: "script", identity: id, script: script}
	return &sensor.Bundle{
		Driver: driver,
		ID:     "script:" + id,
		Keys:   map[string]string{"temperature": "water_temperature"},
	}, driver
}

func TestCollectMapsRawKeysToCanonical(t *testing.T) {
	bundle, _ := tempBundle("t1", map[string]any{"temperature": 21.5})
	c, _ := newTestCollector(bundle)

	values := c.Collect()
	assert.Equal(t, map[string]any{"water_temperature": 21.5}, values)
}

func TestCollectDropsUnmappedKeys(t *testing.T) {
	bundle, _ := tempBundle("t1", map[string]any{
		"temperature": 21.5,
		"humidity":    55.0,
	})
	c, _ := newTestCollector(bundle)

	values := c.Collect()
	require.Contains(t, values, "water_temperature")
	assert.NotContains(t, values, "humidity")
}

func TestCollectWithNoBundles(t *testing.T) {
	c, _ := newTestCollector()

	values := c.Collect()
	assert.NotNil(t, values)
	assert.Empty(t, values)
}

func TestIntervalGatesReads(t *testing.T) {
	bundle, driver := tempBundle("t1",
		map[string]any{"temperature": 20.0},
		map[string]any{"temperature": 21.0},
	)
	bundle.Interval = 30
	c, clock := newTestCollector(bundle)

	values := c.Collect()
	assert.Equal(t, 20.0, values["water_temperature"])

	// 10s later: not due, the bundle contributes nothing.
	clock.advance(10 * time.Second)
	values = c.Collect()
	assert.Empty(t, values)
	assert.Equal(t, 1, driver.calls)

	// At exactly the interval boundary the bundle is due again.
	clock.advance(20 * time.Second)
	values = c.Collect()
	assert.Equal(t, 21.0, values["water_temperature"])
	assert.Equal(t, 2, driver.calls)
}

func TestZeroIntervalIsAlwaysDue(t *testing.T) {
	bundle, driver := tempBundle("t1", map[string]any{"temperature": 20.0})
	c, _ := newTestCollector(bundle)

	c.Collect()
	c.Collect()
	assert.Equal(t, 2, driver.calls)
}

func TestFailedReadDoesNotConsumeIntervalCredit(t *testing.T) {
	bundle, driver := tempBundle("t1",
		nil, // first read fails
		map[string]any{"temperature": 22.0},
	)
	bundle.Interval = 60
	c, clock := newTestCollector(bundle)

	values := c.Collect()
	assert.Empty(t, values)

	// Well inside the interval, but the failed read left no timestamp, so
	// the bundle is retried immediately.
	clock.advance(time.Second)
	values = c.Collect()
	assert.Equal(t, 22.0, values["water_temperature"])
	assert.Equal(t, 2, driver.calls)
}

func TestReadFailureIsolatedPerBundle(t *testing.T) {
	failing, _ := tempBundle("bad", nil)
	healthy, _ := tempBundle("good", map[string]any{"temperature": 19.0})
	healthy.Keys = map[string]string{"temperature": "air_temperature"}
	c, _ := newTestCollector(failing, healthy)

	values := c.Collect()
	assert.Equal(t, map[string]any{"air_temperature": 19.0}, values)
}

func TestCalibrationIsLinear(t *testing.T) {
	bundle, _ := tempBundle("t1", map[string]any{"temperature": 10.0})
	bundle.Calibration = map[string]sensor.Calibration{
		"water_temperature": {Slope: 2.0, Offset: -1.5},
	}
	c, _ := newTestCollector(bundle)

	values := c.Collect()
	assert.InDelta(t, 18.5, values["water_temperature"].(float64), 1e-9)
}

func TestCalibrationSlopeZeroPinsValue(t *testing.T) {
	bundle, _ := tempBundle("t1", map[string]any{"temperature": 123.0})
	bundle.Calibration = map[string]sensor.Calibration{
		"water_temperature": {Slope: 0, Offset: 0},
	}
	c, _ := newTestCollector(bundle)

	values := c.Collect()
	assert.Equal(t, 0.0, values["water_temperature"])
}

func TestCalibrationSkipsNonNumericValues(t *testing.T) {
	bundle, _ := tempBundle("t1", map[string]any{"temperature": "warm"})
	bundle.Calibration = map[string]sensor.Calibration{
		"water_temperature": {Slope: 2.0, Offset: 1.0},
	}
	c, _ := newTestCollector(bundle)

	values := c.Collect()
	assert.Equal(t, "warm", values["water_temperature"])
}

func TestSmoothingSeedsThenBlends(t *testing.T) {
	bundle, _ := tempBundle("t1",
		map[string]any{"temperature": 0.0},
		map[string]any{"temperature": 10.0},
	)
	bundle.Smoothing = map[string]int{"water_temperature": 3}
	c, _ := newTestCollector(bundle)

	// First observation seeds the average and is emitted unchanged. Zero is
	// a legitimate seed, not "no state yet".
	values := c.Collect()
	assert.Equal(t, 0.0, values["water_temperature"])

	// alpha = 2/(3+1) = 0.5, so the next value blends to the midpoint.
	values = c.Collect()
	assert.InDelta(t, 5.0, values["water_temperature"].(float64), 1e-9)
}

func TestSmoothingWindowOneIsPassThrough(t *testing.T) {
	bundle, _ := tempBundle("t1",
		map[string]any{"temperature": 10.0},
		map[string]any{"temperature": 30.0},
	)
	bundle.Smoothing = map[string]int{"water_temperature": 1}
	c, _ := newTestCollector(bundle)

	c.Collect()
	values := c.Collect()
	assert.Equal(t, 30.0, values["water_temperature"])
}

func TestSmoothingStateIsPerBundleAndKey(t *testing.T) {
	first, _ := tempBundle("a",
		map[string]any{"temperature": 0.0},
		map[string]any{"temperature": 10.0},
	)
	first.Smoothing = map[string]int{"water_temperature": 3}

	second, _ := tempBundle("b",
		map[string]any{"temperature": 100.0},
		map[string]any{"temperature": 100.0},
	)
	second.Keys = map[string]string{"temperature": "air_temperature"}
	second.Smoothing = map[string]int{"air_temperature": 3}

	c, _ := newTestCollector(first, second)

	c.Collect()
	values := c.Collect()
	assert.InDelta(t, 5.0, values["water_temperature"].(float64), 1e-9)
	assert.InDelta(t, 100.0, values["air_temperature"].(float64), 1e-9)
}

func TestRangeBoundsAreInclusive(t *testing.T) {
	bundle, _ := tempBundle("t1",
		map[string]any{"temperature": 0.0},
		map[string]any{"temperature": 40.0},
		map[string]any{"temperature": -5.0},
		map[string]any{"temperature": 40.1},
	)
	bundle.Ranges = map[string]sensor.Range{
		"water_temperature": {Min: 0, Max: 40},
	}
	c, _ := newTestCollector(bundle)

	values := c.Collect()
	assert.Equal(t, 0.0, values["water_temperature"])

	values = c.Collect()
	assert.Equal(t, 40.0, values["water_temperature"])

	// Out-of-range readings are dropped, never clamped.
	values = c.Collect()
	assert.Empty(t, values)

	values = c.Collect()
	assert.Empty(t, values)
}

func TestRangeDropStillCountsAsSuccessfulRead(t *testing.T) {
	bundle, driver := tempBundle("t1", map[string]any{"temperature": 99.0})
	bundle.Interval = 60
	bundle.Ranges = map[string]sensor.Range{
		"water_temperature": {Min: 0, Max: 40},
	}
	c, clock := newTestCollector(bundle)

	c.Collect()
	clock.advance(time.Second)
	c.Collect()

	// The read itself succeeded, so interval credit is consumed even though
	// the value was filtered out.
	assert.Equal(t, 1, driver.calls)
}

func TestCanonicalKeyCollisionLastWins(t *testing.T) {
	first, _ := tempBundle("a", map[string]any{"temperature": 1.0})
	second, _ := tempBundle("b", map[string]any{"temperature": 2.0})
	c, _ := newTestCollector(first, second)

	values := c.Collect()
	assert.Equal(t, 2.0, values["water_temperature"])
}

func TestPipelineOrderCalibrateSmoothFilter(t *testing.T) {
	// Raw 25 calibrates to 50, which the range then rejects. If filtering
	// ran before calibration the raw value would have passed.
	bundle, _ := tempBundle("t1", map[string]any{"temperature": 25.0})
	bundle.Calibration = map[string]sensor.Calibration{
		"water_temperature": {Slope: 2.0, Offset: 0},
	}
	bundle.Ranges = map[string]sensor.Range{
		"water_temperature": {Min: 0, Max: 40},
	}
	c, _ := newTestCollector(bundle)

	values := c.Collect()
	assert.Empty(t, values)
}

func TestSmoothingSeesCalibratedValues(t *testing.T) {
	bundle, _ := tempBundle("t1",
		map[string]any{"temperature": 10.0},
		map[string]any{"temperature": 20.0},
	)
	bundle.Calibration = map[string]sensor.Calibration{
		"water_temperature": {Slope: 1.0, Offset: 5.0},
	}
	bundle.Smoothing = map[string]int{"water_temperature": 3}
	c, _ := newTestCollector(bundle)

	values := c.Collect()
	assert.InDelta(t, 15.0, values["water_temperature"].(float64), 1e-9)

	// Second value calibrates to 25; EMA blends 0.5*25 + 0.5*15.
	values = c.Collect()
	assert.InDelta(t, 20.0, values["water_temperature"].(float64), 1e-9)
}

func TestNonNumericValuesPassThroughUntouched(t *testing.T) {
	bundle, _ := tempBundle("t1", map[string]any{"temperature": "sensor offline"})
	bundle.Smoothing = map[string]int{"water_temperature": 5}
	bundle.Ranges = map[string]sensor.Range{
		"water_temperature": {Min: 0, Max: 40},
	}
	c, _ := newTestCollector(bundle)

	values := c.Collect()
	assert.Equal(t, "sensor offline", values["water_temperature"])
}
