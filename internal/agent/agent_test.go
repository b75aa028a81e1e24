package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ryan-Atkinson87/trive-aquasense/internal/display"
	"github.com/Ryan-Atkinson87/trive-aquasense/internal/errors"
)

type fakeTelemetry struct {
	values map[string]any
	calls  int
}

func (f *fakeTelemetry) Collect() map[string]any {
	f.calls++
	return f.values
}

type fakeAttributes struct {
	attrs map[string]any
	calls int
}

func (f *fakeAttributes) DeviceName() string { return "bench-device" }
func (f *fakeAttributes) Collect() map[string]any {
	f.calls++
	return f.attrs
}

type fakePublisher struct {
	telemetry  []map[string]any
	attributes []map[string]any

	telemetryErr error
}

func (f *fakePublisher) SendTelemetry(values map[string]any) error {
	f.telemetry = append(f.telemetry, values)
	return f.telemetryErr
}

func (f *fakePublisher) SendAttributes(attrs map[string]any) error {
	f.attributes = append(f.attributes, attrs)
	return nil
}

type fakeRenderer struct {
	snapshots []display.Snapshot
}

func (f *fakeRenderer) Render(s display.Snapshot) {
	f.snapshots = append(f.snapshots, s)
}

func newTestAgent(tel *fakeTelemetry, attrs *fakeAttributes) (*Agent, *fakePublisher, *fakeRenderer) {
	pub := &fakePublisher{}
	ren := &fakeRenderer{}
	a := New(tel, attrs, pub, ren, time.Second)
	a.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }
	return a, pub, ren
}

func TestRunCycleSendsAndRenders(t *testing.T) {
	tel := &fakeTelemetry{values: map[string]any{"water_temperature": 21.5}}
	attrs := &fakeAttributes{attrs: map[string]any{"app_version": "1.2.0"}}
	a, pub, ren := newTestAgent(tel, attrs)

	a.RunCycle()

	require.Len(t, pub.telemetry, 1)
	assert.Equal(t, 21.5, pub.telemetry[0]["water_temperature"])

	require.Len(t, ren.snapshots, 1)
	assert.Equal(t, int64(1_700_000_000_000), ren.snapshots[0].TS)
	assert.Equal(t, "bench-device", ren.snapshots[0].DeviceName)

	require.Len(t, pub.attributes, 1)
	assert.Equal(t, "1.2.0", pub.attributes[0]["app_version"])
}

func TestRunCycleSkipsEmptyTelemetry(t *testing.T) {
	tel := &fakeTelemetry{values: map[string]any{}}
	attrs := &fakeAttributes{attrs: map[string]any{"uptime_s": 1}}
	a, pub, ren := newTestAgent(tel, attrs)

	a.RunCycle()

	// Nothing due means nothing sent or rendered, but attributes still go.
	assert.Empty(t, pub.telemetry)
	assert.Empty(t, ren.snapshots)
	assert.Len(t, pub.attributes, 1)
}

func TestRunCycleSurvivesPublishFailure(t *testing.T) {
	tel := &fakeTelemetry{values: map[string]any{"water_temperature": 21.5}}
	attrs := &fakeAttributes{attrs: map[string]any{"uptime_s": 1}}
	a, pub, ren := newTestAgent(tel, attrs)
	pub.telemetryErr = errors.New().WithMessage(errors.ErrInternal, "broker down")

	a.RunCycle()

	// The cycle still renders and still sends attributes.
	assert.Len(t, ren.snapshots, 1)
	assert.Len(t, pub.attributes, 1)
}

func TestRunRejectsNonPositivePeriod(t *testing.T) {
	a := New(&fakeTelemetry{}, &fakeAttributes{}, &fakePublisher{}, &fakeRenderer{}, 0)

	err := a.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidInterval))
}

func TestRunStopsOnContextCancel(t *testing.T) {
	tel := &fakeTelemetry{values: map[string]any{"water_temperature": 21.5}}
	attrs := &fakeAttributes{}
	a := New(tel, attrs, &fakePublisher{}, &fakeRenderer{}, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on context cancellation")
	}

	// The first cycle runs before the loop checks for cancellation.
	assert.Equal(t, 1, tel.calls)
}
