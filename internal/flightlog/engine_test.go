package flightlog

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/flight-logger/internal/telemetry"
	"github.com/roman-kulish/flight-logger/internal/timeutil"
)

var epoch = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

type recordingSink struct {
	name    string
	events  []string
	logged  []telemetry.Position
	failLog error
	closed  int
}

func (s *recordingSink) Name() string {
	return s.name
}

func (s *recordingSink) LogPosition(at time.Time, pos telemetry.Position) error {
	s.events = append(s.events, "log "+at.Sub(epoch).String())
	s.logged = append(s.logged, pos)
	return s.failLog
}

func (s *recordingSink) NewLog() error {
	s.events = append(s.events, "new")
	return nil
}

func (s *recordingSink) Close() error {
	s.closed++
	return nil
}

type recordingMetrics struct {
	decisions map[string]int
	sinkErrs  map[string]int
	splits    int
}

func (m *recordingMetrics) RecordDecision(d string) {
	m.decisions[d]++
}

func (m *recordingMetrics) RecordSinkError(s string) {
	m.sinkErrs[s]++
}

func (m *recordingMetrics) RecordSplit() {
	m.splits++
}

func newTestEngine(config Config, sinks ...Sink) (*Engine, *timeutil.MockClock) {
	clock := timeutil.NewMockClock(epoch)
	e := NewEngine(config, sinks, WithClock(clock))
	return e, clock
}

func running(e *Engine) {
	e.SetRunning(true)
	e.SetPaused(false)
}

func TestEngine_InitialStateDropsEverything(t *testing.T) {
	sink := &recordingSink{name: "test"}
	e, _ := newTestEngine(Config{}, sink)

	d, err := e.HandlePosition(telemetry.Position{Latitude: 1, Airspeed: 100})
	require.NoError(t, err)
	assert.Equal(t, DroppedPaused, d)

	e.SetPaused(false)
	d, _ = e.HandlePosition(telemetry.Position{Latitude: 1, Airspeed: 100})
	assert.Equal(t, DroppedNotRunning, d)
	assert.Empty(t, sink.logged)
}

func TestEngine_PausedNeverForwards(t *testing.T) {
	sink := &recordingSink{name: "test"}
	e, clock := newTestEngine(Config{}, sink)
	e.SetRunning(true)
	e.SetPaused(true)

	for i := 0; i < 10; i++ {
		clock.Advance(time.Minute)
		d, err := e.HandlePosition(telemetry.Position{Latitude: float64(i), Airspeed: 120})
		require.NoError(t, err)
		assert.Equal(t, DroppedPaused, d)
	}
	assert.Empty(t, sink.events)

	e.SetPaused(false)
	d, _ := e.HandlePosition(telemetry.Position{Latitude: 20, Airspeed: 120})
	assert.Equal(t, Logged, d)
}

func TestEngine_WaitForMovement(t *testing.T) {
	sink := &recordingSink{name: "test"}
	e, clock := newTestEngine(Config{WaitForMovement: true}, sink)
	running(e)

	var got []Decision
	for i, airspeed := range []float64{0, 0, 0, 5, 0} {
		clock.Advance(time.Second)
		d, err := e.HandlePosition(telemetry.Position{Latitude: float64(i), Airspeed: airspeed})
		require.NoError(t, err)
		got = append(got, d)
	}

	want := []Decision{DroppedWaitingForMovement, DroppedWaitingForMovement, DroppedWaitingForMovement, Logged, Logged}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("decisions mismatch (-want +got):\n%s", diff)
	}
	assert.False(t, e.waitingForMovement)
}

func TestEngine_FullStop(t *testing.T) {
	sink := &recordingSink{name: "test"}
	e, clock := newTestEngine(Config{Distance: 1}, sink)
	running(e)

	moving := telemetry.Position{Latitude: 10, Longitude: 20, Airspeed: 5}
	stopped := telemetry.Position{Latitude: 10, Longitude: 20, Airspeed: 0.05}

	d, _ := e.HandlePosition(moving)
	require.Equal(t, Logged, d)

	clock.Advance(time.Second)
	d, _ = e.HandlePosition(stopped)
	assert.Equal(t, Logged, d, "full stop is logged regardless of distance")
	assert.Equal(t, 0.0, sink.logged[1].Airspeed, "airspeed below threshold snaps to zero")

	clock.Advance(time.Second)
	d, _ = e.HandlePosition(stopped)
	assert.Equal(t, DroppedTooClose, d, "second stop at the same place")

	clock.Advance(time.Second)
	d, _ = e.HandlePosition(telemetry.Position{Latitude: 10, Longitude: 20, Airspeed: 3})
	assert.Equal(t, DroppedTooClose, d, "slow movement within distance")
}

func TestEngine_Interval(t *testing.T) {
	sink := &recordingSink{name: "test"}
	e, clock := newTestEngine(Config{Interval: 5 * time.Second}, sink)
	running(e)

	d, _ := e.HandlePosition(telemetry.Position{Latitude: 1, Airspeed: 100})
	assert.Equal(t, Logged, d)

	clock.Advance(4 * time.Second)
	d, _ = e.HandlePosition(telemetry.Position{Latitude: 2, Airspeed: 100})
	assert.Equal(t, DroppedTooSoon, d)

	clock.Advance(time.Second)
	d, _ = e.HandlePosition(telemetry.Position{Latitude: 3, Airspeed: 100})
	assert.Equal(t, Logged, d)

	assert.Equal(t, []string{"log 0s", "log 5s"}, sink.events)
}

func TestEngine_IdleSplit(t *testing.T) {
	a := &recordingSink{name: "a"}
	b := &recordingSink{name: "b"}
	e, clock := newTestEngine(Config{NewLogWhenIdle: 30 * time.Second}, a, b)
	running(e)

	d, _ := e.HandlePosition(telemetry.Position{Latitude: 1, Airspeed: 80})
	assert.Equal(t, Logged, d)

	clock.Advance(35 * time.Second)
	d, _ = e.HandlePosition(telemetry.Position{Latitude: 2, Airspeed: 80})
	assert.Equal(t, LoggedAfterSplit, d)

	clock.Advance(time.Second)
	d, _ = e.HandlePosition(telemetry.Position{Latitude: 3, Airspeed: 80})
	assert.Equal(t, Logged, d)

	for _, s := range []*recordingSink{a, b} {
		assert.Equal(t, []string{"log 0s", "new", "log 35s", "log 36s"}, s.events, s.name)
	}
}

func TestEngine_IdleSplitRequiresMovement(t *testing.T) {
	sink := &recordingSink{name: "test"}
	e, clock := newTestEngine(Config{NewLogWhenIdle: 30 * time.Second}, sink)
	running(e)

	_, _ = e.HandlePosition(telemetry.Position{Latitude: 1, Airspeed: 80})

	clock.Advance(40 * time.Second)
	d, _ := e.HandlePosition(telemetry.Position{Latitude: 2, Airspeed: 0})
	assert.Equal(t, Logged, d)
	assert.NotContains(t, sink.events, "new")
}

func TestEngine_SinkErrorsDoNotStopOtherSinks(t *testing.T) {
	failing := &recordingSink{name: "broken", failLog: errors.New("disk full")}
	healthy := &recordingSink{name: "healthy"}
	metrics := &recordingMetrics{decisions: map[string]int{}, sinkErrs: map[string]int{}}

	clock := timeutil.NewMockClock(epoch)
	e := NewEngine(Config{}, []Sink{failing, healthy}, WithClock(clock), WithMetrics(metrics))
	running(e)

	d, err := e.HandlePosition(telemetry.Position{Latitude: 1, Airspeed: 50})
	assert.Equal(t, Logged, d)

	var sinkErr *SinkError
	require.ErrorAs(t, err, &sinkErr)
	assert.Equal(t, "broken", sinkErr.Sink)
	assert.Len(t, healthy.logged, 1)
	assert.Equal(t, 1, metrics.sinkErrs["broken"])
	assert.Equal(t, 1, metrics.decisions["logged"])
}

func TestEngine_Close(t *testing.T) {
	sink := &recordingSink{name: "test"}
	e, _ := newTestEngine(Config{}, sink)

	require.NoError(t, e.Close())
	require.NoError(t, e.Close())
	assert.Equal(t, 1, sink.closed)
}
