package replay

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/flight-logger/internal/flightlog"
	"github.com/roman-kulish/flight-logger/internal/flightlog/csvlog"
	"github.com/roman-kulish/flight-logger/internal/simconnect"
	"github.com/roman-kulish/flight-logger/internal/telemetry"
)

const waitFor = 2 * time.Second

var start = time.Date(2024, 6, 1, 10, 15, 30, 0, time.UTC)

type memorySink struct {
	times     []time.Time
	positions []telemetry.Position
	closed    bool
}

func (s *memorySink) Name() string {
	return "memory"
}

func (s *memorySink) LogPosition(at time.Time, pos telemetry.Position) error {
	s.times = append(s.times, at)
	s.positions = append(s.positions, pos)
	return nil
}

func (s *memorySink) NewLog() error {
	return nil
}

func (s *memorySink) Close() error {
	s.closed = true
	return nil
}

func records() []csvlog.Record {
	return []csvlog.Record{
		{Time: start, Position: telemetry.Position{Latitude: 10, Longitude: 20, Altitude: 1000, Airspeed: 0}},
		{Time: start.Add(2 * time.Second), Position: telemetry.Position{Latitude: 10.001, Longitude: 20, Altitude: 1100, Airspeed: 80}},
		{Time: start.Add(2500 * time.Millisecond), Position: telemetry.Position{Latitude: 10.002, Longitude: 20, Altitude: 1200, Airspeed: 85}},
		{Time: start.Add(4 * time.Second), Position: telemetry.Position{Latitude: 10.003, Longitude: 20, Altitude: 1300, Airspeed: 90}},
	}
}

func waitDone(t *testing.T, client *simconnect.Client) {
	t.Helper()

	select {
	case <-client.Done():
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for the replay to finish")
	}
}

func TestReplay_ThroughRecorder(t *testing.T) {
	lib := New("flight.csv", records())
	assert.Equal(t, "replay:flight.csv", lib.Name())
	assert.Equal(t, 4, lib.Len())
	assert.Equal(t, start, lib.Now())

	client := simconnect.NewClient(lib)
	require.NoError(t, client.Open(context.Background(), "test"))
	defer func() { _ = client.Close() }()

	sink := &memorySink{}
	engine := flightlog.NewEngine(flightlog.Config{Interval: time.Second, Distance: 1}, []flightlog.Sink{sink}, flightlog.WithClock(lib))

	recorder, err := flightlog.StartRecorder(client, engine)
	require.NoError(t, err)

	waitDone(t, client)
	assert.ErrorIs(t, client.Err(), simconnect.ErrQuit)
	require.NoError(t, recorder.Stop())

	// the third record is within the interval of the second
	assert.Equal(t, []time.Time{start, start.Add(2 * time.Second), start.Add(4 * time.Second)}, sink.times)
	require.Len(t, sink.positions, 3)
	assert.Equal(t, records()[3].Position, sink.positions[2])
	assert.True(t, sink.closed)
}

func TestReplay_UnknownVariable(t *testing.T) {
	lib := New("flight.csv", records())

	exceptions := make(chan *simconnect.ExceptionError, 1)
	client := simconnect.NewClient(lib, simconnect.WithExceptionHandler(func(e *simconnect.ExceptionError) {
		exceptions <- e
	}))
	require.NoError(t, client.Open(context.Background(), "test"))
	defer func() { _ = client.Close() }()

	type heading struct {
		Heading float64
	}
	def, err := simconnect.NewDefinition(
		simconnect.Var("PLANE HEADING DEGREES TRUE", "degrees", func(h *heading, v float64) { h.Heading = v }),
	)
	require.NoError(t, err)

	data := make(chan heading, 10)
	_, err = simconnect.AddDefinition(client, def, func(h heading) { data <- h })
	require.NoError(t, err)

	select {
	case e := <-exceptions:
		assert.Equal(t, simconnect.ExceptionNameUnrecognized, e.Code)
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for exception")
	}

	waitDone(t, client)
	assert.Empty(t, data)
}

func TestReplay_AltitudeUnits(t *testing.T) {
	lib := New("flight.csv", records()[:1])

	client := simconnect.NewClient(lib)
	require.NoError(t, client.Open(context.Background(), "test"))
	defer func() { _ = client.Close() }()

	type altitude struct {
		Meters float32
	}
	def, err := simconnect.NewDefinition(
		simconnect.Var(telemetry.VarAltitude, "meters", func(a *altitude, v float32) { a.Meters = v }),
	)
	require.NoError(t, err)

	data := make(chan altitude, 1)
	_, err = simconnect.AddDefinition(client, def, func(a altitude) { data <- a })
	require.NoError(t, err)

	select {
	case a := <-data:
		assert.InDelta(t, 304.8, a.Meters, 0.001)
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for data")
	}
	waitDone(t, client)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	w := csvlog.New(dir)
	for _, rec := range records() {
		require.NoError(t, w.LogPosition(rec.Time, rec.Position))
	}
	path := w.Path()
	require.NoError(t, w.Close())

	lib, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, 4, lib.Len())
	assert.Equal(t, "replay:"+filepath.Base(path), lib.Name())

	_, err = Open(filepath.Join(dir, "missing.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
