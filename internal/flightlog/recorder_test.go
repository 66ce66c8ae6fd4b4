package flightlog

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/flight-logger/internal/simconnect"
	"github.com/roman-kulish/flight-logger/internal/telemetry"
	"github.com/roman-kulish/flight-logger/internal/timeutil"
)

const waitFor = 2 * time.Second

type channelSink struct {
	positions chan telemetry.Position

	mu     sync.Mutex
	closed int
}

func (s *channelSink) Name() string {
	return "channel"
}

func (s *channelSink) LogPosition(_ time.Time, pos telemetry.Position) error {
	s.positions <- pos
	return nil
}

func (s *channelSink) NewLog() error {
	return nil
}

func (s *channelSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func encodeFrame(t *testing.T, values ...float64) []byte {
	t.Helper()

	var p []byte
	var err error
	for _, v := range values {
		p, err = simconnect.AppendValue(p, simconnect.DataTypeFloat64, v)
		require.NoError(t, err)
	}
	return p
}

func startRecording(t *testing.T, config Config) (*Recorder, *simconnect.MockConn, *channelSink) {
	t.Helper()

	lib := simconnect.NewMockLibrary("mock")
	client := simconnect.NewClient(lib)
	require.NoError(t, client.Open(context.Background(), "test"))
	t.Cleanup(func() { _ = client.Close() })

	sink := &channelSink{positions: make(chan telemetry.Position, 10)}
	engine := NewEngine(config, []Sink{sink}, WithClock(timeutil.NewMockClock(epoch)))

	recorder, err := StartRecorder(client, engine)
	require.NoError(t, err)

	conn := lib.Conn()
	require.Eventually(t, func() bool { return conn.Requested(1) }, waitFor, time.Millisecond)

	return recorder, conn, sink
}

func TestRecorder_LogsOnlyAfterMovement(t *testing.T) {
	recorder, conn, sink := startRecording(t, Config{Distance: 1, WaitForMovement: true})

	require.True(t, conn.PushEvent(simconnect.SystemEventSim, 1))
	require.True(t, conn.PushEvent(simconnect.SystemEventPause, 0))

	require.True(t, conn.PushData(1, encodeFrame(t, 10, 20, 1000, 0)))
	require.True(t, conn.PushData(1, encodeFrame(t, 10, 20, 1000, 0)))
	require.True(t, conn.PushData(1, encodeFrame(t, 10.0001, 20, 1000, 5)))

	select {
	case pos := <-sink.positions:
		assert.Equal(t, telemetry.Position{Latitude: 10.0001, Longitude: 20, Altitude: 1000, Airspeed: 5}, pos)
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for a logged position")
	}

	require.NoError(t, recorder.Stop())
	assert.Empty(t, sink.positions)
}

func TestRecorder_PausedByDefault(t *testing.T) {
	recorder, conn, sink := startRecording(t, Config{})

	require.True(t, conn.PushData(1, encodeFrame(t, 10, 20, 1000, 120)))
	require.True(t, conn.PushEvent(simconnect.SystemEventSim, 1))

	require.Eventually(t, func() bool {
		_, running := recorder.engine.State()
		return running
	}, waitFor, time.Millisecond)

	require.NoError(t, recorder.Stop())
	assert.Empty(t, sink.positions)
}

func TestRecorder_Stop(t *testing.T) {
	recorder, conn, sink := startRecording(t, Config{})

	require.NoError(t, recorder.Stop())
	require.NoError(t, recorder.Stop())

	require.Eventually(t, func() bool {
		calls := conn.Calls()
		return assert.ObjectsAreEqual([]string{
			"UnsubscribeFromSystemEvent(1)",
			"UnsubscribeFromSystemEvent(2)",
			"ClearDataDefinition(1)",
		}, calls[len(calls)-3:])
	}, waitFor, time.Millisecond)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, 1, sink.closed)
}
