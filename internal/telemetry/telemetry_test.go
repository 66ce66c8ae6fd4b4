package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/flight-logger/internal/simconnect"
)

func TestNewPositionDefinition(t *testing.T) {
	def, err := NewPositionDefinition()
	require.NoError(t, err)

	vars := def.Variables()
	require.Len(t, vars, 4)
	assert.Equal(t, VarLatitude, vars[0].Name)
	assert.Equal(t, VarAirspeed, vars[3].Name)
	for _, v := range vars {
		assert.Equal(t, simconnect.DataTypeFloat64, v.DataType, v.Name)
	}

	var p []byte
	for _, v := range []float64{47.45, -122.31, 433, 0.05} {
		p, err = simconnect.AppendValue(p, simconnect.DataTypeFloat64, v)
		require.NoError(t, err)
	}

	pos, err := def.Decode(p)
	require.NoError(t, err)
	assert.Equal(t, Position{Latitude: 47.45, Longitude: -122.31, Altitude: 433, Airspeed: 0.05}, pos)
}

func TestPosition_AltitudeMeters(t *testing.T) {
	assert.InDelta(t, 304.8, Position{Altitude: 1000}.AltitudeMeters(), 1e-9)
}

func TestLatest(t *testing.T) {
	var l Latest

	_, _, ok := l.Get()
	assert.False(t, ok)

	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	l.Set(at, Position{Latitude: 1, Altitude: 2})

	pos, gotAt, ok := l.Get()
	assert.True(t, ok)
	assert.Equal(t, at, gotAt)
	assert.Equal(t, Position{Latitude: 1, Altitude: 2}, pos)
}
