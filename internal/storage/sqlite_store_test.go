package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/flight-logger/internal/telemetry"
)

var start = time.Date(2024, 6, 1, 10, 15, 30, 0, time.UTC)

func newTestStore(t *testing.T) *SqliteStore {
	t.Helper()

	store := NewSqliteStore(filepath.Join(t.TempDir(), "flights.sqlite"))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func track(n int) []PositionRecord {
	records := make([]PositionRecord, n)
	for i := range records {
		records[i] = PositionRecord{
			Time: start.Add(time.Duration(i) * time.Second),
			Position: telemetry.Position{
				Latitude:  47 + float64(i)*0.001,
				Longitude: -122 - float64(i)*0.001,
				Altitude:  1000 + float64(i)*10,
				Airspeed:  float64(i),
			},
		}
	}
	return records
}

func readAll(t *testing.T, store *SqliteStore, flightID int64, opts ...ReaderOption) []PositionRecord {
	t.Helper()

	ctx := context.Background()
	r, err := store.ReadPositions(ctx, flightID, opts...)
	require.NoError(t, err)
	defer func() { require.NoError(t, r.Close()) }()

	var out []PositionRecord
	for r.Next(ctx) {
		out = append(out, r.Current())
	}
	require.NoError(t, r.Error())
	return out
}

func TestSqliteStore_Flights(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	second, err := store.CreateFlight(ctx, start.Add(time.Hour), "replay")
	require.NoError(t, err)
	first, err := store.CreateFlight(ctx, start, "FS2020-SimConnect.dll")
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, first.UUID)
	assert.NotEqual(t, first.UUID, second.UUID)

	got, err := store.Flight(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.UUID, got.UUID)
	assert.True(t, start.Equal(got.StartTime))
	assert.Equal(t, "FS2020-SimConnect.dll", got.Source)

	flights, err := store.Flights(ctx)
	require.NoError(t, err)
	require.Len(t, flights, 2)
	assert.Equal(t, first.ID, flights[0].ID, "ordered by start time")
	assert.Equal(t, second.ID, flights[1].ID)

	_, err = store.Flight(ctx, 42)
	assert.Error(t, err)
}

func TestSqliteStore_Positions(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	flight, err := store.CreateFlight(ctx, start, "test")
	require.NoError(t, err)
	other, err := store.CreateFlight(ctx, start, "test")
	require.NoError(t, err)

	want := track(5)
	require.NoError(t, store.StorePositions(ctx, flight.ID, want[:3]))
	require.NoError(t, store.StorePositions(ctx, flight.ID, want[3:]))
	require.NoError(t, store.StorePositions(ctx, other.ID, track(2)))
	require.NoError(t, store.StorePositions(ctx, other.ID, nil))

	got := readAll(t, store, flight.ID)
	timeEqual := cmp.Comparer(func(a, b time.Time) bool { return a.Equal(b) })
	if diff := cmp.Diff(want, got, timeEqual); diff != "" {
		t.Errorf("positions mismatch (-want +got):\n%s", diff)
	}

	got = readAll(t, store, flight.ID, WithTimeRange(start.Add(time.Second), start.Add(3*time.Second)))
	if diff := cmp.Diff(want[1:4], got, timeEqual); diff != "" {
		t.Errorf("positions in range mismatch (-want +got):\n%s", diff)
	}

	got = readAll(t, store, flight.ID, WithStartTime(start.Add(4*time.Second)))
	require.Len(t, got, 1)
	assert.Equal(t, want[4].Position, got[0].Position)
}

func TestSqliteStore_ReadPositionsErrors(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	flight, err := store.CreateFlight(ctx, start, "test")
	require.NoError(t, err)

	_, err = store.ReadPositions(ctx, 0)
	assert.Error(t, err)

	_, err = store.ReadPositions(ctx, flight.ID, WithTimeRange(start.Add(time.Minute), start))
	assert.Error(t, err)

	assert.Empty(t, readAll(t, store, flight.ID), "no positions stored")
}

func TestSqliteStore_Close(t *testing.T) {
	store := NewSqliteStore(filepath.Join(t.TempDir(), "flights.sqlite"))
	_, err := store.CreateFlight(context.Background(), start, "test")
	require.NoError(t, err)

	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}
