// Package storage keeps logged flights in a SQLite database.
package storage

import (
	"context"
	"time"
)

// Store manages flights and their positions. Writes are atomic per call.
type Store interface {
	// CreateFlight starts a new flight and returns it with a fresh UUID.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - startTime: Time of the first position of the flight
	//   - source: What produced the flight, e.g. a simulator library name
	CreateFlight(ctx context.Context, startTime time.Time, source string) (*Flight, error)

	// Flight returns a flight by its ID.
	Flight(ctx context.Context, id int64) (*Flight, error)

	// Flights returns every stored flight ordered by start time.
	Flights(ctx context.Context) ([]*Flight, error)

	// StorePositions saves positions of a flight in a single transaction.
	StorePositions(ctx context.Context, flightID int64, positions []PositionRecord) error

	// Close releases all database connections. It is safe to call Close
	// multiple times.
	Close() error
}
