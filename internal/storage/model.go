package storage

import (
	"time"

	"github.com/google/uuid"

	"github.com/roman-kulish/flight-logger/internal/telemetry"
)

// Flight is one log of positions.
type Flight struct {
	ID        int64
	UUID      uuid.UUID
	StartTime time.Time

	// Source names what produced the flight, e.g. the simulator library or
	// a replayed file.
	Source string
}

// PositionRecord is a stored position.
type PositionRecord struct {
	Time     time.Time
	Position telemetry.Position
}
