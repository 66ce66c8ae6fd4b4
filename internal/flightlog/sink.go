package flightlog

import (
	"fmt"
	"time"

	"github.com/roman-kulish/flight-logger/internal/telemetry"
)

// Sink receives accepted positions.
type Sink interface {
	// Name identifies the sink in logs, errors and metrics.
	Name() string

	// LogPosition records a position accepted at the given time.
	LogPosition(at time.Time, pos telemetry.Position) error

	// NewLog finishes the current log. The next position starts a new one.
	NewLog() error

	// Close finishes the current log and releases resources.
	Close() error
}

// SinkError wraps a failure of a single sink.
type SinkError struct {
	Sink string
	Op   string
	Err  error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("%s sink: %s: %s", e.Sink, e.Op, e.Err.Error())
}

func (e *SinkError) Unwrap() error {
	return e.Err
}
