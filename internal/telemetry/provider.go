package telemetry

import (
	"sync"
	"time"
)

// Provider returns the most recent position, if any.
type Provider interface {
	Get() (Position, time.Time, bool)
}

// Latest is a Provider holding the last stored position. It is safe for
// concurrent use.
type Latest struct {
	mu  sync.Mutex
	pos Position
	at  time.Time
	ok  bool
}

// Set replaces the stored position.
func (l *Latest) Set(at time.Time, p Position) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pos = p
	l.at = at
	l.ok = true
}

// Get returns the stored position and false when nothing was stored yet.
func (l *Latest) Get() (Position, time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.pos, l.at, l.ok
}
