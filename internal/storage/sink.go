package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/roman-kulish/flight-logger/internal/telemetry"
)

const (
	maxBatchSize = 100

	DefaultFlushInterval = 5 * time.Second
)

// WithLogger sets the logger for the sink
func WithLogger(logger *slog.Logger) func(*Sink) {
	return func(s *Sink) {
		s.logger = logger.With(slog.String("sink", "sqlite"))
	}
}

// WithMaxBatchSize sets the maximum number of positions stored within a
// single database transaction.
func WithMaxBatchSize(size int) func(*Sink) {
	return func(s *Sink) {
		if size > 0 {
			s.maxBatchSize = size
		}
	}
}

// WithFlushInterval sets how long positions are buffered before they are
// stored.
func WithFlushInterval(interval time.Duration) func(*Sink) {
	return func(s *Sink) {
		s.flushInterval = interval
	}
}

// Sink stores accepted positions as flights. A flight is created on the
// first position after creation or NewLog. Positions are buffered and
// stored in batches.
type Sink struct {
	store  Store
	source string
	logger *slog.Logger

	maxBatchSize  int
	flushInterval time.Duration

	flight    *Flight
	pending   []PositionRecord
	lastFlush time.Time
}

// NewSink creates a sink writing to store. source is recorded with every
// flight. The sink does not close the store.
func NewSink(store Store, source string, options ...func(*Sink)) *Sink {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	s := Sink{
		store:         store,
		source:        source,
		logger:        logger,
		maxBatchSize:  maxBatchSize,
		flushInterval: DefaultFlushInterval,
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

func (s *Sink) Name() string {
	return "sqlite"
}

// Flight returns the current flight, or nil.
func (s *Sink) Flight() *Flight {
	return s.flight
}

func (s *Sink) LogPosition(at time.Time, pos telemetry.Position) error {
	if s.flight == nil {
		flight, err := s.store.CreateFlight(context.Background(), at, s.source)
		if err != nil {
			return fmt.Errorf("creating flight: %w", err)
		}

		s.flight = flight
		s.lastFlush = at
		s.logger.Info("flight created", slog.String("uuid", flight.UUID.String()))
	}

	s.pending = append(s.pending, PositionRecord{Time: at, Position: pos})

	if len(s.pending) < s.maxBatchSize && at.Sub(s.lastFlush) < s.flushInterval {
		return nil
	}

	s.lastFlush = at
	return s.flush()
}

func (s *Sink) flush() error {
	if len(s.pending) == 0 {
		return nil
	}

	for chunk := range slices.Chunk(s.pending, s.maxBatchSize) {
		if err := s.store.StorePositions(context.Background(), s.flight.ID, chunk); err != nil {
			return fmt.Errorf("storing positions: %w", err)
		}
	}

	s.pending = s.pending[:0]
	return nil
}

// NewLog stores buffered positions and ends the current flight.
func (s *Sink) NewLog() error {
	if s.flight == nil {
		return nil
	}

	err := s.flush()
	s.flight = nil
	s.pending = nil
	return err
}

func (s *Sink) Close() error {
	return s.NewLog()
}
