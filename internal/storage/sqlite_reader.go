package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roman-kulish/flight-logger/internal/telemetry"
)

// PositionReader provides an iterator-based interface for reading the
// positions of a flight with optional time filtering.
type PositionReader interface {
	// Flight returns the flight this reader is accessing.
	Flight() *Flight

	// Next advances the iterator and returns true if there is another
	// position to read.
	Next(context.Context) bool

	// Current returns the current position. If called after Next returns
	// false, the behavior is undefined.
	Current() PositionRecord

	// Error returns any error that occurred during iteration.
	Error() error

	// Close releases any resources associated with the reader.
	Close() error
}

// ReaderOption configures a position reader.
type ReaderOption func(*SqlitePositionReader)

// WithStartTime excludes positions before t.
func WithStartTime(t time.Time) ReaderOption {
	return func(r *SqlitePositionReader) {
		r.startTime = &t
	}
}

// WithEndTime excludes positions after t.
func WithEndTime(t time.Time) ReaderOption {
	return func(r *SqlitePositionReader) {
		r.endTime = &t
	}
}

// WithTimeRange is WithStartTime and WithEndTime combined.
func WithTimeRange(startTime, endTime time.Time) ReaderOption {
	return func(r *SqlitePositionReader) {
		r.startTime = &startTime
		r.endTime = &endTime
	}
}

// SqlitePositionReader implements PositionReader for the SQLite store.
type SqlitePositionReader struct {
	db *sql.DB

	flightID int64
	flight   *Flight

	startTime *time.Time // Optional start of time range filter
	endTime   *time.Time // Optional end of time range filter

	current PositionRecord
	rows    *sql.Rows
	err     error
}

var _ PositionReader = (*SqlitePositionReader)(nil)

func newSqlitePositionReader(ctx context.Context, db *sql.DB, flightID int64, opts ...ReaderOption) (*SqlitePositionReader, error) {
	r := &SqlitePositionReader{
		db:       db,
		flightID: flightID,
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.init(ctx); err != nil {
		return nil, fmt.Errorf("initializing reader: %w", err)
	}
	return r, nil
}

func (r *SqlitePositionReader) init(ctx context.Context) error {
	if r.flightID <= 0 {
		return errors.New("flight ID required")
	}

	steps := []struct {
		msg string
		fn  func(context.Context) error
	}{
		{msg: "loading flight", fn: r.loadFlight},
		{msg: "initializing filters", fn: r.initFilters},
		{msg: "initializing query", fn: r.initQuery},
	}
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			return fmt.Errorf("%s: %w", s.msg, err)
		}
	}
	return nil
}

func (r *SqlitePositionReader) loadFlight(ctx context.Context) (err error) {
	stmt, err := r.db.PrepareContext(ctx, selectFlightSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	if r.flight, err = scanFlight(stmt.QueryRowContext(ctx, r.flightID)); err != nil {
		return fmt.Errorf("querying flight: %w", err)
	}
	return
}

func (r *SqlitePositionReader) initFilters(ctx context.Context) (err error) {
	if r.startTime != nil && r.endTime != nil {
		if r.startTime.After(*r.endTime) {
			return fmt.Errorf("start time %s is after end time %s", r.startTime, r.endTime)
		}
		return nil
	}

	stmt, err := r.db.PrepareContext(ctx, selectTimeBoundsSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	var startTime, endTime sqliteTime
	if err = stmt.QueryRowContext(ctx, r.flightID).Scan(&startTime, &endTime); err != nil {
		return fmt.Errorf("scanning time bounds: %w", err)
	}

	if r.startTime == nil {
		r.startTime = &startTime.Time
	}
	if r.endTime == nil {
		r.endTime = &endTime.Time
	}
	return nil
}

func (r *SqlitePositionReader) initQuery(ctx context.Context) error {
	rows, err := r.db.QueryContext(ctx, selectPositionsSQL, r.flightID, r.startTime.UTC(), r.endTime.UTC())
	if err != nil {
		return fmt.Errorf("querying positions: %w", err)
	}

	r.rows = rows
	return nil
}

func (r *SqlitePositionReader) Flight() *Flight {
	return r.flight
}

func (r *SqlitePositionReader) Next(ctx context.Context) bool {
	if r.err != nil || r.rows == nil {
		return false
	}

	select {
	case <-ctx.Done():
		r.err = ctx.Err()
		return false
	default:
	}

	if !r.rows.Next() {
		return false
	}

	var rec PositionRecord
	var pos telemetry.Position
	if r.err = r.rows.Scan(&rec.Time, &pos.Latitude, &pos.Longitude, &pos.Altitude, &pos.Airspeed); r.err != nil {
		r.err = fmt.Errorf("scanning position: %w", r.err)
		return false
	}

	rec.Position = pos
	r.current = rec
	return true
}

func (r *SqlitePositionReader) Current() PositionRecord {
	return r.current
}

func (r *SqlitePositionReader) Error() error {
	if r.err != nil {
		return r.err
	}
	if r.rows != nil {
		return r.rows.Err()
	}
	return nil
}

func (r *SqlitePositionReader) Close() error {
	if r.rows == nil {
		return nil
	}

	err := r.rows.Close()
	r.rows = nil
	return err
}
