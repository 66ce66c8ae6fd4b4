package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// SqliteStore is a Store backed by a SQLite database file. Writes and reads
// use separate connections; the read connection is read only.
type SqliteStore struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

var _ Store = (*SqliteStore)(nil)

// NewSqliteStore creates a store for the database at dbPath. The database
// and its schema are created on the first write.
func NewSqliteStore(dbPath string) *SqliteStore {
	return &SqliteStore{dbPath: dbPath}
}

func runSQLCommand(db *sql.DB, sql string) error {
	_, err := db.Exec(sql)
	return err
}

func (s *SqliteStore) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}

		if err = runSQLCommand(db, initSchemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *SqliteStore) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

func (s *SqliteStore) CreateFlight(ctx context.Context, startTime time.Time, source string) (flight *Flight, err error) {
	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, insertFlightSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	f := Flight{
		UUID:      uuid.New(),
		StartTime: startTime.UTC(),
		Source:    source,
	}

	result, err := stmt.ExecContext(ctx, f.UUID.String(), f.StartTime, f.Source)
	if err != nil {
		err = fmt.Errorf("inserting flight: %w", err)
		return
	}

	if f.ID, err = result.LastInsertId(); err != nil {
		err = fmt.Errorf("getting flight ID: %w", err)
		return
	}

	return &f, nil
}

func (s *SqliteStore) Flight(ctx context.Context, id int64) (flight *Flight, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, selectFlightSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	if flight, err = scanFlight(stmt.QueryRowContext(ctx, id)); err != nil {
		err = fmt.Errorf("scanning flight: %w", err)
	}
	return
}

func (s *SqliteStore) Flights(ctx context.Context) (flights []*Flight, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectFlightsSQL)
	if err != nil {
		err = fmt.Errorf("querying flights: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var flight *Flight
		if flight, err = scanFlight(rows); err != nil {
			err = fmt.Errorf("scanning flight: %w", err)
			return
		}
		flights = append(flights, flight)
	}

	err = rows.Err()
	return
}

func scanFlight(row interface{ Scan(...any) error }) (*Flight, error) {
	var f Flight
	var id string
	if err := row.Scan(&f.ID, &id, &f.StartTime, &f.Source); err != nil {
		return nil, err
	}

	var err error
	if f.UUID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parsing UUID: %w", err)
	}
	return &f, nil
}

func (s *SqliteStore) StorePositions(ctx context.Context, flightID int64, positions []PositionRecord) (err error) {
	if len(positions) == 0 {
		return
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	values := make([]any, 0, len(positions)*6)
	valuesPlaceholder := "(?, ?, ?, ?, ?, ?)"

	var sb strings.Builder
	sb.WriteString(insertPositionSQL)

	for i, p := range positions {
		values = append(values,
			flightID,
			p.Time.UTC(),
			p.Position.Latitude,
			p.Position.Longitude,
			p.Position.Altitude,
			p.Position.Airspeed,
		)

		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(valuesPlaceholder)
	}

	if _, err = tx.ExecContext(ctx, sb.String(), values...); err != nil {
		return fmt.Errorf("batch inserting positions: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// ReadPositions returns a reader over the positions of a flight in time
// order. The reader must be closed after use.
func (s *SqliteStore) ReadPositions(ctx context.Context, flightID int64, opts ...ReaderOption) (*SqlitePositionReader, error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}
	return newSqlitePositionReader(ctx, db, flightID, opts...)
}

func (s *SqliteStore) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.writeDB != nil {
			_ = runSQLCommand(s.writeDB, initIndexesSQL)

			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		s.closeErr = errors.Join(writeErr, readErr)
	})

	return s.closeErr
}
