package csvlog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/roman-kulish/flight-logger/internal/telemetry"
)

// ErrInvalidHeader is returned when the first row is not Header.
var ErrInvalidHeader = errors.New("invalid CSV log header")

// Record is one row of a CSV log.
type Record struct {
	Time     time.Time
	Position telemetry.Position
}

// Reader reads records from a CSV log.
type Reader struct {
	csv    *csv.Reader
	header bool
	line   int
}

// NewReader creates a reader over r. The header is validated on the first
// Read.
func NewReader(r io.Reader) *Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)
	cr.ReuseRecord = true

	return &Reader{csv: cr}
}

// Read returns the next record, or io.EOF at the end of the log.
func (r *Reader) Read() (Record, error) {
	if !r.header {
		row, err := r.csv.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return Record{}, ErrInvalidHeader
			}
			return Record{}, fmt.Errorf("reading header: %w", err)
		}
		if !slices.Equal(row, Header) {
			return Record{}, ErrInvalidHeader
		}

		r.header = true
		r.line = 1
	}

	row, err := r.csv.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("reading row: %w", err)
	}
	r.line++

	rec, err := Decode(row)
	if err != nil {
		return Record{}, fmt.Errorf("line %d: %w", r.line, err)
	}
	return rec, nil
}

// Decode parses a CSV row produced by Encode.
func Decode(row []string) (rec Record, err error) {
	if len(row) != len(Header) {
		return rec, fmt.Errorf("expected %d columns, got %d", len(Header), len(row))
	}

	if rec.Time, err = time.Parse(time.RFC3339Nano, row[0]); err != nil {
		return rec, fmt.Errorf("parsing time: %w", err)
	}

	fields := []*float64{
		&rec.Position.Latitude,
		&rec.Position.Longitude,
		&rec.Position.Altitude,
		&rec.Position.Airspeed,
	}
	for i, f := range fields {
		if *f, err = strconv.ParseFloat(row[i+1], 64); err != nil {
			return rec, fmt.Errorf("parsing %s: %w", Header[i+1], err)
		}
	}

	return rec, nil
}

// ReadFile reads every record of the CSV log at path.
func ReadFile(path string) (records []Record, err error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	defer func() {
		if cErr := file.Close(); cErr != nil && err == nil {
			err = fmt.Errorf("closing log file: %w", cErr)
		}
	}()

	r := NewReader(file)
	for {
		rec, rErr := r.Read()
		if errors.Is(rErr, io.EOF) {
			return records, nil
		}
		if rErr != nil {
			return nil, rErr
		}
		records = append(records, rec)
	}
}
