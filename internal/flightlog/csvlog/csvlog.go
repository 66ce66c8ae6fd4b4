// Package csvlog writes accepted positions to CSV files, one file per log,
// and reads them back.
package csvlog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/flight-logger/internal/telemetry"
)

// FileTimeLayout names log files after the time of their first position.
const FileTimeLayout = "2006-01-02 15.04.05"

// Header is the first row of every CSV log.
var Header = []string{"Time", "Latitude", "Longitude", "Altitude", "Airspeed"}

// WithLogger sets the logger for the writer
func WithLogger(logger *slog.Logger) func(*Writer) {
	return func(w *Writer) {
		w.logger = logger.With(slog.String("sink", "csv"))
	}
}

// Writer is a CSV sink. A log file is opened on the first position after
// creation or NewLog and appended to when it already exists.
type Writer struct {
	dir    string
	logger *slog.Logger

	file *os.File
	csv  *csv.Writer
	rows int
}

// New creates a writer storing logs in dir. The directory is created on
// the first position.
func New(dir string, options ...func(*Writer)) *Writer {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	w := Writer{
		dir:    dir,
		logger: logger,
	}

	for _, option := range options {
		option(&w)
	}

	return &w
}

func (w *Writer) Name() string {
	return "csv"
}

// Path returns the path of the open log file, or an empty string.
func (w *Writer) Path() string {
	if w.file == nil {
		return ""
	}
	return w.file.Name()
}

func (w *Writer) LogPosition(at time.Time, pos telemetry.Position) error {
	if w.file == nil {
		if err := w.open(at); err != nil {
			return err
		}
	}

	if err := w.csv.Write(Encode(at, pos)); err != nil {
		return fmt.Errorf("writing row: %w", err)
	}

	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return fmt.Errorf("flushing row: %w", err)
	}

	w.rows++
	return nil
}

func (w *Writer) open(at time.Time) (err error) {
	if err = os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	path := filepath.Join(w.dir, at.Format(FileTimeLayout)+".csv")

	exists := true
	if _, err = os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		exists = false
	} else if err != nil {
		return fmt.Errorf("checking log file: %w", err)
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}

	cw := csv.NewWriter(file)
	if !exists {
		if err = cw.Write(Header); err == nil {
			cw.Flush()
			err = cw.Error()
		}
		if err != nil {
			_ = file.Close()
			return fmt.Errorf("writing header: %w", err)
		}
	}

	w.file = file
	w.csv = cw
	w.rows = 0

	w.logger.Info("log opened", slog.String("path", path), slog.Bool("appending", exists))
	return nil
}

// NewLog closes the current file. The next position opens a new one.
func (w *Writer) NewLog() error {
	return w.close()
}

func (w *Writer) Close() error {
	return w.close()
}

func (w *Writer) close() error {
	if w.file == nil {
		return nil
	}

	file := w.file
	w.file = nil
	w.csv = nil

	var size int64
	if stat, err := file.Stat(); err == nil {
		size = stat.Size()
	}

	if err := file.Close(); err != nil {
		return fmt.Errorf("closing log file: %w", err)
	}

	w.logger.Info("log closed",
		slog.String("path", file.Name()),
		slog.Int("rows", w.rows),
		slog.String("size", humanize.Bytes(uint64(size))))
	return nil
}

// Encode formats a position as a CSV row.
func Encode(at time.Time, pos telemetry.Position) []string {
	return []string{
		at.Format(time.RFC3339Nano),
		formatFloat(pos.Latitude),
		formatFloat(pos.Longitude),
		formatFloat(pos.Altitude),
		formatFloat(pos.Airspeed),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
