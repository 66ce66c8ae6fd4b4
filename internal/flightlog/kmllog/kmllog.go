// Package kmllog writes accepted positions as a KML track document with
// start, full stop and end markers.
package kmllog

import (
	"bytes"
	"fmt"
	"image/color"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/twpayne/go-kml"
	"github.com/twpayne/go-kml/icon"

	"github.com/roman-kulish/flight-logger/internal/telemetry"
)

const (
	// FileTimeLayout names log files and their folder after the time of the
	// first position.
	FileTimeLayout = "2006-01-02 15.04.05"

	DefaultFlushInterval = 5 * time.Second

	// label layouts for the first marker of a day and the ones after it
	longLabelLayout  = "Monday, 02 January 2006 15:04:05"
	shortLabelLayout = "15:04:05"
)

const (
	styleFlightPath = "flightpath"
	styleStart      = "start"
	styleEnd        = "end"
	styleFullStop   = "fullstop"
)

// WithLogger sets the logger for the writer
func WithLogger(logger *slog.Logger) func(*Writer) {
	return func(w *Writer) {
		w.logger = logger.With(slog.String("sink", "kml"))
	}
}

// WithFlushInterval sets how often the document is rewritten while a log
// is open. The document is always written when the log ends.
func WithFlushInterval(interval time.Duration) func(*Writer) {
	return func(w *Writer) {
		w.flushInterval = interval
	}
}

type marker struct {
	label string
	style string
	at    kml.Coordinate
}

type track struct {
	name    string
	path    string
	coords  []kml.Coordinate
	markers []marker
}

// Writer is a KML sink. Each log is a document holding one folder with the
// flight path and its markers.
type Writer struct {
	dir           string
	flushInterval time.Duration
	logger        *slog.Logger

	track        *track
	lastPosition *kml.Coordinate
	lastTime     time.Time
	lastSpeed    float64
	lastFlush    time.Time
	lastLabelDay time.Time
}

// New creates a writer storing logs in dir. The directory is created on
// the first flush.
func New(dir string, options ...func(*Writer)) *Writer {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	w := Writer{
		dir:           dir,
		flushInterval: DefaultFlushInterval,
		logger:        logger,
	}

	for _, option := range options {
		option(&w)
	}

	return &w
}

func (w *Writer) Name() string {
	return "kml"
}

// Path returns the path of the current log file, or an empty string.
func (w *Writer) Path() string {
	if w.track == nil {
		return ""
	}
	return w.track.path
}

func (w *Writer) LogPosition(at time.Time, pos telemetry.Position) error {
	if w.track == nil {
		name := at.Format(FileTimeLayout)
		w.track = &track{
			name: name,
			path: filepath.Join(w.dir, name+".kml"),
		}
	}

	coord := kml.Coordinate{
		Lon: pos.Longitude,
		Lat: pos.Latitude,
		Alt: pos.AltitudeMeters(),
	}

	if w.lastPosition == nil {
		w.addMarker(at, coord, "Start", styleStart)
	}
	if w.lastSpeed > 0 && pos.Airspeed == 0 {
		w.addMarker(at, coord, "Full stop", styleFullStop)
	}

	w.lastPosition = &coord
	w.lastTime = at
	w.lastSpeed = pos.Airspeed
	w.track.coords = append(w.track.coords, coord)

	if at.Sub(w.lastFlush) < w.flushInterval {
		return nil
	}
	if err := w.flush(); err != nil {
		return err
	}

	w.lastFlush = at
	return nil
}

func (w *Writer) addMarker(at time.Time, coord kml.Coordinate, label, style string) {
	w.track.markers = append(w.track.markers, marker{
		label: fmt.Sprintf("%s (%s)", label, w.labelTime(at)),
		style: style,
		at:    coord,
	})
}

// labelTime returns the full date for the first label of a day and the
// time of day for the rest.
func (w *Writer) labelTime(at time.Time) string {
	y, m, d := at.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, at.Location())

	if day.Equal(w.lastLabelDay) {
		return at.Format(shortLabelLayout)
	}

	w.lastLabelDay = day
	return at.Format(longLabelLayout)
}

// NewLog ends the current track with an end marker and writes it. The next
// position starts a new document.
func (w *Writer) NewLog() error {
	if w.track == nil {
		return nil
	}

	err := w.finish()
	w.track = nil
	return err
}

func (w *Writer) Close() error {
	return w.NewLog()
}

func (w *Writer) finish() error {
	if w.lastPosition != nil {
		w.addMarker(w.lastTime, *w.lastPosition, "End", styleEnd)
		w.lastPosition = nil
	}

	if err := w.flush(); err != nil {
		return err
	}

	w.logger.Info("log closed",
		slog.String("path", w.track.path),
		slog.String("points", humanize.Comma(int64(len(w.track.coords)))))
	return nil
}

func (w *Writer) flush() error {
	var buf bytes.Buffer
	if err := document(w.track.name, w.track.coords, w.track.markers...).WriteIndent(&buf, "", "  "); err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	if err := os.WriteFile(w.track.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing document: %w", err)
	}

	w.logger.Debug("document written",
		slog.String("path", w.track.path),
		slog.String("size", humanize.Bytes(uint64(buf.Len()))))
	return nil
}

// document builds the KML document of one track.
func document(name string, coords []kml.Coordinate, markers ...marker) kml.Element {
	folder := kml.Folder(
		kml.Name(name),
		kml.Open(true),
		kml.Placemark(
			kml.Name("Flight path"),
			kml.StyleURL("#"+styleFlightPath),
			kml.LineString(
				kml.Tessellate(false),
				kml.AltitudeMode(kml.AltitudeModeAbsolute),
				kml.Coordinates(coords...),
			),
		),
	)

	for _, m := range markers {
		folder.Add(kml.Placemark(
			kml.Name(m.label),
			kml.StyleURL("#"+m.style),
			kml.Visibility(true),
			kml.Point(
				kml.AltitudeMode(kml.AltitudeModeAbsolute),
				kml.Coordinates(m.at),
			),
		))
	}

	doc := kml.Document()
	doc.Add(styles()...)
	doc.Add(folder)

	return kml.KML(doc)
}

func styles() []kml.Element {
	hotSpot := kml.HotSpot(kml.Vec2{X: 31, Y: 1, XUnits: kml.UnitsPixels, YUnits: kml.UnitsPixels})

	elements := styleMap(styleFlightPath, kml.LineStyle(
		kml.Color(color.RGBA{R: 138, G: 10, B: 10, A: 255}),
		kml.Width(5),
	))

	elements = append(elements, styleMap(styleStart,
		iconStyle(icon.PaddleHref("grn-circle"), hotSpot),
		listStyle(icon.PaddleHref("grn-circle-lv")),
	)...)

	elements = append(elements, styleMap(styleEnd,
		iconStyle(icon.PaddleHref("red-square"), hotSpot),
		listStyle(icon.PaddleHref("red-square-lv")),
	)...)

	elements = append(elements, styleMap(styleFullStop,
		iconStyle(icon.ShapeHref("placemark_circle"), hotSpot),
	)...)

	return elements
}

// styleMap returns a style map using the same style in both states,
// followed by that style.
func styleMap(id string, children ...kml.Element) []kml.Element {
	normal := kml.SharedStyle(id+"-normal", children...)

	return []kml.Element{
		kml.SharedStyleMap(id,
			kml.Pair(kml.Key(kml.StyleStateNormal), kml.StyleURL(normal.URL())),
			kml.Pair(kml.Key(kml.StyleStateHighlight), kml.StyleURL(normal.URL())),
		),
		normal,
	}
}

func iconStyle(href string, hotSpot kml.Element) kml.Element {
	return kml.IconStyle(
		kml.Scale(1.1),
		kml.Icon(kml.Href(href)),
		hotSpot,
	)
}

func listStyle(href string) kml.Element {
	return kml.ListStyle(kml.ItemIcon(kml.Href(href)))
}
