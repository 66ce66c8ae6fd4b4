// Package kmllive serves the last accepted position as a KML document that
// Google Earth refreshes through a network link.
package kmllive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/twpayne/go-kml"

	"github.com/roman-kulish/flight-logger/internal/telemetry"
)

const (
	DefaultPort = 2020

	// RefreshInterval is how often the network link reloads the dynamic
	// document.
	RefreshInterval = 5 * time.Second

	ContentType = "application/vnd.google-earth.kml+xml"

	shutdownTimeout = 5 * time.Second
)

// Placeholder is reported before any position was accepted.
var Placeholder = telemetry.Position{
	Latitude:  24.999979,
	Longitude: -70.999997,
	Altitude:  -10,
}

// WithLogger sets the logger for the server
func WithLogger(logger *slog.Logger) func(*Server) {
	return func(s *Server) {
		s.logger = logger.With(slog.String("sink", "kml-live"))
	}
}

// WithPosition shares the position cell with another reader.
func WithPosition(latest *telemetry.Latest) func(*Server) {
	return func(s *Server) {
		s.position = latest
	}
}

// Server is a live KML sink. The only state shared with the HTTP handlers
// is the position cell.
type Server struct {
	addr     string
	logger   *slog.Logger
	position *telemetry.Latest
	entry    []byte

	server   *http.Server
	listener net.Listener
	done     chan struct{}
}

// New creates a live server bound to the loopback interface and port. It
// does not listen until Start is called.
func New(port int, options ...func(*Server)) (*Server, error) {
	if port < 0 || port > 65535 {
		return nil, fmt.Errorf("invalid port %d", port)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	s := Server{
		addr:     net.JoinHostPort("127.0.0.1", strconv.Itoa(port)),
		logger:   logger,
		position: &telemetry.Latest{},
	}

	for _, option := range options {
		option(&s)
	}

	entry, err := entryDocument("http://" + s.addr + "/live/dynamic")
	if err != nil {
		return nil, fmt.Errorf("creating entry document: %w", err)
	}
	s.entry = entry

	return &s, nil
}

// Start listens and serves in the background.
func (s *Server) Start() error {
	if s.server != nil {
		return errors.New("server already started")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.addr, err)
	}

	s.listener = listener
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)

		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(fmt.Sprintf("serving: %s", err.Error()))
		}
	}()

	s.logger.Info("live server started", slog.String("url", "http://"+listener.Addr().String()+"/live"))
	return nil
}

// Addr returns the address the server listens on once started, or the
// configured address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Handler serves /live and /live/dynamic.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /live", s.handleEntry)
	mux.HandleFunc("GET /live/dynamic", s.handleDynamic)
	return mux
}

func (s *Server) handleEntry(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", ContentType)
	_, _ = w.Write(s.entry)
}

func (s *Server) handleDynamic(w http.ResponseWriter, _ *http.Request) {
	pos, _, ok := s.position.Get()
	if !ok {
		pos = Placeholder
	}

	p, err := dynamicDocument(pos)
	if err != nil {
		s.logger.Error(fmt.Sprintf("creating dynamic document: %s", err.Error()))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", ContentType)
	_, _ = w.Write(p)
}

func (s *Server) Name() string {
	return "kml-live"
}

func (s *Server) LogPosition(at time.Time, pos telemetry.Position) error {
	s.position.Set(at, pos)
	return nil
}

func (s *Server) NewLog() error {
	return nil
}

// Close stops the server, waiting for in-flight requests.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := s.server.Shutdown(ctx)
	<-s.done

	s.server = nil
	s.listener = nil
	if err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}

	s.logger.Info("live server stopped")
	return nil
}

func entryDocument(href string) ([]byte, error) {
	doc := kml.KML(kml.Document(
		kml.NetworkLink(
			kml.Name(fmt.Sprintf("Refreshes every %d seconds", int(RefreshInterval.Seconds()))),
			kml.Link(
				kml.Href(href),
				kml.RefreshMode(kml.RefreshModeOnInterval),
				kml.RefreshInterval(RefreshInterval.Seconds()),
			),
		),
	))

	var buf bytes.Buffer
	if err := doc.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func dynamicDocument(pos telemetry.Position) ([]byte, error) {
	doc := kml.KML(kml.Document(
		kml.Placemark(
			kml.Name(fmt.Sprintf("Live location (%.0f feet)", pos.Altitude)),
			kml.Visibility(true),
			kml.Point(
				kml.AltitudeMode(kml.AltitudeModeAbsolute),
				kml.Coordinates(kml.Coordinate{
					Lon: pos.Longitude,
					Lat: pos.Latitude,
					Alt: pos.AltitudeMeters(),
				}),
			),
		),
	))

	var buf bytes.Buffer
	if err := doc.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
