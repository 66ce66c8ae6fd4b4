// Package flightlog decides which simulator positions are worth logging
// and fans accepted positions out to the configured sinks.
package flightlog

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/roman-kulish/flight-logger/internal/geo"
	"github.com/roman-kulish/flight-logger/internal/telemetry"
	"github.com/roman-kulish/flight-logger/internal/timeutil"
)

const (
	// StoppedAirspeed is the airspeed, in knots, below which a stationary
	// aircraft is considered stopped.
	StoppedAirspeed = 0.1

	DefaultInterval = time.Second
	DefaultDistance = 1.0
)

// Decision is the outcome of HandlePosition.
type Decision int

const (
	DroppedPaused Decision = iota
	DroppedNotRunning
	DroppedWaitingForMovement
	DroppedTooClose
	DroppedTooSoon
	Logged
	LoggedAfterSplit
)

func (d Decision) String() string {
	switch d {
	case DroppedPaused:
		return "paused"
	case DroppedNotRunning:
		return "not_running"
	case DroppedWaitingForMovement:
		return "waiting_for_movement"
	case DroppedTooClose:
		return "too_close"
	case DroppedTooSoon:
		return "too_soon"
	case Logged:
		return "logged"
	case LoggedAfterSplit:
		return "logged_after_split"
	default:
		return "unknown"
	}
}

// Accepted reports whether the position was forwarded to the sinks.
func (d Decision) Accepted() bool {
	return d == Logged || d == LoggedAfterSplit
}

// Config controls which positions are logged.
type Config struct {
	// Interval is the minimum time between two logged positions.
	Interval time.Duration

	// Distance is the minimum distance in metres between two logged
	// positions. A full stop is logged regardless.
	Distance float64

	// WaitForMovement drops positions until the aircraft first moves.
	WaitForMovement bool

	// NewLogWhenIdle starts a new log when the aircraft moves again after
	// this long without a logged position. Zero disables splitting.
	NewLogWhenIdle time.Duration
}

// Metrics receives engine counters.
type Metrics interface {
	RecordDecision(decision string)
	RecordSinkError(sink string)
	RecordSplit()
}

// WithClock sets the clock used to timestamp positions
func WithClock(clock timeutil.Clock) func(*Engine) {
	return func(e *Engine) {
		e.clock = clock
	}
}

// WithLogger sets the logger for the engine
func WithLogger(logger *slog.Logger) func(*Engine) {
	return func(e *Engine) {
		e.logger = logger.With(slog.String("component", "engine"))
	}
}

// WithMetrics sets the engine metrics sink
func WithMetrics(m Metrics) func(*Engine) {
	return func(e *Engine) {
		e.metrics = m
	}
}

// Engine filters positions and forwards accepted ones to its sinks. It is
// safe for concurrent use.
type Engine struct {
	config  Config
	sinks   []Sink
	clock   timeutil.Clock
	logger  *slog.Logger
	metrics Metrics

	mu                 sync.Mutex
	paused             bool
	running            bool
	waitingForMovement bool
	last               telemetry.Position
	lastTime           time.Time
	lastActivity       time.Time
}

// NewEngine creates an engine in the paused, not running state.
func NewEngine(config Config, sinks []Sink, options ...func(*Engine)) *Engine {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	e := Engine{
		config:             config,
		sinks:              sinks,
		clock:              timeutil.RealClock{},
		logger:             logger,
		paused:             true,
		waitingForMovement: config.WaitForMovement,
	}

	for _, option := range options {
		option(&e)
	}

	e.lastActivity = e.clock.Now()
	return &e
}

// SetPaused applies a pause event.
func (e *Engine) SetPaused(paused bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.paused = paused
	e.logger.Debug("pause state changed", slog.Bool("paused", paused))
}

// SetRunning applies a sim event. Running is true while the user is in
// control of the aircraft.
func (e *Engine) SetRunning(running bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.running = running
	e.logger.Debug("running state changed", slog.Bool("running", running))
}

// State reports the last pause and sim states received.
func (e *Engine) State() (paused, running bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused, e.running
}

// HandlePosition evaluates pos at the current clock time and forwards it to
// every sink when accepted. Sink failures are joined into the returned error
// as *SinkError values; a failing sink does not stop the others.
func (e *Engine) HandlePosition(pos telemetry.Position) (Decision, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	decision, err := e.evaluate(now, pos)

	if e.metrics != nil {
		e.metrics.RecordDecision(decision.String())
	}
	return decision, err
}

func (e *Engine) evaluate(now time.Time, pos telemetry.Position) (Decision, error) {
	if e.paused {
		return DroppedPaused, nil
	}
	if !e.running {
		return DroppedNotRunning, nil
	}

	moving := pos.Airspeed > 0
	if e.waitingForMovement && !moving {
		return DroppedWaitingForMovement, nil
	}
	e.waitingForMovement = false

	distance := geo.DistanceMeters(e.last.Point(), pos.Point())
	if distance < e.config.Distance {
		if pos.Airspeed < StoppedAirspeed {
			pos.Airspeed = 0
		}

		// still moving slowly, or still stopped
		if pos.Airspeed > 0 || e.last.Airspeed == 0 {
			return DroppedTooClose, nil
		}
	}

	var errs []error
	split := false
	if e.config.NewLogWhenIdle > 0 {
		if moving && now.Sub(e.lastActivity) >= e.config.NewLogWhenIdle {
			split = true
			errs = append(errs, e.newLog(now)...)
		}
		e.lastActivity = now
	}

	if now.Sub(e.lastTime) < e.config.Interval {
		return DroppedTooSoon, errors.Join(errs...)
	}

	e.logger.Debug("logging position",
		slog.Float64("distance", distance),
		slog.Duration("elapsed", now.Sub(e.lastTime)))

	e.last = pos
	e.lastTime = now

	for _, sink := range e.sinks {
		if err := sink.LogPosition(now, pos); err != nil {
			errs = append(errs, e.sinkError(sink, "logging position", err))
		}
	}

	if split {
		return LoggedAfterSplit, errors.Join(errs...)
	}
	return Logged, errors.Join(errs...)
}

func (e *Engine) newLog(now time.Time) []error {
	e.logger.Info("aircraft moving after idle period, starting a new log",
		slog.Duration("idle", now.Sub(e.lastActivity)))

	if e.metrics != nil {
		e.metrics.RecordSplit()
	}

	var errs []error
	for _, sink := range e.sinks {
		if err := sink.NewLog(); err != nil {
			errs = append(errs, e.sinkError(sink, "starting new log", err))
		}
	}
	return errs
}

func (e *Engine) sinkError(sink Sink, op string, err error) error {
	if e.metrics != nil {
		e.metrics.RecordSinkError(sink.Name())
	}

	return &SinkError{Sink: sink.Name(), Op: op, Err: err}
}

// NewLog asks every sink to finish its current log.
func (e *Engine) NewLog() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	for _, sink := range e.sinks {
		if err := sink.NewLog(); err != nil {
			errs = append(errs, e.sinkError(sink, "starting new log", err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink once.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	for _, sink := range e.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, e.sinkError(sink, "closing", err))
		}
	}
	e.sinks = nil

	return errors.Join(errs...)
}
