package flightlog

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/roman-kulish/flight-logger/internal/simconnect"
	"github.com/roman-kulish/flight-logger/internal/telemetry"
)

// WithRecorderLogger sets the logger for the recorder
func WithRecorderLogger(logger *slog.Logger) func(*Recorder) {
	return func(r *Recorder) {
		r.logger = logger.With(slog.String("component", "recorder"))
	}
}

// WithPositionDefinition overrides the position definition requested from
// the simulator.
func WithPositionDefinition(def *simconnect.Definition[telemetry.Position]) func(*Recorder) {
	return func(r *Recorder) {
		r.definition = def
	}
}

// Recorder feeds simulator events and positions of one connection into an
// engine. Everything it receives arrives on the client's dispatcher
// goroutine.
type Recorder struct {
	engine     *Engine
	logger     *slog.Logger
	definition *simconnect.Definition[telemetry.Position]

	registrations []*simconnect.Registration

	stopOnce sync.Once
	stopErr  error
}

// StartRecorder subscribes engine to the pause and sim events and to the
// user aircraft position of client. The client must be open.
func StartRecorder(client *simconnect.Client, engine *Engine, options ...func(*Recorder)) (*Recorder, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	r := Recorder{
		engine: engine,
		logger: logger,
	}

	for _, option := range options {
		option(&r)
	}

	if r.definition == nil {
		def, err := telemetry.NewPositionDefinition()
		if err != nil {
			return nil, fmt.Errorf("creating position definition: %w", err)
		}
		r.definition = def
	}

	reg, err := client.SubscribeToSystemEvent(simconnect.SystemEventPause, func(args simconnect.SystemEventArgs) {
		engine.SetPaused(args.State)
	})
	if err != nil {
		return nil, r.abort(fmt.Errorf("subscribing to pause event: %w", err))
	}
	r.registrations = append(r.registrations, reg)

	reg, err = client.SubscribeToSystemEvent(simconnect.SystemEventSim, func(args simconnect.SystemEventArgs) {
		engine.SetRunning(args.State)
	})
	if err != nil {
		return nil, r.abort(fmt.Errorf("subscribing to sim event: %w", err))
	}
	r.registrations = append(r.registrations, reg)

	reg, err = simconnect.AddDefinition(client, r.definition, r.handlePosition)
	if err != nil {
		return nil, r.abort(fmt.Errorf("adding position definition: %w", err))
	}
	r.registrations = append(r.registrations, reg)

	r.logger.Info("recording started")
	return &r, nil
}

func (r *Recorder) handlePosition(pos telemetry.Position) {
	decision, err := r.engine.HandlePosition(pos)
	if err != nil {
		r.logger.Error(err.Error(), slog.String("decision", decision.String()))
	}
}

func (r *Recorder) abort(err error) error {
	if stopErr := r.Stop(); stopErr != nil {
		return errors.Join(err, stopErr)
	}
	return err
}

// Stop unregisters from the simulator and closes the sinks. Only the first
// call has any effect.
func (r *Recorder) Stop() error {
	r.stopOnce.Do(func() {
		var errs []error
		for _, reg := range r.registrations {
			if err := reg.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		r.registrations = nil

		if err := r.engine.Close(); err != nil {
			errs = append(errs, err)
		}

		r.stopErr = errors.Join(errs...)
		r.logger.Info("recording stopped")
	})

	return r.stopErr
}
