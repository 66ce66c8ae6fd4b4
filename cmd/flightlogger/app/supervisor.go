package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roman-kulish/flight-logger/internal/flightlog"
	"github.com/roman-kulish/flight-logger/internal/metrics"
	"github.com/roman-kulish/flight-logger/internal/simconnect"
	"github.com/roman-kulish/flight-logger/internal/storage"
	"github.com/roman-kulish/flight-logger/internal/timeutil"
)

// supervisor keeps a recorder attached to the simulator. It connects,
// records until the simulator quits, and connects again after the retry
// interval.
type supervisor struct {
	config    *Config
	libraries []simconnect.Library
	store     storage.Store
	metrics   *metrics.Metrics
	logger    *slog.Logger
	clock     timeutil.Clock

	// once stops after the first session, as a replay ends for good.
	once bool
}

func (s *supervisor) run(ctx context.Context) error {
	retry := time.Duration(s.config.Settings.RetryInterval)

	for {
		client, err := simconnect.Connect(ctx, s.config.Settings.AppName, s.libraries,
			simconnect.WithLogger(s.logger),
			simconnect.WithMetrics(s.metrics),
		)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if s.once {
				return fmt.Errorf("connecting: %w", err)
			}

			s.logger.Warn("could not connect to the simulator, retrying", slog.Duration("retry", retry), slog.String("error", err.Error()))
		} else {
			s.metrics.SetConnected(true)
			err = s.record(ctx, client)
			s.metrics.SetConnected(false)

			if err != nil {
				return err
			}
			if ctx.Err() != nil || s.once {
				return nil
			}

			s.logger.Warn("disconnected from the simulator, reconnecting", slog.Duration("retry", retry))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(retry):
		}
	}
}

// record runs one session on an open client and returns once the client is
// done or ctx is cancelled. Failures of the simulator end the session, not
// the application.
func (s *supervisor) record(ctx context.Context, client *simconnect.Client) error {
	defer func() {
		if err := client.Close(); err != nil {
			s.logger.Error(fmt.Sprintf("closing connection: %s", err.Error()))
		}
	}()

	sinks, err := buildSinks(s.config, s.store, s.logger)
	if err != nil {
		return fmt.Errorf("creating outputs: %w", err)
	}

	engine := flightlog.NewEngine(s.engineConfig(), sinks,
		flightlog.WithClock(s.clock),
		flightlog.WithLogger(s.logger),
		flightlog.WithMetrics(s.metrics),
	)

	recorder, err := flightlog.StartRecorder(client, engine, flightlog.WithRecorderLogger(s.logger))
	if err != nil {
		s.logger.Error(fmt.Sprintf("starting recorder: %s", err.Error()))
		return nil
	}

	s.logger.Info("connected to the simulator")

	select {
	case <-ctx.Done():
	case <-client.Done():
		if err := client.Err(); err != nil && !errors.Is(err, simconnect.ErrQuit) {
			s.logger.Error(fmt.Sprintf("connection lost: %s", err.Error()))
		}
	}

	if err := recorder.Stop(); err != nil {
		s.logger.Error(fmt.Sprintf("stopping recorder: %s", err.Error()))
	}

	return nil
}

func (s *supervisor) engineConfig() flightlog.Config {
	return flightlog.Config{
		Interval:        time.Duration(s.config.Recording.Interval),
		Distance:        s.config.Recording.Distance,
		WaitForMovement: s.config.Recording.WaitForMovement,
		NewLogWhenIdle:  time.Duration(s.config.Recording.NewLogWhenIdle),
	}
}
