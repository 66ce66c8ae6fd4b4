package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roman-kulish/flight-logger/internal/flightlog"
	"github.com/roman-kulish/flight-logger/internal/flightlog/csvlog"
	"github.com/roman-kulish/flight-logger/internal/flightlog/kmllive"
	"github.com/roman-kulish/flight-logger/internal/flightlog/kmllog"
	"github.com/roman-kulish/flight-logger/internal/metrics"
	"github.com/roman-kulish/flight-logger/internal/simconnect"
	"github.com/roman-kulish/flight-logger/internal/simconnect/replay"
	"github.com/roman-kulish/flight-logger/internal/storage"
	"github.com/roman-kulish/flight-logger/internal/timeutil"
)

const shutdownTimeout = 5 * time.Second

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	m := metrics.New(registry)

	if config.Settings.MetricsAddress != "" {
		stop, err := serveMetrics(config.Settings.MetricsAddress, registry, logger)
		if err != nil {
			return fmt.Errorf("starting metrics server: %w", err)
		}
		defer stop()
	}

	if err := os.MkdirAll(config.Outputs.Directory, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	s := supervisor{
		config:  config,
		metrics: m,
		logger:  logger,
		clock:   timeutil.RealClock{},
	}

	if config.Outputs.Enabled(FormatSQLite) {
		store := storage.NewSqliteStore(config.Outputs.DatabasePath())
		defer func() {
			if err := store.Close(); err != nil {
				logger.Error(fmt.Sprintf("closing storage: %s", err.Error()))
			}
		}()
		s.store = store
	}

	if config.Simulator.Replay != "" {
		lib, err := replay.Open(config.Simulator.Replay)
		if err != nil {
			return fmt.Errorf("opening replay: %w", err)
		}

		logger.Info("replaying flight log", slog.String("path", config.Simulator.Replay), slog.Int("positions", lib.Len()))

		s.libraries = []simconnect.Library{lib}
		s.clock = lib
		s.once = true
	} else {
		libraries, err := simconnect.LoadRuntimes()
		if err != nil {
			return fmt.Errorf("loading SimConnect: %w", err)
		}
		s.libraries = libraries
	}

	return s.run(ctx)
}

// buildSinks creates the outputs selected in config. Sinks are created per
// connection and closed by the engine.
func buildSinks(config *Config, store storage.Store, logger *slog.Logger) ([]flightlog.Sink, error) {
	var sinks []flightlog.Sink

	if config.Outputs.Enabled(FormatCSV) {
		sinks = append(sinks, csvlog.New(config.Outputs.Directory, csvlog.WithLogger(logger)))
	}

	if config.Outputs.Enabled(FormatKML) {
		sinks = append(sinks, kmllog.New(config.Outputs.Directory,
			kmllog.WithLogger(logger),
			kmllog.WithFlushInterval(time.Duration(config.Outputs.KMLFlushInterval)),
		))
	}

	if config.Outputs.Enabled(FormatSQLite) && store != nil {
		sinks = append(sinks, storage.NewSink(store, config.Settings.AppName, storage.WithLogger(logger)))
	}

	if config.Outputs.Enabled(FormatLive) {
		server, err := kmllive.New(config.Outputs.LivePort, kmllive.WithLogger(logger))
		if err != nil {
			return nil, closeSinks(sinks, fmt.Errorf("creating live server: %w", err))
		}
		if err = server.Start(); err != nil {
			return nil, closeSinks(sinks, fmt.Errorf("starting live server: %w", err))
		}
		sinks = append(sinks, server)
	}

	return sinks, nil
}

func closeSinks(sinks []flightlog.Sink, err error) error {
	errs := []error{err}
	for _, sink := range sinks {
		if closeErr := sink.Close(); closeErr != nil {
			errs = append(errs, closeErr)
		}
	}
	return errors.Join(errs...)
}

func serveMetrics(addr string, registry *prometheus.Registry, logger *slog.Logger) (func(), error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(fmt.Sprintf("serving metrics: %s", err.Error()))
		}
	}()

	logger.Info("metrics server started", slog.String("address", listener.Addr().String()))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("stopping metrics server: %s", err.Error()))
		}
	}, nil
}
