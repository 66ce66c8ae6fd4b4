package app

import (
	"context"
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/flight-logger/internal/flightlog/csvlog"
	"github.com/roman-kulish/flight-logger/internal/storage"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	var track *Track
	var err error
	if config.CSVPath != "" {
		track, err = readCSV(config, logger)
	} else {
		track, err = readFlight(ctx, config, logger)
	}
	if err != nil {
		return err
	}

	if track.Len() == 0 {
		return errors.New("no positions to draw")
	}

	logger.Info("finished reading positions",
		slog.Group("stats",
			slog.String("start", track.Start.In(config.TimeZone).Format(time.DateTime)),
			slog.String("end", track.End.In(config.TimeZone).Format(time.DateTime)),
			slog.String("distance", formatDistance(track.Distance)),
			slog.String("minAltitude", formatAltitude(track.Altitude.Min)),
			slog.String("maxAltitude", formatAltitude(track.Altitude.Max)),
			slog.Int("positions", track.Len()),
		))

	logger.Debug("track bounds",
		slog.Float64("minLatitude", track.MinLatitude),
		slog.Float64("maxLatitude", track.MaxLatitude),
		slog.Float64("minLongitude", track.MinLongitude),
		slog.Float64("maxLongitude", track.MaxLongitude),
	)

	renderer, err := NewTrackRenderer(RenderConfig{
		Width:         config.Width,
		Height:        config.Height,
		Location:      config.TimeZone,
		ColorTheme:    config.Theme,
		NoAnnotations: config.NoAnnotations,
	})
	if err != nil {
		return fmt.Errorf("creating track renderer: %w", err)
	}

	logger.Info("rendering track",
		slog.Group("image",
			slog.String("destination", config.OutputFile),
			slog.String("theme", string(config.Theme)),
			slog.Int("width", config.Width),
			slog.Int("height", config.Height),
		))

	img, err := renderer.Render(track)
	if err != nil {
		return fmt.Errorf("rendering track: %w", err)
	}

	out, err := os.Create(config.OutputFile)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}

	if err = png.Encode(out, img); err != nil {
		_ = out.Close()
		return fmt.Errorf("encoding image: %w", err)
	}
	if err = out.Close(); err != nil {
		return fmt.Errorf("closing output file: %w", err)
	}

	if stat, err := os.Stat(config.OutputFile); err == nil {
		logger.Info("image written", slog.String("size", humanize.Bytes(uint64(stat.Size()))))
	}
	return nil
}

func readCSV(config *Config, logger *slog.Logger) (*Track, error) {
	records, err := csvlog.ReadFile(config.CSVPath)
	if err != nil {
		return nil, fmt.Errorf("reading flight log: %w", err)
	}

	logger.Info("reading flight log", slog.String("path", config.CSVPath))

	track := NewTrack()
	for _, rec := range records {
		if config.StartTime != nil && rec.Time.Before(*config.StartTime) {
			continue
		}
		if config.EndTime != nil && rec.Time.After(*config.EndTime) {
			continue
		}
		track.Add(rec.Time, rec.Position)
	}

	return track, nil
}

func readFlight(ctx context.Context, config *Config, logger *slog.Logger) (*Track, error) {
	if _, err := os.Stat(config.DBPath); err != nil {
		return nil, fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store := storage.NewSqliteStore(config.DBPath)
	defer store.Close()

	var opts []storage.ReaderOption
	var filters []any
	switch {
	case config.StartTime != nil && config.EndTime != nil:
		opts = append(opts, storage.WithTimeRange(config.StartTime.UTC(), config.EndTime.UTC()))

		filters = append(filters,
			slog.String("start", config.StartTime.UTC().Format(time.DateTime)),
			slog.String("end", config.EndTime.UTC().Format(time.DateTime)))

	case config.StartTime != nil:
		opts = append(opts, storage.WithStartTime(config.StartTime.UTC()))
		filters = append(filters, slog.String("start", config.StartTime.UTC().Format(time.DateTime)))

	case config.EndTime != nil:
		opts = append(opts, storage.WithEndTime(config.EndTime.UTC()))
		filters = append(filters, slog.String("end", config.EndTime.UTC().Format(time.DateTime)))
	}

	logger.Info("reader configuration", append(filters, slog.Int64("flight", config.FlightID))...)

	iter, err := store.ReadPositions(ctx, config.FlightID, opts...)
	if err != nil {
		return nil, fmt.Errorf("reading flight: %w", err)
	}
	defer iter.Close()

	track := NewTrack()
	for iter.Next(ctx) {
		rec := iter.Current()
		track.Add(rec.Time, rec.Position)
	}
	if err = iter.Error(); err != nil {
		return nil, fmt.Errorf("reading positions: %w", err)
	}

	return track, nil
}
