package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigFromCLI(t *testing.T) {
	config, err := NewConfigFromCLI([]string{
		"--db", "flights.sqlite",
		"-s", "3",
		"-o", "out/track",
		"-t", "Marine",
		"--tz", "UTC",
		"--start", "2024-06-01T10:00:00Z",
		"--end", "2024-06-01T11:00:00Z",
		"--no-annotations",
	})
	require.NoError(t, err)

	assert.Equal(t, "flights.sqlite", config.DBPath)
	assert.Equal(t, int64(3), config.FlightID)
	assert.Equal(t, "out/track.png", config.OutputFile)
	assert.Equal(t, MarineTheme, config.Theme)
	assert.Equal(t, time.UTC, config.TimeZone)
	assert.Equal(t, time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC), *config.StartTime)
	assert.Equal(t, time.Date(2024, 6, 1, 11, 0, 0, 0, time.UTC), *config.EndTime)
	assert.True(t, config.NoAnnotations)
	assert.Equal(t, defaultWidth, config.Width)
}

func TestNewConfigFromCLI_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no input", []string{"-o", "track.png"}, "either a db path or a csv path is required"},
		{"both inputs", []string{"--db", "a", "--csv", "b", "-s", "1", "-o", "x"}, "mutually exclusive"},
		{"no flight", []string{"--db", "a", "-o", "x"}, "flight id is required"},
		{"no output", []string{"--csv", "a"}, "output file is required"},
		{"theme", []string{"--csv", "a", "-o", "x", "-t", "neon"}, "invalid color theme: neon"},
		{"size", []string{"--csv", "a", "-o", "x", "--width", "0"}, "invalid image size"},
		{"start", []string{"--csv", "a", "-o", "x", "--start", "yesterday"}, "invalid start time"},
		{"range", []string{"--csv", "a", "-o", "x", "--start", "2024-06-01T11:00:00Z", "--end", "2024-06-01T10:00:00Z"}, "end time is before start time"},
		{"time zone", []string{"--csv", "a", "-o", "x", "--tz", "Mars/Olympus"}, "invalid time zone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConfigFromCLI(tt.args)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
