package app

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const sampleConfig = `
settings:
  logLevel: debug
  retryInterval: 10s
  metricsAddress: 127.0.0.1:9090
recording:
  interval: 2s
  distance: 5
  waitForMovement: true
  newLogWhenIdle: 5m
outputs:
  directory: /tmp/flights
  formats: [KML, csv, live]
  kmlFlushInterval: 1s
  livePort: 2021
`

func TestParseConfig(t *testing.T) {
	config, err := ParseConfig(strings.NewReader(sampleConfig))
	require.NoError(t, err)

	level, err := config.Settings.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	assert.Equal(t, DefaultAppName, config.Settings.AppName)
	assert.Equal(t, Duration(10*time.Second), config.Settings.RetryInterval)
	assert.Equal(t, "127.0.0.1:9090", config.Settings.MetricsAddress)

	assert.Equal(t, RecordingConfig{
		Interval:        Duration(2 * time.Second),
		Distance:        5,
		WaitForMovement: true,
		NewLogWhenIdle:  Duration(5 * time.Minute),
	}, config.Recording)

	assert.Equal(t, "/tmp/flights", config.Outputs.Directory)
	assert.Equal(t, []Format{FormatCSV, FormatKML, FormatLive}, config.Outputs.Formats)
	assert.Equal(t, Duration(time.Second), config.Outputs.KMLFlushInterval)
	assert.Equal(t, 2021, config.Outputs.LivePort)
	assert.Equal(t, filepath.Join("/tmp/flights", DefaultDatabase), config.Outputs.DatabasePath())
}

func TestParseConfig_Defaults(t *testing.T) {
	config, err := ParseConfig(strings.NewReader(""))
	require.NoError(t, err)

	assert.Equal(t, NewConfig(), config)
	assert.True(t, config.Outputs.Enabled(FormatCSV))
	assert.False(t, config.Outputs.Enabled(FormatKML))
	assert.Equal(t, Duration(DefaultRetryInterval), config.Settings.RetryInterval)
	assert.Equal(t, Duration(time.Second), config.Recording.Interval)
}

func TestParseConfig_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		config string
		want   string
	}{
		{
			name:   "unknown field",
			config: "recording:\n  speed: 5\n",
			want:   "field speed not found",
		},
		{
			name:   "bad duration",
			config: "recording:\n  interval: soon\n",
			want:   "app.Duration: failed to parse",
		},
		{
			name:   "negative interval",
			config: "recording:\n  interval: -1s\n",
			want:   "invalid interval",
		},
		{
			name:   "negative distance",
			config: "recording:\n  distance: -1\n",
			want:   "distance must not be negative",
		},
		{
			name:   "unknown format",
			config: "outputs:\n  formats: [gpx]\n",
			want:   "invalid output format: gpx",
		},
		{
			name:   "no formats",
			config: "outputs:\n  formats: []\n",
			want:   "at least one output format",
		},
		{
			name:   "live port",
			config: "outputs:\n  formats: [live]\n  livePort: 70000\n",
			want:   "invalid live port: 70000",
		},
		{
			name:   "log level",
			config: "settings:\n  logLevel: loud\n",
			want:   "invalid log level: loud",
		},
		{
			name:   "retry interval",
			config: "settings:\n  retryInterval: 0s\n",
			want:   "retry interval must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig(strings.NewReader(tt.config))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDuration_Marshalling(t *testing.T) {
	d := Duration(90 * time.Second)

	out, err := yaml.Marshal(map[string]Duration{"interval": d})
	require.NoError(t, err)
	assert.Equal(t, "interval: 1m30s\n", string(out))

	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"1m30s"`, string(b))

	var decoded Duration
	require.NoError(t, json.Unmarshal([]byte(`"250ms"`), &decoded))
	assert.Equal(t, Duration(250*time.Millisecond), decoded)

	assert.Error(t, json.Unmarshal([]byte(`"later"`), &decoded))
	assert.Error(t, Duration(-time.Second).Validate())
}

func TestNewConfigFromCLI(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o644))

	config, verbose, err := NewConfigFromCLI([]string{
		"-c", path,
		"-o", dir,
		"-f", "csv,sqlite",
		"--interval", "3s",
		"-v",
	})
	require.NoError(t, err)
	assert.True(t, verbose)

	assert.Equal(t, dir, config.Outputs.Directory)
	assert.Equal(t, []Format{FormatCSV, FormatSQLite}, config.Outputs.Formats)
	assert.Equal(t, Duration(3*time.Second), config.Recording.Interval)

	// values not overridden come from the file
	assert.Equal(t, 5.0, config.Recording.Distance)
	assert.True(t, config.Recording.WaitForMovement)
	assert.Equal(t, 2021, config.Outputs.LivePort)
}

func TestNewConfigFromCLI_WithoutFile(t *testing.T) {
	config, verbose, err := NewConfigFromCLI([]string{"-d", "10", "--replay", "flight.csv"})
	require.NoError(t, err)
	assert.False(t, verbose)

	assert.Equal(t, 10.0, config.Recording.Distance)
	assert.Equal(t, "flight.csv", config.Simulator.Replay)
	assert.Equal(t, []Format{FormatCSV}, config.Outputs.Formats)
}

func TestNewConfigFromCLI_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"format", []string{"-f", "pdf"}, "invalid output format: pdf"},
		{"no formats", []string{"-f", ""}, "at least one output format"},
		{"interval", []string{"-i", "-1s"}, "invalid interval"},
		{"distance", []string{"-d", "-5"}, "distance must not be negative"},
		{"live port", []string{"-f", "live", "--live-port", "70000"}, "invalid live port"},
		{"directory", []string{"-o", ""}, "output directory is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := NewConfigFromCLI(tt.args)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, _, err := NewConfigFromCLI([]string{"-c", filepath.Join(t.TempDir(), "missing.yaml")})
	assert.ErrorIs(t, err, os.ErrNotExist)
}
