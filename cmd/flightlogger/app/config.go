package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

const (
	FormatCSV    Format = "csv"
	FormatKML    Format = "kml"
	FormatLive   Format = "live"
	FormatSQLite Format = "sqlite"

	DefaultAppName          = "FS Flight Logger"
	DefaultRetryInterval    = 5 * time.Second
	DefaultInterval         = time.Second
	DefaultDistance         = 1.0
	DefaultKMLFlushInterval = 5 * time.Second
	DefaultLivePort         = 2020
	DefaultDatabase         = "flights.sqlite"
	defaultOutputDirectory  = "Flight logs"
)

var validFormats = map[Format]struct{}{
	FormatCSV:    {},
	FormatKML:    {},
	FormatLive:   {},
	FormatSQLite: {},
}

// Format selects an output the recorder writes to.
type Format string

func (f Format) String() string {
	return string(f)
}

// Duration is a time.Duration read from and written to configuration files
// in time.ParseDuration notation.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	duration, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("app.Duration: failed to parse: %s", err)
	}

	*d = Duration(duration)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalJSON(bytes []byte) error {
	var v string
	if err := json.Unmarshal(bytes, &v); err != nil {
		return err
	}

	duration, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("app.Duration: failed to parse: %s", err)
	}

	*d = Duration(duration)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d Duration) Validate() error {
	if d < 0 {
		return fmt.Errorf("app.Duration: must not be negative: %s", time.Duration(d))
	}
	return nil
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// Config represents the main application configuration
type Config struct {
	Settings  Settings        `yaml:"settings" json:"settings"`
	Simulator SimulatorConfig `yaml:"simulator" json:"simulator"`
	Recording RecordingConfig `yaml:"recording" json:"recording"`
	Outputs   OutputsConfig   `yaml:"outputs" json:"outputs"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel       string   `yaml:"logLevel" json:"logLevel"`
	AppName        string   `yaml:"appName" json:"appName"`               // name announced to the simulator
	RetryInterval  Duration `yaml:"retryInterval" json:"retryInterval"`   // delay between connection attempts
	MetricsAddress string   `yaml:"metricsAddress" json:"metricsAddress"` // empty disables /metrics
}

// SimulatorConfig selects where positions come from.
type SimulatorConfig struct {
	Replay string `yaml:"replay" json:"replay"` // CSV log played back instead of a live simulator
}

// RecordingConfig controls which samples are logged.
type RecordingConfig struct {
	Interval        Duration `yaml:"interval" json:"interval"`               // minimum time between logged samples
	Distance        float64  `yaml:"distance" json:"distance"`               // minimum distance in meters between logged samples
	WaitForMovement bool     `yaml:"waitForMovement" json:"waitForMovement"` // skip samples until the aircraft first moves
	NewLogWhenIdle  Duration `yaml:"newLogWhenIdle" json:"newLogWhenIdle"`   // 0 never splits logs
}

// OutputsConfig represents output settings
type OutputsConfig struct {
	Directory        string   `yaml:"directory" json:"directory"`
	Formats          []Format `yaml:"formats" json:"formats"`
	KMLFlushInterval Duration `yaml:"kmlFlushInterval" json:"kmlFlushInterval"`
	LivePort         int      `yaml:"livePort" json:"livePort"`
	Database         string   `yaml:"database" json:"database"` // relative to Directory unless absolute
}

// Enabled reports whether format is selected.
func (c *OutputsConfig) Enabled(format Format) bool {
	return slices.Contains(c.Formats, format)
}

// DatabasePath returns the SQLite database location.
func (c *OutputsConfig) DatabasePath() string {
	if filepath.IsAbs(c.Database) {
		return c.Database
	}
	return filepath.Join(c.Directory, c.Database)
}

// NewConfig returns the default configuration.
func NewConfig() *Config {
	return &Config{
		Settings: Settings{
			LogLevel:      "info",
			AppName:       DefaultAppName,
			RetryInterval: Duration(DefaultRetryInterval),
		},
		Recording: RecordingConfig{
			Interval: Duration(DefaultInterval),
			Distance: DefaultDistance,
		},
		Outputs: OutputsConfig{
			Directory:        defaultDirectory(),
			Formats:          []Format{FormatCSV},
			KMLFlushInterval: Duration(DefaultKMLFlushInterval),
			LivePort:         DefaultLivePort,
			Database:         DefaultDatabase,
		},
	}
}

func defaultDirectory() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultOutputDirectory
	}
	return filepath.Join(home, "Desktop", defaultOutputDirectory)
}

// LoadConfig reads a YAML configuration file over the defaults.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config: %w", err)
	}
	defer f.Close()

	return ParseConfig(f)
}

// ParseConfig decodes a YAML configuration over the defaults and validates
// it.
func ParseConfig(r io.Reader) (*Config, error) {
	c := NewConfig()

	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	c.normalize()
	if err := c.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Config) normalize() {
	for i, f := range c.Outputs.Formats {
		c.Outputs.Formats[i] = Format(strings.ToLower(strings.TrimSpace(string(f))))
	}
	slices.Sort(c.Outputs.Formats)
	c.Outputs.Formats = slices.Compact(c.Outputs.Formats)
}

// Level returns the configured log level.
func (s *Settings) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return level, fmt.Errorf("app.Config: invalid log level: %s", s.LogLevel)
	}
	return level, nil
}

func (c *Config) Validate() error {
	if _, err := c.Settings.Level(); err != nil {
		return err
	}
	if c.Settings.AppName == "" {
		return errors.New("app.Config: app name is required")
	}
	if c.Settings.RetryInterval <= 0 {
		return fmt.Errorf("app.Config: retry interval must be positive: %s", c.Settings.RetryInterval)
	}
	if err := c.Recording.Interval.Validate(); err != nil {
		return fmt.Errorf("app.Config: invalid interval: %w", err)
	}
	if err := c.Recording.NewLogWhenIdle.Validate(); err != nil {
		return fmt.Errorf("app.Config: invalid idle split: %w", err)
	}
	if c.Recording.Distance < 0 {
		return fmt.Errorf("app.Config: distance must not be negative: %g", c.Recording.Distance)
	}

	if len(c.Outputs.Formats) == 0 {
		return errors.New("app.Config: at least one output format is required")
	}
	for _, f := range c.Outputs.Formats {
		if _, ok := validFormats[f]; !ok {
			return fmt.Errorf("app.Config: invalid output format: %s", f)
		}
	}
	if c.Outputs.Directory == "" {
		return errors.New("app.Config: output directory is required")
	}
	if err := c.Outputs.KMLFlushInterval.Validate(); err != nil {
		return fmt.Errorf("app.Config: invalid KML flush interval: %w", err)
	}
	if c.Outputs.Enabled(FormatLive) && (c.Outputs.LivePort <= 0 || c.Outputs.LivePort > 65535) {
		return fmt.Errorf("app.Config: invalid live port: %d", c.Outputs.LivePort)
	}
	if c.Outputs.Enabled(FormatSQLite) && c.Outputs.Database == "" {
		return errors.New("app.Config: database is required for the sqlite output")
	}

	return nil
}

// NewConfigFromCLI builds the configuration from command line arguments.
// A file given with --config is loaded first, then explicitly set flags
// override it. Verbose is reported separately as it only affects logging.
func NewConfigFromCLI(args []string) (config *Config, verbose bool, err error) {
	fs := pflag.NewFlagSet("flightlogger", pflag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage of %s:\n", fs.Name())
		fs.PrintDefaults()
	}

	var (
		configPath     string
		directory      string
		formats        []string
		interval       time.Duration
		distance       float64
		waitForMove    bool
		newLogWhenIdle time.Duration
		livePort       int
		replay         string
		metricsAddress string
	)

	defaults := NewConfig()
	fs.StringVarP(&configPath, "config", "c", "", "Path to the configuration file")
	fs.StringVarP(&directory, "output", "o", defaults.Outputs.Directory, "Directory flight logs are written to")
	fs.StringSliceVarP(&formats, "format", "f", []string{string(FormatCSV)}, "Output formats [csv, kml, live, sqlite]")
	fs.DurationVarP(&interval, "interval", "i", DefaultInterval, "Minimum time between logged positions")
	fs.Float64VarP(&distance, "distance", "d", DefaultDistance, "Minimum distance in meters between logged positions")
	fs.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	fs.BoolVar(&waitForMove, "wait-for-movement", false, "Start logging once the aircraft moves")
	fs.DurationVar(&newLogWhenIdle, "new-log-when-idle", 0, "Start a new log after the aircraft was idle this long")
	fs.IntVar(&livePort, "live-port", DefaultLivePort, "Port of the live KML server")
	fs.StringVar(&replay, "replay", "", "Replay a CSV flight log instead of connecting to the simulator")
	fs.StringVar(&metricsAddress, "metrics-address", "", "Serve Prometheus metrics on this address")

	if err = fs.Parse(args); err != nil {
		return nil, false, err
	}

	config = NewConfig()
	if configPath != "" {
		if config, err = LoadConfig(configPath); err != nil {
			return nil, false, fmt.Errorf("loading %s: %w", configPath, err)
		}
	}

	fs.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "output":
			config.Outputs.Directory = directory
		case "format":
			config.Outputs.Formats = config.Outputs.Formats[:0]
			for _, format := range formats {
				config.Outputs.Formats = append(config.Outputs.Formats, Format(format))
			}
		case "interval":
			config.Recording.Interval = Duration(interval)
		case "distance":
			config.Recording.Distance = distance
		case "wait-for-movement":
			config.Recording.WaitForMovement = waitForMove
		case "new-log-when-idle":
			config.Recording.NewLogWhenIdle = Duration(newLogWhenIdle)
		case "live-port":
			config.Outputs.LivePort = livePort
		case "replay":
			config.Simulator.Replay = replay
		case "metrics-address":
			config.Settings.MetricsAddress = metricsAddress
		}
	})

	config.normalize()
	if err = config.Validate(); err != nil {
		fs.Usage()
		return nil, false, err
	}

	return config, verbose, nil
}
