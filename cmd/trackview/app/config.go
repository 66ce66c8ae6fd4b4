package app

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

type Config struct {
	DBPath        string
	FlightID      int64
	CSVPath       string
	OutputFile    string
	Width         int
	Height        int
	Theme         ColorTheme
	TimeZone      *time.Location
	StartTime     *time.Time
	EndTime       *time.Time
	Verbose       bool
	NoAnnotations bool
}

func NewConfig() *Config {
	return &Config{
		Width:    defaultWidth,
		Height:   defaultHeight,
		Theme:    EnhancedTheme,
		TimeZone: time.Local,
	}
}

func NewConfigFromCLI(args []string) (*Config, error) {
	c := NewConfig()
	fs := pflag.NewFlagSet("trackview", pflag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage of %s:\n", fs.Name())
		fs.PrintDefaults()
	}

	var theme, timeZone, startTime, endTime string
	fs.StringVar(&c.DBPath, "db", "", "Path to the flight database")
	fs.Int64VarP(&c.FlightID, "flight", "s", 0, "Flight ID in the database")
	fs.StringVar(&c.CSVPath, "csv", "", "Path to a CSV flight log")
	fs.StringVarP(&c.OutputFile, "output", "o", "", "Path to the output PNG file")
	fs.IntVar(&c.Width, "width", defaultWidth, "Width of the track area in pixels")
	fs.IntVar(&c.Height, "height", defaultHeight, "Height of the track area in pixels")
	fs.StringVarP(&theme, "theme", "t", string(EnhancedTheme), "Altitude color theme [classic, grayscale, jungle, thermal, marine, enhanced]")
	fs.StringVar(&timeZone, "tz", "Local", "Time zone of the annotations")
	fs.StringVar(&startTime, "start", "", "Only draw positions from this time (RFC 3339)")
	fs.StringVar(&endTime, "end", "", "Only draw positions up to this time (RFC 3339)")
	fs.BoolVarP(&c.Verbose, "verbose", "v", false, "Enable more verbose output")
	fs.BoolVar(&c.NoAnnotations, "no-annotations", false, "Disable the title, legend and information bar")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	var err error
	if c.StartTime, err = parseTime(startTime); err != nil {
		err = fmt.Errorf("invalid start time: %w", err)
	} else if c.EndTime, err = parseTime(endTime); err != nil {
		err = fmt.Errorf("invalid end time: %w", err)
	} else if c.TimeZone, err = time.LoadLocation(timeZone); err != nil {
		err = fmt.Errorf("invalid time zone: %w", err)
	} else {
		c.Theme = ColorTheme(strings.ToLower(theme))
		err = c.Validate()
	}

	if err != nil {
		fs.Usage()
		return nil, err
	}

	if filepath.Ext(c.OutputFile) == "" {
		c.OutputFile += ".png"
	}
	return c, nil
}

func (c *Config) Validate() error {
	switch {
	case c.DBPath == "" && c.CSVPath == "":
		return errors.New("either a db path or a csv path is required")
	case c.DBPath != "" && c.CSVPath != "":
		return errors.New("db path and csv path are mutually exclusive")
	case c.DBPath != "" && c.FlightID <= 0:
		return errors.New("flight id is required")
	case c.OutputFile == "":
		return errors.New("output file is required")
	case c.Width <= 0 || c.Height <= 0:
		return fmt.Errorf("invalid image size: %dx%d", c.Width, c.Height)
	case c.StartTime != nil && c.EndTime != nil && c.EndTime.Before(*c.StartTime):
		return errors.New("end time is before start time")
	}

	if _, ok := validThemes[c.Theme]; !ok {
		return fmt.Errorf("invalid color theme: %s", c.Theme)
	}
	return nil
}

func parseTime(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
