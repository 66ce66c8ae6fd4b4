package app

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"time"
)

const (
	defaultWidth  = 1600
	defaultHeight = 1200

	// Default border sizes in pixels
	defaultTopBorder    = 40
	defaultLeftBorder   = 40
	defaultBottomBorder = 60
	defaultRightBorder  = 120

	lineWidth    = 3
	markerRadius = 7

	defaultDatetimeFormat = time.DateTime
)

var (
	startMarkerColor = color.RGBA{R: 0x1b, G: 0x9e, B: 0x3e, A: 0xff}
	endMarkerColor   = color.RGBA{R: 0xd0, G: 0x1c, B: 0x1c, A: 0xff}
	backgroundColor  = color.RGBA{R: 0xf4, G: 0xf4, B: 0xf0, A: 0xff}
)

var errEmptyTrack = errors.New("track has no positions")

// BorderConfig defines the sizes of white space around the track
type BorderConfig struct {
	Top    int
	Left   int
	Bottom int // Space for the information bar
	Right  int // Space for the altitude legend
}

// RenderConfig holds all configuration options for track visualization
type RenderConfig struct {
	Width  int // Size of the track area in pixels
	Height int

	DatetimeFormat string
	Location       *time.Location

	ColorTheme    ColorTheme
	NoAnnotations bool

	BorderConfig BorderConfig
}

// TrackRenderer draws a flight path coloured by altitude.
type TrackRenderer struct {
	config RenderConfig
}

func NewTrackRenderer(config RenderConfig) (*TrackRenderer, error) {
	if config.Width < 0 || config.Height < 0 {
		return nil, fmt.Errorf("invalid image size %dx%d", config.Width, config.Height)
	}
	if config.Width == 0 {
		config.Width = defaultWidth
	}
	if config.Height == 0 {
		config.Height = defaultHeight
	}
	if config.DatetimeFormat == "" {
		config.DatetimeFormat = defaultDatetimeFormat
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	if config.BorderConfig.Top == 0 {
		config.BorderConfig.Top = defaultTopBorder
	}
	if config.BorderConfig.Left == 0 {
		config.BorderConfig.Left = defaultLeftBorder
	}
	if config.BorderConfig.Bottom == 0 {
		config.BorderConfig.Bottom = defaultBottomBorder
	}
	if config.BorderConfig.Right == 0 {
		config.BorderConfig.Right = defaultRightBorder
	}

	return &TrackRenderer{config: config}, nil
}

// Render draws the track with its start and end markers and, unless
// disabled, the annotations.
func (r *TrackRenderer) Render(track *Track) (*image.RGBA, error) {
	if track.Len() == 0 {
		return nil, errEmptyTrack
	}

	borders := r.config.BorderConfig
	fullWidth := r.config.Width + borders.Left + borders.Right
	fullHeight := r.config.Height + borders.Top + borders.Bottom
	img := image.NewRGBA(image.Rect(0, 0, fullWidth, fullHeight))

	draw.Draw(img, img.Bounds(), &image.Uniform{C: backgroundColor}, image.Point{}, draw.Src)

	area := image.Rect(borders.Left, borders.Top, borders.Left+r.config.Width, borders.Top+r.config.Height)
	colors := NewColorMapper(r.config.ColorTheme, track.Altitude)

	if !r.config.NoAnnotations {
		ann, err := newAnnotator(annotatorConfig{
			DatetimeFormat: r.config.DatetimeFormat,
			Location:       r.config.Location,
			Borders:        borders,
		})
		if err != nil {
			return nil, fmt.Errorf("creating annotator: %w", err)
		}
		defer ann.Close()

		if err = ann.annotate(img, area, track, colors); err != nil {
			return nil, fmt.Errorf("drawing annotations: %w", err)
		}
	}

	r.renderTrack(img, area, track, colors)
	return img, nil
}

func (r *TrackRenderer) renderTrack(img *image.RGBA, area image.Rectangle, track *Track, colors *ColorMapper) {
	proj := newProjection(track, area.Dx(), area.Dy())
	point := func(p TrackPoint) image.Point {
		x, y := proj.project(p.Position)
		return image.Pt(area.Min.X+x, area.Min.Y+y)
	}

	prev := point(track.Points[0])
	for _, p := range track.Points[1:] {
		next := point(p)
		drawLine(img, prev, next, lineWidth, colors.GetColor(p.Position.Altitude))
		prev = next
	}

	drawCircle(img, point(track.Points[0]), markerRadius, startMarkerColor)
	drawSquare(img, point(track.Points[len(track.Points)-1]), markerRadius, endMarkerColor)
}

// drawLine draws a segment with Bresenham's algorithm, stamping a square
// brush of the given width at every step.
func drawLine(img *image.RGBA, a, b image.Point, width int, c color.Color) {
	dx := abs(b.X - a.X)
	dy := -abs(b.Y - a.Y)
	sx, sy := 1, 1
	if a.X > b.X {
		sx = -1
	}
	if a.Y > b.Y {
		sy = -1
	}

	half := width / 2
	brush := image.Rect(-half, -half, width-half, width-half)

	err := dx + dy
	for {
		draw.Draw(img, brush.Add(a), &image.Uniform{C: c}, image.Point{}, draw.Src)
		if a == b {
			return
		}

		e2 := 2 * err
		if e2 >= dy {
			err += dy
			a.X += sx
		}
		if e2 <= dx {
			err += dx
			a.Y += sy
		}
	}
}

func drawCircle(img *image.RGBA, center image.Point, radius int, c color.Color) {
	for y := -radius; y <= radius; y++ {
		for x := -radius; x <= radius; x++ {
			if x*x+y*y <= radius*radius {
				img.Set(center.X+x, center.Y+y, c)
			}
		}
	}
}

func drawSquare(img *image.RGBA, center image.Point, radius int, c color.Color) {
	rect := image.Rect(center.X-radius, center.Y-radius, center.X+radius+1, center.Y+radius+1)
	draw.Draw(img, rect, &image.Uniform{C: c}, image.Point{}, draw.Src)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
