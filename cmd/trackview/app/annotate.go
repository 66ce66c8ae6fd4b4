package app

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	dpi          = 72.0
	fontSize     = 16.0
	legendWidth  = 20
	legendMargin = 20
	legendLabels = 5

	tickMarkWidth = 5
)

type annotatorConfig struct {
	DatetimeFormat string
	Location       *time.Location
	Borders        BorderConfig
}

type annotator struct {
	context  *freetype.Context
	config   annotatorConfig
	fontFace font.Face
}

func newAnnotator(config annotatorConfig) (*annotator, error) {
	parsedFont, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(parsedFont)
	ctx.SetFontSize(fontSize)
	ctx.SetHinting(font.HintingFull)
	ctx.SetSrc(image.Black)

	return &annotator{
		context: ctx,
		config:  config,
		fontFace: truetype.NewFace(parsedFont, &truetype.Options{
			Size:    fontSize,
			DPI:     dpi,
			Hinting: font.HintingFull,
		}),
	}, nil
}

func (a *annotator) Close() error {
	if a.fontFace != nil {
		return a.fontFace.Close()
	}
	return nil
}

func (a *annotator) annotate(img *image.RGBA, area image.Rectangle, track *Track, colors *ColorMapper) error {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	ops := []struct {
		msg string
		fn  func(*image.RGBA, image.Rectangle, *Track, *ColorMapper) error
	}{
		{"drawing title", a.drawTitle},
		{"drawing altitude legend", a.drawLegend},
		{"drawing info bar", a.drawInfoBar},
	}
	for _, op := range ops {
		if err := op.fn(img, area, track, colors); err != nil {
			return fmt.Errorf("%s: %w", op.msg, err)
		}
	}

	return nil
}

func (a *annotator) fontHeight() int {
	metrics := a.fontFace.Metrics()
	return (metrics.Ascent + metrics.Descent).Round()
}

func (a *annotator) drawTitle(img *image.RGBA, area image.Rectangle, track *Track, _ *ColorMapper) error {
	title := "Flight of " + track.Start.In(a.config.Location).Format(a.config.DatetimeFormat)
	textY := (a.config.Borders.Top + a.fontHeight()) / 2

	_, err := a.context.DrawString(title, freetype.Pt(area.Min.X, textY))
	return err
}

// drawLegend draws the altitude gradient to the right of the track with
// evenly spaced labels, highest altitude on top.
func (a *annotator) drawLegend(img *image.RGBA, area image.Rectangle, track *Track, colors *ColorMapper) error {
	left := area.Max.X + legendMargin
	bar := image.Rect(left, area.Min.Y, left+legendWidth, area.Max.Y)

	for y := bar.Min.Y; y < bar.Max.Y; y++ {
		normalized := 1 - float64(y-bar.Min.Y)/float64(max(1, bar.Dy()-1))
		line := image.Rect(bar.Min.X, y, bar.Max.X, y+1)
		draw.Draw(img, line, &image.Uniform{C: colors.At(normalized)}, image.Point{}, draw.Src)
	}

	metrics := a.fontFace.Metrics()
	for i := 0; i < legendLabels; i++ {
		ratio := float64(i) / float64(legendLabels-1)
		y := bar.Min.Y + int(ratio*float64(bar.Dy()-1))
		altitude := track.Altitude.Max - ratio*(track.Altitude.Max-track.Altitude.Min)

		for x := bar.Max.X; x < bar.Max.X+tickMarkWidth; x++ {
			img.Set(x, y, color.Black)
		}

		textY := y + a.fontHeight()/2 - metrics.Descent.Round()
		if _, err := a.context.DrawString(formatAltitude(altitude), freetype.Pt(bar.Max.X+tickMarkWidth+3, textY)); err != nil {
			return fmt.Errorf("drawing altitude label: %w", err)
		}
	}

	return nil
}

func (a *annotator) drawInfoBar(img *image.RGBA, area image.Rectangle, track *Track, _ *ColorMapper) error {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Time: %s - %s",
		track.Start.In(a.config.Location).Format(a.config.DatetimeFormat),
		track.End.In(a.config.Location).Format(a.config.DatetimeFormat)))
	sb.WriteString("; ")
	sb.WriteString("Duration: " + formatDuration(track.Duration()))
	sb.WriteString("; ")
	sb.WriteString("Distance: " + formatDistance(track.Distance))
	sb.WriteString("; ")
	sb.WriteString(fmt.Sprintf("Altitude: %s - %s", formatAltitude(track.Altitude.Min), formatAltitude(track.Altitude.Max)))
	sb.WriteString("; ")
	sb.WriteString(humanize.Comma(int64(track.Len())) + " positions")

	metrics := a.fontFace.Metrics()
	textY := img.Bounds().Max.Y - (a.config.Borders.Bottom-a.fontHeight())/2 - metrics.Descent.Round()

	_, err := a.context.DrawString(sb.String(), freetype.Pt(area.Min.X, textY))
	return err
}

func formatAltitude(feet float64) string {
	return humanize.Comma(int64(math.Round(feet))) + " ft"
}

func formatDistance(meters float64) string {
	return humanize.SIWithDigits(meters, 1, "m")
}

func formatDuration(d time.Duration) string {
	return d.Round(time.Second).String()
}
