package app

import (
	"math"
	"time"

	"github.com/roman-kulish/flight-logger/internal/geo"
	"github.com/roman-kulish/flight-logger/internal/telemetry"
)

// TrackPoint is one logged position.
type TrackPoint struct {
	Time     time.Time
	Position telemetry.Position
}

// Track accumulates the positions of a flight and its extents.
type Track struct {
	Points []TrackPoint

	Start time.Time
	End   time.Time

	MinLatitude  float64
	MaxLatitude  float64
	MinLongitude float64
	MaxLongitude float64

	Altitude AltitudeBounds

	// Distance is the length of the path in metres.
	Distance float64
}

func NewTrack() *Track {
	return &Track{
		MinLatitude:  math.Inf(1),
		MaxLatitude:  math.Inf(-1),
		MinLongitude: math.Inf(1),
		MaxLongitude: math.Inf(-1),
		Altitude:     AltitudeBounds{Min: math.Inf(1), Max: math.Inf(-1)},
	}
}

func (t *Track) Add(at time.Time, pos telemetry.Position) {
	if n := len(t.Points); n > 0 {
		t.Distance += geo.DistanceMeters(t.Points[n-1].Position.Point(), pos.Point())
	} else {
		t.Start = at
	}
	t.End = at

	t.MinLatitude = math.Min(t.MinLatitude, pos.Latitude)
	t.MaxLatitude = math.Max(t.MaxLatitude, pos.Latitude)
	t.MinLongitude = math.Min(t.MinLongitude, pos.Longitude)
	t.MaxLongitude = math.Max(t.MaxLongitude, pos.Longitude)
	t.Altitude.Min = math.Min(t.Altitude.Min, pos.Altitude)
	t.Altitude.Max = math.Max(t.Altitude.Max, pos.Altitude)

	t.Points = append(t.Points, TrackPoint{Time: at, Position: pos})
}

func (t *Track) Len() int {
	return len(t.Points)
}

func (t *Track) Duration() time.Duration {
	return t.End.Sub(t.Start)
}

// projection maps coordinates onto a pixel area. Longitudes are scaled by
// the cosine of the middle latitude and the track keeps its aspect ratio.
type projection struct {
	originX, originY float64
	minLon, maxLat   float64
	lonScale         float64
	scale            float64
}

func newProjection(t *Track, width, height int) projection {
	midLat := (t.MinLatitude + t.MaxLatitude) / 2
	lonScale := math.Cos(midLat * math.Pi / 180)

	spanX := (t.MaxLongitude - t.MinLongitude) * lonScale
	spanY := t.MaxLatitude - t.MinLatitude

	scale := math.Inf(1)
	if spanX > 0 {
		scale = float64(width) / spanX
	}
	if spanY > 0 {
		scale = math.Min(scale, float64(height)/spanY)
	}
	if math.IsInf(scale, 1) {
		scale = 0
	}

	return projection{
		originX:  (float64(width) - spanX*scale) / 2,
		originY:  (float64(height) - spanY*scale) / 2,
		minLon:   t.MinLongitude,
		maxLat:   t.MaxLatitude,
		lonScale: lonScale,
		scale:    scale,
	}
}

func (p projection) project(pos telemetry.Position) (x, y int) {
	fx := p.originX + (pos.Longitude-p.minLon)*p.lonScale*p.scale
	fy := p.originY + (p.maxLat-pos.Latitude)*p.scale
	return int(math.Round(fx)), int(math.Round(fy))
}
