package telemetry

import (
	"github.com/roman-kulish/flight-logger/internal/geo"
	"github.com/roman-kulish/flight-logger/internal/simconnect"
)

// Simulator variables making up a Position.
const (
	VarLatitude  = "PLANE LATITUDE"
	VarLongitude = "PLANE LONGITUDE"
	VarAltitude  = "PLANE ALTITUDE"
	VarAirspeed  = "AIRSPEED INDICATED"
)

// Position is the aircraft position sampled every simulation frame
type Position struct {
	Latitude  float64 // Latitude in degrees
	Longitude float64 // Longitude in degrees
	Altitude  float64 // Altitude above mean sea level in feet
	Airspeed  float64 // Indicated airspeed in knots
}

// Point returns the horizontal component of the position.
func (p Position) Point() geo.Point {
	return geo.Point{Latitude: p.Latitude, Longitude: p.Longitude}
}

// AltitudeMeters returns the altitude converted to metres.
func (p Position) AltitudeMeters() float64 {
	return geo.FeetToMeters(p.Altitude)
}

// NewPositionDefinition returns the data definition decoding a Position.
func NewPositionDefinition() (*simconnect.Definition[Position], error) {
	return simconnect.NewDefinition(
		simconnect.Var(VarLatitude, "degrees", func(p *Position, v float64) { p.Latitude = v }),
		simconnect.Var(VarLongitude, "degrees", func(p *Position, v float64) { p.Longitude = v }),
		simconnect.Var(VarAltitude, "feet", func(p *Position, v float64) { p.Altitude = v }),
		simconnect.Var(VarAirspeed, "knots", func(p *Position, v float64) { p.Airspeed = v }),
	)
}
