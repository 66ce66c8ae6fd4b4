// Package geo holds small geodesic helpers shared by the flight log sinks.
package geo

import (
	"github.com/twpayne/go-kml"
	"github.com/twpayne/go-kml/sphere"
)

// MetersPerFoot converts simulator altitudes to the metres used by KML.
const MetersPerFoot = 0.3048

// Point is a latitude/longitude pair in degrees.
type Point struct {
	Latitude  float64
	Longitude float64
}

// DistanceMeters returns the great-circle distance between a and b on a sphere
// with the WGS84 semi-major axis (6378.137 km) as radius.
func DistanceMeters(a, b Point) float64 {
	return sphere.WGS84.HaversineDistance(
		kml.Coordinate{Lon: a.Longitude, Lat: a.Latitude},
		kml.Coordinate{Lon: b.Longitude, Lat: b.Latitude},
	)
}

// FeetToMeters converts an altitude in feet to metres.
func FeetToMeters(feet float64) float64 {
	return feet * MetersPerFoot
}
