package spatial

import (
	"fmt"
	"math"
	"strings"

	"github.com/golang/geo/s2"
)

// Geodesy is the set of geodetic primitives the trajectory stages rely on.
// Implementations must be safe for concurrent use.
type Geodesy interface {
	// Bearing returns the initial bearing from a to b in degrees [0, 360)
	Bearing(a, b Point) float64
	// Distance returns the geodesic distance between a and b in meters
	Distance(a, b Point) float64
	// Interpolate returns the point at fraction f (0..1) along the geodesic from a to b
	Interpolate(a, b Point, f float64) Point
}

// Supported earth models
const (
	ModelWGS84  = "wgs84"
	ModelSphere = "sphere"
)

// NewGeodesy returns the geodesy implementation for the named earth model
func NewGeodesy(model string) (Geodesy, error) {
	switch strings.ToLower(model) {
	case "", ModelWGS84:
		return WGS84{}, nil
	case ModelSphere:
		return Sphere{}, nil
	default:
		return nil, fmt.Errorf("unknown earth model %q", model)
	}
}

// Sphere implements Geodesy on a spherical earth using the S2 library
type Sphere struct{}

// Bearing calculates the initial great-circle bearing from a to b
func (Sphere) Bearing(a, b Point) float64 {
	return Bearing(a.Lat, a.Lon, b.Lat, b.Lon)
}

// Distance calculates the great-circle distance in meters
func (Sphere) Distance(a, b Point) float64 {
	return HaversineDistance(a.Lat, a.Lon, b.Lat, b.Lon)
}

// Interpolate walks fraction f along the great circle from a to b
func (Sphere) Interpolate(a, b Point, f float64) Point {
	p := s2.Interpolate(f, a.S2(), b.S2())
	return PointFromS2(p)
}

// HaversineDistance calculates the great-circle distance between two points in meters
func HaversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2).Radians() * EarthRadiusMeters
}

// Bearing calculates the initial bearing (forward azimuth) from point 1 to point 2
// Returns bearing in degrees (0-360), where 0 is North, 90 is East, etc.
func Bearing(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	lonDiff := (lon2 - lon1) * math.Pi / 180

	y := math.Sin(lonDiff) * math.Cos(lat2Rad)
	x := math.Cos(lat1Rad)*math.Sin(lat2Rad) - math.Sin(lat1Rad)*math.Cos(lat2Rad)*math.Cos(lonDiff)
	bearing := math.Atan2(y, x)

	return NormalizeBearing(bearing * 180 / math.Pi)
}

// NormalizeBearing maps any angle in degrees onto [0, 360)
func NormalizeBearing(deg float64) float64 {
	b := math.Mod(deg, 360)
	if b < 0 {
		b += 360
	}
	if b >= 360 {
		b = 0
	}
	return b
}

// DestinationPoint calculates the destination point given a start point, bearing, and distance
// bearing: degrees (0-360), distance: meters
func DestinationPoint(lat, lon, bearing, distance float64) (float64, float64) {
	p := s2.LatLngFromDegrees(lat, lon)
	bearingRad := bearing * math.Pi / 180
	angularDistance := distance / EarthRadiusMeters

	latRad := p.Lat.Radians()
	lonRad := p.Lng.Radians()

	lat2 := math.Asin(math.Sin(latRad)*math.Cos(angularDistance) +
		math.Cos(latRad)*math.Sin(angularDistance)*math.Cos(bearingRad))

	lon2 := lonRad + math.Atan2(
		math.Sin(bearingRad)*math.Sin(angularDistance)*math.Cos(latRad),
		math.Cos(angularDistance)-math.Sin(latRad)*math.Sin(lat2))

	return lat2 * 180 / math.Pi, lon2 * 180 / math.Pi
}

// EarthRadiusMeters is the mean earth radius used by the spherical model
const EarthRadiusMeters = 6371000.0
