package spatial

import (
	"github.com/tidwall/geodesic"
)

// WGS84 implements Geodesy with Karney's geodesic algorithms on the WGS84 ellipsoid
type WGS84 struct{}

// Bearing returns the forward azimuth at a of the geodesic from a to b
func (WGS84) Bearing(a, b Point) float64 {
	var azi1 float64
	geodesic.WGS84.Inverse(a.Lat, a.Lon, b.Lat, b.Lon, nil, &azi1, nil)
	return NormalizeBearing(azi1)
}

// Distance returns the ellipsoidal distance in meters
func (WGS84) Distance(a, b Point) float64 {
	var s12 float64
	geodesic.WGS84.Inverse(a.Lat, a.Lon, b.Lat, b.Lon, &s12, nil, nil)
	return s12
}

// Interpolate solves the inverse problem once, then walks f*s12 along the geodesic
func (WGS84) Interpolate(a, b Point, f float64) Point {
	if f <= 0 {
		return a
	}
	if f >= 1 {
		return b
	}
	var s12, azi1 float64
	geodesic.WGS84.Inverse(a.Lat, a.Lon, b.Lat, b.Lon, &s12, &azi1, nil)
	if s12 == 0 {
		return a
	}
	var lat, lon float64
	geodesic.WGS84.Direct(a.Lat, a.Lon, azi1, f*s12, &lat, &lon, nil)
	return Point{Lat: lat, Lon: lon}
}
