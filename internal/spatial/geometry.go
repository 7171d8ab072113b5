package spatial

import (
	"math"

	"github.com/golang/geo/s2"
)

// Point represents a 2D point with latitude and longitude
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// S2 converts the point to a unit vector on the sphere
func (p Point) S2() s2.Point {
	return s2.PointFromLatLng(s2.LatLngFromDegrees(p.Lat, p.Lon))
}

// Valid reports whether the point is a finite WGS84 coordinate
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lon, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// PointFromS2 converts an S2 unit vector back to degrees
func PointFromS2(p s2.Point) Point {
	ll := s2.LatLngFromPoint(p)
	return Point{Lat: ll.Lat.Degrees(), Lon: ll.Lng.Degrees()}
}

// Bounds is a latitude/longitude bounding box
type Bounds struct {
	MinLat float64 `json:"minLat"`
	MinLon float64 `json:"minLon"`
	MaxLat float64 `json:"maxLat"`
	MaxLon float64 `json:"maxLon"`
}

// BoundingBox calculates the bounding box of a set of points
func BoundingBox(points []Point) Bounds {
	if len(points) == 0 {
		return Bounds{}
	}

	b := Bounds{
		MinLat: points[0].Lat, MaxLat: points[0].Lat,
		MinLon: points[0].Lon, MaxLon: points[0].Lon,
	}

	for _, p := range points[1:] {
		if p.Lat < b.MinLat {
			b.MinLat = p.Lat
		}
		if p.Lat > b.MaxLat {
			b.MaxLat = p.Lat
		}
		if p.Lon < b.MinLon {
			b.MinLon = p.Lon
		}
		if p.Lon > b.MaxLon {
			b.MaxLon = p.Lon
		}
	}

	return b
}

// Intersects reports whether the two boxes overlap (touching counts)
func (b Bounds) Intersects(o Bounds) bool {
	return b.MaxLat >= o.MinLat && b.MinLat <= o.MaxLat && b.MaxLon >= o.MinLon && b.MinLon <= o.MaxLon
}

// Expand grows the box by margin meters on every side
func (b Bounds) Expand(margin float64) Bounds {
	if margin <= 0 {
		return b
	}
	south, _ := DestinationPoint(b.MinLat, b.MinLon, 180, margin)
	north, _ := DestinationPoint(b.MaxLat, b.MaxLon, 0, margin)

	// widest longitude span at the latitude closest to a pole
	lat := math.Max(math.Abs(b.MinLat), math.Abs(b.MaxLat))
	_, east := DestinationPoint(lat, b.MaxLon, 90, margin)
	_, west := DestinationPoint(lat, b.MinLon, 270, margin)

	return Bounds{
		MinLat: math.Max(south, -90),
		MaxLat: math.Min(north, 90),
		MinLon: math.Max(west, -180),
		MaxLon: math.Min(east, 180),
	}
}

// PathLength calculates the total length of a path (sequence of points) in meters
func PathLength(g Geodesy, points []Point) float64 {
	if len(points) < 2 {
		return 0
	}

	var totalDist float64
	for i := 1; i < len(points); i++ {
		totalDist += g.Distance(points[i-1], points[i])
	}

	return totalDist
}
