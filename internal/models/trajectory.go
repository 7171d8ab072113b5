package models

import (
	"time"

	"github.com/jengzang/trackfix/internal/spatial"
)

// TrajectoryPoint represents one map-matched GPS sample
type TrajectoryPoint struct {
	Time      time.Time `json:"time"`
	Latitude  float64   `json:"lat"`
	Longitude float64   `json:"lon"`

	// Attached by the processing stages
	BearingIn      *float64 `json:"bearingIn,omitempty"`      // bearing from the previous point, degrees
	MatchedEdgeID  *int64   `json:"matchedEdgeId,omitempty"`  // road edge the point was snapped to
	DistanceToRoad *float64 `json:"distanceToRoad,omitempty"` // meters to the nearest road edge
	Interpolated   bool     `json:"interpolated,omitempty"`
}

// Point returns the coordinate of the sample
func (p TrajectoryPoint) Point() spatial.Point {
	return spatial.Point{Lat: p.Latitude, Lon: p.Longitude}
}

// Matched reports whether the point was snapped to a road edge
func (p TrajectoryPoint) Matched() bool {
	return p.MatchedEdgeID != nil
}

// WithPoint returns a copy of p moved to q
func (p TrajectoryPoint) WithPoint(q spatial.Point) TrajectoryPoint {
	p.Latitude = q.Lat
	p.Longitude = q.Lon
	return p
}

// Trajectory is an ordered sequence of points
type Trajectory []TrajectoryPoint

// Points returns the coordinates of the trajectory
func (t Trajectory) Points() []spatial.Point {
	pts := make([]spatial.Point, len(t))
	for i, p := range t {
		pts[i] = p.Point()
	}
	return pts
}

// Clone returns a shallow copy that can be appended to without touching t
func (t Trajectory) Clone() Trajectory {
	if t == nil {
		return nil
	}
	out := make(Trajectory, len(t))
	copy(out, t)
	return out
}

// FirstOutOfOrder returns the index of the first point whose timestamp is earlier
// than its predecessor's, or -1 when timestamps are non-decreasing
func (t Trajectory) FirstOutOfOrder() int {
	for i := 1; i < len(t); i++ {
		if t[i].Time.Before(t[i-1].Time) {
			return i
		}
	}
	return -1
}

// Duration is the time between the first and the last point
func (t Trajectory) Duration() time.Duration {
	if len(t) < 2 {
		return 0
	}
	return t[len(t)-1].Time.Sub(t[0].Time)
}

// InterpolateTime returns the instant at fraction f between a and b
func InterpolateTime(a, b time.Time, f float64) time.Time {
	if f <= 0 {
		return a
	}
	if f >= 1 {
		return b
	}
	return a.Add(time.Duration(float64(b.Sub(a)) * f))
}

// Float64 returns a pointer to v
func Float64(v float64) *float64 {
	return &v
}

// Int64 returns a pointer to v
func Int64(v int64) *int64 {
	return &v
}
