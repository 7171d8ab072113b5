package models

import (
	"time"

	"github.com/jengzang/trackfix/internal/spatial"
)

// RoadNode is a road network vertex (junction or shape point)
type RoadNode struct {
	ID  int64   `json:"id" db:"id"`
	Lat float64 `json:"lat" db:"lat"`
	Lon float64 `json:"lon" db:"lon"`
}

// Point returns the node coordinate
func (n RoadNode) Point() spatial.Point {
	return spatial.Point{Lat: n.Lat, Lon: n.Lon}
}

// RoadEdge is a directed piece of road between two nodes
type RoadEdge struct {
	ID       int64           `json:"id" db:"id"`
	WayID    int64           `json:"wayId" db:"way_id"` // source OSM way, 0 when unknown
	From     int64           `json:"from" db:"from_node"`
	To       int64           `json:"to" db:"to_node"`
	Name     string          `json:"name,omitempty" db:"name"`
	Highway  string          `json:"highway,omitempty" db:"highway"`
	Polyline []spatial.Point `json:"polyline"`
}

// Length returns the polyline length in meters
func (e RoadEdge) Length(g spatial.Geodesy) float64 {
	return spatial.PathLength(g, e.Polyline)
}

// Match is the nearest-edge result for one trajectory point
type Match struct {
	EdgeID    int64         `json:"edgeId"`
	WayID     int64         `json:"wayId"`
	Segment   int           `json:"segment"` // polyline segment index the projection falls on
	Projected spatial.Point `json:"projected"`
	Distance  float64       `json:"distance"` // perpendicular distance in meters
}

// RoadNetworkStats summarises a loaded road network
type RoadNetworkStats struct {
	Nodes        int            `json:"nodes"`
	Edges        int            `json:"edges"`
	Ways         int            `json:"ways"`
	LengthMeters float64        `json:"lengthMeters"`
	Bounds       spatial.Bounds `json:"bounds"`
}

// RoadImport records one load of a road network into the cache
type RoadImport struct {
	ID         string    `json:"id" db:"id"`
	Source     string    `json:"source" db:"source"`
	Format     string    `json:"format" db:"format"`
	Nodes      int       `json:"nodes" db:"nodes"`
	Edges      int       `json:"edges" db:"edges"`
	ImportedAt time.Time `json:"importedAt" db:"imported_at"`
}
