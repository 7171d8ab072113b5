package roadnet

import (
	"context"
	"fmt"
	"io"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmxml"

	"github.com/jengzang/trackfix/internal/logging"
	"github.com/jengzang/trackfix/internal/models"
	"github.com/jengzang/trackfix/internal/spatial"
)

// DriveHighways is the set of highway values treated as drivable roads
var DriveHighways = []string{
	"motorway", "motorway_link", "trunk", "trunk_link",
	"primary", "primary_link", "secondary", "secondary_link",
	"tertiary", "tertiary_link", "unclassified", "residential",
	"living_street", "road", "service",
}

// HighwayFilter decides which OSM ways become road edges
type HighwayFilter struct {
	allowed map[string]bool
}

// NewHighwayFilter accepts ways whose highway tag is in values; an empty list
// falls back to DriveHighways
func NewHighwayFilter(values []string) HighwayFilter {
	if len(values) == 0 {
		values = DriveHighways
	}
	f := HighwayFilter{allowed: make(map[string]bool, len(values))}
	for _, v := range values {
		f.allowed[v] = true
	}
	return f
}

// Accept reports whether w is a road vehicles may drive on
func (f HighwayFilter) Accept(w *osm.Way) bool {
	if !f.allowed[w.Tags.Find("highway")] {
		return false
	}
	if w.Tags.Find("area") == "yes" {
		return false
	}
	switch w.Tags.Find("access") {
	case "private", "no":
		return false
	}
	switch w.Tags.Find("motor_vehicle") {
	case "private", "no":
		return false
	}
	return true
}

// LoadOSM builds a graph from an OSM XML document. Every pair of consecutive
// way nodes becomes one straight edge, so junctions and shape points are both
// graph nodes.
func LoadOSM(ctx context.Context, r io.Reader, filter HighwayFilter) (*Graph, error) {
	scanner := osmxml.New(ctx, r)
	defer scanner.Close()

	coords := make(map[osm.NodeID]spatial.Point)
	var ways []*osm.Way

	for scanner.Scan() {
		switch o := scanner.Object().(type) {
		case *osm.Node:
			coords[o.ID] = spatial.Point{Lat: o.Lat, Lon: o.Lon}
		case *osm.Way:
			if filter.Accept(o) {
				ways = append(ways, o)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan OSM data: %w", err)
	}

	g := NewGraph()
	var edgeID int64
	skipped := 0

	for _, w := range ways {
		name := w.Tags.Find("name")
		highway := w.Tags.Find("highway")
		for i := 0; i+1 < len(w.Nodes); i++ {
			from, to := w.Nodes[i].ID, w.Nodes[i+1].ID
			pf, okFrom := coords[from]
			pt, okTo := coords[to]
			if !okFrom || !okTo {
				skipped++
				continue
			}
			g.AddNode(models.RoadNode{ID: int64(from), Lat: pf.Lat, Lon: pf.Lon})
			g.AddNode(models.RoadNode{ID: int64(to), Lat: pt.Lat, Lon: pt.Lon})

			edgeID++
			err := g.AddEdge(models.RoadEdge{
				ID:       edgeID,
				WayID:    int64(w.ID),
				From:     int64(from),
				To:       int64(to),
				Name:     name,
				Highway:  highway,
				Polyline: []spatial.Point{pf, pt},
			})
			if err != nil {
				return nil, fmt.Errorf("failed to add edge of way %d: %w", w.ID, err)
			}
		}
	}

	logging.S().Infow("[RoadNetwork] loaded OSM data",
		"ways", len(ways), "nodes", len(coords), "edges", g.NumEdges(), "skipped_segments", skipped)
	return g, nil
}
