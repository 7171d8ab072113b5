package roadnet

import (
	"fmt"
	"math"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"

	"github.com/jengzang/trackfix/internal/models"
	"github.com/jengzang/trackfix/internal/spatial"
)

// Index answers nearest-edge queries over a Graph. It is immutable after
// NewIndex returns and safe for concurrent use.
type Index struct {
	graph     *Graph
	shapes    *s2.ShapeIndex
	shapeEdge map[int32]int64
	polylines map[int64]s2.Polyline
	radius    float64
}

// NewIndex builds the spatial index. maxSearchRadius bounds nearest-edge
// queries in meters; 0 means unbounded.
func NewIndex(g *Graph, maxSearchRadius float64) (*Index, error) {
	if g == nil {
		return nil, fmt.Errorf("road graph is nil")
	}
	if maxSearchRadius < 0 || math.IsNaN(maxSearchRadius) {
		return nil, fmt.Errorf("max search radius must be >= 0, got %v", maxSearchRadius)
	}

	ix := &Index{
		graph:     g,
		shapes:    s2.NewShapeIndex(),
		shapeEdge: make(map[int32]int64, g.NumEdges()),
		polylines: make(map[int64]s2.Polyline, g.NumEdges()),
		radius:    maxSearchRadius,
	}

	for _, e := range g.Edges() {
		line := make(s2.Polyline, len(e.Polyline))
		for i, p := range e.Polyline {
			line[i] = p.S2()
		}
		id := ix.shapes.Add(&line)
		ix.shapeEdge[id] = e.ID
		ix.polylines[e.ID] = line
	}
	ix.shapes.Build()
	return ix, nil
}

// Graph returns the indexed graph
func (ix *Index) Graph() *Graph {
	return ix.graph
}

// MaxSearchRadius returns the query bound in meters, 0 when unbounded
func (ix *Index) MaxSearchRadius() float64 {
	return ix.radius
}

// Nearest returns the edge closest to p and the perpendicular projection of p onto it
func (ix *Index) Nearest(p spatial.Point) (models.Match, bool, error) {
	if !p.Valid() {
		return models.Match{}, false, fmt.Errorf("invalid query point (%v, %v)", p.Lat, p.Lon)
	}
	if ix.graph.NumEdges() == 0 {
		return models.Match{}, false, nil
	}

	opts := s2.NewClosestEdgeQueryOptions().MaxResults(1)
	if ix.radius > 0 {
		opts = opts.DistanceLimit(s1.ChordAngleFromAngle(metersToAngle(ix.radius)).Successor())
	}
	query := s2.NewClosestEdgeQuery(ix.shapes, opts)
	x := p.S2()
	results := query.FindEdges(s2.NewMinDistanceToPointTarget(x))
	if len(results) == 0 {
		return models.Match{}, false, nil
	}

	res := results[0]
	edgeID, ok := ix.shapeEdge[res.ShapeID()]
	if !ok {
		return models.Match{}, false, fmt.Errorf("index returned unknown shape %d", res.ShapeID())
	}
	edge, _ := ix.graph.Edge(edgeID)
	line := ix.polylines[edgeID]
	seg := int(res.EdgeID())
	if seg < 0 || seg+1 >= len(line) {
		return models.Match{}, false, fmt.Errorf("index returned segment %d outside edge %d", seg, edgeID)
	}

	proj := project(x, line[seg], line[seg+1])
	return models.Match{
		EdgeID:    edgeID,
		WayID:     edge.WayID,
		Segment:   seg,
		Projected: spatial.PointFromS2(proj),
		Distance:  angleToMeters(x.Distance(proj)),
	}, true, nil
}

// Junction returns the vertex where a route turns from edge a onto edge b:
// their shared node, else the first crossing of the two polylines, else, when
// bridge is set, the midpoint of their closest approach
func (ix *Index) Junction(a, b int64, bridge bool) (spatial.Point, bool, error) {
	if a == b {
		return spatial.Point{}, false, nil
	}
	ea, ok := ix.graph.Edge(a)
	if !ok {
		return spatial.Point{}, false, fmt.Errorf("unknown edge %d", a)
	}
	eb, ok := ix.graph.Edge(b)
	if !ok {
		return spatial.Point{}, false, fmt.Errorf("unknown edge %d", b)
	}

	la, lb := ix.polylines[a], ix.polylines[b]

	switch {
	case ea.To != 0 && (ea.To == eb.From || ea.To == eb.To):
		return spatial.PointFromS2(la[len(la)-1]), true, nil
	case ea.From != 0 && (ea.From == eb.From || ea.From == eb.To):
		return spatial.PointFromS2(la[0]), true, nil
	}

	for i := 0; i+1 < len(la); i++ {
		for j := 0; j+1 < len(lb); j++ {
			if s2.CrossingSign(la[i], la[i+1], lb[j], lb[j+1]) == s2.Cross {
				return spatial.PointFromS2(s2.Intersection(la[i], la[i+1], lb[j], lb[j+1])), true, nil
			}
		}
	}

	if !bridge {
		return spatial.Point{}, false, nil
	}
	x, y := closestApproach(la, lb)
	return spatial.PointFromS2(s2.Interpolate(0.5, x, y)), true, nil
}

// closestApproach returns the closest pair of points between two polylines.
// The minimum over vertex-to-segment distances in both directions is exact
// for non-crossing polylines.
func closestApproach(la, lb s2.Polyline) (s2.Point, s2.Point) {
	best := s1.InfAngle()
	var bx, by s2.Point

	scan := func(from, onto s2.Polyline, swap bool) {
		for _, v := range from {
			for j := 0; j+1 < len(onto); j++ {
				q := project(v, onto[j], onto[j+1])
				if d := v.Distance(q); d < best {
					best = d
					if swap {
						bx, by = q, v
					} else {
						bx, by = v, q
					}
				}
			}
		}
	}
	scan(la, lb, false)
	scan(lb, la, true)
	return bx, by
}

// project returns the point on segment ab closest to x
func project(x, a, b s2.Point) s2.Point {
	if a.ApproxEqual(b) {
		return a
	}
	return s2.Project(x, a, b)
}

func metersToAngle(m float64) s1.Angle {
	return s1.Angle(m / spatial.EarthRadiusMeters)
}

func angleToMeters(a s1.Angle) float64 {
	return a.Radians() * spatial.EarthRadiusMeters
}
