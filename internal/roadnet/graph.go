// Package roadnet holds the read-only road network the refiner snaps trajectories to:
// the graph itself, its loaders and the nearest-edge index built over it.
package roadnet

import (
	"fmt"
	"sort"

	"github.com/jengzang/trackfix/internal/models"
	"github.com/jengzang/trackfix/internal/spatial"
)

// Graph is a road network of nodes and polyline edges
type Graph struct {
	nodes    map[int64]models.RoadNode
	edges    []models.RoadEdge
	edgeByID map[int64]int
}

// NewGraph creates an empty graph
func NewGraph() *Graph {
	return &Graph{
		nodes:    make(map[int64]models.RoadNode),
		edgeByID: make(map[int64]int),
	}
}

// AddNode adds or replaces a node
func (g *Graph) AddNode(n models.RoadNode) {
	g.nodes[n.ID] = n
}

// AddEdge adds an edge. An edge without geometry gets the straight line
// between its end nodes, which must then be known.
func (g *Graph) AddEdge(e models.RoadEdge) error {
	if _, dup := g.edgeByID[e.ID]; dup {
		return fmt.Errorf("duplicate edge id %d", e.ID)
	}
	if len(e.Polyline) == 0 {
		from, okFrom := g.nodes[e.From]
		to, okTo := g.nodes[e.To]
		if !okFrom || !okTo {
			return fmt.Errorf("edge %d has no geometry and unknown end nodes %d/%d", e.ID, e.From, e.To)
		}
		e.Polyline = []spatial.Point{from.Point(), to.Point()}
	}
	if len(e.Polyline) < 2 {
		return fmt.Errorf("edge %d needs at least two vertices, got %d", e.ID, len(e.Polyline))
	}
	for i, p := range e.Polyline {
		if !p.Valid() {
			return fmt.Errorf("edge %d vertex %d is not a valid coordinate (%v, %v)", e.ID, i, p.Lat, p.Lon)
		}
	}
	g.edgeByID[e.ID] = len(g.edges)
	g.edges = append(g.edges, e)
	return nil
}

// Node returns the node with id
func (g *Graph) Node(id int64) (models.RoadNode, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Edge returns the edge with id
func (g *Graph) Edge(id int64) (models.RoadEdge, bool) {
	i, ok := g.edgeByID[id]
	if !ok {
		return models.RoadEdge{}, false
	}
	return g.edges[i], true
}

// Edges returns the edges in insertion order; callers must not modify them
func (g *Graph) Edges() []models.RoadEdge {
	return g.edges
}

// Nodes returns the nodes sorted by id
func (g *Graph) Nodes() []models.RoadNode {
	out := make([]models.RoadNode, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// NumEdges returns the number of edges
func (g *Graph) NumEdges() int {
	return len(g.edges)
}

// Clip returns the subgraph of edges whose bounding box overlaps b, the same
// rule the SQLite cache applies when loading a region
func (g *Graph) Clip(b spatial.Bounds) *Graph {
	sub := NewGraph()
	for _, e := range g.edges {
		if !spatial.BoundingBox(e.Polyline).Intersects(b) {
			continue
		}
		for _, id := range []int64{e.From, e.To} {
			if n, ok := g.nodes[id]; ok {
				sub.AddNode(n)
			}
		}
		// ids are unique in g, so this cannot fail
		_ = sub.AddEdge(e)
	}
	return sub
}

// Stats summarises the graph
func (g *Graph) Stats(geo spatial.Geodesy) models.RoadNetworkStats {
	stats := models.RoadNetworkStats{Nodes: len(g.nodes), Edges: len(g.edges)}
	ways := make(map[int64]struct{})
	var all []spatial.Point
	for _, e := range g.edges {
		if e.WayID != 0 {
			ways[e.WayID] = struct{}{}
		}
		stats.LengthMeters += e.Length(geo)
		all = append(all, e.Polyline...)
	}
	stats.Ways = len(ways)
	stats.Bounds = spatial.BoundingBox(all)
	return stats
}
