package roadnet

import (
	"fmt"
	"math"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/jengzang/trackfix/internal/models"
	"github.com/jengzang/trackfix/internal/spatial"
)

// LoadGeoJSON builds a graph from a FeatureCollection of LineString or
// MultiLineString features. Properties "id", "way_id", "from", "to", "name"
// and "highway" are honoured when present; end nodes without ids are derived
// from coordinates so that lines meeting at a vertex share a node.
func LoadGeoJSON(data []byte) (*Graph, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse road GeoJSON: %w", err)
	}

	g := NewGraph()
	nodes := newNodeRegistry()
	var nextEdge int64

	add := func(f *geojson.Feature, ls orb.LineString, part int) error {
		if len(ls) < 2 {
			return fmt.Errorf("feature %v part %d has %d vertices", f.ID, part, len(ls))
		}
		line := make([]spatial.Point, len(ls))
		for i, p := range ls {
			line[i] = spatial.Point{Lat: p.Lat(), Lon: p.Lon()}
		}

		nextEdge++
		id := nextEdge
		if v := propInt(f.Properties, "id"); v != 0 && part == 0 {
			id = v
		}
		from := propInt(f.Properties, "from")
		to := propInt(f.Properties, "to")
		if from == 0 || part > 0 {
			from = nodes.id(line[0])
		}
		if to == 0 || part > 0 {
			to = nodes.id(line[len(line)-1])
		}
		g.AddNode(models.RoadNode{ID: from, Lat: line[0].Lat, Lon: line[0].Lon})
		g.AddNode(models.RoadNode{ID: to, Lat: line[len(line)-1].Lat, Lon: line[len(line)-1].Lon})

		return g.AddEdge(models.RoadEdge{
			ID:       id,
			WayID:    propInt(f.Properties, "way_id"),
			From:     from,
			To:       to,
			Name:     f.Properties.MustString("name", ""),
			Highway:  f.Properties.MustString("highway", ""),
			Polyline: line,
		})
	}

	for _, f := range fc.Features {
		switch geom := f.Geometry.(type) {
		case orb.LineString:
			if err := add(f, geom, 0); err != nil {
				return nil, err
			}
		case orb.MultiLineString:
			for i, ls := range geom {
				if err := add(f, ls, i); err != nil {
					return nil, err
				}
			}
		default:
			// points and polygons carry no road geometry
		}
	}
	return g, nil
}

// ToGeoJSON exports the graph edges as LineString features
func ToGeoJSON(g *Graph) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, e := range g.Edges() {
		ls := make(orb.LineString, len(e.Polyline))
		for i, p := range e.Polyline {
			ls[i] = orb.Point{p.Lon, p.Lat}
		}
		f := geojson.NewFeature(ls)
		f.Properties["id"] = e.ID
		f.Properties["way_id"] = e.WayID
		f.Properties["from"] = e.From
		f.Properties["to"] = e.To
		if e.Name != "" {
			f.Properties["name"] = e.Name
		}
		if e.Highway != "" {
			f.Properties["highway"] = e.Highway
		}
		fc.Append(f)
	}
	return fc
}

// propInt reads an integer property, accepting JSON numbers and numeric strings
func propInt(props geojson.Properties, key string) int64 {
	switch v := props[key].(type) {
	case float64:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	default:
		return 0
	}
}

// nodeRegistry hands out synthetic negative node ids keyed by coordinate
type nodeRegistry struct {
	ids  map[[2]int64]int64
	next int64
}

func newNodeRegistry() *nodeRegistry {
	return &nodeRegistry{ids: make(map[[2]int64]int64)}
}

func (r *nodeRegistry) id(p spatial.Point) int64 {
	// 1e-7 degrees is about 1cm
	key := [2]int64{int64(math.Round(p.Lat * 1e7)), int64(math.Round(p.Lon * 1e7))}
	if id, ok := r.ids[key]; ok {
		return id
	}
	r.next--
	r.ids[key] = r.next
	return r.next
}
