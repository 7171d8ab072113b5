package roadnet

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/trackfix/internal/models"
	"github.com/jengzang/trackfix/internal/spatial"
)

// fixtureGraph returns a small network near the origin:
//
//	edge 10: node 1 (0,0)      -> node 2 (0,0.01)     along the equator
//	edge 11: node 2 (0,0.01)   -> node 3 (0.01,0.01)  north
//	edge 12: node 4 (-0.005,0.005) -> node 5 (0.005,0.005) crossing edge 10
//	edge 13: node 6 (0.002,0.02) -> node 7 (0.004,0.02) touching nothing
func fixtureGraph(t *testing.T) *Graph {
	t.Helper()
	g := NewGraph()
	nodes := []models.RoadNode{
		{ID: 1, Lat: 0, Lon: 0},
		{ID: 2, Lat: 0, Lon: 0.01},
		{ID: 3, Lat: 0.01, Lon: 0.01},
		{ID: 4, Lat: -0.005, Lon: 0.005},
		{ID: 5, Lat: 0.005, Lon: 0.005},
		{ID: 6, Lat: 0.002, Lon: 0.02},
		{ID: 7, Lat: 0.004, Lon: 0.02},
	}
	for _, n := range nodes {
		g.AddNode(n)
	}
	edges := []models.RoadEdge{
		{ID: 10, WayID: 100, From: 1, To: 2, Highway: "residential"},
		{ID: 11, WayID: 100, From: 2, To: 3, Highway: "residential"},
		{ID: 12, WayID: 200, From: 4, To: 5, Highway: "primary"},
		{ID: 13, WayID: 300, From: 6, To: 7, Highway: "service"},
	}
	for _, e := range edges {
		require.NoError(t, g.AddEdge(e))
	}
	return g
}

func TestGraphAddEdge(t *testing.T) {
	g := NewGraph()
	g.AddNode(models.RoadNode{ID: 1, Lat: 1, Lon: 1})

	err := g.AddEdge(models.RoadEdge{ID: 1, From: 1, To: 2})
	assert.Error(t, err, "unknown end node without geometry")

	err = g.AddEdge(models.RoadEdge{ID: 1, Polyline: []spatial.Point{{Lat: 1, Lon: 1}}})
	assert.Error(t, err, "single vertex")

	err = g.AddEdge(models.RoadEdge{ID: 1, Polyline: []spatial.Point{{Lat: 1, Lon: 1}, {Lat: 91, Lon: 1}}})
	assert.Error(t, err, "invalid latitude")

	require.NoError(t, g.AddEdge(models.RoadEdge{ID: 1, Polyline: []spatial.Point{{Lat: 1, Lon: 1}, {Lat: 1, Lon: 2}}}))
	assert.Error(t, g.AddEdge(models.RoadEdge{ID: 1, Polyline: []spatial.Point{{Lat: 1, Lon: 1}, {Lat: 1, Lon: 2}}}), "duplicate id")
}

func TestGraphClipAndStats(t *testing.T) {
	g := fixtureGraph(t)

	stats := g.Stats(spatial.Sphere{})
	assert.Equal(t, 7, stats.Nodes)
	assert.Equal(t, 4, stats.Edges)
	assert.Equal(t, 3, stats.Ways)
	assert.InDelta(t, 0.02, stats.Bounds.MaxLon, 1e-12)
	assert.InDelta(t, -0.005, stats.Bounds.MinLat, 1e-12)
	// 1112 + 1112 + 1112 + 222 meters, roughly
	assert.InDelta(t, 3558, stats.LengthMeters, 5)

	sub := g.Clip(spatial.Bounds{MinLat: 0.006, MinLon: 0.009, MaxLat: 0.02, MaxLon: 0.011})
	require.Equal(t, 1, sub.NumEdges())
	assert.Equal(t, int64(11), sub.Edges()[0].ID)
	_, ok := sub.Node(3)
	assert.True(t, ok)

	// edges 10 and 12 pass through this box without a vertex inside it
	sub = g.Clip(spatial.Bounds{MinLat: -0.001, MinLon: 0.004, MaxLat: 0.001, MaxLon: 0.006})
	var ids []int64
	for _, e := range sub.Edges() {
		ids = append(ids, e.ID)
	}
	assert.ElementsMatch(t, []int64{10, 12}, ids)
}

func TestIndexNearest(t *testing.T) {
	ix, err := NewIndex(fixtureGraph(t), 0)
	require.NoError(t, err)

	m, ok, err := ix.Nearest(spatial.Point{Lat: 0.0005, Lon: 0.003})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(10), m.EdgeID)
	assert.Equal(t, int64(100), m.WayID)
	assert.Equal(t, 0, m.Segment)
	assert.InDelta(t, 55.6, m.Distance, 0.5)
	assert.InDelta(t, 0, m.Projected.Lat, 1e-9)
	assert.InDelta(t, 0.003, m.Projected.Lon, 1e-9)

	_, _, err = ix.Nearest(spatial.Point{Lat: 100, Lon: 0})
	assert.Error(t, err)
}

func TestIndexNearestRadius(t *testing.T) {
	ix, err := NewIndex(fixtureGraph(t), 10)
	require.NoError(t, err)

	_, ok, err := ix.Nearest(spatial.Point{Lat: 0.0005, Lon: 0.003})
	require.NoError(t, err)
	assert.False(t, ok, "road is 55m away, beyond the 10m radius")

	_, ok, err = ix.Nearest(spatial.Point{Lat: 0.00005, Lon: 0.003})
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = NewIndex(fixtureGraph(t), -1)
	assert.Error(t, err)
}

func TestIndexNearestEmptyGraph(t *testing.T) {
	ix, err := NewIndex(NewGraph(), 0)
	require.NoError(t, err)
	_, ok, err := ix.Nearest(spatial.Point{Lat: 1, Lon: 1})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIndexJunction(t *testing.T) {
	ix, err := NewIndex(fixtureGraph(t), 0)
	require.NoError(t, err)

	tests := []struct {
		name    string
		a, b    int64
		bridge  bool
		want    spatial.Point
		wantOK  bool
		wantErr bool
	}{
		{name: "shared node", a: 10, b: 11, want: spatial.Point{Lat: 0, Lon: 0.01}, wantOK: true},
		{name: "shared node reversed", a: 11, b: 10, want: spatial.Point{Lat: 0, Lon: 0.01}, wantOK: true},
		{name: "crossing", a: 10, b: 12, want: spatial.Point{Lat: 0, Lon: 0.005}, wantOK: true},
		{name: "disjoint without bridge", a: 10, b: 13},
		{name: "disjoint bridged", a: 10, b: 13, bridge: true, want: spatial.Point{Lat: 0.001, Lon: 0.015}, wantOK: true},
		{name: "same edge", a: 10, b: 10},
		{name: "unknown edge", a: 10, b: 99, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok, err := ix.Junction(tt.a, tt.b, tt.bridge)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.InDelta(t, tt.want.Lat, p.Lat, 1e-6)
				assert.InDelta(t, tt.want.Lon, p.Lon, 1e-6)
			}
		})
	}
}

const osmFixture = `<?xml version="1.0" encoding="UTF-8"?>
<osm version="0.6">
  <node id="1" lat="0" lon="0"/>
  <node id="2" lat="0" lon="0.01"/>
  <node id="3" lat="0.01" lon="0.01"/>
  <node id="4" lat="0.02" lon="0.02"/>
  <way id="100">
    <nd ref="1"/><nd ref="2"/><nd ref="3"/>
    <tag k="highway" v="residential"/>
    <tag k="name" v="Main Street"/>
  </way>
  <way id="200">
    <nd ref="3"/><nd ref="4"/>
    <tag k="highway" v="footway"/>
  </way>
  <way id="300">
    <nd ref="3"/><nd ref="4"/>
    <tag k="highway" v="service"/>
    <tag k="access" v="private"/>
  </way>
  <way id="400">
    <nd ref="3"/><nd ref="99"/>
    <tag k="highway" v="primary"/>
  </way>
</osm>`

func TestLoadOSM(t *testing.T) {
	g, err := LoadOSM(context.Background(), strings.NewReader(osmFixture), NewHighwayFilter(nil))
	require.NoError(t, err)

	require.Equal(t, 2, g.NumEdges(), "footway and private ways are filtered, dangling node ref skipped")
	e := g.Edges()[0]
	assert.Equal(t, int64(100), e.WayID)
	assert.Equal(t, int64(1), e.From)
	assert.Equal(t, int64(2), e.To)
	assert.Equal(t, "Main Street", e.Name)
	assert.Equal(t, "residential", e.Highway)
	assert.Equal(t, int64(2), g.Edges()[1].From)
	assert.Equal(t, int64(3), g.Edges()[1].To)

	g, err = LoadOSM(context.Background(), strings.NewReader(osmFixture), NewHighwayFilter([]string{"footway"}))
	require.NoError(t, err)
	assert.Equal(t, 1, g.NumEdges())
}

const geojsonFixture = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"id": 7, "way_id": 70, "name": "A", "highway": "primary"},
     "geometry": {"type": "LineString", "coordinates": [[0, 0], [0.01, 0], [0.01, 0.01]]}},
    {"type": "Feature", "properties": {"highway": "residential"},
     "geometry": {"type": "LineString", "coordinates": [[0.01, 0.01], [0.02, 0.01]]}},
    {"type": "Feature", "properties": {},
     "geometry": {"type": "Point", "coordinates": [5, 5]}}
  ]
}`

func TestLoadGeoJSON(t *testing.T) {
	g, err := LoadGeoJSON([]byte(geojsonFixture))
	require.NoError(t, err)
	require.Equal(t, 2, g.NumEdges())

	a, ok := g.Edge(7)
	require.True(t, ok)
	assert.Equal(t, int64(70), a.WayID)
	assert.Equal(t, "A", a.Name)
	require.Len(t, a.Polyline, 3)
	assert.Equal(t, spatial.Point{Lat: 0.01, Lon: 0.01}, a.Polyline[2])

	b := g.Edges()[1]
	assert.Equal(t, a.To, b.From, "lines meeting at a vertex share a derived node")

	ix, err := NewIndex(g, 0)
	require.NoError(t, err)
	p, ok, err := ix.Junction(a.ID, b.ID, false)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 0.01, p.Lat, 1e-9)
	assert.InDelta(t, 0.01, p.Lon, 1e-9)
}

func TestGeoJSONExport(t *testing.T) {
	g := fixtureGraph(t)
	data, err := ToGeoJSON(g).MarshalJSON()
	require.NoError(t, err)

	back, err := LoadGeoJSON(data)
	require.NoError(t, err)
	require.Equal(t, g.NumEdges(), back.NumEdges())
	e, ok := back.Edge(12)
	require.True(t, ok)
	assert.Equal(t, int64(4), e.From)
	assert.Equal(t, int64(200), e.WayID)
}

func TestLoadGeoJSONInvalid(t *testing.T) {
	_, err := LoadGeoJSON([]byte(`{"type": "nope"`))
	assert.Error(t, err)

	_, err = LoadGeoJSON([]byte(`{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},"geometry":{"type":"LineString","coordinates":[[0,0]]}}]}`))
	assert.Error(t, err)
}
