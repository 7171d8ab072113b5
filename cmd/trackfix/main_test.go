package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/trackfix/internal/trackio"
)

const turningCSV = `Time,lat,lon
2024-05-01 08:00:00,0,0
2024-05-01 08:00:10,0,0.001
2024-05-01 08:00:20,0,0.002
2024-05-01 08:00:30,0.001,0.002
`

const roadsGeoJSON = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"id":1,"highway":"residential"},"geometry":{"type":"LineString","coordinates":[[0,0],[0.01,0]]}}
]}`

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	require.NoError(t, app.Run(append([]string{"trackfix"}, args...)))
	return out.String()
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func readCSV(t *testing.T, path string) int {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	traj, err := trackio.ReadCSV(f)
	require.NoError(t, err)
	return len(traj)
}

func TestInterpolateCommand(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "run.csv", turningCSV)
	out := filepath.Join(dir, "dense.csv")

	msg := run(t, "interpolate", "--in", in, "--out", out)
	assert.Contains(t, msg, "wrote 12 points")
	assert.Equal(t, 12, readCSV(t, out))

	run(t, "interpolate", "--in", in, "--out", out, "--subdivisions", "1")
	assert.Equal(t, 6, readCSV(t, out))
}

func TestDespikeCommand(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "spiky.csv", `Time,lat,lon
2024-05-01 08:00:00,0,0
2024-05-01 08:00:10,0,0.001
2024-05-01 08:00:20,0.2,0.002
2024-05-01 08:00:30,0,0.003
`)
	out := filepath.Join(dir, "clean.csv")

	msg := run(t, "despike", "--in", in, "--out", out)
	assert.Contains(t, msg, "wrote 3 points")

	run(t, "despike", "--in", in, "--out", out, "--max-speed", "5000", "--jump-distance", "100000")
	assert.Equal(t, 4, readCSV(t, out))
}

func TestCombineCommandWritesGeoJSON(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.csv", turningCSV)
	b := writeFile(t, dir, "b.csv", turningCSV)
	out := filepath.Join(dir, "merged.geojson")

	run(t, "combine", "--in", a, "--in", b, "--out", out)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, 1+8, strings.Count(string(data), `"type":"Feature"`))
}

func TestRoadsImportAndRefine(t *testing.T) {
	dir := t.TempDir()
	roads := writeFile(t, dir, "roads.geojson", roadsGeoJSON)
	db := filepath.Join(dir, "roads.db")

	msg := run(t, "roads", "import", "--geojson", roads, "--db", db)
	assert.Contains(t, msg, "imported 1 edges")

	msg = run(t, "roads", "stats", "--db", db)
	assert.Contains(t, msg, "edges: 1")

	in := writeFile(t, dir, "run.csv", `Time,lat,lon
2024-05-01 08:00:00,0.00005,0.002
2024-05-01 08:00:10,0.00005,0.004
2024-05-01 08:00:20,0.01,0.004
`)
	out := filepath.Join(dir, "refined.csv")
	run(t, "refine", "--in", in, "--out", out, "--db", db, "--delete-off-road")
	assert.Equal(t, 2, readCSV(t, out), "the point 1km north of the only road is dropped")

	run(t, "refine", "--in", in, "--out", out, "--roads", roads)
	assert.Equal(t, 3, readCSV(t, out))
}

func TestRefineClipsRoads(t *testing.T) {
	dir := t.TempDir()
	roads := writeFile(t, dir, "roads.geojson", roadsGeoJSON)
	// both points are about 445m north of the road
	in := writeFile(t, dir, "run.csv", `Time,lat,lon
2024-05-01 08:00:00,0.004,0.002
2024-05-01 08:00:10,0.004,0.004
`)
	out := filepath.Join(dir, "refined.csv")

	run(t, "refine", "--in", in, "--out", out, "--roads", roads, "--tolerance", "1000")
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), ",false,1\n"), "snapped onto edge 1:\n%s", data)

	// a 100m margin around the track leaves the road out
	run(t, "refine", "--in", in, "--out", out, "--roads", roads, "--tolerance", "1000", "--clip", "100")
	data, err = os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), ",false,\n"), "unmatched:\n%s", data)
	assert.Equal(t, 2, readCSV(t, out))
}

func TestCommandErrors(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "run.csv", turningCSV)

	runErr := func(args ...string) error {
		app := newApp()
		app.Writer = &bytes.Buffer{}
		return app.Run(append([]string{"trackfix"}, args...))
	}

	assert.Error(t, runErr("interpolate", "--in", in, "--out", filepath.Join(dir, "out.zip")))
	assert.Error(t, runErr("interpolate", "--in", in, "--in", in, "--out", filepath.Join(dir, "out.csv")),
		"several runs need the combine stage")
	assert.Error(t, runErr("roads", "import", "--db", filepath.Join(dir, "x.db")))
}
