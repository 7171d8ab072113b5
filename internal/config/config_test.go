package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/trackfix/internal/analysis"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("PORT", "")
	t.Setenv("DB_PATH", "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, analysis.DefaultCurveConfig(), cfg.Curve)
	assert.Equal(t, analysis.DefaultRefineConfig(), cfg.Refine)
	assert.Equal(t, "sqlite", cfg.Roads.Format)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  port: ":9000"
  rateLimit: 20
geodesy:
  model: sphere
curve:
  threshold: 30
  subdivisions: 6
refine:
  tolerance: 25
  deleteOffRoadPoints: true
combine:
  proximity: segment
  candidates: 4
`)
	t.Setenv("PORT", "")
	t.Setenv("DB_PATH", "/tmp/cache.db")
	t.Setenv("LOG_DEBUG", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Port)
	assert.Equal(t, 20, cfg.Server.RateLimit)
	assert.Equal(t, "sphere", cfg.Geodesy.Model)
	assert.Equal(t, 30.0, cfg.Curve.Threshold)
	assert.Equal(t, 6, cfg.Curve.Subdivisions)
	assert.Equal(t, analysis.TimeOrderStrict, cfg.Curve.TimeOrder, "unset keys keep their defaults")
	assert.Equal(t, 25.0, cfg.Refine.Tolerance)
	assert.True(t, cfg.Refine.DeleteOffRoadPoints)
	assert.Equal(t, analysis.JunctionByEdge, cfg.Refine.JunctionKey)
	assert.Equal(t, analysis.ProximitySegment, cfg.Combine.Proximity)
	assert.Equal(t, "/tmp/cache.db", cfg.Database.Path)
	assert.True(t, cfg.LogDebug)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		isConfig bool
	}{
		{name: "zero curve threshold", body: "curve:\n  threshold: 0\n", isConfig: true},
		{name: "negative tolerance", body: "refine:\n  tolerance: -1\n", isConfig: true},
		{name: "unknown earth model", body: "geodesy:\n  model: flat\n"},
		{name: "unknown road format", body: "roads:\n  format: shapefile\n"},
		{name: "missing road file", body: "roads:\n  format: osm\n  source: /does/not/exist.osm\n"},
		{name: "malformed yaml", body: "curve: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Equal(t, tt.isConfig, errors.Is(err, analysis.ErrConfiguration), err.Error())
		})
	}
}

func TestApplyEnvRoadNetwork(t *testing.T) {
	env := map[string]string{"ROAD_NETWORK": "city.osm", "ROAD_FORMAT": "osm", "LOG_DEBUG": "maybe"}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	err := cfg.applyEnv(lookup)
	assert.Error(t, err, "LOG_DEBUG must be a bool")
	assert.Equal(t, "city.osm", cfg.Roads.Source)
	assert.Equal(t, "osm", cfg.Roads.Format)
}
