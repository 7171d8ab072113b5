package foundation

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/trackfix/internal/analysis"
	"github.com/jengzang/trackfix/internal/models"
	"github.com/jengzang/trackfix/internal/spatial"
)

func newCombiner(t *testing.T, mutate func(*analysis.CombineConfig)) *TrajectoryCombiner {
	t.Helper()
	cfg := analysis.DefaultCombineConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	tc, err := NewTrajectoryCombiner(cfg, spatial.WGS84{})
	require.NoError(t, err)
	return tc
}

// eastbound is n points along the equator, 0.001 degrees apart
func eastbound(n int, latOffset float64, step time.Duration) models.Trajectory {
	coords := make([][2]float64, n)
	for i := range coords {
		coords[i] = [2]float64{latOffset, float64(i) * 0.001}
	}
	return track(step, coords...)
}

func TestTrajectoryCombiner_Empty(t *testing.T) {
	tc := newCombiner(t, nil)

	out, err := tc.Combine(nil)
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = tc.Combine([]models.Trajectory{{}, {}})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestTrajectoryCombiner_SinglePassThrough(t *testing.T) {
	tc := newCombiner(t, nil)
	// deliberately not ordered along the route
	in := track(time.Second,
		[2]float64{0, 0.003},
		[2]float64{0, 0.001},
		[2]float64{0.0005, 0.002},
	)

	out, err := tc.Combine([]models.Trajectory{in})
	require.NoError(t, err)
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("single run changed (-want +got):\n%s", diff)
	}
}

func TestTrajectoryCombiner_IdenticalRuns(t *testing.T) {
	tc := newCombiner(t, nil)
	const n = 5
	T := eastbound(n, 0, time.Second)

	out, err := tc.Combine([]models.Trajectory{T, T, T})
	require.NoError(t, err)
	require.Len(t, out, 3*n)

	for k := 0; k < n; k++ {
		for c := 0; c < 3; c++ {
			p := out[3*k+c]
			assert.Equal(t, T[k].Point(), p.Point(), "rank %d copy %d", k, c)
			assert.Equal(t, T[k].Time, p.Time)
		}
	}
}

func TestTrajectoryCombiner_InterleavesByRank(t *testing.T) {
	tc := newCombiner(t, nil)
	// a shorter second run, slightly north and hours later
	ref := eastbound(5, 0, time.Second)
	other := eastbound(3, 0.00001, time.Second)
	for i := range other {
		other[i].Time = other[i].Time.Add(3 * time.Hour)
	}

	out, err := tc.Combine([]models.Trajectory{other, ref})
	require.NoError(t, err)
	require.Len(t, out, 8)

	var lons []float64
	for _, p := range out {
		lons = append(lons, p.Longitude)
	}
	assert.Equal(t, []float64{0, 0, 0.001, 0.001, 0.002, 0.002, 0.003, 0.004}, lons)
	// the reference point sits at distance zero and sorts first within a rank
	assert.Equal(t, 0.0, out[0].Latitude)
	assert.Equal(t, 0.00001, out[1].Latitude)
}

func TestTrajectoryCombiner_Deterministic(t *testing.T) {
	tc := newCombiner(t, nil)
	a := track(time.Second,
		[2]float64{0, 0},
		[2]float64{0.0002, 0.001},
		[2]float64{0.0001, 0.002},
		[2]float64{0, 0.003},
	)
	b := track(2*time.Second,
		[2]float64{0.0001, 0.0004},
		[2]float64{-0.0001, 0.0016},
		[2]float64{0.0002, 0.0025},
		[2]float64{0, 0.0031},
	)

	first, err := tc.Combine([]models.Trajectory{a, b})
	require.NoError(t, err)
	second, err := tc.Combine([]models.Trajectory{a, b})
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("combine is not deterministic (-first +second):\n%s", diff)
	}
}

func TestTrajectoryCombiner_Proximity(t *testing.T) {
	ref := track(time.Second,
		[2]float64{0, 0},
		[2]float64{0, 0.01},
		[2]float64{0, 0.02},
	)
	other := track(time.Second,
		[2]float64{0.0001, 0.004},
		[2]float64{0.0001, 0.006},
	)

	tests := []struct {
		proximity string
		want      []float64
	}{
		{analysis.ProximityPoint, []float64{0, 0.004, 0.01, 0.006, 0.02}},
		{analysis.ProximitySegment, []float64{0, 0.004, 0.006, 0.01, 0.02}},
	}
	for _, tt := range tests {
		t.Run(tt.proximity, func(t *testing.T) {
			tc := newCombiner(t, func(c *analysis.CombineConfig) { c.Proximity = tt.proximity })
			out, err := tc.Combine([]models.Trajectory{ref, other})
			require.NoError(t, err)

			var lons []float64
			for _, p := range out {
				lons = append(lons, p.Longitude)
			}
			assert.Equal(t, tt.want, lons)
		})
	}
}

func TestReferencePolicies(t *testing.T) {
	runs := []models.Trajectory{
		eastbound(3, 0, time.Second),
		eastbound(5, 0, time.Second),
		eastbound(5, 0.001, time.Second),
	}
	assert.Equal(t, 1, LongestReference(runs))
	assert.Equal(t, 0, FirstReference(runs))

	tc := newCombiner(t, nil)
	called := 0
	custom := tc.WithReferencePolicy(func(r []models.Trajectory) int {
		called++
		return len(r)
	})
	_, err := custom.Combine(runs)
	assert.True(t, errors.Is(err, analysis.ErrConfiguration))
	assert.Equal(t, 1, called)

	// the original combiner keeps its policy
	out, err := tc.Combine(runs)
	require.NoError(t, err)
	assert.Len(t, out, 13)
}

func TestTrajectoryCombiner_FirstReference(t *testing.T) {
	tc := newCombiner(t, func(c *analysis.CombineConfig) { c.Reference = analysis.ReferenceFirst })
	short := track(time.Second, [2]float64{0, 0}, [2]float64{0, 0.0045})
	long := eastbound(5, 0, time.Second)

	out, err := tc.Combine([]models.Trajectory{short, long})
	require.NoError(t, err)
	require.Len(t, out, 7)

	// only two ranks exist, so 0.001 and 0.002 fall to rank 0 and the rest to rank 1
	var lons []float64
	for _, p := range out {
		lons = append(lons, p.Longitude)
	}
	assert.Equal(t, []float64{0, 0, 0.001, 0.002, 0.0045, 0.004, 0.003}, lons)
}

func TestTrajectoryCombiner_InvalidInput(t *testing.T) {
	tc := newCombiner(t, nil)
	bad := eastbound(3, 0, time.Second)
	bad[1].Longitude = 200

	out, err := tc.Combine([]models.Trajectory{eastbound(3, 0, time.Second), bad})
	assert.Nil(t, out)
	assert.True(t, errors.Is(err, analysis.ErrValidation))
}

func TestNewTrajectoryCombiner_Config(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*analysis.CombineConfig)
	}{
		{"unknown reference", func(c *analysis.CombineConfig) { c.Reference = "median" }},
		{"unknown proximity", func(c *analysis.CombineConfig) { c.Proximity = "area" }},
		{"no candidates", func(c *analysis.CombineConfig) { c.Candidates = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := analysis.DefaultCombineConfig()
			tt.mutate(&cfg)
			_, err := NewTrajectoryCombiner(cfg, spatial.WGS84{})
			assert.True(t, errors.Is(err, analysis.ErrConfiguration), "got %v", err)
		})
	}

	_, err := NewTrajectoryCombiner(analysis.DefaultCombineConfig(), nil)
	assert.True(t, errors.Is(err, analysis.ErrConfiguration))
}
