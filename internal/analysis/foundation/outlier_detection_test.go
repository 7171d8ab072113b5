package foundation

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/trackfix/internal/analysis"
	"github.com/jengzang/trackfix/internal/spatial"
)

func TestOutlierDetector_Detect(t *testing.T) {
	od, err := NewOutlierDetector(analysis.DefaultDespikeConfig(), spatial.WGS84{})
	require.NoError(t, err)

	// 0.001 degrees of latitude is about 111m; index 2 leaps about 11km in ten seconds
	in := track(10*time.Second,
		[2]float64{0, 0},
		[2]float64{0.001, 0},
		[2]float64{0.1, 0},
		[2]float64{0.002, 0},
		[2]float64{0.003, 0},
	)

	got := od.Detect(in)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Index)
	assert.ElementsMatch(t, []string{ReasonExcessiveSpeed, ReasonJump}, got[0].Reasons)

	out, err := od.Apply(in, analysis.TimeOrderDefault)
	require.NoError(t, err)
	require.Len(t, out, 4)
	assert.Equal(t, 0.002, out[2].Latitude)
	assert.Len(t, in, 5)
}

func TestOutlierDetector_Rules(t *testing.T) {
	tests := []struct {
		name    string
		step    time.Duration
		lat     float64
		mutate  func(*analysis.DespikeConfig)
		reasons []string
	}{
		{"plausible", 10 * time.Second, 0.001, nil, nil},
		{"jump only", 10 * time.Second, 0.01, func(c *analysis.DespikeConfig) { c.MaxSpeed = 1000 }, []string{ReasonJump}},
		{"speed only", time.Minute, 0.2, nil, []string{ReasonExcessiveSpeed}},
		{"slow jump is no jump", time.Hour, 0.02, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := analysis.DefaultDespikeConfig()
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}
			od, err := NewOutlierDetector(cfg, spatial.WGS84{})
			require.NoError(t, err)

			got := od.Detect(track(tt.step, [2]float64{0, 0}, [2]float64{tt.lat, 0}))
			if tt.reasons == nil {
				assert.Empty(t, got)
				return
			}
			require.Len(t, got, 1)
			assert.Equal(t, tt.reasons, got[0].Reasons)
		})
	}
}

func TestOutlierDetector_TimeOrder(t *testing.T) {
	od, err := NewOutlierDetector(analysis.DefaultDespikeConfig(), spatial.WGS84{})
	require.NoError(t, err)

	in := track(10*time.Second, [2]float64{0, 0}, [2]float64{0.001, 0}, [2]float64{0.002, 0})
	in[2].Time = in[0].Time

	_, err = od.Apply(in, analysis.TimeOrderDefault)
	assert.True(t, errors.Is(err, analysis.ErrValidation))

	// without elapsed time no speed can be judged
	out, err := od.Apply(in, analysis.TimeOrderLenient)
	require.NoError(t, err)
	assert.Len(t, out, 3)
}

func TestNewOutlierDetector_Config(t *testing.T) {
	cfg := analysis.DefaultDespikeConfig()
	cfg.MaxSpeed = 0
	_, err := NewOutlierDetector(cfg, spatial.WGS84{})
	assert.True(t, errors.Is(err, analysis.ErrConfiguration))

	_, err = NewOutlierDetector(analysis.DefaultDespikeConfig(), nil)
	assert.True(t, errors.Is(err, analysis.ErrConfiguration))
}
