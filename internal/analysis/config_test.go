package analysis

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigsValidate(t *testing.T) {
	assert.NoError(t, DefaultCurveConfig().Validate())
	assert.NoError(t, DefaultRefineConfig().Validate())
	assert.NoError(t, DefaultCombineConfig().Validate())
	assert.NoError(t, DefaultDespikeConfig().Validate())
}

func TestConfigValidate(t *testing.T) {
	curve := DefaultCurveConfig()
	curve.Threshold = 0

	refine := DefaultRefineConfig()
	refine.Tolerance = -0.5

	combine := DefaultCombineConfig()
	combine.Candidates = 65

	despike := DefaultDespikeConfig()
	despike.MaxSpeed = 0

	tests := []struct {
		name  string
		v     interface{ Validate() error }
		param string
	}{
		{"curve threshold", curve, "threshold"},
		{"refine tolerance", refine, "tolerance"},
		{"combine candidates", combine, "candidates"},
		{"despike max speed", despike, "maxSpeed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.v.Validate()
			var cerr *ConfigurationError
			require.True(t, errors.As(err, &cerr), "got %v", err)
			assert.Equal(t, tt.param, cerr.Param)
			assert.True(t, errors.Is(err, ErrConfiguration))
		})
	}
}

func TestRefineConfig_ZeroTolerance(t *testing.T) {
	cfg := DefaultRefineConfig()
	cfg.Tolerance = 0
	assert.NoError(t, cfg.Validate())
}
