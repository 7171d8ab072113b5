package analysis_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/trackfix/internal/analysis"
	_ "github.com/jengzang/trackfix/internal/analysis/foundation"
	"github.com/jengzang/trackfix/internal/models"
	"github.com/jengzang/trackfix/internal/spatial"
)

func env() analysis.Environment {
	return analysis.Environment{
		Geodesy: spatial.WGS84{},
		Curve:   analysis.DefaultCurveConfig(),
		Refine:  analysis.DefaultRefineConfig(),
		Combine: analysis.DefaultCombineConfig(),
		Despike: analysis.DefaultDespikeConfig(),
	}
}

// turn heads north then east, sampled every ten seconds from base
func turn(base time.Time) models.Trajectory {
	coords := [][2]float64{{0, 0}, {0.001, 0}, {0.002, 0}, {0.002, 0.001}}
	t := make(models.Trajectory, len(coords))
	for i, c := range coords {
		t[i] = models.TrajectoryPoint{
			Time:      base.Add(time.Duration(i) * 10 * time.Second),
			Latitude:  c[0],
			Longitude: c[1],
		}
	}
	return t
}

func TestRegisteredStages(t *testing.T) {
	assert.Subset(t, analysis.RegisteredStages(),
		[]string{analysis.StageCombine, analysis.StageRefine, analysis.StageInterpolate, analysis.StageDespike})
}

func TestNewPipeline_Errors(t *testing.T) {
	tests := []struct {
		name   string
		stages []string
	}{
		{"combine after another stage", []string{analysis.StageInterpolate, analysis.StageCombine}},
		{"unknown stage", []string{"smooth"}},
		{"refine without roads", []string{analysis.StageRefine}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := analysis.NewPipeline(tt.stages, env())
			assert.True(t, errors.Is(err, analysis.ErrConfiguration), "got %v", err)
		})
	}
}

func TestPipeline_SingleRun(t *testing.T) {
	p, err := analysis.NewPipeline([]string{analysis.StageInterpolate}, env())
	require.NoError(t, err)
	assert.Nil(t, p.Merger)

	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	out, report, err := p.Run([]models.Trajectory{turn(base)})
	require.NoError(t, err)
	assert.Len(t, out, 12)
	require.Len(t, report.Stages, 1)
	assert.Equal(t, analysis.StageReport{Stage: analysis.StageInterpolate, PointsIn: 4, PointsOut: 12, Duration: report.Stages[0].Duration}, report.Stages[0])
	assert.NotEmpty(t, report.RunID)

	_, _, err = p.Run([]models.Trajectory{turn(base), turn(base)})
	assert.True(t, errors.Is(err, analysis.ErrValidation))
}

func TestPipeline_CombineRelaxesTimeOrder(t *testing.T) {
	p, err := analysis.NewPipeline([]string{analysis.StageCombine, analysis.StageInterpolate}, env())
	require.NoError(t, err)
	require.NotNil(t, p.Merger)
	require.Len(t, p.Stages, 1)

	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	runs := []models.Trajectory{turn(base.Add(time.Hour)), turn(base)}

	out, report, err := p.Run(runs)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Runs)
	require.Len(t, report.Stages, 2)
	assert.Equal(t, 8, report.Stages[0].PointsIn)
	assert.Equal(t, 8, report.Stages[0].PointsOut)
	assert.Equal(t, len(out), report.Stages[1].PointsOut)
	// the merged trajectory interleaves the two runs, so time goes backwards
	assert.NotEqual(t, -1, out.FirstOutOfOrder())
}

func TestPipeline_DespikeThenInterpolate(t *testing.T) {
	p, err := analysis.NewPipeline([]string{analysis.StageDespike, analysis.StageInterpolate}, env())
	require.NoError(t, err)

	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	spiky := turn(base)
	spike := models.TrajectoryPoint{Time: base.Add(15 * time.Second), Latitude: 0.5, Longitude: 0}
	spiky = append(spiky[:2], append(models.Trajectory{spike}, spiky[2:]...)...)

	out, report, err := p.Run([]models.Trajectory{spiky})
	require.NoError(t, err)
	require.Len(t, report.Stages, 2)
	assert.Equal(t, 5, report.Stages[0].PointsIn)
	assert.Equal(t, 4, report.Stages[0].PointsOut)
	assert.Len(t, out, 12)
}

func TestPipeline_StageFailureStops(t *testing.T) {
	p, err := analysis.NewPipeline([]string{analysis.StageInterpolate}, env())
	require.NoError(t, err)

	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	backwards := turn(base)
	backwards[3].Time = base.Add(-time.Minute)

	out, report, err := p.Run([]models.Trajectory{backwards})
	assert.Nil(t, out)
	assert.Nil(t, report)
	assert.True(t, errors.Is(err, analysis.ErrValidation))
}
