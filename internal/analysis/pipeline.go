package analysis

import (
	"time"

	"github.com/google/uuid"

	"github.com/jengzang/trackfix/internal/logging"
	"github.com/jengzang/trackfix/internal/models"
)

// Registry names of the built-in stages
const (
	StageCombine     = "combine"
	StageRefine      = "refine"
	StageInterpolate = "interpolate"

	// StageDespike is optional and best placed before refine
	StageDespike = "despike"
)

// DefaultStageOrder is the recommended chaining: combination, refinement, curve interpolation
var DefaultStageOrder = []string{StageCombine, StageRefine, StageInterpolate}

// StageReport records what one stage did during a run
type StageReport struct {
	Stage     string        `json:"stage"`
	PointsIn  int           `json:"pointsIn"`
	PointsOut int           `json:"pointsOut"`
	Duration  time.Duration `json:"durationNs"`
}

// Report summarises a pipeline run
type Report struct {
	RunID  string        `json:"runId"`
	Runs   int           `json:"runs"`
	Stages []StageReport `json:"stages"`
}

// Pipeline chains an optional merger with single-trajectory stages
type Pipeline struct {
	Merger Merger
	Stages []Stage
}

// NewPipeline builds a pipeline from registry names. The combiner, when named,
// must come first since every later stage consumes a single trajectory.
func NewPipeline(names []string, env Environment) (*Pipeline, error) {
	p := &Pipeline{}
	for i, name := range names {
		if name == StageCombine {
			if i != 0 {
				return nil, &ConfigurationError{Param: "stages", Value: names, Reason: "combine must be the first stage"}
			}
			m, err := NewMerger(name, env)
			if err != nil {
				return nil, err
			}
			p.Merger = m
			continue
		}
		s, err := NewStage(name, env)
		if err != nil {
			return nil, err
		}
		p.Stages = append(p.Stages, s)
	}
	return p, nil
}

// Run feeds runs through the pipeline. Without a merger exactly one run is accepted.
func (p *Pipeline) Run(runs []models.Trajectory) (models.Trajectory, *Report, error) {
	log := logging.S()
	report := &Report{RunID: uuid.NewString(), Runs: len(runs)}

	var traj models.Trajectory
	order := TimeOrderDefault

	if p.Merger != nil {
		start := time.Now()
		in := 0
		for _, r := range runs {
			in += len(r)
		}
		merged, err := p.Merger.Combine(runs)
		if err != nil {
			return nil, nil, err
		}
		report.Stages = append(report.Stages, StageReport{
			Stage: p.Merger.Name(), PointsIn: in, PointsOut: len(merged), Duration: time.Since(start),
		})
		traj = merged
		if len(runs) > 1 {
			// combined output is ordered along the route, not in time
			order = TimeOrderLenient
		}
	} else {
		if len(runs) != 1 {
			return nil, nil, NewValidationError(-1, "trajectories", "expected exactly one trajectory without a combine stage, got %d", len(runs))
		}
		traj = runs[0]
	}

	for _, s := range p.Stages {
		start := time.Now()
		out, err := s.Apply(traj, order)
		if err != nil {
			log.Warnw("[Pipeline] stage failed", "run_id", report.RunID, "stage", s.Name(), "error", err)
			return nil, nil, err
		}
		report.Stages = append(report.Stages, StageReport{
			Stage: s.Name(), PointsIn: len(traj), PointsOut: len(out), Duration: time.Since(start),
		})
		traj = out
	}

	log.Infow("[Pipeline] run completed", "run_id", report.RunID, "runs", len(runs), "points", len(traj), "stages", len(report.Stages))
	return traj, report, nil
}
