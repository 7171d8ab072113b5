package foundation

import (
	"github.com/jengzang/trackfix/internal/analysis"
	"github.com/jengzang/trackfix/internal/logging"
	"github.com/jengzang/trackfix/internal/models"
	"github.com/jengzang/trackfix/internal/spatial"
)

// Outlier reason codes
const (
	ReasonExcessiveSpeed = "EXCESSIVE_SPEED"
	ReasonJump           = "JUMP"
)

// OutlierResult is the verdict for one point
type OutlierResult struct {
	Index   int      `json:"index"`
	Reasons []string `json:"reasons"`
}

// OutlierDetector removes GPS fixes that no vehicle could have reached from
// the previous good fix
type OutlierDetector struct {
	cfg analysis.DespikeConfig
	geo spatial.Geodesy
}

// NewOutlierDetector validates cfg and creates a detector
func NewOutlierDetector(cfg analysis.DespikeConfig, geo spatial.Geodesy) (*OutlierDetector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if geo == nil {
		return nil, &analysis.ConfigurationError{Param: "geodesy", Value: nil, Reason: "required"}
	}
	return &OutlierDetector{cfg: cfg, geo: geo}, nil
}

// Name returns the registry name
func (d *OutlierDetector) Name() string {
	return analysis.StageDespike
}

// Detect flags the outliers of traj. Each point is compared with the last
// point that was not flagged, so a single spike does not condemn its successor.
func (d *OutlierDetector) Detect(traj models.Trajectory) []OutlierResult {
	var results []OutlierResult
	last := 0

	for i := 1; i < len(traj); i++ {
		prev, p := traj[last], traj[i]
		dt := p.Time.Sub(prev.Time)
		if dt <= 0 {
			// no elapsed time, no speed
			last = i
			continue
		}
		dist := d.geo.Distance(prev.Point(), p.Point())

		var reasons []string
		if dist/dt.Seconds() > d.cfg.MaxSpeed {
			reasons = append(reasons, ReasonExcessiveSpeed)
		}
		if dt <= d.cfg.JumpTime && dist >= d.cfg.JumpDistance {
			reasons = append(reasons, ReasonJump)
		}

		if len(reasons) > 0 {
			results = append(results, OutlierResult{Index: i, Reasons: reasons})
			continue
		}
		last = i
	}
	return results
}

// Apply drops every point Detect flags
func (d *OutlierDetector) Apply(traj models.Trajectory, order analysis.TimeOrder) (models.Trajectory, error) {
	if err := analysis.CheckCoordinates(traj); err != nil {
		return nil, err
	}
	if err := analysis.CheckTimeOrder(traj, analysis.ResolveOrder(order, d.cfg.TimeOrder)); err != nil {
		return nil, err
	}

	outliers := d.Detect(traj)
	if len(outliers) == 0 {
		return traj.Clone(), nil
	}

	out := make(models.Trajectory, 0, len(traj)-len(outliers))
	next := 0
	for i, p := range traj {
		if next < len(outliers) && outliers[next].Index == i {
			next++
			continue
		}
		out = append(out, p)
	}

	logging.S().Debugw("[OutlierDetector] removed outliers",
		"points_in", len(traj), "outliers", len(outliers), "points_out", len(out))
	return out, nil
}

func init() {
	analysis.RegisterStage(analysis.StageDespike, func(env analysis.Environment) (analysis.Stage, error) {
		od, err := NewOutlierDetector(env.Despike, env.Geodesy)
		if err != nil {
			return nil, err
		}
		return od, nil
	})
}
