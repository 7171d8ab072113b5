package foundation

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/jengzang/trackfix/internal/analysis"
	"github.com/jengzang/trackfix/internal/logging"
	"github.com/jengzang/trackfix/internal/models"
	"github.com/jengzang/trackfix/internal/spatial"
)

// CurveRegion is an inclusive index range of a trajectory flagged for densification
type CurveRegion struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Contains reports whether the segment (i, i+1) lies inside the region
func (r CurveRegion) Contains(i int) bool {
	return i >= r.Start && i+1 <= r.End
}

// CurveInterpolator densifies the stretches of a trajectory where the
// direction of travel changes sharply
type CurveInterpolator struct {
	cfg analysis.CurveConfig
	geo spatial.Geodesy
}

// NewCurveInterpolator validates cfg and creates a curve interpolator
func NewCurveInterpolator(cfg analysis.CurveConfig, geo spatial.Geodesy) (*CurveInterpolator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if geo == nil {
		return nil, &analysis.ConfigurationError{Param: "geodesy", Value: nil, Reason: "required"}
	}
	return &CurveInterpolator{cfg: cfg, geo: geo}, nil
}

// Name returns the registry name
func (c *CurveInterpolator) Name() string {
	return analysis.StageInterpolate
}

// Config returns the settings the interpolator was built with
func (c *CurveInterpolator) Config() analysis.CurveConfig {
	return c.cfg
}

// Interpolate runs the interpolator with its configured time-order policy
func (c *CurveInterpolator) Interpolate(traj models.Trajectory) (models.Trajectory, error) {
	return c.Apply(traj, analysis.TimeOrderDefault)
}

// Apply densifies every curve region of traj. Original points are emitted
// untouched; inserted points carry Interpolated=true.
func (c *CurveInterpolator) Apply(traj models.Trajectory, order analysis.TimeOrder) (models.Trajectory, error) {
	if err := analysis.CheckCoordinates(traj); err != nil {
		return nil, err
	}
	if err := analysis.CheckTimeOrder(traj, analysis.ResolveOrder(order, c.cfg.TimeOrder)); err != nil {
		return nil, err
	}
	if len(traj) < 3 {
		return traj.Clone(), nil
	}

	regions := c.DetectCurves(traj)
	if len(regions) == 0 {
		return traj.Clone(), nil
	}

	fractions := c.fractions()
	out := make(models.Trajectory, 0, len(traj)+len(traj)*len(fractions)/2)
	inserted := 0
	r := 0

	for i := range traj {
		out = append(out, traj[i])
		if i == len(traj)-1 {
			break
		}
		for r < len(regions) && regions[r].End <= i {
			r++
		}
		if r == len(regions) || !regions[r].Contains(i) {
			continue
		}

		a, b := traj[i], traj[i+1]
		if c.geo.Distance(a.Point(), b.Point()) == 0 {
			continue
		}
		prev := a.Point()
		for _, f := range fractions {
			q := c.geo.Interpolate(a.Point(), b.Point(), f)
			if !q.Valid() {
				return nil, analysis.WrapCollaborator("geodesy",
					fmt.Errorf("interpolation between points %d and %d produced (%v, %v)", i, i+1, q.Lat, q.Lon))
			}
			out = append(out, models.TrajectoryPoint{
				Time:         models.InterpolateTime(a.Time, b.Time, f),
				Latitude:     q.Lat,
				Longitude:    q.Lon,
				BearingIn:    models.Float64(c.geo.Bearing(prev, q)),
				Interpolated: true,
			})
			prev = q
			inserted++
		}
	}

	logging.S().Debugw("[CurveInterpolator] densified curves",
		"points_in", len(traj), "regions", len(regions), "inserted", inserted)
	return out, nil
}

// DetectCurves returns the merged curve regions of traj. A point whose
// bearing change reaches the threshold anchors the region spanning its two
// neighbours; overlapping or touching regions are merged.
func (c *CurveInterpolator) DetectCurves(traj models.Trajectory) []CurveRegion {
	changes := c.BearingChanges(traj)

	var regions []CurveRegion
	for i := 1; i < len(traj)-1; i++ {
		if !c.isCurve(changes[i]) {
			continue
		}
		region := CurveRegion{Start: i - 1, End: i + 1}
		if n := len(regions); n > 0 && region.Start <= regions[n-1].End {
			regions[n-1].End = region.End
			continue
		}
		regions = append(regions, region)
	}
	return regions
}

// BearingChanges returns the directional change magnitude in degrees at every
// point. End points, and points touching a zero-length segment, get 0.
func (c *CurveInterpolator) BearingChanges(traj models.Trajectory) []float64 {
	changes := make([]float64, len(traj))
	if len(traj) < 3 {
		return changes
	}

	bearings := make([]float64, len(traj)-1)
	defined := make([]bool, len(traj)-1)
	for i := 0; i < len(traj)-1; i++ {
		a, b := traj[i].Point(), traj[i+1].Point()
		if c.geo.Distance(a, b) == 0 {
			continue
		}
		bearings[i] = c.geo.Bearing(a, b)
		defined[i] = true
	}

	for i := 1; i < len(traj)-1; i++ {
		if defined[i-1] && defined[i] {
			changes[i] = spatial.BearingChange(bearings[i-1], bearings[i])
		}
	}
	return changes
}

func (c *CurveInterpolator) isCurve(change float64) bool {
	if c.cfg.Exclusive {
		return change > c.cfg.Threshold
	}
	return change >= c.cfg.Threshold
}

// fractions returns the arc fractions of the inserted points, evenly spaced
// strictly between 0 and 1
func (c *CurveInterpolator) fractions() []float64 {
	span := floats.Span(make([]float64, c.cfg.Subdivisions+2), 0, 1)
	return span[1 : len(span)-1]
}

func init() {
	analysis.RegisterStage(analysis.StageInterpolate, func(env analysis.Environment) (analysis.Stage, error) {
		ci, err := NewCurveInterpolator(env.Curve, env.Geodesy)
		if err != nil {
			return nil, err
		}
		return ci, nil
	})
}
