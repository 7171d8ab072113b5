package foundation

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/jengzang/trackfix/internal/analysis"
	"github.com/jengzang/trackfix/internal/logging"
	"github.com/jengzang/trackfix/internal/models"
	"github.com/jengzang/trackfix/internal/spatial"
)

const (
	// snapEpsilonMeters: points closer than this to their road keep their coordinates
	snapEpsilonMeters = 1e-3
	// junctionEpsilonMeters: a turn vertex this close to a neighbour is not inserted again
	junctionEpsilonMeters = 1e-2
)

// RefineStats counts what happened to the points of one trajectory
type RefineStats struct {
	Snapped   int `json:"snapped"`
	Unmatched int `json:"unmatched"`
	Dropped   int `json:"dropped"`
	Junctions int `json:"junctions"`
	// Offsets summarises how far the snapped points were moved; nil when none were
	Offsets *OffsetSummary `json:"offsets,omitempty"`
}

// OffsetSummary describes the distribution of snap distances in meters
type OffsetSummary struct {
	Median float64 `json:"median"`
	P95    float64 `json:"p95"`
	Max    float64 `json:"max"`
}

func summarizeOffsets(d []float64) *OffsetSummary {
	if len(d) == 0 {
		return nil
	}
	sort.Float64s(d)
	return &OffsetSummary{
		Median: stat.Quantile(0.5, stat.LinInterp, d, nil),
		P95:    stat.Quantile(0.95, stat.LinInterp, d, nil),
		Max:    d[len(d)-1],
	}
}

// TrajectoryRefiner snaps points onto the road network, culls off-road points
// on request and inserts the turn vertices the sparse samples skipped over
type TrajectoryRefiner struct {
	cfg   analysis.RefineConfig
	roads analysis.RoadIndex
	geo   spatial.Geodesy
}

// NewTrajectoryRefiner validates cfg and creates a refiner
func NewTrajectoryRefiner(cfg analysis.RefineConfig, roads analysis.RoadIndex, geo spatial.Geodesy) (*TrajectoryRefiner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if roads == nil {
		return nil, &analysis.ConfigurationError{Param: "roads", Value: nil, Reason: "required"}
	}
	if geo == nil {
		return nil, &analysis.ConfigurationError{Param: "geodesy", Value: nil, Reason: "required"}
	}
	return &TrajectoryRefiner{cfg: cfg, roads: roads, geo: geo}, nil
}

// Name returns the registry name
func (r *TrajectoryRefiner) Name() string {
	return analysis.StageRefine
}

// Config returns the settings the refiner was built with
func (r *TrajectoryRefiner) Config() analysis.RefineConfig {
	return r.cfg
}

// Refine runs the refiner with its configured time-order policy
func (r *TrajectoryRefiner) Refine(traj models.Trajectory) (models.Trajectory, error) {
	out, _, err := r.RefineWithStats(traj, analysis.TimeOrderDefault)
	return out, err
}

// Apply implements analysis.Stage
func (r *TrajectoryRefiner) Apply(traj models.Trajectory, order analysis.TimeOrder) (models.Trajectory, error) {
	out, _, err := r.RefineWithStats(traj, order)
	return out, err
}

// RefineWithStats refines traj and reports per-point outcomes
func (r *TrajectoryRefiner) RefineWithStats(traj models.Trajectory, order analysis.TimeOrder) (models.Trajectory, RefineStats, error) {
	var stats RefineStats

	if err := analysis.CheckCoordinates(traj); err != nil {
		return nil, stats, err
	}
	if err := analysis.CheckTimeOrder(traj, analysis.ResolveOrder(order, r.cfg.TimeOrder)); err != nil {
		return nil, stats, err
	}

	kept := make(models.Trajectory, 0, len(traj))
	matches := make([]*models.Match, 0, len(traj))
	var offsets []float64

	for i, p := range traj {
		m, found, err := r.roads.Nearest(p.Point())
		if err != nil {
			return nil, stats, analysis.WrapCollaborator("road index", fmt.Errorf("nearest edge for point %d: %w", i, err))
		}

		if !found || m.Distance > r.cfg.Tolerance {
			if r.cfg.DeleteOffRoadPoints {
				stats.Dropped++
				continue
			}
			q := p
			q.MatchedEdgeID = nil
			q.DistanceToRoad = nil
			if found {
				q.DistanceToRoad = models.Float64(m.Distance)
			}
			kept = append(kept, q)
			matches = append(matches, nil)
			stats.Unmatched++
			continue
		}

		q := p
		if m.Distance > snapEpsilonMeters {
			q = p.WithPoint(m.Projected)
		}
		q.MatchedEdgeID = models.Int64(m.EdgeID)
		q.DistanceToRoad = models.Float64(m.Distance)
		match := m
		kept = append(kept, q)
		matches = append(matches, &match)
		offsets = append(offsets, m.Distance)
		stats.Snapped++
	}

	out, junctions, err := r.insertJunctions(kept, matches)
	if err != nil {
		return nil, stats, err
	}
	stats.Junctions = junctions
	stats.Offsets = summarizeOffsets(offsets)

	logging.S().Debugw("[TrajectoryRefiner] refined trajectory",
		"points_in", len(traj), "points_out", len(out),
		"snapped", stats.Snapped, "unmatched", stats.Unmatched,
		"dropped", stats.Dropped, "junctions", stats.Junctions)
	return out, stats, nil
}

// insertJunctions walks consecutive matched points and adds the turn vertex
// wherever the road changes between them
func (r *TrajectoryRefiner) insertJunctions(kept models.Trajectory, matches []*models.Match) (models.Trajectory, int, error) {
	out := make(models.Trajectory, 0, len(kept)+len(kept)/4)
	inserted := 0

	for i := range kept {
		out = append(out, kept[i])
		if i == len(kept)-1 {
			break
		}
		ma, mb := matches[i], matches[i+1]
		if ma == nil || mb == nil || !r.roadChanges(ma, mb) {
			continue
		}

		v, found, err := r.roads.Junction(ma.EdgeID, mb.EdgeID, r.cfg.BridgeDisjointEdges)
		if err != nil {
			return nil, 0, analysis.WrapCollaborator("road index",
				fmt.Errorf("junction between edges %d and %d: %w", ma.EdgeID, mb.EdgeID, err))
		}
		if !found {
			continue
		}

		a, b := kept[i], kept[i+1]
		da := r.geo.Distance(a.Point(), v)
		db := r.geo.Distance(v, b.Point())
		if da <= junctionEpsilonMeters || db <= junctionEpsilonMeters {
			continue
		}

		// a bridged vertex sits between two roads, not on them
		m, onRoad, err := r.roads.Nearest(v)
		if err != nil {
			return nil, 0, analysis.WrapCollaborator("road index",
				fmt.Errorf("nearest edge for junction of %d and %d: %w", ma.EdgeID, mb.EdgeID, err))
		}
		if r.cfg.DeleteOffRoadPoints && (!onRoad || m.Distance > r.cfg.Tolerance) {
			continue
		}

		q := models.TrajectoryPoint{
			Time:         models.InterpolateTime(a.Time, b.Time, da/(da+db)),
			Latitude:     v.Lat,
			Longitude:    v.Lon,
			Interpolated: true,
		}
		if onRoad {
			q.DistanceToRoad = models.Float64(m.Distance)
			q.MatchedEdgeID = models.Int64(m.EdgeID)
			if m.Distance <= snapEpsilonMeters {
				q.MatchedEdgeID = models.Int64(mb.EdgeID)
			}
		}
		out = append(out, q)
		inserted++
	}
	return out, inserted, nil
}

func (r *TrajectoryRefiner) roadChanges(a, b *models.Match) bool {
	if r.cfg.JunctionKey == analysis.JunctionByWay && a.WayID != 0 && b.WayID != 0 {
		return a.WayID != b.WayID
	}
	return a.EdgeID != b.EdgeID
}

func init() {
	analysis.RegisterStage(analysis.StageRefine, func(env analysis.Environment) (analysis.Stage, error) {
		tr, err := NewTrajectoryRefiner(env.Refine, env.Roads, env.Geodesy)
		if err != nil {
			return nil, err
		}
		return tr, nil
	})
}
