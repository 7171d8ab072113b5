package service

import (
	"github.com/jengzang/trackfix/internal/analysis"
	"github.com/jengzang/trackfix/internal/analysis/foundation"
	"github.com/jengzang/trackfix/internal/models"
	"github.com/jengzang/trackfix/internal/spatial"
)

// CurveParams overrides curve interpolation settings for one request
type CurveParams struct {
	Threshold    *float64           `json:"threshold,omitempty"`
	Subdivisions *int               `json:"subdivisions,omitempty"`
	Exclusive    *bool              `json:"exclusive,omitempty"`
	TimeOrder    analysis.TimeOrder `json:"timeOrder,omitempty"`
}

func (p *CurveParams) apply(cfg analysis.CurveConfig) analysis.CurveConfig {
	if p == nil {
		return cfg
	}
	if p.Threshold != nil {
		cfg.Threshold = *p.Threshold
	}
	if p.Subdivisions != nil {
		cfg.Subdivisions = *p.Subdivisions
	}
	if p.Exclusive != nil {
		cfg.Exclusive = *p.Exclusive
	}
	if p.TimeOrder != analysis.TimeOrderDefault {
		cfg.TimeOrder = p.TimeOrder
	}
	return cfg
}

// RefineParams overrides refinement settings for one request
type RefineParams struct {
	Tolerance           *float64           `json:"tolerance,omitempty"`
	DeleteOffRoadPoints *bool              `json:"deleteOffRoadPoints,omitempty"`
	JunctionKey         string             `json:"junctionKey,omitempty"`
	BridgeDisjointEdges *bool              `json:"bridgeDisjointEdges,omitempty"`
	TimeOrder           analysis.TimeOrder `json:"timeOrder,omitempty"`
}

func (p *RefineParams) apply(cfg analysis.RefineConfig) analysis.RefineConfig {
	if p == nil {
		return cfg
	}
	if p.Tolerance != nil {
		cfg.Tolerance = *p.Tolerance
	}
	if p.DeleteOffRoadPoints != nil {
		cfg.DeleteOffRoadPoints = *p.DeleteOffRoadPoints
	}
	if p.JunctionKey != "" {
		cfg.JunctionKey = p.JunctionKey
	}
	if p.BridgeDisjointEdges != nil {
		cfg.BridgeDisjointEdges = *p.BridgeDisjointEdges
	}
	if p.TimeOrder != analysis.TimeOrderDefault {
		cfg.TimeOrder = p.TimeOrder
	}
	return cfg
}

// CombineParams overrides combination settings for one request
type CombineParams struct {
	Reference  string `json:"reference,omitempty"`
	Proximity  string `json:"proximity,omitempty"`
	Candidates *int   `json:"candidates,omitempty"`
}

func (p *CombineParams) apply(cfg analysis.CombineConfig) analysis.CombineConfig {
	if p == nil {
		return cfg
	}
	if p.Reference != "" {
		cfg.Reference = p.Reference
	}
	if p.Proximity != "" {
		cfg.Proximity = p.Proximity
	}
	if p.Candidates != nil {
		cfg.Candidates = *p.Candidates
	}
	return cfg
}

// PipelineParams selects the stages of a pipeline run and their overrides
type PipelineParams struct {
	// Stages defaults to combine, refine, interpolate
	Stages  []string       `json:"stages,omitempty"`
	Curve   *CurveParams   `json:"curve,omitempty"`
	Refine  *RefineParams  `json:"refine,omitempty"`
	Combine *CombineParams `json:"combine,omitempty"`
}

// TrajectoryService runs the trajectory stages. Stages are built per call from
// the configured settings and the request overrides; the road index is shared.
type TrajectoryService struct {
	geo     spatial.Geodesy
	roads   *RoadService
	curve   analysis.CurveConfig
	refine  analysis.RefineConfig
	combine analysis.CombineConfig
	despike analysis.DespikeConfig
}

// NewTrajectoryService creates a new trajectory service; roads may be nil when
// no road network is available, which disables refinement
func NewTrajectoryService(geo spatial.Geodesy, roads *RoadService, curve analysis.CurveConfig, refine analysis.RefineConfig, combine analysis.CombineConfig) *TrajectoryService {
	return &TrajectoryService{
		geo:     geo,
		roads:   roads,
		curve:   curve,
		refine:  refine,
		combine: combine,
		despike: analysis.DefaultDespikeConfig(),
	}
}

// WithDespike replaces the outlier filter settings
func (s *TrajectoryService) WithDespike(cfg analysis.DespikeConfig) *TrajectoryService {
	s.despike = cfg
	return s
}

// Interpolate densifies the curves of traj
func (s *TrajectoryService) Interpolate(traj models.Trajectory, params *CurveParams) (models.Trajectory, error) {
	ci, err := foundation.NewCurveInterpolator(params.apply(s.curve), s.geo)
	if err != nil {
		return nil, err
	}
	return ci.Interpolate(traj)
}

// Refine snaps traj to the road network
func (s *TrajectoryService) Refine(traj models.Trajectory, params *RefineParams) (models.Trajectory, foundation.RefineStats, error) {
	roads, err := s.roadIndex()
	if err != nil {
		return nil, foundation.RefineStats{}, err
	}
	tr, err := foundation.NewTrajectoryRefiner(params.apply(s.refine), roads, s.geo)
	if err != nil {
		return nil, foundation.RefineStats{}, err
	}
	return tr.RefineWithStats(traj, analysis.TimeOrderDefault)
}

// Combine merges runs of the same route
func (s *TrajectoryService) Combine(runs []models.Trajectory, params *CombineParams) (models.Trajectory, error) {
	tc, err := foundation.NewTrajectoryCombiner(params.apply(s.combine), s.geo)
	if err != nil {
		return nil, err
	}
	return tc.Combine(runs)
}

// Pipeline chains the selected stages over runs
func (s *TrajectoryService) Pipeline(runs []models.Trajectory, params PipelineParams) (models.Trajectory, *analysis.Report, error) {
	stages := params.Stages
	if len(stages) == 0 {
		stages = analysis.DefaultStageOrder
	}

	env := analysis.Environment{
		Geodesy: s.geo,
		Curve:   params.Curve.apply(s.curve),
		Refine:  params.Refine.apply(s.refine),
		Combine: params.Combine.apply(s.combine),
		Despike: s.despike,
	}
	for _, name := range stages {
		if name == analysis.StageRefine {
			roads, err := s.roadIndex()
			if err != nil {
				return nil, nil, err
			}
			env.Roads = roads
			break
		}
	}

	p, err := analysis.NewPipeline(stages, env)
	if err != nil {
		return nil, nil, err
	}
	return p.Run(runs)
}

// roadIndex returns the loaded index as an untyped-nil-safe interface
func (s *TrajectoryService) roadIndex() (analysis.RoadIndex, error) {
	if s.roads == nil {
		return nil, ErrNoRoadNetwork
	}
	index := s.roads.Index()
	if index == nil {
		return nil, ErrNoRoadNetwork
	}
	return index, nil
}
