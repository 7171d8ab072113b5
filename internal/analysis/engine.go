package analysis

import (
	"sort"
	"sync"

	"github.com/jengzang/trackfix/internal/models"
	"github.com/jengzang/trackfix/internal/spatial"
)

// RoadIndex is the read-only road network query surface the refiner needs.
// Implementations must be safe for concurrent reads.
type RoadIndex interface {
	// Nearest returns the closest edge to p; found is false when no edge
	// lies within the index's search radius
	Nearest(p spatial.Point) (match models.Match, found bool, err error)
	// Junction returns the vertex where the route turns from edge a onto edge b
	Junction(a, b int64, bridge bool) (vertex spatial.Point, found bool, err error)
}

// Stage transforms a single trajectory
type Stage interface {
	// Name returns the registry name of the stage
	Name() string
	// Apply runs the stage; order overrides the configured time-order policy
	// unless it is TimeOrderDefault
	Apply(traj models.Trajectory, order TimeOrder) (models.Trajectory, error)
}

// Merger folds several runs of one route into a single trajectory
type Merger interface {
	Name() string
	Combine(runs []models.Trajectory) (models.Trajectory, error)
}

// Environment carries the collaborators and settings stage factories draw from
type Environment struct {
	Geodesy spatial.Geodesy
	Roads   RoadIndex
	Curve   CurveConfig
	Refine  RefineConfig
	Combine CombineConfig
	Despike DespikeConfig
}

// StageFactory builds a stage from an environment
type StageFactory func(env Environment) (Stage, error)

// MergerFactory builds a merger from an environment
type MergerFactory func(env Environment) (Merger, error)

var (
	registryMu     sync.RWMutex
	stageRegistry  = make(map[string]StageFactory)
	mergerRegistry = make(map[string]MergerFactory)
)

// RegisterStage registers a stage factory under name
func RegisterStage(name string, factory StageFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	stageRegistry[name] = factory
}

// RegisterMerger registers a merger factory under name
func RegisterMerger(name string, factory MergerFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	mergerRegistry[name] = factory
}

// NewStage builds the stage registered under name
func NewStage(name string, env Environment) (Stage, error) {
	registryMu.RLock()
	factory, ok := stageRegistry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, &ConfigurationError{Param: "stage", Value: name, Reason: "no such stage"}
	}
	return factory(env)
}

// NewMerger builds the merger registered under name
func NewMerger(name string, env Environment) (Merger, error) {
	registryMu.RLock()
	factory, ok := mergerRegistry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, &ConfigurationError{Param: "merger", Value: name, Reason: "no such merger"}
	}
	return factory(env)
}

// RegisteredStages lists stage and merger names in sorted order
func RegisteredStages() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(stageRegistry)+len(mergerRegistry))
	for name := range stageRegistry {
		names = append(names, name)
	}
	for name := range mergerRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CheckTimeOrder returns a ValidationError when order is strict and traj
// has a timestamp earlier than its predecessor
func CheckTimeOrder(traj models.Trajectory, order TimeOrder) error {
	if order != TimeOrderStrict {
		return nil
	}
	if i := traj.FirstOutOfOrder(); i >= 0 {
		return NewValidationError(i, "time", "timestamp %s precedes previous %s",
			traj[i].Time.Format("2006-01-02T15:04:05.000Z07:00"),
			traj[i-1].Time.Format("2006-01-02T15:04:05.000Z07:00"))
	}
	return nil
}

// CheckCoordinates returns a ValidationError for the first point that is not a
// finite WGS84 coordinate
func CheckCoordinates(traj models.Trajectory) error {
	for i, p := range traj {
		if !p.Point().Valid() {
			return NewValidationError(i, "coordinate", "invalid lat/lon (%v, %v)", p.Latitude, p.Longitude)
		}
	}
	return nil
}

// ResolveOrder picks the effective time-order policy
func ResolveOrder(override, configured TimeOrder) TimeOrder {
	if override != TimeOrderDefault {
		return override
	}
	if configured == TimeOrderDefault {
		return TimeOrderStrict
	}
	return configured
}
