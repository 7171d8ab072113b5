package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jengzang/trackfix/internal/config"
	"github.com/jengzang/trackfix/internal/logging"
	"github.com/jengzang/trackfix/internal/models"
	"github.com/jengzang/trackfix/internal/repository"
	"github.com/jengzang/trackfix/internal/roadnet"
	"github.com/jengzang/trackfix/internal/spatial"
)

// ErrNoRoadNetwork is returned when a road network is needed but none is loaded
var ErrNoRoadNetwork = errors.New("road network not loaded")

// RoadStats is the payload of the road statistics endpoint
type RoadStats struct {
	Source          string                  `json:"source"`
	MaxSearchRadius float64                 `json:"maxSearchRadius"`
	Network         models.RoadNetworkStats `json:"network"`
	LastImport      *models.RoadImport      `json:"lastImport,omitempty"`
}

// RoadService owns the road network and the nearest-edge index built over it
type RoadService struct {
	roadRepo *repository.RoadRepository
	geo      spatial.Geodesy

	mu     sync.RWMutex
	index  *roadnet.Index
	source string
}

// NewRoadService creates a new road service; roadRepo may be nil when no cache is used
func NewRoadService(roadRepo *repository.RoadRepository, geo spatial.Geodesy) *RoadService {
	return &RoadService{
		roadRepo: roadRepo,
		geo:      geo,
	}
}

// Load reads the network described by cfg and swaps in a fresh index
func (s *RoadService) Load(ctx context.Context, cfg config.RoadsConfig) error {
	return s.LoadWithin(ctx, cfg, nil)
}

// LoadWithin is Load restricted to the edges overlapping bounds; nil loads everything
func (s *RoadService) LoadWithin(ctx context.Context, cfg config.RoadsConfig, bounds *spatial.Bounds) error {
	var (
		g      *roadnet.Graph
		source string
		err    error
	)

	switch {
	case cfg.Format == "sqlite" || (cfg.Format == "" && cfg.Source == ""):
		if s.roadRepo == nil {
			return fmt.Errorf("road cache requested but no database is configured")
		}
		g, err = s.roadRepo.LoadGraph(ctx, bounds)
		source = "sqlite"
	default:
		g, err = roadnet.LoadFile(ctx, cfg.Source, cfg.Format, cfg.Highways)
		source = cfg.Source
		if err == nil && bounds != nil {
			g = g.Clip(*bounds)
		}
	}
	if err != nil {
		return fmt.Errorf("failed to load road network: %w", err)
	}

	index, err := roadnet.NewIndex(g, cfg.MaxSearchRadius)
	if err != nil {
		return fmt.Errorf("failed to index road network: %w", err)
	}

	s.mu.Lock()
	s.index = index
	s.source = source
	s.mu.Unlock()

	logging.S().Infow("[RoadService] road network ready", "source", source, "edges", g.NumEdges())
	return nil
}

// Import reads a road network file into the SQLite cache
func (s *RoadService) Import(ctx context.Context, path, format string, highways []string) (*models.RoadImport, error) {
	if s.roadRepo == nil {
		return nil, fmt.Errorf("no database configured for road import")
	}
	if format == "" {
		var err error
		if format, err = roadnet.DetectFormat(path); err != nil {
			return nil, err
		}
	}
	g, err := roadnet.LoadFile(ctx, path, format, highways)
	if err != nil {
		return nil, err
	}
	imp, err := s.roadRepo.SaveGraph(ctx, g, path, format)
	if err != nil {
		return nil, fmt.Errorf("failed to save road network: %w", err)
	}
	logging.S().Infow("[RoadService] imported road network", "import_id", imp.ID, "edges", imp.Edges, "nodes", imp.Nodes)
	return imp, nil
}

// Index returns the current index, nil before Load
func (s *RoadService) Index() *roadnet.Index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index
}

// Stats summarises the loaded network
func (s *RoadService) Stats(ctx context.Context) (*RoadStats, error) {
	s.mu.RLock()
	index, source := s.index, s.source
	s.mu.RUnlock()
	if index == nil {
		return nil, ErrNoRoadNetwork
	}

	stats := &RoadStats{
		Source:          source,
		MaxSearchRadius: index.MaxSearchRadius(),
		Network:         index.Graph().Stats(s.geo),
	}
	if s.roadRepo != nil {
		imp, err := s.roadRepo.LatestImport(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get last import: %w", err)
		}
		stats.LastImport = imp
	}
	return stats, nil
}
