package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"

	"github.com/jengzang/trackfix/internal/database"
	"github.com/jengzang/trackfix/internal/models"
	"github.com/jengzang/trackfix/internal/roadnet"
	"github.com/jengzang/trackfix/internal/spatial"
)

// RoadRepository persists road networks in the SQLite cache
type RoadRepository struct {
	db *sql.DB
}

// NewRoadRepository creates a new road repository
func NewRoadRepository(db *sql.DB) *RoadRepository {
	return &RoadRepository{db: db}
}

// SaveGraph replaces the cached network with g and records the import
func (r *RoadRepository) SaveGraph(ctx context.Context, g *roadnet.Graph, source, format string) (*models.RoadImport, error) {
	imp := &models.RoadImport{
		ID:         uuid.NewString(),
		Source:     source,
		Format:     format,
		Nodes:      len(g.Nodes()),
		Edges:      g.NumEdges(),
		ImportedAt: time.Now().UTC(),
	}

	err := database.WithTx(r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM road_edges"); err != nil {
			return fmt.Errorf("failed to clear road edges: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM road_nodes"); err != nil {
			return fmt.Errorf("failed to clear road nodes: %w", err)
		}

		nodeStmt, err := tx.PrepareContext(ctx, "INSERT INTO road_nodes (id, lat, lon) VALUES (?, ?, ?)")
		if err != nil {
			return fmt.Errorf("failed to prepare node insert: %w", err)
		}
		defer nodeStmt.Close()
		for _, n := range g.Nodes() {
			if _, err := nodeStmt.ExecContext(ctx, n.ID, n.Lat, n.Lon); err != nil {
				return fmt.Errorf("failed to insert node %d: %w", n.ID, err)
			}
		}

		edgeStmt, err := tx.PrepareContext(ctx, `INSERT INTO road_edges
			(id, way_id, from_node, to_node, name, highway, geometry, min_lat, min_lon, max_lat, max_lon)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare edge insert: %w", err)
		}
		defer edgeStmt.Close()
		for _, e := range g.Edges() {
			geom, err := encodePolyline(e.Polyline)
			if err != nil {
				return fmt.Errorf("failed to encode edge %d: %w", e.ID, err)
			}
			b := spatial.BoundingBox(e.Polyline)
			if _, err := edgeStmt.ExecContext(ctx, e.ID, e.WayID, e.From, e.To, e.Name, e.Highway, geom,
				b.MinLat, b.MinLon, b.MaxLat, b.MaxLon); err != nil {
				return fmt.Errorf("failed to insert edge %d: %w", e.ID, err)
			}
		}

		_, err = tx.ExecContext(ctx, `INSERT INTO road_imports (id, source, format, nodes, edges, imported_at)
			VALUES (?, ?, ?, ?, ?, ?)`, imp.ID, imp.Source, imp.Format, imp.Nodes, imp.Edges, imp.ImportedAt)
		if err != nil {
			return fmt.Errorf("failed to record import: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return imp, nil
}

// LoadGraph reads the cached network. With a non-nil bounds only edges whose
// bounding box intersects it are loaded.
func (r *RoadRepository) LoadGraph(ctx context.Context, bounds *spatial.Bounds) (*roadnet.Graph, error) {
	query := `SELECT id, way_id, from_node, to_node, name, highway, geometry FROM road_edges`
	var args []interface{}
	if bounds != nil {
		query += " WHERE max_lat >= ? AND min_lat <= ? AND max_lon >= ? AND min_lon <= ?"
		args = append(args, bounds.MinLat, bounds.MaxLat, bounds.MinLon, bounds.MaxLon)
	}
	query += " ORDER BY id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query road edges: %w", err)
	}
	defer rows.Close()

	var edges []models.RoadEdge
	nodeIDs := make(map[int64]struct{})
	for rows.Next() {
		var e models.RoadEdge
		var geom []byte
		if err := rows.Scan(&e.ID, &e.WayID, &e.From, &e.To, &e.Name, &e.Highway, &geom); err != nil {
			return nil, fmt.Errorf("failed to scan road edge: %w", err)
		}
		e.Polyline, err = decodePolyline(geom)
		if err != nil {
			return nil, fmt.Errorf("failed to decode edge %d: %w", e.ID, err)
		}
		edges = append(edges, e)
		nodeIDs[e.From] = struct{}{}
		nodeIDs[e.To] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate road edges: %w", err)
	}

	g := roadnet.NewGraph()
	if err := r.loadNodes(ctx, g, nodeIDs, bounds == nil); err != nil {
		return nil, err
	}
	for _, e := range edges {
		if err := g.AddEdge(e); err != nil {
			return nil, fmt.Errorf("failed to rebuild road graph: %w", err)
		}
	}
	return g, nil
}

func (r *RoadRepository) loadNodes(ctx context.Context, g *roadnet.Graph, wanted map[int64]struct{}, all bool) error {
	rows, err := r.db.QueryContext(ctx, "SELECT id, lat, lon FROM road_nodes ORDER BY id")
	if err != nil {
		return fmt.Errorf("failed to query road nodes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var n models.RoadNode
		if err := rows.Scan(&n.ID, &n.Lat, &n.Lon); err != nil {
			return fmt.Errorf("failed to scan road node: %w", err)
		}
		if _, ok := wanted[n.ID]; all || ok {
			g.AddNode(n)
		}
	}
	return rows.Err()
}

// LatestImport returns the most recent import, nil when the cache is empty
func (r *RoadRepository) LatestImport(ctx context.Context) (*models.RoadImport, error) {
	var imp models.RoadImport
	err := r.db.QueryRowContext(ctx, `SELECT id, source, format, nodes, edges, imported_at
		FROM road_imports ORDER BY imported_at DESC LIMIT 1`).
		Scan(&imp.ID, &imp.Source, &imp.Format, &imp.Nodes, &imp.Edges, &imp.ImportedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query road imports: %w", err)
	}
	return &imp, nil
}

func encodePolyline(pts []spatial.Point) ([]byte, error) {
	ls := make(orb.LineString, len(pts))
	for i, p := range pts {
		ls[i] = orb.Point{p.Lon, p.Lat}
	}
	return wkb.Marshal(ls)
}

func decodePolyline(data []byte) ([]spatial.Point, error) {
	geom, err := wkb.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	ls, ok := geom.(orb.LineString)
	if !ok {
		return nil, fmt.Errorf("expected LineString, got %s", geom.GeoJSONType())
	}
	pts := make([]spatial.Point, len(ls))
	for i, p := range ls {
		pts[i] = spatial.Point{Lat: p.Lat(), Lon: p.Lon()}
	}
	return pts, nil
}
