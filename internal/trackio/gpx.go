package trackio

import (
	"encoding/xml"
	"fmt"
	"io"

	"github.com/twpayne/go-gpx"

	"github.com/jengzang/trackfix/internal/analysis"
	"github.com/jengzang/trackfix/internal/models"
	"github.com/jengzang/trackfix/internal/spatial"
)

// ReadGPX returns one run per non-empty track segment. Routes and waypoints
// carry no timing and are ignored.
func ReadGPX(r io.Reader) ([]models.Trajectory, error) {
	g, err := gpx.Read(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse GPX: %w", err)
	}

	var runs []models.Trajectory
	index := 0
	for _, trk := range g.Trk {
		for _, seg := range trk.TrkSeg {
			var run models.Trajectory
			for _, pt := range seg.TrkPt {
				if pt.Time.IsZero() {
					return nil, analysis.NewValidationError(index, "time", "track point has no timestamp")
				}
				if !(spatial.Point{Lat: pt.Lat, Lon: pt.Lon}).Valid() {
					return nil, analysis.NewValidationError(index, "lat/lon", "coordinate (%v, %v) out of range", pt.Lat, pt.Lon)
				}
				run = append(run, models.TrajectoryPoint{Time: pt.Time.UTC(), Latitude: pt.Lat, Longitude: pt.Lon})
				index++
			}
			if len(run) > 0 {
				runs = append(runs, run)
			}
		}
	}
	return runs, nil
}

// WriteGPX writes t as a single GPX 1.1 track segment
func WriteGPX(w io.Writer, t models.Trajectory) error {
	seg := &gpx.TrkSegType{TrkPt: make([]*gpx.WptType, 0, len(t))}
	for _, p := range t {
		wpt := &gpx.WptType{Lat: p.Latitude, Lon: p.Longitude, Time: p.Time.UTC()}
		if p.Interpolated {
			wpt.Type = "interpolated"
		}
		seg.TrkPt = append(seg.TrkPt, wpt)
	}
	g := &gpx.GPX{
		Version: "1.1",
		Creator: "trackfix",
		Trk:     []*gpx.TrkType{{Name: "trackfix", TrkSeg: []*gpx.TrkSegType{seg}}},
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	if err := g.WriteIndent(w, "", "  "); err != nil {
		return fmt.Errorf("failed to write GPX: %w", err)
	}
	return nil
}
