package trackio

import (
	"fmt"
	"io"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/jengzang/trackfix/internal/models"
)

// ToFeatureCollection renders t as one LineString feature for the path followed
// by one Point feature per sample carrying its attributes
func ToFeatureCollection(t models.Trajectory) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if len(t) == 0 {
		return fc
	}

	line := make(orb.LineString, len(t))
	for i, p := range t {
		line[i] = orb.Point{p.Longitude, p.Latitude}
	}
	path := geojson.NewFeature(line)
	path.Properties["kind"] = "path"
	path.Properties["points"] = len(t)
	path.Properties["start"] = t[0].Time.UTC().Format(timeOutputLayout)
	path.Properties["end"] = t[len(t)-1].Time.UTC().Format(timeOutputLayout)
	fc.Append(path)

	for i, p := range t {
		f := geojson.NewFeature(orb.Point{p.Longitude, p.Latitude})
		f.Properties["kind"] = "sample"
		f.Properties["seq"] = i
		f.Properties["time"] = p.Time.UTC().Format(timeOutputLayout)
		f.Properties["interpolated"] = p.Interpolated
		if p.MatchedEdgeID != nil {
			f.Properties["matched_edge"] = *p.MatchedEdgeID
		}
		if p.DistanceToRoad != nil {
			f.Properties["distance_to_road"] = *p.DistanceToRoad
		}
		if p.BearingIn != nil {
			f.Properties["bearing_in"] = *p.BearingIn
		}
		fc.Append(f)
	}
	return fc
}

// WriteGeoJSON writes t as a FeatureCollection
func WriteGeoJSON(w io.Writer, t models.Trajectory) error {
	data, err := ToFeatureCollection(t).MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to encode GeoJSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write GeoJSON: %w", err)
	}
	return nil
}
