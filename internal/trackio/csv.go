package trackio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jengzang/trackfix/internal/analysis"
	"github.com/jengzang/trackfix/internal/models"
	"github.com/jengzang/trackfix/internal/spatial"
)

// Time layouts accepted in the time column, tried in order
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
}

// timeOutputLayout keeps sub-second precision of interpolated points;
// "2006-01-02 15:04:05" parses it back
const timeOutputLayout = "2006-01-02 15:04:05.999999999"

var columnAliases = map[string]string{
	"time":      "time",
	"timestamp": "time",
	"datetime":  "time",
	"lat":       "lat",
	"latitude":  "lat",
	"lon":       "lon",
	"lng":       "lon",
	"longitude": "lon",
}

// ReadCSV parses a table with time, latitude and longitude columns. Other
// columns are ignored. Rows are returned in file order.
func ReadCSV(r io.Reader) (models.Trajectory, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, analysis.NewValidationError(-1, "header", "empty input")
	}
	if err != nil {
		return nil, readError(err, -1, "header")
	}

	cols := map[string]int{}
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if canon, ok := columnAliases[key]; ok {
			if _, dup := cols[canon]; !dup {
				cols[canon] = i
			}
		}
	}
	for _, want := range []string{"time", "lat", "lon"} {
		if _, ok := cols[want]; !ok {
			return nil, analysis.NewValidationError(-1, want, "missing column")
		}
	}

	var traj models.Trajectory
	for row := 0; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, readError(err, row, "row")
		}
		p, err := parseRow(rec, cols, row)
		if err != nil {
			return nil, err
		}
		traj = append(traj, p)
	}
	if traj == nil {
		traj = models.Trajectory{}
	}
	return traj, nil
}

// readError reports malformed CSV as a ValidationError and passes I/O failures through
func readError(err error, row int, field string) error {
	var perr *csv.ParseError
	if errors.As(err, &perr) {
		return analysis.NewValidationError(row, field, "line %d, column %d: %v", perr.Line, perr.Column, perr.Err)
	}
	if row < 0 {
		return fmt.Errorf("failed to read CSV header: %w", err)
	}
	return fmt.Errorf("failed to read CSV row %d: %w", row, err)
}

func parseRow(rec []string, cols map[string]int, row int) (models.TrajectoryPoint, error) {
	field := func(name string) (string, error) {
		i := cols[name]
		if i >= len(rec) {
			return "", analysis.NewValidationError(row, name, "row has %d fields", len(rec))
		}
		return strings.TrimSpace(rec[i]), nil
	}

	ts, err := field("time")
	if err != nil {
		return models.TrajectoryPoint{}, err
	}
	t, err := ParseTime(ts)
	if err != nil {
		return models.TrajectoryPoint{}, analysis.NewValidationError(row, "time", "unparsable time %q", ts)
	}

	var coord [2]float64
	for i, name := range []string{"lat", "lon"} {
		s, err := field(name)
		if err != nil {
			return models.TrajectoryPoint{}, err
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return models.TrajectoryPoint{}, analysis.NewValidationError(row, name, "non-numeric value %q", s)
		}
		coord[i] = v
	}
	if !(spatial.Point{Lat: coord[0], Lon: coord[1]}).Valid() {
		return models.TrajectoryPoint{}, analysis.NewValidationError(row, "lat/lon", "coordinate (%v, %v) out of range", coord[0], coord[1])
	}

	return models.TrajectoryPoint{Time: t, Latitude: coord[0], Longitude: coord[1]}, nil
}

// ParseTime parses a timestamp in one of the accepted layouts; zoneless values are UTC
func ParseTime(s string) (time.Time, error) {
	var firstErr error
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

// WriteCSV writes t with the columns Time, lat, lon, interpolated and matched_edge
func WriteCSV(w io.Writer, t models.Trajectory) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Time", "lat", "lon", "interpolated", "matched_edge"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, p := range t {
		edge := ""
		if p.MatchedEdgeID != nil {
			edge = strconv.FormatInt(*p.MatchedEdgeID, 10)
		}
		rec := []string{
			p.Time.UTC().Format(timeOutputLayout),
			strconv.FormatFloat(p.Latitude, 'f', -1, 64),
			strconv.FormatFloat(p.Longitude, 'f', -1, 64),
			strconv.FormatBool(p.Interpolated),
			edge,
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
