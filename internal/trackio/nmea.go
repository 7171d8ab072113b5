package trackio

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/adrianmo/go-nmea"

	"github.com/jengzang/trackfix/internal/analysis"
	"github.com/jengzang/trackfix/internal/logging"
	"github.com/jengzang/trackfix/internal/models"
	"github.com/jengzang/trackfix/internal/spatial"
)

// ReadNMEA extracts fixes from RMC and GGA sentences. GGA sentences carry no
// date and take it from the latest RMC; those seen before any RMC are dropped.
// refYear resolves two-digit years, 0 means the current year. Sentences that
// do not parse or report no fix are skipped.
func ReadNMEA(r io.Reader, refYear int) (models.Trajectory, error) {
	if refYear == 0 {
		refYear = time.Now().UTC().Year()
	}

	scanner := bufio.NewScanner(r)
	var (
		traj     models.Trajectory
		lastDate nmea.Date
		skipped  int
	)

	add := func(ts time.Time, lat, lon float64) {
		if n := len(traj); n > 0 && traj[n-1].Time.Equal(ts) {
			// RMC and GGA of the same epoch describe one fix
			return
		}
		traj = append(traj, models.TrajectoryPoint{Time: ts, Latitude: lat, Longitude: lon})
	}

	for line := 0; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		sentence, err := nmea.Parse(text)
		if err != nil {
			skipped++
			continue
		}

		switch s := sentence.(type) {
		case nmea.RMC:
			if s.Validity != "A" {
				skipped++
				continue
			}
			lastDate = s.Date
			if !(spatial.Point{Lat: s.Latitude, Lon: s.Longitude}).Valid() {
				return nil, analysis.NewValidationError(line, "lat/lon", "coordinate (%v, %v) out of range", s.Latitude, s.Longitude)
			}
			add(nmea.DateTime(refYear, s.Date, s.Time), s.Latitude, s.Longitude)
		case nmea.GGA:
			if !lastDate.Valid || s.FixQuality == "0" {
				skipped++
				continue
			}
			if !(spatial.Point{Lat: s.Latitude, Lon: s.Longitude}).Valid() {
				return nil, analysis.NewValidationError(line, "lat/lon", "coordinate (%v, %v) out of range", s.Latitude, s.Longitude)
			}
			add(nmea.DateTime(refYear, lastDate, s.Time), s.Latitude, s.Longitude)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read NMEA log: %w", err)
	}

	if skipped > 0 {
		logging.S().Debugw("[NMEA] skipped sentences", "count", skipped, "fixes", len(traj))
	}
	if traj == nil {
		traj = models.Trajectory{}
	}
	return traj, nil
}
