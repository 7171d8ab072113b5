// Package trackio reads and writes trajectories in the file formats GPS loggers
// and mapping tools exchange: CSV tables, GPX, NMEA 0183 logs and GeoJSON.
package trackio

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/jengzang/trackfix/internal/models"
)

// Format identifies a trajectory file format
type Format string

const (
	FormatCSV     Format = "csv"
	FormatGPX     Format = "gpx"
	FormatNMEA    Format = "nmea"
	FormatGeoJSON Format = "geojson"
)

// DetectFormat infers the format from a file extension
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".gpx":
		return FormatGPX, nil
	case ".nmea", ".nma", ".log":
		return FormatNMEA, nil
	case ".geojson", ".json":
		return FormatGeoJSON, nil
	default:
		return "", fmt.Errorf("cannot infer trajectory format of %q", path)
	}
}

// Decode reads every run contained in r. CSV and NMEA inputs hold one run;
// GPX yields one run per track segment.
func Decode(r io.Reader, f Format) ([]models.Trajectory, error) {
	switch f {
	case FormatCSV:
		t, err := ReadCSV(r)
		if err != nil {
			return nil, err
		}
		return []models.Trajectory{t}, nil
	case FormatNMEA:
		t, err := ReadNMEA(r, 0)
		if err != nil {
			return nil, err
		}
		return []models.Trajectory{t}, nil
	case FormatGPX:
		return ReadGPX(r)
	default:
		return nil, fmt.Errorf("reading %s trajectories is not supported", f)
	}
}

// Encode writes t to w
func Encode(w io.Writer, f Format, t models.Trajectory) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, t)
	case FormatGPX:
		return WriteGPX(w, t)
	case FormatGeoJSON:
		return WriteGeoJSON(w, t)
	default:
		return fmt.Errorf("writing %s trajectories is not supported", f)
	}
}
