package roadnet

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Road network file formats
const (
	FormatOSM     = "osm"
	FormatGeoJSON = "geojson"
)

// DetectFormat infers the road file format from its extension
func DetectFormat(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".osm", ".xml":
		return FormatOSM, nil
	case ".geojson", ".json":
		return FormatGeoJSON, nil
	default:
		return "", fmt.Errorf("cannot infer road network format of %q", path)
	}
}

// LoadFile reads a road network file. An empty format is inferred from the extension.
func LoadFile(ctx context.Context, path, format string, highways []string) (*Graph, error) {
	if format == "" {
		var err error
		if format, err = DetectFormat(path); err != nil {
			return nil, err
		}
	}

	switch format {
	case FormatOSM:
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open road network: %w", err)
		}
		defer f.Close()
		return LoadOSM(ctx, f, NewHighwayFilter(highways))
	case FormatGeoJSON:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read road network: %w", err)
		}
		return LoadGeoJSON(data)
	default:
		return nil, fmt.Errorf("unsupported road network format %q", format)
	}
}
