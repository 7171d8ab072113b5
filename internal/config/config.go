// Package config loads the service configuration from an optional YAML file
// overlaid with environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/jengzang/trackfix/internal/analysis"
)

// Config is the application configuration
type Config struct {
	Server   ServerConfig           `yaml:"server"`
	Database DatabaseConfig         `yaml:"database"`
	Roads    RoadsConfig            `yaml:"roads"`
	Geodesy  GeodesyConfig          `yaml:"geodesy"`
	Curve    analysis.CurveConfig   `yaml:"curve"`
	Refine   analysis.RefineConfig  `yaml:"refine"`
	Combine  analysis.CombineConfig `yaml:"combine"`
	Despike  analysis.DespikeConfig `yaml:"despike"`
	LogDebug bool                   `yaml:"logDebug"`
}

// ServerConfig holds the HTTP listener settings
type ServerConfig struct {
	Port      string `yaml:"port" validate:"required"`
	JWTSecret string `yaml:"jwtSecret"` // empty disables authentication
	// RateLimit is the number of requests allowed per client IP per minute
	RateLimit int `yaml:"rateLimit" validate:"gte=0"`
	// MaxBodyBytes caps request bodies
	MaxBodyBytes int64 `yaml:"maxBodyBytes" validate:"gte=0"`
}

// DatabaseConfig holds the road cache location
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// RoadsConfig describes where the road network comes from
type RoadsConfig struct {
	// Source is a file path for osm and geojson, ignored for sqlite
	Source string `yaml:"source"`
	Format string `yaml:"format" validate:"omitempty,oneof=osm geojson sqlite"`
	// MaxSearchRadius bounds nearest-edge queries in meters; 0 is unbounded
	MaxSearchRadius float64  `yaml:"maxSearchRadius" validate:"gte=0"`
	Highways        []string `yaml:"highways"`
}

// GeodesyConfig selects the earth model
type GeodesyConfig struct {
	Model string `yaml:"model" validate:"omitempty,oneof=wgs84 sphere"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         ":8080",
			RateLimit:    100,
			MaxBodyBytes: 32 << 20,
		},
		Database: DatabaseConfig{Path: "./data/roads.db"},
		Roads:    RoadsConfig{Format: "sqlite", MaxSearchRadius: 500},
		Geodesy:  GeodesyConfig{Model: "wgs84"},
		Curve:    analysis.DefaultCurveConfig(),
		Refine:   analysis.DefaultRefineConfig(),
		Combine:  analysis.DefaultCombineConfig(),
		Despike:  analysis.DefaultDespikeConfig(),
	}
}

// Load reads path (if non-empty; CONFIG_FILE otherwise) over the defaults,
// applies environment overrides and validates the result
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays PORT, DB_PATH, JWT_SECRET, ROAD_NETWORK, ROAD_FORMAT,
// EARTH_MODEL and LOG_DEBUG
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("PORT"); ok && v != "" {
		c.Server.Port = v
	}
	if v, ok := lookup("DB_PATH"); ok && v != "" {
		c.Database.Path = v
	}
	if v, ok := lookup("JWT_SECRET"); ok {
		c.Server.JWTSecret = v
	}
	if v, ok := lookup("ROAD_NETWORK"); ok && v != "" {
		c.Roads.Source = v
		if format, ok := lookup("ROAD_FORMAT"); ok && format != "" {
			c.Roads.Format = format
		}
	}
	if v, ok := lookup("EARTH_MODEL"); ok && v != "" {
		c.Geodesy.Model = v
	}
	if v, ok := lookup("LOG_DEBUG"); ok && v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid LOG_DEBUG %q: %w", v, err)
		}
		c.LogDebug = debug
	}
	return nil
}

// Validate checks every section
func (c *Config) Validate() error {
	v := validator.New()
	for _, section := range []interface{}{c.Server, c.Database, c.Roads, c.Geodesy} {
		if err := v.Struct(section); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
	}
	if c.Roads.Format != "sqlite" && c.Roads.Source != "" {
		if _, err := os.Stat(c.Roads.Source); errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("invalid config: road network %s does not exist", c.Roads.Source)
		}
	}
	for _, stage := range []interface{ Validate() error }{c.Curve, c.Refine, c.Combine, c.Despike} {
		if err := stage.Validate(); err != nil {
			return err
		}
	}
	return nil
}
