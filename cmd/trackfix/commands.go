package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/jengzang/trackfix/internal/analysis"
	"github.com/jengzang/trackfix/internal/config"
	"github.com/jengzang/trackfix/internal/database"
	"github.com/jengzang/trackfix/internal/logging"
	"github.com/jengzang/trackfix/internal/models"
	"github.com/jengzang/trackfix/internal/repository"
	"github.com/jengzang/trackfix/internal/service"
	"github.com/jengzang/trackfix/internal/spatial"
	"github.com/jengzang/trackfix/internal/trackio"
)

var ioFlags = []cli.Flag{
	&cli.StringSliceFlag{
		Name:     "in",
		Aliases:  []string{"i"},
		Usage:    "Input trajectory (.csv, .gpx, .nmea); repeat for several runs",
		Required: true,
	},
	&cli.StringFlag{
		Name:     "out",
		Aliases:  []string{"o"},
		Usage:    "Output file (.csv, .gpx, .geojson)",
		Required: true,
	},
	&cli.BoolFlag{
		Name:  "lenient",
		Usage: "Accept timestamps that go backwards",
	},
}

var curveFlags = []cli.Flag{
	&cli.Float64Flag{Name: "threshold", Usage: "Bearing change in degrees that marks a curve"},
	&cli.IntFlag{Name: "subdivisions", Usage: "Points inserted per curve segment"},
	&cli.BoolFlag{Name: "exclusive", Usage: "Require the bearing change to exceed the threshold"},
}

var refineFlags = []cli.Flag{
	&cli.StringFlag{Name: "roads", Usage: "Road network file (.osm, .geojson)"},
	&cli.StringFlag{Name: "roads-format", Usage: "Road network format: osm, geojson"},
	&cli.StringFlag{Name: "db", Usage: "SQLite road cache, used when --roads is not given"},
	&cli.Float64Flag{Name: "max-radius", Usage: "Nearest-edge search radius in meters"},
	&cli.Float64Flag{Name: "tolerance", Usage: "Maximum distance in meters between a point and its road"},
	&cli.BoolFlag{Name: "delete-off-road", Usage: "Drop points farther than the tolerance from every road"},
	&cli.StringFlag{Name: "junction-key", Usage: "What counts as a change of road: edge, way"},
	&cli.Float64Flag{Name: "clip", Usage: "Only load roads within this many meters of the input tracks (0 loads all)"},
}

var despikeFlags = []cli.Flag{
	&cli.Float64Flag{Name: "max-speed", Usage: "Highest plausible speed in m/s"},
	&cli.Float64Flag{Name: "jump-distance", Usage: "Meters a fix may not leap within --jump-time"},
	&cli.DurationFlag{Name: "jump-time", Usage: "Window for the jump rule"},
}

var combineFlags = []cli.Flag{
	&cli.StringFlag{Name: "reference", Usage: "Reference run policy: longest, first"},
	&cli.StringFlag{Name: "proximity", Usage: "Proximity metric: point, segment"},
}

func interpolateCommand() *cli.Command {
	return &cli.Command{
		Name:  "interpolate",
		Usage: "Densify the curves of a trajectory",
		Flags: concat(ioFlags, curveFlags),
		Action: func(c *cli.Context) error {
			return runStages(c, []string{analysis.StageInterpolate})
		},
	}
}

func refineCommand() *cli.Command {
	return &cli.Command{
		Name:  "refine",
		Usage: "Snap a trajectory onto the road network",
		Flags: concat(ioFlags, refineFlags),
		Action: func(c *cli.Context) error {
			return runStages(c, []string{analysis.StageRefine})
		},
	}
}

func combineCommand() *cli.Command {
	return &cli.Command{
		Name:  "combine",
		Usage: "Merge several runs of one route",
		Flags: concat(ioFlags, combineFlags),
		Action: func(c *cli.Context) error {
			return runStages(c, []string{analysis.StageCombine})
		},
	}
}

func despikeCommand() *cli.Command {
	return &cli.Command{
		Name:  "despike",
		Usage: "Drop GPS fixes no vehicle could have reached",
		Flags: concat(ioFlags, despikeFlags),
		Action: func(c *cli.Context) error {
			return runStages(c, []string{analysis.StageDespike})
		},
	}
}

func pipelineCommand() *cli.Command {
	return &cli.Command{
		Name:  "pipeline",
		Usage: "Combine, refine and interpolate in one pass",
		Flags: concat(ioFlags, curveFlags, refineFlags, combineFlags, despikeFlags, []cli.Flag{
			&cli.StringFlag{
				Name:  "stages",
				Usage: "Comma-separated stage list",
				Value: strings.Join(analysis.DefaultStageOrder, ","),
			},
		}),
		Action: func(c *cli.Context) error {
			return runStages(c, strings.Split(c.String("stages"), ","))
		},
	}
}

func roadsCommand() *cli.Command {
	return &cli.Command{
		Name:  "roads",
		Usage: "Manage the road network cache",
		Subcommands: []*cli.Command{
			{
				Name:  "import",
				Usage: "Load a road network file into the SQLite cache",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "osm", Usage: "OSM XML file"},
					&cli.StringFlag{Name: "geojson", Usage: "GeoJSON LineString file"},
					&cli.StringFlag{Name: "db", Usage: "SQLite cache path", Required: true},
					&cli.StringSliceFlag{Name: "highway", Usage: "Highway values to keep (default: drivable roads)"},
				},
				Action: importRoads,
			},
			{
				Name:  "stats",
				Usage: "Summarise a road network",
				Flags: refineFlags[:4],
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					geo, err := spatial.NewGeodesy(cfg.Geodesy.Model)
					if err != nil {
						return err
					}
					rs, closeDB, err := openRoads(c, cfg, geo, nil)
					if err != nil {
						return err
					}
					defer closeDB()
					stats, err := rs.Stats(c.Context)
					if err != nil {
						return err
					}
					n := stats.Network
					fmt.Fprintf(c.App.Writer, "source: %s\nnodes: %d\nedges: %d\nways: %d\nlength: %.1f km\n",
						stats.Source, n.Nodes, n.Edges, n.Ways, n.LengthMeters/1000)
					return nil
				},
			},
		},
	}
}

func importRoads(c *cli.Context) error {
	path, format := c.String("osm"), "osm"
	if path == "" {
		path, format = c.String("geojson"), "geojson"
	}
	if path == "" {
		return fmt.Errorf("one of --osm or --geojson is required")
	}

	db, err := database.Open(database.Config{Path: c.String("db")})
	if err != nil {
		return err
	}
	defer db.Close()

	rs := service.NewRoadService(repository.NewRoadRepository(db), spatial.Sphere{})
	imp, err := rs.Import(c.Context, path, format, c.StringSlice("highway"))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "imported %d edges and %d nodes from %s (import %s)\n", imp.Edges, imp.Nodes, path, imp.ID)
	return nil
}

// runStages reads the inputs, runs the named stages and writes the result
func runStages(c *cli.Context, stages []string) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	applyFlags(c, cfg)

	geo, err := spatial.NewGeodesy(cfg.Geodesy.Model)
	if err != nil {
		return err
	}

	runs, err := readRuns(c.StringSlice("in"))
	if err != nil {
		return err
	}

	var rs *service.RoadService
	for _, s := range stages {
		if s == analysis.StageRefine {
			var closeDB func()
			rs, closeDB, err = openRoads(c, cfg, geo, clipBounds(c.Float64("clip"), runs))
			if err != nil {
				return err
			}
			defer closeDB()
			break
		}
	}

	svc := service.NewTrajectoryService(geo, rs, cfg.Curve, cfg.Refine, cfg.Combine).WithDespike(cfg.Despike)
	out, report, err := svc.Pipeline(runs, service.PipelineParams{Stages: stages})
	if err != nil {
		return err
	}

	if err := writeOutput(c.String("out"), out); err != nil {
		return err
	}
	for _, s := range report.Stages {
		logging.S().Infow("[CLI] stage", "stage", s.Stage, "points_in", s.PointsIn, "points_out", s.PointsOut, "duration", s.Duration)
	}
	fmt.Fprintf(c.App.Writer, "wrote %d points to %s\n", len(out), c.String("out"))
	return nil
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	return config.Load(c.String("config"))
}

// applyFlags overlays explicitly set command-line flags on cfg
func applyFlags(c *cli.Context, cfg *config.Config) {
	if c.Bool("lenient") {
		cfg.Curve.TimeOrder = analysis.TimeOrderLenient
		cfg.Refine.TimeOrder = analysis.TimeOrderLenient
		cfg.Despike.TimeOrder = analysis.TimeOrderLenient
	}
	if c.IsSet("threshold") {
		cfg.Curve.Threshold = c.Float64("threshold")
	}
	if c.IsSet("subdivisions") {
		cfg.Curve.Subdivisions = c.Int("subdivisions")
	}
	if c.IsSet("exclusive") {
		cfg.Curve.Exclusive = c.Bool("exclusive")
	}
	if c.IsSet("tolerance") {
		cfg.Refine.Tolerance = c.Float64("tolerance")
	}
	if c.IsSet("delete-off-road") {
		cfg.Refine.DeleteOffRoadPoints = c.Bool("delete-off-road")
	}
	if c.IsSet("junction-key") {
		cfg.Refine.JunctionKey = c.String("junction-key")
	}
	if c.IsSet("reference") {
		cfg.Combine.Reference = c.String("reference")
	}
	if c.IsSet("proximity") {
		cfg.Combine.Proximity = c.String("proximity")
	}
	if c.IsSet("max-speed") {
		cfg.Despike.MaxSpeed = c.Float64("max-speed")
	}
	if c.IsSet("jump-distance") {
		cfg.Despike.JumpDistance = c.Float64("jump-distance")
	}
	if c.IsSet("jump-time") {
		cfg.Despike.JumpTime = c.Duration("jump-time")
	}
}

// clipBounds is the extent of runs grown by margin meters, nil when clipping is off
func clipBounds(margin float64, runs []models.Trajectory) *spatial.Bounds {
	if margin <= 0 {
		return nil
	}
	var pts []spatial.Point
	for _, r := range runs {
		pts = append(pts, r.Points()...)
	}
	if len(pts) == 0 {
		return nil
	}
	b := spatial.BoundingBox(pts).Expand(margin)
	return &b
}

// openRoads loads the road network named by the flags, falling back to the
// configuration. A non-nil bounds limits the load to that region.
func openRoads(c *cli.Context, cfg *config.Config, geo spatial.Geodesy, bounds *spatial.Bounds) (*service.RoadService, func(), error) {
	roads := cfg.Roads
	if c.IsSet("max-radius") {
		roads.MaxSearchRadius = c.Float64("max-radius")
	}
	dbPath := cfg.Database.Path
	if c.IsSet("db") {
		dbPath = c.String("db")
	}

	switch {
	case c.String("roads") != "":
		roads.Source = c.String("roads")
		roads.Format = c.String("roads-format")
	case c.IsSet("db"):
		roads.Format = "sqlite"
	}

	var repo *repository.RoadRepository
	closeDB := func() {}
	if roads.Format == "sqlite" {
		db, err := database.Open(database.Config{Path: dbPath})
		if err != nil {
			return nil, nil, err
		}
		closeDB = func() { db.Close() }
		repo = repository.NewRoadRepository(db)
	}

	rs := service.NewRoadService(repo, geo)
	if err := rs.LoadWithin(context.Background(), roads, bounds); err != nil {
		closeDB()
		return nil, nil, err
	}
	return rs, closeDB, nil
}

func readRuns(paths []string) ([]models.Trajectory, error) {
	var runs []models.Trajectory
	for _, path := range paths {
		format, err := trackio.DetectFormat(path)
		if err != nil {
			return nil, err
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		rs, err := trackio.Decode(f, format)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		runs = append(runs, rs...)
	}
	return runs, nil
}

func writeOutput(path string, traj models.Trajectory) error {
	format, err := trackio.DetectFormat(path)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := trackio.Encode(f, format, traj); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func concat(groups ...[]cli.Flag) []cli.Flag {
	var out []cli.Flag
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
