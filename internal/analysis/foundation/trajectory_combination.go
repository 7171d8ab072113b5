package foundation

import (
	"math"
	"sort"

	"github.com/golang/geo/s2"
	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/jengzang/trackfix/internal/analysis"
	"github.com/jengzang/trackfix/internal/logging"
	"github.com/jengzang/trackfix/internal/models"
	"github.com/jengzang/trackfix/internal/spatial"
)

// ReferencePolicy picks the run that defines the canonical ordering of the route
type ReferencePolicy func(runs []models.Trajectory) int

// LongestReference picks the run with the most points; ties go to the earliest run
func LongestReference(runs []models.Trajectory) int {
	best := 0
	for i := range runs {
		if len(runs[i]) > len(runs[best]) {
			best = i
		}
	}
	return best
}

// FirstReference always picks the first run
func FirstReference(runs []models.Trajectory) int {
	return 0
}

// TrajectoryCombiner merges repeated runs of one route into a single
// trajectory ordered along the route
type TrajectoryCombiner struct {
	cfg       analysis.CombineConfig
	geo       spatial.Geodesy
	reference ReferencePolicy
}

// NewTrajectoryCombiner validates cfg and creates a combiner
func NewTrajectoryCombiner(cfg analysis.CombineConfig, geo spatial.Geodesy) (*TrajectoryCombiner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if geo == nil {
		return nil, &analysis.ConfigurationError{Param: "geodesy", Value: nil, Reason: "required"}
	}
	c := &TrajectoryCombiner{cfg: cfg, geo: geo, reference: LongestReference}
	if cfg.Reference == analysis.ReferenceFirst {
		c.reference = FirstReference
	}
	return c, nil
}

// WithReferencePolicy returns a copy of c that selects its reference run with p
func (c *TrajectoryCombiner) WithReferencePolicy(p ReferencePolicy) *TrajectoryCombiner {
	cp := *c
	cp.reference = p
	return &cp
}

// Name returns the registry name
func (c *TrajectoryCombiner) Name() string {
	return analysis.StageCombine
}

// rankedPoint is a pooled point together with its sort key
type rankedPoint struct {
	point models.TrajectoryPoint
	key   float64 // reference rank, fractional under segment proximity
	dist  float64 // meters to the reference geometry
	seq   int     // position in the pool
}

// Combine pools every point of every run and orders the pool by the rank of
// the nearest reference point, then by distance to it, then by timestamp.
func (c *TrajectoryCombiner) Combine(runs []models.Trajectory) (models.Trajectory, error) {
	if len(runs) == 0 {
		return models.Trajectory{}, nil
	}
	for _, run := range runs {
		if err := analysis.CheckCoordinates(run); err != nil {
			return nil, err
		}
	}
	if len(runs) == 1 {
		return runs[0].Clone(), nil
	}

	ref := c.reference(runs)
	if ref < 0 || ref >= len(runs) {
		return nil, &analysis.ConfigurationError{Param: "reference", Value: ref, Reason: "policy picked a run out of range"}
	}
	reference := runs[ref]

	total := 0
	for _, run := range runs {
		total += len(run)
	}
	if len(reference) == 0 {
		// the longest run is empty, so every run is
		return models.Trajectory{}, nil
	}

	tree := newRankTree(reference)
	pool := make([]rankedPoint, 0, total)
	for _, run := range runs {
		for _, p := range run {
			key, dist := c.rank(tree, reference, p.Point())
			pool = append(pool, rankedPoint{point: p, key: key, dist: dist, seq: len(pool)})
		}
	}

	sort.SliceStable(pool, func(i, j int) bool {
		a, b := pool[i], pool[j]
		if a.key != b.key {
			return a.key < b.key
		}
		if a.dist != b.dist {
			return a.dist < b.dist
		}
		if !a.point.Time.Equal(b.point.Time) {
			return a.point.Time.Before(b.point.Time)
		}
		return a.seq < b.seq
	})

	out := make(models.Trajectory, len(pool))
	for i, rp := range pool {
		out[i] = rp.point
	}

	logging.S().Debugw("[TrajectoryCombiner] combined runs",
		"runs", len(runs), "reference", ref, "reference_points", len(reference), "points_out", len(out))
	return out, nil
}

// rank returns the sort key and distance of p relative to the reference run
func (c *TrajectoryCombiner) rank(tree *rankTree, reference models.Trajectory, p spatial.Point) (float64, float64) {
	candidates := tree.nearest(p, c.cfg.Candidates)

	bestKey, bestDist := math.Inf(1), math.Inf(1)
	consider := func(key, dist float64) {
		if dist < bestDist || (dist == bestDist && key < bestKey) {
			bestKey, bestDist = key, dist
		}
	}

	for _, r := range candidates {
		if c.cfg.Proximity != analysis.ProximitySegment || len(reference) < 2 {
			consider(float64(r), c.geo.Distance(p, reference[r].Point()))
			continue
		}
		for _, seg := range []int{r - 1, r} {
			if seg < 0 || seg+1 >= len(reference) {
				continue
			}
			t, q := c.projectOnSegment(p, reference[seg].Point(), reference[seg+1].Point())
			consider(float64(seg)+t, c.geo.Distance(p, q))
		}
	}
	return bestKey, bestDist
}

// projectOnSegment returns the fraction along a-b of the projection of p and the projected point
func (c *TrajectoryCombiner) projectOnSegment(p, a, b spatial.Point) (float64, spatial.Point) {
	length := c.geo.Distance(a, b)
	if length == 0 {
		return 0, a
	}
	q := spatial.PointFromS2(s2.Project(p.S2(), a.S2(), b.S2()))
	t := c.geo.Distance(a, q) / length
	if t >= 1 {
		// keep the key inside this segment's rank
		t = math.Nextafter(1, 0)
	}
	return t, q
}

// rankTree is a kd-tree over the reference run's points in 3D unit-vector space,
// where nearest by chord is nearest on the sphere
type rankTree struct {
	tree *kdtree.Tree
}

func newRankTree(reference models.Trajectory) *rankTree {
	pts := make(refPoints, len(reference))
	for i, p := range reference {
		pts[i] = newRefPoint(p.Point(), i)
	}
	return &rankTree{tree: kdtree.New(pts, false)}
}

// nearest returns the ranks of up to n reference points closest to p, nearest first
func (t *rankTree) nearest(p spatial.Point, n int) []int {
	keep := kdtree.NewNKeeper(n)
	t.tree.NearestSet(keep, newRefPoint(p, -1))

	found := make([]kdtree.ComparableDist, 0, len(keep.Heap))
	for _, cd := range keep.Heap {
		if cd.Comparable != nil {
			found = append(found, cd)
		}
	}
	sort.Slice(found, func(i, j int) bool {
		if found[i].Dist != found[j].Dist {
			return found[i].Dist < found[j].Dist
		}
		return found[i].Comparable.(refPoint).rank < found[j].Comparable.(refPoint).rank
	})

	ranks := make([]int, len(found))
	for i, cd := range found {
		ranks[i] = cd.Comparable.(refPoint).rank
	}
	return ranks
}

type refPoint struct {
	xyz  [3]float64
	rank int
}

func newRefPoint(p spatial.Point, rank int) refPoint {
	v := p.S2()
	return refPoint{xyz: [3]float64{v.X, v.Y, v.Z}, rank: rank}
}

func (p refPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(refPoint)
	return p.xyz[d] - q.xyz[d]
}

func (p refPoint) Dims() int { return 3 }

func (p refPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(refPoint)
	var sum float64
	for i := range p.xyz {
		d := p.xyz[i] - q.xyz[i]
		sum += d * d
	}
	return sum
}

type refPoints []refPoint

func (p refPoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p refPoints) Len() int                              { return len(p) }
func (p refPoints) Pivot(d kdtree.Dim) int                { return refPlane{refPoints: p, Dim: d}.Pivot() }
func (p refPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// refPlane sorts reference points along one dimension for kd-tree partitioning
type refPlane struct {
	kdtree.Dim
	refPoints
}

func (p refPlane) Less(i, j int) bool {
	return p.refPoints[i].xyz[p.Dim] < p.refPoints[j].xyz[p.Dim]
}
func (p refPlane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p refPlane) Slice(start, end int) kdtree.SortSlicer {
	p.refPoints = p.refPoints[start:end]
	return p
}
func (p refPlane) Swap(i, j int) {
	p.refPoints[i], p.refPoints[j] = p.refPoints[j], p.refPoints[i]
}

func init() {
	analysis.RegisterMerger(analysis.StageCombine, func(env analysis.Environment) (analysis.Merger, error) {
		tc, err := NewTrajectoryCombiner(env.Combine, env.Geodesy)
		if err != nil {
			return nil, err
		}
		return tc, nil
	})
}
