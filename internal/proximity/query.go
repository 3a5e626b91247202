package proximity

import (
	"math"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrInsufficientNeighbors is returned when more neighbours are requested
// than there are targets.
var ErrInsufficientNeighbors = eris.New("proximity: insufficient neighbors")

// Metric selects the distance function.
type Metric int

// Supported metrics.
const (
	Euclidean Metric = iota
	Manhattan
)

// ParseMetric accepts "euclidean" and "manhattan" in any case.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "euclidean", "l2":
		return Euclidean, nil
	case "manhattan", "l1":
		return Manhattan, nil
	default:
		return 0, eris.Errorf("proximity: unknown metric %q", s)
	}
}

// String implements fmt.Stringer.
func (m Metric) String() string {
	if m == Manhattan {
		return "manhattan"
	}
	return "euclidean"
}

// Distance returns the metric distance between a and b.
func (m Metric) Distance(a, b Coord) float64 {
	return m.combine(math.Abs(a[0]-b[0]), math.Abs(a[1]-b[1]))
}

func (m Metric) combine(dx, dy float64) float64 {
	if m == Manhattan {
		return dx + dy
	}
	return math.Hypot(dx, dy)
}

// QueryOptions configures Query. K defaults to 1. MaxDistance bounds the
// search when set and nil leaves it unbounded. A neighbour exactly
// MaxDistance away is found, so a zero bound matches coincident targets only.
type QueryOptions struct {
	Metric      Metric
	K           int
	MaxDistance *float64
}

// Within returns a MaxDistance bound of d.
func Within(d float64) *float64 { return &d }

// Result holds, per source, the K nearest targets in ascending distance.
// Slots with no target within MaxDistance hold NaN and ID -1. Equal
// distances are ordered by target ID.
type Result struct {
	Distances [][]float64
	IDs       [][]int
}

// Nearest returns the first-neighbour distance of every source.
func (r *Result) Nearest() []float64 {
	out := make([]float64, len(r.Distances))
	for i, d := range r.Distances {
		out[i] = d[0]
	}
	return out
}

// Query finds the K nearest targets of every source.
func (ix *Index) Query(sources []Coord, opts QueryOptions) (*Result, error) {
	k := opts.K
	if k == 0 {
		k = 1
	}
	if k < 0 {
		return nil, eris.Errorf("proximity: k must be positive, got %d", k)
	}
	if k > ix.Len() {
		return nil, eris.Wrapf(ErrInsufficientNeighbors, "proximity: k=%d with %d targets", k, ix.Len())
	}
	if opts.Metric != Euclidean && opts.Metric != Manhattan {
		return nil, eris.Errorf("proximity: unknown metric %d", opts.Metric)
	}
	bound := math.Inf(1)
	if opts.MaxDistance != nil {
		bound = *opts.MaxDistance
		if bound < 0 || math.IsNaN(bound) {
			return nil, eris.Errorf("proximity: invalid max distance %g", bound)
		}
	}

	res := &Result{
		Distances: make([][]float64, len(sources)),
		IDs:       make([][]int, len(sources)),
	}
	for i, q := range sources {
		best := &bestK{k: k, items: make([]neighbor, 0, k)}
		ix.search(0, q, opts.Metric, bound, best)

		dists := make([]float64, k)
		ids := make([]int, k)
		found := best.sorted()
		for j := range dists {
			if j < len(found) {
				dists[j], ids[j] = found[j].dist, found[j].id
				continue
			}
			dists[j], ids[j] = math.NaN(), -1
		}
		res.Distances[i], res.IDs[i] = dists, ids
	}
	return res, nil
}

// Nearest returns the distance and ID of the closest target to src, or NaN
// and -1 when the index is empty.
func (ix *Index) Nearest(src Coord, m Metric) (float64, int) {
	if ix.Len() == 0 {
		return math.NaN(), -1
	}
	best := &bestK{k: 1, items: make([]neighbor, 0, 1)}
	ix.search(0, src, m, math.Inf(1), best)
	return best.items[0].dist, best.items[0].id
}
