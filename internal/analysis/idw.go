package analysis

import (
	"math"
	"math/rand/v2"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/landsuit/internal/grid"
	"github.com/sells-group/landsuit/internal/model"
	"github.com/sells-group/landsuit/internal/proximity"
	"github.com/sells-group/landsuit/internal/vector"
)

// IDW defaults.
const (
	DefaultIDWPower     = 2.0
	DefaultIDWNeighbors = 12
	DefaultIDWMinDist   = 1e-12
	DefaultFolds        = 10
)

// IDWOptions configures IDW. Zero values take the defaults above.
type IDWOptions struct {
	ValueColumn string
	Power       float64
	Neighbors   int
	// SearchRadius bounds the neighbour search in native units; 0 is unbounded.
	SearchRadius float64
	// MinDist is the distance at or below which a neighbour's value is taken
	// as is.
	MinDist  float64
	LeafSize int
	Kind     model.Kind
	Name     string
}

func (o IDWOptions) withDefaults() IDWOptions {
	if o.Power == 0 {
		o.Power = DefaultIDWPower
	}
	if o.Neighbors == 0 {
		o.Neighbors = DefaultIDWNeighbors
	}
	if o.MinDist <= 0 {
		o.MinDist = DefaultIDWMinDist
	}
	if o.Name == "" {
		o.Name = "idw_" + o.ValueColumn
	}
	return o
}

// IDW interpolates ValueColumn of values at each input centroid by inverse
// distance weighting over the Neighbors nearest value points within
// SearchRadius. A neighbour within MinDist supplies its value directly; with
// one neighbour the nearest value is returned. Features with no neighbour in
// range get NaN.
func IDW(input, values *vector.FeatureSet, opts IDWOptions) (*model.Series, error) {
	opts = opts.withDefaults()
	kind, err := validKind(opts.Kind)
	if err != nil {
		return nil, err
	}
	if opts.Power < 0 || opts.SearchRadius < 0 {
		return nil, eris.Errorf("analysis: power and search radius must be non-negative, got %g and %g", opts.Power, opts.SearchRadius)
	}
	if opts.Neighbors < 1 || opts.Neighbors > values.Len() {
		return nil, eris.Wrapf(ErrNeighbors, "analysis: %d neighbors with %d value points", opts.Neighbors, values.Len())
	}
	if opts.ValueColumn == "" {
		return nil, eris.New("analysis: IDW needs a value column")
	}
	z, err := values.Column(opts.ValueColumn)
	if err != nil {
		return nil, eris.Wrap(err, "analysis: IDW values")
	}
	if values, err = matchCRS(input, values); err != nil {
		return nil, err
	}

	targets, err := grid.Centroids(values)
	if err != nil {
		return nil, err
	}
	sources, err := grid.Centroids(input)
	if err != nil {
		return nil, err
	}
	out, err := interpolate(sources, targets, z, opts)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("analysis: IDW interpolated",
		zap.Int("features", input.Len()),
		zap.Int("value_points", values.Len()),
		zap.Int("neighbors", opts.Neighbors),
		zap.Float64("power", opts.Power),
	)
	return newSeries(opts.Name, input, out, kind)
}

func interpolate(sources, targets []grid.Coord, z []float64, opts IDWOptions) ([]float64, error) {
	ix := proximity.Build(targets, proximity.Options{LeafSize: opts.LeafSize})
	q := proximity.QueryOptions{K: opts.Neighbors}
	if opts.SearchRadius > 0 {
		q.MaxDistance = proximity.Within(opts.SearchRadius)
	}
	res, err := ix.Query(sources, q)
	if err != nil {
		return nil, eris.Wrap(err, "analysis: IDW query")
	}

	out := make([]float64, len(sources))
	for i := range sources {
		out[i] = weigh(res.Distances[i], res.IDs[i], z, opts)
	}
	return out, nil
}

// weigh combines one source's neighbours, nearest first.
func weigh(dists []float64, ids []int, z []float64, opts IDWOptions) float64 {
	if opts.Neighbors == 1 {
		if ids[0] < 0 {
			return math.NaN()
		}
		return z[ids[0]]
	}
	for j, d := range dists {
		if ids[j] >= 0 && d <= opts.MinDist {
			return z[ids[j]]
		}
	}
	var num, den float64
	for j, d := range dists {
		if ids[j] < 0 || math.IsNaN(z[ids[j]]) {
			continue
		}
		w := 1 / math.Pow(d, opts.Power)
		num += w * z[ids[j]]
		den += w
	}
	if den == 0 {
		return math.NaN()
	}
	return num / den
}

// IDWCrossValidate runs k-fold cross validation of IDW over one point layer
// and returns the mean of the per-fold mean squared errors. Fold labels are
// drawn from seed, so the result is reproducible. Predictions that come back
// NaN are left out of their fold's error.
func IDWCrossValidate(fs *vector.FeatureSet, folds int, seed uint64, opts IDWOptions) (float64, error) {
	opts = opts.withDefaults()
	if folds == 0 {
		folds = DefaultFolds
	}
	n := fs.Len()
	if folds < 2 || folds > n {
		return 0, eris.Errorf("analysis: %d folds for %d points", folds, n)
	}
	if opts.Neighbors < 1 || opts.Neighbors > n-(n+folds-1)/folds {
		return 0, eris.Wrapf(ErrNeighbors, "analysis: %d neighbors leaves folds without enough training points", opts.Neighbors)
	}
	z, err := fs.Column(opts.ValueColumn)
	if err != nil {
		return 0, eris.Wrap(err, "analysis: cross validation values")
	}
	coords, err := grid.Centroids(fs)
	if err != nil {
		return 0, err
	}

	labels := foldLabels(n, folds, seed)
	var total float64
	used := 0
	for k := 0; k < folds; k++ {
		var testC, trainC []grid.Coord
		var testZ, trainZ []float64
		for i, l := range labels {
			if l == k {
				testC, testZ = append(testC, coords[i]), append(testZ, z[i])
			} else {
				trainC, trainZ = append(trainC, coords[i]), append(trainZ, z[i])
			}
		}
		if len(testC) == 0 {
			continue
		}
		pred, err := interpolate(testC, trainC, trainZ, opts)
		if err != nil {
			return 0, err
		}
		var sse float64
		m := 0
		for i, p := range pred {
			if math.IsNaN(p) || math.IsNaN(testZ[i]) {
				continue
			}
			sse += (testZ[i] - p) * (testZ[i] - p)
			m++
		}
		if m == 0 {
			continue
		}
		total += sse / float64(m)
		used++
	}
	if used == 0 {
		return math.NaN(), nil
	}

	zap.L().Debug("analysis: IDW cross validation",
		zap.Int("points", n),
		zap.Int("folds", folds),
		zap.Int("scored_folds", used),
		zap.Uint64("seed", seed),
	)
	return total / float64(used), nil
}

// foldLabels assigns n points to folds as evenly as possible: the sequence
// 0..folds-1 repeated ceil(n/folds) times, shuffled, first n kept.
func foldLabels(n, folds int, seed uint64) []int {
	per := (n + folds - 1) / folds
	pool := make([]int, 0, per*folds)
	for r := 0; r < per; r++ {
		for k := 0; k < folds; k++ {
			pool = append(pool, k)
		}
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	return pool[:n]
}
