package proximity

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomCoords(rng *rand.Rand, n int) []Coord {
	out := make([]Coord, n)
	for i := range out {
		// Integer coordinates produce plenty of exact ties.
		out[i] = Coord{float64(rng.Intn(50)), float64(rng.Intn(50))}
	}
	return out
}

func bruteForce(targets []Coord, q Coord, m Metric, k int) ([]float64, []int) {
	idx := make([]int, len(targets))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return m.Distance(q, targets[idx[a]]) < m.Distance(q, targets[idx[b]])
	})
	dists := make([]float64, k)
	for i := 0; i < k; i++ {
		dists[i] = m.Distance(q, targets[idx[i]])
	}
	return dists, idx[:k]
}

func TestQuery_MatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	targets := randomCoords(rng, 500)
	sources := randomCoords(rng, 100)
	ix := Build(targets, Options{LeafSize: 4})

	for _, m := range []Metric{Euclidean, Manhattan} {
		for _, k := range []int{1, 5} {
			res, err := ix.Query(sources, QueryOptions{Metric: m, K: k})
			require.NoError(t, err)
			for i, q := range sources {
				wantD, wantIDs := bruteForce(targets, q, m, k)
				assert.Equal(t, wantD, res.Distances[i], "%s k=%d source %d", m, k, i)
				assert.Equal(t, wantIDs, res.IDs[i], "%s k=%d source %d", m, k, i)
			}
		}
	}
}

func TestQuery_ExactPointIsZero(t *testing.T) {
	targets := []Coord{{10, 10}, {512345.5, 3287654.25}, {-3, 7}}
	ix := Build(targets, Options{})
	res, err := ix.Query([]Coord{{512345.5, 3287654.25}}, QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Distances[0][0])
	assert.Equal(t, 1, res.IDs[0][0])
}

func TestQuery_TiesByInsertionOrder(t *testing.T) {
	targets := []Coord{{1, 0}, {0, 1}, {-1, 0}, {0, -1}}
	ix := Build(targets, Options{LeafSize: 1})
	res, err := ix.Query([]Coord{{0, 0}}, QueryOptions{K: 3})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, res.IDs[0])
	assert.Equal(t, []float64{1, 1, 1}, res.Distances[0])
}

func TestQuery_Manhattan(t *testing.T) {
	ix := Build([]Coord{{3, 4}}, Options{})
	res, err := ix.Query([]Coord{{0, 0}}, QueryOptions{Metric: Manhattan})
	require.NoError(t, err)
	assert.Equal(t, 7.0, res.Distances[0][0])

	res, err = ix.Query([]Coord{{0, 0}}, QueryOptions{Metric: Euclidean})
	require.NoError(t, err)
	assert.Equal(t, 5.0, res.Distances[0][0])
}

func TestQuery_MaxDistance(t *testing.T) {
	ix := Build([]Coord{{0, 0}, {10, 0}, {20, 0}}, Options{})
	res, err := ix.Query([]Coord{{1, 0}, {100, 0}}, QueryOptions{K: 3, MaxDistance: Within(9)})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, -1}, res.IDs[0])
	assert.Equal(t, 1.0, res.Distances[0][0])
	assert.Equal(t, 9.0, res.Distances[0][1])
	assert.True(t, math.IsNaN(res.Distances[0][2]))

	assert.Equal(t, []int{-1, -1, -1}, res.IDs[1])
	for _, d := range res.Distances[1] {
		assert.True(t, math.IsNaN(d))
	}
	assert.True(t, math.IsNaN(res.Nearest()[1]))
}

func TestQuery_ZeroMaxDistance(t *testing.T) {
	ix := Build([]Coord{{0, 0}, {3, 4}, {3, 4}}, Options{})
	res, err := ix.Query([]Coord{{3, 4}, {1, 1}}, QueryOptions{K: 2, MaxDistance: Within(0)})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, res.IDs[0])
	assert.Equal(t, []float64{0, 0}, res.Distances[0])
	assert.Equal(t, []int{-1, -1}, res.IDs[1])

	unbounded, err := ix.Query([]Coord{{1, 1}}, QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, []int{0}, unbounded.IDs[0])
	assert.InDelta(t, math.Sqrt2, unbounded.Distances[0][0], 1e-12)
}

func TestQuery_InsufficientNeighbors(t *testing.T) {
	ix := Build([]Coord{{0, 0}, {1, 1}}, Options{})
	_, err := ix.Query([]Coord{{0, 0}}, QueryOptions{K: 3})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrInsufficientNeighbors))

	_, err = Build(nil, Options{}).Query([]Coord{{0, 0}}, QueryOptions{})
	assert.True(t, eris.Is(err, ErrInsufficientNeighbors))
}

func TestQuery_InvalidOptions(t *testing.T) {
	ix := Build([]Coord{{0, 0}}, Options{})
	_, err := ix.Query(nil, QueryOptions{K: -1})
	require.Error(t, err)
	_, err = ix.Query(nil, QueryOptions{MaxDistance: Within(-5)})
	require.Error(t, err)
	_, err = ix.Query(nil, QueryOptions{Metric: Metric(9)})
	require.Error(t, err)
}

func TestQuery_DuplicateTargets(t *testing.T) {
	targets := make([]Coord, 40)
	for i := range targets {
		targets[i] = Coord{5, 5}
	}
	ix := Build(targets, Options{LeafSize: 2})
	res, err := ix.Query([]Coord{{5, 6}}, QueryOptions{K: 3})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, res.IDs[0])
}

func TestIndex_Nearest(t *testing.T) {
	ix := Build([]Coord{{0, 0}, {5, 5}}, Options{})
	d, id := ix.Nearest(Coord{4, 4}, Euclidean)
	assert.InDelta(t, math.Sqrt2, d, 1e-12)
	assert.Equal(t, 1, id)
	assert.Equal(t, Coord{5, 5}, ix.Target(id))

	d, id = Build(nil, Options{}).Nearest(Coord{0, 0}, Euclidean)
	assert.True(t, math.IsNaN(d))
	assert.Equal(t, -1, id)
}

func TestBuild_CopiesTargets(t *testing.T) {
	targets := []Coord{{0, 0}, {1, 1}}
	ix := Build(targets, Options{})
	targets[0] = Coord{100, 100}
	assert.Equal(t, Coord{0, 0}, ix.Target(0))
}

func TestParseMetric(t *testing.T) {
	m, err := ParseMetric("Manhattan")
	require.NoError(t, err)
	assert.Equal(t, Manhattan, m)

	m, err = ParseMetric("euclidean")
	require.NoError(t, err)
	assert.Equal(t, Euclidean, m)
	assert.Equal(t, "euclidean", m.String())

	_, err = ParseMetric("chebyshev")
	require.Error(t, err)
}
