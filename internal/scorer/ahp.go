package scorer

import (
	"math/rand/v2"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// ErrInconsistent is returned when no consistent comparison matrix was drawn
// within the attempt limit.
var ErrInconsistent = eris.New("scorer: no consistent AHP matrix found")

// randomIndex is Saaty's random consistency index by matrix size.
var randomIndex = map[int]float64{
	3: 0.58, 4: 0.9, 5: 1.12, 6: 1.24, 7: 1.32, 8: 1.41, 9: 1.45, 10: 1.49,
}

// pairwiseScale is Saaty's 1/9..9 comparison scale.
var pairwiseScale = []float64{
	1, 1.0 / 2, 1.0 / 3, 1.0 / 4, 1.0 / 5, 1.0 / 6, 1.0 / 7, 1.0 / 8, 1.0 / 9,
	2, 3, 4, 5, 6, 7, 8, 9,
}

const (
	maxConsistencyRatio = 0.1
	maxAHPAttempts      = 100_000
)

// RandomAHPWeights draws random reciprocal comparison matrices of size n from
// seed until one has a consistency ratio below 0.1, and returns its
// normalized principal eigenvector. n must be between 3 and 10.
func RandomAHPWeights(n int, seed uint64) ([]float64, error) {
	ri, ok := randomIndex[n]
	if !ok {
		return nil, eris.Errorf("scorer: AHP needs between 3 and 10 factors, got %d", n)
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	a := mat.NewDense(n, n, nil)
	for attempt := 1; attempt <= maxAHPAttempts; attempt++ {
		for i := 0; i < n; i++ {
			a.Set(i, i, 1)
			for j := i + 1; j < n; j++ {
				v := pairwiseScale[rng.IntN(len(pairwiseScale))]
				a.Set(i, j, v)
				a.Set(j, i, 1/v)
			}
		}

		lambda, vec, err := principal(a)
		if err != nil {
			return nil, err
		}
		ci := (lambda - float64(n)) / float64(n-1)
		if cr := ci / ri; cr < maxConsistencyRatio {
			zap.L().Debug("scorer: AHP weights drawn",
				zap.Int("factors", n),
				zap.Int("attempts", attempt),
				zap.Float64("consistency_ratio", cr),
			)
			return vec, nil
		}
	}
	return nil, eris.Wrapf(ErrInconsistent, "scorer: %d attempts for %d factors", maxAHPAttempts, n)
}

// principal returns the largest real eigenvalue of a and its eigenvector
// scaled to sum to one.
func principal(a *mat.Dense) (float64, []float64, error) {
	var eig mat.Eigen
	if !eig.Factorize(a, mat.EigenRight) {
		return 0, nil, eris.New("scorer: eigen decomposition failed")
	}
	values := eig.Values(nil)
	best := 0
	for i, v := range values {
		if real(v) > real(values[best]) {
			best = i
		}
	}
	var vecs mat.CDense
	eig.VectorsTo(&vecs)

	n, _ := a.Dims()
	out := make([]float64, n)
	var sum float64
	for i := range out {
		out[i] = real(vecs.At(i, best))
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return real(values[best]), out, nil
}
