package scorer

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// FeatureScore holds the scoring result for a single feature.
type FeatureScore struct {
	ID              int                `json:"id"`
	Score           float64            `json:"score"`
	ComponentScores map[string]float64 `json:"component_scores"`
	Passed          bool               `json:"passed"`
}

// WeightedSum returns Σ weight·column per row. Every weighted column must be
// present and all must have the same length. A NaN component makes the row
// NaN.
func WeightedSum(columns map[string][]float64, weights map[string]float64) ([]float64, error) {
	if len(weights) == 0 {
		return nil, eris.New("scorer: no weights")
	}
	names := make([]string, 0, len(weights))
	for name := range weights {
		names = append(names, name)
	}
	sort.Strings(names)

	n := -1
	for _, name := range names {
		col, ok := columns[name]
		if !ok {
			return nil, eris.Errorf("scorer: column %q not found", name)
		}
		if n >= 0 && len(col) != n {
			return nil, eris.Errorf("scorer: column %q has %d rows, want %d", name, len(col), n)
		}
		n = len(col)
	}

	out := make([]float64, n)
	for _, name := range names {
		w := weights[name]
		for i, v := range columns[name] {
			out[i] += w * v
		}
	}
	return out, nil
}

// Score computes the weighted suitability score of every row. columns are
// keyed by layer key and aligned with index. Rows at or above the model's
// MinScore pass. Results stay in row order; use Rank to order them.
func Score(index []int, columns map[string][]float64, m *Model) ([]FeatureScore, error) {
	weights := m.Weights()
	totals, err := WeightedSum(columns, weights)
	if err != nil {
		return nil, err
	}
	if len(totals) != len(index) {
		return nil, eris.Errorf("scorer: %d scores for %d features", len(totals), len(index))
	}

	results := make([]FeatureScore, len(index))
	for i, id := range index {
		components := make(map[string]float64, len(weights))
		for name := range weights {
			components[name] = columns[name][i]
		}
		results[i] = FeatureScore{
			ID:              id,
			Score:           totals[i],
			ComponentScores: components,
			Passed:          !math.IsNaN(totals[i]) && totals[i] >= m.MinScore,
		}
	}

	zap.L().Info("scorer: scoring complete",
		zap.String("model", m.Name),
		zap.Int("features_scored", len(results)),
		zap.Int("features_passed", countPassed(results)),
	)
	return results, nil
}

// Rank returns a copy of scores ordered by score descending, NaN last, cut to
// limit when limit is positive.
func Rank(scores []FeatureScore, limit int) []FeatureScore {
	out := append([]FeatureScore(nil), scores...)
	sortByScore(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// sortByScore sorts FeatureScores descending by Score; ties keep row order.
func sortByScore(scores []FeatureScore) {
	sort.SliceStable(scores, func(i, j int) bool {
		a, b := scores[i].Score, scores[j].Score
		if math.IsNaN(b) {
			return !math.IsNaN(a)
		}
		return a > b
	})
}

func countPassed(scores []FeatureScore) int {
	n := 0
	for i := range scores {
		if scores[i].Passed {
			n++
		}
	}
	return n
}
