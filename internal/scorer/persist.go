package scorer

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/landsuit/internal/model"
	"github.com/sells-group/landsuit/internal/store"
)

// Series names used to persist scores.
const (
	ScoreSeries  = "score"
	PassedSeries = "passed"
)

// SaveScores persists scoring results of a run as the "score" and "passed"
// series, in row order.
func SaveScores(ctx context.Context, st store.Store, runID string, scores []FeatureScore) error {
	if len(scores) == 0 {
		return nil
	}

	index := make([]int, len(scores))
	values := make([]float64, len(scores))
	passed := make([]float64, len(scores))
	for i, s := range scores {
		index[i] = s.ID
		values[i] = s.Score
		if s.Passed {
			passed[i] = 1
		}
	}
	scoreSr, err := model.NewSeries(ScoreSeries, index, values)
	if err != nil {
		return err
	}
	passedSr, err := model.NewSeries(PassedSeries, index, passed)
	if err != nil {
		return err
	}
	if passedSr, err = passedSr.Cast(model.KindUint8); err != nil {
		return err
	}
	if err := st.SaveSeries(ctx, runID, scoreSr, passedSr); err != nil {
		return eris.Wrapf(err, "scorer: save scores for run %s", runID)
	}

	zap.L().Info("scorer: saved scores",
		zap.String("run_id", runID),
		zap.Int("count", len(scores)),
	)
	return nil
}

// LoadScores reads back the scores saved for a run. Component scores are not
// persisted.
func LoadScores(ctx context.Context, st store.Store, runID string) ([]FeatureScore, error) {
	scoreSr, err := st.LoadSeries(ctx, runID, ScoreSeries)
	if err != nil {
		return nil, eris.Wrapf(err, "scorer: load scores for run %s", runID)
	}
	passedSr, err := st.LoadSeries(ctx, runID, PassedSeries)
	if err != nil {
		return nil, eris.Wrapf(err, "scorer: load pass flags for run %s", runID)
	}
	if passedSr.Len() != scoreSr.Len() {
		return nil, eris.Errorf("scorer: run %s has %d scores and %d pass flags", runID, scoreSr.Len(), passedSr.Len())
	}

	results := make([]FeatureScore, scoreSr.Len())
	for i := range results {
		results[i] = FeatureScore{
			ID:     scoreSr.Index[i],
			Score:  scoreSr.Values[i],
			Passed: passedSr.Values[i] == 1,
		}
	}
	return results, nil
}

// ModelHash returns a SHA-256 hash of the model for reproducibility.
func ModelHash(m *Model) string {
	data, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:16]) // 32 hex chars
}
