package main

import (
	"context"
	"math"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/landsuit/internal/export"
	"github.com/sells-group/landsuit/internal/model"
	"github.com/sells-group/landsuit/internal/scorer"
	"github.com/sells-group/landsuit/internal/store"
	"github.com/sells-group/landsuit/internal/vector"
)

var scoreCmd = &cobra.Command{
	Use:   "score <input>",
	Short: "Weighted suitability score per feature",
	Long: `Combines rescaled factor columns into a weighted suitability score for
every feature of the input layer.

The model is a YAML file listing layers. A layer reads a column of the input
layer itself, or of a CSV/XLSX table exported by an earlier command (source).
Table rows are matched to features by id.

  name: housing
  min_score: 5
  limit: 20
  layers:
    - column: slope_rescaled
      source: slope.csv
      weight: 0.5
    - column: dist_rescaled
      source: roads.csv
      weight: 0.3
    - column: flood
      weight: 0.2

Set random_weights: true (and seed) to replace the weights with random
consistent AHP weights.`,
	Args: cobra.ExactArgs(1),
	RunE: runScore,
}

func init() {
	f := scoreCmd.Flags()
	f.String("model", "", "suitability model YAML file")
	f.Float64("min-score", 0, "minimum passing score (overrides the model)")
	f.Int("limit", 0, "maximum number of ranked results (overrides the model)")
	_ = scoreCmd.MarkFlagRequired("model")

	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := zap.L().With(zap.String("command", "score"))

	modelPath, _ := cmd.Flags().GetString("model")
	m, err := scorer.LoadModel(modelPath)
	if err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetFloat64("min-score"); cmd.Flags().Changed("min-score") {
		m.MinScore = v
	}
	if v, _ := cmd.Flags().GetInt("limit"); v > 0 {
		m.Limit = v
	}

	reg := newRegistry()
	defer reg.Close()
	input, err := loadLayer(reg, args[0])
	if err != nil {
		return err
	}

	columns, err := loadScoreColumns(ctx, input, m)
	if err != nil {
		return err
	}

	log.Info("scoring features",
		zap.String("model", m.Name),
		zap.Int("layers", len(m.Layers)),
		zap.Int("features", input.Len()),
	)
	scores, err := scorer.Score(input.IDs(), columns, m)
	if err != nil {
		return err
	}
	ranked := scorer.Rank(scores, m.Limit)

	res := result{
		Operation: "score",
		Input:     args[0],
		Params: map[string]any{
			"model":      modelPath,
			"model_name": m.Name,
			"model_hash": scorer.ModelHash(m),
			"min_score":  m.MinScore,
			"limit":      m.Limit,
		},
	}
	if exportFormat(cmd) == exportSQLite {
		return saveRun(ctx, cmd.OutOrStdout(), res, func(ctx context.Context, st store.Store, runID string) error {
			return scorer.SaveScores(ctx, st, runID, ranked)
		})
	}

	res.Table, err = scoreTable(ranked, m)
	if err != nil {
		return err
	}
	return emit(cmd, res)
}

// loadScoreColumns gathers every layer's column aligned with input's IDs.
// Tables are read concurrently; rows missing from a table give NaN.
func loadScoreColumns(ctx context.Context, input *vector.FeatureSet, m *scorer.Model) (map[string][]float64, error) {
	columns := make([][]float64, len(m.Layers))
	g, gctx := errgroup.WithContext(ctx)
	for i, layer := range m.Layers {
		if layer.Source == "" {
			vals, err := input.Column(layer.Column)
			if err != nil {
				return nil, eris.Wrapf(err, "score: layer %s", layer.Key())
			}
			columns[i] = vals
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			t, err := export.Read(layer.Source)
			if err != nil {
				return eris.Wrapf(err, "score: layer %s", layer.Key())
			}
			vals, missing, err := alignColumn(t, layer.Column, input.IDs())
			if err != nil {
				return eris.Wrapf(err, "score: layer %s", layer.Key())
			}
			if missing > 0 {
				zap.L().Warn("score: features missing from layer table",
					zap.String("layer", layer.Key()),
					zap.String("source", layer.Source),
					zap.Int("missing", missing),
				)
			}
			columns[i] = vals
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string][]float64, len(m.Layers))
	for i, layer := range m.Layers {
		out[layer.Key()] = columns[i]
	}
	return out, nil
}

// alignColumn reorders a table column to ids and counts the ids it lacks.
func alignColumn(t *model.Table, column string, ids []int) ([]float64, int, error) {
	c := t.Column(column)
	if c == nil {
		return nil, 0, eris.Errorf("column %q not found", column)
	}
	row := make(map[int]int, len(t.Index))
	for i, id := range t.Index {
		row[id] = i
	}
	out := make([]float64, len(ids))
	missing := 0
	for i, id := range ids {
		j, ok := row[id]
		if !ok {
			out[i] = math.NaN()
			missing++
			continue
		}
		out[i] = c.Values[j]
	}
	return out, missing, nil
}

// scoreTable lays ranked scores out as score, passed and one column per layer.
func scoreTable(ranked []scorer.FeatureScore, m *scorer.Model) (*model.Table, error) {
	index := make([]int, len(ranked))
	score := make([]float64, len(ranked))
	passed := make([]float64, len(ranked))
	components := make([][]float64, len(m.Layers))
	for j := range components {
		components[j] = make([]float64, len(ranked))
	}
	for i, fs := range ranked {
		index[i] = fs.ID
		score[i] = fs.Score
		if fs.Passed {
			passed[i] = 1
		}
		for j, layer := range m.Layers {
			components[j][i] = fs.ComponentScores[layer.Key()]
		}
	}

	cols := make([]*model.Series, 0, len(m.Layers)+2)
	for _, c := range []struct {
		name   string
		values []float64
	}{{scorer.ScoreSeries, score}, {scorer.PassedSeries, passed}} {
		s, err := model.NewSeries(c.name, index, c.values)
		if err != nil {
			return nil, err
		}
		cols = append(cols, s)
	}
	for j, layer := range m.Layers {
		s, err := model.NewSeries(layer.Key(), index, components[j])
		if err != nil {
			return nil, err
		}
		cols = append(cols, s)
	}
	return model.NewTable(index, cols...)
}
