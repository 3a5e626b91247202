package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/landsuit/internal/export"
	"github.com/sells-group/landsuit/internal/model"
	"github.com/sells-group/landsuit/internal/store"
)

const exportSQLite = "sqlite"

// result is what an analysis command produced, ready to print or persist.
type result struct {
	Operation string
	Input     string
	Params    map[string]any
	Table     *model.Table
}

func initStore() (store.Store, error) {
	return store.NewSQLite(cfg.Store.Path)
}

// exportFormat resolves --export, falling back to the configured format.
func exportFormat(cmd *cobra.Command) string {
	if f, _ := cmd.Flags().GetString("export"); f != "" {
		return f
	}
	return cfg.Export.Format
}

// emit prints res as a table, writes it to --out, or saves it as a run in the
// result store when --export is sqlite.
func emit(cmd *cobra.Command, res result) error {
	format := exportFormat(cmd)
	if format == exportSQLite {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return saveRun(ctx, cmd.OutOrStdout(), res, func(ctx context.Context, st store.Store, runID string) error {
			return st.SaveSeries(ctx, runID, res.Table.Columns...)
		})
	}

	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		formatTable(cmd.OutOrStdout(), res.Table)
		return nil
	}
	// Without an explicit --export the file extension decides.
	f, err := export.FormatOf(out)
	if explicit, _ := cmd.Flags().GetString("export"); explicit != "" || err != nil {
		if f, err = export.ParseFormat(format); err != nil {
			return err
		}
	}
	if err := export.Write(out, f, res.Table); err != nil {
		return err
	}
	zap.L().Info("results written",
		zap.String("operation", res.Operation),
		zap.String("path", out),
		zap.Int("rows", len(res.Table.Index)),
	)
	return nil
}

// saveRun records a run around save and prints its ID.
func saveRun(ctx context.Context, w io.Writer, res result, save func(context.Context, store.Store, string) error) error {
	st, err := initStore()
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck
	if err := st.Migrate(ctx); err != nil {
		return err
	}

	run, err := st.CreateRun(ctx, res.Operation, res.Input, res.Params)
	if err != nil {
		return eris.Wrap(err, "save run")
	}
	saveErr := save(ctx, st, run.ID)
	if err := st.FinishRun(ctx, run.ID, saveErr); err != nil {
		return eris.Wrap(err, "finish run")
	}
	if saveErr != nil {
		return eris.Wrap(saveErr, "save run")
	}

	zap.L().Info("run saved",
		zap.String("run_id", run.ID),
		zap.String("operation", res.Operation),
		zap.String("store", cfg.Store.Path),
	)
	_, _ = fmt.Fprintln(w, run.ID)
	return nil
}

// formatTable writes t as aligned columns. Missing values print as NaN.
func formatTable(out io.Writer, t *model.Table) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	_, _ = fmt.Fprint(w, export.IDColumn)
	for _, name := range t.Names() {
		_, _ = fmt.Fprintf(w, "\t%s", name)
	}
	_, _ = fmt.Fprintln(w, "\t")

	for i, id := range t.Index {
		_, _ = fmt.Fprint(w, id)
		for _, c := range t.Columns {
			_, _ = fmt.Fprintf(w, "\t%s", formatFloat(c.Values[i]))
		}
		_, _ = fmt.Fprintln(w, "\t")
	}
	_ = w.Flush()
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return strconv.FormatFloat(v, 'g', 10, 64)
}

// seriesTable wraps a single series.
func seriesTable(s *model.Series) (*model.Table, error) {
	return model.NewTable(s.Index, s)
}
