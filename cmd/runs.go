package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/landsuit/internal/export"
	"github.com/sells-group/landsuit/internal/model"
	"github.com/sells-group/landsuit/internal/scorer"
	"github.com/sells-group/landsuit/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect results saved with --export sqlite",
	Long:  "Commands for listing, viewing, and exporting analysis runs kept in the result store.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List analysis runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore()
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		status, _ := cmd.Flags().GetString("status")
		operation, _ := cmd.Flags().GetString("operation")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status:    model.RunStatus(status),
			Operation: operation,
			Limit:     limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "No runs found.")
			return nil
		}

		formatRunsList(cmd.OutOrStdout(), runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore()
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}
		names, err := st.SeriesNames(ctx, run.ID)
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			*model.Run
			Series []string `json:"series"`
		}{run, names})
	},
}

// -- runs export --

var runsExportCmd = &cobra.Command{
	Use:   "export <run-id> <output>",
	Short: "Write a run's series to CSV or XLSX",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		format, err := export.FormatOf(args[1])
		if err != nil {
			return err
		}

		st, err := initStore()
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		t, err := loadRunTable(ctx, st, args[0])
		if err != nil {
			return eris.Wrap(err, "runs export")
		}
		return export.Write(args[1], format, t)
	},
}

// -- runs top --

var runsTopCmd = &cobra.Command{
	Use:   "top <run-id>",
	Short: "Show the best-scoring features of a score run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore()
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		scores, err := scorer.LoadScores(ctx, st, args[0])
		if err != nil {
			return eris.Wrap(err, "runs top")
		}
		limit, _ := cmd.Flags().GetInt("limit")
		formatTopScores(cmd.OutOrStdout(), scorer.Rank(scores, limit))
		return nil
	},
}

func init() {
	runsTopCmd.Flags().Int("limit", 10, "number of features to show (0 for all)")
	runsListCmd.Flags().String("status", "", "filter by run status (running, complete, failed)")
	runsListCmd.Flags().String("operation", "", `filter by operation, e.g. "distance point"`)
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsExportCmd)
	runsCmd.AddCommand(runsTopCmd)
	rootCmd.AddCommand(runsCmd)
}

// loadRunTable reads every series of a run into one table.
func loadRunTable(ctx context.Context, st store.Store, runID string) (*model.Table, error) {
	names, err := st.SeriesNames(ctx, runID)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, eris.Wrapf(store.ErrNotFound, "series of run %s", runID)
	}
	cols := make([]*model.Series, len(names))
	for i, name := range names {
		if cols[i], err = st.LoadSeries(ctx, runID, name); err != nil {
			return nil, err
		}
	}
	return model.NewTable(cols[0].Index, cols...)
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tOPERATION\tINPUT\tSTATUS\tCREATED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t---------\t-----\t------\t-------\t--------")

	for _, r := range runs {
		dur := r.UpdatedAt.Sub(r.CreatedAt).Round(time.Second).String()

		input := r.Input
		if len(input) > 30 {
			input = "..." + input[len(input)-27:]
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(r.ID),
			r.Operation,
			input,
			r.Status,
			r.CreatedAt.Format("2006-01-02 15:04"),
			dur,
		)
	}
	_ = w.Flush()
}

// formatTopScores writes ranked scores to out.
func formatTopScores(out io.Writer, scores []scorer.FeatureScore) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RANK\tID\tSCORE\tPASSED")
	for i, s := range scores {
		_, _ = fmt.Fprintf(w, "%d\t%d\t%s\t%t\n", i+1, s.ID, formatFloat(s.Score), s.Passed)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
