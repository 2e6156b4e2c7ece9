package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/draftiq/scoutsync/internal/model"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect pipeline execution history",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent pipeline executions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		limit, _ := cmd.Flags().GetInt("limit")
		execs, err := st.ListExecutions(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(execs) == 0 {
			fmt.Fprintln(os.Stderr, "No executions found.")
			return nil
		}

		formatExecutions(os.Stdout, execs)
		return nil
	},
}

func init() {
	runsListCmd.Flags().Int("limit", 50, "max number of executions to display")
	runsCmd.AddCommand(runsListCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatExecutions writes a tabular list of executions to w.
func formatExecutions(out io.Writer, execs []model.PipelineExecution) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTRIGGERED_BY\tSTATUS\tSTAGES\tSTARTED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t------------\t------\t------\t-------\t--------")

	for _, e := range execs {
		succeeded, failed, skipped := e.StageCounts()
		dur := ""
		if !e.EndedAt.IsZero() {
			dur = e.EndedAt.Sub(e.StartedAt).Round(time.Millisecond).String()
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d ok / %d failed / %d skipped\t%s\t%s\n",
			truncateID(e.ID),
			e.TriggeredBy,
			e.Status,
			succeeded, failed, skipped,
			e.StartedAt.Format("2006-01-02 15:04"),
			dur,
		)
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
