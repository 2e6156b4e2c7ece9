package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/draftiq/scoutsync/internal/orchestrator"
)

var stagesCmd = &cobra.Command{
	Use:   "stages",
	Short: "Show per-stage health over recent executions",
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
			return eris.Wrap(err, "stages")
		}
		if len(execs) == 0 {
			fmt.Fprintln(os.Stderr, "No executions found.")
			return nil
		}

		// Replay persisted history through a ledger to reuse its health math.
		led := orchestrator.NewLedger(len(execs))
		for i := len(execs) - 1; i >= 0; i-- {
			led.Append(&execs[i])
		}

		formatStageHealth(os.Stdout, led.Health())
		return nil
	},
}

func init() {
	stagesCmd.Flags().Int("limit", 50, "max number of executions to aggregate over")
	rootCmd.AddCommand(stagesCmd)
}

// formatStageHealth writes a tabular per-stage health report to w.
func formatStageHealth(out io.Writer, health map[string]orchestrator.StageHealth) {
	names := make([]string, 0, len(health))
	for name := range health {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "STAGE\tRUNS\tOK\tFAILED\tSUCCESS_RATE\tAVG_DURATION\tRECORDS")
	_, _ = fmt.Fprintln(w, "-----\t----\t--\t------\t------------\t------------\t-------")
	for _, name := range names {
		h := health[name]
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%.0f%%\t%s\t%d\n",
			h.Stage,
			h.Runs,
			h.Successes,
			h.Failures,
			100*h.SuccessRate,
			h.AvgDuration.Round(time.Millisecond),
			h.TotalRecords,
		)
	}
	_ = w.Flush()
}
