package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/draftiq/scoutsync/internal/model"
)

var conflictsCmd = &cobra.Command{
	Use:   "conflicts <entity-id>",
	Short: "Show an entity's conflict lineage, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		conflicts, err := st.ListConflicts(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "conflicts")
		}
		if len(conflicts) == 0 {
			fmt.Fprintln(os.Stderr, "No conflicts recorded.")
			return nil
		}

		formatConflicts(os.Stdout, conflicts)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(conflictsCmd)
}

// formatConflicts writes a tabular conflict lineage to w.
func formatConflicts(out io.Writer, conflicts []model.ConflictRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "FIELD\tWINNER\tRULE\tCANDIDATES\tCREATED")
	_, _ = fmt.Fprintln(w, "-----\t------\t----\t----------\t-------")
	for _, c := range conflicts {
		cands := make([]string, 0, len(c.Candidates))
		for _, cand := range c.Candidates {
			cands = append(cands, fmt.Sprintf("%s=%s", cand.Source, cand.Value))
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			c.Field,
			c.WinningSource,
			c.Rule,
			strings.Join(cands, ", "),
			c.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}
