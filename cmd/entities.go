package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/draftiq/scoutsync/internal/model"
	"github.com/draftiq/scoutsync/internal/quality"
	"github.com/draftiq/scoutsync/internal/reconcile"
	"github.com/draftiq/scoutsync/internal/store"
)

var entitiesCmd = &cobra.Command{
	Use:   "entities",
	Short: "Inspect and curate canonical entities",
}

var entitiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List canonical entities",
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

		status, _ := cmd.Flags().GetString("status")
		var ents []model.CanonicalEntity
		if status != "" {
			ents, err = st.ListEntitiesByStatus(ctx, model.EntityStatus(status))
		} else {
			ents, err = st.ListEntities(ctx)
		}
		if err != nil {
			return eris.Wrap(err, "entities list")
		}

		if len(ents) == 0 {
			fmt.Fprintln(os.Stderr, "No entities found.")
			return nil
		}

		formatEntities(os.Stdout, ents)
		return nil
	},
}

var entitiesShowCmd = &cobra.Command{
	Use:   "show <entity-id>",
	Short: "Show an entity with its resolved fields and conflict history",
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

		ent, err := st.GetEntity(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "entities show")
		}
		if ent == nil {
			return eris.Errorf("entity not found: %s", args[0])
		}

		fields, err := st.ListFieldValues(ctx, ent.ID)
		if err != nil {
			return err
		}
		conflicts, err := st.ListConflicts(ctx, ent.ID)
		if err != nil {
			return err
		}
		violations, err := st.ListViolations(ctx, store.ViolationFilter{EntityID: ent.ID})
		if err != nil {
			return err
		}

		out := struct {
			Entity     *model.CanonicalEntity `json:"entity"`
			Fields     []model.FieldValue     `json:"fields"`
			Conflicts  []model.ConflictRecord `json:"conflicts"`
			Violations []model.Violation      `json:"violations"`
		}{ent, fields, conflicts, violations}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

var entitiesOverrideCmd = &cobra.Command{
	Use:   "override <entity-id> <field> <source>",
	Short: "Force a field to the value contributed by a specific source",
	Args:  cobra.ExactArgs(3),
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

		table, err := reconcile.LoadTable(cfg.Reconcile.AuthorityPath)
		if err != nil {
			return err
		}
		engine := reconcile.NewEngine(st, table, cfg.Reconcile.SimilarityThreshold)

		fv, err := engine.Override(ctx, args[0], args[1], args[2])
		if err != nil {
			return err
		}

		zap.L().Info("override applied",
			zap.String("entity_id", fv.EntityID),
			zap.String("field", fv.Field),
			zap.String("source", fv.Source),
			zap.String("value", fv.Value),
		)
		return nil
	},
}

var entitiesReviewCmd = &cobra.Command{
	Use:   "review <violation-id> <approved|dismissed>",
	Short: "Record a review decision for a violation",
	Long:  "Marks a violation approved or dismissed and lifts quarantine once no open critical violations remain.",
	Args:  cobra.ExactArgs(2),
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

		engine := quality.NewEngine(quality.NewCache(st), st, cfg.Quality.MinSampleSize)
		if err := engine.Review(ctx, args[0], model.ReviewStatus(args[1])); err != nil {
			return err
		}

		zap.L().Info("violation reviewed",
			zap.String("violation_id", args[0]),
			zap.String("status", args[1]),
		)
		return nil
	},
}

func init() {
	entitiesListCmd.Flags().String("status", "", "filter by status (active, quarantined)")
	entitiesCmd.AddCommand(entitiesListCmd)
	entitiesCmd.AddCommand(entitiesShowCmd)
	entitiesCmd.AddCommand(entitiesOverrideCmd)
	entitiesCmd.AddCommand(entitiesReviewCmd)
	rootCmd.AddCommand(entitiesCmd)
}

// formatEntities writes a tabular entity listing to w.
func formatEntities(out io.Writer, ents []model.CanonicalEntity) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tPOS\tSCHOOL\tSTATUS\tSOURCES")
	_, _ = fmt.Fprintln(w, "--\t----\t---\t------\t------\t-------")
	for _, e := range ents {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n",
			truncateID(e.ID), e.Name, e.Position, e.School, e.Status, len(e.SourceRecordIDs))
	}
	_ = w.Flush()
}
