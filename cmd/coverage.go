package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/draftiq/scoutsync/internal/store"
)

// coverageReport counts how much of the canonical state each source and
// position contributes.
type coverageReport struct {
	EntitiesTotal    int            `json:"entities_total"`
	EntitiesWithData int            `json:"entities_with_data"`
	Positions        map[string]int `json:"positions"`
	Sources          map[string]int `json:"sources"`
	Fields           map[string]int `json:"fields"`
}

func coverageFromStore(ctx context.Context, st store.Store) (*coverageReport, error) {
	ents, err := st.ListEntities(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "coverage: list entities")
	}

	report := &coverageReport{
		EntitiesTotal: len(ents),
		Positions:     make(map[string]int),
		Sources:       make(map[string]int),
		Fields:        make(map[string]int),
	}
	for _, ent := range ents {
		report.Positions[ent.Position]++

		fields, err := st.ListFieldValues(ctx, ent.ID)
		if err != nil {
			return nil, eris.Wrapf(err, "coverage: list field values %s", ent.ID)
		}
		if len(fields) > 0 {
			report.EntitiesWithData++
		}
		for _, fv := range fields {
			report.Sources[fv.Source]++
			report.Fields[fv.Field]++
		}
	}
	return report, nil
}

var entitiesCoverageCmd = &cobra.Command{
	Use:   "coverage",
	Short: "Report per-source and per-position coverage of the canonical state",
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

		report, err := coverageFromStore(ctx, st)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func init() {
	entitiesCmd.AddCommand(entitiesCoverageCmd)
}
