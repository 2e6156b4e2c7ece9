package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/draftiq/scoutsync/internal/model"
	"github.com/draftiq/scoutsync/internal/quality"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage quality rules",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List quality rules",
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

		rules, err := st.ListRules(ctx)
		if err != nil {
			return eris.Wrap(err, "rules list")
		}
		if len(rules) == 0 {
			fmt.Fprintln(os.Stderr, "No rules defined.")
			return nil
		}

		formatRules(os.Stdout, rules)
		return nil
	},
}

var rulesImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import rule definitions from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrapf(err, "read %s", args[0])
		}

		var doc struct {
			Rules []model.QualityRule `yaml:"rules"`
		}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return eris.Wrapf(err, "parse %s", args[0])
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		now := time.Now().UTC()
		for i := range doc.Rules {
			r := &doc.Rules[i]
			if err := quality.ValidateRule(r); err != nil {
				return eris.Wrapf(err, "rule %d in %s", i, args[0])
			}
			r.UpdatedAt = now
			if err := st.CreateRule(ctx, r); err != nil {
				return err
			}
		}

		zap.L().Info("rules imported",
			zap.Int("count", len(doc.Rules)),
			zap.String("file", args[0]),
		)
		return nil
	},
}

var rulesEnableCmd = &cobra.Command{
	Use:   "enable <rule-id>",
	Short: "Enable a quality rule",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setRuleEnabled(cmd, args[0], true) },
}

var rulesSetThresholdCmd = &cobra.Command{
	Use:   "set-threshold <rule-id>",
	Short: "Update a rule's min/max bounds and change threshold",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		min, _ := cmd.Flags().GetFloat64("min")
		max, _ := cmd.Flags().GetFloat64("max")
		threshold, _ := cmd.Flags().GetFloat64("threshold")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		if err := st.UpdateRuleThresholds(ctx, args[0], min, max, threshold); err != nil {
			return err
		}
		zap.L().Info("rule thresholds updated",
			zap.String("rule_id", args[0]),
			zap.Float64("min", min),
			zap.Float64("max", max),
			zap.Float64("threshold", threshold),
		)
		return nil
	},
}

var rulesDisableCmd = &cobra.Command{
	Use:   "disable <rule-id>",
	Short: "Disable a quality rule",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setRuleEnabled(cmd, args[0], false) },
}

func setRuleEnabled(cmd *cobra.Command, id string, enabled bool) error {
	ctx := cmd.Context()

	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck
	if err := st.Migrate(ctx); err != nil {
		return err
	}

	if err := st.SetRuleEnabled(ctx, id, enabled); err != nil {
		return err
	}
	zap.L().Info("rule updated", zap.String("rule_id", id), zap.Bool("enabled", enabled))
	return nil
}

func init() {
	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesImportCmd)
	rulesCmd.AddCommand(rulesEnableCmd)
	rulesCmd.AddCommand(rulesDisableCmd)
	rulesSetThresholdCmd.Flags().Float64("min", 0, "lower bound for range rules")
	rulesSetThresholdCmd.Flags().Float64("max", 0, "upper bound for range rules")
	rulesSetThresholdCmd.Flags().Float64("threshold", 0, "change-magnitude or deviation threshold")
	rulesCmd.AddCommand(rulesSetThresholdCmd)
	rootCmd.AddCommand(rulesCmd)
}

// formatRules writes a tabular rule listing to w.
func formatRules(out io.Writer, rules []model.QualityRule) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tFIELD\tSCOPE\tTYPE\tSEVERITY\tENABLED")
	_, _ = fmt.Fprintln(w, "--\t-----\t-----\t----\t--------\t-------")
	for _, r := range rules {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%t\n",
			truncateID(r.ID), r.Field, r.Scope, r.Type, r.Severity, r.Enabled)
	}
	_ = w.Flush()
}
