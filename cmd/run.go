package main

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	runTriggeredBy string
	runSkipStages  []string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the evaluation pipeline once",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		skip := make(map[string]bool, len(runSkipStages))
		for _, name := range runSkipStages {
			skip[strings.TrimSpace(name)] = true
		}

		exec, err := env.Orch.Execute(ctx, runTriggeredBy, skip)
		if exec != nil {
			if saveErr := env.Store.SaveExecution(ctx, exec); saveErr != nil {
				zap.L().Error("save execution", zap.Error(saveErr))
			}
		}
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		succeeded, failed, skipped := exec.StageCounts()
		zap.L().Info("pipeline run complete",
			zap.String("execution_id", exec.ID),
			zap.String("status", string(exec.Status)),
			zap.Int("stages_succeeded", succeeded),
			zap.Int("stages_failed", failed),
			zap.Int("stages_skipped", skipped),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(exec)
	},
}

func init() {
	runCmd.Flags().StringVar(&runTriggeredBy, "triggered-by", "cli", "trigger identity recorded on the execution")
	runCmd.Flags().StringSliceVar(&runSkipStages, "skip", nil, "stage names to skip (e.g. archive)")
	rootCmd.AddCommand(runCmd)
}
