package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/draftiq/scoutsync/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "scoutsync",
	Short: "Prospect evaluation data pipeline",
	Long:  "Collects prospect records from configured sources, reconciles them into canonical entities, validates them against quality rules, and archives the publishable state.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
