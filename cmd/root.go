package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/udo-labs/udo-engine/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "udo-engine",
	Short: "Uncertainty engine for project risk dashboards",
	Long:  "Tracks a five-dimensional risk vector per project, classifies it into discrete uncertainty states, predicts its trajectory, and gates go/no-go decisions on an adaptive confidence threshold.",
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
