package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var overrunRatio float64

var overrunCmd = &cobra.Command{
	Use:   "overrun <project-id>",
	Short: "Report a schedule overrun (actual/estimated ratio)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if overrunRatio <= 0 {
			return eris.New("ratio must be positive")
		}

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		st, err := env.Engine.OnTimeOverrun(ctx, args[0], overrunRatio)
		if err != nil {
			return eris.Wrap(err, "overrun")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	},
}

func init() {
	overrunCmd.Flags().Float64Var(&overrunRatio, "ratio", 0, "actual/estimated duration ratio (required)")
	_ = overrunCmd.MarkFlagRequired("ratio")
	rootCmd.AddCommand(overrunCmd)
}
