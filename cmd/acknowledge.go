package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	ackMitigationID string
	ackImpact       float64
)

var acknowledgeCmd = &cobra.Command{
	Use:   "acknowledge <project-id>",
	Short: "Apply a surfaced mitigation to the project vector",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		// Mitigation ids are minted per derivation, so surface the current
		// offer set before acknowledging against it.
		if _, err := env.Engine.Status(ctx, args[0]); err != nil {
			return eris.Wrap(err, "derive status")
		}

		res, err := env.Engine.Acknowledge(ctx, args[0], ackMitigationID, ackImpact)
		if err != nil {
			return eris.Wrap(err, "acknowledge")
		}

		zap.L().Info("mitigation applied",
			zap.String("project_id", args[0]),
			zap.String("state", res.Status.State.String()),
			zap.Float64("confidence", res.Status.Decision.Confidence))

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	acknowledgeCmd.Flags().StringVar(&ackMitigationID, "mitigation", "", "mitigation id to acknowledge (required)")
	acknowledgeCmd.Flags().Float64Var(&ackImpact, "impact", 0, "applied impact in [0, estimated_impact]")
	_ = acknowledgeCmd.MarkFlagRequired("mitigation")
	rootCmd.AddCommand(acknowledgeCmd)
}
