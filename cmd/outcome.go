package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/udo-labs/udo-engine/internal/model"
)

var (
	outcomeVerdict string
	outcomeCorrect bool
)

var outcomeCmd = &cobra.Command{
	Use:   "outcome <project-id>",
	Short: "Record whether a past verdict proved correct",
	Long:  "Feeds the adaptive decision gate: rolling accuracy over recorded outcomes moves the confidence threshold within its configured bounds.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Engine.RecordOutcome(ctx, args[0], model.Verdict(outcomeVerdict), outcomeCorrect); err != nil {
			return eris.Wrap(err, "record outcome")
		}

		zap.L().Info("outcome recorded",
			zap.String("project_id", args[0]),
			zap.String("verdict", outcomeVerdict),
			zap.Bool("correct", outcomeCorrect))
		return nil
	},
}

func init() {
	outcomeCmd.Flags().StringVar(&outcomeVerdict, "verdict", "", "verdict being graded: go, checkpoint or no_go (required)")
	outcomeCmd.Flags().BoolVar(&outcomeCorrect, "correct", false, "whether the verdict proved correct")
	_ = outcomeCmd.MarkFlagRequired("verdict")
	rootCmd.AddCommand(outcomeCmd)
}
