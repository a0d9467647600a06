package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/udo-labs/udo-engine/internal/model"
)

var vectorDims = struct {
	technical, market, resource, timeline, quality float64
}{}

var vectorCmd = &cobra.Command{
	Use:   "vector <project-id>",
	Short: "Set a project's risk vector and print the re-derived status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		v := model.Vector{
			Technical: vectorDims.technical,
			Market:    vectorDims.market,
			Resource:  vectorDims.resource,
			Timeline:  vectorDims.timeline,
			Quality:   vectorDims.quality,
		}
		st, err := env.Engine.UpdateVector(ctx, args[0], v)
		if err != nil {
			return eris.Wrap(err, "update vector")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	},
}

func init() {
	vectorCmd.Flags().Float64Var(&vectorDims.technical, "technical", 0, "technical risk [0,1]")
	vectorCmd.Flags().Float64Var(&vectorDims.market, "market", 0, "market risk [0,1]")
	vectorCmd.Flags().Float64Var(&vectorDims.resource, "resource", 0, "resource risk [0,1]")
	vectorCmd.Flags().Float64Var(&vectorDims.timeline, "timeline", 0, "timeline risk [0,1]")
	vectorCmd.Flags().Float64Var(&vectorDims.quality, "quality", 0, "quality risk [0,1]")
	rootCmd.AddCommand(vectorCmd)
}
