package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/udo-labs/udo-engine/internal/engine"
)

var analyzeContextFile string

var analyzeCmd = &cobra.Command{
	Use:   "analyze <project-id>",
	Short: "Run a what-if analysis from a business context file",
	Long:  "Synthesizes a risk vector from a YAML context (phase, team size, timeline, validation) and prints the full derivation without touching the project's vector of record.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		data, err := os.ReadFile(analyzeContextFile)
		if err != nil {
			return eris.Wrap(err, "read context file")
		}
		var ac engine.AnalysisContext
		if err := yaml.Unmarshal(data, &ac); err != nil {
			return eris.Wrap(err, "parse context file")
		}

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		st, err := env.Engine.Analyze(ctx, args[0], ac)
		if err != nil {
			return eris.Wrap(err, "analyze")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeContextFile, "context", "", "YAML context file (required)")
	_ = analyzeCmd.MarkFlagRequired("context")
	rootCmd.AddCommand(analyzeCmd)
}
