package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"expgram/internal/format"
	"expgram/internal/pipeline"
)

var buildFlags pipelineFlags

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Run the pipeline and build the language model",
	Long: "Run the stages between --first-step and --last-step in order. The first\n" +
		"failing stage stops the run and its exit code becomes expgram's.",
	Args: cobra.NoArgs,
	RunE: runBuild,
}

func init() {
	bindPipelineFlags(buildCmd.Flags(), &buildFlags)
}

func runBuild(cmd *cobra.Command, _ []string) error {
	opts, cfg, err := prepare(cmd, &buildFlags)
	if err != nil {
		return err
	}
	resolver, err := opts.Resolver()
	if err != nil {
		return err
	}
	runner, err := pipeline.Setup(cmd.Context(), cfg, resolver)
	if err != nil {
		return err
	}

	res, err := runner.Run(cmd.Context())
	if res != nil && len(res.Executions) > 0 {
		fmt.Fprint(cmd.OutOrStdout(), format.ResultTable(res, format.ASCII), "\n")
	}
	if err != nil {
		return err
	}
	if res.Final != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Language model: %s\n", res.Final)
	}
	return nil
}
