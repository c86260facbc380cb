package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"expgram/internal/binary"
	"expgram/internal/format"
	"expgram/internal/logging"
	"expgram/internal/pipeline"
	"expgram/internal/stage"
)

var planFlags struct {
	pipelineFlags
	markdown bool
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the stages, artifacts and commands a build would run",
	Args:  cobra.NoArgs,
	RunE:  runPlan,
}

func init() {
	f := planCmd.Flags()
	bindPipelineFlags(f, &planFlags.pipelineFlags)
	f.BoolVar(&planFlags.markdown, "markdown", false, "Render the plan as a Markdown table")
}

func runPlan(cmd *cobra.Command, _ []string) error {
	opts, cfg, err := prepare(cmd, &planFlags.pipelineFlags)
	if err != nil {
		return err
	}

	// Commands fall back to bare program names when the tools are not installed.
	var bins binary.Set
	if resolver, err := opts.Resolver(); err == nil {
		bins, err = resolver.ResolveAll(cmd.Context(), stage.BinaryNames())
		if err != nil {
			logging.New("plan").Warn("binaries unresolved", "error", err)
		}
	}

	mode := format.ASCII
	if planFlags.markdown {
		mode = format.Markdown
	}
	fmt.Fprintln(cmd.OutOrStdout(), format.PlanTable(pipeline.NewPlan(cfg, bins), mode))
	return nil
}
