package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"expgram/internal/binary"
	"expgram/internal/format"
	"expgram/internal/stage"
)

var binariesFlags struct {
	expgramDir string
	markdown   bool
}

var binariesCmd = &cobra.Command{
	Use:   "binaries",
	Short: "Resolve and list the fourteen expgram programs",
	Args:  cobra.NoArgs,
	RunE:  runBinaries,
}

func init() {
	f := binariesCmd.Flags()
	f.StringVar(&binariesFlags.expgramDir, "expgram-dir", "", "Directory holding the expgram programs")
	f.BoolVar(&binariesFlags.markdown, "markdown", false, "Render as a Markdown table")
}

func runBinaries(cmd *cobra.Command, _ []string) error {
	resolver, err := binary.NewResolver(binariesFlags.expgramDir)
	if err != nil {
		return err
	}
	names := stage.BinaryNames()
	bins, err := resolver.ResolveAll(cmd.Context(), names)
	if err != nil {
		return fmt.Errorf("resolve binaries: %w", err)
	}

	mode := format.ASCII
	if binariesFlags.markdown {
		mode = format.Markdown
	}
	fmt.Fprintln(cmd.OutOrStdout(), format.BinaryTable(names, bins, mode))
	return nil
}
