package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"expgram/internal/dispatch"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "expgram",
	Short: "Build large n-gram language models with the expgram tools",
	Long: "expgram drives the seven expgram programs (vocab, extract, index, modify,\n" +
		"estimate, backward, quantize) in order, locally, under mpirun or through a\n" +
		"PBS queue.",
	SilenceUsage:  true,
	SilenceErrors: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(binariesCmd)
	rootCmd.Version = version
}

func main() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "expgram:", err)
	}
	os.Exit(exitCode(err))
}

// exitCode maps a command error onto the process status: the failing stage's
// own exit code, or 1 for everything else.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *dispatch.ExitError
	if errors.As(err, &ee) && ee.Code > 0 {
		return ee.Code
	}
	return 1
}
