// Package cli implements the benchwatch command tree.
package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "benchwatch <run_target> <file_to_modify>",
	Short: "Measure watcher build and reload latency",
	Long: "Starts an iBazel watch on the given target, appends a newline to the given file,\n" +
		"and reports initial build, incremental build, and optional browser reload\n" +
		"latency from the watcher's profiling log.",
	Args:         cobra.ExactArgs(2),
	RunE:         runBenchmark,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
