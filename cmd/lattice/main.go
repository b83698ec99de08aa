// Command lattice is a thin CLI driver over the core write pipeline
// in internal/store: it binds flags, resolves the root, and calls
// straight through to internal/store.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "lattice",
	Short: "A file-based, agent-native task tracker",
	Long: `lattice tracks tasks as an event-sourced log on disk under
.lattice/. Snapshots are derived, rebuildable views of that log;
the log itself is the only thing that must never be lost.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	os.Exit(run(os.Args[1:]))
}

// run executes the CLI against args and returns the process exit code.
// Factored out of main so the script-test harness can re-invoke it
// in-process under a different entry point (see script_test.go).
func run(args []string) int {
	bindConfigFlags(rootCmd)
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "lattice:", err)
		return 1
	}
	return 0
}
