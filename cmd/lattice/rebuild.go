package main

import (
	"strconv"

	"github.com/spf13/cobra"
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Replay every event log and regenerate snapshots, the lifecycle log, and the short-ID index",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, err := resolveContext()
		if err != nil {
			return err
		}
		result, err := ctx.RebuildAll()
		if err != nil {
			return err
		}
		printResult(result, "rebuilt "+strconv.Itoa(len(result.TasksRebuilt))+" task(s)")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rebuildCmd)
}
