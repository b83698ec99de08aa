package main

import (
	"github.com/spf13/cobra"
)

var archiveCmd = &cobra.Command{
	Use:   "archive <task>",
	Short: "Move a task into the archive tree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := resolveContext()
		if err != nil {
			return err
		}
		actor := resolveActor()
		if err := requireActor(actor); err != nil {
			return err
		}
		taskID, err := ctx.Resolve(args[0])
		if err != nil {
			return err
		}
		snap, err := ctx.Archive(taskID, actor)
		if err != nil {
			return err
		}
		printResult(snap, "archived "+taskID)
		return nil
	},
}

var unarchiveCmd = &cobra.Command{
	Use:   "unarchive <task>",
	Short: "Move a task back into the active tree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := resolveContext()
		if err != nil {
			return err
		}
		actor := resolveActor()
		if err := requireActor(actor); err != nil {
			return err
		}
		taskID, err := ctx.Resolve(args[0])
		if err != nil {
			return err
		}
		snap, err := ctx.Unarchive(taskID, actor)
		if err != nil {
			return err
		}
		printResult(snap, "unarchived "+taskID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(unarchiveCmd)
}
