package main

import (
	"github.com/spf13/cobra"

	"github.com/lattice-dev/lattice/internal/events"
)

var statusCmd = &cobra.Command{
	Use:   "status <task> <new-status>",
	Short: "Move a task to a new status",
	Args:  cobra.ExactArgs(2),
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
		current, err := ctx.LoadSnapshot(taskID)
		if err != nil {
			return err
		}

		ev, err := events.NewEvent(events.NewEventInput{
			Type:   events.StatusChanged,
			Actor:  actor,
			TaskID: taskID,
			Data:   map[string]any{"from": current.Status, "to": args[1]},
		}, ctx.Clock())
		if err != nil {
			return err
		}

		snap, err := ctx.WriteTaskEvent(taskID, []events.Event{ev})
		if err != nil {
			return err
		}
		printResult(snap, taskID+": "+current.Status+" -> "+snap.Status)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
