package main

import (
	"github.com/spf13/cobra"

	"github.com/lattice-dev/lattice/internal/events"
)

var commentCmd = &cobra.Command{
	Use:   "comment <task> <text>",
	Short: "Append a comment event to a task",
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

		ev, err := events.NewEvent(events.NewEventInput{
			Type:   events.CommentAdded,
			Actor:  actor,
			TaskID: taskID,
			Data:   map[string]any{"text": args[1]},
		}, ctx.Clock())
		if err != nil {
			return err
		}

		snap, err := ctx.WriteTaskEvent(taskID, []events.Event{ev})
		if err != nil {
			return err
		}
		printResult(snap, "commented on "+taskID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(commentCmd)
}
