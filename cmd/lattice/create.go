package main

import (
	"github.com/spf13/cobra"

	"github.com/lattice-dev/lattice/internal/store"
)

var createCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a task",
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

		id, _ := cmd.Flags().GetString("id")
		description, _ := cmd.Flags().GetString("description")
		priority, _ := cmd.Flags().GetString("priority")
		urgency, _ := cmd.Flags().GetString("urgency")
		taskType, _ := cmd.Flags().GetString("type")
		assignedTo, _ := cmd.Flags().GetString("assigned-to")
		tags, _ := cmd.Flags().GetStringSlice("tag")

		snap, err := ctx.CreateTask(store.CreateTaskInput{
			ID:          id,
			Title:       args[0],
			Actor:       actor,
			Description: description,
			Priority:    priority,
			Urgency:     urgency,
			Type:        taskType,
			Tags:        tags,
			AssignedTo:  assignedTo,
		})
		if err != nil {
			return err
		}

		label := snap.ID
		if snap.ShortID != "" {
			label = snap.ShortID
		}
		printResult(snap, "created "+label+": "+snap.Title)
		return nil
	},
}

func init() {
	createCmd.Flags().String("id", "", "caller-supplied task ID (idempotent if it already exists with identical fields)")
	createCmd.Flags().String("description", "", "")
	createCmd.Flags().String("priority", "", "")
	createCmd.Flags().String("urgency", "", "")
	createCmd.Flags().String("type", "", "")
	createCmd.Flags().String("assigned-to", "", "")
	createCmd.Flags().StringSlice("tag", nil, "repeatable")
	rootCmd.AddCommand(createCmd)
}
