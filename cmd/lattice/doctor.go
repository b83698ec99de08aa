package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the .lattice/ tree for structural integrity issues",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		fix, _ := cmd.Flags().GetBool("fix")

		ctx, err := resolveContext()
		if err != nil {
			return err
		}
		report, err := ctx.Doctor(fix)
		if err != nil {
			return err
		}

		if v.GetBool("json") {
			printResult(report, "")
			return nil
		}
		if len(report.Findings) == 0 {
			fmt.Println("no issues found")
			return nil
		}
		for _, f := range report.Findings {
			status := ""
			if f.Fixed {
				status = " (fixed)"
			}
			if f.TaskID != "" {
				fmt.Printf("%s [%s]: %s%s\n", f.TaskID, f.Kind, f.Detail, status)
			} else {
				fmt.Printf("[%s]: %s%s\n", f.Kind, f.Detail, status)
			}
		}
		return nil
	},
}

func init() {
	doctorCmd.Flags().Bool("fix", false, "trim a truncated trailing JSONL line and regenerate the lifecycle log and short-ID index")
	rootCmd.AddCommand(doctorCmd)
}
