package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/lattice-dev/lattice/internal/config"
	"github.com/lattice-dev/lattice/internal/fsutil"
	"github.com/lattice-dev/lattice/internal/shortid"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a .lattice/ tree in the current directory",
	RunE: func(cmd *cobra.Command, _ []string) error {
		projectCode, _ := cmd.Flags().GetString("project-code")

		root, err := os.Getwd()
		if err != nil {
			return err
		}

		cfg := config.Default()
		cfg.ProjectCode = projectCode

		cfgBytes, err := fsutil.MarshalPrettySorted(cfg)
		if err != nil {
			return err
		}
		idxBytes, err := fsutil.MarshalPrettySorted(shortid.Default())
		if err != nil {
			return err
		}

		result, err := fsutil.Init(root, cfgBytes, idxBytes)
		if err != nil {
			return err
		}
		if result.AlreadyInitialized {
			printResult(result, ".lattice/ already exists at "+root)
			return nil
		}
		printResult(result, "initialized .lattice/ at "+root)
		return nil
	},
}

func init() {
	initCmd.Flags().String("project-code", "", "short-ID prefix for this project, e.g. \"LAT\"")
	rootCmd.AddCommand(initCmd)
}
