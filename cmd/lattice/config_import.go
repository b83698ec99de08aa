package main

import (
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lattice-dev/lattice/internal/config"
	"github.com/lattice-dev/lattice/internal/lockfile"
)

// workflowYAML is the human-authored shape accepted by
// "lattice config import", mirroring the statuses/transitions/hooks
// section of config.Config but friendlier to hand-edit than raw JSON
// (SPEC_FULL.md §B).
type workflowYAML struct {
	Statuses         []string            `yaml:"statuses"`
	Transitions      map[string][]string `yaml:"transitions"`
	WIPLimits        map[string]int      `yaml:"wip_limits"`
	UniversalTargets []string            `yaml:"universal_targets"`
	Hooks            struct {
		PostEvent   string            `yaml:"post_event"`
		On          map[string]string `yaml:"on"`
		Transitions []struct {
			Pattern string `yaml:"pattern"`
			Command string `yaml:"command"`
		} `yaml:"transitions"`
	} `yaml:"hooks"`
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or edit project configuration",
}

var configImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Merge a YAML workflow/hooks document into config.json",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := resolveContext()
		if err != nil {
			return err
		}

		raw, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		var doc workflowYAML
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return err
		}

		held, err := ctx.Locks.LockAll([]string{lockfile.ConfigLock()})
		if err != nil {
			return err
		}
		defer held.Release()

		cfg, err := config.Load(ctx.Root)
		if err != nil {
			return err
		}
		if len(doc.Statuses) > 0 {
			cfg.Workflow.Statuses = doc.Statuses
		}
		if len(doc.Transitions) > 0 {
			cfg.Workflow.Transitions = doc.Transitions
		}
		if len(doc.WIPLimits) > 0 {
			cfg.Workflow.WIPLimits = doc.WIPLimits
		}
		if len(doc.UniversalTargets) > 0 {
			cfg.Workflow.UniversalTargets = doc.UniversalTargets
		}
		if doc.Hooks.PostEvent != "" {
			cfg.Hooks.PostEvent = doc.Hooks.PostEvent
		}
		if len(doc.Hooks.On) > 0 {
			cfg.Hooks.On = doc.Hooks.On
		}
		if len(doc.Hooks.Transitions) > 0 {
			cfg.Hooks.Transitions = cfg.Hooks.Transitions[:0]
			for _, th := range doc.Hooks.Transitions {
				cfg.Hooks.Transitions = append(cfg.Hooks.Transitions, config.TransitionHook{
					Pattern: th.Pattern, Command: th.Command,
				})
			}
		}

		if err := config.Save(ctx.Root, cfg); err != nil {
			return err
		}
		printResult(cfg, "imported workflow from "+args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configImportCmd)
	rootCmd.AddCommand(configCmd)
}
