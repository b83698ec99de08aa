package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// v is the process-wide viper singleton used only for CLI-level flag
// and environment overrides. It never touches ".lattice/config.json"
// directly; internal/config owns that file with its own deterministic
// serializer (SPEC_FULL.md §A).
var v = viper.New()

// bindConfigFlags wires global flags and LATTICE_-prefixed environment
// overrides onto rootCmd.
func bindConfigFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("root", "", "path to the project root (overrides $LATTICE_ROOT and the walk-up search)")
	cmd.PersistentFlags().String("actor", "", "actor performing this operation, as \"<prefix>:<identifier>\"")
	cmd.PersistentFlags().Bool("json", false, "emit machine-readable JSON output")

	_ = v.BindPFlag("root", cmd.PersistentFlags().Lookup("root"))
	_ = v.BindPFlag("actor", cmd.PersistentFlags().Lookup("actor"))
	_ = v.BindPFlag("json", cmd.PersistentFlags().Lookup("json"))

	v.SetEnvPrefix("LATTICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("root", "")
	v.SetDefault("actor", "")
	v.SetDefault("json", false)
}
