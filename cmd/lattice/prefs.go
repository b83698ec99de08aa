package main

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// prefs is the small set of personal CLI conveniences read from
// "~/.config/lattice/prefs.toml" (SPEC_FULL.md §A). It is never
// consulted by internal/store — only used here to fill in a flag the
// user omitted.
type prefs struct {
	DefaultActor string `toml:"default_actor"`
	Editor       string `toml:"editor"`
	OutputWidth  int    `toml:"output_width"`
}

func loadPrefs() prefs {
	dir, err := os.UserConfigDir()
	if err != nil {
		return prefs{}
	}
	path := filepath.Join(dir, "lattice", "prefs.toml")
	raw, err := os.ReadFile(path)
	if err != nil {
		return prefs{}
	}
	var p prefs
	if _, err := toml.Decode(string(raw), &p); err != nil {
		return prefs{}
	}
	return p
}
