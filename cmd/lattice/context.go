package main

import (
	"fmt"
	"os"

	"github.com/lattice-dev/lattice/internal/config"
	"github.com/lattice-dev/lattice/internal/errs"
	"github.com/lattice-dev/lattice/internal/fsutil"
	"github.com/lattice-dev/lattice/internal/store"
)

// resolveContext locates the project root (--root or $LATTICE_ROOT,
// otherwise the walk-up search), loads its config, and builds a
// *store.Context. The acting identity is resolved separately by
// resolveActor.
func resolveContext() (*store.Context, error) {
	root := v.GetString("root")
	if root == "" {
		found, err := fsutil.FindRoot("")
		if err != nil {
			return nil, err
		}
		root = found
	}
	if root == "" {
		return nil, errs.New(errs.KindNotFound, "main.resolveContext", "no .lattice/ directory found; run `lattice init` first")
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}

	return store.NewContext(root, cfg, nil, nil), nil
}

// resolveActor returns --actor/$LATTICE_ACTOR, falling back to
// prefs.toml's default_actor.
func resolveActor() string {
	if actor := v.GetString("actor"); actor != "" {
		return actor
	}
	return loadPrefs().DefaultActor
}

// printResult renders payload as deterministic sorted-key JSON when --json
// is set, otherwise falls through to a plain fmt.Println of msg.
func printResult(payload any, msg string) {
	if v.GetBool("json") {
		data, err := fsutil.MarshalPrettySorted(payload)
		if err != nil {
			fmt.Fprintln(os.Stderr, "lattice: marshal output:", err)
			return
		}
		os.Stdout.Write(data)
		return
	}
	fmt.Println(msg)
}

// requireActor rejects an empty actor with the same InvalidActor kind
// events.ValidateActor would return, but before any lock is taken, so
// a missing --actor fails fast.
func requireActor(actor string) error {
	if actor == "" {
		return errs.New(errs.KindInvalidActor, "main.requireActor", "no actor given: pass --actor, set $LATTICE_ACTOR, or configure default_actor in prefs.toml")
	}
	return nil
}
