package main

import (
	"context"
	"os"
	"testing"

	"rsc.io/script"
	"rsc.io/script/scripttest"
)

// scriptTestHelperEnv marks a subprocess as the re-exec'd "lattice"
// program rather than the test binary itself: TestMain dispatches to
// run() and exits before the testing package ever parses flags.
const scriptTestHelperEnv = "LATTICE_SCRIPTTEST_HELPER=1"

// TestMain lets the compiled test binary double as the "lattice"
// program the .txtar scripts exec: when launched with
// scriptTestHelperEnv set it runs the real CLI and exits, otherwise it
// runs the test suite as usual. This is the standard self-exec trick
// for script-testing a cobra binary without a separate `go build` step.
func TestMain(m *testing.M) {
	if os.Getenv("LATTICE_SCRIPTTEST_HELPER") == "1" {
		os.Exit(run(os.Args[1:]))
	}
	os.Exit(m.Run())
}

// lookupLattice resolves the "lattice" program name to this test
// binary's own path so script.Program re-execs it instead of
// searching $PATH for an installed binary.
func lookupLattice(name string) (string, error) {
	return os.Executable()
}

// TestScripts drives the lattice CLI end-to-end from the declarative
// .txtar scripts under testdata/, the same harness the corpus already
// carries as a direct dependency (SPEC_FULL.md §A).
func TestScripts(t *testing.T) {
	engine := &script.Engine{
		Cmds:  script.DefaultCmds(),
		Conds: script.DefaultConds(),
	}
	engine.Cmds["lattice"] = script.Program("lattice", lookupLattice, os.Interrupt)

	env := append(os.Environ(), scriptTestHelperEnv)
	scripttest.Test(t, context.Background(), engine, env, "testdata/*.txtar")
}
