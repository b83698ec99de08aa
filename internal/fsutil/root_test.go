package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// Root discovery (spec.md §8 property 10): walking up from a nested
// working directory finds the ancestor ".lattice".
func TestFindRootWalksUpFromNestedDir(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, RootDirName), 0750))

	nested := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0750))

	found, err := FindRoot(nested)
	require.NoError(t, err)

	wantAbs, err := filepath.Abs(root)
	require.NoError(t, err)
	require.Equal(t, wantAbs, found)
}

func TestFindRootReturnsEmptyWhenNoAncestorHasLattice(t *testing.T) {
	dir := t.TempDir()
	found, err := FindRoot(dir)
	require.NoError(t, err)
	require.Empty(t, found)
}

// The override env var must never fall back to the walk-up search: an
// invalid override is a hard failure (spec.md §4.1).
func TestFindRootOverrideNeverFallsBackToWalkUp(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, RootDirName), 0750))
	nested := filepath.Join(root, "nested")
	require.NoError(t, os.MkdirAll(nested, 0750))

	t.Setenv(RootEnvVar, filepath.Join(root, "does-not-exist"))
	_, err := FindRoot(nested)
	require.Error(t, err, "an invalid override must fail, not fall back to the ancestor .lattice that actually exists")
}

func TestFindRootOverrideRejectsEmptyString(t *testing.T) {
	t.Setenv(RootEnvVar, "")
	_, err := FindRoot(t.TempDir())
	require.Error(t, err)
}

func TestFindRootOverrideUsedWhenValid(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, RootDirName), 0750))

	t.Setenv(RootEnvVar, root)
	found, err := FindRoot("/somewhere/unrelated")
	require.NoError(t, err)

	wantAbs, err := filepath.Abs(root)
	require.NoError(t, err)
	require.Equal(t, wantAbs, found)
}
