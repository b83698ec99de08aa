package lockfile

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Deadlock freedom (spec.md §8 property 5): two callers that lock an
// overlapping name set, supplied in opposite orders, must both
// eventually succeed rather than deadlock, because LockAll always
// acquires names in sorted order regardless of the order they were
// requested in.
func TestLockAllSortsNamesSoOverlappingCallersNeverDeadlock(t *testing.T) {
	mgr := NewManager(filepath.Join(t.TempDir(), "locks"))

	const rounds = 50
	done := make(chan struct{})

	go func() {
		for i := 0; i < rounds; i++ {
			held, err := mgr.LockAll([]string{"b", "a", "c"})
			require.NoError(t, err)
			time.Sleep(time.Millisecond)
			held.Release()
		}
		done <- struct{}{}
	}()

	go func() {
		for i := 0; i < rounds; i++ {
			held, err := mgr.LockAll([]string{"c", "b", "a"})
			require.NoError(t, err)
			time.Sleep(time.Millisecond)
			held.Release()
		}
		done <- struct{}{}
	}()

	timeout := time.After(10 * time.Second)
	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-timeout:
			t.Fatal("LockAll deadlocked on overlapping name sets requested in opposite orders")
		}
	}
}

// A larger fan-out version of the same property: many goroutines, each
// locking a random-ish overlapping subset in an arbitrary order, must
// all complete without deadlocking or double-acquiring a name.
func TestLockAllManyOverlappingWorkersAllComplete(t *testing.T) {
	mgr := NewManager(filepath.Join(t.TempDir(), "locks"))

	nameSets := [][]string{
		{"events_task_A", "tasks_task_A"},
		{"tasks_task_A", "events_task_A", "events__lifecycle"},
		{"events__lifecycle", "ids_json"},
		{"ids_json", "events_task_A"},
	}

	var wg sync.WaitGroup
	errCh := make(chan error, len(nameSets)*10)
	for _, names := range nameSets {
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(names []string) {
				defer wg.Done()
				held, err := mgr.LockAll(names)
				if err != nil {
					errCh <- err
					return
				}
				held.Release()
			}(names)
		}
	}

	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()

	select {
	case <-waitDone:
	case <-time.After(10 * time.Second):
		t.Fatal("LockAll deadlocked under many overlapping concurrent acquirers")
	}
	close(errCh)
	for err := range errCh {
		require.NoError(t, err)
	}
}

func TestLockAllDedupesRepeatedNames(t *testing.T) {
	mgr := NewManager(filepath.Join(t.TempDir(), "locks"))

	held, err := mgr.LockAll([]string{"a", "a", "a"})
	require.NoError(t, err)
	require.Len(t, held.locks, 1)
	held.Release()
}

func TestLockAllMutualExclusion(t *testing.T) {
	mgr := NewManager(filepath.Join(t.TempDir(), "locks"))

	held, err := mgr.LockAll([]string{"a"})
	require.NoError(t, err)

	otherHeld, ok, err := mgr.TryLockAll([]string{"a"})
	require.NoError(t, err)
	require.False(t, ok, "a second acquirer must not observe the lock as free")
	require.Nil(t, otherHeld)

	held.Release()

	otherHeld, ok, err = mgr.TryLockAll([]string{"a"})
	require.NoError(t, err)
	require.True(t, ok, "the lock must be free again once released")
	otherHeld.Release()
}

func TestTryLockAllReleasesPartialAcquisitionOnContention(t *testing.T) {
	mgr := NewManager(filepath.Join(t.TempDir(), "locks"))

	held, err := mgr.LockAll([]string{"b"})
	require.NoError(t, err)
	defer held.Release()

	// "a" is free but "b" is held elsewhere; TryLockAll must not leave
	// "a" locked behind after failing on "b".
	_, ok, err := mgr.TryLockAll([]string{"a", "b"})
	require.NoError(t, err)
	require.False(t, ok)

	aHeld, ok, err := mgr.TryLockAll([]string{"a"})
	require.NoError(t, err)
	require.True(t, ok, "\"a\" must have been released after the failed multi-lock attempt")
	aHeld.Release()
}

func TestReleaseIsIdempotent(t *testing.T) {
	mgr := NewManager(filepath.Join(t.TempDir(), "locks"))

	held, err := mgr.LockAll([]string{"a", "b"})
	require.NoError(t, err)
	held.Release()
	require.NotPanics(t, func() { held.Release() })
}
