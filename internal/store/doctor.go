package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/lattice-dev/lattice/internal/errs"
	"github.com/lattice-dev/lattice/internal/events"
	"github.com/lattice-dev/lattice/internal/fsutil"
	"github.com/lattice-dev/lattice/internal/lockfile"
	"github.com/lattice-dev/lattice/internal/shortid"
)

// FindingKind classifies a single doctor finding.
type FindingKind string

const (
	FindingInvalidSnapshot  FindingKind = "invalid_snapshot"
	FindingTruncatedJSONL   FindingKind = "truncated_jsonl"
	FindingParseError       FindingKind = "parse_error"
	FindingDrift            FindingKind = "drift"
	FindingDanglingRef      FindingKind = "dangling_reference"
	FindingDuplicateShortID FindingKind = "duplicate_short_id"
	FindingStaleNextSeq     FindingKind = "stale_next_seq"
	FindingLifecycleDrift   FindingKind = "lifecycle_drift"
)

// Finding is one structured, machine-readable integrity issue
// (spec.md §4.6, §7 — integrity violations are reported as a
// structured list rather than raw text).
type Finding struct {
	Kind   FindingKind `json:"kind"`
	TaskID string      `json:"task_id,omitempty"`
	Detail string      `json:"detail"`
	Fixed  bool        `json:"fixed"`
}

// DoctorReport is the full result of a doctor run.
type DoctorReport struct {
	Findings []Finding `json:"findings"`
	Fix      bool      `json:"fix"`
}

// Doctor runs every structural check described in spec.md §4.6. It is
// read-only unless fix is true, in which case the only mutations
// performed are: trimming a single truncated trailing JSONL line, and
// regenerating the lifecycle log and short-ID index (never rewriting
// snapshots — that is rebuild's job).
func (c *Context) Doctor(fix bool) (DoctorReport, error) {
	report := DoctorReport{Fix: fix}

	if err := c.doctorCheckSnapshots(&report, fix); err != nil {
		return report, err
	}
	if err := c.doctorCheckEventLogs(&report, fix); err != nil {
		return report, err
	}
	if err := c.doctorCheckDrift(&report); err != nil {
		return report, err
	}
	if err := c.doctorCheckReferences(&report); err != nil {
		return report, err
	}
	if err := c.doctorCheckShortIDs(&report, fix); err != nil {
		return report, err
	}
	if err := c.doctorCheckLifecycle(&report, fix); err != nil {
		return report, err
	}

	return report, nil
}

func (c *Context) doctorCheckSnapshots(report *DoctorReport, fix bool) error {
	_ = fix
	for _, archived := range []bool{false, true} {
		dir := tasksDir(c.Root, archived)
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return errs.Wrap(errs.KindIO, "store.doctorCheckSnapshots", "read tasks directory", err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
				continue
			}
			taskID := strings.TrimSuffix(entry.Name(), ".json")
			snap, readErr, _ := loadSnapshotAt(filepath.Join(dir, entry.Name()))
			if readErr != nil {
				report.Findings = append(report.Findings, Finding{
					Kind: FindingInvalidSnapshot, TaskID: taskID, Detail: readErr.Error(),
				})
				continue
			}
			if snap.ID == "" || snap.Status == "" {
				report.Findings = append(report.Findings, Finding{
					Kind: FindingInvalidSnapshot, TaskID: taskID,
					Detail: "snapshot is missing required id/status fields",
				})
			}
		}
	}
	return nil
}

func (c *Context) doctorCheckEventLogs(report *DoctorReport, fix bool) error {
	for _, archived := range []bool{false, true} {
		ids, err := listTaskIDsFromEventsDir(eventsDir(c.Root, archived))
		if err != nil {
			return err
		}
		for _, taskID := range ids {
			path := eventLogPath(c.Root, taskID, archived)
			var parseErr error
			truncated, readErr := fsutil.ReadJSONLLines(path, func(line []byte) error {
				var raw map[string]any
				if jsonErr := json.Unmarshal(line, &raw); jsonErr != nil {
					parseErr = jsonErr
				}
				return nil
			})
			if readErr != nil {
				report.Findings = append(report.Findings, Finding{
					Kind: FindingParseError, TaskID: taskID, Detail: readErr.Error(),
				})
				continue
			}
			if parseErr != nil {
				report.Findings = append(report.Findings, Finding{
					Kind: FindingParseError, TaskID: taskID, Detail: parseErr.Error(),
				})
			}
			if truncated {
				f := Finding{Kind: FindingTruncatedJSONL, TaskID: taskID, Detail: "trailing line is truncated"}
				if fix {
					held, lockErr := c.Locks.LockAll([]string{lockfile.EventsLock(taskID)})
					if lockErr != nil {
						return errs.Wrap(errs.KindLockContention, "store.doctorCheckEventLogs", "acquire lock", lockErr)
					}
					trimmed, trimErr := fsutil.TrimTruncatedTail(path)
					held.Release()
					if trimErr != nil {
						return trimErr
					}
					f.Fixed = trimmed
				}
				report.Findings = append(report.Findings, f)
			}
		}
	}
	return nil
}

func (c *Context) doctorCheckDrift(report *DoctorReport) error {
	for _, archived := range []bool{false, true} {
		ids, err := listTaskIDsFromEventsDir(eventsDir(c.Root, archived))
		if err != nil {
			return err
		}
		for _, taskID := range ids {
			evs, err := readEventLog(eventLogPath(c.Root, taskID, archived))
			if err != nil {
				return err
			}
			if len(evs) == 0 {
				continue
			}
			lastID := evs[len(evs)-1].ID

			snap, readErr, found := loadSnapshotAt(snapshotPath(c.Root, taskID, archived))
			if !found {
				report.Findings = append(report.Findings, Finding{
					Kind: FindingDrift, TaskID: taskID, Detail: "event log exists but snapshot is missing",
				})
				continue
			}
			if readErr != nil {
				continue // already reported by doctorCheckSnapshots
			}
			if snap.LastEventID != lastID {
				report.Findings = append(report.Findings, Finding{
					Kind: FindingDrift, TaskID: taskID,
					Detail: "snapshot.last_event_id=" + snap.LastEventID + " but log's final event is " + lastID,
				})
			}
		}
	}
	return nil
}

func (c *Context) doctorCheckReferences(report *DoctorReport) error {
	knownTasks := map[string]struct{}{}

	for _, archived := range []bool{false, true} {
		snaps, err := listSnapshots(tasksDir(c.Root, archived))
		if err != nil {
			return err
		}
		for _, s := range snaps {
			knownTasks[s.ID] = struct{}{}
		}
	}

	for _, archived := range []bool{false, true} {
		snaps, err := listSnapshots(tasksDir(c.Root, archived))
		if err != nil {
			return err
		}
		for _, snap := range snaps {
			for _, artID := range snap.ArtifactRefs {
				if _, err := os.Stat(artifactMetaPath(c.Root, artID)); err != nil {
					report.Findings = append(report.Findings, Finding{
						Kind: FindingDanglingRef, TaskID: snap.ID,
						Detail: "artifact_ref " + artID + " has no metadata file",
					})
				}
			}
			for _, rel := range snap.RelationshipsOut {
				if _, ok := knownTasks[rel.TargetTaskID]; !ok {
					report.Findings = append(report.Findings, Finding{
						Kind: FindingDanglingRef, TaskID: snap.ID,
						Detail: "relationship target " + rel.TargetTaskID + " does not resolve to an existing task",
					})
				}
			}
		}
	}

	idx, err := loadShortIDIndex(c.Root)
	if err != nil {
		return err
	}
	for shortID, taskID := range idx.Map {
		if _, ok := knownTasks[taskID]; !ok {
			report.Findings = append(report.Findings, Finding{
				Kind: FindingDanglingRef, TaskID: taskID,
				Detail: "ids.json maps " + shortID + " to a task that does not exist",
			})
		}
	}
	return nil
}

func (c *Context) doctorCheckShortIDs(report *DoctorReport, fix bool) error {
	seen := map[string]string{} // short_id -> first task_id seen
	maxSeq := map[string]int{}
	for _, archived := range []bool{false, true} {
		snaps, err := listSnapshots(tasksDir(c.Root, archived))
		if err != nil {
			return err
		}
		for _, snap := range snaps {
			if snap.ShortID == "" {
				continue
			}
			if owner, dup := seen[snap.ShortID]; dup && owner != snap.ID {
				report.Findings = append(report.Findings, Finding{
					Kind: FindingDuplicateShortID, TaskID: snap.ID,
					Detail: "short_id " + snap.ShortID + " is also assigned to " + owner,
				})
				continue
			}
			seen[snap.ShortID] = snap.ID
			if prefix, seq, ok := splitShortID(snap.ShortID); ok && seq > maxSeq[prefix] {
				maxSeq[prefix] = seq
			}
		}
	}

	idx, err := loadShortIDIndex(c.Root)
	if err != nil {
		return err
	}
	for prefix, max := range maxSeq {
		if idx.NextSeqs[prefix] <= max {
			report.Findings = append(report.Findings, Finding{
				Kind: FindingStaleNextSeq,
				Detail: "next_seqs[" + prefix + "]=" + strconv.Itoa(idx.NextSeqs[prefix]) +
					" is not greater than the highest observed sequence " + strconv.Itoa(max),
			})
		}
	}

	if fix && hasFindingKind(report.Findings, FindingDuplicateShortID, FindingStaleNextSeq) {
		held, err := c.Locks.LockAll([]string{lockfile.IDsLock()})
		if err != nil {
			return errs.Wrap(errs.KindLockContention, "store.doctorCheckShortIDs", "acquire lock", err)
		}
		defer held.Release()
		if _, err := c.regenerateShortIDIndex(); err != nil {
			return err
		}
		markFixed(report.Findings, FindingStaleNextSeq)
	}

	return nil
}

func (c *Context) doctorCheckLifecycle(report *DoctorReport, fix bool) error {
	lifecycleIDs := map[string]struct{}{}
	evs, err := readEventLog(lifecyclePath(c.Root))
	if err != nil {
		return err
	}
	for _, ev := range evs {
		lifecycleIDs[ev.ID] = struct{}{}
	}

	var missing int
	for _, archived := range []bool{false, true} {
		ids, err := listTaskIDsFromEventsDir(eventsDir(c.Root, archived))
		if err != nil {
			return err
		}
		for _, taskID := range ids {
			taskEvs, err := readEventLog(eventLogPath(c.Root, taskID, archived))
			if err != nil {
				return err
			}
			for _, ev := range taskEvs {
				if !isLifecycleEvent(ev) {
					continue
				}
				if _, ok := lifecycleIDs[ev.ID]; !ok {
					report.Findings = append(report.Findings, Finding{
						Kind: FindingLifecycleDrift, TaskID: taskID,
						Detail: "lifecycle event " + ev.ID + " is missing from the global lifecycle log",
					})
					missing++
				}
			}
		}
	}

	if fix && missing > 0 {
		held, err := c.Locks.LockAll([]string{lockfile.LifecycleLock()})
		if err != nil {
			return errs.Wrap(errs.KindLockContention, "store.doctorCheckLifecycle", "acquire lock", err)
		}
		defer held.Release()
		if _, err := c.regenerateLifecycle(); err != nil {
			return err
		}
		markFixed(report.Findings, FindingLifecycleDrift)
	}

	return nil
}

func hasFindingKind(findings []Finding, kinds ...FindingKind) bool {
	want := map[FindingKind]struct{}{}
	for _, k := range kinds {
		want[k] = struct{}{}
	}
	for _, f := range findings {
		if _, ok := want[f.Kind]; ok {
			return true
		}
	}
	return false
}

func markFixed(findings []Finding, kind FindingKind) {
	for i := range findings {
		if findings[i].Kind == kind {
			findings[i].Fixed = true
		}
	}
}

func artifactMetaPath(root, artifactID string) string {
	return filepath.Join(fsutil.LatticeDir(root), "artifacts", "meta", artifactID+".json")
}

func loadShortIDIndex(root string) (shortid.Index, error) {
	return shortid.Load(root)
}

func isLifecycleEvent(ev events.Event) bool {
	return events.IsLifecycle(ev.Type)
}
