package lode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/justapithecus/lode/lode"
)

// ErrNoSessionsFound is returned when no session record matches.
var ErrNoSessionsFound = errors.New("no archived sessions found")

// SessionFilter narrows ListSessions. Empty fields match everything.
type SessionFilter struct {
	Mode      string
	Day       string
	SessionID string
}

// ListSessions reads session records from the archive, newest first.
func (a *Archive) ListSessions(ctx context.Context, filter SessionFilter) ([]SessionRecord, error) {
	snapshots, err := a.dataset.Snapshots(ctx)
	if err != nil {
		return nil, WrapReadError(err, a.name+"/snapshots")
	}

	var out []SessionRecord
	for i := len(snapshots) - 1; i >= 0; i-- {
		snap := snapshots[i]
		if !snapshotMatches(snap, filter) {
			continue
		}
		data, err := a.dataset.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("%s/snapshot/%s", a.name, snap.ID))
		}
		// Manifest paths are a coarse pre-filter; record fields decide.
		for _, item := range data {
			row, ok := item.(map[string]any)
			if !ok {
				continue
			}
			rec, ok := sessionRecordFromMap(row)
			if !ok || !filter.matches(rec) {
				continue
			}
			out = append(out, rec)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoSessionsFound
	}
	return out, nil
}

// FetchFile copies an archived file to w.
func (a *Archive) FetchFile(ctx context.Context, key string, w io.Writer) error {
	store, err := a.getOrCreateStore()
	if err != nil {
		return WrapInitError(err, a.name)
	}
	rc, err := store.Get(ctx, key)
	if err != nil {
		return WrapReadError(err, key)
	}
	defer rc.Close()
	if _, err := io.Copy(w, rc); err != nil {
		return WrapReadError(err, key)
	}
	return nil
}

func (f SessionFilter) matches(rec SessionRecord) bool {
	return (f.Mode == "" || rec.Mode == f.Mode) &&
		(f.Day == "" || rec.Day == f.Day) &&
		(f.SessionID == "" || rec.SessionID == f.SessionID)
}

func snapshotMatches(snap *lode.DatasetSnapshot, f SessionFilter) bool {
	return snapshotMatchesFilter(snap, "mode", f.Mode) &&
		snapshotMatchesFilter(snap, "day", f.Day) &&
		snapshotMatchesFilter(snap, "session_id", f.SessionID)
}

// snapshotMatchesFilter checks if a snapshot's file paths match
// the given partition key=value filter.
func snapshotMatchesFilter(snap *lode.DatasetSnapshot, key, value string) bool {
	if value == "" {
		return true
	}
	for _, f := range snap.Manifest.Files {
		if matchesPartitionValue(f.Path, key, value) {
			return true
		}
	}
	return false
}

// matchesPartitionValue checks for an exact key=value path segment, so
// session_id=s-1 does not match session_id=s-10.
func matchesPartitionValue(path, key, value string) bool {
	segment := key + "=" + value
	for _, part := range strings.Split(path, "/") {
		if part == segment {
			return true
		}
	}
	return false
}
