package lode

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/justapithecus/lode/lode"
)

// FailingStore is a lode.Store that returns configurable errors.
type FailingStore struct {
	PutErr  error
	GetErr  error
	ListErr error

	PutCalls int
	PutPaths []string
}

func (s *FailingStore) Put(_ context.Context, path string, _ io.Reader) error {
	s.PutCalls++
	s.PutPaths = append(s.PutPaths, path)
	return s.PutErr
}

func (s *FailingStore) Get(_ context.Context, _ string) (io.ReadCloser, error) {
	return nil, s.GetErr
}

func (s *FailingStore) Exists(_ context.Context, _ string) (bool, error) {
	return false, nil
}

func (s *FailingStore) List(_ context.Context, _ string) ([]string, error) {
	return nil, s.ListErr
}

func (s *FailingStore) Delete(_ context.Context, _ string) error {
	return nil
}

func (s *FailingStore) ReadRange(_ context.Context, _ string, _, _ int64) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func (s *FailingStore) ReaderAt(_ context.Context, _ string) (io.ReaderAt, error) {
	return nil, errors.New("not implemented")
}

var _ lode.Store = (*FailingStore)(nil)

// sharedFactory returns a StoreFactory that always returns the given store,
// so the dataset and the file writer see the same state.
func sharedFactory(store lode.Store) lode.StoreFactory {
	return func() (lode.Store, error) { return store, nil }
}

func writeExport(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func testRecord(id string) SessionRecord {
	return SessionRecord{
		SessionID:   id,
		Mode:        "replay",
		OutputPath:  "/captures/take.fbx",
		ExportKind:  "fbx",
		Outcome:     "success",
		StopReason:  "end_of_stream",
		Frames:      42,
		Ticks:       43,
		Duration:    1500 * time.Millisecond,
		StartedAt:   time.Date(2026, 3, 14, 23, 59, 0, 0, time.UTC),
		CompletedAt: time.Date(2026, 3, 15, 0, 0, 1, 0, time.UTC),
	}
}

func TestArchive_ArchiveSession(t *testing.T) {
	archive, err := NewArchive("skelcap", "memory", sharedFactory(lode.NewMemory()))
	if err != nil {
		t.Fatalf("NewArchive failed: %v", err)
	}
	if archive.Backend() != "memory" {
		t.Errorf("Backend() = %q, want memory", archive.Backend())
	}

	file := writeExport(t, "take.fbx", "; FBX 7.4.0 project file\n")
	keys, err := archive.ArchiveSession(t.Context(), testRecord("sess-1"), []string{file})
	if err != nil {
		t.Fatalf("ArchiveSession failed: %v", err)
	}

	want := "datasets/skelcap/partitions/mode=replay/day=2026-03-14/session_id=sess-1/files/take.fbx"
	if len(keys) != 1 || keys[0] != want {
		t.Fatalf("keys = %v, want [%s]", keys, want)
	}

	var buf bytes.Buffer
	if err := archive.FetchFile(t.Context(), keys[0], &buf); err != nil {
		t.Fatalf("FetchFile failed: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "; FBX 7.4.0") {
		t.Errorf("fetched content = %q", buf.String())
	}

	sessions, err := archive.ListSessions(t.Context(), SessionFilter{})
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("len(sessions) = %d, want 1", len(sessions))
	}
	got := sessions[0]
	if got.SessionID != "sess-1" || got.Day != "2026-03-14" || got.Frames != 42 || got.Ticks != 43 {
		t.Errorf("record = %+v", got)
	}
	if got.Duration != 1500*time.Millisecond {
		t.Errorf("Duration = %v, want 1.5s", got.Duration)
	}
	if !got.StartedAt.Equal(testRecord("").StartedAt) {
		t.Errorf("StartedAt = %v", got.StartedAt)
	}
	if len(got.Files) != 1 || got.Files[0] != want {
		t.Errorf("Files = %v", got.Files)
	}
}

func TestArchive_ListSessionsFilter(t *testing.T) {
	archive, err := NewArchive("", "memory", sharedFactory(lode.NewMemory()))
	if err != nil {
		t.Fatal(err)
	}

	for _, id := range []string{"s-1", "s-10"} {
		if _, err := archive.ArchiveSession(t.Context(), testRecord(id), nil); err != nil {
			t.Fatalf("ArchiveSession(%s) failed: %v", id, err)
		}
	}
	live := testRecord("s-2")
	live.Mode = "live"
	live.Report = []string{"Get depth capture returned error."}
	if _, err := archive.ArchiveSession(t.Context(), live, nil); err != nil {
		t.Fatal(err)
	}

	all, err := archive.ListSessions(t.Context(), SessionFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("len(all) = %d, want 3", len(all))
	}
	if all[0].SessionID != "s-2" {
		t.Errorf("newest first: got %s, want s-2", all[0].SessionID)
	}

	exact, err := archive.ListSessions(t.Context(), SessionFilter{SessionID: "s-1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(exact) != 1 || exact[0].SessionID != "s-1" {
		t.Errorf("session_id=s-1 matched %v", exact)
	}

	liveOnly, err := archive.ListSessions(t.Context(), SessionFilter{Mode: "live"})
	if err != nil {
		t.Fatal(err)
	}
	if len(liveOnly) != 1 || len(liveOnly[0].Report) != 1 {
		t.Errorf("mode=live matched %+v", liveOnly)
	}

	if _, err := archive.ListSessions(t.Context(), SessionFilter{Day: "1999-01-01"}); !errors.Is(err, ErrNoSessionsFound) {
		t.Errorf("ListSessions(day=1999) = %v, want ErrNoSessionsFound", err)
	}
}

func TestArchive_FSRoundTrip(t *testing.T) {
	root := t.TempDir()
	archive, err := NewFSArchive(root, "")
	if err != nil {
		t.Fatalf("NewFSArchive failed: %v", err)
	}
	file := writeExport(t, "take.gltf", `{"asset":{"version":"2.0"}}`)
	keys, err := archive.ArchiveSession(t.Context(), testRecord("fs-1"), []string{file})
	if err != nil {
		t.Fatalf("ArchiveSession failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, keys[0])); err != nil {
		t.Errorf("archived file missing on disk: %v", err)
	}
}

func TestArchive_RequiresSessionID(t *testing.T) {
	archive, err := NewArchive("", "memory", sharedFactory(lode.NewMemory()))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := archive.ArchiveSession(t.Context(), SessionRecord{}, nil); err == nil {
		t.Error("expected error for empty session_id")
	}
}

func TestArchive_PutFailure_DiskFull(t *testing.T) {
	store := &FailingStore{
		PutErr: errors.New("write /data/take.fbx: no space left on device"),
	}
	archive, err := NewArchive("", "fs", sharedFactory(store))
	if err != nil {
		t.Fatalf("NewArchive failed: %v", err)
	}

	file := writeExport(t, "take.fbx", "data")
	keys, err := archive.ArchiveSession(t.Context(), testRecord("s-1"), []string{file, file})
	if !errors.Is(err, ErrDiskFull) {
		t.Fatalf("err = %v, want ErrDiskFull", err)
	}
	var se *StorageError
	if !errors.As(err, &se) || se.Op != "write" {
		t.Fatalf("err = %#v, want write StorageError", err)
	}
	if len(keys) != 0 {
		t.Errorf("keys = %v, want none stored", keys)
	}
	if store.PutCalls != 1 {
		t.Errorf("PutCalls = %d, want 1 (abort after first failure)", store.PutCalls)
	}
}

func TestArchive_MissingLocalFile(t *testing.T) {
	archive, err := NewArchive("", "memory", sharedFactory(lode.NewMemory()))
	if err != nil {
		t.Fatal(err)
	}
	missing := filepath.Join(t.TempDir(), "gone.fbx")
	_, err = archive.ArchiveSession(t.Context(), testRecord("s-1"), []string{missing})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestArchive_StoreFactoryFailure(t *testing.T) {
	factoryErr := errors.New("NoCredentialProviders: no valid providers in chain")
	calls := 0
	factory := func() (lode.Store, error) {
		calls++
		if calls == 1 {
			return lode.NewMemory(), nil
		}
		return nil, factoryErr
	}
	archive, err := NewArchive("", "s3", factory)
	if err != nil {
		// Dataset construction consumed the failing call.
		if !errors.Is(err, ErrAuth) {
			t.Fatalf("NewArchive err = %v, want ErrAuth", err)
		}
		return
	}
	_, err = archive.ArchiveSession(t.Context(), testRecord("s-1"), nil)
	if err != nil && !errors.Is(err, ErrAuth) {
		t.Errorf("ArchiveSession err = %v, want nil or ErrAuth", err)
	}
}

func TestFetchFile_GetFailure(t *testing.T) {
	store := &FailingStore{GetErr: errors.New("NoSuchKey: missing")}
	archive, err := NewArchive("", "s3", sharedFactory(store))
	if err != nil {
		t.Fatal(err)
	}
	err = archive.FetchFile(t.Context(), "datasets/skelcap/x", io.Discard)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("FetchFile err = %v, want ErrNotFound", err)
	}
}

func TestS3Config_Validate(t *testing.T) {
	var cfg S3Config
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for empty bucket")
	}
	cfg.Bucket = "captures"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestParseS3Path(t *testing.T) {
	tests := []struct {
		path, bucket, prefix string
	}{
		{"captures", "captures", ""},
		{"captures/studio-a", "captures", "studio-a"},
		{"captures/studio-a/day", "captures", "studio-a/day"},
	}
	for _, tt := range tests {
		bucket, prefix := ParseS3Path(tt.path)
		if bucket != tt.bucket || prefix != tt.prefix {
			t.Errorf("ParseS3Path(%q) = %q, %q", tt.path, bucket, prefix)
		}
	}
}

func TestDeriveDay(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	got := DeriveDay(time.Date(2026, 3, 15, 5, 0, 0, 0, loc))
	if got != "2026-03-14" {
		t.Errorf("DeriveDay() = %q, want 2026-03-14", got)
	}
}

func TestMatchesPartitionValue(t *testing.T) {
	path := "datasets/skelcap/partitions/mode=live/day=2026-03-14/session_id=s-10/data.jsonl"
	if matchesPartitionValue(path, "session_id", "s-1") {
		t.Error("s-1 should not match s-10")
	}
	if !matchesPartitionValue(path, "session_id", "s-10") {
		t.Error("s-10 should match")
	}
}

func TestSnapshotMatches(t *testing.T) {
	snap := &lode.DatasetSnapshot{
		ID: "snap-1",
		Manifest: &lode.Manifest{Files: []lode.FileRef{
			{Path: "partitions/mode=replay/day=2026-03-14/session_id=s-1/data.jsonl"},
		}},
	}
	tests := []struct {
		name   string
		filter SessionFilter
		want   bool
	}{
		{"empty filter", SessionFilter{}, true},
		{"mode match", SessionFilter{Mode: "replay"}, true},
		{"mode mismatch", SessionFilter{Mode: "live"}, false},
		{"day and session", SessionFilter{Day: "2026-03-14", SessionID: "s-1"}, true},
		{"session mismatch", SessionFilter{SessionID: "s-2"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := snapshotMatches(snap, tt.filter); got != tt.want {
				t.Errorf("snapshotMatches() = %v, want %v", got, tt.want)
			}
		})
	}
}
