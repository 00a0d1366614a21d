package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/pithecene-io/skelcap/lode"
	"github.com/pithecene-io/skelcap/runtime"
)

// archivedTake replays a synthetic take into an fs archive and returns the
// archive directory and the local export path.
func archivedTake(t *testing.T) (archiveDir, out string) {
	t.Helper()
	dir := t.TempDir()
	archiveDir = filepath.Join(dir, "archive")
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		t.Fatal(err)
	}
	out = filepath.Join(dir, "take.fbx")
	code := runApp(t, "replay", "--dry-run", "--dry-run-frames", "3", "--quiet",
		"--archive-backend", "fs", "--archive-path", archiveDir,
		"take.mkv", out)
	if code != runtime.ExitCodeSuccess {
		t.Fatalf("replay exit code = %d", code)
	}
	return archiveDir, out
}

func TestSessionsFetch_CopiesArchivedFile(t *testing.T) {
	archiveDir, out := archivedTake(t)

	archive, err := lode.NewFSArchive(archiveDir, "")
	if err != nil {
		t.Fatal(err)
	}
	records, err := archive.ListSessions(t.Context(), lode.SessionFilter{})
	if err != nil || len(records) != 1 || len(records[0].Files) != 1 {
		t.Fatalf("records = %+v, err = %v", records, err)
	}

	dest := filepath.Join(t.TempDir(), "fetched.fbx")
	code := runApp(t, "sessions", "fetch",
		"--archive-backend", "fs", "--archive-path", archiveDir,
		records[0].Files[0], dest)
	if code != 0 {
		t.Fatalf("fetch exit code = %d", code)
	}

	want, _ := os.ReadFile(out)
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Error("fetched file differs from the export")
	}
}

func TestSessionsCommands_Errors(t *testing.T) {
	archiveDir, _ := archivedTake(t)
	archive := []string{"--archive-backend", "fs", "--archive-path", archiveDir}

	tests := []struct {
		name string
		args []string
	}{
		{"list without archive", []string{"sessions", "list", "--format", "json"}},
		{"list with tui", append([]string{"sessions", "list", "--tui"}, archive...)},
		{"inspect without id", append([]string{"sessions", "inspect", "--format", "json"}, archive...)},
		{"inspect unknown id", append(append([]string{"sessions", "inspect", "--format", "json"}, archive...), "nope")},
		{"fetch missing key", append(append([]string{"sessions", "fetch"}, archive...), "files/missing.fbx", filepath.Join(t.TempDir(), "x.fbx"))},
		{"inspect missing export", []string{"inspect", "--format", "json", "missing.fbx"}},
		{"inspect unsupported export", []string{"inspect", "--format", "json", "take.obj"}},
		{"version with tui", []string{"version", "--tui"}},
		{"bad format", []string{"version", "--format", "xml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code := runApp(t, tt.args...); code == 0 {
				t.Error("expected a non-zero exit code")
			}
		})
	}
}

func TestSessionsFetch_FailureLeavesNoFile(t *testing.T) {
	archiveDir, _ := archivedTake(t)
	dest := filepath.Join(t.TempDir(), "x.fbx")

	code := runApp(t, "sessions", "fetch",
		"--archive-backend", "fs", "--archive-path", archiveDir,
		"files/missing.fbx", dest)
	if code == 0 {
		t.Fatal("expected failure")
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("partial file should be removed")
	}
}
