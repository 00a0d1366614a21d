package runtime

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	lodelib "github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/skelcap/adapter"
	"github.com/pithecene-io/skelcap/anim"
	"github.com/pithecene-io/skelcap/export"
	"github.com/pithecene-io/skelcap/export/fbx"
	"github.com/pithecene-io/skelcap/export/gltf"
	"github.com/pithecene-io/skelcap/lode"
	"github.com/pithecene-io/skelcap/log"
	"github.com/pithecene-io/skelcap/metrics"
	"github.com/pithecene-io/skelcap/tracking"
	"github.com/pithecene-io/skelcap/types"
)

func newDispatcher() *export.Dispatcher {
	return export.NewDispatcher(fbx.New(fbx.Options{}), gltf.New(gltf.Options{}))
}

type countingBackend struct {
	kind  export.Kind
	err   error
	mu    sync.Mutex
	calls int
}

func (b *countingBackend) Kind() export.Kind            { return b.kind }
func (b *countingBackend) Convention() anim.Convention { return anim.ConventionCaptured }

func (b *countingBackend) Write(_ context.Context, _ *anim.Clip, path string) ([]string, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	return []string{path}, os.WriteFile(path, []byte("stub"), 0o644)
}

type capturePublisher struct {
	mu     sync.Mutex
	events []*adapter.SessionCompletedEvent
	err    error
}

func (p *capturePublisher) Publish(_ context.Context, e *adapter.SessionCompletedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *capturePublisher) Close() error { return nil }

type failingArchive struct{ err error }

func (a failingArchive) ArchiveSession(context.Context, lode.SessionRecord, []string) ([]string, error) {
	return nil, a.err
}
func (failingArchive) Backend() string { return "fs" }

func sessionConfig(t *testing.T, backend tracking.Backend, source tracking.Source, output string) SessionConfig {
	t.Helper()
	return SessionConfig{
		SessionID:  "sess-test",
		Source:     source,
		OutputPath: output,
		Budget:     LiveBudget(),
		Backend:    backend,
		Dispatcher: newDispatcher(),
		Logger:     log.NewNopLogger(),
	}
}

func TestSession_ReplayExportsFBX(t *testing.T) {
	out := filepath.Join(t.TempDir(), "takes", "take.fbx")
	backend := tracking.NewStubBackend(tracking.BodyFrames(poses(5)...)...)
	notifier := &recordingNotifier{}
	collector := metrics.NewCollector("replay", "stub", "", "sess-test")

	cfg := sessionConfig(t, backend, replaySource(), out)
	cfg.Budget = ReplayBudget()
	cfg.Notifier = notifier
	cfg.Collector = collector
	result := NewSession(cfg).Execute(t.Context())

	if !result.Success() {
		t.Fatalf("Outcome = %s, report = %q, err = %v", result.Outcome, result.Report.String(), result.Err)
	}
	if result.ExitCode() != ExitCodeSuccess {
		t.Errorf("ExitCode = %d", result.ExitCode())
	}
	if !result.Report.Empty() {
		t.Errorf("Report = %q, want empty", result.Report.String())
	}
	if result.Frames != 5 || result.Export == nil || result.Export.Frames != 5 {
		t.Errorf("Frames = %d, Export = %+v", result.Frames, result.Export)
	}
	if result.Export.Kind != export.KindFBX {
		t.Errorf("Export.Kind = %s", result.Export.Kind)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("output missing: %v", err)
	}
	if result.Meta.SessionID != "sess-test" || backend.Source().SessionID != "sess-test" {
		t.Errorf("session id not propagated: %+v / %+v", result.Meta, backend.Source())
	}

	if diff := cmp.Diff([]bool{true}, notifier.success); diff != "" {
		t.Errorf("ProgramComplete success (-want +got):\n%s", diff)
	}
	snap := collector.Snapshot()
	if snap.SessionsStarted != 1 || snap.SessionsCompleted != 1 || snap.ExportSuccess["fbx"] != 1 {
		t.Errorf("metrics = %+v", snap)
	}
}

func TestSession_InvalidOutputKind(t *testing.T) {
	backend := tracking.NewStubBackend(tracking.BodyFrames(poses(3)...)...)
	fbxBackend := &countingBackend{kind: export.KindFBX}
	gltfBackend := &countingBackend{kind: export.KindGLTF}
	notifier := &recordingNotifier{}

	cfg := sessionConfig(t, backend, replaySource(), filepath.Join(t.TempDir(), "take.obj"))
	cfg.Dispatcher = export.NewDispatcher(fbxBackend, gltfBackend)
	cfg.Notifier = notifier
	result := NewSession(cfg).Execute(t.Context())

	want := []string{"Invalid output type. Use either .fbx or .gltf/.glb."}
	if diff := cmp.Diff(want, result.Report.Messages()); diff != "" {
		t.Errorf("report (-want +got):\n%s", diff)
	}
	if result.Outcome != types.OutcomeInvalidOutput || result.ExitCode() != ExitCodeInvalidOutput {
		t.Errorf("Outcome = %s, ExitCode = %d", result.Outcome, result.ExitCode())
	}
	if fbxBackend.calls != 0 || gltfBackend.calls != 0 {
		t.Error("no export back end should run")
	}
	if backend.Opens() != 0 || backend.Polls() != 0 {
		t.Error("acquisition should not start")
	}
	if diff := cmp.Diff([]bool{false}, notifier.success); diff != "" {
		t.Errorf("ProgramComplete success (-want +got):\n%s", diff)
	}
	if notifier.complete[0] != want[0] {
		t.Errorf("ProgramComplete report = %q", notifier.complete[0])
	}
}

func TestSession_OutputExists(t *testing.T) {
	out := filepath.Join(t.TempDir(), "take.fbx")
	if err := os.WriteFile(out, []byte("keep me"), 0o644); err != nil {
		t.Fatal(err)
	}

	backend := tracking.NewStubBackend(tracking.BodyFrames(poses(2)...)...)
	result := NewSession(sessionConfig(t, backend, replaySource(), out)).Execute(t.Context())

	if result.Outcome != types.OutcomeInvalidOutput {
		t.Errorf("Outcome = %s", result.Outcome)
	}
	want := []string{"Output file already exists, please choose another name."}
	if diff := cmp.Diff(want, result.Report.Messages()); diff != "" {
		t.Errorf("report (-want +got):\n%s", diff)
	}
	if backend.Opens() != 0 {
		t.Error("acquisition should not start when the output exists")
	}
	data, _ := os.ReadFile(out)
	if string(data) != "keep me" {
		t.Error("existing output was modified")
	}

	cfg := sessionConfig(t, tracking.NewStubBackend(tracking.BodyFrames(poses(2)...)...), replaySource(), out)
	cfg.Overwrite = true
	if result := NewSession(cfg).Execute(t.Context()); !result.Success() {
		t.Errorf("overwrite: Outcome = %s, report = %q", result.Outcome, result.Report.String())
	}
}

func TestSession_EmptyInputExportsEmptyAnimation(t *testing.T) {
	for _, name := range []string{"empty.fbx", "empty.gltf", "empty.glb"} {
		t.Run(name, func(t *testing.T) {
			out := filepath.Join(t.TempDir(), name)
			backend := tracking.NewStubBackend()
			result := NewSession(sessionConfig(t, backend, replaySource(), out)).Execute(t.Context())

			if !result.Success() {
				t.Fatalf("Outcome = %s, report = %q", result.Outcome, result.Report.String())
			}
			if result.Frames != 0 {
				t.Errorf("Frames = %d, want 0", result.Frames)
			}
			if !result.Report.Empty() {
				t.Errorf("Report = %q, want empty", result.Report.String())
			}
			if _, err := os.Stat(out); err != nil {
				t.Errorf("output missing: %v", err)
			}
		})
	}
}

func TestSession_SetupErrorSkipsExport(t *testing.T) {
	out := filepath.Join(t.TempDir(), "take.fbx")
	backend := &tracking.StubBackend{OpenErr: tracking.ErrNoDevice}
	cfg := sessionConfig(t, backend, liveSource(), out)
	cfg.ExportPartial = true
	result := NewSession(cfg).Execute(t.Context())

	if result.Outcome != types.OutcomeSetupError || result.ExitCode() != ExitCodeCaptureError {
		t.Errorf("Outcome = %s, ExitCode = %d", result.Outcome, result.ExitCode())
	}
	want := []string{"Kinect can't be found by program, please try reconnecting."}
	if diff := cmp.Diff(want, result.Report.Messages()); diff != "" {
		t.Errorf("report (-want +got):\n%s", diff)
	}
	if _, err := os.Stat(out); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("output should not be written, stat err = %v", err)
	}
	if result.FinalState != StateFailed {
		t.Errorf("FinalState = %s", result.FinalState)
	}
}

func TestSession_CaptureErrorPartialExport(t *testing.T) {
	tests := []struct {
		name          string
		exportPartial bool
		wantFile      bool
	}{
		{"replay exports partial buffer", true, true},
		{"live discards buffer", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := filepath.Join(t.TempDir(), "take.gltf")
			frames := append(tracking.BodyFrames(poses(3)...), tracking.StubFrame{Err: errors.New("corrupt block")})
			backend := tracking.NewStubBackend(frames...)

			cfg := sessionConfig(t, backend, replaySource(), out)
			cfg.ExportPartial = tt.exportPartial
			result := NewSession(cfg).Execute(t.Context())

			if result.Outcome != types.OutcomeCaptureError {
				t.Errorf("Outcome = %s, want capture_error", result.Outcome)
			}
			want := []string{"Failed to read current frame."}
			if diff := cmp.Diff(want, result.Report.Messages()); diff != "" {
				t.Errorf("report (-want +got):\n%s", diff)
			}
			_, statErr := os.Stat(out)
			if got := statErr == nil; got != tt.wantFile {
				t.Errorf("output exists = %v, want %v", got, tt.wantFile)
			}
			if tt.wantFile && (result.Export == nil || result.Export.Frames != 3) {
				t.Errorf("Export = %+v, want 3 frames", result.Export)
			}
		})
	}
}

func TestSession_ExportError(t *testing.T) {
	out := filepath.Join(t.TempDir(), "take.fbx")
	failing := &countingBackend{kind: export.KindFBX, err: errors.New("disk full")}
	collector := metrics.NewCollector("replay", "stub", "", "sess-test")

	cfg := sessionConfig(t, tracking.NewStubBackend(tracking.BodyFrames(poses(2)...)...), replaySource(), out)
	cfg.Dispatcher = export.NewDispatcher(failing)
	cfg.Collector = collector
	result := NewSession(cfg).Execute(t.Context())

	if result.Outcome != types.OutcomeExportError || result.ExitCode() != ExitCodeExportError {
		t.Errorf("Outcome = %s, ExitCode = %d", result.Outcome, result.ExitCode())
	}
	want := []string{"An error occurred while creating the fbx."}
	if diff := cmp.Diff(want, result.Report.Messages()); diff != "" {
		t.Errorf("report (-want +got):\n%s", diff)
	}
	if !export.IsBackendError(result.Err) {
		t.Errorf("Err = %v, want BackendError", result.Err)
	}
	if failing.calls != 1 {
		t.Errorf("back end calls = %d, want 1", failing.calls)
	}
	snap := collector.Snapshot()
	if snap.ExportFailure["fbx"] != 1 || snap.SessionsFailed != 1 {
		t.Errorf("metrics = %+v", snap)
	}
}

func TestSession_ArchiveAndPublish(t *testing.T) {
	archive, err := lode.NewArchive("skelcap", "memory", func() (lodelib.Store, error) {
		return sharedStore, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	publisher := &capturePublisher{}
	collector := metrics.NewCollector("replay", "stub", "memory", "sess-test")
	out := filepath.Join(t.TempDir(), "take.fbx")

	cfg := sessionConfig(t, tracking.NewStubBackend(tracking.BodyFrames(poses(4)...)...), replaySource(), out)
	cfg.Archive = archive
	cfg.Publisher = publisher
	cfg.Collector = collector
	cfg.Now = func() time.Time { return time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC) }
	result := NewSession(cfg).Execute(t.Context())

	if !result.Success() {
		t.Fatalf("Outcome = %s, report = %q", result.Outcome, result.Report.String())
	}
	wantKey := "datasets/skelcap/partitions/mode=replay/day=2026-03-14/session_id=sess-test/files/take.fbx"
	if diff := cmp.Diff([]string{wantKey}, result.ArchivedFiles); diff != "" {
		t.Errorf("ArchivedFiles (-want +got):\n%s", diff)
	}
	if got := collector.Snapshot().ArchiveWriteSuccess; got != 1 {
		t.Errorf("ArchiveWriteSuccess = %d, want 1", got)
	}

	sessions, err := archive.ListSessions(t.Context(), lode.SessionFilter{SessionID: "sess-test"})
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if sessions[0].Frames != 4 || sessions[0].ExportKind != "fbx" {
		t.Errorf("archived record = %+v", sessions[0])
	}

	if len(publisher.events) != 1 {
		t.Fatalf("published %d events, want 1", len(publisher.events))
	}
	event := publisher.events[0]
	want := &adapter.SessionCompletedEvent{
		ContractVersion: types.Version,
		EventType:       adapter.EventTypeSessionCompleted,
		SessionID:       "sess-test",
		Mode:            "replay",
		Outcome:         "success",
		OutputPath:      out,
		ExportKind:      "fbx",
		Frames:          4,
		StopReason:      "end_of_stream",
		ArchivedFiles:   []string{wantKey},
		Timestamp:       "2026-03-14T09:00:00Z",
	}
	if diff := cmp.Diff(want, event); diff != "" {
		t.Errorf("event (-want +got):\n%s", diff)
	}
}

var sharedStore = lodelib.NewMemory()

func TestSession_ArchiveFailureKeepsOutcome(t *testing.T) {
	collector := metrics.NewCollector("replay", "stub", "fs", "sess-test")
	publisher := &capturePublisher{err: errors.New("webhook down")}
	cfg := sessionConfig(t, tracking.NewStubBackend(tracking.BodyFrames(poses(1)...)...), replaySource(),
		filepath.Join(t.TempDir(), "take.glb"))
	cfg.Archive = failingArchive{err: errors.New("no space left on device")}
	cfg.Publisher = publisher
	cfg.Collector = collector
	result := NewSession(cfg).Execute(t.Context())

	if !result.Success() {
		t.Errorf("Outcome = %s, want success despite archive and publish failures", result.Outcome)
	}
	if got := collector.Snapshot().ArchiveWriteFailure; got != 1 {
		t.Errorf("ArchiveWriteFailure = %d, want 1", got)
	}
	if len(result.ArchivedFiles) != 0 {
		t.Errorf("ArchivedFiles = %v", result.ArchivedFiles)
	}
}

func TestSession_CanceledContextStillExports(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	frames := tracking.BodyFrames(poses(6)...)
	frames[2].Before = cancel
	out := filepath.Join(t.TempDir(), "take.fbx")
	result := NewSession(sessionConfig(t, tracking.NewStubBackend(frames...), liveSource(), out)).Execute(ctx)

	if !result.Success() {
		t.Fatalf("Outcome = %s, report = %q", result.Outcome, result.Report.String())
	}
	if result.StopReason != StopCanceled {
		t.Errorf("StopReason = %q, want canceled", result.StopReason)
	}
	if result.Frames != 3 {
		t.Errorf("Frames = %d, want 3", result.Frames)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("output missing: %v", err)
	}
}

func TestNewSession_Defaults(t *testing.T) {
	s := NewSession(SessionConfig{
		Source:     replaySource(),
		Dispatcher: newDispatcher(),
		Logger:     log.NewNopLogger(),
	})
	if s.ID() == "" {
		t.Error("session id should default to a uuid")
	}
	if s.config.Source.SessionID != s.ID() {
		t.Error("source should carry the session id")
	}
	if s.config.Hierarchy == nil || s.config.Notifier == nil || s.config.Now == nil {
		t.Errorf("defaults not applied: %+v", s.config)
	}
	if NewSessionID() == NewSessionID() {
		t.Error("session ids should be unique")
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSession_LogOutputCarriesSessionContext(t *testing.T) {
	out := filepath.Join(t.TempDir(), "take.fbx")
	backend := tracking.NewStubBackend(tracking.BodyFrames(poses(2)...)...)
	var logs syncBuffer

	cfg := sessionConfig(t, backend, replaySource(), out)
	cfg.Budget = ReplayBudget()
	cfg.Logger = nil
	cfg.LogOutput = &logs
	result := NewSession(cfg).Execute(t.Context())

	if !result.Success() {
		t.Fatalf("Outcome = %s, report = %q", result.Outcome, result.Report.String())
	}
	got := logs.String()
	for _, want := range []string{`"session_id":"sess-test"`, `"mode":"replay"`, `"message":"session finished"`} {
		if !bytes.Contains([]byte(got), []byte(want)) {
			t.Errorf("log output missing %s:\n%s", want, got)
		}
	}
}
