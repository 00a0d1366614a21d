package tracking

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/pithecene-io/skelcap/iox"
	"github.com/pithecene-io/skelcap/ipc"
	"github.com/pithecene-io/skelcap/log"
	"github.com/pithecene-io/skelcap/types"
)

// DefaultBridgePath is the bridge executable looked up on PATH.
const DefaultBridgePath = "k4abt-bridge"

// maxStderrBytes bounds the stderr tail kept for diagnostics.
const maxStderrBytes = 64 * 1024

// waitDelay bounds how long Wait keeps copying stderr after the bridge exits.
const waitDelay = 2 * time.Second

// BridgeConfig configures the bridge process.
type BridgeConfig struct {
	// Path is the bridge executable. Defaults to DefaultBridgePath.
	Path string
	// Args are extra arguments passed before the bridge reads stdin.
	Args []string
	// Env entries are appended to the inherited environment; later
	// entries win over inherited ones with the same key.
	Env []string
	// Logger receives process lifecycle entries. Defaults to a nop logger.
	Logger *log.Logger
}

// BridgeBackend runs the native body-tracking bridge as a child process.
// The process reads a types.BridgeRequest as JSON on stdin and writes
// ipc frames on stdout: one session frame, then capture frames until an
// eos or error frame.
type BridgeBackend struct {
	config BridgeConfig
}

// NewBridgeBackend creates a bridge backend.
func NewBridgeBackend(config BridgeConfig) *BridgeBackend {
	if config.Path == "" {
		config.Path = DefaultBridgePath
	}
	if config.Logger == nil {
		config.Logger = log.NewNopLogger()
	}
	return &BridgeBackend{config: config}
}

// BridgeResult describes how the bridge process exited.
type BridgeResult struct {
	ExitCode    int
	StderrBytes []byte
}

// Open starts the bridge and reads its session frame. Device discovery and
// open failures are returned here; calibration, tracker and camera failures
// reported in the session frame surface from Calibration, NewTracker and
// StartCameras so they keep their setup order.
func (b *BridgeBackend) Open(ctx context.Context, src Source) (Session, error) {
	s := &bridgeSession{
		config: b.config,
		src:    src,
		stderr: &tailBuffer{max: maxStderrBytes},
	}
	if err := s.start(ctx); err != nil {
		return nil, err
	}
	s.closer = iox.NewOnceCloser(iox.CloserFunc(s.shutdown))

	hello, err := s.readHello()
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.hello = hello

	if err := openFailure(src.Mode, hello); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// NewTracker returns the tracker bound to a bridge session. The bridge
// runs the tracker in-process, so the Go side only replays its results.
func (b *BridgeBackend) NewTracker(session Session) (Tracker, error) {
	s, ok := session.(*bridgeSession)
	if !ok {
		return nil, fmt.Errorf("bridge backend: foreign session %T", session)
	}
	if !s.hello.TrackerReady {
		return nil, stageErr(types.BridgeStageTracker, ErrTrackerInit, s.helloMessage())
	}
	return &queueTracker{}, nil
}

// openFailure maps the session frame's discovery fields to an error.
func openFailure(mode types.SessionMode, hello *types.SessionFrame) error {
	detail := ""
	if hello.Message != nil {
		detail = *hello.Message
	}
	if mode == types.SessionModeLive {
		switch {
		case hello.DeviceCount == 0:
			return stageErr(types.BridgeStageDevice, ErrNoDevice, detail)
		case hello.DeviceCount > 1:
			return stageErr(types.BridgeStageDevice, ErrMultipleDevices, detail)
		case !hello.Opened:
			return stageErr(types.BridgeStageDevice, ErrDeviceOpen, detail)
		}
		return nil
	}
	if !hello.Opened {
		return stageErr(types.BridgeStageDevice, ErrRecordingOpen, detail)
	}
	return nil
}

// newBridgeRequest builds the JSON document written to bridge stdin.
func newBridgeRequest(src Source) types.BridgeRequest {
	in := types.BridgeRequest{
		ContractVersion: types.BridgeContractVersion,
		SessionID:       src.SessionID,
		Mode:            src.Mode,
		Device:          src.Device,
	}
	if src.Mode == types.SessionModeReplay {
		in.InputPath = src.InputPath
	}
	if in.Device == (types.DeviceConfig{}) {
		in.Device = types.DefaultDeviceConfig()
	}
	return in
}

type bridgeSession struct {
	config BridgeConfig
	src    Source
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *tailBuffer
	dec    *ipc.FrameDecoder
	hello  *types.SessionFrame
	closer *iox.OnceCloser

	mu     sync.Mutex
	eos    bool
	closed bool
	result *BridgeResult
}

// start launches the process and writes the request to stdin.
func (s *bridgeSession) start(ctx context.Context) error {
	s.cmd = exec.CommandContext(ctx, s.config.Path, s.config.Args...)
	if len(s.config.Env) > 0 {
		s.cmd.Env = deduplicateEnv(append(os.Environ(), s.config.Env...))
	}
	s.cmd.Stderr = s.stderr
	s.cmd.WaitDelay = waitDelay

	stdin, err := s.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := s.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	s.stdout = stdout

	if err := s.cmd.Start(); err != nil {
		return stageErr(types.BridgeStageDevice, openSentinel(s.src.Mode),
			fmt.Sprintf("failed to start bridge: %v", err))
	}
	s.config.Logger.Debug("bridge started", map[string]any{
		"path": s.config.Path,
		"pid":  s.cmd.Process.Pid,
	})

	if err := json.NewEncoder(stdin).Encode(newBridgeRequest(s.src)); err != nil {
		_ = s.kill()
		_ = s.cmd.Wait()
		return fmt.Errorf("failed to write bridge request: %w", err)
	}
	// Close stdin to signal request complete
	if err := stdin.Close(); err != nil {
		_ = s.kill()
		_ = s.cmd.Wait()
		return fmt.Errorf("failed to close stdin: %w", err)
	}

	s.dec = ipc.NewFrameDecoder(stdout)
	return nil
}

func openSentinel(mode types.SessionMode) error {
	if mode == types.SessionModeReplay {
		return ErrRecordingOpen
	}
	return ErrDeviceOpen
}

// readHello reads the first frame, which must be a session frame.
func (s *bridgeSession) readHello() (*types.SessionFrame, error) {
	frame, err := s.dec.Next()
	if err != nil {
		_ = s.Close()
		return nil, stageErr(types.BridgeStageDevice, openSentinel(s.src.Mode), s.exitDetail(err))
	}
	switch f := frame.(type) {
	case *types.SessionFrame:
		if !types.SameMajor(f.ContractVersion, types.BridgeContractVersion) {
			return nil, fmt.Errorf("bridge contract %q is incompatible with %q",
				f.ContractVersion, types.BridgeContractVersion)
		}
		return f, nil
	case *types.ErrorFrame:
		return nil, errorFrameErr(f)
	default:
		return nil, fmt.Errorf("bridge sent %T before its session frame", frame)
	}
}

func (s *bridgeSession) helloMessage() string {
	if s.hello == nil || s.hello.Message == nil {
		return ""
	}
	return *s.hello.Message
}

// Calibration reports the calibration status from the session frame.
func (s *bridgeSession) Calibration() error {
	if !s.hello.Calibrated {
		return stageErr(types.BridgeStageCalibration, ErrCalibration, s.helloMessage())
	}
	return nil
}

// StartCameras reports the camera status from the session frame. Replay
// sessions have no cameras.
func (s *bridgeSession) StartCameras(context.Context) error {
	if s.src.Mode == types.SessionModeLive && !s.hello.CamerasStarted {
		return stageErr(types.BridgeStageCameras, ErrCamerasStart, s.helloMessage())
	}
	return nil
}

// PollNext reads the next frame. It blocks until the bridge writes one.
func (s *bridgeSession) PollNext(ctx context.Context) (Poll, error) {
	s.mu.Lock()
	closed, eos := s.closed, s.eos
	s.mu.Unlock()
	if closed {
		return Poll{Outcome: OutcomeError}, ErrClosed
	}
	if eos {
		return Poll{Outcome: OutcomeEndOfStream}, nil
	}

	frame, err := s.dec.Next()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Poll{Outcome: OutcomeError}, ctxErr
		}
		// Reap the bridge so its stderr is fully captured.
		_ = s.Close()
		return Poll{Outcome: OutcomeError},
			stageErr(types.BridgeStageCapture, ErrCaptureRead, s.exitDetail(err))
	}

	switch f := frame.(type) {
	case *types.CaptureFrame:
		return Poll{Outcome: OutcomeData, Capture: &Capture{
			Seq:           f.Seq,
			TimestampUsec: f.DeviceTimestampUsec,
			HasDepth:      f.HasDepth,
			Bodies:        f.Bodies,
		}}, nil
	case *types.EOSFrame:
		s.mu.Lock()
		s.eos = true
		s.mu.Unlock()
		return Poll{Outcome: OutcomeEndOfStream}, nil
	case *types.ErrorFrame:
		fault := errorFrameErr(f)
		if f.Stage == types.BridgeStageEnqueue || f.Stage == types.BridgeStagePop {
			// Tracker failures belong to the capture that caused them.
			return Poll{Outcome: OutcomeData, Capture: &Capture{HasDepth: true, fault: fault}}, nil
		}
		return Poll{Outcome: OutcomeError}, fault
	default:
		return Poll{Outcome: OutcomeError},
			stageErr(types.BridgeStageCapture, ErrCaptureRead, fmt.Sprintf("unexpected %T", frame))
	}
}

// Close terminates the bridge and waits for it. Safe to call repeatedly.
func (s *bridgeSession) Close() error {
	return s.closer.Close()
}

// Result returns the exit status once the session is closed.
func (s *bridgeSession) Result() *BridgeResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

func (s *bridgeSession) shutdown() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	_ = s.kill()
	result, err := s.wait()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.result = result
	s.mu.Unlock()
	s.config.Logger.Debug("bridge exited", map[string]any{
		"exit_code": result.ExitCode,
	})
	return nil
}

// wait reaps the process. Exit by signal after kill is expected and
// reported through the exit code rather than as an error.
func (s *bridgeSession) wait() (*BridgeResult, error) {
	err := s.cmd.Wait()
	result := &BridgeResult{StderrBytes: s.stderr.Bytes()}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("bridge wait failed: %w", err)
		}
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			result.ExitCode = status.ExitStatus()
		} else {
			result.ExitCode = -1
		}
	}
	return result, nil
}

func (s *bridgeSession) kill() error {
	if s.cmd != nil && s.cmd.Process != nil {
		if err := s.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return err
		}
	}
	return nil
}

// exitDetail describes a stream failure, adding the stderr tail when the
// bridge wrote one.
func (s *bridgeSession) exitDetail(err error) string {
	msg := err.Error()
	if errors.Is(err, io.EOF) {
		msg = "bridge closed its output"
	}
	if tail := strings.TrimSpace(string(s.stderr.Bytes())); tail != "" {
		msg += ": " + lastLine(tail)
	}
	return msg
}

func errorFrameErr(f *types.ErrorFrame) *StageError {
	var sentinel error
	switch f.Stage {
	case types.BridgeStageDevice:
		sentinel = ErrDeviceOpen
	case types.BridgeStageCameras:
		sentinel = ErrCamerasStart
	case types.BridgeStageCalibration:
		sentinel = ErrCalibration
	case types.BridgeStageTracker:
		sentinel = ErrTrackerInit
	case types.BridgeStageEnqueue:
		sentinel = ErrEnqueue
	case types.BridgeStagePop:
		sentinel = ErrPop
	default:
		sentinel = ErrCaptureRead
	}
	return stageErr(f.Stage, sentinel, f.Message)
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// queueTracker holds the last submitted capture until it is popped.
type queueTracker struct {
	mu      sync.Mutex
	pending *Capture
	queued  bool
	closed  bool
}

func (t *queueTracker) Submit(_ context.Context, c *Capture) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	if c.fault != nil && c.fault.Stage == types.BridgeStageEnqueue {
		return c.fault
	}
	t.pending = c
	t.queued = true
	return nil
}

func (t *queueTracker) PopSkeleton(context.Context) (*types.SkeletonSnapshot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrClosed
	}
	if !t.queued {
		return nil, stageErr(types.BridgeStagePop, ErrPop, "no capture queued")
	}
	c := t.pending
	t.pending, t.queued = nil, false
	if c.fault != nil {
		return nil, c.fault
	}
	return FirstBody(c), nil
}

func (t *queueTracker) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.pending = nil
	return nil
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
	max int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(p)
	if len(p) > b.max {
		p = p[len(p)-b.max:]
	}
	if over := b.buf.Len() + len(p) - b.max; over > 0 {
		b.buf.Next(over)
	}
	b.buf.Write(p)
	return n, nil
}

func (b *tailBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bytes.Clone(b.buf.Bytes())
}

// deduplicateEnv keeps the last occurrence of each env var key so
// configured entries win over inherited duplicates from os.Environ().
func deduplicateEnv(env []string) []string {
	seen := make(map[string]int, len(env))
	for i, entry := range env {
		key, _, _ := strings.Cut(entry, "=")
		seen[key] = i
	}
	result := make([]string, 0, len(seen))
	for i, entry := range env {
		key, _, _ := strings.Cut(entry, "=")
		if seen[key] == i {
			result = append(result, entry)
		}
	}
	return result
}
