// Package tracking defines the body-tracking backend consumed by the
// acquisition loop, plus the bridge process and scripted implementations.
//
// A Backend opens a Session on a live device or a recording. The session
// yields captures one poll at a time; a Tracker turns each submitted capture
// into zero or one skeleton. Polls block without a timeout: the only escape
// from a stalled backend is closing the session or cancelling the context
// that started it.
package tracking

import (
	"context"
	"errors"
	"fmt"

	"github.com/pithecene-io/skelcap/types"
)

// Source selects what a Session reads from.
type Source struct {
	// Mode is live (attached device) or replay (recording file).
	Mode types.SessionMode
	// InputPath is the recording path for replay sessions.
	InputPath string
	// Device is the camera configuration for live sessions.
	Device types.DeviceConfig
	// SessionID is forwarded to the backend for correlation.
	SessionID string
}

// PollOutcome classifies the result of one poll.
type PollOutcome int

const (
	// OutcomeData means a capture was read.
	OutcomeData PollOutcome = iota
	// OutcomeEndOfStream means the recording has no more captures.
	OutcomeEndOfStream
	// OutcomeError means the capture could not be read.
	OutcomeError
)

// String returns the outcome name.
func (o PollOutcome) String() string {
	switch o {
	case OutcomeData:
		return "data"
	case OutcomeEndOfStream:
		return "end_of_stream"
	case OutcomeError:
		return "error"
	default:
		return fmt.Sprintf("PollOutcome(%d)", int(o))
	}
}

// Poll is the result of Session.PollNext. Capture is set only for OutcomeData.
type Poll struct {
	Outcome PollOutcome
	Capture *Capture
}

// Capture is one polled capture.
type Capture struct {
	Seq int64
	// TimestampUsec is the device timestamp of the depth image.
	TimestampUsec int64
	// HasDepth is false for captures that carry no depth image.
	HasDepth bool
	// Bodies are the bodies detected in this capture, in tracker order.
	Bodies []types.SkeletonSnapshot

	// fault is a tracker failure the bridge attributed to this capture.
	fault *StageError
}

// Backend opens sessions and creates trackers bound to them.
type Backend interface {
	Open(ctx context.Context, src Source) (Session, error)
	NewTracker(s Session) (Tracker, error)
}

// Session is an open device or recording.
type Session interface {
	// Calibration reports whether depth calibration could be read.
	Calibration() error
	// PollNext blocks until the next capture, end of stream, or failure.
	// A non-nil error always comes with OutcomeError.
	PollNext(ctx context.Context) (Poll, error)
	Close() error
}

// CameraStarter is implemented by live sessions whose cameras start after
// the tracker is created.
type CameraStarter interface {
	StartCameras(ctx context.Context) error
}

// Tracker turns submitted captures into skeletons.
type Tracker interface {
	// Submit queues a capture for tracking.
	Submit(ctx context.Context, c *Capture) error
	// PopSkeleton returns the first body of the last submitted capture,
	// or nil when no body was detected.
	PopSkeleton(ctx context.Context) (*types.SkeletonSnapshot, error)
	Close() error
}

// Setup and capture failures. Each is wrapped in a *StageError.
var (
	ErrNoDevice        = errors.New("no depth device found")
	ErrMultipleDevices = errors.New("multiple depth devices found")
	ErrDeviceOpen      = errors.New("device open failed")
	ErrRecordingOpen   = errors.New("recording open failed")
	ErrCalibration     = errors.New("calibration failed")
	ErrTrackerInit     = errors.New("tracker init failed")
	ErrCamerasStart    = errors.New("camera start failed")
	ErrCaptureRead     = errors.New("capture read failed")
	ErrEnqueue         = errors.New("tracker enqueue failed")
	ErrPop             = errors.New("tracker pop failed")
)

// ErrClosed is returned by operations on a closed session or tracker.
var ErrClosed = errors.New("tracking: closed")

// StageError attributes a failure to a backend stage.
type StageError struct {
	Stage types.BridgeStage
	// Err is one of the package sentinels.
	Err error
	// Detail is backend-provided context, possibly empty.
	Detail string
}

func (e *StageError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Stage, e.Err, e.Detail)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage types.BridgeStage, err error, detail string) *StageError {
	return &StageError{Stage: stage, Err: err, Detail: detail}
}

// StageOf returns the stage of a *StageError in err's chain.
func StageOf(err error) (types.BridgeStage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}

// FirstBody returns the first body of c, or nil when c has none.
func FirstBody(c *Capture) *types.SkeletonSnapshot {
	if c == nil || len(c.Bodies) == 0 {
		return nil
	}
	body := c.Bodies[0]
	return &body
}
