package runtime

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pithecene-io/skelcap/tracking"
	"github.com/pithecene-io/skelcap/types"
)

// AcquisitionStage names the step of acquisition that failed.
type AcquisitionStage int

const (
	// StageOpen is opening the device or recording.
	StageOpen AcquisitionStage = iota
	// StageCalibration is reading depth calibration.
	StageCalibration
	// StageTracker is creating the body tracker.
	StageTracker
	// StageCameras is starting the cameras (live only).
	StageCameras
	// StagePoll is reading the next capture.
	StagePoll
	// StageEnqueue is submitting a capture to the tracker.
	StageEnqueue
	// StagePop is retrieving the tracker result.
	StagePop
)

// String returns the stage name.
func (s AcquisitionStage) String() string {
	switch s {
	case StageOpen:
		return "open"
	case StageCalibration:
		return "calibration"
	case StageTracker:
		return "tracker"
	case StageCameras:
		return "cameras"
	case StagePoll:
		return "poll"
	case StageEnqueue:
		return "enqueue"
	case StagePop:
		return "pop"
	default:
		return fmt.Sprintf("AcquisitionStage(%d)", int(s))
	}
}

// IsSetup reports whether the stage runs before the first poll.
func (s AcquisitionStage) IsSetup() bool {
	return s <= StageCameras
}

// AcquisitionError classifies acquisition failures for outcome
// determination and the human-readable report.
type AcquisitionError struct {
	Stage AcquisitionStage
	// Mode selects the wording of the diagnostic.
	Mode types.SessionMode
	// Err is the underlying backend error.
	Err error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *AcquisitionError) Unwrap() error {
	return e.Err
}

// Diagnostic returns the operator-facing message for the failure.
func (e *AcquisitionError) Diagnostic() string {
	live := e.Mode != types.SessionModeReplay
	switch e.Stage {
	case StageOpen:
		switch {
		case !live:
			return "Cannot open recording."
		case errors.Is(e.Err, tracking.ErrNoDevice):
			return "Kinect can't be found by program, please try reconnecting."
		case errors.Is(e.Err, tracking.ErrMultipleDevices):
			return "Multiple Kinects detected. Please unplug additional ones."
		default:
			return "Kinect was found by program, but can't connect. Please try reconnecting."
		}
	case StageCalibration:
		if live {
			return "Get depth camera calibration failed."
		}
		return "Failed to get calibration."
	case StageTracker:
		return "Body tracker initialization failed."
	case StageCameras:
		return "Kinect camera failed to start, please try reconnecting."
	case StagePoll:
		if live {
			return "Get depth capture returned error."
		}
		return "Failed to read current frame."
	case StageEnqueue:
		return "Add capture to tracker process queue failed."
	case StagePop:
		return "Pop body frame result failed."
	default:
		return e.Error()
	}
}

// IsSetupError returns true if err is an acquisition failure before the
// first poll.
func IsSetupError(err error) bool {
	var acqErr *AcquisitionError
	if errors.As(err, &acqErr) {
		return acqErr.Stage.IsSetup()
	}
	return false
}

// IsCaptureError returns true if err is an acquisition failure after the
// loop started.
func IsCaptureError(err error) bool {
	var acqErr *AcquisitionError
	if errors.As(err, &acqErr) {
		return !acqErr.Stage.IsSetup()
	}
	return false
}

// Report accumulates the human-readable diagnostics of one session.
// An empty report means success.
type Report struct {
	messages []string
}

// Add appends a message. Empty messages are ignored.
func (r *Report) Add(msg string) {
	if msg == "" {
		return
	}
	r.messages = append(r.messages, msg)
}

// Addf appends a formatted message.
func (r *Report) Addf(format string, args ...any) {
	r.Add(fmt.Sprintf(format, args...))
}

// Empty reports whether no message was added.
func (r *Report) Empty() bool {
	return len(r.messages) == 0
}

// Messages returns a copy of the messages in order.
func (r *Report) Messages() []string {
	return append([]string(nil), r.messages...)
}

// String joins the messages one per line.
func (r *Report) String() string {
	return strings.Join(r.messages, "\n")
}
