package types

import (
	"strconv"
	"strings"
)

// SessionMode selects the capture source.
type SessionMode string

const (
	// SessionModeLive captures from an attached depth camera.
	SessionModeLive SessionMode = "live"
	// SessionModeReplay reads a prerecorded capture file.
	SessionModeReplay SessionMode = "replay"
)

// OutcomeStatus is the final classification of a capture session.
type OutcomeStatus string

const (
	// OutcomeSuccess indicates frames were captured and exported.
	OutcomeSuccess OutcomeStatus = "success"
	// OutcomeSetupError indicates device, calibration, or tracker setup failed.
	OutcomeSetupError OutcomeStatus = "setup_error"
	// OutcomeCaptureError indicates a fatal error while acquiring frames.
	OutcomeCaptureError OutcomeStatus = "capture_error"
	// OutcomeExportError indicates the export back end failed.
	OutcomeExportError OutcomeStatus = "export_error"
	// OutcomeInvalidOutput indicates the output path was rejected before setup.
	OutcomeInvalidOutput OutcomeStatus = "invalid_output"
)

// ExitCode maps an outcome status to a process exit code.
func (s OutcomeStatus) ExitCode() int {
	switch s {
	case OutcomeSuccess:
		return 0
	case OutcomeSetupError, OutcomeCaptureError:
		return 1
	case OutcomeExportError:
		return 2
	case OutcomeInvalidOutput:
		return 3
	default:
		return 1
	}
}

// SameMajor reports whether two semver strings share a major version.
func SameMajor(a, b string) bool {
	ma, ok := major(a)
	if !ok {
		return false
	}
	mb, ok := major(b)
	if !ok {
		return false
	}
	return ma == mb
}

func major(v string) (int, bool) {
	head, _, _ := strings.Cut(v, ".")
	n, err := strconv.Atoi(head)
	if err != nil {
		return 0, false
	}
	return n, true
}

// SessionMeta identifies one capture session in logs and reports.
type SessionMeta struct {
	SessionID string      `json:"session_id"`
	Mode      SessionMode `json:"mode"`
	// Source is the recording path for replay sessions.
	Source string `json:"source,omitempty"`
}
