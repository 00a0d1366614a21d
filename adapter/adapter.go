// Package adapter publishes session-completed notifications to downstream
// systems (webhook, Redis pub/sub).
//
// The runtime owns adapter lifecycle; users provide configuration only.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// EventTypeSessionCompleted is the event_type of every published event.
const EventTypeSessionCompleted = "session_completed"

// SessionCompletedEvent is the payload published when a capture session
// finishes, successfully or not.
type SessionCompletedEvent struct {
	ContractVersion string   `json:"contract_version"`
	EventType       string   `json:"event_type"` // always "session_completed"
	SessionID       string   `json:"session_id"`
	Mode            string   `json:"mode"` // live or replay
	Outcome         string   `json:"outcome"`
	OutputPath      string   `json:"output_path"`
	ExportKind      string   `json:"export_kind,omitempty"`
	Frames          int      `json:"frames"`
	DurationMs      int64    `json:"duration_ms"`
	StopReason      string   `json:"stop_reason,omitempty"`
	Report          []string `json:"report,omitempty"`
	ArchivedFiles   []string `json:"archived_files,omitempty"`
	Timestamp       string   `json:"timestamp"` // RFC 3339
}

// Adapter publishes session completion events to a downstream system.
type Adapter interface {
	// Publish sends one event. Must respect context cancellation.
	Publish(ctx context.Context, event *SessionCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}

// DefaultBackoff is the delay before the first retry. Each later retry
// doubles it.
const DefaultBackoff = 500 * time.Millisecond

// Retry calls attempt up to 1+retries times with exponential backoff.
// It stops early when attempt returns a Permanent error or ctx ends.
func Retry(ctx context.Context, retries int, backoff time.Duration, attempt func(context.Context) error) error {
	if backoff <= 0 {
		backoff = DefaultBackoff
	}
	attempts := 1 + retries

	var lastErr error
	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("context canceled: %w", err)
		}
		if i > 0 {
			delay := time.Duration(1<<uint(i-1)) * backoff
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("context canceled during backoff: %w", ctx.Err())
			case <-timer.C:
			}
		}

		lastErr = attempt(ctx)
		if lastErr == nil {
			return nil
		}
		var perm *PermanentError
		if errors.As(lastErr, &perm) {
			return fmt.Errorf("non-retriable error: %w", perm.Err)
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}

// PermanentError stops Retry immediately.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent marks err as non-retriable.
func Permanent(err error) error {
	return &PermanentError{Err: err}
}
