package lode

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for archive storage failures.
// Use errors.Is(err, ErrXxx) for typed assertions.
var (
	// ErrPermissionDenied indicates a local permission failure (EACCES).
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotFound indicates the target path or key does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDiskFull indicates storage is out of space (ENOSPC, quota).
	ErrDiskFull = errors.New("no space left on device")

	// ErrTimeout indicates an operation timed out.
	ErrTimeout = errors.New("operation timed out")

	// ErrThrottled indicates rate limiting (429, SlowDown).
	ErrThrottled = errors.New("rate limited")

	// ErrAuth indicates missing or invalid credentials.
	ErrAuth = errors.New("authentication failed")

	// ErrAccessDenied indicates valid credentials without permission (403).
	ErrAccessDenied = errors.New("access denied")

	// ErrNetwork indicates a connection-level failure.
	ErrNetwork = errors.New("network error")

	// ErrUnclassified is the kind of any failure no rule matched.
	ErrUnclassified = errors.New("storage error")
)

// StorageError wraps an archive failure with its classification.
type StorageError struct {
	// Kind is one of the sentinels above.
	Kind error
	// Op is "init", "put", "write", "read" or "list".
	Op string
	// Path is the store key or dataset involved, if any.
	Path string
	// Err is the underlying error.
	Err error
}

func (e *StorageError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("archive %s %s: %v: %v", e.Op, e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("archive %s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is matches the classification sentinel.
func (e *StorageError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// wrap classifies err for op. Returns nil if err is nil.
func wrap(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Kind: classifyError(err), Op: op, Path: path, Err: err}
}

// WrapWriteError classifies a failed dataset or file write.
func WrapWriteError(err error, path string) error {
	return wrap("write", path, err)
}

// WrapReadError classifies a failed read.
func WrapReadError(err error, path string) error {
	return wrap("read", path, err)
}

// WrapInitError classifies a failed store or dataset construction.
func WrapInitError(err error, dataset string) error {
	return wrap("init", dataset, err)
}

// classifyRule maps message fragments to a sentinel. Rules are checked in
// order; the first match wins.
type classifyRule struct {
	kind      error
	fragments []string
}

var classifyRules = []classifyRule{
	{ErrAccessDenied, []string{"AccessDenied", "Forbidden", "403"}},
	{ErrPermissionDenied, []string{"permission denied", "EACCES", "access denied"}},
	{ErrNotFound, []string{"no such file", "does not exist", "not found", "ENOENT", "404", "NoSuchKey"}},
	{ErrDiskFull, []string{"no space left", "disk full", "ENOSPC", "quota exceeded"}},
	{ErrTimeout, []string{"timeout", "timed out", "deadline exceeded"}},
	{ErrThrottled, []string{"SlowDown", "rate exceeded", "throttl", "429", "TooManyRequests"}},
	{ErrAuth, []string{"NoCredentialProviders", "credentials", "InvalidAccessKeyId",
		"SignatureDoesNotMatch", "ExpiredToken", "401", "Unauthorized"}},
	{ErrNetwork, []string{"connection refused", "no route to host", "network unreachable",
		"DNS", "dial tcp"}},
}

// classifyError returns the sentinel for err, or nil for a nil error.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return ErrTimeout
	}

	msg := strings.ToLower(err.Error())
	for _, rule := range classifyRules {
		for _, frag := range rule.fragments {
			if strings.Contains(msg, strings.ToLower(frag)) {
				return rule.kind
			}
		}
	}
	return ErrUnclassified
}
