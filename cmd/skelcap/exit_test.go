package main

import (
	"errors"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/skelcap/runtime"
)

func TestExitErrHandler_NilError(t *testing.T) {
	// Should not panic or exit on nil error
	exitErrHandler(nil, nil)
}

func TestExitErrHandler_WrappedExitCoder(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), cli.Exit("inner error", 42))

	var exitCoder cli.ExitCoder
	if !errors.As(wrapped, &exitCoder) {
		t.Fatal("wrapped error should still match cli.ExitCoder")
	}

	if exitCoder.ExitCode() != 42 {
		t.Errorf("exit code = %d, want 42", exitCoder.ExitCode())
	}
}

func TestExitErrHandler_RegularError(t *testing.T) {
	err := errors.New("regular error")

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		t.Fatal("regular error should not be cli.ExitCoder")
	}
}

// TestExitErrHandler_PreservesExitCode verifies that session outcome
// codes pass through cli.Exit unchanged.
func TestExitErrHandler_PreservesExitCode(t *testing.T) {
	testCases := []struct {
		name string
		code int
	}{
		{"success", runtime.ExitCodeSuccess},
		{"capture_error", runtime.ExitCodeCaptureError},
		{"export_error", runtime.ExitCodeExportError},
		{"invalid_output", runtime.ExitCodeInvalidOutput},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := cli.Exit("", tc.code)

			var exitCoder cli.ExitCoder
			if !errors.As(err, &exitCoder) {
				t.Fatalf("cli.Exit should return ExitCoder")
			}

			if exitCoder.ExitCode() != tc.code {
				t.Errorf("ExitCode() = %d, want %d", exitCoder.ExitCode(), tc.code)
			}
		})
	}
}

// TestExitErrHandler_MessageSuppression verifies empty messages don't print.
func TestExitErrHandler_MessageSuppression(t *testing.T) {
	err := cli.Exit("", 0)
	msg := err.Error()

	if msg != "" && msg != "exit status 0" {
		t.Errorf("Expected empty or 'exit status 0', got %q", msg)
	}
}

func TestNewApp_Commands(t *testing.T) {
	app := newApp()
	want := []string{"record", "replay", "listen", "inspect", "sessions", "version"}
	if len(app.Commands) != len(want) {
		t.Fatalf("got %d commands, want %d", len(app.Commands), len(want))
	}
	for i, name := range want {
		if app.Commands[i].Name != name {
			t.Errorf("Commands[%d] = %s, want %s", i, app.Commands[i].Name, name)
		}
	}
}
