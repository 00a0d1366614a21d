package tui

import (
	"fmt"
	"strings"
)

// View types with TUI support.
const (
	ViewInspectExport  = "inspect_export"
	ViewInspectSession = "inspect_session"
	ViewStatsSessions  = "stats_sessions"
)

// Run starts the read-only TUI for the view type.
func Run(viewType string, data any) error {
	if !IsTUISupported(viewType) {
		return fmt.Errorf("TUI mode is not supported for %s", viewType)
	}

	if strings.HasPrefix(viewType, "inspect_") {
		return RunInspectTUI(viewType, data)
	}
	return RunStatsTUI(viewType, data)
}

// IsTUISupported returns true if the view type supports TUI mode.
func IsTUISupported(viewType string) bool {
	for _, v := range SupportedTUIViews() {
		if v == viewType {
			return true
		}
	}
	return false
}

// SupportedTUIViews returns a list of view types that support TUI.
func SupportedTUIViews() []string {
	return []string{
		ViewInspectExport,
		ViewInspectSession,
		ViewStatsSessions,
	}
}
