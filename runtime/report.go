package runtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pithecene-io/skelcap/metrics"
	"github.com/pithecene-io/skelcap/types"
)

// SessionReport is the structured JSON report written by --report.
type SessionReport struct {
	SessionID  string              `json:"session_id"`
	Mode       types.SessionMode   `json:"mode"`
	Source     string              `json:"source,omitempty"`
	OutputPath string              `json:"output_path"`
	ExportKind string              `json:"export_kind,omitempty"`
	Outcome    types.OutcomeStatus `json:"outcome"`
	ExitCode   int                 `json:"exit_code"`
	// Messages is the human-readable report, one diagnostic per entry.
	Messages   []string `json:"messages"`
	Frames     int      `json:"frames"`
	Ticks      int      `json:"ticks"`
	StopReason string   `json:"stop_reason,omitempty"`
	FinalState string   `json:"final_state"`
	DurationMs int64    `json:"duration_ms"`

	Files         []string          `json:"files,omitempty"`
	ArchivedFiles []string          `json:"archived_files,omitempty"`
	Metrics       *metrics.Snapshot `json:"metrics"`

	Error string `json:"error,omitempty"`
}

// BuildSessionReport composes a SessionReport from a SessionResult and
// metrics snapshot.
func BuildSessionReport(result *SessionResult, snap metrics.Snapshot) *SessionReport {
	report := &SessionReport{
		SessionID:     result.Meta.SessionID,
		Mode:          result.Meta.Mode,
		Source:        result.Meta.Source,
		OutputPath:    result.OutputPath,
		Outcome:       result.Outcome,
		ExitCode:      result.ExitCode(),
		Messages:      result.Report.Messages(),
		Frames:        result.Frames,
		Ticks:         result.Ticks,
		StopReason:    string(result.StopReason),
		FinalState:    result.FinalState.String(),
		DurationMs:    result.Duration.Milliseconds(),
		ArchivedFiles: result.ArchivedFiles,
		Metrics:       &snap,
	}
	if report.Messages == nil {
		report.Messages = []string{}
	}
	if result.Export != nil {
		report.ExportKind = string(result.Export.Kind)
		report.Files = result.Export.Files
	}
	if result.Err != nil {
		report.Error = result.Err.Error()
	}
	return report
}

// WriteSessionReport writes the report as JSON to path.
// If path is "-", writes to stderr.
func WriteSessionReport(report *SessionReport, path string) error {
	if path == "" {
		return errors.New("report path must not be empty")
	}
	if path == "-" {
		if err := writeSessionReportTo(report, os.Stderr); err != nil {
			return fmt.Errorf("failed to write report to stderr: %w", err)
		}
		return nil
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	if err := writeSessionReportTo(report, f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return f.Close()
}

func writeSessionReportTo(report *SessionReport, w io.Writer) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
