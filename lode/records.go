package lode

import (
	"time"
)

// RecordKindSession tags session records in the archive dataset.
const RecordKindSession = "session"

// DefaultDataset is the dataset ID used for session records.
const DefaultDataset = "skelcap"

// SessionRecord describes one archived capture session. It is stored as a
// JSONL row partitioned by mode, day and session_id; the exported files
// live next to it under files/.
type SessionRecord struct {
	SessionID   string
	Mode        string
	Day         string
	OutputPath  string
	ExportKind  string
	Outcome     string
	StopReason  string
	Frames      int
	Ticks       int
	Duration    time.Duration
	StartedAt   time.Time
	CompletedAt time.Time
	// Files holds the store keys of the archived exports. Filled in by
	// ArchiveSession.
	Files []string
	// Report holds the human-readable diagnostics, empty on success.
	Report []string
}

// DeriveDay computes the partition day from the session start time.
// Format: YYYY-MM-DD in UTC.
func DeriveDay(startTime time.Time) string {
	return startTime.UTC().Format("2006-01-02")
}

func (r *SessionRecord) toMap() map[string]any {
	files := make([]any, len(r.Files))
	for i, f := range r.Files {
		files[i] = f
	}
	report := make([]any, len(r.Report))
	for i, m := range r.Report {
		report[i] = m
	}
	return map[string]any{
		"record_kind":  RecordKindSession,
		"session_id":   r.SessionID,
		"mode":         r.Mode,
		"day":          r.Day,
		"output_path":  r.OutputPath,
		"export_kind":  r.ExportKind,
		"outcome":      r.Outcome,
		"stop_reason":  r.StopReason,
		"frames":       r.Frames,
		"ticks":        r.Ticks,
		"duration_ms":  r.Duration.Milliseconds(),
		"started_at":   r.StartedAt.UTC().Format(time.RFC3339Nano),
		"completed_at": r.CompletedAt.UTC().Format(time.RFC3339Nano),
		"files":        files,
		"report":       report,
	}
}

// sessionRecordFromMap decodes a row read back through the JSONL codec.
// Numbers arrive as float64 after a JSON round trip.
func sessionRecordFromMap(m map[string]any) (SessionRecord, bool) {
	if toString(m["record_kind"]) != RecordKindSession {
		return SessionRecord{}, false
	}
	rec := SessionRecord{
		SessionID:  toString(m["session_id"]),
		Mode:       toString(m["mode"]),
		Day:        toString(m["day"]),
		OutputPath: toString(m["output_path"]),
		ExportKind: toString(m["export_kind"]),
		Outcome:    toString(m["outcome"]),
		StopReason: toString(m["stop_reason"]),
		Frames:     int(toInt64(m["frames"])),
		Ticks:      int(toInt64(m["ticks"])),
		Duration:   time.Duration(toInt64(m["duration_ms"])) * time.Millisecond,
		Files:      toStrings(m["files"]),
		Report:     toStrings(m["report"]),
	}
	rec.StartedAt, _ = time.Parse(time.RFC3339Nano, toString(m["started_at"]))
	rec.CompletedAt, _ = time.Parse(time.RFC3339Nano, toString(m["completed_at"]))
	return rec, true
}

// toString converts a value to string, returning empty string for nil/non-string.
func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return 0
	}
}

func toStrings(v any) []string {
	switch items := v.(type) {
	case []string:
		return append([]string(nil), items...)
	case []any:
		out := make([]string, 0, len(items))
		for _, item := range items {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
