// Package reader provides the read-side data access layer for the skelcap
// CLI: summaries of exported animation files and queries over archived
// capture sessions.
//
// All operations are read-only.
package reader

import "time"

// ExportSummary describes an exported animation file.
type ExportSummary struct {
	Path      string `json:"path"`
	Kind      string `json:"kind"`
	Format    string `json:"format"`
	Animation string `json:"animation"`
	Joints    int    `json:"joints"`
	// JointNames is in file order.
	JointNames []string `json:"joint_names"`
	// Curves counts FBX animation curves or glTF channels.
	Curves int `json:"curves"`
	// Keys is the key count of the first curve; every curve shares it.
	Keys     int     `json:"keys"`
	Duration float64 `json:"duration_s"`
	Floor    bool    `json:"floor"`
	// Buffers lists external buffer files referenced by a glTF manifest.
	Buffers []string `json:"buffers,omitempty"`
}

// ListSessionsOptions filters ListSessions.
type ListSessionsOptions struct {
	Mode      string
	Day       string
	SessionID string
	Outcome   string
	// Limit caps the result count. Zero means no limit.
	Limit int
}

// SessionItem is a thin row for session listings.
type SessionItem struct {
	SessionID  string    `json:"session_id"`
	Mode       string    `json:"mode"`
	Day        string    `json:"day"`
	Outcome    string    `json:"outcome"`
	ExportKind string    `json:"export_kind"`
	Frames     int       `json:"frames"`
	DurationMs int64     `json:"duration_ms"`
	StartedAt  time.Time `json:"started_at"`
}

// SessionDetail is the full archived record of one session.
type SessionDetail struct {
	SessionID   string    `json:"session_id"`
	Mode        string    `json:"mode"`
	Day         string    `json:"day"`
	OutputPath  string    `json:"output_path"`
	ExportKind  string    `json:"export_kind"`
	Outcome     string    `json:"outcome"`
	StopReason  string    `json:"stop_reason"`
	Frames      int       `json:"frames"`
	Ticks       int       `json:"ticks"`
	DurationMs  int64     `json:"duration_ms"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	Files       []string  `json:"files"`
	Report      []string  `json:"report"`
}

// SessionStats aggregates archived sessions.
type SessionStats struct {
	Total        int            `json:"total"`
	Succeeded    int            `json:"succeeded"`
	Failed       int            `json:"failed"`
	Live         int            `json:"live"`
	Replay       int            `json:"replay"`
	Frames       int64          `json:"frames"`
	CaptureTime  string         `json:"capture_time"`
	ByOutcome    map[string]int `json:"by_outcome"`
	ByExportKind map[string]int `json:"by_export_kind"`
	FirstDay     string         `json:"first_day,omitempty"`
	LastDay      string         `json:"last_day,omitempty"`
}
