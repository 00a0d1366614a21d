package reader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pithecene-io/skelcap/export"
	"github.com/pithecene-io/skelcap/export/fbx"
	"github.com/pithecene-io/skelcap/export/gltf"
	"github.com/pithecene-io/skelcap/lode"
)

// ErrSessionNotFound is returned by InspectSession for an unknown ID.
var ErrSessionNotFound = errors.New("session not found")

// Archive is the archive surface the reader needs. *lode.Archive
// satisfies it.
type Archive interface {
	ListSessions(ctx context.Context, filter lode.SessionFilter) ([]lode.SessionRecord, error)
	FetchFile(ctx context.Context, key string, w io.Writer) error
}

var _ Archive = (*lode.Archive)(nil)

// InspectExport summarizes an exported .fbx, .gltf or .glb file.
func InspectExport(path string) (*ExportSummary, error) {
	kind, err := export.KindOf(path)
	if err != nil {
		return nil, err
	}
	switch kind {
	case export.KindFBX:
		return inspectFBX(path)
	default:
		return inspectGLTF(path)
	}
}

func inspectFBX(path string) (*ExportSummary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s, err := fbx.Inspect(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &ExportSummary{
		Path:       path,
		Kind:       string(export.KindFBX),
		Format:     fmt.Sprintf("FBX %d.%d ASCII", s.Version/1000, s.Version%1000/100),
		Animation:  s.Animation,
		Joints:     len(s.Joints),
		JointNames: s.Joints,
		Curves:     s.Curves,
		Keys:       s.Keys,
		Duration:   float64(s.StopKTime) / fbx.KTimeSecond,
		Floor:      s.HasFloor,
	}, nil
}

func inspectGLTF(path string) (*ExportSummary, error) {
	s, err := gltf.Inspect(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	format := "glTF 2.0"
	if export.IsBinaryGLTF(path) {
		format = "glTF 2.0 binary"
	}
	var names []string
	for _, n := range s.Nodes {
		if n != gltf.SkeletonNodeName {
			names = append(names, n)
		}
	}
	return &ExportSummary{
		Path:       path,
		Kind:       string(export.KindGLTF),
		Format:     format,
		Animation:  s.Animation,
		Joints:     s.Joints,
		JointNames: names,
		Curves:     s.Channels,
		Keys:       s.Keys,
		Duration:   s.Duration,
		Buffers:    s.BufferURIs,
	}, nil
}

// SessionReader answers session queries against an archive.
type SessionReader struct {
	archive Archive
}

// NewSessionReader creates a reader over archive.
func NewSessionReader(archive Archive) *SessionReader {
	return &SessionReader{archive: archive}
}

// ListSessions returns archived sessions, newest first. An empty archive
// gives an empty slice rather than an error.
func (r *SessionReader) ListSessions(ctx context.Context, opts ListSessionsOptions) ([]SessionItem, error) {
	records, err := r.records(ctx, lode.SessionFilter{
		Mode:      opts.Mode,
		Day:       opts.Day,
		SessionID: opts.SessionID,
	})
	if err != nil {
		return nil, err
	}

	items := make([]SessionItem, 0, len(records))
	for _, rec := range records {
		if opts.Outcome != "" && rec.Outcome != opts.Outcome {
			continue
		}
		items = append(items, SessionItem{
			SessionID:  rec.SessionID,
			Mode:       rec.Mode,
			Day:        rec.Day,
			Outcome:    rec.Outcome,
			ExportKind: rec.ExportKind,
			Frames:     rec.Frames,
			DurationMs: rec.Duration.Milliseconds(),
			StartedAt:  rec.StartedAt,
		})
		if opts.Limit > 0 && len(items) == opts.Limit {
			break
		}
	}
	return items, nil
}

// InspectSession returns the newest record for sessionID.
func (r *SessionReader) InspectSession(ctx context.Context, sessionID string) (*SessionDetail, error) {
	records, err := r.records(ctx, lode.SessionFilter{SessionID: sessionID})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	rec := records[0]
	detail := &SessionDetail{
		SessionID:   rec.SessionID,
		Mode:        rec.Mode,
		Day:         rec.Day,
		OutputPath:  rec.OutputPath,
		ExportKind:  rec.ExportKind,
		Outcome:     rec.Outcome,
		StopReason:  rec.StopReason,
		Frames:      rec.Frames,
		Ticks:       rec.Ticks,
		DurationMs:  rec.Duration.Milliseconds(),
		StartedAt:   rec.StartedAt,
		CompletedAt: rec.CompletedAt,
		Files:       rec.Files,
		Report:      rec.Report,
	}
	if detail.Files == nil {
		detail.Files = []string{}
	}
	if detail.Report == nil {
		detail.Report = []string{}
	}
	return detail, nil
}

// StatsSessions aggregates every session matching filter.
func (r *SessionReader) StatsSessions(ctx context.Context, filter lode.SessionFilter) (*SessionStats, error) {
	records, err := r.records(ctx, filter)
	if err != nil {
		return nil, err
	}
	return AggregateSessions(records), nil
}

// FetchFile copies an archived export to dest. A dest of "-" writes to w.
func (r *SessionReader) FetchFile(ctx context.Context, key, dest string, w io.Writer) error {
	if dest == "-" {
		return r.archive.FetchFile(ctx, key, w)
	}
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	if err := r.archive.FetchFile(ctx, key, f); err != nil {
		_ = f.Close()
		_ = os.Remove(dest)
		return err
	}
	return f.Close()
}

func (r *SessionReader) records(ctx context.Context, filter lode.SessionFilter) ([]lode.SessionRecord, error) {
	records, err := r.archive.ListSessions(ctx, filter)
	if errors.Is(err, lode.ErrNoSessionsFound) {
		return nil, nil
	}
	return records, err
}

// AggregateSessions computes totals over records.
func AggregateSessions(records []lode.SessionRecord) *SessionStats {
	stats := &SessionStats{
		ByOutcome:    map[string]int{},
		ByExportKind: map[string]int{},
	}
	var capture time.Duration
	for _, rec := range records {
		stats.Total++
		if rec.Outcome == "success" {
			stats.Succeeded++
		} else {
			stats.Failed++
		}
		switch strings.ToLower(rec.Mode) {
		case "live":
			stats.Live++
		case "replay":
			stats.Replay++
		}
		stats.Frames += int64(rec.Frames)
		capture += rec.Duration
		stats.ByOutcome[rec.Outcome]++
		if rec.ExportKind != "" {
			stats.ByExportKind[rec.ExportKind]++
		}
		if rec.Day != "" {
			if stats.FirstDay == "" || rec.Day < stats.FirstDay {
				stats.FirstDay = rec.Day
			}
			if rec.Day > stats.LastDay {
				stats.LastDay = rec.Day
			}
		}
	}
	stats.CaptureTime = capture.Round(time.Second).String()
	return stats
}
