package render

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pithecene-io/skelcap/cli/reader"
	"github.com/pithecene-io/skelcap/cli/tui"
)

// namesPerLine is how many joint names share one table line.
const namesPerLine = 6

// table collects cells and aligns them on output.
type table struct {
	rows  [][]string
	empty bool
}

func (t *table) row(cells ...string) {
	t.rows = append(t.rows, cells)
}

func (t *table) field(label, value string) {
	t.row(label+":", value)
}

func (t *table) writeTo(w io.Writer) error {
	if t.empty {
		_, err := fmt.Fprintln(w, "(no results)")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, cells := range t.rows {
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

// domainTable lays out the session and export results. It reports false
// for any other type.
func (r *Renderer) domainTable(data any) (*table, bool) {
	switch d := data.(type) {
	case *reader.ExportSummary:
		return exportTable(d), true
	case []reader.SessionItem:
		return r.sessionListTable(d), true
	case *reader.SessionDetail:
		return r.sessionDetailTable(d), true
	case *reader.SessionStats:
		return r.statsTable(d), true
	}
	return nil, false
}

func exportTable(s *reader.ExportSummary) *table {
	t := &table{}
	t.field("path", s.Path)
	t.field("format", s.Format)
	t.field("animation", s.Animation)
	t.field("joints", strconv.Itoa(s.Joints))
	t.field("curves", strconv.Itoa(s.Curves))
	t.field("keys", strconv.Itoa(s.Keys))
	t.field("duration", formatSeconds(s.Duration))
	t.field("floor", yesNo(s.Floor))
	for _, b := range s.Buffers {
		t.field("buffer", b)
	}
	for i := 0; i < len(s.JointNames); i += namesPerLine {
		label := ""
		if i == 0 {
			label = "joint names:"
		}
		end := min(i+namesPerLine, len(s.JointNames))
		t.row(label, strings.Join(s.JointNames[i:end], ", "))
	}
	return t
}

func (r *Renderer) sessionListTable(items []reader.SessionItem) *table {
	if len(items) == 0 {
		return &table{empty: true}
	}
	t := &table{}
	t.row("SESSION", "MODE", "DAY", "OUTCOME", "KIND", "FRAMES", "DURATION", "STARTED")
	for _, it := range items {
		t.row(
			it.SessionID,
			it.Mode,
			it.Day,
			r.outcome(it.Outcome),
			it.ExportKind,
			strconv.Itoa(it.Frames),
			formatMillis(it.DurationMs),
			formatTime(it.StartedAt),
		)
	}
	return t
}

func (r *Renderer) sessionDetailTable(d *reader.SessionDetail) *table {
	t := &table{}
	t.field("session", d.SessionID)
	t.field("mode", d.Mode)
	t.field("day", d.Day)
	t.field("outcome", r.outcome(d.Outcome))
	if d.StopReason != "" {
		t.field("stopped", d.StopReason)
	}
	t.field("output", d.OutputPath)
	t.field("kind", d.ExportKind)
	t.field("frames", fmt.Sprintf("%d (%d polls)", d.Frames, d.Ticks))
	t.field("duration", formatMillis(d.DurationMs))
	t.field("started", formatTime(d.StartedAt))
	t.field("completed", formatTime(d.CompletedAt))
	for _, f := range d.Files {
		t.field("file", f)
	}
	for _, msg := range d.Report {
		t.field("report", msg)
	}
	return t
}

func (r *Renderer) statsTable(s *reader.SessionStats) *table {
	t := &table{}
	t.field("sessions", fmt.Sprintf("%d (%d succeeded, %d failed)", s.Total, s.Succeeded, s.Failed))
	t.field("live", strconv.Itoa(s.Live))
	t.field("replay", strconv.Itoa(s.Replay))
	t.field("frames", strconv.FormatInt(s.Frames, 10))
	t.field("capture time", s.CaptureTime)
	if s.FirstDay != "" {
		t.field("days", s.FirstDay+" .. "+s.LastDay)
	}
	for _, k := range sortedCounts(s.ByOutcome) {
		t.row("  "+r.outcome(k), strconv.Itoa(s.ByOutcome[k]))
	}
	for _, k := range sortedCounts(s.ByExportKind) {
		t.row("  "+k, strconv.Itoa(s.ByExportKind[k]))
	}
	return t
}

// outcome colours an outcome status unless --no-color is set.
func (r *Renderer) outcome(status string) string {
	if r.noColor || status == "" {
		return status
	}
	return tui.StateStyle(status).Render(status)
}

func sortedCounts(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64) + "s"
}

func formatMillis(ms int64) string {
	return (time.Duration(ms) * time.Millisecond).String()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
