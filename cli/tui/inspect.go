package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/skelcap/cli/reader"
)

// InspectModel is a Bubble Tea model for inspect views.
type InspectModel struct {
	viewType string
	data     any
	width    int
	height   int
	quitting bool
}

// NewInspectModel creates a new inspect model.
func NewInspectModel(viewType string, data any) InspectModel {
	return InspectModel{
		viewType: viewType,
		data:     data,
	}
}

// Init implements tea.Model.
func (m InspectModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m InspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m InspectModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.viewType {
	case ViewInspectExport:
		content = m.renderInspectExport()
	case ViewInspectSession:
		content = m.renderInspectSession()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return content + "\n" + help
}

func (m InspectModel) renderInspectExport() string {
	data, ok := m.data.(*reader.ExportSummary)
	if !ok {
		return "Invalid data type for inspect_export"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Export Details"))
	b.WriteString("\n\n")

	floor := "no"
	if data.Floor {
		floor = "yes"
	}
	rows := [][]string{
		{"Path", data.Path},
		{"Format", data.Format},
		{"Animation", data.Animation},
		{"Joints", fmt.Sprintf("%d", data.Joints)},
		{"Curves", fmt.Sprintf("%d", data.Curves)},
		{"Keys", fmt.Sprintf("%d per curve", data.Keys)},
		{"Duration", fmt.Sprintf("%.3fs", data.Duration)},
	}
	if data.Kind == "fbx" {
		rows = append(rows, []string{"Floor", floor})
	}
	if len(data.Buffers) > 0 {
		rows = append(rows, []string{"Buffers", strings.Join(data.Buffers, ", ")})
	}
	writeRows(&b, rows)

	if len(data.JointNames) > 0 {
		b.WriteString("\n")
		b.WriteString(LabelStyle.Render("Hierarchy:"))
		b.WriteString("\n")
		b.WriteString(ValueStyle.Render(wrapNames(data.JointNames, 4)))
	}

	return BoxStyle.Render(b.String())
}

func (m InspectModel) renderInspectSession() string {
	data, ok := m.data.(*reader.SessionDetail)
	if !ok {
		return "Invalid data type for inspect_session"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Session Details"))
	b.WriteString("\n\n")

	rows := [][]string{
		{"Session ID", data.SessionID},
		{"Mode", data.Mode},
		{"Outcome", data.Outcome},
		{"Output", data.OutputPath},
		{"Export", data.ExportKind},
		{"Stop Reason", data.StopReason},
		{"Frames", fmt.Sprintf("%d (%d polls)", data.Frames, data.Ticks)},
		{"Duration", fmt.Sprintf("%dms", data.DurationMs)},
		{"Started At", data.StartedAt.Format("2006-01-02 15:04:05")},
	}
	for _, row := range rows {
		label := LabelStyle.Render(row[0] + ":")
		value := ValueStyle.Render(row[1])
		if row[0] == "Outcome" {
			value = StateStyle(data.Outcome).Render(row[1])
		}
		b.WriteString(fmt.Sprintf("%s %s\n", label, value))
	}

	if len(data.Report) > 0 {
		b.WriteString("\n")
		b.WriteString(LabelStyle.Render("Report:"))
		b.WriteString("\n")
		for _, msg := range data.Report {
			b.WriteString(fmt.Sprintf("  • %s\n", ErrorStyle.Render(msg)))
		}
	}
	if len(data.Files) > 0 {
		b.WriteString("\n")
		b.WriteString(LabelStyle.Render("Files:"))
		b.WriteString("\n")
		for _, f := range data.Files {
			b.WriteString(fmt.Sprintf("  • %s\n", ValueStyle.Render(f)))
		}
	}

	return BoxStyle.Render(b.String())
}

func writeRows(b *strings.Builder, rows [][]string) {
	for _, row := range rows {
		b.WriteString(fmt.Sprintf("%s %s\n",
			LabelStyle.Render(row[0]+":"),
			ValueStyle.Render(row[1])))
	}
}

// wrapNames lays names out perLine to a line.
func wrapNames(names []string, perLine int) string {
	var lines []string
	for i := 0; i < len(names); i += perLine {
		end := min(i+perLine, len(names))
		lines = append(lines, "  "+strings.Join(names[i:end], ", "))
	}
	return strings.Join(lines, "\n")
}

// keyMap defines key bindings.
type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// RunInspectTUI runs the inspect TUI.
func RunInspectTUI(viewType string, data any) error {
	model := NewInspectModel(viewType, data)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderInspectStatic renders inspect data without full TUI (for fallback).
func RenderInspectStatic(viewType string, data any) string {
	model := NewInspectModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
