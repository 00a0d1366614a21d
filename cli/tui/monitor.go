package tui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// MonitorProgress is a progress update from a running capture.
type MonitorProgress struct {
	State   string
	Frames  int
	Ticks   int
	Elapsed time.Duration
}

// MonitorDone ends the monitor with the session outcome.
type MonitorDone struct {
	Outcome string
	Frames  int
	Output  string
	Report  []string
}

type stopRequestedMsg struct{}

var monitorKeys = struct {
	Stop key.Binding
	Quit key.Binding
}{
	Stop: key.NewBinding(
		key.WithKeys(" ", "enter", "s"),
		key.WithHelp("space", "end recording"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "end recording"),
	),
}

// MonitorModel shows a live capture and ends it on request.
type MonitorModel struct {
	title    string
	stop     func()
	spinner  spinner.Model
	progress MonitorProgress
	stopping bool
	done     *MonitorDone
}

// NewMonitorModel creates a monitor model. stop is called at most once,
// when the user ends the recording.
func NewMonitorModel(title string, stop func()) MonitorModel {
	return MonitorModel{
		title:    title,
		stop:     stop,
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(RecordingStyle)),
		progress: MonitorProgress{State: "init"},
	}
}

// Init implements tea.Model.
func (m MonitorModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m MonitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, monitorKeys.Stop) || key.Matches(msg, monitorKeys.Quit) {
			return m.requestStop()
		}

	case MonitorProgress:
		m.progress = msg
		return m, nil

	case MonitorDone:
		m.done = &msg
		return m, tea.Quit

	case stopRequestedMsg:
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m MonitorModel) requestStop() (tea.Model, tea.Cmd) {
	if m.stopping || m.done != nil {
		return m, nil
	}
	m.stopping = true
	stop := m.stop
	return m, func() tea.Msg {
		if stop != nil {
			stop()
		}
		return stopRequestedMsg{}
	}
}

// Stopping reports whether the user has ended the recording.
func (m MonitorModel) Stopping() bool {
	return m.stopping
}

// View implements tea.Model.
func (m MonitorModel) View() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render(m.title))
	b.WriteString("\n\n")

	if m.done != nil {
		outcome := StateStyle(m.done.Outcome).Render(m.done.Outcome)
		b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Outcome:"), outcome))
		writeRows(&b, [][]string{
			{"Frames", fmt.Sprintf("%d", m.done.Frames)},
			{"Output", m.done.Output},
		})
		for _, msg := range m.done.Report {
			b.WriteString(fmt.Sprintf("  • %s\n", ErrorStyle.Render(msg)))
		}
		return BoxStyle.Render(b.String()) + "\n"
	}

	status := RecordingStyle.Render("REC")
	if m.stopping || m.progress.State == "draining" {
		status = WarningStyle.Render("finishing")
	}
	b.WriteString(fmt.Sprintf("%s %s\n\n", m.spinner.View(), status))
	writeRows(&b, [][]string{
		{"State", m.progress.State},
		{"Frames", fmt.Sprintf("%d", m.progress.Frames)},
		{"Polls", fmt.Sprintf("%d", m.progress.Ticks)},
		{"Elapsed", m.progress.Elapsed.Truncate(100 * time.Millisecond).String()},
	})

	help := HelpStyle.Render("Press space to end the recording")
	return BoxStyle.Render(b.String()) + "\n" + help
}

// Monitor runs a MonitorModel program in the background.
type Monitor struct {
	program *tea.Program
	exited  chan struct{}
	once    sync.Once
	err     error
}

// StartMonitor starts the monitor program. Progress and Finish may be
// called from any goroutine.
func StartMonitor(title string, stop func(), opts ...tea.ProgramOption) *Monitor {
	m := &Monitor{
		program: tea.NewProgram(NewMonitorModel(title, stop), opts...),
		exited:  make(chan struct{}),
	}
	go func() {
		defer close(m.exited)
		_, m.err = m.program.Run()
	}()
	return m
}

// Progress forwards a progress update to the display.
func (m *Monitor) Progress(p MonitorProgress) {
	m.program.Send(p)
}

// Finish shows the outcome and waits for the program to exit.
func (m *Monitor) Finish(done MonitorDone) error {
	m.once.Do(func() {
		m.program.Send(done)
	})
	<-m.exited
	return m.err
}
