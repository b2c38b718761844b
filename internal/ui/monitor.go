package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/oscquery/pkg/oscquery"
)

// Messages fed into the monitor by the event subscribers
type (
	PeerFoundMsg struct{ Peer oscquery.PeerFound }
	SnapshotMsg  struct{ Snapshot *oscquery.Snapshot }
)

type refreshDoneMsg struct{ err error }

// monitorKeyMap defines key bindings for the monitor screen
type monitorKeyMap struct {
	Refresh key.Binding
	Quit    key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k monitorKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Refresh, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k monitorKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Refresh, k.Quit}}
}

// MonitorConfig describes the local service shown in the header
type MonitorConfig struct {
	ServiceName string
	HTTPPort    uint16
	OSCPort     uint16

	// Refresh is called when the user presses r; nil disables the key
	Refresh func(ctx context.Context) error
}

// MonitorModel shows the negotiated peer and its latest parameters
type MonitorModel struct {
	config MonitorConfig

	peer       *oscquery.PeerFound
	snapshot   *oscquery.Snapshot
	updates    int
	updatedAt  time.Time
	refreshing bool
	lastErr    error

	Width  int
	Height int

	spinner spinner.Model
	help    help.Model
	keys    monitorKeyMap
	now     func() time.Time
}

// NewMonitorModel creates the monitor in its waiting state
func NewMonitorModel(config MonitorConfig) MonitorModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = WaitingStyle

	width, height := GetTerminalSize()
	return MonitorModel{
		config:  config,
		Width:   width,
		Height:  height,
		spinner: s,
		help:    help.New(),
		keys: monitorKeyMap{
			Refresh: key.NewBinding(
				key.WithKeys("r"),
				key.WithHelp("r", "refresh"),
			),
			Quit: key.NewBinding(
				key.WithKeys("q", "ctrl+c"),
				key.WithHelp("q", "quit"),
			),
		},
		now: time.Now,
	}
}

// Init implements tea.Model
func (m MonitorModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model
func (m MonitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Refresh):
			if m.refreshing || m.config.Refresh == nil || m.peer == nil {
				return m, nil
			}
			m.refreshing = true
			return m, refreshCmd(m.config.Refresh)
		}

	case tea.WindowSizeMsg:
		m.Width = clampWidth(msg.Width)
		m.Height = msg.Height
		m.help.Width = m.Width

	case PeerFoundMsg:
		peer := msg.Peer
		m.peer = &peer
		m.snapshot = nil
		m.lastErr = nil

	case SnapshotMsg:
		// a late snapshot of a replaced peer is not shown
		if m.peer != nil && msg.Snapshot.Peer != m.peer.HTTP {
			return m, nil
		}
		m.snapshot = msg.Snapshot
		m.updates++
		m.updatedAt = m.now()

	case refreshDoneMsg:
		m.refreshing = false
		m.lastErr = msg.err

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func refreshCmd(refresh func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return refreshDoneMsg{err: refresh(context.Background())}
	}
}

// View implements tea.Model
func (m MonitorModel) View() string {
	header := NewHeader("OSCQuery Monitor", "",
		Param{Key: "Service", Value: m.config.ServiceName},
		Param{Key: "HTTP port", Value: fmt.Sprint(m.config.HTTPPort)},
		Param{Key: "OSC port", Value: fmt.Sprint(m.config.OSCPort)},
	).SetWidth(m.Width).Render()

	sections := []string{header, "", m.peerView(), ""}
	if m.peer != nil {
		sections = append(sections, m.parametersView(), "")
	}
	if m.lastErr != nil {
		sections = append(sections, "  "+ErrorMessageStyle.Render("Refresh failed: "+m.lastErr.Error()), "")
	}
	sections = append(sections, HelpStyle.Render(m.help.View(m.keys)))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m MonitorModel) peerView() string {
	if m.peer == nil {
		return "  " + m.spinner.View() + WaitingStyle.Render(" Waiting for a peer...")
	}

	lines := []string{
		"  " + PeerConnectedStyle.Render(PeerMarker+" "+m.peer.Instance),
		HeaderParamKeyStyle.Render("HTTP:") + " " + HeaderParamValueStyle.Render(m.peer.HTTP.String()),
		HeaderParamKeyStyle.Render("OSC:") + " " + HeaderParamValueStyle.Render(m.peer.OSC.String()),
	}
	return strings.Join(lines, "\n")
}

func (m MonitorModel) parametersView() string {
	if m.snapshot == nil {
		status := "  " + m.spinner.View() + WaitingStyle.Render(" Reading parameters...")
		return status
	}

	title := fmt.Sprintf("Parameters (%d)", len(m.snapshot.Parameters))
	if m.snapshot.AvatarID != "" {
		title += "  " + m.snapshot.AvatarID
	}
	status := fmt.Sprintf("updated %s, %d updates", m.updatedAt.Format("15:04:05"), m.updates)
	if m.refreshing {
		status = "refreshing..."
	}
	lines := []string{SectionTitleStyle.Render(title) + "  " + MutedStyle.Render(status)}

	names := m.snapshot.Names()
	// header, peer and help take about fourteen lines
	maxRows := m.Height - 14
	if maxRows < 5 {
		maxRows = 5
	}
	for i, name := range names {
		if i == maxRows {
			lines = append(lines, MutedStyle.Render(fmt.Sprintf("    ... %d more", len(names)-maxRows)))
			break
		}
		lines = append(lines, FormatParameter(name, m.snapshot.Parameters[name]))
	}
	return strings.Join(lines, "\n")
}

// Monitor is a running full screen monitor program
type Monitor struct {
	ctx     context.Context
	program *tea.Program
}

// NewMonitor prepares model to run full screen until the user quits or ctx
// is done.
func NewMonitor(ctx context.Context, model MonitorModel) *Monitor {
	return &Monitor{
		ctx:     ctx,
		program: tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)),
	}
}

// Send delivers msg to the program. It blocks until the program reads it and
// returns immediately once the program has exited.
func (m *Monitor) Send(msg tea.Msg) {
	m.program.Send(msg)
}

// Run blocks until the program exits. Cancellation of the context is not an
// error.
func (m *Monitor) Run() error {
	_, err := m.program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && m.ctx.Err() != nil {
		return nil
	}
	return err
}
