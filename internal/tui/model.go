// Package tui renders a live view of a watch session in the terminal.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/vburojevic/dunehmr/internal/bridge"
	"github.com/vburojevic/dunehmr/internal/diagnostic"
	"github.com/vburojevic/dunehmr/internal/domain"
)

const maxRecent = 8

// SnapshotMsg carries bridge state into the program
type SnapshotMsg bridge.Snapshot

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	dimStyle   = lipgloss.NewStyle().Faint(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	frameStyle = lipgloss.NewStyle().PaddingLeft(2)
)

// Model is the bubbletea model for the ui command
type Model struct {
	title   string
	plugin  string
	spinner spinner.Model
	snap    bridge.Snapshot
	seen    bool
	recent  []string
	width   int
}

// New creates a model; title is usually the project root
func New(title, plugin string) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	if plugin == "" {
		plugin = "dunehmr"
	}
	return Model{title: title, plugin: plugin, spinner: sp, width: 80}
}

func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case SnapshotMsg:
		s := bridge.Snapshot(msg)
		if s.Last != "" && s.Last != m.snap.Last {
			m.recent = append(m.recent, s.Last)
			if len(m.recent) > maxRecent {
				m.recent = m.recent[len(m.recent)-maxRecent:]
			}
		}
		m.snap = s
		m.seen = true
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "c":
			m.recent = nil
		}
		return m, nil

	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// Building reports whether the daemon is mid-build or not yet connected
func (m Model) Building() bool {
	return !m.seen || m.snap.State != "polling" || m.snap.Progress.State == domain.ProgressInProgress
}

func (m Model) View() string {
	var b strings.Builder

	header := fmt.Sprintf("%s %s", m.plugin, m.title)
	if m.Building() {
		header = m.spinner.View() + " " + header
	}
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n\n")

	if r := m.snap.CurrentError; r != nil {
		b.WriteString(errStyle.Render("error"))
		b.WriteString("\n")
		b.WriteString(frameStyle.Render(ansi.Strip(diagnostic.Pretty(*r, m.plugin))))
		b.WriteString("\n\n")
	} else if m.seen {
		b.WriteString(okStyle.Render("no errors"))
		b.WriteString("\n\n")
	}

	if len(m.recent) > 0 {
		b.WriteString(dimStyle.Render("recent"))
		b.WriteString("\n")
		for _, line := range m.recent {
			b.WriteString("  ")
			b.WriteString(truncate(line, m.width-2))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(dimStyle.Render("q quit • c clear"))
	return b.String()
}

func (m Model) statusLine() string {
	if !m.seen {
		return dimStyle.Render("connecting to dune...")
	}
	s := m.snap
	parts := []string{s.State}
	switch s.Progress.State {
	case domain.ProgressInProgress:
		parts = append(parts, fmt.Sprintf("building %d/%d", s.Progress.Complete, s.Progress.Complete+s.Progress.Remaining))
	case domain.ProgressFailed:
		parts = append(parts, warnStyle.Render("build failed"))
	case "":
	default:
		parts = append(parts, string(s.Progress.State))
	}
	parts = append(parts,
		fmt.Sprintf("builds %d", s.Stats.Builds),
		fmt.Sprintf("hmr %d", s.Stats.HotUpdates),
		fmt.Sprintf("reloads %d", s.Stats.FullReloads),
		fmt.Sprintf("clients %d", s.Clients),
	)
	return dimStyle.Render(strings.Join(parts, " · "))
}

func truncate(s string, width int) string {
	if width <= 0 || ansi.StringWidth(s) <= width {
		return s
	}
	return ansi.Truncate(s, width, "…")
}
