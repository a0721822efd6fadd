package monitor

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"objectwatch/internal/status"
)

// teaProgram abstracts bubbletea.Program for testing.
type teaProgram interface {
	Send(tea.Msg)
}

// logMsg carries a log line for the viewport.
type logMsg struct{ line string }

// statusMsg carries the latest snapshot for the instance table.
type statusMsg struct{ status.Snapshot }

const maxLogLines = 500

// TUIWriter renders snapshots and alerts using a bubbletea TUI.
type TUIWriter struct {
	program    teaProgram
	done       chan struct{}
	sendSignal atomic.Bool
	lastMsg    string
}

// NewTUIWriter starts a bubbletea program and returns a TUIWriter. Quitting
// the UI interrupts the process so the monitor shuts down with it.
func NewTUIWriter(targetClass string) *TUIWriter {
	w := &TUIWriter{done: make(chan struct{})}
	w.sendSignal.Store(true)
	p := tea.NewProgram(newTUIModel(targetClass), tea.WithAltScreen())
	w.program = p
	go func() {
		_, _ = p.Run()
		close(w.done)
		if w.sendSignal.Load() {
			if proc, err := os.FindProcess(os.Getpid()); err == nil {
				_ = proc.Signal(os.Interrupt)
			}
		}
	}()
	return w
}

func (w *TUIWriter) Name() string { return "tui" }

// WriteStatus updates the instance table and logs status message changes.
func (w *TUIWriter) WriteStatus(s status.Snapshot) error {
	w.program.Send(statusMsg{s})
	if s.StatusMessage != w.lastMsg {
		w.lastMsg = s.StatusMessage
		w.program.Send(logMsg{line: fmt.Sprintf("%s[%s]%s frame=%d %s",
			colorGray, s.Timestamp.Format(time.RFC3339), colorReset, s.Frame, s.StatusMessage)})
	}
	return nil
}

// WriteAlert adds a highlighted line to the log.
func (w *TUIWriter) WriteAlert(a status.AlertRow) error {
	w.program.Send(logMsg{line: fmt.Sprintf("%s[%s]%s %sALERT %s%s %s",
		colorGray, a.Timestamp.Format(time.RFC3339), colorReset,
		colorRed, a.Kind, colorReset, a)})
	return nil
}

// Close shuts down the TUI program and waits for cleanup.
func (w *TUIWriter) Close() error {
	w.sendSignal.Store(false)
	if w.program != nil {
		w.program.Send(tea.Quit())
	}
	if w.done != nil {
		<-w.done
	}
	return nil
}

type tuiModel struct {
	target       string
	table        table.Model
	vp           viewport.Model
	logs         []string
	snap         status.Snapshot
	wrap         bool
	autoscroll   bool
	help         bool
	header       string
	headerHeight int
	height       int
}

func newTUIModel(targetClass string) tuiModel {
	cols := []table.Column{
		{Title: "ID", Width: 4},
		{Title: "State", Width: 16},
		{Title: "Present", Width: 8},
		{Title: "Position", Width: 14},
		{Title: "Missing (s)", Width: 11},
		{Title: "Frames", Width: 8},
	}
	t := table.New(table.WithColumns(cols), table.WithHeight(2))
	m := tuiModel{
		target:     targetClass,
		table:      t,
		vp:         viewport.New(0, 0),
		autoscroll: true,
	}
	m.header = m.renderHeader()
	m.headerHeight = lipgloss.Height(m.header)
	return m
}

func (m tuiModel) Init() tea.Cmd { return nil }

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.table.SetWidth(msg.Width)
		m.vp.Width = msg.Width
		m.height = msg.Height
		m.header = m.renderHeader()
		m.headerHeight = lipgloss.Height(m.header)
		m.updateViewportHeight()
		m.refreshViewport()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "w":
			m.wrap = !m.wrap
			m.refreshViewport()
		case "s":
			m.autoscroll = !m.autoscroll
			if m.autoscroll {
				m.vp.GotoBottom()
			}
		case "h", "?":
			m.help = !m.help
		default:
			var cmd tea.Cmd
			m.vp, cmd = m.vp.Update(msg)
			return m, cmd
		}
	case logMsg:
		m.logs = append(m.logs, msg.line)
		if len(m.logs) > maxLogLines {
			m.logs = m.logs[len(m.logs)-maxLogLines:]
		}
		m.refreshViewport()
	case statusMsg:
		m.snap = msg.Snapshot
		m.table.SetRows(instanceRows(msg.Snapshot))
		m.table.SetHeight(max(len(msg.Instances), 1) + 1)
		m.header = m.renderHeader()
		m.headerHeight = lipgloss.Height(m.header)
		m.updateViewportHeight()
	}
	return m, nil
}

func instanceRows(s status.Snapshot) []table.Row {
	rows := make([]table.Row, 0, len(s.Instances))
	for _, inst := range s.Instances {
		pos := "-"
		if inst.Position != nil {
			pos = fmt.Sprintf("%.0f,%.0f", inst.Position.X, inst.Position.Y)
		}
		missing := "-"
		if !inst.Present && inst.LastSeen != nil {
			missing = strconv.FormatFloat(inst.MissingForSeconds, 'f', 1, 64)
		}
		present := "no"
		if inst.Present {
			present = "yes"
		}
		rows = append(rows, table.Row{
			strconv.Itoa(inst.ID), inst.State, present, pos, missing, strconv.Itoa(inst.FramesSeen),
		})
	}
	return rows
}

func (m *tuiModel) updateViewportHeight() {
	bottomHeight := lipgloss.Height(m.renderBottom())
	h := m.height - m.headerHeight - bottomHeight - 2
	if h < 0 {
		h = 0
	}
	m.vp.Height = h
	if m.autoscroll {
		m.vp.GotoBottom()
	}
}

func (m *tuiModel) refreshViewport() {
	lines := make([]string, 0, len(m.logs))
	for _, l := range m.logs {
		if m.wrap {
			lines = append(lines, wordwrap.String(l, m.vp.Width))
		} else {
			lines = append(lines, l)
		}
	}
	m.vp.SetContent(strings.Join(lines, "\n"))
	if m.autoscroll {
		m.vp.GotoBottom()
	}
}

func (m tuiModel) View() string {
	if m.help {
		return m.renderHelp()
	}
	divider := strings.Repeat("─", m.vp.Width)
	return strings.Join([]string{m.header, divider, m.vp.View(), divider, m.renderBottom()}, "\n")
}

func (m tuiModel) renderHeader() string {
	color := lipgloss.Color("10")
	switch {
	case m.snap.MissingCount > 0:
		color = lipgloss.Color("9")
	case m.snap.MovementDetected:
		color = lipgloss.Color("11")
	case len(m.snap.Instances) == 0:
		color = lipgloss.Color("8")
	}
	msg := m.snap.StatusMessage
	if msg == "" {
		msg = status.Placeholder(m.target).StatusMessage
	}
	title := lipgloss.NewStyle().Bold(true).Foreground(color).Render(msg)
	meta := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(
		fmt.Sprintf("target=%s frame=%d capacity=%d", m.target, m.snap.Frame, m.snap.TotalCapacity))
	return lipgloss.JoinVertical(lipgloss.Left, title+"  "+meta, m.table.View())
}

func (m tuiModel) renderBottom() string {
	indicator := func(on bool) string {
		c := lipgloss.Color("9")
		if on {
			c = lipgloss.Color("10")
		}
		return lipgloss.NewStyle().Foreground(c).Render("●")
	}
	return fmt.Sprintf("%s wrap (w)  %s autoscroll (s)  help (h)  quit (q)",
		indicator(m.wrap), indicator(m.autoscroll))
}

func (m tuiModel) renderHelp() string {
	return strings.Join([]string{
		"Keys:",
		"  w        toggle line wrap",
		"  s        toggle autoscroll",
		"  ↑/↓      scroll log",
		"  h or ?   toggle this help",
		"  q        quit",
	}, "\n")
}
