// Package tui provides a Bubble Tea TUI for browsing recorded sessions and
// generated test files.
package tui

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fakeyudi/droidrec/internal/command"
	"github.com/fakeyudi/droidrec/internal/session"
	"github.com/fakeyudi/droidrec/internal/synth"
)

// ── Styles ────────────

var (
	// Title bar at the very top
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 2)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245")).
				Background(lipgloss.Color("235")).
				Padding(0, 1)

	tabSepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("238")).
			Background(lipgloss.Color("235"))

	sectionHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	timeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("178"))

	kindCmdStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	kindCheckpointStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	kindFinishStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("245")).
			Padding(0, 1)

	// Selected row in the Segments list
	selectedRowStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("237"))
)

// ── Document ────────────

// Entry is one journal line as shown in the Journal tab.
type Entry struct {
	Seq  int
	Raw  string
	Time time.Time // zero when read back from a test file
}

// Document is what the viewer displays: either a session journal or a
// generated test file.
type Document struct {
	Kind     string // "session" or "test file"
	Package  string
	Launcher string
	Fields   [][2]string // extra Summary rows
	Entries  []Entry
	Segments []synth.Segment
}

// FromSession builds a Document from a recorded journal.
func FromSession(s *session.Session) *Document {
	d := &Document{
		Kind:     "session",
		Package:  s.Package,
		Launcher: s.Launcher,
		Segments: synth.Segments(s.Lines()),
	}
	d.Fields = append(d.Fields, [2]string{"Session:", s.ID}, [2]string{"APK:", s.APK})
	if s.Device != "" {
		d.Fields = append(d.Fields, [2]string{"Device:", s.Device})
	}
	d.Fields = append(d.Fields, [2]string{"Started:", s.StartTime.Format("2006-01-02 15:04:05 MST")})
	if s.StopTime != nil {
		d.Fields = append(d.Fields,
			[2]string{"Stopped:", s.StopTime.Format("2006-01-02 15:04:05 MST")},
			[2]string{"Duration:", s.StopTime.Sub(s.StartTime).Round(time.Second).String()},
		)
	} else {
		d.Fields = append(d.Fields, [2]string{"Stopped:", "(still recording)"})
	}
	for _, r := range s.Records {
		d.Entries = append(d.Entries, Entry{Seq: r.Seq, Raw: r.Raw, Time: r.Time})
	}
	return d
}

// FromModule builds a Document from a parsed test file. The journal is
// rebuilt as each segment followed by its checkpoint.
func FromModule(m *synth.Module) *Document {
	d := &Document{
		Kind:     "test file",
		Package:  m.Package,
		Launcher: m.Launcher,
		Segments: m.Segments,
	}
	seq := 0
	for _, seg := range m.Segments {
		for _, l := range seg.Lines {
			seq++
			d.Entries = append(d.Entries, Entry{Seq: seq, Raw: l})
		}
		seq++
		d.Entries = append(d.Entries, Entry{Seq: seq, Raw: command.Checkpoint + " " + seg.Label})
	}
	return d
}

// ── Tab definitions ─────────────────

type tabID int

const (
	tabSummary tabID = iota
	tabSegments
	tabJournal
	tabCount
)

var tabNames = [tabCount]string{"Summary", "Segments", "Journal"}

// ── Model ────────────────────

// Model is the root Bubble Tea model for the TUI.
type Model struct {
	doc       *Document
	filename  string
	activeTab tabID
	viewports [tabCount]viewport.Model
	width     int
	height    int
	ready     bool
	sortAsc   bool
	// Segments tab: cursor position and expanded set
	segCursor int
	expanded  map[int]bool
}

// New creates a new TUI model for doc read from filename.
func New(doc *Document, filename string) Model {
	return Model{
		doc:      doc,
		filename: filepath.Base(filename),
		sortAsc:  true,
		expanded: make(map[int]bool),
	}
}

// ── Bubble Tea interface ───────────────

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab", "l", "right":
			m.activeTab = (m.activeTab + 1) % tabCount
		case "shift+tab", "h", "left":
			m.activeTab = (m.activeTab - 1 + tabCount) % tabCount
		case "1", "2", "3":
			m.activeTab = tabID(msg.String()[0] - '1')
		case "s":
			if m.activeTab == tabJournal {
				m.sortAsc = !m.sortAsc
				m.rebuild(tabJournal)
				m.viewports[tabJournal].GotoTop()
			}
		case "up", "k":
			if m.activeTab == tabSegments && m.segCursor > 0 {
				m.segCursor--
				m.rebuild(tabSegments)
				return m, nil
			}
		case "down", "j":
			if m.activeTab == tabSegments && m.segCursor < len(m.doc.Segments)-1 {
				m.segCursor++
				m.rebuild(tabSegments)
				return m, nil
			}
		case "enter", " ":
			if m.activeTab == tabSegments && len(m.doc.Segments) > 0 {
				if m.expanded[m.segCursor] {
					delete(m.expanded, m.segCursor)
				} else {
					m.expanded[m.segCursor] = true
				}
				m.rebuild(tabSegments)
				return m, nil
			}
		}
		var cmd tea.Cmd
		m.viewports[m.activeTab], cmd = m.viewports[m.activeTab].Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.initViewports()
		return m, nil
	}
	return m, nil
}

func (m Model) View() string {
	if !m.ready {
		return "Loading…"
	}

	title := titleStyle.Width(m.width).Render("  droidrec  " + m.filename)

	var tabParts []string
	for i := tabID(0); i < tabCount; i++ {
		label := fmt.Sprintf(" %d %s ", i+1, tabNames[i])
		if i == m.activeTab {
			tabParts = append(tabParts, activeTabStyle.Render(label))
		} else {
			tabParts = append(tabParts, inactiveTabStyle.Render(label))
		}
		if i < tabCount-1 {
			tabParts = append(tabParts, tabSepStyle.Render("│"))
		}
	}
	tabRow := lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		Width(m.width).
		Render(lipgloss.JoinHorizontal(lipgloss.Top, tabParts...))

	content := m.viewports[m.activeTab].View()

	hint := "  ←/→ tab  ↑/↓ scroll  1-3 jump  q quit"
	switch m.activeTab {
	case tabJournal:
		dir := "oldest first"
		if !m.sortAsc {
			dir = "newest first"
		}
		hint += "  s sort (" + dir + ")"
	case tabSegments:
		hint += "  ↑/↓ select  enter expand/collapse"
	}
	pct := fmt.Sprintf("%3.0f%%", m.viewports[m.activeTab].ScrollPercent()*100)
	pad := m.width - lipgloss.Width(hint) - len(pct) - 2
	if pad < 1 {
		pad = 1
	}
	statusBar := statusBarStyle.Width(m.width).Render(
		hint + strings.Repeat(" ", pad) + pct,
	)

	return lipgloss.JoinVertical(lipgloss.Left, title, tabRow, content, statusBar)
}

// ── Viewport management ───────────────────────────────────────────────────────

func (m *Model) initViewports() {
	// title(1) + tabRow(1) + statusBar(1) = 3 fixed rows
	vpHeight := m.height - 3
	if vpHeight < 1 {
		vpHeight = 1
	}
	for i := tabID(0); i < tabCount; i++ {
		vp := viewport.New(m.width, vpHeight)
		vp.SetContent(m.renderTab(i))
		m.viewports[i] = vp
	}
}

func (m *Model) rebuild(t tabID) {
	m.viewports[t].SetContent(m.renderTab(t))
}

// ── Tab renderers ─────────────────────────────────────────────────────────────

func (m *Model) renderTab(t tabID) string {
	switch t {
	case tabSummary:
		return m.renderSummary()
	case tabSegments:
		return m.renderSegments()
	case tabJournal:
		return m.renderJournal()
	}
	return ""
}

func heading(s string) string {
	return "\n" + sectionHeader.Render("  "+s) + "\n\n"
}

func (m *Model) renderSummary() string {
	var sb strings.Builder
	sb.WriteString(heading("Recording (" + m.doc.Kind + ")"))

	row := func(label, value string) {
		sb.WriteString(labelStyle.Render(fmt.Sprintf("  %-14s", label)) + "  " + value + "\n")
	}
	row("Package:", m.doc.Package)
	row("Launcher:", m.doc.Launcher)
	for _, f := range m.doc.Fields {
		row(f[0], f[1])
	}

	sb.WriteString("\n")
	sb.WriteString(heading("Counts"))
	row("Lines:", fmt.Sprintf("%d", len(m.doc.Entries)))
	row("Tests:", fmt.Sprintf("%d", len(m.doc.Segments)))
	return sb.String()
}

func (m *Model) renderSegments() string {
	var sb strings.Builder
	sb.WriteString(heading(fmt.Sprintf("Segments (%d)", len(m.doc.Segments))))
	if len(m.doc.Segments) == 0 {
		sb.WriteString(dimStyle.Render("  (no checkpoints; nothing becomes a test)") + "\n")
		return sb.String()
	}
	for i, seg := range m.doc.Segments {
		toggle := dimStyle.Render("  ▶ ")
		if m.expanded[i] {
			toggle = dimStyle.Render("  ▼ ")
		}
		count := dimStyle.Render(fmt.Sprintf("(%d lines)", len(seg.Lines)))
		row := fmt.Sprintf("%s%s  %s", toggle, kindCheckpointStyle.Render(seg.Label), count)
		if i == m.segCursor {
			row = selectedRowStyle.Width(m.width - 2).Render(row)
		}
		sb.WriteString(row + "\n")

		if m.expanded[i] {
			for n, l := range seg.Lines {
				sb.WriteString(dimStyle.Render(fmt.Sprintf("      %3d.", n+1)) + "  " + l + "\n")
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m *Model) renderJournal() string {
	var sb strings.Builder

	dir := "oldest first"
	if !m.sortAsc {
		dir = "newest first"
	}
	sb.WriteString(heading(fmt.Sprintf("Journal (%s)", dir)))

	entries := make([]Entry, len(m.doc.Entries))
	copy(entries, m.doc.Entries)
	if m.sortAsc {
		sort.Slice(entries, func(i, j int) bool { return entries[i].Seq < entries[j].Seq })
	} else {
		sort.Slice(entries, func(i, j int) bool { return entries[i].Seq > entries[j].Seq })
	}

	if len(entries) == 0 {
		sb.WriteString(dimStyle.Render("  (nothing recorded)") + "\n")
		return sb.String()
	}

	for _, e := range entries {
		num := dimStyle.Render(fmt.Sprintf("  %3d.", e.Seq))
		ts := ""
		if !e.Time.IsZero() {
			ts = " " + timeStyle.Render(e.Time.Format("15:04:05"))
		}
		sb.WriteString(num + ts + "  " + badge(e.Raw) + "  " + e.Raw + "\n")
	}
	return sb.String()
}

// badge labels a journal line by its role in the session.
func badge(raw string) string {
	switch command.Token(raw) {
	case command.Checkpoint:
		return kindCheckpointStyle.Render(fmt.Sprintf("%-5s", "TEST"))
	case command.Finish:
		return kindFinishStyle.Render(fmt.Sprintf("%-5s", "END"))
	}
	return kindCmdStyle.Render(fmt.Sprintf("%-5s", "CMD"))
}

// Run starts the TUI for doc.
func Run(doc *Document, filename string) error {
	p := tea.NewProgram(New(doc, filename), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
