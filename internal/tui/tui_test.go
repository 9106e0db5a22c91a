package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fakeyudi/droidrec/internal/session"
	"github.com/fakeyudi/droidrec/internal/synth"
)

func sampleSession() *session.Session {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	stop := start.Add(90 * time.Second)
	s := &session.Session{
		ID:        "0b6c",
		StartTime: start,
		StopTime:  &stop,
		APK:       "notes.apk",
		Package:   "com.example.notes",
		Launcher:  "com.example.notes.NotesList",
	}
	for _, l := range []string{"click(New)", "edit(0, 'milk')", "sofar add_note", "back", "finish"} {
		s.Append(l, start)
	}
	return s
}

func sized(m Model) Model {
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return next.(Model)
}

func press(m Model, key string) Model {
	var msg tea.KeyMsg
	switch key {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	next, _ := m.Update(msg)
	return next.(Model)
}

func TestFromSession(t *testing.T) {
	d := FromSession(sampleSession())
	if len(d.Entries) != 5 {
		t.Errorf("entries: want 5, got %d", len(d.Entries))
	}
	if len(d.Segments) != 1 || d.Segments[0].Label != "add_note" {
		t.Errorf("segments: got %+v", d.Segments)
	}
}

func TestFromModuleRebuildsJournal(t *testing.T) {
	d := FromModule(&synth.Module{
		Package: "a.b",
		Segments: []synth.Segment{
			{Label: "one", Lines: []string{"back"}},
			{Label: "two", Lines: []string{"menu", "up"}},
		},
	})
	var raws []string
	for _, e := range d.Entries {
		raws = append(raws, e.Raw)
	}
	if got := strings.Join(raws, ","); got != "back,sofar one,menu,up,sofar two" {
		t.Errorf("journal: got %q", got)
	}
}

func TestViewSwitchesTabs(t *testing.T) {
	m := sized(New(FromSession(sampleSession()), "/tmp/0b6c.json"))

	if out := m.View(); !strings.Contains(out, "com.example.notes.NotesList") || !strings.Contains(out, "0b6c.json") {
		t.Errorf("summary tab missing fields:\n%s", out)
	}

	m = press(m, "2")
	if m.activeTab != tabSegments {
		t.Fatalf("want segments tab, got %d", m.activeTab)
	}
	if strings.Contains(m.View(), "edit(0, 'milk')") {
		t.Error("segment lines must stay collapsed until selected")
	}
	m = press(m, "enter")
	if !strings.Contains(m.View(), "edit(0, 'milk')") {
		t.Errorf("expanded segment should list its lines:\n%s", m.View())
	}

	m = press(m, "3")
	if out := m.View(); !strings.Contains(out, "finish") || !strings.Contains(out, "oldest first") {
		t.Errorf("journal tab:\n%s", out)
	}
	m = press(m, "s")
	if !strings.Contains(m.View(), "newest first") {
		t.Error("s should flip the journal order")
	}
}

func TestViewBeforeResize(t *testing.T) {
	m := New(&Document{}, "x.json")
	if m.View() != "Loading…" {
		t.Errorf("got %q", m.View())
	}
}
