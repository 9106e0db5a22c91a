package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/fakeyudi/droidrec/internal/session"
	"github.com/fakeyudi/droidrec/internal/synth"
	"github.com/fakeyudi/droidrec/internal/tui"
)

// generateDocument produces a populated *tui.Document suitable for testing
// the view command's section ordering.
func generateDocument(t *rapid.T) *tui.Document {
	sec := rapid.Int64Range(1_000_000_000, 1_700_000_000).Draw(t, "unix_sec")
	ts := time.Unix(sec, 0).UTC()

	doc := &tui.Document{
		Kind:     "session",
		Package:  rapid.StringN(1, 40, -1).Draw(t, "package"),
		Launcher: rapid.StringN(1, 40, -1).Draw(t, "launcher"),
	}
	numEntries := rapid.IntRange(0, 6).Draw(t, "num_entries")
	for i := 0; i < numEntries; i++ {
		doc.Entries = append(doc.Entries, tui.Entry{
			Seq:  i + 1,
			Raw:  rapid.StringN(1, 40, -1).Draw(t, "raw"),
			Time: ts.Add(time.Duration(i) * time.Second),
		})
	}
	numSegments := rapid.IntRange(0, 3).Draw(t, "num_segments")
	for i := 0; i < numSegments; i++ {
		doc.Segments = append(doc.Segments, synth.Segment{
			Label: rapid.StringN(1, 20, -1).Draw(t, "label"),
			Lines: rapid.SliceOfN(rapid.StringN(1, 30, -1), 0, 4).Draw(t, "lines"),
		})
	}
	return doc
}

// TestViewNonExistentFile verifies that viewing a missing file returns
// "file not found: <path>".
func TestViewNonExistentFile(t *testing.T) {
	tmp := isolate(t)

	missingPath := filepath.Join(tmp, "does-not-exist.json")

	out, err := executeCommand(rootCmd, "view", "--plain", missingPath)
	if err == nil {
		t.Fatal("expected an error for non-existent file, got nil")
	}
	combined := out + err.Error()
	expected := "file not found: " + missingPath
	if !strings.Contains(combined, expected) {
		t.Errorf("expected error to contain %q, got: %q", expected, combined)
	}
}

// TestViewForeignGoFile verifies that an ordinary Go file is refused.
func TestViewForeignGoFile(t *testing.T) {
	tmp := isolate(t)

	path := filepath.Join(tmp, "main.go")
	if err := os.WriteFile(path, []byte("package main\n\nfunc main() {}\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := executeCommand(rootCmd, "view", "--plain", path)
	if err == nil {
		t.Fatal("expected an error for a foreign Go file, got nil")
	}
	if !strings.Contains(err.Error(), synth.ErrNotGenerated.Error()) {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestViewPlainJournal(t *testing.T) {
	tmp := isolate(t)

	store, err := session.NewStoreAt(tmp)
	if err != nil {
		t.Fatalf("NewStoreAt: %v", err)
	}
	s := &session.Session{
		ID:        "abc",
		StartTime: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		Package:   "com.example.notes",
		Launcher:  "com.example.notes.Main",
	}
	at := s.StartTime
	for _, l := range []string{"click(OK)", "sofar open", "back"} {
		at = at.Add(time.Second)
		s.Append(l, at)
	}
	if err := store.Save(s); err != nil {
		t.Fatalf("Save: %v", err)
	}

	out, err := executeCommand(rootCmd, "view", "--plain", store.Path("abc"))
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	for _, want := range []string{"com.example.notes.Main", "open", "1. [10:00:01] click(OK)", "3. [10:00:03] back"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestViewPlainGeneratedFile(t *testing.T) {
	tmp := isolate(t)

	src, err := synth.Synthesize([]string{"click(OK)", "sofar open"}, "com.example.notes.Main", "com.example.notes")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	path, err := synth.Write(tmp, "com.example.notes", src)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	out, err := executeCommand(rootCmd, "view", "--plain", path)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	for _, want := range []string{"com.example.notes", "open", "click(OK)"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestViewSectionOrder(t *testing.T) {
	sectionHeaders := []string{
		"## Summary",
		"## Segments",
		"## Journal",
	}

	rapid.Check(t, func(rt *rapid.T) {
		doc := generateDocument(rt)

		var buf bytes.Buffer
		printDocument(&buf, doc)
		output := buf.String()

		positions := make([]int, len(sectionHeaders))
		for i, header := range sectionHeaders {
			pos := strings.Index(output, header)
			if pos == -1 {
				rt.Fatalf("section header %q not found in output:\n%s", header, output)
			}
			positions[i] = pos
		}

		for i := 0; i < len(positions)-1; i++ {
			if positions[i] >= positions[i+1] {
				rt.Errorf(
					"section %q (pos %d) does not appear before %q (pos %d) in output:\n%s",
					sectionHeaders[i], positions[i],
					sectionHeaders[i+1], positions[i+1],
					output,
				)
			}
		}
	})
}
