package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoggerWritesJSONWithSession(t *testing.T) {
	dir := t.TempDir()

	l, err := New(dir, "debug")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.WithSession("sess-1").Debug("sent", "cmd", "click")
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "debug.log"))
	if err != nil {
		t.Fatal(err)
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(data))), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v\n%s", err, data)
	}
	if rec["msg"] != "sent" || rec["session_id"] != "sess-1" || rec["cmd"] != "click" {
		t.Errorf("unexpected record: %v", rec)
	}
}

func TestLoggerLevelFilters(t *testing.T) {
	dir := t.TempDir()

	l, err := New(dir, "warn")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Info("dropped")
	l.Warn("kept")
	_ = l.Close()

	data, err := os.ReadFile(filepath.Join(dir, "debug.log"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "dropped") {
		t.Errorf("info record should be filtered at warn level:\n%s", data)
	}
	if !strings.Contains(string(data), "kept") {
		t.Errorf("warn record missing:\n%s", data)
	}
}

func TestNopCloseIsSafe(t *testing.T) {
	l := Nop()
	l.Info("ignored")
	if err := l.Close(); err != nil {
		t.Errorf("Close on Nop: %v", err)
	}
}
