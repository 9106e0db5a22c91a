package synth_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pgregory.net/rapid"

	"github.com/fakeyudi/droidrec/internal/synth"
)

func TestSegments(t *testing.T) {
	lines := []string{"click(1)", "edit('x')", "sofar login", "back", "sofar", "menu", "sofar logout", "up"}
	segs := synth.Segments(lines)

	if len(segs) != 2 {
		t.Fatalf("want 2 segments, got %d: %+v", len(segs), segs)
	}
	if segs[0].Label != "login" || strings.Join(segs[0].Lines, "|") != "click(1)|edit('x')" {
		t.Errorf("first segment: got %+v", segs[0])
	}
	// The unlabeled checkpoint swallows "back"; the open tail "up" is dropped.
	if segs[1].Label != "logout" || strings.Join(segs[1].Lines, "|") != "menu" {
		t.Errorf("second segment: got %+v", segs[1])
	}
}

func TestSynthesizeScenario(t *testing.T) {
	src, err := synth.Synthesize(
		[]string{"click(1)", "edit('x')", "sofar foo"},
		"com.example.app.Main", "com.example.app",
	)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	out := string(src)

	for _, want := range []string{
		synth.Header,
		"package com_example_app",
		`launcher   = "com.example.app.Main"`,
		"func Test_foo(t *testing.T) {",
		"d := setup(t)\n\td.Do(`click(1)`)\n\td.Do(`edit('x')`)\n}",
		"func assertDied(",
		"func teardown(",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("generated source missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "sofar") {
		t.Errorf("checkpoint markers must not be replayed:\n%s", out)
	}
}

func TestSynthesizeWithoutCheckpoints(t *testing.T) {
	src, err := synth.Synthesize([]string{"back", "menu"}, "a.B", "a")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if strings.Contains(string(src), "func Test") {
		t.Errorf("no checkpoint means no tests:\n%s", src)
	}
	if !strings.Contains(string(src), "func setup(") {
		t.Errorf("module must still carry its fixture:\n%s", src)
	}
}

func TestLiteralQuoting(t *testing.T) {
	lines := []string{"edit(0, `tick`)", "search(\"a\\tb\")", "sofar q"}
	src, err := synth.Synthesize(lines, "a.B", "a")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if !strings.Contains(string(src), `d.Do("edit(0, `+"`tick`"+`)")`) {
		t.Errorf("backtick line must be double-quoted:\n%s", src)
	}

	m, err := synth.Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(m.Segments) != 1 || strings.Join(m.Segments[0].Lines, "\n") != strings.Join(lines[:2], "\n") {
		t.Errorf("lines not recovered verbatim: %+v", m.Segments)
	}
}

func TestDuplicateLabelsStayDistinct(t *testing.T) {
	src, err := synth.Synthesize([]string{"back", "sofar a", "menu", "sofar a"}, "a.B", "a")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if !strings.Contains(string(src), "func Test_a(") || !strings.Contains(string(src), "func Test_a_2(") {
		t.Errorf("want Test_a and Test_a_2:\n%s", src)
	}
}

func TestIdent(t *testing.T) {
	cases := map[string]string{
		"com.example.app": "com_example_app",
		"Org.Foo-Bar":     "org_foo_bar",
		"9lives.app":      "app_9lives_app",
		"go":              "app_go",
		"":                "app",
	}
	for in, want := range cases {
		if got := synth.Ident(in); got != want {
			t.Errorf("Ident(%q): want %q, got %q", in, want, got)
		}
	}
}

func TestParseRejectsForeignFiles(t *testing.T) {
	if _, err := synth.Parse([]byte("package foo\n")); !errors.Is(err, synth.ErrNotGenerated) {
		t.Errorf("want ErrNotGenerated, got %v", err)
	}
}

func TestWriteOverwrites(t *testing.T) {
	dir := t.TempDir()
	for _, body := range []string{"first", "second"} {
		path, err := synth.Write(dir, "com.example.app", []byte(body))
		if err != nil {
			t.Fatalf("Write: %v", err)
		}
		if want := filepath.Join(dir, "com_example_app", "com_example_app_test.go"); path != want {
			t.Errorf("path: want %q, got %q", want, path)
		}
	}
	data, err := os.ReadFile(synth.Path(dir, "com.example.app"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "second" {
		t.Errorf("want overwritten content, got %q", data)
	}
}

var lineGen = rapid.SampledFrom([]string{
	"back", "menu", "click(OK)", "edit(0, 'hi there')", "clickItem(1, 2)",
	"search(\"`quoted`\")", "drag 0 100 50 50 10", "sofar", "sofar step", "sofar other",
})

// Rendering is deterministic, and parsing the output recovers every closed
// segment in order.
func TestRenderParseRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		lines := rapid.SliceOfN(lineGen, 0, 25).Draw(rt, "lines")

		a, err := synth.Synthesize(lines, "com.example.app.Main", "com.example.app")
		if err != nil {
			rt.Fatalf("Synthesize: %v", err)
		}
		b, err := synth.Synthesize(lines, "com.example.app.Main", "com.example.app")
		if err != nil {
			rt.Fatalf("Synthesize: %v", err)
		}
		if !bytes.Equal(a, b) {
			rt.Fatal("output differs between runs")
		}

		m, err := synth.Parse(a)
		if err != nil {
			rt.Fatalf("Parse: %v", err)
		}
		if m.Package != "com.example.app" || m.Launcher != "com.example.app.Main" {
			rt.Fatalf("header not recovered: %+v", m)
		}
		want := synth.Segments(lines)
		if len(m.Segments) != len(want) {
			rt.Fatalf("want %d segments, got %d", len(want), len(m.Segments))
		}
		for i := range want {
			if strings.Join(m.Segments[i].Lines, "\n") != strings.Join(want[i].Lines, "\n") {
				rt.Fatalf("segment %d: want %q, got %q", i, want[i].Lines, m.Segments[i].Lines)
			}
		}
	})
}
