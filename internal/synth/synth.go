// Package synth turns a recorded session into a Go test file that replays
// every checkpointed segment against the device, and reads such files back.
package synth

import (
	"fmt"
	"go/format"
	"go/token"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/fakeyudi/droidrec/internal/command"
)

// Header is the first line of every generated file.
const Header = "// Code generated by droidrec. DO NOT EDIT."

// ReplayImport is the package generated tests drive the device through.
const ReplayImport = "github.com/fakeyudi/droidrec/replay"

// Segment is the run of lines recorded between two checkpoints, named by
// the label of the checkpoint that closed it.
type Segment struct {
	Label string
	Lines []string
}

// Module is everything a generated test file is made from.
type Module struct {
	Package  string // Android package id of the app under test
	Launcher string // activity relaunched before each test
	Segments []Segment
}

// Segments splits a journal at its checkpoint lines. A checkpoint without a
// label closes its segment but yields nothing, and lines after the last
// checkpoint are dropped.
func Segments(lines []string) []Segment {
	var (
		segs    []Segment
		pending []string
	)
	for _, line := range lines {
		if command.Token(line) != command.Checkpoint {
			pending = append(pending, line)
			continue
		}
		label := ""
		if inv, err := command.Parse(line); err == nil {
			label = inv.Label()
		}
		if label != "" {
			segs = append(segs, Segment{Label: label, Lines: pending})
		}
		pending = nil
	}
	return segs
}

// Synthesize renders the test file for a recorded journal.
func Synthesize(lines []string, launcher, pkg string) ([]byte, error) {
	return Render(&Module{Package: pkg, Launcher: launcher, Segments: Segments(lines)})
}

// Render produces gofmt'ed Go source for m. Identical input gives identical
// bytes.
func Render(m *Module) ([]byte, error) {
	var sb strings.Builder

	sb.WriteString(Header + "\n\n")
	fmt.Fprintf(&sb, "package %s\n\n", Ident(m.Package))
	sb.WriteString("import (\n\t\"context\"\n\t\"errors\"\n\t\"strings\"\n\t\"testing\"\n\t\"time\"\n\n")
	fmt.Fprintf(&sb, "\t%q\n)\n\n", ReplayImport)

	fmt.Fprintf(&sb, "const (\n\tappPackage = %s\n\tlauncher = %s\n)\n\n",
		strconv.Quote(m.Package), strconv.Quote(m.Launcher))

	sb.WriteString(prelude)

	used := map[string]bool{}
	for _, seg := range m.Segments {
		name := testName(seg.Label, used)
		if len(seg.Lines) == 0 {
			fmt.Fprintf(&sb, "\nfunc %s(t *testing.T) {\n\tsetup(t)\n}\n", name)
			continue
		}
		fmt.Fprintf(&sb, "\nfunc %s(t *testing.T) {\n\td := setup(t)\n", name)
		for _, line := range seg.Lines {
			fmt.Fprintf(&sb, "\td.Do(%s)\n", literal(line))
		}
		sb.WriteString("}\n")
	}

	src, err := format.Source([]byte(sb.String()))
	if err != nil {
		return nil, fmt.Errorf("format generated test: %w", err)
	}
	return src, nil
}

// prelude holds the fixture and assertion helpers shared by every test.
const prelude = `// setup relaunches the app and registers teardown.
func setup(t *testing.T) *replay.Driver {
	t.Helper()
	d := replay.New(t)
	d.Ignite(launcher)
	t.Cleanup(func() { teardown(t, d) })
	return d
}

// teardown closes the app, giving up after 6 seconds.
func teardown(t *testing.T, d *replay.Driver) {
	ctx, cancel := context.WithTimeout(context.Background(), 6*time.Second)
	defer cancel()
	acts, err := d.CallContext(ctx, "getActivities")
	if err != nil {
		t.Logf("teardown: %v", err)
		return
	}
	if _, err := d.CallContext(ctx, "finish"); err != nil {
		t.Logf("teardown: %v", err)
	}
	t.Log(acts)
}

func assertText(t *testing.T, d *replay.Driver, txt string) {
	t.Helper()
	if !strings.Contains(d.Call("search", txt), "true") {
		t.Errorf("text %q not found", txt)
	}
}

func assertNotText(t *testing.T, d *replay.Driver, txt string) {
	t.Helper()
	if !strings.Contains(d.Call("search", txt), "false") {
		t.Errorf("text %q unexpectedly found", txt)
	}
}

func assertChecked(t *testing.T, d *replay.Driver, txt string) {
	t.Helper()
	if !strings.Contains(d.Call("checked", txt), "true") {
		t.Errorf("%q is not checked", txt)
	}
}

// assertDied expects the app to stop answering within 6 seconds.
func assertDied(t *testing.T, d *replay.Driver) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 6*time.Second)
	defer cancel()
	if _, err := d.CallContext(ctx, "getViews"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("app is still alive (err=%v)", err)
	}
}

func assertAds(t *testing.T, d *replay.Driver) {
	t.Helper()
	if !strings.Contains(d.Call("getViews"), "AdView") {
		t.Error("no AdView on screen")
	}
}
`

// Ident turns an Android package id into a Go identifier:
// com.example.app becomes com_example_app.
func Ident(pkg string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(pkg) {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		} else {
			sb.WriteByte('_')
		}
	}
	id := sb.String()
	switch {
	case id == "":
		return "app"
	case id == "_" || token.IsKeyword(id) || (id[0] >= '0' && id[0] <= '9'):
		return "app_" + id
	}
	return id
}

// testName maps a checkpoint label to a unique Test_ function name.
func testName(label string, used map[string]bool) string {
	var sb strings.Builder
	for _, r := range label {
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
		} else {
			sb.WriteByte('_')
		}
	}
	base := "Test_" + sb.String()
	name := base
	for n := 2; used[name]; n++ {
		name = fmt.Sprintf("%s_%d", base, n)
	}
	used[name] = true
	return name
}

// literal quotes line as a raw string when it can be one.
func literal(line string) string {
	if !utf8.ValidString(line) {
		return strconv.Quote(line)
	}
	for _, r := range line {
		if r == '`' || (r != '\t' && !unicode.IsPrint(r)) {
			return strconv.Quote(line)
		}
	}
	return "`" + line + "`"
}

// Path returns where Write puts the test file for pkg under dir.
func Path(dir, pkg string) string {
	id := Ident(pkg)
	return filepath.Join(dir, id, id+"_test.go")
}

// Write stores src at Path(dir, pkg). An existing file is replaced.
func Write(dir, pkg string, src []byte) (string, error) {
	path := Path(dir, pkg)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create test directory: %w", err)
	}
	if err := os.WriteFile(path, src, 0o644); err != nil {
		return "", fmt.Errorf("failed to write test file: %w", err)
	}
	return path, nil
}
