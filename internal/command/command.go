// Package command holds the fixed vocabulary of interaction commands an
// operator may type during a session and maps each one onto a harness call.
package command

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/fakeyudi/droidrec/internal/adb"
)

// Control keywords. They are understood by the session loop, not sent to
// the harness as-is.
const (
	Checkpoint = "sofar"
	Finish     = "finish"
)

// ErrUnknownCommand is returned by Parse for anything outside the vocabulary
// or whose arguments cannot be read.
var ErrUnknownCommand = errors.New("unknown command")

// Spec describes one harness command: the name the operator types and the
// extra keys its positional arguments are sent under.
type Spec struct {
	Name   string
	Params []string
	Doc    string
}

var vocabulary = map[string]Spec{}

func register(name, doc string, params ...string) {
	vocabulary[name] = Spec{Name: name, Params: params, Doc: doc}
}

func init() {
	register("getViews", "list the views on screen")
	register("getActivities", "list the activity stack")
	register("back", "press BACK")
	register("down", "press DPAD down")
	register("up", "press DPAD up")
	register("menu", "press MENU")
	register("edit", "type text into the idx-th edit field", "idx", "what")
	register("clear", "clear the idx-th edit field", "idx")
	register("search", "true if text is on screen", "what")
	register("checked", "true if the labelled box is checked", "what")
	register("click", "tap the button labelled what", "what")
	register("clickLong", "long-press the view showing what", "what")
	register("clickOn", "tap any view showing the text what", "what")
	register("clickIdx", "tap the idx-th button", "idx")
	register("clickImg", "tap the idx-th image", "idx")
	register("clickItem", "tap line idx of list", "list", "idx")
	register("drag", "drag across the screen", "fromX", "toX", "fromY", "toY", "steps")
	register(Finish, "close the app and end the session")
}

// Lookup returns the spec registered under name.
func Lookup(name string) (Spec, bool) {
	s, ok := vocabulary[name]
	return s, ok
}

// Names returns every harness command name, sorted.
func Names() []string {
	names := make([]string, 0, len(vocabulary))
	for n := range vocabulary {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Invocation is one parsed operator line.
type Invocation struct {
	Name string
	Args []string
	Raw  string
}

// Label returns the checkpoint label of a `sofar` invocation.
func (inv Invocation) Label() string {
	if len(inv.Args) == 0 {
		return ""
	}
	return inv.Args[0]
}

// Token returns the leading word of line: everything before the first
// parenthesis or whitespace.
func Token(line string) string {
	line = strings.TrimSpace(line)
	if i := strings.IndexAny(line, "( \t)"); i >= 0 {
		return line[:i]
	}
	return line
}

// Parse reads a line such as `edit(0, "hello")`, `edit 0 hello` or `back`.
// Only vocabulary commands and the control keywords are accepted.
func Parse(line string) (Invocation, error) {
	raw := strings.TrimSpace(line)
	name := Token(raw)
	if _, ok := vocabulary[name]; !ok && name != Checkpoint {
		return Invocation{}, fmt.Errorf("%w: %s", ErrUnknownCommand, raw)
	}

	rest := strings.TrimSpace(raw[len(name):])
	if strings.HasPrefix(rest, "(") {
		if !strings.HasSuffix(rest, ")") {
			return Invocation{}, fmt.Errorf("%w: missing ) in %s", ErrUnknownCommand, raw)
		}
		rest = rest[1 : len(rest)-1]
	}
	args, err := splitArgs(rest)
	if err != nil {
		return Invocation{}, fmt.Errorf("%w: %s: %v", ErrUnknownCommand, raw, err)
	}
	return Invocation{Name: name, Args: args, Raw: raw}, nil
}

// splitArgs splits on commas and whitespace. Single or double quotes group
// text; a backslash escapes the next character inside quotes.
func splitArgs(s string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		quote   rune
		started bool
		escaped bool
	)
	flush := func() {
		if started {
			args = append(args, cur.String())
		}
		cur.Reset()
		started = false
	}
	for _, r := range s {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case quote != 0 && r == '\\':
			escaped = true
		case quote != 0 && r == quote:
			quote = 0
		case quote != 0:
			cur.WriteRune(r)
		case r == '"' || r == '\'':
			quote = r
			started = true
		case r == ',' || r == ' ' || r == '\t':
			flush()
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	if quote != 0 || escaped {
		return nil, errors.New("unterminated quote")
	}
	flush()
	return args, nil
}

// Device is the part of the bridge the vocabulary needs.
type Device interface {
	Cmd(ctx context.Context, name string, extras []adb.Extra) (string, error)
}

// Extras pairs the invocation's positional arguments with the spec's
// parameter names. Surplus arguments are sent as arg<N>.
func Extras(inv Invocation) []adb.Extra {
	spec := vocabulary[inv.Name]
	extras := make([]adb.Extra, 0, len(inv.Args))
	for i, a := range inv.Args {
		key := fmt.Sprintf("arg%d", i)
		if i < len(spec.Params) {
			key = spec.Params[i]
		}
		extras = append(extras, adb.Extra{Key: key, Value: a})
	}
	return extras
}

// Run sends inv to the harness and returns the messages it logged.
func Run(ctx context.Context, d Device, inv Invocation) ([]string, error) {
	if _, ok := vocabulary[inv.Name]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, inv.Name)
	}
	out, err := d.Cmd(ctx, inv.Name, Extras(inv))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", inv.Name, err)
	}
	return adb.Messages(out), nil
}
