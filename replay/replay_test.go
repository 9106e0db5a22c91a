package replay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/fakeyudi/droidrec/internal/adb"
)

type fakeDevice struct {
	sent    []string
	ignited string
	err     error
}

func (f *fakeDevice) Cmd(ctx context.Context, name string, extras []adb.Extra) (string, error) {
	parts := []string{name}
	for _, e := range extras {
		parts = append(parts, e.Key+"="+e.Value)
	}
	f.sent = append(f.sent, strings.Join(parts, " "))
	if f.err != nil {
		return "", f.err
	}
	return "D/umd.troyd( 1): true\nD/umd.troyd( 1): done\n", nil
}

func (f *fakeDevice) Ignite(ctx context.Context, activity string) (string, error) {
	f.ignited = activity
	return "", f.err
}

// fatalTB records Fatalf instead of stopping the goroutine.
type fatalTB struct {
	testing.TB
	fatal string
}

func (f *fatalTB) Helper() {}

func (f *fatalTB) Fatalf(format string, args ...any) {
	f.fatal = fmt.Sprintf(format, args...)
}

func (f *fatalTB) Logf(format string, args ...any) {}

func TestDoReplaysRecordedLine(t *testing.T) {
	dev := &fakeDevice{}
	d := &Driver{t: t, dev: dev}

	out := d.Do(`edit(0, "hello")`)
	if out != "true\ndone" {
		t.Errorf("answer: got %q", out)
	}
	if len(dev.sent) != 1 || dev.sent[0] != "edit idx=0 what=hello" {
		t.Errorf("sent: got %v", dev.sent)
	}
}

func TestCallAndIgnite(t *testing.T) {
	dev := &fakeDevice{}
	d := &Driver{t: t, dev: dev}

	d.Ignite("com.example.Main")
	if dev.ignited != "com.example.Main" {
		t.Errorf("ignite: got %q", dev.ignited)
	}
	d.Call("search", "Sign in")
	if dev.sent[0] != "search what=Sign in" {
		t.Errorf("sent: got %v", dev.sent)
	}
}

func TestDoFailsOnUnknownLine(t *testing.T) {
	tb := &fatalTB{}
	d := &Driver{t: tb, dev: &fakeDevice{}}

	d.Do("tap(1)")
	if !strings.Contains(tb.fatal, "unknown command") {
		t.Errorf("want unknown command failure, got %q", tb.fatal)
	}
}

func TestCallContextReturnsDeviceError(t *testing.T) {
	boom := errors.New("no device")
	d := &Driver{t: t, dev: &fakeDevice{err: boom}}

	if _, err := d.CallContext(context.Background(), "getViews"); !errors.Is(err, boom) {
		t.Errorf("want device error, got %v", err)
	}
}

func TestDoSkipsCheckpoint(t *testing.T) {
	dev := &fakeDevice{}
	d := &Driver{t: t, dev: dev}

	d.Do("sofar login")
	if len(dev.sent) != 0 {
		t.Errorf("checkpoint must not reach the device, sent %v", dev.sent)
	}
}
