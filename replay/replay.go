// Package replay drives a device from generated droidrec tests. Each
// recorded line is parsed with the same vocabulary the recorder accepts and
// sent to the harness the same way.
//
// The device is chosen by the DROIDREC_SERIAL environment variable; when it
// is empty adb picks the only attached device. Tool paths and timings come
// from the usual droidrec config files.
package replay

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/fakeyudi/droidrec/internal/adb"
	"github.com/fakeyudi/droidrec/internal/command"
	"github.com/fakeyudi/droidrec/internal/config"
	"github.com/fakeyudi/droidrec/internal/logging"
)

// SerialEnv names the environment variable selecting the device.
const SerialEnv = "DROIDREC_SERIAL"

type device interface {
	command.Device
	Ignite(ctx context.Context, activity string) (string, error)
}

// Driver replays commands for one test. Failures end the test.
type Driver struct {
	t   testing.TB
	dev device
}

// New returns a Driver bound to the configured device.
func New(t testing.TB) *Driver {
	t.Helper()
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	c := adb.FromConfig(adb.Target{Serial: os.Getenv(SerialEnv)}, cfg, logging.Nop())
	return &Driver{t: t, dev: c}
}

// Ignite (re)launches activity through the harness.
func (d *Driver) Ignite(activity string) {
	d.t.Helper()
	if _, err := d.dev.Ignite(context.Background(), activity); err != nil {
		d.t.Fatalf("ignite %s: %v", activity, err)
	}
}

// Do replays one recorded line and returns what the harness answered.
func (d *Driver) Do(line string) string {
	d.t.Helper()
	inv, err := command.Parse(line)
	if err != nil {
		d.t.Fatalf("replay: %v", err)
		return ""
	}
	if inv.Name == command.Checkpoint {
		d.t.Logf("replay: skipping checkpoint %q", inv.Label())
		return ""
	}
	out, err := d.run(context.Background(), inv)
	if err != nil {
		d.t.Fatalf("replay %s: %v", line, err)
	}
	return out
}

// Call sends name with positional args and returns the harness answer.
func (d *Driver) Call(name string, args ...string) string {
	d.t.Helper()
	out, err := d.CallContext(context.Background(), name, args...)
	if err != nil {
		d.t.Fatalf("%s: %v", name, err)
	}
	return out
}

// CallContext is Call with a caller-controlled deadline. Errors are
// returned instead of failing the test.
func (d *Driver) CallContext(ctx context.Context, name string, args ...string) (string, error) {
	return d.run(ctx, command.Invocation{Name: name, Args: args})
}

func (d *Driver) run(ctx context.Context, inv command.Invocation) (string, error) {
	msgs, err := command.Run(ctx, d.dev, inv)
	if err != nil {
		return "", err
	}
	return strings.Join(msgs, "\n"), nil
}
