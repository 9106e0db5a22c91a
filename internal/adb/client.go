// Package adb talks to a single Android device or emulator through the adb
// command-line bridge and turns its asynchronous logcat feedback into
// blocking calls.
package adb

import (
	"context"
	"errors"
	"os/exec"
	"time"

	"github.com/fakeyudi/droidrec/internal/config"
	"github.com/fakeyudi/droidrec/internal/logging"
)

// DefaultPollInterval is the wait between two polls of both sync protocols.
const DefaultPollInterval = 2 * time.Second

// Runner executes one external process and returns its combined output.
// This abstraction allows mocking in tests.
type Runner func(ctx context.Context, name string, args ...string) (string, error)

// ExecRunner runs the process for real and blocks until it exits.
func ExecRunner(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// Target identifies the device commands are sent to. An empty Serial means
// whatever device adb picks by default.
type Target struct {
	Serial string
}

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	ADBPath        string
	HarnessPackage string
	PollInterval   time.Duration
	ProbeTimeout   time.Duration
	// SyncTimeout bounds every harness command; zero waits until the
	// device answers or the context is cancelled.
	SyncTimeout time.Duration
	Runner      Runner
	Logger      *logging.Logger
}

// Client issues adb commands against one Target. A Client is immutable:
// selecting another device yields a new Client with every derived command
// prefix rebuilt at once.
type Client struct {
	target Target
	opts   Options

	prefix []string // adb [-s serial]
	logcat []string // adb [-s serial] logcat
	am     []string // adb [-s serial] shell am
}

// New builds a Client for target.
func New(target Target, opts Options) *Client {
	if opts.ADBPath == "" {
		opts.ADBPath = "adb"
	}
	if opts.HarnessPackage == "" {
		opts.HarnessPackage = "umd.troyd"
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 3 * opts.PollInterval
	}
	if opts.Runner == nil {
		opts.Runner = ExecRunner
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}

	prefix := []string{opts.ADBPath}
	if target.Serial != "" {
		prefix = append(prefix, "-s", target.Serial)
	}
	return &Client{
		target: target,
		opts:   opts,
		prefix: prefix,
		logcat: join(prefix, "logcat"),
		am:     join(prefix, "shell", "am"),
	}
}

// WithDevice returns a new Client bound to serial.
func (c *Client) WithDevice(serial string) *Client {
	return New(Target{Serial: serial}, c.opts)
}

// Target returns the device this client is bound to.
func (c *Client) Target() Target {
	return c.target
}

// HarnessPackage returns the package id of the instrumentation harness.
func (c *Client) HarnessPackage() string {
	return c.opts.HarnessPackage
}

// Execute runs one external process and returns its raw output. Calling it
// with no arguments is a no-op. There is no retry and no interpretation of
// the output.
func (c *Client) Execute(ctx context.Context, args ...string) (string, error) {
	if len(args) == 0 {
		return "", nil
	}
	out, err := c.opts.Runner(ctx, args[0], args[1:]...)
	c.opts.Logger.Debug("exec", "args", args, "bytes", len(out), "err", err)
	return out, err
}

// ADB runs adb with the device prefix prepended to args.
func (c *Client) ADB(ctx context.Context, args ...string) (string, error) {
	return c.Execute(ctx, join(c.prefix, args...)...)
}

// isTransportFailure reports whether err means the process could not run
// at all, as opposed to having run and exited non-zero.
func isTransportFailure(err error) bool {
	if err == nil {
		return false
	}
	var exitErr *exec.ExitError
	return !errors.As(err, &exitErr)
}

// join returns a fresh slice holding base followed by args.
func join(base []string, args ...string) []string {
	out := make([]string, 0, len(base)+len(args))
	out = append(out, base...)
	return append(out, args...)
}

// FromConfig builds a Client for target from the merged configuration.
func FromConfig(target Target, cfg config.Config, logger *logging.Logger) *Client {
	return New(target, Options{
		ADBPath:        cfg.ADBPath,
		HarnessPackage: cfg.HarnessPackage,
		PollInterval:   cfg.PollInterval,
		ProbeTimeout:   cfg.ProbeTimeout,
		SyncTimeout:    cfg.SyncTimeout,
		Logger:         logger,
	})
}
