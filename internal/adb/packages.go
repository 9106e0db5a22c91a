package adb

import (
	"context"
	"strings"
)

// Terminal status tokens printed by `adb install` and `adb uninstall`.
const (
	TokenSuccess = "Success"
	TokenFailure = "Failure"
)

// Extra is one `-e key value` pair of a harness command.
type Extra struct {
	Key   string
	Value string
}

// Install pushes apk to the device and waits for adb to report Success.
func (c *Client) Install(ctx context.Context, apk string) (string, error) {
	return c.SyncOnStatus(ctx, join(c.prefix, "install", apk), []string{TokenSuccess})
}

// Uninstall removes pkg and returns whichever of Success or Failure adb
// reported first. Failure (e.g. package not installed) is not an error.
func (c *Client) Uninstall(ctx context.Context, pkg string) (string, error) {
	return c.SyncOnStatus(ctx, join(c.prefix, "uninstall", pkg), []string{TokenSuccess, TokenFailure})
}

// UninstallHarness removes the instrumentation harness app.
func (c *Client) UninstallHarness(ctx context.Context) (string, error) {
	return c.Uninstall(ctx, c.opts.HarnessPackage)
}

// Ignite starts the harness service and has it (re)launch activity, then
// waits for the harness to log that it is ready.
func (c *Client) Ignite(ctx context.Context, activity string) (string, error) {
	args := join(c.am, "startservice", "-n", c.opts.HarnessPackage+"/.Ignite", "-e", "AUT", activity)
	return c.bounded(ctx, "ignite "+activity, func(ctx context.Context) (string, error) {
		return c.SyncOnLog(ctx, args, c.HarnessFilter())
	})
}

// Cmd broadcasts a RUN intent asking the harness to perform name with the
// given extras and returns the harness log lines it produced.
func (c *Client) Cmd(ctx context.Context, name string, extras []Extra) (string, error) {
	args := join(c.am, "broadcast", "-a", "android.intent.action.RUN", "-e", "cmd", name)
	for _, e := range extras {
		args = append(args, "-e", e.Key, shellQuote(e.Value))
	}
	return c.bounded(ctx, name, func(ctx context.Context) (string, error) {
		return c.SyncOnLog(ctx, args, c.HarnessFilter())
	})
}

// Messages strips the logcat header from each line of a harness answer,
// e.g. "D/umd.troyd( 412): true" becomes "true".
func Messages(raw string) []string {
	var msgs []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if i := strings.Index(line, "): "); i >= 0 {
			line = line[i+3:]
		}
		msgs = append(msgs, line)
	}
	return msgs
}

// shellQuote wraps v in double quotes for the device shell, which re-parses
// everything passed through `adb shell`.
func shellQuote(v string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "$", `\$`, "`", "\\`")
	return `"` + r.Replace(v) + `"`
}
