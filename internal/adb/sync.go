package adb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrSyncTimeout is returned when SyncTimeout elapses before the device
// produced the expected signal.
var ErrSyncTimeout = errors.New("device did not answer before the sync timeout")

// errNoSignal marks a poll that has not seen the expected output yet.
var errNoSignal = errors.New("no signal yet")

// Filter selects the logcat lines a sync waits for. Spec is passed to
// `logcat -d` as a filterspec; only lines containing Match are kept.
type Filter struct {
	Spec  []string
	Match string
}

// Apply returns the lines of raw that contain f.Match, newline-terminated,
// in their original order.
func (f Filter) Apply(raw string) string {
	var sb strings.Builder
	for _, line := range strings.SplitAfter(raw, "\n") {
		if line == "" || !strings.Contains(line, f.Match) {
			continue
		}
		sb.WriteString(line)
		if !strings.HasSuffix(line, "\n") {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// HarnessFilter matches the lines the instrumentation harness logs under
// its own package tag.
func (c *Client) HarnessFilter() Filter {
	return Filter{
		Spec:  []string{c.opts.HarnessPackage + ":D", "*:S"},
		Match: c.opts.HarnessPackage,
	}
}

// ActivityFilter matches ActivityManager lines; any output at all means the
// device is up and logging.
func (c *Client) ActivityFilter() Filter {
	return Filter{
		Spec:  []string{"ActivityManager:D", "*:S"},
		Match: "ActivityManager",
	}
}

// SyncOnLog clears the device log, fires cmd (its own output is ignored)
// and then polls the log every PollInterval until a line matching filter
// shows up. The filtered text is returned. An empty cmd only waits.
//
// There is no built-in deadline: the call returns when the signal appears,
// the command cannot be run, or ctx is done.
func (c *Client) SyncOnLog(ctx context.Context, cmd []string, filter Filter) (string, error) {
	if _, err := c.ADB(ctx, "logcat", "-c"); isTransportFailure(err) {
		return "", fmt.Errorf("clearing device log: %w", err)
	}
	if _, err := c.Execute(ctx, cmd...); isTransportFailure(err) {
		return "", fmt.Errorf("running %s: %w", strings.Join(cmd, " "), err)
	}

	if err := sleep(ctx, c.opts.PollInterval); err != nil {
		return "", err
	}

	snapshot := join(c.logcat, "-d")
	snapshot = append(snapshot, filter.Spec...)

	var out string
	op := func() error {
		raw, err := c.Execute(ctx, snapshot...)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if isTransportFailure(err) {
			return backoff.Permanent(fmt.Errorf("reading device log: %w", err))
		}
		out = filter.Apply(raw)
		if out == "" {
			return errNoSignal
		}
		return nil
	}
	if err := backoff.Retry(op, c.constant(ctx)); err != nil {
		return "", err
	}
	return out, nil
}

// SyncOnStatus runs cmd and returns the first of tokens found in its
// output. While none is found the same command is re-issued every
// PollInterval. A command that cannot be run at all ends the call.
func (c *Client) SyncOnStatus(ctx context.Context, cmd []string, tokens []string) (string, error) {
	if len(cmd) == 0 {
		return "", errors.New("sync on status: empty command")
	}

	var token string
	op := func() error {
		out, err := c.Execute(ctx, cmd...)
		if t := firstToken(out, tokens); t != "" {
			token = t
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if isTransportFailure(err) {
			return backoff.Permanent(fmt.Errorf("running %s: %w", strings.Join(cmd, " "), err))
		}
		return errNoSignal
	}
	if err := backoff.Retry(op, c.constant(ctx)); err != nil {
		return "", err
	}
	return token, nil
}

// bounded runs fn under SyncTimeout when one is configured and reports an
// expired deadline as ErrSyncTimeout.
func (c *Client) bounded(ctx context.Context, what string, fn func(context.Context) (string, error)) (string, error) {
	if c.opts.SyncTimeout <= 0 {
		return fn(ctx)
	}
	tctx, cancel := context.WithTimeout(ctx, c.opts.SyncTimeout)
	defer cancel()
	out, err := fn(tctx)
	if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return "", fmt.Errorf("%s: %w", what, ErrSyncTimeout)
	}
	return out, err
}

// constant is the retry cadence shared by both protocols.
func (c *Client) constant(ctx context.Context) backoff.BackOff {
	return backoff.WithContext(backoff.NewConstantBackOff(c.opts.PollInterval), ctx)
}

func firstToken(out string, tokens []string) string {
	for _, t := range tokens {
		if strings.Contains(out, t) {
			return t
		}
	}
	return ""
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
