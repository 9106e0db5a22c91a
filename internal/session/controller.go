package session

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/fakeyudi/droidrec/internal/command"
	"github.com/fakeyudi/droidrec/internal/logging"
)

// Device is the part of the bridge the session loop drives.
type Device interface {
	command.Device
	Ignite(ctx context.Context, activity string) (string, error)
}

// Controller reads operator lines, forwards them to the device and, when
// recording, keeps the journal of accepted lines.
type Controller struct {
	In        io.Reader
	Out       io.Writer
	Device    Device
	Session   *Session
	Store     Store // nil keeps the journal in memory only
	Recording bool
	Prompt    bool
	Logger    *logging.Logger
	Now       func() time.Time

	errStyle  lipgloss.Style
	msgStyle  lipgloss.Style
	warnSaved bool
	ready     bool
}

// Run loops until the operator types finish, input ends, or ctx is done.
// Input EOF ends the session like finish but sends nothing to the device.
func (c *Controller) Run(ctx context.Context) error {
	c.init()
	if c.Recording {
		c.save()
	}
	sc := bufio.NewScanner(c.In)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.Prompt {
			fmt.Fprint(c.Out, "> ")
		}
		if !sc.Scan() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := sc.Err(); err != nil {
				return fmt.Errorf("reading commands: %w", err)
			}
			c.Logger.Info("input closed")
			return nil
		}
		stop, err := c.Step(ctx, sc.Text())
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
}

// Step handles one operator line. It reports stop once finish has been
// issued. Device failures are printed and the loop goes on; only
// cancellation of ctx is returned as an error.
func (c *Controller) Step(ctx context.Context, line string) (stop bool, err error) {
	c.init()
	raw := strings.TrimSpace(line)
	if raw == "" {
		return false, nil
	}

	// The line is recorded before it is interpreted and taken back out if
	// it turns out not to be a command. Only accepted lines reach the store.
	if c.Recording {
		c.Session.Append(raw, c.Now())
	}

	inv, err := command.Parse(raw)
	if err != nil {
		fmt.Fprintln(c.Out, c.errStyle.Render("unknown command: "+raw))
		c.Logger.Debug("rejected line", "line", raw)
		if c.Recording {
			c.Session.Pop()
		}
		return false, nil
	}
	if c.Recording {
		c.save()
	}

	switch inv.Name {
	case command.Checkpoint:
		if inv.Label() == "" {
			fmt.Fprintln(c.Out, c.errStyle.Render("checkpoint without a label; segment will not become a test"))
		}
		c.Logger.Info("checkpoint", "label", inv.Label())
		if _, err := c.Device.Ignite(ctx, c.Session.Launcher); err != nil {
			return false, c.failed(ctx, inv, err)
		}
		return false, nil
	case command.Finish:
		if err := c.run(ctx, inv); err != nil {
			return true, c.failed(ctx, inv, err)
		}
		return true, nil
	default:
		if err := c.run(ctx, inv); err != nil {
			return false, c.failed(ctx, inv, err)
		}
		return false, nil
	}
}

func (c *Controller) run(ctx context.Context, inv command.Invocation) error {
	c.Logger.Debug("sending command", "name", inv.Name, "args", inv.Args)
	msgs, err := command.Run(ctx, c.Device, inv)
	if err != nil {
		return err
	}
	for _, m := range msgs {
		fmt.Fprintln(c.Out, c.msgStyle.Render(m))
	}
	return nil
}

// failed reports a device error. Cancellation aborts the session; anything
// else is shown to the operator and the recorded line stays in the journal.
func (c *Controller) failed(ctx context.Context, inv command.Invocation, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	c.Logger.Warn("command failed", "name", inv.Name, "error", err)
	fmt.Fprintln(c.Out, c.errStyle.Render("error: "+err.Error()))
	return nil
}

func (c *Controller) save() {
	if c.Store == nil {
		return
	}
	if err := c.Store.Save(c.Session); err != nil {
		c.Logger.Error("journal write failed", "error", err)
		if !c.warnSaved {
			fmt.Fprintln(c.Out, c.errStyle.Render("warning: "+err.Error()))
			c.warnSaved = true
		}
	}
}

func (c *Controller) init() {
	if c.ready {
		return
	}
	c.ready = true
	if c.Logger == nil {
		c.Logger = logging.Nop()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Session == nil {
		c.Session = &Session{}
	}
	if c.Out == nil {
		c.Out = io.Discard
	}
	r := lipgloss.NewRenderer(c.Out)
	c.errStyle = r.NewStyle().Foreground(lipgloss.Color("9"))
	c.msgStyle = r.NewStyle().Foreground(lipgloss.Color("245"))
}
