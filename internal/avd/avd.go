// Package avd manages the Android Virtual Device used when no device is
// online.
package avd

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/fakeyudi/droidrec/internal/adb"
	"github.com/fakeyudi/droidrec/internal/logging"
)

// Process is a spawned long-running process.
type Process interface {
	Wait() error
	Kill() error
}

// Spawner starts a long-running process.
type Spawner func(name string, args ...string) (Process, error)

type execProcess struct {
	cmd *exec.Cmd
}

func (p execProcess) Wait() error { return p.cmd.Wait() }
func (p execProcess) Kill() error { return p.cmd.Process.Kill() }

// execSpawner starts the process for real, detached from any context so it
// outlives the call that started it.
func execSpawner(name string, args ...string) (Process, error) {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return execProcess{cmd: cmd}, nil
}

// Emulator is one named AVD.
type Emulator struct {
	Name         string
	Target       string // platform the AVD is created for, e.g. android-10
	Options      string // extra emulator flags, e.g. "-no-window"
	AndroidPath  string
	EmulatorPath string
	BootWait     time.Duration
	Client       *adb.Client
	Runner       adb.Runner // if nil, runs real processes
	Spawn        Spawner    // if nil, starts real processes
	Logger       *logging.Logger

	proc Process
}

func (e *Emulator) init() {
	if e.AndroidPath == "" {
		e.AndroidPath = "android"
	}
	if e.EmulatorPath == "" {
		e.EmulatorPath = "emulator"
	}
	if e.Runner == nil {
		e.Runner = adb.ExecRunner
	}
	if e.Spawn == nil {
		e.Spawn = execSpawner
	}
	if e.Logger == nil {
		e.Logger = logging.Nop()
	}
}

// Exists reports whether an AVD called Name is defined.
func (e *Emulator) Exists(ctx context.Context) (bool, error) {
	e.init()
	out, err := e.Runner(ctx, e.AndroidPath, "list", "avd")
	if err != nil {
		return false, fmt.Errorf("listing avds: %w", err)
	}
	for _, line := range strings.Split(out, "\n") {
		if name, ok := strings.CutPrefix(strings.TrimSpace(line), "Name:"); ok && strings.TrimSpace(name) == e.Name {
			return true, nil
		}
	}
	return false, nil
}

// Create defines the AVD for Target.
func (e *Emulator) Create(ctx context.Context) error {
	e.init()
	e.Logger.Info("creating avd", "name", e.Name, "target", e.Target)
	if _, err := e.Runner(ctx, e.AndroidPath, "create", "avd", "-n", e.Name, "-t", e.Target); err != nil {
		return fmt.Errorf("creating avd %s: %w", e.Name, err)
	}
	return nil
}

// Start launches the emulator in the background and blocks until it is
// online or ctx is done.
func (e *Emulator) Start(ctx context.Context) error {
	e.init()
	if e.proc != nil {
		return errors.New("emulator already started")
	}
	args := append([]string{"-avd", e.Name}, strings.Fields(e.Options)...)
	e.Logger.Info("starting emulator", "args", args)
	proc, err := e.Spawn(e.EmulatorPath, args...)
	if err != nil {
		return fmt.Errorf("starting emulator %s: %w", e.Name, err)
	}
	e.proc = proc

	if e.Client == nil {
		return nil
	}
	// Give the emulator time to register with adb before probing it.
	t := time.NewTimer(e.BootWait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
	}
	probe := func() error {
		if e.Client.Online(ctx) {
			return nil
		}
		return errors.New("emulator not online yet")
	}
	b := backoff.WithContext(backoff.NewConstantBackOff(time.Second), ctx)
	if err := backoff.Retry(probe, b); err != nil {
		return fmt.Errorf("waiting for emulator %s: %w", e.Name, err)
	}
	return nil
}

// Stop asks the emulator started by Start to shut down through its console
// and waits for it to exit. When ctx is done first the process is killed.
// It is a no-op if nothing was started.
func (e *Emulator) Stop(ctx context.Context) error {
	e.init()
	if e.proc == nil {
		return nil
	}
	proc := e.proc
	e.proc = nil
	if e.Client != nil {
		if _, err := e.Client.ADB(ctx, "emu", "kill"); err != nil {
			e.Logger.Warn("emu kill failed", "error", err)
		}
	}

	done := make(chan struct{})
	go func() {
		// The emulator exits non-zero when killed.
		_ = proc.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
	}
	e.Logger.Warn("emulator did not exit, killing it", "name", e.Name)
	if err := proc.Kill(); err != nil {
		return fmt.Errorf("killing emulator %s: %w", e.Name, err)
	}
	return fmt.Errorf("stopping emulator %s: %w", e.Name, ctx.Err())
}
