package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/x/term"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/muesli/cancelreader"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/droidrec/internal/adb"
	"github.com/fakeyudi/droidrec/internal/apk"
	"github.com/fakeyudi/droidrec/internal/avd"
	"github.com/fakeyudi/droidrec/internal/config"
	"github.com/fakeyudi/droidrec/internal/logging"
	"github.com/fakeyudi/droidrec/internal/session"
	"github.com/fakeyudi/droidrec/internal/synth"
)

// cleanupTimeout bounds the uninstalls after the loop, which would
// otherwise retry forever against a vanished device.
const cleanupTimeout = 30 * time.Second

// recording is one run of the recorder from device selection to the
// generated test file.
type recording struct {
	apkPath string
	out     io.Writer
	in      io.Reader
	log     *logging.Logger

	client   *adb.Client
	emulator *avd.Emulator // non-nil when this run started it
	lock     *flock.Flock
	tools    *apk.Toolchain
	store    session.Store
	sess     *session.Session
	pkg      string

	harness   bool // the harness may be on the device
	installed bool // the target may be on the device
}

func runRecord(ctx context.Context, cmd *cobra.Command, apkPath string) error {
	r := &recording{
		apkPath: apkPath,
		out:     cmd.OutOrStdout(),
		in:      cmd.InOrStdin(),
		log:     logger,
	}
	defer r.cleanup()

	if err := r.prepare(ctx); err != nil {
		return err
	}
	loopErr := r.loop(ctx)
	r.cleanup()
	if err := r.synthesize(); err != nil {
		return err
	}
	return loopErr
}

// prepare brings up a device and installs the harness and the re-signed
// target, then launches the app.
func (r *recording) prepare(ctx context.Context) error {
	if _, err := os.Stat(r.apkPath); err != nil {
		return fmt.Errorf("target file: %w", err)
	}

	r.client = newClient(adb.Target{Serial: devSerial})
	if !r.client.Online(ctx) {
		if devSerial != "" {
			return fmt.Errorf("device %s is not online", devSerial)
		}
		if err := r.startEmulator(ctx); err != nil {
			return err
		}
	}

	dataDir, err := config.DataDir()
	if err != nil {
		return fmt.Errorf("resolving data directory: %w", err)
	}
	if r.lock, err = adb.Lock(dataDir, r.client.Target()); err != nil {
		return err
	}

	r.tools = apk.FromConfig(cfg, r.log)
	r.tools.Runner = runner

	pkg, err := r.tools.Package(ctx, r.apkPath)
	if err != nil {
		return err
	}
	launcher, err := r.tools.Launcher(ctx, r.apkPath)
	if err != nil {
		return err
	}
	r.pkg = pkg
	r.harness = true
	if err := r.tools.RebuildHarness(ctx, pkg); err != nil {
		return err
	}

	r.installed = true
	if _, err := r.client.Uninstall(ctx, pkg); err != nil {
		return fmt.Errorf("uninstalling previous %s: %w", pkg, err)
	}
	work, err := os.MkdirTemp("", "droidrec-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(work)
	shared := filepath.Join(work, pkg+".shareduid.apk")
	if err := r.tools.RewriteSharedUID(ctx, r.apkPath, shared); err != nil {
		return err
	}
	resigned := filepath.Join(work, pkg+".resigned.apk")
	if err := r.tools.Resign(ctx, shared, resigned); err != nil {
		return err
	}
	os.Remove(shared)

	fmt.Fprintf(r.out, "installing %s\n", pkg)
	if _, err := r.client.Install(ctx, resigned); err != nil {
		return fmt.Errorf("installing %s: %w", pkg, err)
	}
	if _, err := apk.Stash(resigned, cfg.APKDir, pkg); err != nil {
		r.log.Warn("could not keep re-signed apk", "error", err)
	}

	abs, err := filepath.Abs(r.apkPath)
	if err != nil {
		abs = r.apkPath
	}
	r.sess = &session.Session{
		ID:        uuid.NewString(),
		StartTime: time.Now(),
		APK:       abs,
		Package:   pkg,
		Launcher:  launcher,
		Device:    r.client.Target().Serial,
		Records:   []session.Record{},
	}
	r.log = r.log.WithSession(r.sess.ID)

	if _, err := r.client.Ignite(ctx, launcher); err != nil {
		return fmt.Errorf("launching %s: %w", launcher, err)
	}
	return nil
}

func (r *recording) startEmulator(ctx context.Context) error {
	name := avdName
	if name == "" {
		name = cfg.AVDName
	}
	r.emulator = &avd.Emulator{
		Name:     name,
		Target:   cfg.AVDTarget,
		Options:  avdOpts,
		BootWait: cfg.BootWait,
		Client:   r.client,
		Runner:   runner,
		Spawn:    spawner,
		Logger:   r.log,
	}
	exists, err := r.emulator.Exists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		if err := r.emulator.Create(ctx); err != nil {
			return err
		}
	}
	fmt.Fprintf(r.out, "no device online; starting emulator %s\n", name)
	return r.emulator.Start(ctx)
}

// loop runs the interactive session.
func (r *recording) loop(ctx context.Context) error {
	if !noRecord {
		store, err := session.NewStore()
		if err != nil {
			return err
		}
		r.store = store
		fmt.Fprintf(r.out, "recording session %s\n", r.sess.ID)
	}
	fmt.Fprintln(r.out, `type commands; "sofar <name>" closes a test, "finish" ends the session`)

	in := r.in
	prompt := false
	if in == os.Stdin {
		// Cancelled with ctx so Ctrl-C does not wait for Enter.
		cr, err := cancelreader.NewReader(os.Stdin)
		if err == nil {
			defer cr.Close()
			stop := context.AfterFunc(ctx, func() { cr.Cancel() })
			defer stop()
			in = cr
		}
		prompt = term.IsTerminal(os.Stdin.Fd())
	}

	ctl := &session.Controller{
		In:        in,
		Out:       r.out,
		Device:    r.client,
		Session:   r.sess,
		Store:     r.store,
		Recording: !noRecord,
		Prompt:    prompt,
		Logger:    r.log,
	}
	return ctl.Run(ctx)
}

// cleanup removes what prepare installed and stops an emulator this run
// started. Calling it again is a no-op.
func (r *recording) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	if r.harness {
		r.harness = false
		if _, err := r.client.UninstallHarness(ctx); err != nil {
			r.log.Warn("uninstalling harness", "error", err)
		}
	}
	if r.installed {
		r.installed = false
		if _, err := r.client.Uninstall(ctx, r.pkg); err != nil {
			r.log.Warn("uninstalling target", "error", err)
		}
	}
	if r.emulator != nil {
		if err := r.emulator.Stop(ctx); err != nil {
			r.log.Warn("stopping emulator", "error", err)
		}
		r.emulator = nil
	}
	if r.lock != nil {
		r.lock.Unlock()
		r.lock = nil
	}
}

// synthesize closes the journal and writes the generated test file. The
// file is rendered from the in-memory session, so a journal that could not
// be saved still yields its tests; the save error is returned afterwards.
func (r *recording) synthesize() error {
	if noRecord || r.store == nil {
		return nil
	}
	now := time.Now()
	r.sess.StopTime = &now
	saveErr := r.store.Save(r.sess)
	if saveErr != nil {
		r.log.Error("closing journal", "error", saveErr)
	}
	path, n, err := writeTests(r.sess, cfg.TestCasesDir)
	if err != nil {
		return errors.Join(err, saveErr)
	}
	fmt.Fprintf(r.out, "wrote %d test(s) to %s\n", n, path)
	return saveErr
}

// writeTests renders the journal of s into dir and reports how many test
// functions it holds.
func writeTests(s *session.Session, dir string) (string, int, error) {
	lines := s.Lines()
	src, err := synth.Synthesize(lines, s.Launcher, s.Package)
	if err != nil {
		return "", 0, err
	}
	path, err := synth.Write(dir, s.Package, src)
	if err != nil {
		return "", 0, err
	}
	return path, len(synth.Segments(lines)), nil
}
