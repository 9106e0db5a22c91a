// Package apk reads metadata out of Android packages and prepares a target
// APK so the instrumentation harness can drive it.
package apk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/fakeyudi/droidrec/internal/adb"
	"github.com/fakeyudi/droidrec/internal/config"
	"github.com/fakeyudi/droidrec/internal/logging"
)

// ErrNoLauncher is returned when the manifest declares no launchable activity.
var ErrNoLauncher = errors.New("apk has no launchable activity")

var (
	packageRe  = regexp.MustCompile(`(?m)^package: name='([^']+)'`)
	launcherRe = regexp.MustCompile(`(?m)^launchable-activity: name='([^']+)'`)
)

// Toolchain wraps the external tools used on APKs. Command templates are
// split on whitespace and may use {in}, {out} and {pkg} placeholders.
type Toolchain struct {
	AAPTPath            string
	UIDCommand          string     // rewrites the sharedUserId of {in} into {out}
	ResignCommand       string     // signs {in} with the harness key into {out}
	HarnessBuildCommand string     // rebuilds the harness to target {pkg}
	Runner              adb.Runner // if nil, runs real processes
	Logger              *logging.Logger
}

// FromConfig builds a Toolchain from the merged configuration.
func FromConfig(cfg config.Config, logger *logging.Logger) *Toolchain {
	return &Toolchain{
		AAPTPath:            cfg.AAPTPath,
		UIDCommand:          cfg.UIDCommand,
		ResignCommand:       cfg.ResignCommand,
		HarnessBuildCommand: cfg.HarnessBuildCommand,
		Logger:              logger,
	}
}

// Badging returns the raw `aapt dump badging` output for path.
func (t *Toolchain) Badging(ctx context.Context, path string) (string, error) {
	aapt := t.AAPTPath
	if aapt == "" {
		aapt = "aapt"
	}
	out, err := t.run(ctx, aapt, "dump", "badging", path)
	if err != nil {
		return "", fmt.Errorf("aapt dump badging %s: %w", path, err)
	}
	return out, nil
}

// Package returns the package id declared by the APK at path.
func (t *Toolchain) Package(ctx context.Context, path string) (string, error) {
	out, err := t.Badging(ctx, path)
	if err != nil {
		return "", err
	}
	m := packageRe.FindStringSubmatch(out)
	if m == nil {
		return "", fmt.Errorf("no package name in badging of %s", path)
	}
	return m[1], nil
}

// Launcher returns the launchable activity of the APK at path.
func (t *Toolchain) Launcher(ctx context.Context, path string) (string, error) {
	out, err := t.Badging(ctx, path)
	if err != nil {
		return "", err
	}
	m := launcherRe.FindStringSubmatch(out)
	if m == nil {
		return "", fmt.Errorf("%s: %w", path, ErrNoLauncher)
	}
	return m[1], nil
}

// RewriteSharedUID writes a copy of in whose manifest shares the harness
// user id.
func (t *Toolchain) RewriteSharedUID(ctx context.Context, in, out string) error {
	return t.transform(ctx, "uid_command", t.UIDCommand, in, out)
}

// Resign writes a copy of in signed with the harness key.
func (t *Toolchain) Resign(ctx context.Context, in, out string) error {
	return t.transform(ctx, "resign_command", t.ResignCommand, in, out)
}

// RebuildHarness rebuilds the instrumentation harness against pkg. Without
// a configured command the installed harness is used as is.
func (t *Toolchain) RebuildHarness(ctx context.Context, pkg string) error {
	if t.HarnessBuildCommand == "" {
		t.logger().Warn("harness_build_command not set; using installed harness")
		return nil
	}
	argv := expand(t.HarnessBuildCommand, map[string]string{"{pkg}": pkg})
	if _, err := t.run(ctx, argv[0], argv[1:]...); err != nil {
		return fmt.Errorf("rebuilding harness for %s: %w", pkg, err)
	}
	return nil
}

// transform runs a configured in/out command. An unset command copies the
// file through unchanged.
func (t *Toolchain) transform(ctx context.Context, key, tmpl, in, out string) error {
	if tmpl == "" {
		t.logger().Warn(key+" not set; copying apk unchanged", "in", in, "out", out)
		return copyFile(in, out)
	}
	argv := expand(tmpl, map[string]string{"{in}": in, "{out}": out})
	if _, err := t.run(ctx, argv[0], argv[1:]...); err != nil {
		return fmt.Errorf("%s on %s: %w", key, in, err)
	}
	return nil
}

func (t *Toolchain) run(ctx context.Context, name string, args ...string) (string, error) {
	runner := t.Runner
	if runner == nil {
		runner = adb.ExecRunner
	}
	out, err := runner(ctx, name, args...)
	t.logger().Debug("exec", "name", name, "args", args, "err", err)
	return out, err
}

func (t *Toolchain) logger() *logging.Logger {
	if t.Logger == nil {
		return logging.Nop()
	}
	return t.Logger
}

// expand splits tmpl on whitespace and substitutes placeholders per field.
func expand(tmpl string, vars map[string]string) []string {
	fields := strings.Fields(tmpl)
	for i, f := range fields {
		for k, v := range vars {
			f = strings.ReplaceAll(f, k, v)
		}
		fields[i] = f
	}
	return fields
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Stash moves the prepared APK to dir/<pkg>.apk, replacing any older copy.
func Stash(path, dir, pkg string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating apk directory: %w", err)
	}
	dst := filepath.Join(dir, pkg+".apk")
	if err := os.Rename(path, dst); err == nil {
		return dst, nil
	}
	// Rename fails across file systems.
	if err := copyFile(path, dst); err != nil {
		return "", fmt.Errorf("stashing %s: %w", path, err)
	}
	return dst, os.Remove(path)
}
