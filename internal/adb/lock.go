package adb

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

// ErrDeviceBusy is returned by Lock when another droidrec process holds the
// device.
var ErrDeviceBusy = errors.New("device is already used by another droidrec session")

// Lock takes the per-device lock under dir/locks so that two sessions never
// drive the same device. The caller must Unlock the returned lock.
func Lock(dir string, target Target) (*flock.Flock, error) {
	name := target.Serial
	if name == "" {
		name = "default"
	}
	name = strings.NewReplacer("/", "_", ":", "_", string(filepath.Separator), "_").Replace(name)

	lockDir := filepath.Join(dir, "locks")
	if err := os.MkdirAll(lockDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	lock := flock.New(filepath.Join(lockDir, name+".lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring device lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%s: %w", name, ErrDeviceBusy)
	}
	return lock, nil
}
