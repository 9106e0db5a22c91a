package adb

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

var (
	deviceLine   = regexp.MustCompile(`.+device$`)
	emulatorLine = regexp.MustCompile(`emulator-\d+\s+device$`)
)

// ParseDevices splits an `adb devices` listing into every attached device
// and the subset of those that are emulators, in listing order.
func ParseDevices(listing string) (devices, emulators []string) {
	for _, line := range strings.Split(listing, "\n") {
		line = strings.TrimRight(line, "\r")
		if !deviceLine.MatchString(line) {
			continue
		}
		serial := strings.Fields(line)[0]
		devices = append(devices, serial)
		if emulatorLine.MatchString(line) {
			emulators = append(emulators, serial)
		}
	}
	return devices, emulators
}

// Devices lists the attached devices. The listing is not scoped to the
// client's serial.
func (c *Client) Devices(ctx context.Context) (devices, emulators []string, err error) {
	out, err := c.Execute(ctx, c.opts.ADBPath, "devices")
	if isTransportFailure(err) {
		return nil, nil, fmt.Errorf("listing devices: %w", err)
	}
	devices, emulators = ParseDevices(out)
	return devices, emulators, nil
}

// Online reports whether a device is ready for a session. Real hardware is
// trusted as soon as it is listed. Emulators must also produce log output
// within ProbeTimeout, since a listed emulator may still be booting.
// A client bound to a serial only considers that device.
func (c *Client) Online(ctx context.Context) bool {
	devices, emulators, err := c.Devices(ctx)
	if err != nil || len(devices) == 0 {
		return false
	}
	if serial := c.target.Serial; serial != "" {
		if !slices.Contains(devices, serial) {
			return false
		}
		if !slices.Contains(emulators, serial) {
			return true
		}
		return c.Responsive(ctx)
	}
	if len(devices) > len(emulators) {
		return true
	}
	return c.Responsive(ctx)
}

// Responsive reports whether the bound device writes ActivityManager log
// lines within ProbeTimeout.
func (c *Client) Responsive(ctx context.Context) bool {
	pctx, cancel := context.WithTimeout(ctx, c.opts.ProbeTimeout)
	defer cancel()
	out, err := c.SyncOnLog(pctx, nil, c.ActivityFilter())
	if err != nil {
		c.opts.Logger.Info("emulator probe failed", "err", err)
		return false
	}
	return out != ""
}

// Restart bounces the adb server, which clears most "device offline"
// states.
func (c *Client) Restart(ctx context.Context) error {
	for _, verb := range []string{"kill-server", "start-server"} {
		if _, err := c.Execute(ctx, c.opts.ADBPath, verb); err != nil {
			return fmt.Errorf("adb %s: %w", verb, err)
		}
	}
	return nil
}
