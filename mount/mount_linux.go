// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package mount

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/freddierice/go-losetup/v2"
	"golang.org/x/sys/unix"
)

// filesystem types tried in order; pressed media are iso9660, video
// and large DVDs are usually UDF
var fsTypes = []string{"iso9660", "udf"}

// Image attaches an ISO image to a read-only loop device and mounts it in a
// fresh temporary directory.
//
// Attaching retries on EBUSY: loop slots are a shared resource and the race
// for a free one is lost now and then.
func Image(path string) (*Mount, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	var loopDev losetup.Device

	err = retry.Do(
		func() error {
			var attachErr error

			loopDev, attachErr = losetup.Attach(abs, 0, true)

			return attachErr
		},
		retry.Attempts(5),
		retry.Delay(100*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(func(err error) bool { return errors.Is(err, unix.EBUSY) }),
	)
	if err != nil {
		return nil, fmt.Errorf("attaching %q to a loop device: %w", abs, err)
	}

	m, err := mountDevice(loopDev.Path())
	if err != nil {
		loopDev.Detach() //nolint:errcheck

		return nil, err
	}

	m.detach = loopDev.Detach

	return m, nil
}

// Device mounts a block device read-only in a fresh temporary directory.
func Device(devPath string) (*Mount, error) {
	return mountDevice(devPath)
}

func mountDevice(devPath string) (*Mount, error) {
	target, err := os.MkdirTemp("", "isocheck-")
	if err != nil {
		return nil, fmt.Errorf("creating mountpoint: %w", err)
	}

	var lastErr error

	for _, fsType := range fsTypes {
		if err := unix.Mount(devPath, target, fsType, unix.MS_RDONLY, ""); err != nil {
			lastErr = fmt.Errorf("mounting %q as %s: %w", devPath, fsType, err)

			continue
		}

		return &Mount{
			Target:  target,
			mounted: true,
			tempDir: true,
		}, nil
	}

	os.Remove(target) //nolint:errcheck

	return nil, lastErr
}

// MountpointOf returns the directory dev is currently mounted at, or "" when
// it isn't mounted.
func MountpointOf(devPath string) (string, error) {
	resolved, err := filepath.EvalSymlinks(devPath)
	if err != nil {
		resolved = devPath
	}

	f, err := os.Open("/proc/mounts")
	if err != nil {
		return "", fmt.Errorf("reading mount table: %w", err)
	}

	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}

		if fields[0] == devPath || fields[0] == resolved {
			return unescapeFstab(fields[1]), nil
		}
	}

	return "", scanner.Err()
}

// unescapeFstab decodes the octal escapes /proc/mounts uses for whitespace
// in mountpoint paths.
func unescapeFstab(path string) string {
	for escape, char := range map[string]string{
		`\040`: " ",
		`\011`: "\t",
		`\012`: "\n",
		`\134`: `\`,
	} {
		path = strings.ReplaceAll(path, escape, char)
	}

	return path
}

// Unmount tears down exactly what was set up, in reverse order: unmount,
// detach the loop device, drop the temporary mountpoint.
//
// It stops at the first failure so the remaining pieces can be retried.
func (m *Mount) Unmount() error {
	if m == nil {
		return nil
	}

	if m.mounted {
		if err := unix.Unmount(m.Target, 0); err != nil {
			return fmt.Errorf("unmounting %q: %w", m.Target, err)
		}

		m.mounted = false
	}

	if m.detach != nil {
		if err := m.detach(); err != nil {
			return fmt.Errorf("detaching loop device: %w", err)
		}

		m.detach = nil
	}

	if m.tempDir {
		if err := os.Remove(m.Target); err != nil {
			return fmt.Errorf("removing mountpoint: %w", err)
		}

		m.tempDir = false
	}

	return nil
}
