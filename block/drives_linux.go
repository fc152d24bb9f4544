// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package block

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Drive describes an optical drive present on the system.
type Drive struct {
	// Path is the device node, e.g. /dev/sr0.
	Path string

	// Model is the vendor/model string from sysfs, empty when unknown.
	Model string

	// MediaPresent is false when the drive reports an empty or open tray.
	MediaPresent bool
}

// ListDrives enumerates optical drives via /sys/block.
//
// Candidates are sr* block devices; each is opened to confirm CD capability
// and read the tray status. Devices that can't be opened (no permission) are
// listed with MediaPresent unset.
func ListDrives() ([]Drive, error) {
	devices, err := os.ReadDir("/sys/block")
	if err != nil {
		return nil, fmt.Errorf("reading /sys/block: %w", err)
	}

	var drives []Drive

	for _, dev := range devices {
		name := dev.Name()

		if !strings.HasPrefix(name, "sr") {
			continue
		}

		drive := Drive{
			Path:  filepath.Join("/dev", name),
			Model: strings.TrimSpace(readSysFile("/sys/block", name, "device/vendor") + " " + readSysFile("/sys/block", name, "device/model")),
		}

		if src, err := Open(drive.Path); err == nil {
			if !src.IsCD() {
				src.Close() //nolint:errcheck

				continue
			}

			drive.MediaPresent = !src.IsCDNoMedia()

			src.Close() //nolint:errcheck
		}

		drives = append(drives, drive)
	}

	return drives, nil
}

func readSysFile(parts ...string) string {
	data, err := os.ReadFile(filepath.Join(parts...))
	if err != nil {
		return ""
	}

	return strings.TrimSpace(string(data))
}
