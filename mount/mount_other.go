// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

//go:build !linux

package mount

import (
	"fmt"
)

// Image attaches an ISO image to a read-only loop device and mounts it.
func Image(path string) (*Mount, error) {
	return nil, fmt.Errorf("not implemented")
}

// Device mounts a block device read-only.
func Device(devPath string) (*Mount, error) {
	return nil, fmt.Errorf("not implemented")
}

// MountpointOf returns the directory dev is currently mounted at.
func MountpointOf(devPath string) (string, error) {
	return "", fmt.Errorf("not implemented")
}

// Unmount tears down exactly what was set up.
func (m *Mount) Unmount() error {
	if m == nil || (!m.mounted && m.detach == nil && !m.tempDir) {
		return nil
	}

	return fmt.Errorf("not implemented")
}
