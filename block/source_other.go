// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

//go:build !linux

package block

import (
	"fmt"
)

// Open opens path read-only and tags it as a file or device source.
func Open(path string) (*Source, error) {
	return nil, fmt.Errorf("not implemented")
}

// Size returns the total length of the source in bytes.
func (s *Source) Size() (int64, error) {
	return 0, fmt.Errorf("not implemented")
}

// GetSectorSize returns the device sector size in bytes.
func (s *Source) GetSectorSize() uint {
	return DefaultBlockSize
}

// GetIOSize returns the optimal I/O size in bytes.
func (s *Source) GetIOSize() (uint, error) {
	return DefaultBlockSize, nil
}

// IsCD returns true if the source is a CD-ROM device.
func (s *Source) IsCD() bool {
	return false
}

// IsCDNoMedia returns true if the source is a CD-ROM device without media.
func (s *Source) IsCDNoMedia() bool {
	return false
}

// Eject opens the tray of an optical drive.
func (s *Source) Eject() error {
	return ErrNotOptical
}

// Lock acquires an advisory lock, blocking until it is available.
func (s *Source) Lock(exclusive bool) error {
	return fmt.Errorf("not implemented")
}

// TryLock acquires an advisory lock, failing if it is taken.
func (s *Source) TryLock(exclusive bool) error {
	return fmt.Errorf("not implemented")
}

// Unlock releases any lock.
func (s *Source) Unlock() error {
	return fmt.Errorf("not implemented")
}

// ListDrives enumerates optical drives.
func ListDrives() ([]Drive, error) {
	return nil, fmt.Errorf("not implemented")
}

// Drive describes an optical drive present on the system.
type Drive struct {
	Path         string
	Model        string
	MediaPresent bool
}
