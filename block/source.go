// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package block provides access to verification targets: plain image files
// and raw block devices.
package block

import (
	"errors"
	"fmt"
	"os"
)

// Kind tags what a Source reads from.
type Kind int

const (
	// KindFile is a regular image file.
	KindFile Kind = iota

	// KindDevice is a raw block device.
	KindDevice
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDevice:
		return "device"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ErrSizeUnavailable means the total length of the source cannot be
// discovered.
//
// Virtual and packet-mapped drives behave this way: whole-image checks need
// the original image file then, while the drive's contents stay reachable
// through a mount.
var ErrSizeUnavailable = errors.New("source size unavailable")

// ErrNotOptical is returned for optical-drive operations on sources that are
// not optical drives.
var ErrNotOptical = errors.New("not an optical drive")

// Source is an open verification target.
//
// The caller owns the Source and closes it after use.
type Source struct {
	f    *os.File
	path string
	kind Kind
}

// NewFromFile wraps an already open file as a Source of the given kind.
func NewFromFile(f *os.File, kind Kind) *Source {
	return &Source{
		f:    f,
		path: f.Name(),
		kind: kind,
	}
}

// Kind returns what the source reads from.
func (s *Source) Kind() Kind {
	return s.kind
}

// Path returns the path the source was opened from.
func (s *Source) Path() string {
	return s.path
}

// ReadAt implements io.ReaderAt.
func (s *Source) ReadAt(p []byte, off int64) (int, error) {
	return s.f.ReadAt(p, off)
}

// File exposes the underlying file.
func (s *Source) File() *os.File {
	return s.f
}

// Close releases the source.
func (s *Source) Close() error {
	return s.f.Close()
}

// DefaultBlockSize is the default block size in bytes.
const DefaultBlockSize = 512

func isPowerOf2[T uint | uint8 | uint16 | uint32 | uint64](num T) bool {
	return (num != 0 && ((num & (num - 1)) == 0))
}
