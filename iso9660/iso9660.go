// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package iso9660 reads ISO 9660 volume descriptors.
//
// Only fixed-offset descriptor sectors are parsed; the package never walks
// the filesystem's directory tree.
package iso9660

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/isotools/isocheck/internal/ioutil"
)

// Volume descriptor layout, per ECMA-119.
const (
	// DescriptorOffset is the absolute byte offset of the primary volume
	// descriptor (sector 16).
	DescriptorOffset = 0x8000

	// DescriptorSize is the size of a single volume descriptor sector.
	DescriptorSize = 2048

	// ApplicationUseOffset is the offset of the application-use field within
	// the descriptor.
	ApplicationUseOffset = 883

	// ApplicationUseSize is the size of the application-use field.
	ApplicationUseSize = 512

	// SectorSize is the ISO 9660 logical sector size.
	SectorSize = 2048
)

// Magic is the standard identifier carried by every volume descriptor.
var Magic = []byte("CD001")

// ErrDescriptorMissing means the primary volume descriptor sector could not
// be read in full.
var ErrDescriptorMissing = errors.New("primary volume descriptor missing")

// VolumeDescriptor is a raw ISO 9660 volume descriptor sector.
//
// Accessors assume a full DescriptorSize sector.
type VolumeDescriptor []byte

// Type returns the volume descriptor type byte.
func (d VolumeDescriptor) Type() int {
	return int(d[0])
}

// MatchesMagic checks the standard identifier.
func (d VolumeDescriptor) MatchesMagic() bool {
	return bytes.Equal(d[1:6], Magic)
}

// VolumeID returns the raw 32-byte volume identifier field.
func (d VolumeDescriptor) VolumeID() []byte {
	return d[40:72]
}

// SpaceSize returns the volume space size in logical blocks.
func (d VolumeDescriptor) SpaceSize() uint32 {
	return isonum32(d[80:84])
}

// LogicalBlockSize returns the logical block size in bytes.
func (d VolumeDescriptor) LogicalBlockSize() uint16 {
	return isonum16(d[128:130])
}

// ApplicationUse returns the 512-byte application-use field.
func (d VolumeDescriptor) ApplicationUse() []byte {
	return d[ApplicationUseOffset : ApplicationUseOffset+ApplicationUseSize]
}

// ReadPrimaryDescriptor reads the descriptor sector at DescriptorOffset.
//
// The sector is returned as-is: callers that need the application-use field
// of a mastered image must see its exact bytes, so no structural validation
// is performed here.
func ReadPrimaryDescriptor(r io.ReaderAt) (VolumeDescriptor, error) {
	buf, err := ioutil.ReadRange(r, DescriptorOffset, DescriptorSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDescriptorMissing, err)
	}

	return VolumeDescriptor(buf), nil
}

// both-endian numeric fields: little-endian half is authoritative

func isonum16(b []byte) uint16 {
	return uint16(b[0]) | uint16(b[1])<<8
}

func isonum32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
