// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package iso9660

import (
	"io"
	"strings"

	"github.com/siderolabs/go-pointer"
	"golang.org/x/text/encoding/unicode"

	"github.com/isotools/isocheck/internal/ioutil"
)

const (
	vdMax           = 16
	vdEnd           = 0xff
	vdBootRecord    = 0
	vdPrimary       = 1
	vdSupplementary = 2
)

// VolumeInfo describes an ISO 9660 volume as read from its descriptor
// sequence.
type VolumeInfo struct {
	// Label is the volume identifier, Joliet where present.
	Label *string

	BlockSize      uint32
	FilesystemSize uint64
}

// Probe inspects the volume descriptor sequence and returns informational
// volume data.
//
// It returns nil if the source doesn't carry an ISO 9660 filesystem.
func Probe(r io.ReaderAt) (*VolumeInfo, error) {
	var pvd, joliet VolumeDescriptor

vdLoop:
	for i := 0; i < vdMax; i++ {
		buf := make([]byte, DescriptorSize)

		if err := ioutil.ReadFullAt(r, buf, DescriptorOffset+SectorSize*int64(i)); err != nil {
			break
		}

		vd := VolumeDescriptor(buf)

		if !vd.MatchesMagic() {
			break
		}

		switch vd.Type() {
		case vdEnd:
			break vdLoop
		case vdBootRecord:
			// skip
		case vdPrimary:
			pvd = vd
		case vdSupplementary:
			joliet = vd
		}

		if pvd != nil && joliet != nil {
			break
		}
	}

	if pvd == nil {
		return nil, nil //nolint:nilnil
	}

	info := &VolumeInfo{
		BlockSize:      uint32(pvd.LogicalBlockSize()),
		FilesystemSize: uint64(pvd.SpaceSize()) * uint64(pvd.LogicalBlockSize()),
	}

	if joliet != nil {
		if label, err := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder().Bytes(joliet.VolumeID()); err == nil {
			info.Label = pointer.To(strings.TrimRight(string(label), " "))
		}
	}

	if info.Label == nil {
		info.Label = pointer.To(strings.TrimRight(string(pvd.VolumeID()), " "))
	}

	return info, nil
}
