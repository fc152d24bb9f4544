// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package ioutil provides IO utility functions.
package ioutil

import (
	"fmt"
	"io"
)

// ReadFullAt is io.ReadFull for io.ReaderAt.
//
// A source that runs out before len(buf) bytes are read is reported as
// io.ErrUnexpectedEOF, never as a silent short read.
func ReadFullAt(r io.ReaderAt, buf []byte, offset int64) error {
	for n := 0; n < len(buf); {
		m, err := r.ReadAt(buf[n:], offset)

		n += m
		offset += int64(m)

		if err != nil {
			if err == io.EOF && n == len(buf) {
				return nil
			}

			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}

			return err
		}
	}

	return nil
}

// ReadRange reads exactly length bytes at offset.
//
// It exists for the common "give me this exact span" case where the caller
// wants the allocation and the bounds failure message in one place.
func ReadRange(r io.ReaderAt, offset, length int64) ([]byte, error) {
	buf := make([]byte, length)

	if err := ReadFullAt(r, buf, offset); err != nil {
		return nil, fmt.Errorf("reading %d bytes at offset %d: %w", length, offset, err)
	}

	return buf, nil
}
