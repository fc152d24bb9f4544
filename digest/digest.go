// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package digest computes MD5 and SHA-256 digests over buffers, byte ranges
// and whole sources.
//
// A single Digest accumulates input from any mix of sources, so callers can
// reproduce digests over non-contiguous layouts (range, buffer, range) without
// staging the data.
package digest

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"
)

// Algorithm selects the digest algorithm.
type Algorithm int

// Supported algorithms.
const (
	MD5 Algorithm = iota
	SHA256
)

// String implements fmt.Stringer.
func (a Algorithm) String() string {
	switch a {
	case MD5:
		return "md5"
	case SHA256:
		return "sha256"
	default:
		return fmt.Sprintf("algorithm(%d)", int(a))
	}
}

// copy buffer size for streaming whole sources; sized for optical reads
const streamBufferSize = 1 << 20

// Digest accumulates input into a single running hash.
type Digest struct {
	h         hash.Hash
	algorithm Algorithm
}

// New returns an empty Digest for the given algorithm.
func New(algorithm Algorithm) *Digest {
	var h hash.Hash

	switch algorithm {
	case SHA256:
		h = sha256.New()
	default:
		h = md5.New()
	}

	return &Digest{
		h:         h,
		algorithm: algorithm,
	}
}

// Algorithm returns the algorithm the Digest was created with.
func (d *Digest) Algorithm() Algorithm {
	return d.algorithm
}

// Buffer feeds an in-memory buffer into the digest.
func (d *Digest) Buffer(buf []byte) {
	d.h.Write(buf) //nolint:errcheck // hash.Hash.Write never fails
}

// Range feeds exactly length bytes starting at offset into the digest.
//
// A source shorter than offset+length is an error wrapping
// io.ErrUnexpectedEOF; the digest state is undefined after a failed Range.
func (d *Digest) Range(r io.ReaderAt, offset, length int64) error {
	n, err := io.Copy(d.h, io.NewSectionReader(r, offset, length))
	if err != nil {
		return fmt.Errorf("hashing %d bytes at offset %d: %w", length, offset, err)
	}

	if n != length {
		return fmt.Errorf("hashing %d bytes at offset %d: got %d bytes: %w", length, offset, n, io.ErrUnexpectedEOF)
	}

	return nil
}

// Stream feeds the reader into the digest until EOF, returning the number of
// bytes consumed.
func (d *Digest) Stream(r io.Reader) (int64, error) {
	n, err := io.CopyBuffer(d.h, r, make([]byte, streamBufferSize))
	if err != nil {
		return n, fmt.Errorf("hashing stream: %w", err)
	}

	return n, nil
}

// SumHex returns the digest of everything fed so far as lowercase hex.
//
// It does not reset the state, so further input may be added and summed again.
func (d *Digest) SumHex() string {
	return hex.EncodeToString(d.h.Sum(nil))
}

// Equal compares two hex digests ignoring case.
func Equal(a, b string) bool {
	return strings.EqualFold(a, b)
}

// SHA256Reader digests the whole reader and returns lowercase hex.
func SHA256Reader(r io.Reader) (string, error) {
	d := New(SHA256)

	if _, err := d.Stream(r); err != nil {
		return "", err
	}

	return d.SumHex(), nil
}

// SHA256Path digests the file at path and returns lowercase hex.
func SHA256Path(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %q: %w", path, err)
	}

	defer f.Close() //nolint:errcheck

	return SHA256Reader(f)
}
