// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package isomd5 verifies the implanted MD5 convention used on mastered
// ISO 9660 images (the implantisomd5/checkisomd5 family).
//
// The implanting tool hashes the image while the primary volume descriptor's
// application-use field holds ASCII spaces, then writes the digest into that
// same field. Verification reproduces the pre-implant state: the stored image
// bytes around the descriptor, a neutralized descriptor in between, minus any
// trailing sectors the signature declares as skipped.
package isomd5

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"github.com/isotools/isocheck/digest"
	"github.com/isotools/isocheck/iso9660"
)

// Method names the internal engine in results.
const Method = "ASCII String (checkisomd5 compatible)"

// neutralFill is what the application-use field held when the image was
// hashed: ASCII spaces, not NUL bytes.
const neutralFill = 0x20

// dataStart is the first byte after the primary volume descriptor sector.
const dataStart = iso9660.DescriptorOffset + iso9660.DescriptorSize

var (
	md5Pattern  = regexp.MustCompile(`ISO MD5SUM = ([0-9a-fA-F]{32})`)
	skipPattern = regexp.MustCompile(`SKIPSECTORS\s*=\s*(\d+)`)
)

// ErrImageTruncated means the source is shorter than the span the signature
// declares as hashed.
var ErrImageTruncated = errors.New("image shorter than the signed span")

// Signature is an implanted MD5 signature recovered from the application-use
// field.
type Signature struct {
	// MD5 is the implanted digest, lowercase hex.
	MD5 string

	// SkipSectors is the count of trailing 2048-byte sectors excluded from
	// the hashed span.
	SkipSectors int
}

// ParseSignature recovers the implanted signature from a raw application-use
// field.
//
// It returns nil when the field carries no signature. An unparsable
// skip-sector count degrades to 0 rather than failing the whole parse.
func ParseSignature(appUse []byte) *Signature {
	// the field holds arbitrary application bytes around the signature;
	// Latin-1 maps every byte, so decoding never fails
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(appUse)
	if err != nil {
		decoded = appUse
	}

	text := string(decoded)

	matches := md5Pattern.FindStringSubmatch(text)
	if matches == nil {
		return nil
	}

	sig := &Signature{
		MD5: strings.ToLower(matches[1]),
	}

	if skipMatches := skipPattern.FindStringSubmatch(text); skipMatches != nil {
		if n, err := strconv.Atoi(skipMatches[1]); err == nil {
			sig.SkipSectors = n
		}
	}

	return sig
}

// Neutralize returns a copy of the descriptor with the application-use field
// overwritten by spaces, reproducing its state at implant time.
func Neutralize(d iso9660.VolumeDescriptor) iso9660.VolumeDescriptor {
	out := make(iso9660.VolumeDescriptor, len(d))
	copy(out, d)

	for i := 0; i < iso9660.ApplicationUseSize; i++ {
		out[iso9660.ApplicationUseOffset+i] = neutralFill
	}

	return out
}

// Source is a readable image with a known length.
type Source interface {
	io.ReaderAt

	// Size returns the total length of the source in bytes.
	Size() (int64, error)
}

// Result is the outcome of an implanted MD5 check.
type Result struct {
	// Method names the engine that produced the result.
	Method string

	// Stored is the implanted digest, lowercase hex.
	Stored string

	// Computed is the reproduced digest, lowercase hex.
	Computed string

	// Matches reports whether Stored and Computed agree.
	Matches bool

	// SkipSectors is the trailing-sector count the signature excluded.
	SkipSectors int
}

// Check verifies the implanted MD5 of src.
//
// It returns nil if the image carries no signature: an unsigned image is not
// an error. A mismatching digest is not an error either, it is a Result with
// Matches set to false.
func Check(src Source) (*Result, error) {
	size, err := src.Size()
	if err != nil {
		return nil, fmt.Errorf("determining image length: %w", err)
	}

	desc, err := iso9660.ReadPrimaryDescriptor(src)
	if err != nil {
		return nil, err
	}

	sig := ParseSignature(desc.ApplicationUse())
	if sig == nil {
		return nil, nil //nolint:nilnil
	}

	hashEnd := size - int64(sig.SkipSectors)*iso9660.SectorSize
	if hashEnd <= dataStart {
		return nil, fmt.Errorf("%w: %d bytes with %d trailing sectors skipped", ErrImageTruncated, size, sig.SkipSectors)
	}

	// segment order is fixed: bytes before the descriptor, the neutralized
	// descriptor from memory, then everything after it up to the signed end
	d := digest.New(digest.MD5)

	if err := d.Range(src, 0, iso9660.DescriptorOffset); err != nil {
		return nil, err
	}

	d.Buffer(Neutralize(desc))

	if err := d.Range(src, dataStart, hashEnd-dataStart); err != nil {
		return nil, err
	}

	computed := d.SumHex()

	return &Result{
		Method:      Method,
		Stored:      sig.MD5,
		Computed:    computed,
		Matches:     computed == sig.MD5,
		SkipSectors: sig.SkipSectors,
	}, nil
}
