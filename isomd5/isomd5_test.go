// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package isomd5_test

import (
	"bytes"
	"crypto/md5"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isotools/isocheck/iso9660"
	"github.com/isotools/isocheck/isomd5"
)

// fixture with an implanted digest computed outside this codebase:
// ISO MD5SUM = 453dc7b05d5ae0903072d0b2334ef28e, SKIPSECTORS = 2
//
//go:embed testdata/signed.iso.zst
var signedImageZst []byte

const fixtureMD5 = "453dc7b05d5ae0903072d0b2334ef28e"

func signedImage(t *testing.T) []byte {
	t.Helper()

	zr, err := zstd.NewReader(bytes.NewReader(signedImageZst))
	require.NoError(t, err)

	defer zr.Close()

	img, err := io.ReadAll(zr)
	require.NoError(t, err)

	require.Len(t, img, 512*iso9660.SectorSize)

	return img
}

type memSource struct {
	*bytes.Reader
}

func (s memSource) Size() (int64, error) {
	return s.Reader.Size(), nil
}

// shortSource claims more bytes than its reader holds.
type shortSource struct {
	*bytes.Reader

	claimed int64
}

func (s shortSource) Size() (int64, error) {
	return s.claimed, nil
}

type brokenSizeSource struct {
	*bytes.Reader
}

func (s brokenSizeSource) Size() (int64, error) {
	return 0, errors.New("device does not support size discovery")
}

func appUseField(contents string) []byte {
	field := bytes.Repeat([]byte{' '}, iso9660.ApplicationUseSize)
	copy(field, contents)

	return field
}

func TestParseSignature(t *testing.T) {
	for _, test := range []struct {
		name     string
		field    []byte
		expected *isomd5.Signature
	}{
		{
			name:     "digest and skip",
			field:    appUseField("ISO MD5SUM = 453dc7b05d5ae0903072d0b2334ef28e;SKIPSECTORS = 15;RHLISOSTATUS=0"),
			expected: &isomd5.Signature{MD5: "453dc7b05d5ae0903072d0b2334ef28e", SkipSectors: 15},
		},
		{
			name:     "mixed case digest is lowered",
			field:    appUseField("ISO MD5SUM = 453DC7B05D5AE0903072D0B2334EF28E"),
			expected: &isomd5.Signature{MD5: "453dc7b05d5ae0903072d0b2334ef28e"},
		},
		{
			name:     "no skip declaration",
			field:    appUseField("ISO MD5SUM = 00000000000000000000000000000000"),
			expected: &isomd5.Signature{MD5: "00000000000000000000000000000000"},
		},
		{
			name:     "skip count overflow degrades to zero",
			field:    appUseField("ISO MD5SUM = 453dc7b05d5ae0903072d0b2334ef28e;SKIPSECTORS = 99999999999999999999"),
			expected: &isomd5.Signature{MD5: "453dc7b05d5ae0903072d0b2334ef28e"},
		},
		{
			name:     "skip spacing variants",
			field:    appUseField("ISO MD5SUM = 453dc7b05d5ae0903072d0b2334ef28e;SKIPSECTORS=7"),
			expected: &isomd5.Signature{MD5: "453dc7b05d5ae0903072d0b2334ef28e", SkipSectors: 7},
		},
		{
			name:  "lowercase key is not a signature",
			field: appUseField("iso md5sum = 453dc7b05d5ae0903072d0b2334ef28e"),
		},
		{
			name:  "digest too short",
			field: appUseField("ISO MD5SUM = 453dc7b05d5ae0903072d0b2334ef28"),
		},
		{
			name:  "blank field",
			field: appUseField(""),
		},
		{
			name: "high bytes around the signature",
			field: append(
				append([]byte{0xfe, 0xff, 0x80}, []byte("ISO MD5SUM = 453dc7b05d5ae0903072d0b2334ef28e")...),
				0xa9, 0x00,
			),
			expected: &isomd5.Signature{MD5: "453dc7b05d5ae0903072d0b2334ef28e"},
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, isomd5.ParseSignature(test.field))
		})
	}
}

func TestNeutralize(t *testing.T) {
	original := make(iso9660.VolumeDescriptor, iso9660.DescriptorSize)

	for i := range original {
		original[i] = byte(i % 256)
	}

	snapshot := append(iso9660.VolumeDescriptor(nil), original...)

	neutralized := isomd5.Neutralize(original)

	// input untouched
	assert.Equal(t, snapshot, original)

	require.Len(t, []byte(neutralized), iso9660.DescriptorSize)

	assert.Equal(t, []byte(original[:iso9660.ApplicationUseOffset]), []byte(neutralized[:iso9660.ApplicationUseOffset]))
	assert.Equal(t,
		bytes.Repeat([]byte{0x20}, iso9660.ApplicationUseSize),
		[]byte(neutralized.ApplicationUse()),
	)
	assert.Equal(t,
		[]byte(original[iso9660.ApplicationUseOffset+iso9660.ApplicationUseSize:]),
		[]byte(neutralized[iso9660.ApplicationUseOffset+iso9660.ApplicationUseSize:]),
	)
}

func TestCheckFixture(t *testing.T) {
	t.Run("intact image matches", func(t *testing.T) {
		img := signedImage(t)

		res, err := isomd5.Check(memSource{bytes.NewReader(img)})
		require.NoError(t, err)
		require.NotNil(t, res)

		assert.Equal(t, isomd5.Method, res.Method)
		assert.Equal(t, fixtureMD5, res.Stored)
		assert.Equal(t, fixtureMD5, res.Computed)
		assert.True(t, res.Matches)
		assert.Equal(t, 2, res.SkipSectors)
	})

	t.Run("flipped data byte mismatches", func(t *testing.T) {
		img := signedImage(t)
		img[100_000] ^= 0xff

		res, err := isomd5.Check(memSource{bytes.NewReader(img)})
		require.NoError(t, err)
		require.NotNil(t, res)

		assert.Equal(t, fixtureMD5, res.Stored)
		assert.NotEqual(t, res.Stored, res.Computed)
		assert.False(t, res.Matches)
	})

	t.Run("skipped tail is outside the signed span", func(t *testing.T) {
		img := signedImage(t)
		img[len(img)-100] ^= 0xff

		res, err := isomd5.Check(memSource{bytes.NewReader(img)})
		require.NoError(t, err)
		require.NotNil(t, res)

		assert.True(t, res.Matches)
	})

	t.Run("application-use bytes are neutralized", func(t *testing.T) {
		// garbage in the unused part of the field must not affect the digest
		img := signedImage(t)
		img[iso9660.DescriptorOffset+iso9660.ApplicationUseOffset+500] = 'X'

		res, err := isomd5.Check(memSource{bytes.NewReader(img)})
		require.NoError(t, err)
		require.NotNil(t, res)

		assert.True(t, res.Matches)
	})

	t.Run("unsigned image reports nothing", func(t *testing.T) {
		img := signedImage(t)

		appUse := img[iso9660.DescriptorOffset+iso9660.ApplicationUseOffset : iso9660.DescriptorOffset+iso9660.ApplicationUseOffset+iso9660.ApplicationUseSize]
		for i := range appUse {
			appUse[i] = ' '
		}

		res, err := isomd5.Check(memSource{bytes.NewReader(img)})
		require.NoError(t, err)
		assert.Nil(t, res)
	})

	t.Run("skip larger than image", func(t *testing.T) {
		// 18 sectors keep the descriptor readable, but SKIPSECTORS = 2 pulls
		// the signed end back to the descriptor itself
		img := signedImage(t)[:18*iso9660.SectorSize]

		_, err := isomd5.Check(memSource{bytes.NewReader(img)})
		require.ErrorIs(t, err, isomd5.ErrImageTruncated)
	})

	t.Run("source shorter than declared", func(t *testing.T) {
		img := signedImage(t)

		// the skip declaration pulls the signed end back by 2 sectors, so the
		// claim has to overshoot by more than that to force a short read
		_, err := isomd5.Check(shortSource{Reader: bytes.NewReader(img), claimed: int64(len(img)) + 8192})
		require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	})

	t.Run("size unavailable", func(t *testing.T) {
		img := signedImage(t)

		_, err := isomd5.Check(brokenSizeSource{bytes.NewReader(img)})
		require.Error(t, err)
		assert.ErrorContains(t, err, "determining image length")
	})

	t.Run("descriptor unreadable", func(t *testing.T) {
		img := signedImage(t)[:iso9660.DescriptorOffset+100]

		_, err := isomd5.Check(shortSource{Reader: bytes.NewReader(img), claimed: 512 * iso9660.SectorSize})
		require.ErrorIs(t, err, iso9660.ErrDescriptorMissing)
	})
}

// buildSigned implants a digest computed right here in the test, so segment
// bounds are pinned independently of the package under test.
func buildSigned(t *testing.T, sectors, skip int) []byte {
	t.Helper()

	require.GreaterOrEqual(t, sectors, 18)

	img := make([]byte, sectors*iso9660.SectorSize)
	for i := range img {
		img[i] = byte(i * 13 % 251)
	}

	pvd := img[iso9660.DescriptorOffset : iso9660.DescriptorOffset+iso9660.DescriptorSize]
	pvd[0] = 1
	copy(pvd[1:6], "CD001")
	pvd[6] = 1

	appUse := pvd[iso9660.ApplicationUseOffset : iso9660.ApplicationUseOffset+iso9660.ApplicationUseSize]
	for i := range appUse {
		appUse[i] = ' '
	}

	hashEnd := len(img) - skip*iso9660.SectorSize

	h := md5.New()
	h.Write(img[:iso9660.DescriptorOffset])
	h.Write(pvd)
	h.Write(img[iso9660.DescriptorOffset+iso9660.DescriptorSize : hashEnd])

	copy(appUse, fmt.Sprintf("ISO MD5SUM = %s;SKIPSECTORS = %d", hex.EncodeToString(h.Sum(nil)), skip))

	return img
}

func TestCheckSynthetic(t *testing.T) {
	t.Run("1MiB no skip", func(t *testing.T) {
		img := buildSigned(t, 512, 0)

		res, err := isomd5.Check(memSource{bytes.NewReader(img)})
		require.NoError(t, err)
		require.NotNil(t, res)

		assert.True(t, res.Matches)
		assert.Zero(t, res.SkipSectors)
	})

	t.Run("odd length with skip", func(t *testing.T) {
		img := buildSigned(t, 131, 5)

		res, err := isomd5.Check(memSource{bytes.NewReader(img)})
		require.NoError(t, err)
		require.NotNil(t, res)

		assert.True(t, res.Matches)
		assert.Equal(t, 5, res.SkipSectors)
	})

	t.Run("minimal image", func(t *testing.T) {
		// smallest layout with a non-empty trailing segment
		img := buildSigned(t, 18, 0)

		res, err := isomd5.Check(memSource{bytes.NewReader(img)})
		require.NoError(t, err)
		require.NotNil(t, res)

		assert.True(t, res.Matches)
	})
}
