// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

//go:build linux

package block_test

import (
	"errors"
	randv2 "math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/freddierice/go-losetup/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/isotools/isocheck/block"
)

const MiB = 1024 * 1024

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.iso")
	require.NoError(t, os.WriteFile(path, make([]byte, 3*MiB), 0o644))

	src, err := block.Open(path)
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, src.Close())
	})

	assert.Equal(t, block.KindFile, src.Kind())
	assert.Equal(t, path, src.Path())

	size, err := src.Size()
	require.NoError(t, err)
	assert.EqualValues(t, 3*MiB, size)

	buf := make([]byte, 16)
	n, err := src.ReadAt(buf, 1024)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)

	// block ioctls fall back to defaults on regular files
	assert.EqualValues(t, block.DefaultBlockSize, src.GetSectorSize())

	ioSize, err := src.GetIOSize()
	require.NoError(t, err)
	assert.EqualValues(t, block.DefaultBlockSize, ioSize)

	assert.False(t, src.IsCD())
	assert.ErrorIs(t, src.Eject(), block.ErrNotOptical)

	require.NoError(t, src.TryLock(false))
	require.NoError(t, src.Unlock())
}

func TestOpenRejectsOtherTypes(t *testing.T) {
	_, err := block.Open(t.TempDir())
	require.Error(t, err)
	assert.ErrorContains(t, err, "unsupported file type")

	_, err = block.Open("/dev/null")
	require.Error(t, err)
	assert.ErrorContains(t, err, "unsupported file type")
}

func TestOpenMissing(t *testing.T) {
	_, err := block.Open(filepath.Join(t.TempDir(), "no-such-image.iso"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}

func TestOpenDevice(t *testing.T) {
	if os.Geteuid() != 0 {
		t.Skip("skipping test; must be root")
	}

	rawImage := filepath.Join(t.TempDir(), "image.raw")

	f, err := os.Create(rawImage)
	require.NoError(t, err)

	require.NoError(t, f.Truncate(int64(4*MiB)))
	require.NoError(t, f.Close())

	loDev := losetupAttachHelper(t, rawImage, true)

	t.Cleanup(func() {
		assert.NoError(t, loDev.Detach())
	})

	src, err := block.Open(loDev.Path())
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, src.Close())
	})

	assert.Equal(t, block.KindDevice, src.Kind())

	size, err := src.Size()
	require.NoError(t, err)
	assert.EqualValues(t, 4*MiB, size)

	assert.EqualValues(t, 512, src.GetSectorSize())

	// loop devices are not optical drives
	assert.False(t, src.IsCD())
	assert.ErrorIs(t, src.Eject(), block.ErrNotOptical)

	require.NoError(t, src.TryLock(false))
	require.NoError(t, src.Unlock())
}

func TestListDrives(t *testing.T) {
	drives, err := block.ListDrives()
	require.NoError(t, err)

	for _, drive := range drives {
		assert.True(t, strings.HasPrefix(drive.Path, "/dev/sr"))
	}
}

func losetupAttachHelper(t *testing.T, rawImage string, readonly bool) losetup.Device { //nolint:unparam
	t.Helper()

	for i := 0; i < 10; i++ {
		loDev, err := losetup.Attach(rawImage, 0, readonly)
		if err != nil {
			if errors.Is(err, unix.EBUSY) {
				spraySleep := max(randv2.ExpFloat64(), 2.0)

				t.Logf("retrying after %v seconds", spraySleep)

				time.Sleep(time.Duration(spraySleep * float64(time.Second)))

				continue
			}
		}

		require.NoError(t, err)

		return loDev
	}

	t.Fatal("failed to attach loop device") //nolint:revive

	panic("unreachable")
}
