// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package block

import (
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// CD-ROM ioctls and drive status values, from linux/cdrom.h.
//
//nolint:revive,stylecheck
const (
	CDROM_GET_CAPABILITY = 0x5331
	CDROM_DRIVE_STATUS   = 0x5326
	CDROMEJECT           = 0x5309

	cdsNoDisc   = 1
	cdsTrayOpen = 2
)

// Open opens path read-only and tags it as a file or device source.
//
// Only regular files and block devices are accepted.
func Open(path string) (*Source, error) {
	f, err := os.OpenFile(path, os.O_RDONLY|unix.O_CLOEXEC|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, err
	}

	st, err := f.Stat()
	if err != nil {
		f.Close() //nolint:errcheck

		return nil, err
	}

	var kind Kind

	sysStat := st.Sys().(*syscall.Stat_t) //nolint:errcheck,forcetypeassert // we know it's a syscall.Stat_t

	switch sysStat.Mode & unix.S_IFMT {
	case unix.S_IFREG:
		kind = KindFile
	case unix.S_IFBLK:
		kind = KindDevice
	default:
		f.Close() //nolint:errcheck

		return nil, fmt.Errorf("unsupported file type: %q", path)
	}

	return &Source{
		f:    f,
		path: path,
		kind: kind,
	}, nil
}

// Size returns the total length of the source in bytes.
//
// Regular files use fstat; devices ask the kernel, falling back to seeking
// to the end for drivers that don't implement the ioctl. When neither works
// the error wraps ErrSizeUnavailable.
func (s *Source) Size() (int64, error) {
	if s.kind == KindFile {
		st, err := s.f.Stat()
		if err != nil {
			return 0, fmt.Errorf("stat %q: %w", s.path, err)
		}

		return st.Size(), nil
	}

	var devsize uint64
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, s.f.Fd(), unix.BLKGETSIZE64, uintptr(unsafe.Pointer(&devsize))); errno == 0 {
		return int64(devsize), nil
	}

	size, err := s.f.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("%w: %q does not support device-level access", ErrSizeUnavailable, s.path)
	}

	if _, err := s.f.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("seeking %q back to start: %w", s.path, err)
	}

	return size, nil
}

// GetSectorSize returns the device sector size in bytes.
func (s *Source) GetSectorSize() uint {
	var size uint

	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, s.f.Fd(), uintptr(unix.BLKSSZGET), uintptr(unsafe.Pointer(&size))); errno != 0 {
		return DefaultBlockSize
	}

	return size
}

// GetIOSize returns the optimal I/O size in bytes.
func (s *Source) GetIOSize() (uint, error) {
	for _, ioctl := range []uintptr{unix.BLKIOOPT, unix.BLKIOMIN, unix.BLKBSZGET} {
		var size uint
		if _, _, errno := unix.Syscall(unix.SYS_IOCTL, s.f.Fd(), ioctl, uintptr(unsafe.Pointer(&size))); errno != 0 {
			continue
		}

		if size > 0 && isPowerOf2(size) {
			return size, nil
		}
	}

	return DefaultBlockSize, nil
}

// IsCD returns true if the source is a CD-ROM device.
func (s *Source) IsCD() bool {
	if s.kind != KindDevice {
		return false
	}

	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, s.f.Fd(), uintptr(CDROM_GET_CAPABILITY), 0); errno != 0 {
		return false
	}

	return true
}

// IsCDNoMedia returns true if the source is a CD-ROM device without media.
func (s *Source) IsCDNoMedia() bool {
	arg, _, errno := unix.Syscall(unix.SYS_IOCTL, s.f.Fd(), uintptr(CDROM_DRIVE_STATUS), 0)

	return errno == 0 && (arg == cdsNoDisc || arg == cdsTrayOpen)
}

// Eject opens the tray of an optical drive.
//
// The source must not be read afterwards.
func (s *Source) Eject() error {
	if !s.IsCD() {
		return ErrNotOptical
	}

	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, s.f.Fd(), uintptr(CDROMEJECT), 0); errno != 0 {
		return fmt.Errorf("ejecting %q: %w", s.path, errno)
	}

	return nil
}

// Lock acquires an advisory lock, blocking until it is available.
func (s *Source) Lock(exclusive bool) error {
	return s.lock(exclusive, 0)
}

// TryLock acquires an advisory lock, failing if it is taken.
func (s *Source) TryLock(exclusive bool) error {
	return s.lock(exclusive, unix.LOCK_NB)
}

// Unlock releases any lock.
func (s *Source) Unlock() error {
	for {
		if err := unix.Flock(int(s.f.Fd()), unix.LOCK_UN); !errors.Is(err, unix.EINTR) {
			return err
		}
	}
}

func (s *Source) lock(exclusive bool, flag int) error {
	if exclusive {
		flag |= unix.LOCK_EX
	} else {
		flag |= unix.LOCK_SH
	}

	for {
		if err := unix.Flock(int(s.f.Fd()), flag); !errors.Is(err, unix.EINTR) {
			return err
		}
	}
}
