// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package mount makes ISO images and optical media visible as directory
// trees for content verification.
//
// Everything is mounted read-only. Unmount reverses exactly the steps that
// were taken: media mounted by someone else is never touched.
package mount

// Mount is a mounted media tree.
type Mount struct {
	// Target is the directory the media is visible at.
	Target string

	detach  func() error
	mounted bool
	tempDir bool
}

// Existing wraps a directory that is already a mounted media tree (or just a
// directory to scan). Unmount leaves it alone.
func Existing(dir string) *Mount {
	return &Mount{Target: dir}
}
