// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package ioutil_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isotools/isocheck/internal/ioutil"
)

func TestReadFullAt(t *testing.T) {
	src := bytes.NewReader([]byte("0123456789"))

	buf := make([]byte, 4)
	require.NoError(t, ioutil.ReadFullAt(src, buf, 3))
	assert.Equal(t, "3456", string(buf))

	// exact tail read should not report EOF
	require.NoError(t, ioutil.ReadFullAt(src, buf, 6))
	assert.Equal(t, "6789", string(buf))

	err := ioutil.ReadFullAt(src, buf, 8)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestReadRange(t *testing.T) {
	src := bytes.NewReader([]byte("abcdef"))

	buf, err := ioutil.ReadRange(src, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, "cde", string(buf))

	_, err = ioutil.ReadRange(src, 4, 100)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.ErrorContains(t, err, "offset 4")
}
