// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2022-2023 Intel Corporation, or its subsidiaries.

package actiondata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackPadsToDeclaredWidth(t *testing.T) {
	data, err := Pack([][]byte{{0x05}}, []uint32{32})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x05}, data)
}

func TestPackEmpty(t *testing.T) {
	data, err := Pack([][]byte{{}}, []uint32{0})
	require.NoError(t, err)
	assert.Empty(t, data)

	data, err = Pack(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestPackMultipleParams(t *testing.T) {
	// 9 bits -> 2 bytes, 48 bits -> 6 bytes, 1 bit -> 1 byte
	params := [][]byte{
		{0x01},
		{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff},
		{},
	}
	data, err := Pack(params, []uint32{9, 48, 1})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x01, 0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff, 0x00}, data)
	assert.Len(t, data, SizeOf([]uint32{9, 48, 1}))
}

func TestPackRejectsOversizedParam(t *testing.T) {
	_, err := Pack([][]byte{{1, 2, 3, 4, 5}}, []uint32{32})
	assert.ErrorIs(t, err, ErrSchemaViolation)
}

func TestPackRejectsCountMismatch(t *testing.T) {
	_, err := Pack([][]byte{{1}}, []uint32{8, 8})
	assert.ErrorIs(t, err, ErrSchemaViolation)
}

func TestAppendPackedKeepsPrefix(t *testing.T) {
	data, err := AppendPacked([]byte{0xde, 0xad}, [][]byte{{0x07}}, []uint32{16})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad, 0x00, 0x07}, data)
}

func TestUnpack(t *testing.T) {
	params, err := Unpack([]byte{0x00, 0x01, 0x02, 0x03, 0x04}, []uint32{16, 24})
	require.NoError(t, err)
	assert.Equal(t, [][]byte{{0x00, 0x01}, {0x02, 0x03, 0x04}}, params)

	_, err = Unpack([]byte{0x00}, []uint32{16})
	assert.ErrorIs(t, err, ErrSchemaViolation)
}

func TestPackUnpackRoundTrip(t *testing.T) {
	widths := []uint32{1, 7, 8, 9, 32, 64}
	params := [][]byte{{1}, {0x7f}, {}, {0x01, 0xff}, {0xc0, 0xa8, 0x00, 0x01}, {0x12}}

	data, err := Pack(params, widths)
	require.NoError(t, err)

	unpacked, err := Unpack(data, widths)
	require.NoError(t, err)

	repacked, err := Pack(unpacked, widths)
	require.NoError(t, err)
	assert.Equal(t, data, repacked)
}
