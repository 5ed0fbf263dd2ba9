// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2022-2023 Intel Corporation, or its subsidiaries.

package entries

import (
	"encoding/binary"
	"math/rand"
	"testing"

	"github.com/c2h5oh/datasize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opiproject/opi-pi-tables/pkg/actiondata"
	"github.com/opiproject/opi-pi-tables/pkg/matchkey"
	"github.com/opiproject/opi-pi-tables/pkg/p4info/p4infotest"
)

func aclEntry(handle uint64, proto byte, port uint16, priority *uint32) FetchedEntry {
	return FetchedEntry{
		Handle: handle,
		Match: matchkey.Key{
			&matchkey.Exact{Key: []byte{proto}},
			&matchkey.Ternary{Key: []byte{byte(port >> 8), byte(port)}, Mask: []byte{0xff, 0xff}},
		},
		ActionID: p4infotest.ActionSetPort,
		// device returned the 9-bit port with its leading zero byte stripped
		Params:   [][]byte{{0x03}},
		Priority: priority,
	}
}

func u32(v uint32) *uint32 { return &v }

func TestSerializeLayout(t *testing.T) {
	s := NewSerializer(p4infotest.Schema(), 0)

	res, err := s.Serialize(p4infotest.TableACL, []FetchedEntry{aclEntry(7, 6, 80, u32(10))})
	require.NoError(t, err)

	want := []byte{
		0, 0, 0, 0, 0, 0, 0, 7, // handle
		6,          // exact protocol
		0x00, 0x50, // ternary key
		0xff, 0xff, // ternary mask
		0x01, 0x00, 0x00, 0x01, // action id 16777217
		0, 0, 0, 2, // action data length
		0x00, 0x03, // port padded to 2 bytes
		0, 0, 0, 1, // properties: priority
		0, 0, 0, 10, // priority
	}
	assert.Equal(t, want, res.Bytes())
	assert.Equal(t, 1, res.NumEntries)
	assert.Equal(t, 5, res.MatchKeySize)
	assert.Equal(t, len(want), res.Size)
	assert.Equal(t, len(want), res.Capacity)
}

func TestSerializeWithoutPriorityWritesBitmapOnly(t *testing.T) {
	s := NewSerializer(p4infotest.Schema(), 0)

	res, err := s.Serialize(p4infotest.TableACL, []FetchedEntry{aclEntry(1, 17, 53, nil)})
	require.NoError(t, err)

	b := res.Bytes()
	assert.Equal(t, uint32(0), binary.BigEndian.Uint32(b[len(b)-4:]))
	assert.Equal(t, res.Capacity-4, res.Size)
}

func TestSerializeEmpty(t *testing.T) {
	s := NewSerializer(p4infotest.Schema(), 0)

	res, err := s.Serialize(p4infotest.TableACL, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.NumEntries)
	assert.Equal(t, 0, res.Size)
	assert.Equal(t, 0, res.Capacity)
	assert.Empty(t, res.Bytes())
}

func TestCapacityIsSufficient(t *testing.T) {
	s := NewSerializer(p4infotest.Schema(), 0)
	r := rand.New(rand.NewSource(1))

	for n := 0; n < 32; n++ {
		batch := make([]FetchedEntry, 0, n)
		for i := 0; i < n; i++ {
			var prio *uint32
			if r.Intn(2) == 0 {
				prio = u32(r.Uint32())
			}
			batch = append(batch, aclEntry(r.Uint64(), byte(r.Intn(256)), uint16(r.Intn(65536)), prio))
		}

		res, err := s.Serialize(p4infotest.TableACL, batch)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, res.Capacity, res.Size)
		assert.Len(t, res.Bytes(), res.Size)
	}
}

func TestSerializeBufferLimit(t *testing.T) {
	s := NewSerializer(p4infotest.Schema(), 16*datasize.B)

	_, err := s.Serialize(p4infotest.TableACL, []FetchedEntry{aclEntry(1, 6, 22, nil)})
	assert.ErrorIs(t, err, ErrBufferTooLarge)
}

func TestSerializeSchemaViolations(t *testing.T) {
	s := NewSerializer(p4infotest.Schema(), 0)

	_, err := s.Serialize(4242, nil)
	assert.ErrorIs(t, err, ErrUnknownTable)

	e := aclEntry(1, 6, 22, nil)
	e.ActionID = 99
	_, err = s.Serialize(p4infotest.TableACL, []FetchedEntry{e})
	assert.ErrorIs(t, err, ErrUnknownAction)

	e = aclEntry(1, 6, 22, nil)
	e.Params = [][]byte{{1, 2, 3}}
	_, err = s.Serialize(p4infotest.TableACL, []FetchedEntry{e})
	assert.ErrorIs(t, err, actiondata.ErrSchemaViolation)

	e = aclEntry(1, 6, 22, nil)
	e.Match[1] = &matchkey.Range{Start: []byte{0, 0}, End: []byte{0, 1}}
	_, err = s.Serialize(p4infotest.TableACL, []FetchedEntry{e})
	assert.ErrorIs(t, err, matchkey.ErrSchemaViolation)

	// right total length, wrong split between key and mask
	e = aclEntry(1, 6, 22, nil)
	e.Match[1] = &matchkey.Ternary{Key: []byte{0x16}, Mask: []byte{0x00, 0xff, 0xff}}
	_, err = s.Serialize(p4infotest.TableACL, []FetchedEntry{e})
	assert.ErrorIs(t, err, matchkey.ErrSchemaViolation)
}

func TestEntrySize(t *testing.T) {
	n, err := entrySize(5, 2, true)
	require.NoError(t, err)
	assert.Equal(t, 32, n)

	n, err = entrySize(5, 2, false)
	require.NoError(t, err)
	assert.Equal(t, 28, n)

	n, err = entrySize(0, 0, false)
	require.NoError(t, err)
	assert.Equal(t, 20, n)
}

func TestRelease(t *testing.T) {
	s := NewSerializer(p4infotest.Schema(), 0)

	res, err := s.Serialize(p4infotest.TableACL, []FetchedEntry{aclEntry(1, 6, 22, nil)})
	require.NoError(t, err)

	require.NoError(t, res.Release())
	assert.Nil(t, res.Bytes())
	assert.ErrorIs(t, res.Release(), ErrReleased)
}

func TestReaderRejectsTruncatedBuffer(t *testing.T) {
	s := NewSerializer(p4infotest.Schema(), 0)
	res, err := s.Serialize(p4infotest.TableACL, []FetchedEntry{aclEntry(1, 6, 22, u32(3))})
	require.NoError(t, err)

	b := res.Bytes()
	r, err := NewReader(p4infotest.Schema(), p4infotest.TableACL, b[:len(b)-2])
	require.NoError(t, err)
	_, err = r.ReadAll()
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestReaderRejectsBadActionDataLength(t *testing.T) {
	s := NewSerializer(p4infotest.Schema(), 0)
	res, err := s.Serialize(p4infotest.TableACL, []FetchedEntry{aclEntry(1, 6, 22, nil)})
	require.NoError(t, err)

	b := append([]byte(nil), res.Bytes()...)
	// action data length sits after handle(8), key(5) and action id(4)
	binary.BigEndian.PutUint32(b[17:], 5)
	r, err := NewReader(p4infotest.Schema(), p4infotest.TableACL, b)
	require.NoError(t, err)
	_, err = r.Next()
	assert.ErrorIs(t, err, ErrActionDataSize)
}
