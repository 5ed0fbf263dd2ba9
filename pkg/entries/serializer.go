// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2022-2023 Intel Corporation, or its subsidiaries.

// Package entries serializes fetched table entries into one self-describing
// buffer and parses such buffers back using the table schema.
//
// Per entry, in order:
//
//	handle          8 bytes
//	match key       table match key size, per-field encoding of package matchkey
//	action id       4 bytes
//	action data len 4 bytes
//	action data     packed by package actiondata
//	properties      4 bytes bitmap
//	priority        4 bytes, only when the priority bit is set
//
// All integers are big-endian.
package entries

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"

	"github.com/c2h5oh/datasize"
	binarypack "github.com/roman-kachanovsky/go-binary-pack/binary-pack"
	log "github.com/sirupsen/logrus"

	"github.com/opiproject/opi-pi-tables/pkg/actiondata"
	"github.com/opiproject/opi-pi-tables/pkg/matchkey"
	"github.com/opiproject/opi-pi-tables/pkg/p4info"
)

// PropertyPriority is the bit of the properties bitmap announcing a priority.
const PropertyPriority = 0

var (
	// ErrUnknownTable is returned for a table id missing from the schema.
	ErrUnknownTable = errors.New("unknown table")
	// ErrUnknownAction is returned for an action id missing from the schema.
	ErrUnknownAction = errors.New("unknown action")
	// ErrBufferTooLarge is returned when a fetch result would exceed the
	// configured buffer limit.
	ErrBufferTooLarge = errors.New("fetch result exceeds buffer limit")
	// ErrBufferOverflow is returned when the fill pass writes past the
	// capacity computed by the size pass.
	ErrBufferOverflow = errors.New("fetch result buffer overflow")
	// ErrReleased is returned when a result is released twice.
	ErrReleased = errors.New("fetch result already released")
)

// entryFormat describes one serialized entry in go-binary-pack tokens:
// handle, match key, action id, action data length, action data, properties
// bitmap and, when withPriority is set, the priority.
func entryFormat(matchKeySize, dataSize int, withPriority bool) []string {
	format := []string{"Q", strconv.Itoa(matchKeySize) + "s", "I", "I", strconv.Itoa(dataSize) + "s", "I"}
	if withPriority {
		format = append(format, "I")
	}
	return format
}

func entrySize(matchKeySize, dataSize int, withPriority bool) (int, error) {
	n, err := new(binarypack.BinaryPack).CalcSize(entryFormat(matchKeySize, dataSize, withPriority))
	if err != nil {
		return 0, fmt.Errorf("entry layout: %w", err)
	}
	return n, nil
}

// FetchedEntry is one table entry returned by the device.
type FetchedEntry struct {
	Handle   uint64
	Match    matchkey.Key
	ActionID uint32
	Params   [][]byte
	Priority *uint32
}

// FetchResult holds the serialized entries of one fetch. The caller owns it
// until Release.
type FetchResult struct {
	NumEntries   int
	MatchKeySize int
	// Size is the number of bytes written.
	Size int
	// Capacity is the number of bytes reserved by the size pass.
	Capacity int

	buf      []byte
	released bool
}

// Bytes returns the serialized entries.
func (r *FetchResult) Bytes() []byte {
	if r.released {
		return nil
	}
	return r.buf[:r.Size]
}

// Release hands the buffer back. Releasing twice returns ErrReleased and has
// no other effect.
func (r *FetchResult) Release() error {
	if r.released {
		return ErrReleased
	}
	r.released = true
	r.buf = nil
	return nil
}

// Serializer builds fetch results for tables of one schema.
type Serializer struct {
	Schema p4info.Lookup
	// MaxBufferSize bounds the capacity of a single result. Zero means no limit.
	MaxBufferSize datasize.ByteSize
}

// NewSerializer returns a Serializer bounded by maxBufferSize.
func NewSerializer(schema p4info.Lookup, maxBufferSize datasize.ByteSize) *Serializer {
	return &Serializer{Schema: schema, MaxBufferSize: maxBufferSize}
}

// Capacity returns the number of bytes to reserve for entries of table. The
// priority slot is reserved for every entry; entries without a priority write
// only the bitmap, so the written size may be smaller.
func (s *Serializer) Capacity(table *p4info.Table, entries []FetchedEntry) (int, error) {
	size := 0
	for i := range entries {
		action, ok := s.Schema.Action(entries[i].ActionID)
		if !ok {
			return 0, fmt.Errorf("%w: %d", ErrUnknownAction, entries[i].ActionID)
		}
		n, err := entrySize(table.MatchKeySize(), action.DataSize(), true)
		if err != nil {
			return 0, err
		}
		size += n
	}
	return size, nil
}

// Serialize writes entries of the table into a single buffer allocated once.
func (s *Serializer) Serialize(tableID uint32, entries []FetchedEntry) (*FetchResult, error) {
	table, ok := s.Schema.Table(tableID)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownTable, tableID)
	}

	capacity, err := s.Capacity(table, entries)
	if err != nil {
		return nil, err
	}
	if s.MaxBufferSize > 0 && uint64(capacity) > s.MaxBufferSize.Bytes() {
		return nil, fmt.Errorf("%w: need %s, limit %s", ErrBufferTooLarge,
			datasize.ByteSize(capacity).HumanReadable(), s.MaxBufferSize.HumanReadable())
	}

	buf := make([]byte, 0, capacity)
	descs := table.Descriptors()
	for i := range entries {
		buf, err = s.appendEntry(buf, descs, &entries[i])
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
	}

	log.Debugf("entries: serialized %d entries of %s into %d/%d bytes", len(entries), table.Name, len(buf), capacity)
	return &FetchResult{
		NumEntries:   len(entries),
		MatchKeySize: table.MatchKeySize(),
		Size:         len(buf),
		Capacity:     capacity,
		buf:          buf,
	}, nil
}

func (s *Serializer) appendEntry(buf []byte, descs []matchkey.Descriptor, e *FetchedEntry) ([]byte, error) {
	if err := matchkey.Check(e.Match, descs); err != nil {
		return nil, err
	}
	action, ok := s.Schema.Action(e.ActionID)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownAction, e.ActionID)
	}

	need, err := entrySize(e.Match.EncodedLen(), action.DataSize(), e.Priority != nil)
	if err != nil {
		return nil, err
	}
	if len(buf)+need > cap(buf) {
		return nil, ErrBufferOverflow
	}

	buf = binary.BigEndian.AppendUint64(buf, e.Handle)
	buf = matchkey.AppendKey(buf, e.Match)
	buf = binary.BigEndian.AppendUint32(buf, action.ID)
	buf = binary.BigEndian.AppendUint32(buf, uint32(action.DataSize()))
	buf, err = actiondata.AppendPacked(buf, e.Params, action.Bitwidths())
	if err != nil {
		return nil, err
	}

	if e.Priority != nil {
		buf = binary.BigEndian.AppendUint32(buf, 1<<PropertyPriority)
		buf = binary.BigEndian.AppendUint32(buf, *e.Priority)
	} else {
		buf = binary.BigEndian.AppendUint32(buf, 0)
	}
	return buf, nil
}
