// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2022-2023 Intel Corporation, or its subsidiaries.

package entries

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/opiproject/opi-pi-tables/pkg/actiondata"
	"github.com/opiproject/opi-pi-tables/pkg/matchkey"
	"github.com/opiproject/opi-pi-tables/pkg/p4info"
)

// ErrTruncated is returned when a buffer ends in the middle of an entry.
var ErrTruncated = errors.New("truncated fetch result")

// ErrActionDataSize is returned when the recorded action data length does not
// match the action schema.
var ErrActionDataSize = errors.New("action data length does not match action schema")

// Reader parses a fetch result buffer using the table schema.
type Reader struct {
	schema p4info.Lookup
	table  *p4info.Table
	buf    []byte
	off    int
}

// NewReader returns a Reader over buf holding entries of tableID.
func NewReader(schema p4info.Lookup, tableID uint32, buf []byte) (*Reader, error) {
	table, ok := schema.Table(tableID)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownTable, tableID)
	}
	return &Reader{schema: schema, table: table, buf: buf}, nil
}

func (r *Reader) take(n int) ([]byte, error) {
	if r.off+n > len(r.buf) {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrTruncated, n, r.off, len(r.buf)-r.off)
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *Reader) uint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// Next returns the next entry, or io.EOF once the buffer is consumed.
func (r *Reader) Next() (*FetchedEntry, error) {
	if r.off == len(r.buf) {
		return nil, io.EOF
	}

	e := &FetchedEntry{}
	b, err := r.take(8)
	if err != nil {
		return nil, err
	}
	e.Handle = binary.BigEndian.Uint64(b)

	if b, err = r.take(r.table.MatchKeySize()); err != nil {
		return nil, err
	}
	if e.Match, _, err = matchkey.Decode(b, r.table.Descriptors()); err != nil {
		return nil, err
	}

	if e.ActionID, err = r.uint32(); err != nil {
		return nil, err
	}
	action, ok := r.schema.Action(e.ActionID)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownAction, e.ActionID)
	}
	size, err := r.uint32()
	if err != nil {
		return nil, err
	}
	if int(size) != action.DataSize() {
		return nil, fmt.Errorf("%w: %s has %d bytes, recorded %d", ErrActionDataSize, action.Name, action.DataSize(), size)
	}
	if b, err = r.take(int(size)); err != nil {
		return nil, err
	}
	if e.Params, err = actiondata.Unpack(b, action.Bitwidths()); err != nil {
		return nil, err
	}

	properties, err := r.uint32()
	if err != nil {
		return nil, err
	}
	if properties&(1<<PropertyPriority) != 0 {
		priority, err := r.uint32()
		if err != nil {
			return nil, err
		}
		e.Priority = &priority
	}
	return e, nil
}

// ReadAll parses every remaining entry.
func (r *Reader) ReadAll() ([]FetchedEntry, error) {
	var out []FetchedEntry
	for {
		e, err := r.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
}
