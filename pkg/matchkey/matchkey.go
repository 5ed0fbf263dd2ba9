// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2022-2023 Intel Corporation, or its subsidiaries.

// Package matchkey converts between the packed match-key buffer used by the
// control API and the typed match-field records sent to the device.
package matchkey

import (
	"encoding/binary"
	"errors"

	"github.com/opiproject/opi-pi-tables/pkg/utils"
)

//go:generate stringer -type=Type -trimprefix=Type

// Type is the match type of a table key field.
type Type int

// Values follow the PI match type numbering.
const (
	TypeValid Type = iota
	TypeExact
	TypeLPM
	TypeTernary
	TypeRange
)

// prefixLenSize is the width of the LPM prefix length on the wire.
const prefixLenSize = 4

var (
	// ErrShortBuffer is returned when the input holds fewer bytes than the
	// descriptors require.
	ErrShortBuffer = errors.New("match key buffer too short")
	// ErrTrailingBytes is returned when the input holds more bytes than the
	// descriptors describe.
	ErrTrailingBytes = errors.New("match key buffer has trailing bytes")
	// ErrSchemaViolation marks a record that does not agree with the table schema.
	ErrSchemaViolation = errors.New("match key does not match table schema")
)

// Descriptor describes one match field of a table, in declaration order.
type Descriptor struct {
	Type     Type
	Bitwidth uint32
}

// ByteWidth returns the number of bytes holding a value of the field.
func (d Descriptor) ByteWidth() int {
	return utils.BytesForBits(d.Bitwidth)
}

// EncodedSize returns the number of bytes the field occupies in a packed key.
func (d Descriptor) EncodedSize() int {
	w := d.ByteWidth()
	switch d.Type {
	case TypeValid:
		return 1
	case TypeExact:
		return w
	case TypeLPM:
		return w + prefixLenSize
	case TypeTernary, TypeRange:
		return 2 * w
	}
	return 0
}

// Size returns the size of a packed key for the given fields.
func Size(descs []Descriptor) int {
	n := 0
	for _, d := range descs {
		n += d.EncodedSize()
	}
	return n
}

// Field is one decoded match field. The set of implementations is closed:
// Valid, Exact, LPM, Ternary and Range.
type Field interface {
	Type() Type
	// EncodedLen is the number of bytes appendTo writes.
	EncodedLen() int
	appendTo(b []byte) []byte
	// values lists the byte strings of the field, each the field width.
	values() [][]byte
}

// Valid matches on header validity.
type Valid struct {
	Present bool
}

// Exact matches the key verbatim.
type Exact struct {
	Key []byte
}

// LPM is a longest-prefix match.
type LPM struct {
	Key       []byte
	PrefixLen uint32
}

// Ternary matches Key under Mask.
type Ternary struct {
	Key  []byte
	Mask []byte
}

// Range is an inclusive [Start, End] interval.
type Range struct {
	Start []byte
	End   []byte
}

func (*Valid) Type() Type   { return TypeValid }
func (*Exact) Type() Type   { return TypeExact }
func (*LPM) Type() Type     { return TypeLPM }
func (*Ternary) Type() Type { return TypeTernary }
func (*Range) Type() Type   { return TypeRange }

func (*Valid) EncodedLen() int     { return 1 }
func (f *Exact) EncodedLen() int   { return len(f.Key) }
func (f *LPM) EncodedLen() int     { return len(f.Key) + prefixLenSize }
func (f *Ternary) EncodedLen() int { return len(f.Key) + len(f.Mask) }
func (f *Range) EncodedLen() int   { return len(f.Start) + len(f.End) }

func (*Valid) values() [][]byte     { return nil }
func (f *Exact) values() [][]byte   { return [][]byte{f.Key} }
func (f *LPM) values() [][]byte     { return [][]byte{f.Key} }
func (f *Ternary) values() [][]byte { return [][]byte{f.Key, f.Mask} }
func (f *Range) values() [][]byte   { return [][]byte{f.Start, f.End} }

func (f *Valid) appendTo(b []byte) []byte {
	if f.Present {
		return append(b, 1)
	}
	return append(b, 0)
}

func (f *Exact) appendTo(b []byte) []byte {
	return append(b, f.Key...)
}

func (f *LPM) appendTo(b []byte) []byte {
	b = append(b, f.Key...)
	return binary.BigEndian.AppendUint32(b, f.PrefixLen)
}

func (f *Ternary) appendTo(b []byte) []byte {
	b = append(b, f.Key...)
	return append(b, f.Mask...)
}

func (f *Range) appendTo(b []byte) []byte {
	b = append(b, f.Start...)
	return append(b, f.End...)
}

// Key is an ordered list of match fields, one per table key field.
type Key []Field

// RequiresPriority reports whether the key holds a ternary or range field, in
// which case the entry must carry a priority.
func (k Key) RequiresPriority() bool {
	for _, f := range k {
		switch f.Type() {
		case TypeTernary, TypeRange:
			return true
		}
	}
	return false
}

// EncodedLen returns the number of bytes Encode produces for the key.
func (k Key) EncodedLen() int {
	n := 0
	for _, f := range k {
		n += f.EncodedLen()
	}
	return n
}
