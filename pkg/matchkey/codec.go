// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2022-2023 Intel Corporation, or its subsidiaries.

package matchkey

import (
	"encoding/binary"
	"fmt"
)

// Decode parses a packed match key laid out as the concatenation of the
// per-field encodings in descriptor order. The second return value is true
// when the key contains a ternary or range field. buf must hold exactly
// Size(descs) bytes.
func Decode(buf []byte, descs []Descriptor) (Key, bool, error) {
	switch size := Size(descs); {
	case len(buf) < size:
		return nil, false, fmt.Errorf("%w: have %d bytes, need %d", ErrShortBuffer, len(buf), size)
	case len(buf) > size:
		return nil, false, fmt.Errorf("%w: have %d bytes, need %d", ErrTrailingBytes, len(buf), size)
	}

	key := make(Key, 0, len(descs))
	requiresPriority := false
	off := 0
	next := func(n int) []byte {
		b := make([]byte, n)
		copy(b, buf[off:off+n])
		off += n
		return b
	}

	for i, d := range descs {
		nbytes := d.ByteWidth()
		switch d.Type {
		case TypeValid:
			key = append(key, &Valid{Present: buf[off] != 0})
			off++
		case TypeExact:
			key = append(key, &Exact{Key: next(nbytes)})
		case TypeLPM:
			k := next(nbytes)
			pLen := binary.BigEndian.Uint32(buf[off:])
			off += prefixLenSize
			key = append(key, &LPM{Key: k, PrefixLen: pLen})
		case TypeTernary:
			k := next(nbytes)
			key = append(key, &Ternary{Key: k, Mask: next(nbytes)})
			requiresPriority = true
		case TypeRange:
			start := next(nbytes)
			key = append(key, &Range{Start: start, End: next(nbytes)})
			requiresPriority = true
		default:
			return nil, false, fmt.Errorf("%w: field %d has unknown match type %v", ErrSchemaViolation, i, d.Type)
		}
	}

	return key, requiresPriority, nil
}

// Encode packs the key using the same per-field layout Decode reads.
func Encode(key Key) []byte {
	return AppendKey(make([]byte, 0, key.EncodedLen()), key)
}

// AppendKey appends the packed key to dst and returns the extended buffer.
func AppendKey(dst []byte, key Key) []byte {
	for _, f := range key {
		dst = f.appendTo(dst)
	}
	return dst
}

// Check verifies that every field carries the declared match type and that
// its values are exactly the declared byte width.
func Check(key Key, descs []Descriptor) error {
	if len(key) != len(descs) {
		return fmt.Errorf("%w: %d fields for %d key fields", ErrSchemaViolation, len(key), len(descs))
	}
	for i, f := range key {
		d := descs[i]
		if f.Type() != d.Type {
			return fmt.Errorf("%w: field %d is %v, table declares %v", ErrSchemaViolation, i, f.Type(), d.Type)
		}
		for _, v := range f.values() {
			if len(v) != d.ByteWidth() {
				return fmt.Errorf("%w: field %d has a %d byte value, expected %d", ErrSchemaViolation, i, len(v), d.ByteWidth())
			}
		}
	}
	return nil
}
