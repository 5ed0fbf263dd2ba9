// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2022-2023 Intel Corporation, or its subsidiaries.

// Package actiondata packs action parameters into fixed-width buffers.
//
// The device may return parameter values with leading zero bytes removed;
// packing restores every value to the byte width derived from the declared
// bit width, so a packed buffer can always be sliced back by declared widths.
package actiondata

import (
	"errors"
	"fmt"

	"github.com/opiproject/opi-pi-tables/pkg/utils"
)

// ErrSchemaViolation marks parameters that disagree with the action schema.
var ErrSchemaViolation = errors.New("action parameters do not match action schema")

// ActionData is the packed action payload exchanged with the caller.
type ActionData struct {
	ActionID uint32
	Data     []byte
}

// SizeOf returns the packed size of an action whose parameters have the given
// bit widths.
func SizeOf(bitwidths []uint32) int {
	n := 0
	for _, bw := range bitwidths {
		n += utils.BytesForBits(bw)
	}
	return n
}

// Pack left-pads each parameter with zero bytes to its declared width and
// concatenates the results.
func Pack(params [][]byte, bitwidths []uint32) ([]byte, error) {
	buf := make([]byte, 0, SizeOf(bitwidths))
	return AppendPacked(buf, params, bitwidths)
}

// AppendPacked is Pack writing into dst.
func AppendPacked(dst []byte, params [][]byte, bitwidths []uint32) ([]byte, error) {
	if len(params) != len(bitwidths) {
		return nil, fmt.Errorf("%w: got %d parameters, action declares %d", ErrSchemaViolation, len(params), len(bitwidths))
	}
	for i, p := range params {
		nbytes := utils.BytesForBits(bitwidths[i])
		if len(p) > nbytes {
			return nil, fmt.Errorf("%w: parameter %d is %d bytes, declared width is %d", ErrSchemaViolation, i, len(p), nbytes)
		}
		for diff := nbytes - len(p); diff > 0; diff-- {
			dst = append(dst, 0)
		}
		dst = append(dst, p...)
	}
	return dst, nil
}

// Unpack slices a packed buffer into one value per declared parameter. The
// returned values are copies.
func Unpack(data []byte, bitwidths []uint32) ([][]byte, error) {
	if len(data) != SizeOf(bitwidths) {
		return nil, fmt.Errorf("%w: action data is %d bytes, expected %d", ErrSchemaViolation, len(data), SizeOf(bitwidths))
	}
	params := make([][]byte, len(bitwidths))
	off := 0
	for i, bw := range bitwidths {
		nbytes := utils.BytesForBits(bw)
		params[i] = append([]byte(nil), data[off:off+nbytes]...)
		off += nbytes
	}
	return params, nil
}
