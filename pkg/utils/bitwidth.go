// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2022-2023 Intel Corporation, or its subsidiaries.

package utils

// BytesForBits returns the number of bytes needed to hold a value of the given
// bit width.
func BytesForBits(bits uint32) int {
	return int((bits + 7) / 8)
}

// PadLeft returns b left-padded with zero bytes to width. It returns ok=false
// when b is already longer than width.
func PadLeft(b []byte, width int) (padded []byte, ok bool) {
	if len(b) > width {
		return nil, false
	}
	padded = make([]byte, width)
	copy(padded[width-len(b):], b)
	return padded, true
}
