// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2022-2023 Intel Corporation, or its subsidiaries.

package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOperationErrorNames(t *testing.T) {
	assert.Equal(t, "TABLE_FULL", TableFull.String())
	assert.Equal(t, "DUPLICATE_ENTRY", DuplicateEntry.String())
	assert.Equal(t, "ERROR", Error.String())
	assert.Equal(t, "UNKNOWN_ERROR(99)", TableOperationErrorCode(99).String())

	err := &OperationError{Code: BadMatchKey, Description: "field 2"}
	assert.Equal(t, "BAD_MATCH_KEY: field 2", err.Error())
	assert.Equal(t, "INVALID_HANDLE", (&OperationError{Code: InvalidHandle}).Error())
}

func TestGroupHandle(t *testing.T) {
	assert.True(t, IsGroupHandle(GroupHandleFlag|7))
	assert.False(t, IsGroupHandle(7))
}
