// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2022-2023 Intel Corporation, or its subsidiaries.

// Package status defines the status codes returned by table operations.
package status

import (
	"errors"
	"fmt"
)

// Status is the result code of a table operation. Codes at or above
// TargetError carry a device error code as offset from TargetError.
type Status int

const (
	Success Status = iota
	MemoryError
	InvalidEntryType
	BufferError
	SchemaViolation
	InvalidTableID
	InvalidActionID
	ConstDefaultAction
	Unknown

	// TargetError is the base of the device error range.
	TargetError Status = 1000
)

var names = map[Status]string{
	Success:            "success",
	MemoryError:        "memory error",
	InvalidEntryType:   "invalid entry type",
	BufferError:        "buffer error",
	SchemaViolation:    "schema violation",
	InvalidTableID:     "invalid table id",
	InvalidActionID:    "invalid action id",
	ConstDefaultAction: "rejected: table declares fixed default action",
	Unknown:            "unknown error",
}

// FromTarget maps a device error code into the status space.
func FromTarget(code int) Status {
	return TargetError + Status(code)
}

// IsTarget reports whether s carries a device error code.
func (s Status) IsTarget() bool {
	return s >= TargetError
}

// TargetCode returns the device error code carried by s.
func (s Status) TargetCode() int {
	if !s.IsTarget() {
		return 0
	}
	return int(s - TargetError)
}

func (s Status) String() string {
	if s.IsTarget() {
		return fmt.Sprintf("target error %d", s.TargetCode())
	}
	if n, ok := names[s]; ok {
		return n
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Error is a failed table operation.
type Error struct {
	Status      Status
	Op          string
	Table       string
	Description string
	Err         error
}

// Errorf builds an Error for op on table.
func Errorf(s Status, op, table, format string, args ...interface{}) *Error {
	return &Error{Status: s, Op: op, Table: table, Description: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error for op on table caused by err.
func Wrap(s Status, op, table string, err error) *Error {
	return &Error{Status: s, Op: op, Table: table, Description: err.Error(), Err: err}
}

func (e *Error) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Status, e.Description)
	}
	return fmt.Sprintf("%s on table %s: %s: %s", e.Op, e.Table, e.Status, e.Description)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Code returns the status carried by err. A nil error is Success and an error
// without a status is Unknown.
func Code(err error) Status {
	if err == nil {
		return Success
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Status
	}
	return Unknown
}
