// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2022-2023 Intel Corporation, or its subsidiaries.

//go:generate mockery --name Device --output ./mocks --outpkg mocks

// Package device describes the device-management runtime that table
// operations are dispatched to.
package device

import (
	"context"
	"fmt"

	"github.com/opiproject/opi-pi-tables/pkg/matchkey"
)

// GroupHandleFlag marks an indirect handle as an action profile group.
// Handles without it refer to action profile members.
const GroupHandleFlag uint64 = 1 << 63

// IsGroupHandle reports whether an indirect handle refers to a group.
func IsGroupHandle(h uint64) bool {
	return h&GroupHandleFlag != 0
}

// EntryOptions carries the optional properties of a table entry.
type EntryOptions struct {
	Priority *int32
}

// ActionEntryType tells how an entry's action is given.
type ActionEntryType int

const (
	ActionEntryNone ActionEntryType = iota
	ActionEntryData
	ActionEntryIndirect
)

// ActionEntry is the action part of a table entry as reported by the device.
type ActionEntry struct {
	Type           ActionEntryType
	ActionName     string
	Params         [][]byte
	IndirectHandle uint64
}

// Entry is one table entry as reported by the device.
type Entry struct {
	Handle   uint64
	Match    matchkey.Key
	Action   ActionEntry
	Priority *int32
}

// Device is the device-management runtime. Every call is a single synchronous
// round trip; failures are *OperationError.
type Device interface {
	AddEntry(ctx context.Context, table string, match matchkey.Key, action string, params [][]byte, opts EntryOptions) (uint64, error)
	AddIndirectEntry(ctx context.Context, table string, match matchkey.Key, indirectHandle uint64, opts EntryOptions) (uint64, error)
	SetDefaultAction(ctx context.Context, table string, action string, params [][]byte) error
	// GetDefaultEntry returns nil when the table has no default entry set.
	GetDefaultEntry(ctx context.Context, table string) (*ActionEntry, error)
	DeleteEntry(ctx context.Context, table string, handle uint64) error
	ModifyEntry(ctx context.Context, table string, handle uint64, action string, params [][]byte) error
	FetchEntries(ctx context.Context, table string) ([]Entry, error)
}

// TableOperationErrorCode is the device's error code for a failed table
// operation.
type TableOperationErrorCode int

const (
	TableFull TableOperationErrorCode = iota + 1
	InvalidHandle
	ExpiredHandle
	CounterDisabled
	MeterDisabled
	AgeingDisabled
	InvalidTableName
	InvalidActionName
	WrongTableType
	InvalidMbrHandle
	MbrStillUsed
	MbrAlreadyInGrp
	MbrNotInGrp
	InvalidGrpHandle
	GrpStillUsed
	EmptyGrp
	DuplicateEntry
	BadMatchKey
	InvalidMeterOperation
	DefaultActionIsConst
	DefaultEntryIsConst
	NoDefaultEntry
	InvalidActionProfileName
	NoActionProfileSelection
	ImmutableTableEntry
	BadActionData
	NoActionsForTable
	Error
)

var operationErrorNames = [...]string{
	"",
	"TABLE_FULL",
	"INVALID_HANDLE",
	"EXPIRED_HANDLE",
	"COUNTERS_DISABLED",
	"METERS_DISABLED",
	"AGEING_DISABLED",
	"INVALID_TABLE_NAME",
	"INVALID_ACTION_NAME",
	"WRONG_TABLE_TYPE",
	"INVALID_MBR_HANDLE",
	"MBR_STILL_USED",
	"MBR_ALREADY_IN_GRP",
	"MBR_NOT_IN_GRP",
	"INVALID_GRP_HANDLE",
	"GRP_STILL_USED",
	"EMPTY_GRP",
	"DUPLICATE_ENTRY",
	"BAD_MATCH_KEY",
	"INVALID_METER_OPERATION",
	"DEFAULT_ACTION_IS_CONST",
	"DEFAULT_ENTRY_IS_CONST",
	"NO_DEFAULT_ENTRY",
	"INVALID_ACTION_PROFILE_NAME",
	"NO_ACTION_PROFILE_SELECTION",
	"IMMUTABLE_TABLE_ENTRY",
	"BAD_ACTION_DATA",
	"NO_ACTIONS_FOR_TABLE",
	"ERROR",
}

func (c TableOperationErrorCode) String() string {
	if c > 0 && int(c) < len(operationErrorNames) {
		return operationErrorNames[c]
	}
	return fmt.Sprintf("UNKNOWN_ERROR(%d)", int(c))
}

// OperationError is a failure reported by the device.
type OperationError struct {
	Code        TableOperationErrorCode
	Description string
}

func (e *OperationError) Error() string {
	if e.Description == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}
