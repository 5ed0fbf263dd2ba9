// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2022-2023 Intel Corporation, or its subsidiaries.

package p4driverAPI

import (
	"errors"
	"fmt"

	"github.com/antoninbas/p4runtime-go-client/pkg/client"
	p4_v1 "github.com/p4lang/p4runtime/go/p4/v1"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/opiproject/opi-pi-tables/pkg/device"
	"github.com/opiproject/opi-pi-tables/pkg/matchkey"
	"github.com/opiproject/opi-pi-tables/pkg/p4info"
	"github.com/opiproject/opi-pi-tables/pkg/utils"
)

var errMatchField = errors.New("match field does not fit table")

func boolToBytes(val bool) []byte {
	if val {
		return []byte{1}
	}
	return []byte{0}
}

func allZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

// Buildmfs turns a match key into the named match fields of the table.
// Don't-care fields (zero ternary mask, zero prefix length) are left out, as
// P4Runtime requires.
func Buildmfs(t *p4info.Table, key matchkey.Key) (map[string]client.MatchInterface, error) {
	if len(key) != len(t.MatchFields) {
		return nil, fmt.Errorf("%w: %s has %d fields, key has %d", errMatchField, t.Name, len(t.MatchFields), len(key))
	}
	mfs := map[string]client.MatchInterface{}
	for i, f := range key {
		name := t.MatchFields[i].Name
		switch v := f.(type) {
		case *matchkey.Valid:
			mfs[name] = &client.ExactMatch{Value: boolToBytes(v.Present)}
		case *matchkey.Exact:
			mfs[name] = &client.ExactMatch{Value: v.Key}
		case *matchkey.LPM:
			if v.PrefixLen == 0 {
				continue
			}
			mfs[name] = &client.LpmMatch{Value: v.Key, PLen: int32(v.PrefixLen)}
		case *matchkey.Ternary:
			if allZero(v.Mask) {
				continue
			}
			mfs[name] = &client.TernaryMatch{Value: v.Key, Mask: v.Mask}
		case *matchkey.Range:
			mfs[name] = &client.RangeMatch{Low: v.Start, High: v.End}
		default:
			return nil, fmt.Errorf("%w: field %s has type %T", errMatchField, name, f)
		}
	}
	return mfs, nil
}

func pad(v []byte, d matchkey.Descriptor, name string) ([]byte, error) {
	b, ok := utils.PadLeft(v, d.ByteWidth())
	if !ok {
		return nil, fmt.Errorf("%w: %s value is %d bytes, field is %d", errMatchField, name, len(v), d.ByteWidth())
	}
	return b, nil
}

// rangeMax is the largest value of a field of bitwidth bits.
func rangeMax(d matchkey.Descriptor) []byte {
	b := make([]byte, d.ByteWidth())
	for i := range b {
		b[i] = 0xff
	}
	if rem := d.Bitwidth % 8; rem != 0 && len(b) > 0 {
		b[0] = byte(1<<rem) - 1
	}
	return b
}

// matchFromProto rebuilds a match key in table order from the field matches
// of a read entry. Omitted fields get their don't-care value and every value
// is restored to the full field width.
func matchFromProto(t *p4info.Table, fms []*p4_v1.FieldMatch) (matchkey.Key, error) {
	byID := make(map[uint32]*p4_v1.FieldMatch, len(fms))
	for _, fm := range fms {
		byID[fm.GetFieldId()] = fm
	}

	key := make(matchkey.Key, 0, len(t.MatchFields))
	for _, mf := range t.MatchFields {
		fm, ok := byID[mf.ID]
		d := mf.Descriptor
		switch d.Type {
		case matchkey.TypeValid:
			key = append(key, &matchkey.Valid{Present: ok && !allZero(fm.GetExact().GetValue())})
		case matchkey.TypeExact:
			if !ok {
				return nil, fmt.Errorf("%w: exact field %s missing", errMatchField, mf.Name)
			}
			v, err := pad(fm.GetExact().GetValue(), d, mf.Name)
			if err != nil {
				return nil, err
			}
			key = append(key, &matchkey.Exact{Key: v})
		case matchkey.TypeLPM:
			f := &matchkey.LPM{Key: make([]byte, d.ByteWidth())}
			if ok {
				v, err := pad(fm.GetLpm().GetValue(), d, mf.Name)
				if err != nil {
					return nil, err
				}
				f.Key, f.PrefixLen = v, uint32(fm.GetLpm().GetPrefixLen())
			}
			key = append(key, f)
		case matchkey.TypeTernary:
			f := &matchkey.Ternary{Key: make([]byte, d.ByteWidth()), Mask: make([]byte, d.ByteWidth())}
			if ok {
				v, err := pad(fm.GetTernary().GetValue(), d, mf.Name)
				if err != nil {
					return nil, err
				}
				m, err := pad(fm.GetTernary().GetMask(), d, mf.Name)
				if err != nil {
					return nil, err
				}
				f.Key, f.Mask = v, m
			}
			key = append(key, f)
		case matchkey.TypeRange:
			f := &matchkey.Range{Start: make([]byte, d.ByteWidth()), End: rangeMax(d)}
			if ok {
				lo, err := pad(fm.GetRange().GetLow(), d, mf.Name)
				if err != nil {
					return nil, err
				}
				hi, err := pad(fm.GetRange().GetHigh(), d, mf.Name)
				if err != nil {
					return nil, err
				}
				f.Start, f.End = lo, hi
			}
			key = append(key, f)
		default:
			return nil, fmt.Errorf("%w: field %s has type %s", errMatchField, mf.Name, d.Type)
		}
	}
	return key, nil
}

// actionFromProto converts a read table action. Parameters are returned in
// declaration order as the device sent them, possibly shorter than declared.
func actionFromProto(schema p4info.Lookup, ta *p4_v1.TableAction) (device.ActionEntry, error) {
	switch v := ta.GetType().(type) {
	case *p4_v1.TableAction_Action:
		a, ok := schema.Action(v.Action.GetActionId())
		if !ok {
			return device.ActionEntry{}, &device.OperationError{
				Code:        device.InvalidActionName,
				Description: fmt.Sprintf("unknown action id %d", v.Action.GetActionId()),
			}
		}
		byID := make(map[uint32][]byte, len(v.Action.GetParams()))
		for _, p := range v.Action.GetParams() {
			byID[p.GetParamId()] = p.GetValue()
		}
		params := make([][]byte, len(a.Params))
		for i, p := range a.Params {
			params[i] = byID[p.ID]
		}
		return device.ActionEntry{Type: device.ActionEntryData, ActionName: a.Name, Params: params}, nil
	case *p4_v1.TableAction_ActionProfileMemberId:
		return device.ActionEntry{Type: device.ActionEntryIndirect, IndirectHandle: uint64(v.ActionProfileMemberId)}, nil
	case *p4_v1.TableAction_ActionProfileGroupId:
		return device.ActionEntry{
			Type:           device.ActionEntryIndirect,
			IndirectHandle: uint64(v.ActionProfileGroupId) | device.GroupHandleFlag,
		}, nil
	default:
		return device.ActionEntry{Type: device.ActionEntryNone}, nil
	}
}

// indirectAction builds the table action for an action profile member or
// group handle.
func indirectAction(h uint64) *p4_v1.TableAction {
	if device.IsGroupHandle(h) {
		return &p4_v1.TableAction{
			Type: &p4_v1.TableAction_ActionProfileGroupId{ActionProfileGroupId: uint32(h &^ device.GroupHandleFlag)},
		}
	}
	return &p4_v1.TableAction{
		Type: &p4_v1.TableAction_ActionProfileMemberId{ActionProfileMemberId: uint32(h)},
	}
}

var grpcCodes = map[codes.Code]device.TableOperationErrorCode{
	codes.AlreadyExists:     device.DuplicateEntry,
	codes.NotFound:          device.InvalidHandle,
	codes.ResourceExhausted: device.TableFull,
	codes.InvalidArgument:   device.BadMatchKey,
}

// operationError maps a P4Runtime RPC failure onto a table operation error.
func operationError(err error) error {
	if err == nil {
		return nil
	}
	var oe *device.OperationError
	if errors.As(err, &oe) {
		return err
	}
	if errors.Is(err, ErrUnknownHandle) {
		return &device.OperationError{Code: device.InvalidHandle, Description: err.Error()}
	}
	code := device.Error
	desc := err.Error()
	if s, ok := status.FromError(err); ok {
		if c, found := grpcCodes[s.Code()]; found {
			code = c
		}
		desc = s.Message()
	}
	return &device.OperationError{Code: code, Description: desc}
}
