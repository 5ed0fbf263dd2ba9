// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2022-2023 Intel Corporation, or its subsidiaries.

// Package p4infotest provides a small P4 program description for tests.
package p4infotest

import (
	p4config "github.com/p4lang/p4runtime/go/p4/config/v1"

	"github.com/opiproject/opi-pi-tables/pkg/p4info"
)

// Table ids of the fixture program.
const (
	TableACL     uint32 = 33554433
	TableIPv4LPM uint32 = 33554434
	TableMixed   uint32 = 33554435
	TableECMP    uint32 = 33554436
)

// Action ids of the fixture program.
const (
	ActionSetPort uint32 = 16777217
	ActionDrop    uint32 = 16777218
	ActionSetNhop uint32 = 16777219
)

// Names of the fixture tables and actions.
const (
	ACLName     = "ingress.acl"
	IPv4LPMName = "ingress.ipv4_lpm"
	MixedName   = "ingress.mixed"
	ECMPName    = "ingress.ecmp"

	SetPortName = "ingress.set_port"
	DropName    = "ingress.drop"
	SetNhopName = "ingress.set_nhop"
)

func preamble(id uint32, name string) *p4config.Preamble {
	return &p4config.Preamble{Id: id, Name: name}
}

func field(id uint32, name string, bw int32, mt p4config.MatchField_MatchType) *p4config.MatchField {
	return &p4config.MatchField{
		Id:       id,
		Name:     name,
		Bitwidth: bw,
		Match:    &p4config.MatchField_MatchType_{MatchType: mt},
	}
}

func refs(ids ...uint32) []*p4config.ActionRef {
	r := make([]*p4config.ActionRef, 0, len(ids))
	for _, id := range ids {
		r = append(r, &p4config.ActionRef{Id: id})
	}
	return r
}

// Info returns a fresh copy of the fixture program.
func Info() *p4config.P4Info {
	return &p4config.P4Info{
		Tables: []*p4config.Table{
			{
				Preamble: preamble(TableACL, ACLName),
				MatchFields: []*p4config.MatchField{
					field(1, "hdr.ipv4.protocol", 8, p4config.MatchField_EXACT),
					field(2, "meta.l4_dport", 16, p4config.MatchField_TERNARY),
				},
				ActionRefs: refs(ActionSetPort, ActionDrop),
				Size:       1024,
			},
			{
				Preamble: preamble(TableIPv4LPM, IPv4LPMName),
				MatchFields: []*p4config.MatchField{
					field(1, "hdr.ipv4.dstAddr", 32, p4config.MatchField_LPM),
				},
				ActionRefs:           refs(ActionSetNhop, ActionDrop),
				ConstDefaultActionId: ActionDrop,
				Size:                 1024,
			},
			{
				Preamble: preamble(TableMixed, MixedName),
				MatchFields: []*p4config.MatchField{
					{
						Id:       1,
						Name:     "hdr.vlan.$valid$",
						Bitwidth: 1,
						Match:    &p4config.MatchField_OtherMatchType{OtherMatchType: "valid"},
					},
					field(2, "hdr.ipv4.ttl", 8, p4config.MatchField_EXACT),
					field(3, "meta.l4_sport", 16, p4config.MatchField_RANGE),
				},
				ActionRefs: refs(ActionSetPort, ActionDrop),
				Size:       256,
			},
			{
				Preamble: preamble(TableECMP, ECMPName),
				MatchFields: []*p4config.MatchField{
					field(1, "meta.nhop_group", 32, p4config.MatchField_EXACT),
				},
				ActionRefs:       refs(ActionSetNhop),
				ImplementationId: 285212673,
				Size:             256,
			},
		},
		Actions: []*p4config.Action{
			{
				Preamble: preamble(ActionSetPort, SetPortName),
				Params: []*p4config.Action_Param{
					{Id: 1, Name: "port", Bitwidth: 9},
				},
			},
			{
				Preamble: preamble(ActionDrop, DropName),
			},
			{
				Preamble: preamble(ActionSetNhop, SetNhopName),
				Params: []*p4config.Action_Param{
					{Id: 1, Name: "dmac", Bitwidth: 48},
					{Id: 2, Name: "port", Bitwidth: 9},
				},
			},
		},
	}
}

// Schema returns the indexed fixture program. It panics on error since the
// fixture is static.
func Schema() *p4info.Schema {
	s, err := p4info.New(Info())
	if err != nil {
		panic(err)
	}
	return s
}
