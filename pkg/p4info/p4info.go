// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2022-2023 Intel Corporation, or its subsidiaries.

// Package p4info indexes a P4Info program description and answers the table
// and action metadata questions asked by the codecs.
package p4info

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	proto "github.com/golang/protobuf/proto"
	p4config "github.com/p4lang/p4runtime/go/p4/config/v1"
	log "github.com/sirupsen/logrus"
	"google.golang.org/protobuf/encoding/prototext"

	"github.com/opiproject/opi-pi-tables/pkg/actiondata"
	"github.com/opiproject/opi-pi-tables/pkg/matchkey"
)

// validMatchType is the P4Info other_match_type string for P4_14 valid matches.
const validMatchType = "valid"

// ErrUnsupportedMatchType is returned when a table uses a match kind the codec
// cannot represent.
var ErrUnsupportedMatchType = errors.New("unsupported match type")

// Lookup is the read-only schema view consumed by the codecs and dispatcher.
type Lookup interface {
	Table(id uint32) (*Table, bool)
	TableByName(name string) (*Table, bool)
	Action(id uint32) (*Action, bool)
	ActionByName(name string) (*Action, bool)
}

// MatchField is one key field of a table.
type MatchField struct {
	ID   uint32
	Name string
	matchkey.Descriptor
}

// Table holds the metadata of one table.
type Table struct {
	ID                   uint32
	Name                 string
	MatchFields          []MatchField
	ActionIDs            []uint32
	ConstDefaultActionID uint32
	ImplementationID     uint32

	descs []matchkey.Descriptor
}

// Descriptors returns the match field descriptors in declaration order.
func (t *Table) Descriptors() []matchkey.Descriptor {
	return t.descs
}

// MatchKeySize is the size of a packed match key for the table.
func (t *Table) MatchKeySize() int {
	return matchkey.Size(t.descs)
}

// HasConstDefaultAction reports whether the default action cannot be changed.
func (t *Table) HasConstDefaultAction() bool {
	return t.ConstDefaultActionID != 0
}

// HasAction reports whether id is one of the table's actions.
func (t *Table) HasAction(id uint32) bool {
	for _, a := range t.ActionIDs {
		if a == id {
			return true
		}
	}
	return false
}

// Param is one action parameter.
type Param struct {
	ID       uint32
	Name     string
	Bitwidth uint32
}

// Action holds the metadata of one action.
type Action struct {
	ID     uint32
	Name   string
	Params []Param

	bitwidths []uint32
}

// Bitwidths returns the declared parameter bit widths in order.
func (a *Action) Bitwidths() []uint32 {
	return a.bitwidths
}

// DataSize is the packed size of the action's parameters.
func (a *Action) DataSize() int {
	return actiondata.SizeOf(a.bitwidths)
}

// Schema is a Lookup built from a P4Info message.
type Schema struct {
	tables        map[uint32]*Table
	tablesByName  map[string]*Table
	actions       map[uint32]*Action
	actionsByName map[string]*Action
}

// New indexes info.
func New(info *p4config.P4Info) (*Schema, error) {
	s := &Schema{
		tables:        make(map[uint32]*Table),
		tablesByName:  make(map[string]*Table),
		actions:       make(map[uint32]*Action),
		actionsByName: make(map[string]*Action),
	}

	for _, a := range info.GetActions() {
		action := &Action{
			ID:   a.GetPreamble().GetId(),
			Name: a.GetPreamble().GetName(),
		}
		for _, p := range a.GetParams() {
			action.Params = append(action.Params, Param{ID: p.GetId(), Name: p.GetName(), Bitwidth: uint32(p.GetBitwidth())})
			action.bitwidths = append(action.bitwidths, uint32(p.GetBitwidth()))
		}
		s.addAction(action)
	}

	for _, t := range info.GetTables() {
		table := &Table{
			ID:                   t.GetPreamble().GetId(),
			Name:                 t.GetPreamble().GetName(),
			ConstDefaultActionID: t.GetConstDefaultActionId(),
			ImplementationID:     t.GetImplementationId(),
		}
		for _, mf := range t.GetMatchFields() {
			typ, err := matchType(mf)
			if err != nil {
				return nil, fmt.Errorf("table %s field %s: %w", table.Name, mf.GetName(), err)
			}
			field := MatchField{
				ID:         mf.GetId(),
				Name:       mf.GetName(),
				Descriptor: matchkey.Descriptor{Type: typ, Bitwidth: uint32(mf.GetBitwidth())},
			}
			table.MatchFields = append(table.MatchFields, field)
			table.descs = append(table.descs, field.Descriptor)
		}
		for _, ref := range t.GetActionRefs() {
			table.ActionIDs = append(table.ActionIDs, ref.GetId())
		}
		s.tables[table.ID] = table
		s.tablesByName[table.Name] = table
		if alias := t.GetPreamble().GetAlias(); alias != "" && alias != table.Name {
			s.tablesByName[alias] = table
		}
	}

	log.Debugf("p4info: indexed %d tables and %d actions", len(s.tables), len(s.actions))
	return s, nil
}

func (s *Schema) addAction(a *Action) {
	s.actions[a.ID] = a
	s.actionsByName[a.Name] = a
}

func matchType(mf *p4config.MatchField) (matchkey.Type, error) {
	if other := mf.GetOtherMatchType(); other != "" {
		if other == validMatchType {
			return matchkey.TypeValid, nil
		}
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedMatchType, other)
	}
	switch mf.GetMatchType() {
	case p4config.MatchField_EXACT:
		return matchkey.TypeExact, nil
	case p4config.MatchField_LPM:
		return matchkey.TypeLPM, nil
	case p4config.MatchField_TERNARY:
		return matchkey.TypeTernary, nil
	case p4config.MatchField_RANGE:
		return matchkey.TypeRange, nil
	default:
		return 0, fmt.Errorf("%w: %v", ErrUnsupportedMatchType, mf.GetMatchType())
	}
}

// Load reads a P4Info file. Files ending in .txt are parsed as protobuf text
// format, anything else as binary.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	info := &p4config.P4Info{}
	if strings.HasSuffix(path, ".txt") {
		err = prototext.Unmarshal(data, info)
	} else {
		err = proto.Unmarshal(data, info)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse p4info %s: %w", path, err)
	}
	log.Infof("Loaded p4info from %s", path)
	return New(info)
}

// Table implements Lookup.
func (s *Schema) Table(id uint32) (*Table, bool) {
	t, ok := s.tables[id]
	return t, ok
}

// TableByName implements Lookup.
func (s *Schema) TableByName(name string) (*Table, bool) {
	t, ok := s.tablesByName[name]
	return t, ok
}

// Action implements Lookup.
func (s *Schema) Action(id uint32) (*Action, bool) {
	a, ok := s.actions[id]
	return a, ok
}

// ActionByName implements Lookup.
func (s *Schema) ActionByName(name string) (*Action, bool) {
	a, ok := s.actionsByName[name]
	return a, ok
}

// Tables returns every table sorted by name.
func (s *Schema) Tables() []*Table {
	tables := make([]*Table, 0, len(s.tables))
	for _, t := range s.tables {
		tables = append(tables, t)
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].Name < tables[j].Name })
	return tables
}
