// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2022-2023 Intel Corporation, or its subsidiaries.

package p4info_test

import (
	"os"
	"path/filepath"
	"testing"

	proto "github.com/golang/protobuf/proto"
	p4config "github.com/p4lang/p4runtime/go/p4/config/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/prototext"

	"github.com/opiproject/opi-pi-tables/pkg/matchkey"
	"github.com/opiproject/opi-pi-tables/pkg/p4info"
	"github.com/opiproject/opi-pi-tables/pkg/p4info/p4infotest"
)

func TestNewIndexesTables(t *testing.T) {
	s := p4infotest.Schema()

	acl, ok := s.Table(p4infotest.TableACL)
	require.True(t, ok)
	assert.Equal(t, p4infotest.ACLName, acl.Name)
	assert.Equal(t, []matchkey.Descriptor{
		{Type: matchkey.TypeExact, Bitwidth: 8},
		{Type: matchkey.TypeTernary, Bitwidth: 16},
	}, acl.Descriptors())
	assert.Equal(t, 5, acl.MatchKeySize())
	assert.False(t, acl.HasConstDefaultAction())
	assert.True(t, acl.HasAction(p4infotest.ActionDrop))
	assert.False(t, acl.HasAction(p4infotest.ActionSetNhop))

	byName, ok := s.TableByName(p4infotest.ACLName)
	require.True(t, ok)
	assert.Same(t, acl, byName)

	lpm, ok := s.Table(p4infotest.TableIPv4LPM)
	require.True(t, ok)
	assert.True(t, lpm.HasConstDefaultAction())
	assert.Equal(t, p4infotest.ActionDrop, lpm.ConstDefaultActionID)
	assert.Equal(t, 8, lpm.MatchKeySize())

	_, ok = s.Table(42)
	assert.False(t, ok)
}

func TestValidMatchType(t *testing.T) {
	mixed, ok := p4infotest.Schema().Table(p4infotest.TableMixed)
	require.True(t, ok)
	assert.Equal(t, matchkey.TypeValid, mixed.MatchFields[0].Type)
	assert.Equal(t, matchkey.TypeRange, mixed.MatchFields[2].Type)
	// valid(1) + exact(1) + range(2*2)
	assert.Equal(t, 6, mixed.MatchKeySize())
}

func TestActions(t *testing.T) {
	s := p4infotest.Schema()

	nhop, ok := s.Action(p4infotest.ActionSetNhop)
	require.True(t, ok)
	assert.Equal(t, []uint32{48, 9}, nhop.Bitwidths())
	assert.Equal(t, 8, nhop.DataSize())

	drop, ok := s.ActionByName(p4infotest.DropName)
	require.True(t, ok)
	assert.Equal(t, 0, drop.DataSize())
	assert.Empty(t, drop.Bitwidths())
}

func TestUnsupportedMatchType(t *testing.T) {
	info := p4infotest.Info()
	info.Tables[0].MatchFields[0].Match = &p4config.MatchField_MatchType_{MatchType: p4config.MatchField_OPTIONAL}

	_, err := p4info.New(info)
	assert.ErrorIs(t, err, p4info.ErrUnsupportedMatchType)

	info = p4infotest.Info()
	info.Tables[0].MatchFields[0].Match = &p4config.MatchField_OtherMatchType{OtherMatchType: "selector"}
	_, err = p4info.New(info)
	assert.ErrorIs(t, err, p4info.ErrUnsupportedMatchType)
}

func TestLoadText(t *testing.T) {
	data, err := prototext.Marshal(p4infotest.Info())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "program.p4info.txt")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	s, err := p4info.Load(path)
	require.NoError(t, err)
	assert.Len(t, s.Tables(), 4)
	assert.Equal(t, p4infotest.ACLName, s.Tables()[0].Name)
	assert.Equal(t, p4infotest.ECMPName, s.Tables()[1].Name)
}

func TestLoadBinary(t *testing.T) {
	data, err := proto.Marshal(p4infotest.Info())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "program.p4info.bin")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	s, err := p4info.Load(path)
	require.NoError(t, err)
	_, ok := s.TableByName(p4infotest.MixedName)
	assert.True(t, ok)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := p4info.Load(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
