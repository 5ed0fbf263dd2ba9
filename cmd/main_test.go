// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2022-2023 Intel Corporation, or its subsidiaries.

package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/opiproject/opi-pi-tables/pkg/device"
	"github.com/opiproject/opi-pi-tables/pkg/device/mocks"
	"github.com/opiproject/opi-pi-tables/pkg/entries"
	"github.com/opiproject/opi-pi-tables/pkg/matchkey"
	"github.com/opiproject/opi-pi-tables/pkg/p4info"
	"github.com/opiproject/opi-pi-tables/pkg/p4info/p4infotest"
	"github.com/opiproject/opi-pi-tables/pkg/tables"
)

// countingFetcher records the results handed back through FetchDone.
type countingFetcher struct {
	*tables.Dispatcher
	done []*entries.FetchResult
}

func (c *countingFetcher) FetchDone(res *entries.FetchResult) error {
	c.done = append(c.done, res)
	return c.Dispatcher.FetchDone(res)
}

func aclFetcher(t *testing.T) *countingFetcher {
	schema := p4infotest.Schema()
	dev := mocks.NewDevice(t)
	dev.On("FetchEntries", mock.Anything, p4infotest.ACLName).Return([]device.Entry{{
		Handle: 9,
		Match: matchkey.Key{
			&matchkey.Exact{Key: []byte{6}},
			&matchkey.Ternary{Key: []byte{0, 22}, Mask: []byte{0xff, 0xff}},
		},
		Action: device.ActionEntry{Type: device.ActionEntryData, ActionName: p4infotest.SetPortName, Params: [][]byte{{3}}},
	}}, nil).Once()
	return &countingFetcher{Dispatcher: tables.NewDispatcher(schema, dev, entries.NewSerializer(schema, 0), nil)}
}

func TestDumpTable(t *testing.T) {
	f := aclFetcher(t)
	acl, _ := f.Schema.Table(p4infotest.TableACL)

	var out bytes.Buffer
	require.NoError(t, dumpTable(context.Background(), &out, f, f.Schema, acl))
	assert.Contains(t, out.String(), "9: hdr.ipv4.protocol=06 meta.l4_dport=0016&&&ffff -> "+p4infotest.SetPortName+"(0003)")
	require.Len(t, f.done, 1)
	assert.Nil(t, f.done[0].Bytes())
}

func TestDumpTableReleasesOnReadError(t *testing.T) {
	f := aclFetcher(t)
	acl, _ := f.Schema.Table(p4infotest.TableACL)

	// a reader schema with a wider port parameter rejects the action data
	info := p4infotest.Info()
	info.Actions[0].Params[0].Bitwidth = 24
	other, err := p4info.New(info)
	require.NoError(t, err)

	err = dumpTable(context.Background(), &bytes.Buffer{}, f, other, acl)
	assert.ErrorIs(t, err, entries.ErrActionDataSize)
	require.Len(t, f.done, 1)
	assert.Nil(t, f.done[0].Bytes())
}
