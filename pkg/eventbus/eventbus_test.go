// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2022-2023 Intel Corporation, or its subsidiaries.

package eventbus

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishRoutesByTable(t *testing.T) {
	bus := NewEventBus()
	acl := bus.Subscribe("ingress.acl", 4)
	all := bus.Subscribe(AllTables, 4)

	bus.Publish(NewTableEvent(EntryAdded, "ingress.acl", 3))
	bus.Publish(NewTableEvent(EntryDeleted, "ingress.fib", 9))

	require.Len(t, acl.Ch, 1)
	ev := <-acl.Ch
	assert.Equal(t, EntryAdded, ev.Kind)
	assert.Equal(t, uint64(3), ev.Handle)
	assert.NotEqual(t, uuid.Nil, ev.ID)

	assert.Len(t, all.Ch, 2)
}

func TestPublishDropsWhenFull(t *testing.T) {
	bus := NewEventBus()
	sub := bus.Subscribe("t", 1)

	bus.Publish(NewTableEvent(EntryAdded, "t", 1))
	bus.Publish(NewTableEvent(EntryAdded, "t", 2))

	require.Len(t, sub.Ch, 1)
	assert.Equal(t, uint64(1), (<-sub.Ch).Handle)
}

func TestUnsubscribe(t *testing.T) {
	bus := NewEventBus()
	sub := bus.Subscribe("t", 1)
	bus.Unsubscribe(sub)

	_, open := <-sub.Ch
	assert.False(t, open)
	assert.True(t, <-sub.Quit)

	bus.Publish(NewTableEvent(EntryAdded, "t", 1))
	assert.Equal(t, "entry-added", EntryAdded.String())
}
