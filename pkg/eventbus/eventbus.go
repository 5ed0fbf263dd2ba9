// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2022-2023 Intel Corporation, or its subsidiaries.

// Package eventbus fans out table mutation events to subscribers.
package eventbus

import (
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// AllTables subscribes to the events of every table.
const AllTables = "*"

// EventKind is the kind of a table mutation.
type EventKind int

const (
	EntryAdded EventKind = iota
	EntryModified
	EntryDeleted
	DefaultActionSet
)

var kindNames = [...]string{"entry-added", "entry-modified", "entry-deleted", "default-action-set"}

func (k EventKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// TableEvent is published after a table mutation succeeded on the device.
type TableEvent struct {
	ID     uuid.UUID
	Kind   EventKind
	Table  string
	Handle uint64
}

// NewTableEvent stamps a new event with a fresh id.
func NewTableEvent(kind EventKind, table string, handle uint64) TableEvent {
	return TableEvent{ID: uuid.New(), Kind: kind, Table: table, Handle: handle}
}

type EventBus struct {
	subscribers map[string][]*Subscriber
	mutex       sync.RWMutex
}

type Subscriber struct {
	Ch    chan TableEvent
	Quit  chan bool
	table string
}

func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[string][]*Subscriber),
	}
}

// Subscribe registers for events of table, or of every table with AllTables.
// Events that find the subscriber's buffer full are dropped.
func (e *EventBus) Subscribe(table string, buffer int) *Subscriber {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	subscriber := &Subscriber{
		Ch:    make(chan TableEvent, buffer),
		Quit:  make(chan bool, 1),
		table: table,
	}

	e.subscribers[table] = append(e.subscribers[table], subscriber)

	return subscriber
}

func (e *EventBus) Publish(ev TableEvent) {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	deliver := func(subs []*Subscriber) {
		for _, sub := range subs {
			select {
			case sub.Ch <- ev:
			default:
				log.Warnf("eventbus: dropping %s event %s for table %s, subscriber is full", ev.Kind, ev.ID, ev.Table)
			}
		}
	}
	deliver(e.subscribers[ev.Table])
	if ev.Table != AllTables {
		deliver(e.subscribers[AllTables])
	}
}

// Unsubscribe removes s from the bus and closes its channel.
func (e *EventBus) Unsubscribe(s *Subscriber) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	subs := e.subscribers[s.table]
	for i, sub := range subs {
		if sub == s {
			e.subscribers[s.table] = append(subs[:i], subs[i+1:]...)
			close(s.Ch)
			s.Quit <- true
			return
		}
	}
}
