// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2022-2023 Intel Corporation, or its subsidiaries.

package p4driverAPI

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/philippgille/gokv"
)

// ErrUnknownHandle is returned for a handle that was never issued or was
// already released.
var ErrUnknownHandle = errors.New("unknown entry handle")

const counterKey = "handles/next"

// handleRecord is what a handle resolves to: the entry's encoded match key and
// its priority, which together identify a P4Runtime table entry.
type handleRecord struct {
	Match    []byte `json:"match"`
	Priority int32  `json:"priority"`
}

// HandleStore issues entry handles for P4Runtime table entries, which have
// none of their own, and persists the mapping in a gokv store.
type HandleStore struct {
	store gokv.Store
	mu    sync.Mutex
}

func NewHandleStore(store gokv.Store) *HandleStore {
	return &HandleStore{store: store}
}

func handleKey(table string, h uint64) string {
	return fmt.Sprintf("%s/h/%d", table, h)
}

func matchKey(table string, match []byte, prio int32) string {
	return fmt.Sprintf("%s/k/%s/%d", table, hex.EncodeToString(match), prio)
}

// Register returns the handle of the entry, issuing a new one if the entry is
// not known yet.
func (s *HandleStore) Register(table string, match []byte, prio int32) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var h uint64
	found, err := s.store.Get(matchKey(table, match, prio), &h)
	if err != nil {
		return 0, err
	}
	if found {
		return h, nil
	}

	if _, err = s.store.Get(counterKey, &h); err != nil {
		return 0, err
	}
	h++
	if err = s.store.Set(counterKey, h); err != nil {
		return 0, err
	}
	if err = s.store.Set(handleKey(table, h), handleRecord{Match: match, Priority: prio}); err != nil {
		return 0, err
	}
	if err = s.store.Set(matchKey(table, match, prio), h); err != nil {
		return 0, err
	}
	return h, nil
}

// Resolve returns the encoded match key and priority behind a handle.
func (s *HandleStore) Resolve(table string, h uint64) ([]byte, int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rec handleRecord
	found, err := s.store.Get(handleKey(table, h), &rec)
	if err != nil {
		return nil, 0, err
	}
	if !found {
		return nil, 0, fmt.Errorf("%w: %d in %s", ErrUnknownHandle, h, table)
	}
	return rec.Match, rec.Priority, nil
}

// Release forgets a handle.
func (s *HandleStore) Release(table string, h uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rec handleRecord
	found, err := s.store.Get(handleKey(table, h), &rec)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %d in %s", ErrUnknownHandle, h, table)
	}
	if err = s.store.Delete(matchKey(table, rec.Match, rec.Priority)); err != nil {
		return err
	}
	return s.store.Delete(handleKey(table, h))
}
