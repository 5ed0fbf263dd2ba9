// SPDX-License-Identifier: Apache-2.0
// Copyright (C) 2023 Nordix Foundation.

// Package storage opens the key-value store backing the handle registry.
package storage

import (
	"fmt"

	"github.com/philippgille/gokv"
	"github.com/philippgille/gokv/gomap"
	"github.com/philippgille/gokv/redis"
)

// Store wraps the configured gokv backend.
type Store struct {
	client gokv.Store
}

// NewStore opens a store of dbtype ("gomap" or "redis") at address.
func NewStore(dbtype string, address string) (*Store, error) {
	switch dbtype {
	case "gomap":
		return &Store{client: gomap.NewStore(gomap.DefaultOptions)}, nil
	case "redis":
		options := redis.DefaultOptions
		options.Address = address
		client, err := redis.NewClient(options)
		if err != nil {
			return nil, fmt.Errorf("storage: redis at %s: %w", address, err)
		}
		return &Store{client: client}, nil
	default:
		return nil, fmt.Errorf("storage: unknown database type %q", dbtype)
	}
}

// GetClient returns the underlying gokv store.
func (s *Store) GetClient() gokv.Store {
	return s.client
}
