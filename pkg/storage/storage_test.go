// SPDX-License-Identifier: Apache-2.0
// Copyright (C) 2023 Nordix Foundation.

package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStoreGomap(t *testing.T) {
	s, err := NewStore("gomap", "")
	require.NoError(t, err)
	defer s.GetClient().Close()

	require.NoError(t, s.GetClient().Set("k", "v"))
	var v string
	found, err := s.GetClient().Get("k", &v)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", v)
}

func TestNewStoreUnknown(t *testing.T) {
	_, err := NewStore("etcd", "")
	assert.ErrorContains(t, err, "unknown database type")
}
