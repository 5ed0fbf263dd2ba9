// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2022-2023 Intel Corporation, or its subsidiaries.

package utils

import (
	"context"
	"testing"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBytesForBits(t *testing.T) {
	for bits, want := range map[uint32]int{0: 0, 1: 1, 7: 1, 8: 1, 9: 2, 32: 4, 48: 6, 64: 8} {
		assert.Equal(t, want, BytesForBits(bits), bits)
	}
}

func TestPadLeft(t *testing.T) {
	b, ok := PadLeft([]byte{5}, 4)
	require.True(t, ok)
	assert.Equal(t, []byte{0, 0, 0, 5}, b)

	_, ok = PadLeft([]byte{1, 2, 3}, 2)
	assert.False(t, ok)
}

func TestInterceptorLogger(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(log.DebugLevel)

	InterceptorLogger(logger).Log(context.Background(), logging.LevelWarn, "finished call", "grpc.code", "NotFound")

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, log.WarnLevel, entry.Level)
	assert.Equal(t, "finished call", entry.Message)
	assert.Equal(t, "NotFound", entry.Data["grpc.code"])
	assert.Len(t, ClientLoggingOptions(logger), 2)
}

func TestParseTLSFiles(t *testing.T) {
	cfg, err := ParseTLSFiles("c.pem:k.pem:ca.pem")
	require.NoError(t, err)
	assert.Equal(t, TLSConfig{CertFile: "c.pem", KeyFile: "k.pem", CAFile: "ca.pem"}, cfg)

	_, err = ParseTLSFiles("c.pem:k.pem")
	assert.Error(t, err)
	_, err = ParseTLSFiles("c.pem::ca.pem")
	assert.Error(t, err)
}
