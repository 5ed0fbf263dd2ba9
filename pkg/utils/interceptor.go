// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2022-2023 Intel Corporation, or its subsidiaries.

package utils

import (
	"context"
	"fmt"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
)

// InterceptorLogger adapts a logrus logger to the gRPC logging middleware.
func InterceptorLogger(l log.FieldLogger) logging.Logger {
	return logging.LoggerFunc(func(_ context.Context, lvl logging.Level, msg string, fields ...any) {
		f := make(map[string]any, len(fields)/2)
		i := logging.Fields(fields).Iterator()
		for i.Next() {
			k, v := i.At()
			f[k] = v
		}
		l := l.WithFields(f)

		switch lvl {
		case logging.LevelDebug:
			l.Debug(msg)
		case logging.LevelInfo:
			l.Info(msg)
		case logging.LevelWarn:
			l.Warn(msg)
		case logging.LevelError:
			l.Error(msg)
		default:
			panic(fmt.Sprintf("unknown level %v", lvl))
		}
	})
}

// ClientLoggingOptions returns dial options logging every P4Runtime call.
func ClientLoggingOptions(l log.FieldLogger) []grpc.DialOption {
	opts := []logging.Option{logging.WithLogOnEvents(logging.StartCall, logging.FinishCall)}
	return []grpc.DialOption{
		grpc.WithChainUnaryInterceptor(logging.UnaryClientInterceptor(InterceptorLogger(l), opts...)),
		grpc.WithChainStreamInterceptor(logging.StreamClientInterceptor(InterceptorLogger(l), opts...)),
	}
}
