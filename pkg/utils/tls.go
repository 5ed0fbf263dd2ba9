// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2022-2023 Dell Inc, or its subsidiaries.

package utils

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
)

// TLSConfig holds the certificate files of a TLS connection.
type TLSConfig struct {
	CertFile string
	KeyFile  string
	CAFile   string
}

// ParseTLSFiles splits a cert:key:ca triple.
func ParseTLSFiles(tlsFiles string) (TLSConfig, error) {
	files := strings.Split(tlsFiles, ":")
	if len(files) != 3 {
		return TLSConfig{}, errors.New("TLS files must be in cert:key:ca format")
	}
	for _, f := range files {
		if f == "" {
			return TLSConfig{}, errors.New("empty TLS file path")
		}
	}
	return TLSConfig{CertFile: files[0], KeyFile: files[1], CAFile: files[2]}, nil
}

// SetupTLSCredentials builds mutual TLS dial credentials for the P4Runtime
// connection.
func SetupTLSCredentials(config TLSConfig) (grpc.DialOption, error) {
	cert, err := tls.LoadX509KeyPair(config.CertFile, config.KeyFile)
	if err != nil {
		return nil, err
	}
	ca, err := os.ReadFile(config.CAFile)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(ca) {
		return nil, fmt.Errorf("no certificates in %s", config.CAFile)
	}
	return grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
		MinVersion:   tls.VersionTLS12,
	})), nil
}
