// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2022-2023 Intel Corporation, or its subsidiaries.

// Package config holds the application configuration loaded through viper.
package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/c2h5oh/datasize"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// FetchConfig bounds fetch results.
type FetchConfig struct {
	MaxBuffer string `mapstructure:"max_buffer"`
}

// TracingConfig enables the OTLP trace exporter.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

type Config struct {
	CfgFile            string
	P4RTAddress        string        `mapstructure:"p4rt"`
	P4InfoFile         string        `mapstructure:"p4info"`
	BinFile            string        `mapstructure:"bin"`
	DeviceID           uint64        `mapstructure:"device_id"`
	ElectionID         uint64        `mapstructure:"election_id"`
	TLSFiles           string        `mapstructure:"tlsfiles"`
	Database           string        `mapstructure:"database"`
	DBAddress          string        `mapstructure:"dbaddress"`
	LogLevel           string        `mapstructure:"loglevel"`
	ConnectTimeout     time.Duration `mapstructure:"connect_timeout"`
	ArbitrationTimeout time.Duration `mapstructure:"arbitration_timeout"`
	Fetch              FetchConfig   `mapstructure:"fetch"`
	Tracing            TracingConfig `mapstructure:"tracing"`
}

var GlobalConfig Config

func init() {
	viper.SetDefault("device_id", 1)
	viper.SetDefault("election_id", 1)
	viper.SetDefault("connect_timeout", 30*time.Second)
	viper.SetDefault("arbitration_timeout", 5*time.Second)
	viper.SetDefault("fetch.max_buffer", "64MB")
	viper.SetDefault("tracing.service_name", "opi-pi-tables")
}

func SetConfig(cfg Config) error {
	GlobalConfig = cfg
	return nil
}

// LoadConfig reads the config file, if any, into GlobalConfig and applies
// the log level.
func LoadConfig() error {
	if err := viper.ReadInConfig(); err == nil {
		log.Infof("Using config file: %s", viper.ConfigFileUsed())
	} else {
		log.Debugf("no config file read: %v", err)
	}
	cfgFile := GlobalConfig.CfgFile
	if err := viper.Unmarshal(&GlobalConfig); err != nil {
		return fmt.Errorf("decoding config: %w", err)
	}
	GlobalConfig.CfgFile = cfgFile

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if GlobalConfig.LogLevel != "" {
		level, err := log.ParseLevel(GlobalConfig.LogLevel)
		if err != nil {
			return fmt.Errorf("loglevel: %w", err)
		}
		log.SetLevel(level)
	}
	log.Debugf("config %+v", GlobalConfig)
	return nil
}

func GetConfig() *Config {
	return &GlobalConfig
}

// MaxBufferSize parses fetch.max_buffer.
func (c *Config) MaxBufferSize() (datasize.ByteSize, error) {
	if c.Fetch.MaxBuffer == "" {
		return 0, nil
	}
	return datasize.ParseString(c.Fetch.MaxBuffer)
}

func validateHostPort(name, addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid %s format. It should be in ip_address:port format", name)
	}
	p, err := strconv.Atoi(port)
	if err != nil || p <= 0 || p > 65535 {
		return fmt.Errorf("invalid %s port. It must be a positive integer between 1 and 65535", name)
	}
	return nil
}

// Validate checks the loaded configuration.
func (c *Config) Validate() error {
	if err := validateHostPort("p4rt address", c.P4RTAddress); err != nil {
		return err
	}
	switch c.Database {
	case "gomap":
	case "redis":
		if err := validateHostPort("DBAddress", c.DBAddress); err != nil {
			return err
		}
	default:
		return fmt.Errorf("database must be gomap or redis, got %q", c.Database)
	}
	if c.P4InfoFile == "" {
		return fmt.Errorf("a p4info file is required")
	}
	if _, err := c.MaxBufferSize(); err != nil {
		return fmt.Errorf("fetch.max_buffer: %w", err)
	}
	return nil
}
