// Copyright 2026 The Strata Authors. All rights reserved.
// Licensed under the Apache License, version 2.0:
// http://www.apache.org/licenses/LICENSE-2.0

// Package config loads repository configuration from a TOML file.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Transport kinds accepted in a remote's "transport" field.
const (
	TransportHTTP  = "http"
	TransportS3    = "s3"
	TransportLocal = "local"
)

type Config struct {
	Store   StoreConfig       `toml:"store"`
	Log     LogConfig         `toml:"log"`
	Sync    SyncConfig        `toml:"sync"`
	Remotes map[string]Remote `toml:"remotes"`
}

type StoreConfig struct {
	// Path is the root directory for the fragment store and commit graph.
	Path string `toml:"path"`
	// CacheFragments is the size of the in-memory fragment cache.
	CacheFragments int `toml:"cache_fragments"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type SyncConfig struct {
	Concurrency int `toml:"concurrency"`
	MaxRetries  int `toml:"max_retries"`
}

// Remote names a registry plus the blob transport its fragments move over.
type Remote struct {
	Registry  string `toml:"registry"`
	Transport string `toml:"transport"`
	// Endpoint is the transport target: a base URL for http, a directory
	// for local.
	Endpoint string `toml:"endpoint"`
	// Bucket and Prefix apply to the s3 transport only.
	Bucket string `toml:"bucket"`
	Prefix string `toml:"prefix"`
}

func Default() *Config {
	return &Config{
		Store:   StoreConfig{Path: ".strata", CacheFragments: 512},
		Log:     LogConfig{Level: "info"},
		Sync:    SyncConfig{Concurrency: 8, MaxRetries: 3},
		Remotes: map[string]Remote{},
	}
}

// Load reads path and overlays it on the defaults. A missing file is not an
// error; the defaults stand.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, errors.Wrapf(err, "config: parse %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return fmt.Errorf("config: store.path must not be empty")
	}
	if c.Sync.Concurrency < 0 || c.Sync.MaxRetries < 0 {
		return fmt.Errorf("config: sync knobs must not be negative")
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	for name, r := range c.Remotes {
		switch r.Transport {
		case TransportHTTP, TransportLocal:
			if r.Endpoint == "" {
				return fmt.Errorf("config: remote %q needs an endpoint", name)
			}
		case TransportS3:
			if r.Bucket == "" {
				return fmt.Errorf("config: remote %q needs a bucket", name)
			}
		default:
			return fmt.Errorf("config: remote %q has unknown transport %q", name, r.Transport)
		}
		if r.Registry == "" {
			return fmt.Errorf("config: remote %q needs a registry URL", name)
		}
	}
	return nil
}

// Remote looks up a named remote.
func (c *Config) Remote(name string) (Remote, bool) {
	r, ok := c.Remotes[name]
	return r, ok
}

// BuildLogger constructs a production logger at the configured level.
func (c *Config) BuildLogger() (*zap.Logger, error) {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func parseLevel(s string) (zapcore.Level, error) {
	if s == "" {
		return zapcore.InfoLevel, nil
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("config: unknown log level %q", s)
	}
	return level, nil
}
