// cose-go: COSE message codec and MAC engine
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dark-bio/cose-go/internal/base64ext"
	"gopkg.in/yaml.v3"
)

// config is the optional YAML configuration of the tool.
//
//	log_level: debug
//	untagged: false
//	keys:
//	  our-secret: hJtXIZ2uSN5kbQfbtTNWbpdmhkV8FJG-Onbc6mxCcYg
type config struct {
	// LogLevel is the minimum level written to stderr. Default: warn.
	LogLevel string `yaml:"log_level"`

	// Untagged emits created messages without their CBOR tag.
	Untagged bool `yaml:"untagged"`

	// Keys maps key ids to base64url encoded symmetric keys.
	Keys map[string]string `yaml:"keys"`
}

// loadConfig reads a config file. Unknown fields are rejected.
func loadConfig(path string) (*config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := new(config)

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// level parses the configured log level.
func (c *config) level() (slog.Level, error) {
	if c.LogLevel == "" {
		return slog.LevelWarn, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// key looks up a symmetric key by id.
func (c *config) key(kid string) ([]byte, error) {
	encoded, ok := c.Keys[kid]
	if !ok {
		return nil, fmt.Errorf("key %q not in config", kid)
	}
	key, err := base64ext.DecodeURLString(encoded)
	if err != nil {
		return nil, fmt.Errorf("key %q: %w", kid, err)
	}
	return key, nil
}
