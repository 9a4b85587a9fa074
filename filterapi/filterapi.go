// Copyright The AppNet Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package filterapi provides the public configuration for the gRPC body
// interception filter. This is a public package so the filter can be
// configured and tested without depending on how a particular host runtime
// loads its configuration.
package filterapi

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Mode selects the filter variant for one direction.
type Mode string

const (
	// ModeRewrite decodes each frame payload and applies the rewrite rule.
	ModeRewrite Mode = "rewrite"
	// ModeInspect decodes each frame payload for logging only.
	ModeInspect Mode = "inspect"
	// ModePassthrough performs no decoding and no buffering.
	ModePassthrough Mode = "passthrough"
)

// Schema identifies the protobuf message schema carried by the stream.
type Schema string

const (
	// SchemaEcho is the echo benchmark service (EchoRequest/EchoResponse).
	SchemaEcho Schema = "echo"
	// SchemaKV is the key-value store benchmark service (SetRequest/GetResponse).
	SchemaKV Schema = "kv"
)

// RewriteRule is a deterministic field-level mutation: every occurrence of
// Match within the named text field is replaced with Replace.
type RewriteRule struct {
	// Field is the target text field. Defaults to the schema's primary text
	// field ("message" for echo, "value" for kv).
	Field   string `yaml:"field,omitempty"`
	Match   string `yaml:"match"`
	Replace string `yaml:"replace"`
}

// DirectionConfig configures one direction of the exchange.
type DirectionConfig struct {
	Mode    Mode         `yaml:"mode"`
	Rewrite *RewriteRule `yaml:"rewrite,omitempty"`
}

// Config is the configuration for the interception filter.
type Config struct {
	Schema   Schema          `yaml:"schema"`
	Request  DirectionConfig `yaml:"request"`
	Response DirectionConfig `yaml:"response"`
	// MaxBufferedRead bounds the body size the filter will inspect; larger
	// bodies are forwarded unmodified. Zero selects the built-in default.
	MaxBufferedRead int `yaml:"maxBufferedRead,omitempty"`
}

// rewritableFields lists the text fields a rewrite rule may target for the
// given schema and direction, first entry being the default.
func rewritableFields(schema Schema, isRequest bool) []string {
	switch schema {
	case SchemaEcho:
		return []string{"message"}
	case SchemaKV:
		if isRequest {
			return []string{"value", "key"}
		}
		return []string{"value"}
	default:
		return nil
	}
}

// UnmarshalConfigYaml reads the configuration from the given file path.
func UnmarshalConfigYaml(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration and applies defaults in place.
func (c *Config) Validate() error {
	switch c.Schema {
	case SchemaEcho, SchemaKV:
	case "":
		return fmt.Errorf("schema must be provided")
	default:
		return fmt.Errorf("unknown schema %q", c.Schema)
	}
	if c.MaxBufferedRead < 0 {
		return fmt.Errorf("maxBufferedRead must not be negative")
	}
	if err := c.Request.validate(c.Schema, true); err != nil {
		return fmt.Errorf("request: %w", err)
	}
	if err := c.Response.validate(c.Schema, false); err != nil {
		return fmt.Errorf("response: %w", err)
	}
	return nil
}

func (d *DirectionConfig) validate(schema Schema, isRequest bool) error {
	switch d.Mode {
	case ModeInspect, ModePassthrough:
		if d.Rewrite != nil {
			return fmt.Errorf("rewrite rule is only valid with mode %q", ModeRewrite)
		}
		return nil
	case ModeRewrite:
	case "":
		if d.Rewrite != nil {
			return fmt.Errorf("rewrite rule is only valid with mode %q", ModeRewrite)
		}
		d.Mode = ModePassthrough
		return nil
	default:
		return fmt.Errorf("unknown mode %q", d.Mode)
	}
	if d.Rewrite == nil {
		return fmt.Errorf("mode %q requires a rewrite rule", ModeRewrite)
	}
	if d.Rewrite.Match == "" {
		return fmt.Errorf("rewrite rule must provide a match string")
	}
	fields := rewritableFields(schema, isRequest)
	if d.Rewrite.Field == "" {
		d.Rewrite.Field = fields[0]
		return nil
	}
	for _, f := range fields {
		if d.Rewrite.Field == f {
			return nil
		}
	}
	return fmt.Errorf("schema %q has no rewritable field %q", schema, d.Rewrite.Field)
}
