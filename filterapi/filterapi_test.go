// Copyright The AppNet Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package filterapi

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnmarshalConfigYaml(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	const config = `
schema: echo
request:
  mode: rewrite
  rewrite:
    match: Bob
    replace: Alice
response:
  mode: inspect
maxBufferedRead: 1048576
`
	require.NoError(t, os.WriteFile(configPath, []byte(config), 0o600))

	cfg, err := UnmarshalConfigYaml(configPath)
	require.NoError(t, err)
	require.Equal(t, SchemaEcho, cfg.Schema)
	require.Equal(t, ModeRewrite, cfg.Request.Mode)
	require.Equal(t, &RewriteRule{Field: "message", Match: "Bob", Replace: "Alice"}, cfg.Request.Rewrite)
	require.Equal(t, ModeInspect, cfg.Response.Mode)
	require.Equal(t, 1048576, cfg.MaxBufferedRead)
}

func TestUnmarshalConfigYamlErrors(t *testing.T) {
	t.Run("non existent file", func(t *testing.T) {
		_, err := UnmarshalConfigYaml("non-existent-file.yaml")
		require.Error(t, err)
	})
	t.Run("invalid yaml", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte(": invalid"), 0o600))
		_, err := UnmarshalConfigYaml(configPath)
		require.ErrorContains(t, err, "failed to unmarshal configuration")
	})
	t.Run("invalid config", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte("schema: grpc-web"), 0o600))
		_, err := UnmarshalConfigYaml(configPath)
		require.ErrorContains(t, err, `unknown schema "grpc-web"`)
	})
}

func TestConfigValidate(t *testing.T) {
	rewrite := func(field string) DirectionConfig {
		return DirectionConfig{Mode: ModeRewrite, Rewrite: &RewriteRule{Field: field, Match: "a", Replace: "b"}}
	}
	for _, tc := range []struct {
		name   string
		cfg    Config
		expErr string
	}{
		{
			name: "defaults applied",
			cfg:  Config{Schema: SchemaEcho},
		},
		{
			name: "kv request key field",
			cfg:  Config{Schema: SchemaKV, Request: rewrite("key")},
		},
		{
			name:   "missing schema",
			cfg:    Config{},
			expErr: "schema must be provided",
		},
		{
			name:   "negative maxBufferedRead",
			cfg:    Config{Schema: SchemaEcho, MaxBufferedRead: -1},
			expErr: "maxBufferedRead must not be negative",
		},
		{
			name:   "unknown mode",
			cfg:    Config{Schema: SchemaEcho, Request: DirectionConfig{Mode: "observe"}},
			expErr: `request: unknown mode "observe"`,
		},
		{
			name:   "rewrite without rule",
			cfg:    Config{Schema: SchemaEcho, Request: DirectionConfig{Mode: ModeRewrite}},
			expErr: `request: mode "rewrite" requires a rewrite rule`,
		},
		{
			name:   "rewrite without match",
			cfg:    Config{Schema: SchemaEcho, Request: DirectionConfig{Mode: ModeRewrite, Rewrite: &RewriteRule{Replace: "b"}}},
			expErr: "request: rewrite rule must provide a match string",
		},
		{
			name:   "rule with inspect mode",
			cfg:    Config{Schema: SchemaEcho, Response: DirectionConfig{Mode: ModeInspect, Rewrite: &RewriteRule{Match: "a"}}},
			expErr: `response: rewrite rule is only valid with mode "rewrite"`,
		},
		{
			name:   "rule with defaulted mode",
			cfg:    Config{Schema: SchemaEcho, Response: DirectionConfig{Rewrite: &RewriteRule{Match: "a"}}},
			expErr: `response: rewrite rule is only valid with mode "rewrite"`,
		},
		{
			name:   "field not rewritable",
			cfg:    Config{Schema: SchemaKV, Response: rewrite("key")},
			expErr: `response: schema "kv" has no rewritable field "key"`,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.expErr != "" {
				require.EqualError(t, err, tc.expErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestConfigValidateDefaults(t *testing.T) {
	cfg := Config{Schema: SchemaKV, Request: DirectionConfig{Mode: ModeRewrite, Rewrite: &RewriteRule{Match: "a"}}}
	require.NoError(t, cfg.Validate())
	require.Equal(t, ModePassthrough, cfg.Response.Mode)
	require.Equal(t, "value", cfg.Request.Rewrite.Field)
}
