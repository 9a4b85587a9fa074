// Copyright The AppNet Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package filter

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/appnet-org/grpc-filter/filterapi"
	"github.com/appnet-org/grpc-filter/internal/apischema/echo"
	"github.com/appnet-org/grpc-filter/internal/apischema/kv"
	"github.com/appnet-org/grpc-filter/internal/transform"
)

// Transforms builds the per-direction transforms for a validated
// configuration. logger is used by inspect-mode transforms to report what
// they decode.
func Transforms(cfg *filterapi.Config, logger *slog.Logger) (request, response transform.Transform, err error) {
	request, err = directionTransform(cfg.Schema, &cfg.Request, true, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("request: %w", err)
	}
	response, err = directionTransform(cfg.Schema, &cfg.Response, false, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("response: %w", err)
	}
	return request, response, nil
}

func directionTransform(schema filterapi.Schema, dc *filterapi.DirectionConfig, isRequest bool, logger *slog.Logger) (transform.Transform, error) {
	if dc.Mode == filterapi.ModePassthrough || dc.Mode == "" {
		return transform.Passthrough{}, nil
	}
	if dc.Mode == filterapi.ModeRewrite && dc.Rewrite == nil {
		return nil, fmt.Errorf("mode %q requires a rewrite rule", filterapi.ModeRewrite)
	}
	switch schema {
	case filterapi.SchemaEcho:
		if isRequest {
			return echoTransform(dc, logger, echo.DecodeRequest, func(m *echo.EchoRequest) (*string, func() []byte) {
				return &m.Message, m.Encode
			}), nil
		}
		return echoTransform(dc, logger, echo.DecodeResponse, func(m *echo.EchoResponse) (*string, func() []byte) {
			return &m.Message, m.Encode
		}), nil
	case filterapi.SchemaKV:
		if isRequest {
			return kvRequestTransform(dc, logger), nil
		}
		return kvResponseTransform(dc, logger), nil
	default:
		return nil, fmt.Errorf("unknown schema %q", schema)
	}
}

// echoTransform builds the rewrite or inspect transform for either echo
// message. access returns the message's text field and its encoder.
func echoTransform[M any](dc *filterapi.DirectionConfig, logger *slog.Logger, decode func([]byte) (M, error), access func(M) (*string, func() []byte)) transform.Transform {
	if dc.Mode == filterapi.ModeInspect {
		return transform.Inspector[M]{
			Decode: decode,
			Observe: func(m M, payloadLen int) {
				field, _ := access(m)
				logger.Info("decoded echo message",
					slog.Int("payload_len", payloadLen),
					slog.Int("message_len", len(*field)))
			},
		}
	}
	rule := *dc.Rewrite
	return transform.Rewriter[M]{
		Decode: decode,
		Encode: func(m M) []byte {
			_, enc := access(m)
			return enc()
		},
		Mutate: func(m M) (M, bool) {
			field, _ := access(m)
			return m, replaceAll(field, rule.Match, rule.Replace)
		},
	}
}

func kvRequestTransform(dc *filterapi.DirectionConfig, logger *slog.Logger) transform.Transform {
	if dc.Mode == filterapi.ModeInspect {
		return transform.Inspector[*kv.SetRequest]{
			Decode: kv.DecodeSetRequest,
			Observe: func(m *kv.SetRequest, payloadLen int) {
				logger.Info("decoded kv set request",
					slog.Int("payload_len", payloadLen),
					slog.Int("value_len", len(m.Value)))
			},
		}
	}
	rule := *dc.Rewrite
	return transform.Rewriter[*kv.SetRequest]{
		Decode: kv.DecodeSetRequest,
		Encode: (*kv.SetRequest).Encode,
		Mutate: func(m *kv.SetRequest) (*kv.SetRequest, bool) {
			target := &m.Value
			if rule.Field == "key" {
				target = &m.Key
			}
			return m, replaceAll(target, rule.Match, rule.Replace)
		},
	}
}

func kvResponseTransform(dc *filterapi.DirectionConfig, logger *slog.Logger) transform.Transform {
	if dc.Mode == filterapi.ModeInspect {
		return transform.Inspector[*kv.GetResponse]{
			Decode: kv.DecodeGetResponse,
			Observe: func(m *kv.GetResponse, payloadLen int) {
				logger.Info("decoded kv get response",
					slog.Int("payload_len", payloadLen),
					slog.Int("value_len", len(m.Value)))
			},
		}
	}
	rule := *dc.Rewrite
	return transform.Rewriter[*kv.GetResponse]{
		Decode: kv.DecodeGetResponse,
		Encode: (*kv.GetResponse).Encode,
		Mutate: func(m *kv.GetResponse) (*kv.GetResponse, bool) {
			return m, replaceAll(&m.Value, rule.Match, rule.Replace)
		},
	}
}

// replaceAll substitutes match with replace in *s and reports whether the
// value changed.
func replaceAll(s *string, match, replace string) bool {
	n := strings.ReplaceAll(*s, match, replace)
	if n == *s {
		return false
	}
	*s = n
	return true
}
