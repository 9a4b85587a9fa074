// Copyright The AppNet Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package echo contains hand-rolled wire codecs for the echo benchmark
// service messages. The filter only needs to read and rewrite the text
// field, so the codec models that field and carries every other field as
// opaque bytes, re-emitted verbatim on encode.
package echo

import (
	"fmt"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"
)

const messageFieldNumber = protowire.Number(1)

// EchoRequest is the request message of the echo service.
type EchoRequest struct {
	Message string
	// unknown preserves fields this codec does not model.
	unknown []byte
}

// EchoResponse is the response message of the echo service. It carries the
// same single text field as the request.
type EchoResponse struct {
	Message string
	unknown []byte
}

// DecodeRequest parses b as an EchoRequest.
func DecodeRequest(b []byte) (*EchoRequest, error) {
	msg, unknown, err := decodeTextMessage(b)
	if err != nil {
		return nil, err
	}
	return &EchoRequest{Message: msg, unknown: unknown}, nil
}

// Encode serializes m back to the wire format.
func (m *EchoRequest) Encode() []byte { return encodeTextMessage(m.Message, m.unknown) }

// DecodeResponse parses b as an EchoResponse.
func DecodeResponse(b []byte) (*EchoResponse, error) {
	msg, unknown, err := decodeTextMessage(b)
	if err != nil {
		return nil, err
	}
	return &EchoResponse{Message: msg, unknown: unknown}, nil
}

// Encode serializes m back to the wire format.
func (m *EchoResponse) Encode() []byte { return encodeTextMessage(m.Message, m.unknown) }

func decodeTextMessage(b []byte) (message string, unknown []byte, err error) {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return "", nil, fmt.Errorf("invalid field tag: %w", protowire.ParseError(n))
		}
		if num == messageFieldNumber {
			if typ != protowire.BytesType {
				return "", nil, fmt.Errorf("field %d: unexpected wire type %d", num, typ)
			}
			v, m := protowire.ConsumeBytes(b[n:])
			if m < 0 {
				return "", nil, fmt.Errorf("field %d: %w", num, protowire.ParseError(m))
			}
			if !utf8.Valid(v) {
				return "", nil, fmt.Errorf("field %d: invalid UTF-8", num)
			}
			message = string(v)
			b = b[n+m:]
			continue
		}
		m := protowire.ConsumeFieldValue(num, typ, b[n:])
		if m < 0 {
			return "", nil, fmt.Errorf("field %d: %w", num, protowire.ParseError(m))
		}
		unknown = append(unknown, b[:n+m]...)
		b = b[n+m:]
	}
	return message, unknown, nil
}

func encodeTextMessage(message string, unknown []byte) []byte {
	var out []byte
	if message != "" {
		out = protowire.AppendTag(out, messageFieldNumber, protowire.BytesType)
		out = protowire.AppendString(out, message)
	}
	return append(out, unknown...)
}
