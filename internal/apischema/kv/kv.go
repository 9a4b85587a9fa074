// Copyright The AppNet Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package kv contains hand-rolled wire codecs for the key-value store
// benchmark service messages. As with the echo codec, only the string fields
// the filter inspects or rewrites are modeled; everything else is preserved
// as opaque bytes.
package kv

import (
	"fmt"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"
)

// SetRequest stores a value under a key.
type SetRequest struct {
	Key     string // field 1
	Value   string // field 2
	unknown []byte
}

// GetRequest fetches the value stored under a key.
type GetRequest struct {
	Key     string // field 1
	unknown []byte
}

// GetResponse carries the value fetched by a GetRequest.
type GetResponse struct {
	Value   string // field 1
	unknown []byte
}

// SetResponse echoes the value stored by a SetRequest.
type SetResponse struct {
	Value   string // field 1
	unknown []byte
}

// DecodeSetRequest parses b as a SetRequest.
func DecodeSetRequest(b []byte) (*SetRequest, error) {
	m := &SetRequest{}
	err := scanStringFields(b, map[protowire.Number]*string{1: &m.Key, 2: &m.Value}, &m.unknown)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Encode serializes m back to the wire format.
func (m *SetRequest) Encode() []byte {
	out := appendStringField(nil, 1, m.Key)
	out = appendStringField(out, 2, m.Value)
	return append(out, m.unknown...)
}

// DecodeGetRequest parses b as a GetRequest.
func DecodeGetRequest(b []byte) (*GetRequest, error) {
	m := &GetRequest{}
	if err := scanStringFields(b, map[protowire.Number]*string{1: &m.Key}, &m.unknown); err != nil {
		return nil, err
	}
	return m, nil
}

// Encode serializes m back to the wire format.
func (m *GetRequest) Encode() []byte {
	return append(appendStringField(nil, 1, m.Key), m.unknown...)
}

// DecodeGetResponse parses b as a GetResponse.
func DecodeGetResponse(b []byte) (*GetResponse, error) {
	m := &GetResponse{}
	if err := scanStringFields(b, map[protowire.Number]*string{1: &m.Value}, &m.unknown); err != nil {
		return nil, err
	}
	return m, nil
}

// Encode serializes m back to the wire format.
func (m *GetResponse) Encode() []byte {
	return append(appendStringField(nil, 1, m.Value), m.unknown...)
}

// DecodeSetResponse parses b as a SetResponse.
func DecodeSetResponse(b []byte) (*SetResponse, error) {
	m := &SetResponse{}
	if err := scanStringFields(b, map[protowire.Number]*string{1: &m.Value}, &m.unknown); err != nil {
		return nil, err
	}
	return m, nil
}

// Encode serializes m back to the wire format.
func (m *SetResponse) Encode() []byte {
	return append(appendStringField(nil, 1, m.Value), m.unknown...)
}

// scanStringFields walks the wire format, assigning the string fields listed
// in want and accumulating everything else into unknown.
func scanStringFields(b []byte, want map[protowire.Number]*string, unknown *[]byte) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("invalid field tag: %w", protowire.ParseError(n))
		}
		if dst, ok := want[num]; ok {
			if typ != protowire.BytesType {
				return fmt.Errorf("field %d: unexpected wire type %d", num, typ)
			}
			v, m := protowire.ConsumeBytes(b[n:])
			if m < 0 {
				return fmt.Errorf("field %d: %w", num, protowire.ParseError(m))
			}
			if !utf8.Valid(v) {
				return fmt.Errorf("field %d: invalid UTF-8", num)
			}
			*dst = string(v)
			b = b[n+m:]
			continue
		}
		m := protowire.ConsumeFieldValue(num, typ, b[n:])
		if m < 0 {
			return fmt.Errorf("field %d: %w", num, protowire.ParseError(m))
		}
		*unknown = append(*unknown, b[:n+m]...)
		b = b[n+m:]
	}
	return nil
}

func appendStringField(out []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return out
	}
	out = protowire.AppendTag(out, num, protowire.BytesType)
	return protowire.AppendString(out, v)
}
