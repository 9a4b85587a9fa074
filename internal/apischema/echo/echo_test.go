// Copyright The AppNet Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package echo

import (
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestDecodeRequest(t *testing.T) {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendString(b, "Hello Bob")

	m, err := DecodeRequest(b)
	require.NoError(t, err)
	require.Equal(t, "Hello Bob", m.Message)
	require.Equal(t, b, m.Encode())
}

func TestDecodeRequestPreservesUnknownFields(t *testing.T) {
	var b []byte
	b = protowire.AppendTag(b, 7, protowire.VarintType)
	b = protowire.AppendVarint(b, 42)
	unknown := append([]byte(nil), b...)
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendString(b, "Bob")

	m, err := DecodeRequest(b)
	require.NoError(t, err)
	require.Equal(t, "Bob", m.Message)

	m.Message = "Alice"
	var want []byte
	want = protowire.AppendTag(want, 1, protowire.BytesType)
	want = protowire.AppendString(want, "Alice")
	want = append(want, unknown...)
	require.Equal(t, want, m.Encode())
}

func TestDecodeRequestErrors(t *testing.T) {
	for _, tc := range []struct {
		name string
		in   []byte
	}{
		{name: "truncated tag", in: []byte{0xff}},
		{name: "truncated length delimited field", in: []byte{0x0a, 0x10, 'x'}},
		{name: "wrong wire type for message field", in: []byte{0x08, 0x01}},
		{name: "invalid utf8", in: []byte{0x0a, 0x02, 0xff, 0xfe}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeRequest(tc.in)
			require.Error(t, err)
		})
	}
}

func TestResponseRoundTrip(t *testing.T) {
	m := &EchoResponse{Message: "pong"}
	got, err := DecodeResponse(m.Encode())
	require.NoError(t, err)
	require.Equal(t, "pong", got.Message)
}

func TestEncodeEmptyMessage(t *testing.T) {
	// proto3 omits empty scalar fields.
	require.Empty(t, (&EchoRequest{}).Encode())
}
