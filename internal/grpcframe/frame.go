// Copyright The AppNet Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package grpcframe implements the gRPC length-prefixed message framing used
// on HTTP message bodies: a 1-byte compression flag followed by a 4-byte
// big-endian payload length and the payload itself. A body may carry zero or
// more complete frames plus a partial trailing frame while streaming.
package grpcframe

import "encoding/binary"

// HeaderSize is the size of the gRPC frame header: [compression_flag(1)][length(4)].
const HeaderSize = 5

// Frame is one length-delimited gRPC message unit.
type Frame struct {
	// Compressed is the wire compression flag. Only 0 (uncompressed) is
	// decodable by this module; any other value is forwarded untouched.
	Compressed byte
	// Payload is the message bytes. The length field on the wire is always
	// derived from len(Payload) at encode time, never stored separately.
	Payload []byte
}

// ParseFrames scans b from offset 0 and returns every complete frame plus the
// unconsumed tail. The tail is a partial frame (or partial header) still
// awaiting more data; a declared length that exceeds the remaining buffer is
// treated as incomplete rather than malformed, since more chunks may arrive.
func ParseFrames(b []byte) (frames []Frame, leftover []byte) {
	off := 0
	for len(b)-off >= HeaderSize {
		length := binary.BigEndian.Uint32(b[off+1 : off+HeaderSize])
		total := HeaderSize + int(length)
		if total < 0 || len(b)-off < total {
			break
		}
		frames = append(frames, Frame{
			Compressed: b[off],
			Payload:    b[off+HeaderSize : off+total],
		})
		off += total
	}
	return frames, b[off:]
}

// Encode serializes f with the length field recomputed from the payload.
func Encode(f Frame) []byte {
	out := make([]byte, HeaderSize+len(f.Payload))
	out[0] = f.Compressed
	binary.BigEndian.PutUint32(out[1:HeaderSize], uint32(len(f.Payload)))
	copy(out[HeaderSize:], f.Payload)
	return out
}

// AppendEncode appends the serialized form of f to dst and returns the
// extended slice, avoiding an allocation per frame when re-framing a body.
func AppendEncode(dst []byte, f Frame) []byte {
	var hdr [HeaderSize]byte
	hdr[0] = f.Compressed
	binary.BigEndian.PutUint32(hdr[1:], uint32(len(f.Payload)))
	dst = append(dst, hdr[:]...)
	return append(dst, f.Payload...)
}
