// Copyright The AppNet Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package filter

import "github.com/appnet-org/grpc-filter/internal/grpcframe"

// bodyAccumulator tracks how much of one direction's body the host has
// buffered so far. The host physically retains the bytes; the filter only
// keeps these counters between callbacks.
type bodyAccumulator struct {
	receivedBytes   int
	endOfStreamSeen bool
}

func (a *bodyAccumulator) onChunk(chunkLen int, endOfStream bool) {
	a.receivedBytes += chunkLen
	if endOfStream {
		a.endOfStreamSeen = true
	}
}

// readyToRelease reports whether the conservative whole-body policy is
// satisfied. gRPC frame boundaries cannot be known reliably from a prefix,
// so the default is to wait for end of stream.
func (a *bodyAccumulator) readyToRelease() bool { return a.endOfStreamSeen }

// tooShort reports whether the stream ended without enough bytes for even a
// frame header. Such a body is released unmodified without a decode attempt.
func (a *bodyAccumulator) tooShort() bool {
	return a.endOfStreamSeen && a.receivedBytes < grpcframe.HeaderSize
}
