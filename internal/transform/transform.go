// Copyright The AppNet Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package transform defines the schema-aware payload transforms applied to
// each uncompressed gRPC frame of an intercepted body. A transform must be a
// pure function of the payload bytes: no state may be carried between frames,
// so that frame order does not matter and re-applying a non-mutating
// transform is byte-for-byte idempotent.
package transform

// OutcomeKind discriminates the result of applying a Transform.
type OutcomeKind int

const (
	// OutcomeUnchanged means the original payload bytes must be forwarded.
	OutcomeUnchanged OutcomeKind = iota
	// OutcomeRewritten means Outcome.Payload replaces the original payload.
	OutcomeRewritten
	// OutcomeDecodeFailed means the payload did not parse as the expected
	// schema. The original bytes are still forwarded; the error is only for
	// reporting. Never fatal to the stream.
	OutcomeDecodeFailed
)

// Outcome is the result of applying a Transform to a frame payload.
type Outcome struct {
	Kind OutcomeKind
	// Payload is the replacement payload, set only for OutcomeRewritten.
	Payload []byte
	// Err is set only for OutcomeDecodeFailed.
	Err error
}

// Unchanged returns an OutcomeUnchanged outcome.
func Unchanged() Outcome { return Outcome{Kind: OutcomeUnchanged} }

// Rewritten returns an OutcomeRewritten outcome carrying the new payload.
func Rewritten(payload []byte) Outcome {
	return Outcome{Kind: OutcomeRewritten, Payload: payload}
}

// DecodeFailed returns an OutcomeDecodeFailed outcome carrying the decode error.
func DecodeFailed(err error) Outcome { return Outcome{Kind: OutcomeDecodeFailed, Err: err} }

// Transform is applied to the payload of every complete, uncompressed frame
// of a released body.
type Transform interface {
	// Apply transforms a single frame payload.
	Apply(payload []byte) Outcome
	// Mutates reports whether this transform can ever rewrite a payload.
	// When true the filter clears content-length preemptively, since a
	// rewrite may change the body size after headers were forwarded.
	Mutates() bool
}

// Passthrough forwards every payload untouched without decoding.
type Passthrough struct{}

// Apply implements [Transform].
func (Passthrough) Apply([]byte) Outcome { return Unchanged() }

// Mutates implements [Transform].
func (Passthrough) Mutates() bool { return false }

// Rewriter decodes a payload as M, applies Mutate, and re-encodes the result.
// A decode failure degrades to DecodeFailed so the original bytes are kept
// verbatim. When Mutate reports no change the original bytes are forwarded
// as-is rather than re-encoded.
type Rewriter[M any] struct {
	Decode func([]byte) (M, error)
	Encode func(M) []byte
	// Mutate returns the (possibly updated) message and whether it changed.
	Mutate func(M) (M, bool)
}

// Apply implements [Transform].
func (r Rewriter[M]) Apply(payload []byte) Outcome {
	msg, err := r.Decode(payload)
	if err != nil {
		return DecodeFailed(err)
	}
	msg, changed := r.Mutate(msg)
	if !changed {
		return Unchanged()
	}
	return Rewritten(r.Encode(msg))
}

// Mutates implements [Transform].
func (Rewriter[M]) Mutates() bool { return true }

// Inspector decodes a payload as M for read-only observation and never
// alters the bytes.
type Inspector[M any] struct {
	Decode  func([]byte) (M, error)
	Observe func(msg M, payloadLen int)
}

// Apply implements [Transform].
func (i Inspector[M]) Apply(payload []byte) Outcome {
	msg, err := i.Decode(payload)
	if err != nil {
		return DecodeFailed(err)
	}
	if i.Observe != nil {
		i.Observe(msg, len(payload))
	}
	return Unchanged()
}

// Mutates implements [Transform].
func (Inspector[M]) Mutates() bool { return false }
