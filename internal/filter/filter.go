// Copyright The AppNet Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package filter implements the per-stream gRPC body interception state
// machine: it buffers request and response bodies until end of stream,
// reassembles the gRPC length-prefixed frames, applies a per-direction
// payload transform, and releases the re-framed body. Every failure mode is
// fail-open: the original bytes are forwarded and the stream is never
// aborted.
package filter

import (
	"log/slog"

	"github.com/appnet-org/grpc-filter/internal/filter/sdk"
	"github.com/appnet-org/grpc-filter/internal/grpcframe"
	"github.com/appnet-org/grpc-filter/internal/transform"
)

// DefaultMaxBufferedRead bounds how large a buffered body the filter will
// inspect. Bodies beyond the bound are released unmodified. The default
// matches gRPC's default maximum receive message size.
const DefaultMaxBufferedRead = 4 << 20

type direction int

const (
	directionRequest direction = iota
	directionResponse
)

func (d direction) String() string {
	if d == directionRequest {
		return "request"
	}
	return "response"
}

// bodyState is the per-direction flow-control state: accumulator counters
// plus the Buffering/Released 2-state machine. released is terminal within
// the exchange.
type bodyState struct {
	acc      bodyAccumulator
	released bool
}

// Params configures a Filter instance.
type Params struct {
	// ContextID is the host-supplied stream identifier, used only in logs.
	ContextID string
	// RequestTransform and ResponseTransform are applied per frame to the
	// respective direction. Nil means passthrough.
	RequestTransform  transform.Transform
	ResponseTransform transform.Transform
	// MaxBufferedRead bounds the inspected body size; zero selects
	// DefaultMaxBufferedRead.
	MaxBufferedRead int
	Logger          *slog.Logger
	Metrics         Metrics
}

// Filter implements [sdk.HTTPFilter] for one HTTP stream. It is not safe for
// concurrent use; the host contract guarantees one callback at a time per
// stream.
type Filter struct {
	logger            *slog.Logger
	requestTransform  transform.Transform
	responseTransform transform.Transform
	maxBufferedRead   int
	metrics           Metrics

	request  bodyState
	response bodyState

	// Passthrough directions skip buffering entirely and release every
	// chunk as it arrives, like a filter that is not installed.
	requestPassthrough  bool
	responsePassthrough bool
}

// New creates a Filter for a single stream.
func New(p Params) *Filter {
	if p.RequestTransform == nil {
		p.RequestTransform = transform.Passthrough{}
	}
	if p.ResponseTransform == nil {
		p.ResponseTransform = transform.Passthrough{}
	}
	if p.MaxBufferedRead <= 0 {
		p.MaxBufferedRead = DefaultMaxBufferedRead
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	if p.Metrics == nil {
		p.Metrics = NopMetrics{}
	}
	_, requestPassthrough := p.RequestTransform.(transform.Passthrough)
	_, responsePassthrough := p.ResponseTransform.(transform.Passthrough)
	return &Filter{
		logger:              p.Logger.With(slog.String("context_id", p.ContextID)),
		requestTransform:    p.RequestTransform,
		responseTransform:   p.ResponseTransform,
		maxBufferedRead:     p.MaxBufferedRead,
		metrics:             p.Metrics,
		requestPassthrough:  requestPassthrough,
		responsePassthrough: responsePassthrough,
	}
}

// RequestHeaders implements [sdk.HTTPFilter].
func (f *Filter) RequestHeaders(h sdk.StreamHost, numHeaders int, endOfStream bool) sdk.HeadersStatus {
	f.logger.Debug("request headers received",
		slog.Int("num_headers", numHeaders),
		slog.Bool("end_of_stream", endOfStream))
	if f.requestTransform.Mutates() {
		// A rewrite may change the body size after these headers have been
		// forwarded, and a stale content-length is rejected by downstream
		// HTTP/2 framing.
		if !h.RemoveRequestHeader("content-length") {
			f.logger.Warn("failed to clear request content-length header")
		}
	}
	return sdk.HeadersStatusContinue
}

// RequestBody implements [sdk.HTTPFilter].
func (f *Filter) RequestBody(h sdk.StreamHost, chunkLen int, endOfStream bool) sdk.BodyStatus {
	return f.onBody(h, directionRequest, chunkLen, endOfStream)
}

// ResponseHeaders implements [sdk.HTTPFilter].
func (f *Filter) ResponseHeaders(h sdk.StreamHost, numHeaders int, endOfStream bool) sdk.HeadersStatus {
	f.logger.Debug("response headers received",
		slog.Int("num_headers", numHeaders),
		slog.Bool("end_of_stream", endOfStream))
	if f.responseTransform.Mutates() {
		if !h.RemoveResponseHeader("content-length") {
			f.logger.Warn("failed to clear response content-length header")
		}
	}
	return sdk.HeadersStatusContinue
}

// ResponseBody implements [sdk.HTTPFilter].
func (f *Filter) ResponseBody(h sdk.StreamHost, chunkLen int, endOfStream bool) sdk.BodyStatus {
	return f.onBody(h, directionResponse, chunkLen, endOfStream)
}

// OnDestroy implements [sdk.HTTPFilter].
func (f *Filter) OnDestroy() {
	f.logger.Debug("filter destroyed",
		slog.Int("request_bytes", f.request.acc.receivedBytes),
		slog.Int("response_bytes", f.response.acc.receivedBytes))
}

func (f *Filter) state(dir direction) *bodyState {
	if dir == directionRequest {
		return &f.request
	}
	return &f.response
}

func (f *Filter) passthrough(dir direction) bool {
	if dir == directionRequest {
		return f.requestPassthrough
	}
	return f.responsePassthrough
}

func (f *Filter) transform(dir direction) transform.Transform {
	if dir == directionRequest {
		return f.requestTransform
	}
	return f.responseTransform
}

func (f *Filter) onBody(h sdk.StreamHost, dir direction, chunkLen int, endOfStream bool) sdk.BodyStatus {
	st := f.state(dir)
	logger := f.logger.With(slog.String("direction", dir.String()))
	if st.released {
		// Terminal state; anything after release passes through unmodified.
		return sdk.BodyStatusContinue
	}
	st.acc.onChunk(chunkLen, endOfStream)
	logger.Debug("body chunk received",
		slog.Int("chunk_len", chunkLen),
		slog.Int("received_bytes", st.acc.receivedBytes),
		slog.Bool("end_of_stream", endOfStream))
	if f.passthrough(dir) {
		if endOfStream {
			st.released = true
			f.metrics.BodyReleased(dir.String(), st.acc.receivedBytes)
		}
		return sdk.BodyStatusContinue
	}
	if !st.acc.readyToRelease() {
		return sdk.BodyStatusStopIterationAndBuffer
	}
	st.released = true
	f.releaseBody(h, dir, st, logger)
	return sdk.BodyStatusContinue
}

// releaseBody reads the accumulated body from the host, runs the frame codec
// and the direction's transform over it, and writes the re-framed result
// back when anything changed. Always returns with the body forwarded: on any
// failure the host's original bytes go downstream untouched.
func (f *Filter) releaseBody(h sdk.StreamHost, dir direction, st *bodyState, logger *slog.Logger) {
	f.metrics.BodyReleased(dir.String(), st.acc.receivedBytes)
	if st.acc.tooShort() {
		logger.Debug("body too short for a gRPC frame, forwarding unmodified",
			slog.Int("received_bytes", st.acc.receivedBytes))
		return
	}
	if st.acc.receivedBytes > f.maxBufferedRead {
		logger.Warn("body exceeds inspection bound, forwarding unmodified",
			slog.Int("received_bytes", st.acc.receivedBytes),
			slog.Int("max_buffered_read", f.maxBufferedRead))
		return
	}

	body, ok := f.getBody(h, dir, 0, st.acc.receivedBytes)
	if !ok || len(body) == 0 {
		logger.Debug("no buffered body available at end of stream")
		return
	}
	if len(body) < grpcframe.HeaderSize {
		logger.Debug("buffered body too short for a gRPC frame, forwarding unmodified",
			slog.Int("body_len", len(body)))
		return
	}

	frames, leftover := grpcframe.ParseFrames(body)
	f.metrics.FramesObserved(dir.String(), len(frames))
	tr := f.transform(dir)
	rewritten := false
	out := make([]byte, 0, len(body))
	for _, fr := range frames {
		if fr.Compressed != 0 {
			// Compressed payloads are opaque to the transform.
			out = grpcframe.AppendEncode(out, fr)
			continue
		}
		switch oc := tr.Apply(fr.Payload); oc.Kind {
		case transform.OutcomeRewritten:
			rewritten = true
			f.metrics.RewriteApplied(dir.String())
			out = grpcframe.AppendEncode(out, grpcframe.Frame{Payload: oc.Payload})
			logger.Debug("frame payload rewritten",
				slog.Int("old_len", len(fr.Payload)),
				slog.Int("new_len", len(oc.Payload)))
		case transform.OutcomeDecodeFailed:
			f.metrics.DecodeFailed(dir.String())
			logger.Warn("failed to decode frame payload, forwarding unmodified",
				slog.Int("payload_len", len(fr.Payload)),
				slog.String("error", oc.Err.Error()))
			out = grpcframe.AppendEncode(out, fr)
		default:
			out = grpcframe.AppendEncode(out, fr)
		}
	}
	if !rewritten {
		// Byte-identical; skip the host write entirely.
		return
	}
	out = append(out, leftover...)
	if !f.setBody(h, dir, 0, len(body), out) {
		logger.Warn("failed to replace body, original forwarded",
			slog.Int("body_len", len(body)),
			slog.Int("new_len", len(out)))
	}
}

func (f *Filter) getBody(h sdk.StreamHost, dir direction, offset, maxLen int) ([]byte, bool) {
	if dir == directionRequest {
		return h.GetBufferedRequestBody(offset, maxLen)
	}
	return h.GetBufferedResponseBody(offset, maxLen)
}

func (f *Filter) setBody(h sdk.StreamHost, dir direction, offset, length int, data []byte) bool {
	if dir == directionRequest {
		return h.SetRequestBody(offset, length, data)
	}
	return h.SetResponseBody(offset, length, data)
}
