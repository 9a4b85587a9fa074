// Copyright The AppNet Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package sdk defines the contract between a body-interception filter and
// the host runtime that drives it. The host invokes the [HTTPFilter]
// callbacks in the fixed order {request headers, request body (0..N times),
// response headers, response body (0..N times)} and never reenters a filter
// while a previous callback is executing. The filter holds no body bytes
// between callbacks; the host retains any withheld data and exposes it
// through [StreamHost].
package sdk

// StreamHost exposes the host-side primitives a filter may use during a
// callback. The implementation must not be retained after the callback
// returns.
type StreamHost interface {
	// GetBufferedRequestBody returns up to maxLen bytes of the request body
	// the host has buffered, starting at offset. Returns false when no data
	// is available.
	GetBufferedRequestBody(offset, maxLen int) ([]byte, bool)
	// SetRequestBody replaces length bytes of the buffered request body at
	// offset with data. Returns true on success.
	SetRequestBody(offset, length int, data []byte) bool
	// GetBufferedResponseBody is the response-direction counterpart of
	// GetBufferedRequestBody.
	GetBufferedResponseBody(offset, maxLen int) ([]byte, bool)
	// SetResponseBody is the response-direction counterpart of SetRequestBody.
	SetResponseBody(offset, length int, data []byte) bool

	// SetRequestHeader sets a request header. Returns true on success.
	SetRequestHeader(key string, value []byte) bool
	// RemoveRequestHeader removes a request header. Returns true on success.
	RemoveRequestHeader(key string) bool
	// SetResponseHeader sets a response header. Returns true on success.
	SetResponseHeader(key string, value []byte) bool
	// RemoveResponseHeader removes a response header. Returns true on success.
	RemoveResponseHeader(key string) bool
}

// HTTPFilter is the per-stream filter driven by the host. One instance is
// created per HTTP request/response exchange and destroyed when the stream
// is torn down. Instances are never shared across streams.
type HTTPFilter interface {
	// RequestHeaders is called when the request headers are received.
	RequestHeaders(h StreamHost, numHeaders int, endOfStream bool) HeadersStatus
	// RequestBody is called for each request body chunk. chunkLen is the
	// number of new bytes the host buffered for this call.
	RequestBody(h StreamHost, chunkLen int, endOfStream bool) BodyStatus
	// ResponseHeaders is called when the response headers are received.
	ResponseHeaders(h StreamHost, numHeaders int, endOfStream bool) HeadersStatus
	// ResponseBody is called for each response body chunk.
	ResponseBody(h StreamHost, chunkLen int, endOfStream bool) BodyStatus
	// OnDestroy is called when the stream is torn down.
	OnDestroy()
}

// NoopHTTPFilter is a no-op implementation of the HTTPFilter interface.
type NoopHTTPFilter struct{}

func (NoopHTTPFilter) RequestHeaders(StreamHost, int, bool) HeadersStatus {
	return HeadersStatusContinue
}

func (NoopHTTPFilter) RequestBody(StreamHost, int, bool) BodyStatus { return BodyStatusContinue }

func (NoopHTTPFilter) ResponseHeaders(StreamHost, int, bool) HeadersStatus {
	return HeadersStatusContinue
}

func (NoopHTTPFilter) ResponseBody(StreamHost, int, bool) BodyStatus { return BodyStatusContinue }

func (NoopHTTPFilter) OnDestroy() {}

// HeadersStatus is the return value of the headers callbacks.
type HeadersStatus int

const (
	// HeadersStatusContinue forwards the headers downstream.
	HeadersStatusContinue HeadersStatus = 0
	// HeadersStatusStopIteration withholds the headers until the filter
	// continues in a later phase.
	HeadersStatusStopIteration HeadersStatus = 1
)

// BodyStatus is the return value of the body callbacks.
type BodyStatus int

const (
	// BodyStatusContinue releases the buffered body downstream.
	BodyStatusContinue BodyStatus = 0
	// BodyStatusStopIterationAndBuffer withholds the chunk; the host keeps
	// buffering and re-invokes the callback when more data arrives.
	BodyStatusStopIterationAndBuffer BodyStatus = 1
)
