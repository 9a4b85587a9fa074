// Copyright The AppNet Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package extproc

import (
	corev3 "github.com/envoyproxy/go-control-plane/envoy/config/core/v3"
	extprocv3 "github.com/envoyproxy/go-control-plane/envoy/service/ext_proc/v3"

	"github.com/appnet-org/grpc-filter/internal/filter/sdk"
)

// processor handles one ext_proc stream. It plays the host role of the
// filter contract: Envoy streams body chunks to this process, so the
// processor retains the withheld bytes for both directions and exposes them
// to the filter through [sdk.StreamHost]. Filter decisions are translated
// back into ProcessingResponse header and body mutations.
type processor struct {
	filter sdk.HTTPFilter

	request  hostBody
	response hostBody

	// pendingHeaders accumulates header mutations performed by the filter
	// during the current headers callback.
	pendingHeaders *extprocv3.HeaderMutation
}

// hostBody is the host-side buffered state of one direction.
type hostBody struct {
	buffered []byte
	// withheld is true once at least one chunk was swallowed instead of
	// being forwarded; the accumulated body must then be re-emitted with the
	// releasing chunk.
	withheld bool
	// mutated is true once the filter replaced part of the buffered body.
	mutated bool
}

var _ sdk.StreamHost = (*processor)(nil)

func (p *processor) GetBufferedRequestBody(offset, maxLen int) ([]byte, bool) {
	return sliceBody(p.request.buffered, offset, maxLen)
}

func (p *processor) SetRequestBody(offset, length int, data []byte) bool {
	p.request.buffered = spliceBody(p.request.buffered, offset, length, data)
	p.request.mutated = true
	return true
}

func (p *processor) GetBufferedResponseBody(offset, maxLen int) ([]byte, bool) {
	return sliceBody(p.response.buffered, offset, maxLen)
}

func (p *processor) SetResponseBody(offset, length int, data []byte) bool {
	p.response.buffered = spliceBody(p.response.buffered, offset, length, data)
	p.response.mutated = true
	return true
}

func (p *processor) SetRequestHeader(key string, value []byte) bool {
	return p.setHeader(key, value)
}

func (p *processor) RemoveRequestHeader(key string) bool { return p.removeHeader(key) }

func (p *processor) SetResponseHeader(key string, value []byte) bool {
	return p.setHeader(key, value)
}

func (p *processor) RemoveResponseHeader(key string) bool { return p.removeHeader(key) }

func (p *processor) setHeader(key string, value []byte) bool {
	if p.pendingHeaders == nil {
		// A header mutation outside a headers callback cannot be delivered
		// over ext_proc.
		return false
	}
	p.pendingHeaders.SetHeaders = append(p.pendingHeaders.SetHeaders, &corev3.HeaderValueOption{
		Header: &corev3.HeaderValue{Key: key, RawValue: value},
	})
	return true
}

func (p *processor) removeHeader(key string) bool {
	if p.pendingHeaders == nil {
		return false
	}
	p.pendingHeaders.RemoveHeaders = append(p.pendingHeaders.RemoveHeaders, key)
	return true
}

// processRequestHeaders processes the request headers message.
func (p *processor) processRequestHeaders(headers *corev3.HeaderMap, endOfStream bool) *extprocv3.ProcessingResponse {
	mutation := p.headersCallback(headers, func(numHeaders int) {
		p.filter.RequestHeaders(p, numHeaders, endOfStream)
	})
	return &extprocv3.ProcessingResponse{Response: &extprocv3.ProcessingResponse_RequestHeaders{
		RequestHeaders: &extprocv3.HeadersResponse{
			Response: &extprocv3.CommonResponse{HeaderMutation: mutation},
		},
	}}
}

// processRequestBody processes one request body chunk message.
func (p *processor) processRequestBody(body *extprocv3.HttpBody) *extprocv3.ProcessingResponse {
	mutation := p.bodyCallback(&p.request, body, func(chunkLen int, endOfStream bool) sdk.BodyStatus {
		return p.filter.RequestBody(p, chunkLen, endOfStream)
	})
	return &extprocv3.ProcessingResponse{Response: &extprocv3.ProcessingResponse_RequestBody{
		RequestBody: &extprocv3.BodyResponse{
			Response: &extprocv3.CommonResponse{BodyMutation: mutation},
		},
	}}
}

// processResponseHeaders processes the response headers message.
func (p *processor) processResponseHeaders(headers *corev3.HeaderMap, endOfStream bool) *extprocv3.ProcessingResponse {
	mutation := p.headersCallback(headers, func(numHeaders int) {
		p.filter.ResponseHeaders(p, numHeaders, endOfStream)
	})
	return &extprocv3.ProcessingResponse{Response: &extprocv3.ProcessingResponse_ResponseHeaders{
		ResponseHeaders: &extprocv3.HeadersResponse{
			Response: &extprocv3.CommonResponse{HeaderMutation: mutation},
		},
	}}
}

// processResponseBody processes one response body chunk message.
func (p *processor) processResponseBody(body *extprocv3.HttpBody) *extprocv3.ProcessingResponse {
	mutation := p.bodyCallback(&p.response, body, func(chunkLen int, endOfStream bool) sdk.BodyStatus {
		return p.filter.ResponseBody(p, chunkLen, endOfStream)
	})
	return &extprocv3.ProcessingResponse{Response: &extprocv3.ProcessingResponse_ResponseBody{
		ResponseBody: &extprocv3.BodyResponse{
			Response: &extprocv3.CommonResponse{BodyMutation: mutation},
		},
	}}
}

// headersCallback invokes a headers-phase callback with the mutation
// recorder armed and returns whatever mutation the filter performed.
func (p *processor) headersCallback(headers *corev3.HeaderMap, cb func(numHeaders int)) *extprocv3.HeaderMutation {
	p.pendingHeaders = &extprocv3.HeaderMutation{}
	cb(len(headers.GetHeaders()))
	mutation := p.pendingHeaders
	p.pendingHeaders = nil
	if len(mutation.SetHeaders) == 0 && len(mutation.RemoveHeaders) == 0 {
		return nil
	}
	return mutation
}

// bodyCallback appends the chunk to the host buffer, invokes the filter, and
// translates the status: while the filter buffers, the chunk is swallowed
// (replaced with an empty body); on release, the accumulated and possibly
// rewritten body is emitted in place of the final chunk.
func (p *processor) bodyCallback(hb *hostBody, body *extprocv3.HttpBody, cb func(chunkLen int, endOfStream bool) sdk.BodyStatus) *extprocv3.BodyMutation {
	hb.buffered = append(hb.buffered, body.GetBody()...)
	status := cb(len(body.GetBody()), body.GetEndOfStream())
	if status == sdk.BodyStatusStopIterationAndBuffer {
		hb.withheld = true
		return &extprocv3.BodyMutation{Mutation: &extprocv3.BodyMutation_Body{Body: nil}}
	}
	if hb.withheld || hb.mutated {
		hb.withheld = false
		return &extprocv3.BodyMutation{Mutation: &extprocv3.BodyMutation_Body{Body: hb.buffered}}
	}
	// Nothing withheld and nothing rewritten; forward the chunk untouched.
	return nil
}

func sliceBody(body []byte, offset, maxLen int) ([]byte, bool) {
	if offset < 0 || offset >= len(body) {
		return nil, false
	}
	end := offset + maxLen
	if end > len(body) || end < offset {
		end = len(body)
	}
	return body[offset:end], true
}

func spliceBody(body []byte, offset, length int, data []byte) []byte {
	if offset < 0 || offset > len(body) {
		return body
	}
	if offset+length > len(body) {
		length = len(body) - offset
	}
	out := make([]byte, 0, offset+len(data)+len(body)-offset-length)
	out = append(out, body[:offset]...)
	out = append(out, data...)
	return append(out, body[offset+length:]...)
}
