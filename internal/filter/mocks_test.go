// Copyright The AppNet Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package filter

import (
	"github.com/appnet-org/grpc-filter/internal/filter/sdk"
)

var _ sdk.StreamHost = (*mockHost)(nil)

// mockHost implements [sdk.StreamHost] for testing. It plays the host role:
// it owns the buffered body bytes for both directions and records every
// mutation the filter performs.
type mockHost struct {
	reqBody, respBody       []byte
	reqHeaders, respHeaders map[string]string

	// failBodyRead makes the Get primitives report no data.
	failBodyRead bool

	reqBodyReads, respBodyReads int
}

func newMockHost() *mockHost {
	return &mockHost{
		reqHeaders:  map[string]string{"content-length": "0"},
		respHeaders: map[string]string{"content-length": "0"},
	}
}

func (m *mockHost) GetBufferedRequestBody(offset, maxLen int) ([]byte, bool) {
	m.reqBodyReads++
	return getBody(m.reqBody, offset, maxLen, m.failBodyRead)
}

func (m *mockHost) SetRequestBody(offset, length int, data []byte) bool {
	m.reqBody = setBody(m.reqBody, offset, length, data)
	return true
}

func (m *mockHost) GetBufferedResponseBody(offset, maxLen int) ([]byte, bool) {
	m.respBodyReads++
	return getBody(m.respBody, offset, maxLen, m.failBodyRead)
}

func (m *mockHost) SetResponseBody(offset, length int, data []byte) bool {
	m.respBody = setBody(m.respBody, offset, length, data)
	return true
}

func (m *mockHost) SetRequestHeader(key string, value []byte) bool {
	m.reqHeaders[key] = string(value)
	return true
}

func (m *mockHost) RemoveRequestHeader(key string) bool {
	delete(m.reqHeaders, key)
	return true
}

func (m *mockHost) SetResponseHeader(key string, value []byte) bool {
	m.respHeaders[key] = string(value)
	return true
}

func (m *mockHost) RemoveResponseHeader(key string) bool {
	delete(m.respHeaders, key)
	return true
}

func getBody(body []byte, offset, maxLen int, fail bool) ([]byte, bool) {
	if fail || offset >= len(body) {
		return nil, false
	}
	end := offset + maxLen
	if end > len(body) {
		end = len(body)
	}
	return body[offset:end], true
}

func setBody(body []byte, offset, length int, data []byte) []byte {
	out := append([]byte(nil), body[:offset]...)
	out = append(out, data...)
	return append(out, body[offset+length:]...)
}

var _ Metrics = (*mockMetrics)(nil)

// mockMetrics implements [Metrics] by counting events per direction.
type mockMetrics struct {
	frames, rewrites, decodeFailures, released map[string]int
}

func newMockMetrics() *mockMetrics {
	return &mockMetrics{
		frames:         map[string]int{},
		rewrites:       map[string]int{},
		decodeFailures: map[string]int{},
		released:       map[string]int{},
	}
}

func (m *mockMetrics) FramesObserved(direction string, n int) { m.frames[direction] += n }
func (m *mockMetrics) RewriteApplied(direction string)        { m.rewrites[direction]++ }
func (m *mockMetrics) DecodeFailed(direction string)          { m.decodeFailures[direction]++ }
func (m *mockMetrics) BodyReleased(direction string, bytes int) {
	m.released[direction] += bytes
}
