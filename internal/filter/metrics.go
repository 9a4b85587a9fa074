// Copyright The AppNet Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package filter

// Metrics records data-plane events per direction. Implementations must be
// safe for concurrent use since multiple streams report to the same instance.
type Metrics interface {
	// FramesObserved records n complete frames parsed from a released body.
	FramesObserved(direction string, n int)
	// RewriteApplied records one frame payload rewrite.
	RewriteApplied(direction string)
	// DecodeFailed records one frame payload that did not parse.
	DecodeFailed(direction string)
	// BodyReleased records the byte size of a released body.
	BodyReleased(direction string, bytes int)
}

// NopMetrics discards all recorded events.
type NopMetrics struct{}

func (NopMetrics) FramesObserved(string, int) {}
func (NopMetrics) RewriteApplied(string)      {}
func (NopMetrics) DecodeFailed(string)        {}
func (NopMetrics) BodyReleased(string, int)   {}
