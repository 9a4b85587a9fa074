// Copyright The AppNet Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package extproc

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/appnet-org/grpc-filter/internal/filter"
)

var (
	framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grpcfilter_frames_total",
			Help: "Total number of complete gRPC frames parsed from released bodies",
		},
		[]string{"direction"},
	)
	rewritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grpcfilter_rewrites_total",
			Help: "Total number of frame payloads rewritten",
		},
		[]string{"direction"},
	)
	decodeFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grpcfilter_decode_failures_total",
			Help: "Total number of frame payloads that did not parse as the configured schema",
		},
		[]string{"direction"},
	)
	releasedBodyBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "grpcfilter_released_body_bytes",
			Help:    "Size of released bodies in bytes",
			Buckets: prometheus.ExponentialBuckets(64, 4, 10),
		},
		[]string{"direction"},
	)
)

func init() {
	prometheus.MustRegister(framesTotal)
	prometheus.MustRegister(rewritesTotal)
	prometheus.MustRegister(decodeFailuresTotal)
	prometheus.MustRegister(releasedBodyBytes)
}

var _ filter.Metrics = (*filterMetrics)(nil)

// filterMetrics reports filter events to the process-wide prometheus
// collectors.
type filterMetrics struct{}

func newFilterMetrics() filter.Metrics { return filterMetrics{} }

func (filterMetrics) FramesObserved(direction string, n int) {
	framesTotal.WithLabelValues(direction).Add(float64(n))
}

func (filterMetrics) RewriteApplied(direction string) {
	rewritesTotal.WithLabelValues(direction).Inc()
}

func (filterMetrics) DecodeFailed(direction string) {
	decodeFailuresTotal.WithLabelValues(direction).Inc()
}

func (filterMetrics) BodyReleased(direction string, bytes int) {
	releasedBodyBytes.WithLabelValues(direction).Observe(float64(bytes))
}
