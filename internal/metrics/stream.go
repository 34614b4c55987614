// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		streamDeltas,
		streamDiscontinuities,
		streamDuration,
	)
}

var (
	streamDeltas = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_deltas_total",
			Help:      "Non-empty deltas forwarded to the presentation layer.",
		},
	)

	streamDiscontinuities = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_discontinuities_total",
			Help:      "Snapshots that did not extend the previous one (shorter/diverged).",
		},
		[]string{"kind"},
	)

	streamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stream_duration_seconds",
			Help:      "Streaming response duration by outcome.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80, 160},
		},
		[]string{"success"},
	)
)

// AddStreamDeltas counts forwarded deltas.
func AddStreamDeltas(n int) {
	streamDeltas.Add(float64(n))
}

// IncStreamDiscontinuity counts a non-cumulative snapshot of the given kind.
func IncStreamDiscontinuity(kind string) {
	streamDiscontinuities.WithLabelValues(norm(kind)).Inc()
}

// ObserveStream records a finished stream.
func ObserveStream(d time.Duration, success bool) {
	streamDuration.WithLabelValues(strconv.FormatBool(success)).Observe(d.Seconds())
}
