// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(storeSaves, evictions) }

// Store save outcomes.
const (
	SaveOK       = "ok"
	SaveShrunk   = "shrunk"
	SaveFailed   = "failed"
	SaveEncoding = "encoding"
)

var (
	storeSaves = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_saves_total",
			Help:      "Durable store saves by backend and result.",
		},
		[]string{"backend", "result"},
	)

	evictions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversation_evictions_total",
			Help:      "Conversations dropped by the capacity policy.",
		},
	)
)

// IncStoreSave records one store save outcome.
func IncStoreSave(backend, result string) {
	storeSaves.WithLabelValues(norm(backend), norm(result)).Inc()
}

// AddEvictions counts evicted conversations.
func AddEvictions(n int) {
	if n > 0 {
		evictions.Add(float64(n))
	}
}
