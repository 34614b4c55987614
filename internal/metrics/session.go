// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(sessionEvents) }

// Session lifecycle events.
const (
	SessionCreated   = "created"
	SessionDestroyed = "destroyed"
	SessionFailed    = "failed"
)

var sessionEvents = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "model_sessions_total",
		Help:      "Model session lifecycle events (created/destroyed/failed).",
	},
	[]string{"event"},
)

// IncSession records one model session lifecycle event.
func IncSession(event string) {
	sessionEvents.WithLabelValues(norm(event)).Inc()
}
