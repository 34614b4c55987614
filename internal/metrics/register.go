// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sidechat"

var (
	once       sync.Once
	collectors []prometheus.Collector
)

// register is called by init() in each metrics file to enqueue collectors.
func register(cs ...prometheus.Collector) {
	collectors = append(collectors, cs...)
}

// MustRegister registers all enqueued collectors with the default registry
// exactly once.
func MustRegister() {
	MustRegisterWith(prometheus.DefaultRegisterer)
}

// MustRegisterWith registers all enqueued collectors with reg exactly once.
func MustRegisterWith(reg prometheus.Registerer) {
	once.Do(func() {
		if len(collectors) > 0 {
			reg.MustRegister(collectors...)
		}
	})
}

func norm(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "unknown"
	}
	return s
}
