// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package metrics holds the prometheus collectors for sidechat.
//
// Collectors are declared per concern (sessions, streams, storage) and queued
// with register from init. MustRegister adds every queued collector to the
// default registry exactly once; Serve exposes them on /metrics when a listen
// address is configured.
//
// Recording helpers are safe to call whether or not MustRegister ran, so
// library packages can record unconditionally.
package metrics
