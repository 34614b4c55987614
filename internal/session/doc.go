// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session coordinates the single live model session.
//
// A model session holds conversational context that cannot be serialized, so
// it is bound to one conversation and one set of sampling settings for its
// whole life. The Coordinator is the only owner of the live handle: it
// destroys the handle whenever the target conversation, its settings or the
// initial context change, and creates a fresh one on demand.
//
// # States
//
//   - NoSession: no handle exists
//   - Live: a handle bound to (conversation id, settings) exists
//
// # Usage
//
//	coord := session.NewCoordinator(capability, session.DefaultConfig())
//	h, err := coord.Ensure(ctx, conv)   // no-op when already bound
//	...
//	coord.Teardown()                    // on switch, reset or shutdown
//
// Creation failures leave the coordinator in NoSession and are not retried.
package session
