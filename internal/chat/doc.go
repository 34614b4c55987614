// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat ties the conversation repository, the session coordinator and
// the stream assembler into the operations a front end calls.
//
// # Prompting
//
// Submit appends the user message, makes sure a model session is live for
// the active conversation's settings, streams the reply and appends it. Only
// one prompt may be in flight; a second one gets ErrBusy.
//
// # Abandonment
//
// Navigating away (switch, new, delete, settings change, reset) bumps a
// generation counter. A Submit started under an older generation stops
// forwarding deltas and returns ErrAbandoned; its reply is never appended.
//
// # Errors
//
// Classify maps any returned error to a Kind. Failures other than an absent
// capability are also passed to the Notifier so the front end can show them
// without checking every call.
package chat
