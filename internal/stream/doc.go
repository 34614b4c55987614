// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream turns cumulative response snapshots into incremental deltas.
//
// The model host reports a streaming reply as a sequence of snapshots, each
// holding the whole reply so far. The Accumulator derives the new suffix of
// every snapshot; the Assembler drives a host.Snapshots sequence through an
// Accumulator, forwards non-empty deltas and returns the final text.
//
// A snapshot that does not extend its predecessor is forwarded whole and
// logged as a non_cumulative_snapshot, tagged "shorter" or "diverged".
//
// # Usage
//
//	asm := stream.NewAssembler(&logger)
//	text, err := asm.Assemble(ctx, handle, "Hello", func(delta string) {
//		fmt.Print(delta)
//	})
package stream
