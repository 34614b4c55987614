// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import "strings"

// Discontinuity classifies a snapshot that does not extend the previous one.
type Discontinuity string

const (
	// Continuous snapshots extend their predecessor.
	Continuous Discontinuity = ""

	// Shorter snapshots are shorter than their predecessor.
	Shorter Discontinuity = "shorter"

	// Diverged snapshots differ from their predecessor within its length.
	Diverged Discontinuity = "diverged"
)

// Accumulator computes deltas from cumulative snapshots.
type Accumulator struct {
	prev  string
	total strings.Builder
}

// Push consumes the next snapshot and returns the text it adds. When the
// snapshot does not have the previous one as a prefix, the whole snapshot is
// the delta and the discontinuity kind is reported.
func (a *Accumulator) Push(snapshot string) (string, Discontinuity) {
	var (
		delta string
		kind  Discontinuity
	)
	switch {
	case strings.HasPrefix(snapshot, a.prev):
		delta = snapshot[len(a.prev):]
	case len(snapshot) < len(a.prev):
		delta, kind = snapshot, Shorter
	default:
		delta, kind = snapshot, Diverged
	}

	a.prev = snapshot
	a.total.WriteString(delta)
	return delta, kind
}

// Text returns the concatenation of every delta so far.
func (a *Accumulator) Text() string {
	return a.total.String()
}

// Last returns the most recent snapshot.
func (a *Accumulator) Last() string {
	return a.prev
}

// Reset clears the accumulator for reuse.
func (a *Accumulator) Reset() {
	a.prev = ""
	a.total.Reset()
}
