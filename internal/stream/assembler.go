// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeranaias/sidechat/internal/host"
	"github.com/jeranaias/sidechat/internal/metrics"
)

// DeltaFunc receives each non-empty delta in order.
type DeltaFunc func(delta string)

// Assembler drives streaming replies from a host handle.
type Assembler struct {
	log *zerolog.Logger
}

// NewAssembler creates an assembler. A nil logger discards output.
func NewAssembler(log *zerolog.Logger) *Assembler {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	l := log.With().Str("component", "stream").Logger()
	return &Assembler{log: &l}
}

// Assemble sends prompt on h, forwards every non-empty delta to onDelta and
// returns the full reply once the snapshots are exhausted. A failure midway
// returns an *Error and discards the partial text.
func (a *Assembler) Assemble(ctx context.Context, h host.Handle, prompt string, onDelta DeltaFunc) (string, error) {
	start := time.Now()

	snaps, err := h.PromptStreaming(ctx, prompt)
	if err != nil {
		metrics.ObserveStream(time.Since(start), false)
		return "", &Error{Handle: h.ID(), Err: err}
	}
	defer snaps.Close()

	var (
		acc    Accumulator
		deltas int
	)
	for {
		snapshot, err := snaps.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			metrics.AddStreamDeltas(deltas)
			metrics.ObserveStream(time.Since(start), false)
			a.log.Debug().Err(err).Str("handle", h.ID()).Int("received", len(acc.Text())).
				Msg("stream broke off, partial reply discarded")
			return "", &Error{Handle: h.ID(), Received: len(acc.Text()), Err: err}
		}

		prevLen := len(acc.Last())
		delta, kind := acc.Push(snapshot)
		if kind != Continuous {
			a.log.Warn().
				Str("event", "non_cumulative_snapshot").
				Str("kind", string(kind)).
				Str("handle", h.ID()).
				Int("previous_len", prevLen).
				Int("snapshot_len", len(snapshot)).
				Msg("snapshot does not extend previous one, forwarding whole")
			metrics.IncStreamDiscontinuity(string(kind))
		}

		if delta != "" {
			deltas++
			if onDelta != nil {
				onDelta(delta)
			}
		}
	}

	metrics.AddStreamDeltas(deltas)
	metrics.ObserveStream(time.Since(start), true)
	return acc.Text(), nil
}
