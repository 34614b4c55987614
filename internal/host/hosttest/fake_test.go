// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package hosttest

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/sidechat/internal/host"
)

func TestCapability_EchoStream(t *testing.T) {
	ctx := context.Background()
	c := New()
	require.NoError(t, host.CheckVersion(c))

	h, err := c.Create(ctx, host.Config{Temperature: 1, TopK: 3})
	require.NoError(t, err)

	snaps, err := h.PromptStreaming(ctx, "hi there")
	require.NoError(t, err)

	var got []string
	for {
		s, err := snaps.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		got = append(got, s)
	}
	assert.Equal(t, []string{"echo:", "echo: hi", "echo: hi there"}, got)
	assert.Greater(t, h.InputUsage(), 0)
}

func TestCapability_DestroyEndsGatedStream(t *testing.T) {
	ctx := context.Background()
	c := New()
	gate := make(chan struct{})
	c.SetResponder(func(host.Config, string) Reply {
		return Reply{Snapshots: []string{"a", "ab"}, Gate: gate}
	})

	h, err := c.Create(ctx, host.Config{})
	require.NoError(t, err)
	snaps, err := h.PromptStreaming(ctx, "x")
	require.NoError(t, err)

	require.NoError(t, h.Destroy())
	_, err = snaps.Next(ctx)
	assert.ErrorIs(t, err, host.ErrDestroyed)
	assert.Equal(t, 1, c.Destroys())
	assert.Equal(t, 0, c.Live())

	_, err = h.PromptStreaming(ctx, "y")
	assert.ErrorIs(t, err, host.ErrDestroyed)
}

func TestCapability_CreateErr(t *testing.T) {
	c := New()
	c.SetCreateErr(errors.New("out of memory"))
	_, err := c.Create(context.Background(), host.Config{})
	assert.Error(t, err)
	assert.Equal(t, 0, c.Creates())
}
