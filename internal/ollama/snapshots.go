// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/jeranaias/sidechat/internal/host"
)

// errSnapshotsClosed is returned by Next after Close.
var errSnapshotsClosed = errors.New("snapshots closed")

// snapshots turns the server's delta chunks into cumulative snapshots.
type snapshots struct {
	h      *Handle
	prompt string
	body   io.ReadCloser
	dec    *json.Decoder
	cancel context.CancelFunc

	text strings.Builder
	err  error
	once sync.Once
}

// Next returns the reply so far after the next non-empty chunk. Ending ctx
// aborts the underlying request.
func (s *snapshots) Next(ctx context.Context) (string, error) {
	if s.err != nil {
		return "", s.err
	}

	stop := context.AfterFunc(ctx, s.cancel)
	defer stop()

	for {
		var chunk Chunk
		if err := s.dec.Decode(&chunk); err != nil {
			s.fail(ctx, err)
			return "", s.err
		}
		if chunk.Error != "" {
			s.finish()
			s.err = &ClientError{Type: ErrTypeServer, Message: chunk.Error}
			return "", s.err
		}

		delta := chunk.Text()
		s.text.WriteString(delta)

		if chunk.Done {
			s.finish()
			if !s.h.commit(s.prompt, s.text.String(), chunk) {
				s.err = host.ErrDestroyed
				return "", s.err
			}
			s.err = io.EOF
			if delta != "" {
				return s.text.String(), nil
			}
			return "", io.EOF
		}
		if delta == "" {
			continue
		}
		return s.text.String(), nil
	}
}

// Close abandons the stream. The session state is left as it was before the
// prompt.
func (s *snapshots) Close() error {
	s.finish()
	if s.err == nil {
		s.err = errSnapshotsClosed
	}
	return nil
}

func (s *snapshots) fail(ctx context.Context, err error) {
	s.finish()
	switch {
	case s.h.isDestroyed():
		s.err = host.ErrDestroyed
	case ctx.Err() != nil:
		s.err = ctx.Err()
	case errors.Is(err, io.EOF):
		s.err = io.ErrUnexpectedEOF
	default:
		s.err = &ClientError{Type: ErrTypeConnection, Message: "stream interrupted", Cause: err}
	}
}

func (s *snapshots) finish() {
	s.once.Do(func() {
		s.cancel()
		s.body.Close()
		s.h.release(s)
	})
}
