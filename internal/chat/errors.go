// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"

	"github.com/jeranaias/sidechat/internal/host"
	"github.com/jeranaias/sidechat/internal/model"
	"github.com/jeranaias/sidechat/internal/session"
	"github.com/jeranaias/sidechat/internal/storage"
	"github.com/jeranaias/sidechat/internal/stream"
)

// Sentinel errors.
var (
	// ErrCapabilityUnavailable disables prompting until Start succeeds.
	ErrCapabilityUnavailable = errors.New("model capability unavailable")

	// ErrBusy is returned while another prompt is in flight.
	ErrBusy = errors.New("a reply is still streaming")

	// ErrAbandoned is returned by a Submit whose conversation was left
	// before the reply completed.
	ErrAbandoned = errors.New("reply abandoned")

	// ErrNotFound means the conversation does not exist.
	ErrNotFound = errors.New("conversation not found")

	// ErrEmptyPrompt rejects blank input.
	ErrEmptyPrompt = errors.New("prompt is empty")
)

// =============================================================================
// ERROR KINDS
// =============================================================================

// Kind classifies errors for presentation.
type Kind int

const (
	KindNone Kind = iota
	KindUnavailable
	KindSessionCreate
	KindStream
	KindPersistence
	KindNotFound
	KindBusy
	KindAbandoned
	KindInvalid
	KindUnknown
)

// String returns the kind name used in logs.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindUnavailable:
		return "unavailable"
	case KindSessionCreate:
		return "session_create"
	case KindStream:
		return "stream"
	case KindPersistence:
		return "persistence"
	case KindNotFound:
		return "not_found"
	case KindBusy:
		return "busy"
	case KindAbandoned:
		return "abandoned"
	case KindInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Classify returns the Kind of err.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}

	var se *session.Error
	switch {
	case errors.Is(err, ErrAbandoned):
		return KindAbandoned
	case errors.Is(err, ErrBusy):
		return KindBusy
	case errors.As(err, &se):
		if se.Kind == session.KindUnavailable {
			return KindUnavailable
		}
		return KindSessionCreate
	case errors.Is(err, ErrCapabilityUnavailable), errors.Is(err, host.ErrUnavailable):
		return KindUnavailable
	case errors.Is(err, stream.ErrStreamFailed):
		return KindStream
	case errors.Is(err, storage.ErrPersistence):
		return KindPersistence
	case errors.Is(err, ErrNotFound), errors.Is(err, storage.ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrEmptyPrompt), errors.Is(err, model.ErrInvalidSettings):
		return KindInvalid
	default:
		return KindUnknown
	}
}

// =============================================================================
// NOTIFIER
// =============================================================================

// Notifier receives failures that the caller might otherwise not surface.
type Notifier interface {
	Notify(kind Kind, err error)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(kind Kind, err error)

// Notify calls f.
func (f NotifierFunc) Notify(kind Kind, err error) { f(kind, err) }
