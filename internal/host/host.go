// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package host defines the contract between sidechat and the language model
// capability it drives.
//
// A Capability is probed once and then creates Handles. A Handle is a live
// model session bound at creation to a Config; it holds conversational
// context that cannot be serialized, so callers never reuse a Handle after
// any Config field changes. Streaming responses arrive as cumulative
// snapshots: each snapshot is the full response text so far.
package host

import (
	"context"
	"errors"
)

// ContractVersion identifies the shape of this interface. Adapters report the
// version they implement so a mismatch fails at wiring time.
const ContractVersion = 1

// Sentinel errors.
var (
	// ErrUnavailable means the capability is absent. Not retried.
	ErrUnavailable = errors.New("model capability unavailable")

	// ErrDestroyed is returned by operations on a destroyed handle.
	ErrDestroyed = errors.New("model session destroyed")
)

// Config is the set of parameters a Handle is bound to at creation.
type Config struct {
	Temperature    float64
	TopK           int
	InitialContext string
}

// Capability probes for and creates model sessions.
type Capability interface {
	// Probe reports ErrUnavailable (possibly wrapped) when no model can be used.
	Probe(ctx context.Context) error

	// Create starts a new session bound to cfg.
	Create(ctx context.Context, cfg Config) (Handle, error)
}

// Handle is one live model session.
type Handle interface {
	// ID identifies the session in logs.
	ID() string

	// Config returns the parameters the session was created with.
	Config() Config

	// PromptStreaming sends text and returns cumulative snapshots of the reply.
	PromptStreaming(ctx context.Context, text string) (Snapshots, error)

	// Prompt sends text and returns the complete reply.
	Prompt(ctx context.Context, text string) (string, error)

	// MeasureInputUsage estimates the tokens text would consume.
	MeasureInputUsage(ctx context.Context, text string) (int, error)

	// InputQuota is the session's context window in tokens.
	InputQuota() int

	// InputUsage is the number of tokens the session currently holds.
	InputUsage() int

	// Destroy releases the session. Streams still open end with ErrDestroyed.
	Destroy() error
}

// Snapshots is a lazy sequence of cumulative response texts.
type Snapshots interface {
	// Next returns the next snapshot, or io.EOF once the reply is complete.
	Next(ctx context.Context) (string, error)

	// Close stops the sequence early.
	Close() error
}

// Versioned is implemented by adapters that report their contract version.
type Versioned interface {
	ContractVersion() int
}

// CheckVersion returns an error when c reports a contract version other than
// ContractVersion. Capabilities that do not report one are accepted.
func CheckVersion(c Capability) error {
	v, ok := c.(Versioned)
	if !ok || v.ContractVersion() == ContractVersion {
		return nil
	}
	return &VersionError{Got: v.ContractVersion(), Want: ContractVersion}
}
