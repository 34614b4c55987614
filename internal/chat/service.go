// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jeranaias/sidechat/internal/conversation"
	"github.com/jeranaias/sidechat/internal/export"
	"github.com/jeranaias/sidechat/internal/model"
	"github.com/jeranaias/sidechat/internal/session"
	"github.com/jeranaias/sidechat/internal/storage"
	"github.com/jeranaias/sidechat/internal/stream"
)

// Options configures a Service.
type Options struct {
	// Defaults are the settings of conversations created by the service
	Defaults model.Settings

	// Store holds UI preferences; may be nil
	Store *storage.Store

	// Notifier receives non-fatal failures; may be nil
	Notifier Notifier

	// Logger (default: no-op)
	Logger *zerolog.Logger
}

// Service is the front end's entry point. It is safe for concurrent use,
// though a single interactive caller is the expected case.
type Service struct {
	repo  *conversation.Repository
	coord *session.Coordinator
	asm   *stream.Assembler
	store *storage.Store

	notifier Notifier
	log      zerolog.Logger

	mu        sync.Mutex
	defaults  model.Settings
	available bool
	probeErr  error

	// gen advances whenever an in-flight reply must be dropped
	gen     uint64
	busy    bool
	busyGen uint64
}

// New wires a service. Persistence failures of repo are routed to the
// notifier.
func New(repo *conversation.Repository, coord *session.Coordinator, asm *stream.Assembler, opts Options) *Service {
	log := opts.Logger
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	if opts.Defaults == (model.Settings{}) {
		opts.Defaults = model.DefaultSettings()
	}

	s := &Service{
		repo:     repo,
		coord:    coord,
		asm:      asm,
		store:    opts.Store,
		notifier: opts.Notifier,
		log:      log.With().Str("component", "chat").Logger(),
		defaults: opts.Defaults,
		probeErr: errors.New("not started"),
	}
	repo.SetPersistErrorCallback(func(err error) {
		s.notify(KindPersistence, err)
	})
	return s
}

// Start probes the model capability. On failure prompting stays disabled and
// the error wraps ErrCapabilityUnavailable; browsing and export still work.
// Start may be called again to retry.
func (s *Service) Start(ctx context.Context) error {
	err := s.coord.Probe(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.available = false
		s.probeErr = err
		s.log.Warn().Err(err).Msg("model capability unavailable, prompting disabled")
		return fmt.Errorf("%w: %v", ErrCapabilityUnavailable, err)
	}
	s.available = true
	s.probeErr = nil
	return nil
}

// Available reports whether prompting is enabled.
func (s *Service) Available() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.available
}

// Conversations exposes the repository for listing, search and grouping.
func (s *Service) Conversations() *conversation.Repository {
	return s.repo
}

// Defaults returns the settings new conversations get.
func (s *Service) Defaults() model.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.defaults
}

// Busy reports whether a reply for the current generation is streaming.
func (s *Service) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy && s.busyGen == s.gen
}

// =============================================================================
// PROMPTING
// =============================================================================

// Submit sends text in the active conversation, creating one when there is
// none, and returns the appended assistant message. Deltas are forwarded to
// onDelta while the reply is current.
func (s *Service) Submit(ctx context.Context, text string, onDelta stream.DeltaFunc) (*model.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyPrompt
	}

	s.mu.Lock()
	if !s.available {
		err := fmt.Errorf("%w: %v", ErrCapabilityUnavailable, s.probeErr)
		s.mu.Unlock()
		return nil, err
	}
	if s.busy && s.busyGen == s.gen {
		s.mu.Unlock()
		return nil, ErrBusy
	}

	conv, ok := s.repo.Active()
	if !ok {
		conv = s.repo.Create(ctx, s.defaults)
	}
	if _, ok := s.repo.Append(ctx, conv.ID, model.RoleUser, text); !ok {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	gen := s.gen
	s.busy = true
	s.busyGen = gen
	s.mu.Unlock()

	defer s.release(gen)

	h, err := s.coord.Ensure(ctx, conv)
	if err != nil {
		if !s.current(gen) {
			return nil, ErrAbandoned
		}
		if ctx.Err() != nil {
			return nil, err
		}
		if Classify(err) == KindUnavailable {
			s.disable(err)
			return nil, fmt.Errorf("%w: %v", ErrCapabilityUnavailable, err)
		}
		s.notify(KindSessionCreate, err)
		return nil, err
	}
	// The conversation may have been left while the session was being created.
	if !s.current(gen) {
		s.coord.Invalidate(conv.ID)
		return nil, ErrAbandoned
	}

	reply, err := s.asm.Assemble(ctx, h, text, func(delta string) {
		if onDelta != nil && s.current(gen) {
			onDelta(delta)
		}
	})

	if !s.current(gen) {
		s.log.Debug().Str("conversation", conv.ID).Msg("reply abandoned")
		return nil, ErrAbandoned
	}
	if err != nil {
		// A cancelled ctx is the caller's own doing.
		if ctx.Err() == nil {
			s.notify(KindStream, err)
		}
		return nil, err
	}

	msg, ok := s.repo.Append(ctx, conv.ID, model.RoleAssistant, reply)
	if !ok {
		return nil, ErrNotFound
	}
	return msg, nil
}

// =============================================================================
// NAVIGATION
// =============================================================================

// NewConversation creates an empty active conversation with the default
// settings. Any live session is torn down.
func (s *Service) NewConversation(ctx context.Context) *model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.abandonLocked()
	s.coord.Teardown()
	return s.repo.Create(ctx, s.defaults)
}

// Switch makes id the active conversation. Switching to the active
// conversation changes nothing.
func (s *Service) Switch(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.repo.Get(id); !ok {
		return ErrNotFound
	}
	if s.repo.ActiveID() == id {
		return nil
	}
	s.abandonLocked()
	s.coord.Teardown()
	s.repo.SetActive(ctx, id)
	return nil
}

// Delete removes a conversation. Deleting the active one abandons its reply
// and tears the session down.
func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.repo.ActiveID() == id {
		s.abandonLocked()
		s.coord.Teardown()
	} else {
		s.coord.Invalidate(id)
	}
	if !s.repo.Delete(ctx, id) {
		return ErrNotFound
	}
	return nil
}

// Rename sets the title of a conversation. The session is unaffected.
func (s *Service) Rename(ctx context.Context, id, title string) error {
	if !s.repo.Rename(ctx, id, strings.TrimSpace(title)) {
		return ErrNotFound
	}
	return nil
}

// UpdateSettings validates and stores new settings for id. A session bound
// to id is destroyed, and a reply streaming for it is abandoned.
func (s *Service) UpdateSettings(ctx context.Context, id string, settings model.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.repo.Get(id)
	if !ok {
		return ErrNotFound
	}
	if current.Settings.Equal(settings) {
		return nil
	}
	if s.repo.ActiveID() == id {
		s.abandonLocked()
	}
	s.coord.Invalidate(id)
	s.repo.UpdateSettings(ctx, id, settings)
	return nil
}

// Reset discards the model session of the active conversation. The history
// is kept; the next prompt starts a fresh session.
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.abandonLocked()
	s.coord.Teardown()
}

// ClearAll deletes every conversation and all stored data.
func (s *Service) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.abandonLocked()
	s.coord.Teardown()
	if err := s.repo.Clear(ctx); err != nil {
		s.notify(KindPersistence, err)
		return err
	}
	return nil
}

// Shutdown abandons any reply, destroys the session and flushes the
// collection to the store.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.abandonLocked()
	s.coord.Teardown()
	if err := s.repo.Persist(ctx); err != nil {
		s.log.Error().Err(err).Msg("final save failed")
		return err
	}
	return nil
}

// =============================================================================
// EXPORT, PREFERENCES, CONFIG
// =============================================================================

// Export returns the Markdown rendering of id, or of the active
// conversation when id is empty.
func (s *Service) Export(id string) ([]byte, error) {
	conv, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return export.Markdown(conv), nil
}

// ExportFile writes id (or the active conversation) to path.
func (s *Service) ExportFile(id, path string) error {
	conv, err := s.lookup(id)
	if err != nil {
		return err
	}
	return export.WriteFile(path, conv)
}

// CopyToClipboard copies the Markdown of id (or the active conversation).
func (s *Service) CopyToClipboard(id string) error {
	conv, err := s.lookup(id)
	if err != nil {
		return err
	}
	return export.CopyToClipboard(conv)
}

// Prefs loads the front end's preferences into dst. It reports false when
// none are stored.
func (s *Service) Prefs(ctx context.Context, dst any) bool {
	if s.store == nil {
		return false
	}
	return s.store.Load(ctx, storage.KeyUIPrefs, dst)
}

// SavePrefs stores the front end's preferences.
func (s *Service) SavePrefs(ctx context.Context, prefs any) error {
	if s.store == nil {
		return nil
	}
	if err := s.store.Save(ctx, storage.KeyUIPrefs, prefs, nil); err != nil {
		s.notify(KindPersistence, err)
		return err
	}
	return nil
}

// ApplyConfig installs reloaded defaults and initial context. Existing
// conversations keep their settings; a changed initial context ends the
// live session.
func (s *Service) ApplyConfig(defaults model.Settings, initialContext string) error {
	if err := defaults.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.defaults = defaults
	if s.coord.InitialContext() != initialContext {
		s.abandonLocked()
		s.coord.SetInitialContext(initialContext)
	}
	s.log.Info().Stringer("defaults", defaults).Msg("configuration applied")
	return nil
}

// Usage returns the context window use of the live session.
func (s *Service) Usage() (session.Usage, bool) {
	return s.coord.Usage()
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Service) lookup(id string) (*model.Conversation, error) {
	if id == "" {
		if conv, ok := s.repo.Active(); ok {
			return conv, nil
		}
		return nil, ErrNotFound
	}
	if conv, ok := s.repo.Get(id); ok {
		return conv, nil
	}
	return nil, ErrNotFound
}

func (s *Service) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen
}

func (s *Service) release(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busyGen == gen {
		s.busy = false
	}
}

func (s *Service) disable(err error) {
	s.mu.Lock()
	s.available = false
	s.probeErr = err
	s.mu.Unlock()
	s.log.Warn().Err(err).Msg("model capability lost, prompting disabled")
}

// abandonLocked invalidates any reply in flight. Caller holds s.mu.
func (s *Service) abandonLocked() {
	s.gen++
}

func (s *Service) notify(kind Kind, err error) {
	s.log.Warn().Err(err).Str("kind", kind.String()).Msg("operation failed")
	if s.notifier != nil {
		s.notifier.Notify(kind, err)
	}
}
