// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var testNow = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

// =============================================================================
// TITLE TESTS
// =============================================================================

func TestDeriveTitle(t *testing.T) {
	long := strings.Repeat("a", 80)
	spaced := strings.TrimSpace(strings.Repeat("ab   ", 12))

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"first sentence", "Hello. How are you?", "Hello."},
		{"question first", "Why? Because.", "Why?"},
		{"exclamation", "Wow! That is neat", "Wow!"},
		{"no terminator", "tell me a joke", "tell me a joke"},
		{"terminator without whitespace", "version 1.2 is out", "version 1.2 is out"},
		{"trailing terminator", "Just this.", "Just this."},
		{"long unterminated", long, strings.Repeat("a", 47) + "..."},
		{"exactly fifty", strings.Repeat("b", 50), strings.Repeat("b", 50)},
		{"empty", "", DefaultTitle},
		{"whitespace only", "   \n\t", DefaultTitle},
		{"keeps inner whitespace", "fix this:\n\tfunc main() {}", "fix this:\n\tfunc main() {}"},
		{"long with whitespace runs", spaced, string([]rune(spaced)[:47]) + "..."},
		{"unicode", "Größe? Ja", "Größe?"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := DeriveTitle(tc.input); got != tc.want {
				t.Errorf("DeriveTitle(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestDeriveTitle_LengthBound(t *testing.T) {
	got := DeriveTitle(strings.Repeat("日本語", 40))
	if n := len([]rune(got)); n != MaxTitleLength {
		t.Errorf("title has %d runes, want %d", n, MaxTitleLength)
	}
}

// =============================================================================
// CONVERSATION TESTS
// =============================================================================

func TestNewConversation(t *testing.T) {
	conv := NewConversation(DefaultSettings(), testNow)

	if conv.ID == "" {
		t.Error("ID should not be empty")
	}
	if conv.Title != DefaultTitle {
		t.Errorf("Title = %q, want %q", conv.Title, DefaultTitle)
	}
	if !conv.CreatedAt.Equal(testNow) || !conv.TouchedAt.Equal(testNow) {
		t.Error("CreatedAt and TouchedAt should be the creation time")
	}
	if !conv.IsEmpty() {
		t.Error("new conversation should be empty")
	}
}

func TestConversation_AddMessageDerivesTitleOnce(t *testing.T) {
	conv := NewConversation(DefaultSettings(), testNow)

	conv.AddMessage(RoleUser, "Hello. How are you?", testNow.Add(time.Minute))
	if conv.Title != "Hello." {
		t.Fatalf("Title = %q, want %q", conv.Title, "Hello.")
	}

	conv.AddMessage(RoleAssistant, "Fine. Thanks!", testNow.Add(2*time.Minute))
	conv.AddMessage(RoleUser, "Another topic entirely.", testNow.Add(3*time.Minute))
	if conv.Title != "Hello." {
		t.Errorf("Title changed to %q after later messages", conv.Title)
	}
	if !conv.TouchedAt.Equal(testNow.Add(3 * time.Minute)) {
		t.Errorf("TouchedAt = %v, want last append time", conv.TouchedAt)
	}
}

func TestConversation_EmptyFirstMessageKeepsSentinel(t *testing.T) {
	conv := NewConversation(DefaultSettings(), testNow)
	conv.AddMessage(RoleUser, "", testNow)

	if conv.Title != DefaultTitle {
		t.Errorf("Title = %q, want %q", conv.Title, DefaultTitle)
	}

	// Only the first user message is considered.
	conv.AddMessage(RoleUser, "Second message.", testNow)
	if conv.Title != DefaultTitle {
		t.Errorf("Title = %q, want sentinel to remain", conv.Title)
	}
}

func TestConversation_ExplicitTitleIsKept(t *testing.T) {
	conv := NewConversation(DefaultSettings(), testNow)
	conv.SetTitle("Trip planning", testNow)
	conv.AddMessage(RoleUser, "Where should we go?", testNow)

	if conv.Title != "Trip planning" {
		t.Errorf("Title = %q, want explicit title", conv.Title)
	}

	conv.SetTitle("", testNow)
	if conv.Title != DefaultTitle {
		t.Errorf("empty SetTitle should restore %q, got %q", DefaultTitle, conv.Title)
	}
}

func TestConversation_CloneIsIndependent(t *testing.T) {
	conv := NewConversation(DefaultSettings(), testNow)
	conv.AddMessage(RoleUser, "one", testNow)

	clone := conv.Clone()
	clone.AddMessage(RoleUser, "two", testNow)
	clone.Settings.TopK = 40

	if len(conv.Messages) != 1 {
		t.Errorf("original has %d messages, want 1", len(conv.Messages))
	}
	if conv.Settings.TopK == 40 {
		t.Error("settings leaked into original")
	}
}

// =============================================================================
// SETTINGS TESTS
// =============================================================================

func TestSettings_Validate(t *testing.T) {
	tests := []struct {
		name    string
		s       Settings
		wantErr bool
	}{
		{"defaults", DefaultSettings(), false},
		{"zero temperature", Settings{Temperature: 0, TopK: 1}, false},
		{"too hot", Settings{Temperature: 2.5, TopK: 3}, true},
		{"negative temperature", Settings{Temperature: -0.1, TopK: 3}, true},
		{"topK zero", Settings{Temperature: 1, TopK: 0}, true},
		{"topK too large", Settings{Temperature: 1, TopK: MaxTopK + 1}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.s.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidSettings) {
				t.Errorf("Validate() error %v does not match ErrInvalidSettings", err)
			}
		})
	}
}

func TestSettings_Equal(t *testing.T) {
	a := Settings{Temperature: 0.7, TopK: 3}
	if !a.Equal(Settings{Temperature: 0.7, TopK: 3}) {
		t.Error("identical settings should be equal")
	}
	if a.Equal(Settings{Temperature: 0.7, TopK: 4}) {
		t.Error("different topK should not be equal")
	}
}

func TestRole_DisplayName(t *testing.T) {
	if RoleUser.DisplayName() != "User" || RoleAssistant.DisplayName() != "Assistant" {
		t.Error("unexpected display names")
	}
	if Role("tool").Valid() {
		t.Error("tool is not a valid role here")
	}
}
