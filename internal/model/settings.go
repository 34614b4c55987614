// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidSettings matches every Settings.Validate failure.
var ErrInvalidSettings = errors.New("invalid settings")

// Sampling bounds accepted by Settings.Validate.
const (
	MinTemperature = 0.0
	MaxTemperature = 2.0
	MinTopK        = 1
	MaxTopK        = 128
)

// Settings is the per-conversation model configuration. A model session is
// bound to the Settings it was created with; changing them means a new session.
type Settings struct {
	Temperature float64 `json:"temperature"`
	TopK        int     `json:"topK"`
}

// DefaultSettings returns the settings used for conversations created without
// explicit configuration.
func DefaultSettings() Settings {
	return Settings{
		Temperature: 1.0,
		TopK:        3,
	}
}

// Equal reports whether two settings would bind an identical session.
func (s Settings) Equal(other Settings) bool {
	return s.TopK == other.TopK && s.Temperature == other.Temperature
}

// Validate checks that the settings are within the accepted sampling bounds.
func (s Settings) Validate() error {
	if math.IsNaN(s.Temperature) || s.Temperature < MinTemperature || s.Temperature > MaxTemperature {
		return fmt.Errorf("%w: temperature must be between %.1f and %.1f, got %v", ErrInvalidSettings, MinTemperature, MaxTemperature, s.Temperature)
	}
	if s.TopK < MinTopK || s.TopK > MaxTopK {
		return fmt.Errorf("%w: topK must be between %d and %d, got %d", ErrInvalidSettings, MinTopK, MaxTopK, s.TopK)
	}
	return nil
}

// String renders the settings for status lines and logs.
func (s Settings) String() string {
	return fmt.Sprintf("temperature=%.2f topK=%d", s.Temperature, s.TopK)
}
