// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/sidechat/internal/model"
	"github.com/jeranaias/sidechat/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete sidechat configuration.
type Config struct {
	// Local model server
	Model ModelConfig `toml:"model" json:"model"`

	// Settings given to new conversations
	Defaults DefaultsConfig `toml:"defaults" json:"defaults"`

	// Where conversations are kept
	Storage StorageConfig `toml:"storage" json:"storage"`

	Logging LoggingConfig `toml:"logging" json:"logging"`
	Metrics MetricsConfig `toml:"metrics" json:"metrics"`
	UI      UIConfig      `toml:"ui" json:"ui"`
}

// ModelConfig configures the Ollama server and model.
type ModelConfig struct {
	// OllamaURL is the Ollama API base URL
	OllamaURL string `toml:"ollama_url" json:"ollama_url"`
	// Model is the model every session uses
	Model string `toml:"model" json:"model"`
	// ContextWindow is num_ctx in tokens
	ContextWindow int `toml:"context_window" json:"context_window"`
	// SystemPrompt primes every new session
	SystemPrompt string `toml:"system_prompt" json:"system_prompt"`
	// TimeoutSecs bounds non-streaming requests and session creation
	TimeoutSecs int `toml:"timeout" json:"timeout"`
	// AutoStart runs "ollama serve" when the server is down
	AutoStart bool `toml:"auto_start" json:"auto_start"`
}

// DefaultsConfig holds the settings of newly created conversations.
type DefaultsConfig struct {
	Temperature float64 `toml:"temperature" json:"temperature"`
	TopK        int     `toml:"top_k" json:"top_k"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	// Backend is one of: file, sqlite, redis, memory
	Backend string `toml:"backend" json:"backend"`
	// DataDir holds the file backend and the default sqlite database
	DataDir string `toml:"data_dir" json:"data_dir"`
	// Capacity is the maximum number of kept conversations
	Capacity int `toml:"capacity" json:"capacity"`
	// QuotaBytes bounds the total stored size
	QuotaBytes int64 `toml:"quota_bytes" json:"quota_bytes"`

	SQLitePath    string `toml:"sqlite_path" json:"sqlite_path"`
	RedisAddr     string `toml:"redis_addr" json:"redis_addr"`
	RedisPassword string `toml:"redis_password" json:"redis_password"`
	RedisDB       int    `toml:"redis_db" json:"redis_db"`

	// Namespace prefixes every stored key, so profiles can share a backend
	Namespace string `toml:"namespace" json:"namespace"`
}

// LoggingConfig configures the log file.
type LoggingConfig struct {
	// Level is one of: debug, info, warn, error
	Level string `toml:"level" json:"level"`
	// Format is "json" or "console"
	Format string `toml:"format" json:"format"`
	// File receives the log; "-" means stderr
	File string `toml:"file" json:"file"`
}

// MetricsConfig configures the optional Prometheus listener.
type MetricsConfig struct {
	// Addr like "127.0.0.1:9464"; empty disables the listener
	Addr string `toml:"addr" json:"addr"`
}

// UIConfig contains presentation preferences.
type UIConfig struct {
	// RenderMarkdown renders finished replies with glamour on a TTY
	RenderMarkdown bool `toml:"render_markdown" json:"render_markdown"`
	// ShowUsage prints context window usage after each reply
	ShowUsage bool `toml:"show_usage" json:"show_usage"`
	// Theme is "auto", "dark" or "light"
	Theme string `toml:"theme" json:"theme"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	dir, err := ConfigDir()
	if err != nil {
		dir = ".sidechat"
	}
	def := model.DefaultSettings()

	return &Config{
		Model: ModelConfig{
			OllamaURL:     "http://127.0.0.1:11434",
			Model:         "llama3.2",
			ContextWindow: 4096,
			TimeoutSecs:   60,
		},
		Defaults: DefaultsConfig{
			Temperature: def.Temperature,
			TopK:        def.TopK,
		},
		Storage: StorageConfig{
			Backend:    "file",
			DataDir:    filepath.Join(dir, "data"),
			Capacity:   50,
			QuotaBytes: 5 << 20,
			RedisAddr:  "127.0.0.1:6379",
			Namespace:  "sidechat:",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			File:   filepath.Join(dir, "sidechat.log"),
		},
		UI: UIConfig{
			RenderMarkdown: true,
			ShowUsage:      false,
			Theme:          "auto",
		},
	}
}

// DefaultSettings returns the configured settings for new conversations.
func (c *Config) DefaultSettings() model.Settings {
	return model.Settings{Temperature: c.Defaults.Temperature, TopK: c.Defaults.TopK}
}

// Timeout returns the model timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Model.TimeoutSecs) * time.Second
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the sidechat configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".sidechat"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Path returns the config file Load reads: the TOML file if it exists, else
// the JSON file if it exists, else the TOML path.
func Path() (string, error) {
	tomlPath, err := ConfigPathTOML()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(tomlPath); err == nil {
		return tomlPath, nil
	}
	jsonPath, err := ConfigPathJSON()
	if err == nil {
		if _, err := os.Stat(jsonPath); err == nil {
			return jsonPath, nil
		}
	}
	return tomlPath, nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file. A missing file yields the
// defaults. Environment overrides are applied last.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return finish(Default())
	}
	if _, statErr := os.Stat(path); statErr != nil {
		return finish(Default())
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific file path with full
// validation. Files ending in ".json" are JSON; everything else is TOML.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}
	return finish(cfg)
}

// LoadTOML decodes a TOML file over cfg. Keys absent from the file keep
// their current values.
func LoadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON decodes a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SetDefaults fills values whose zero value is never meaningful.
// Temperature is left alone since zero is a valid choice.
func (c *Config) SetDefaults() {
	def := Default()

	if c.Model.OllamaURL == "" {
		c.Model.OllamaURL = def.Model.OllamaURL
	}
	if c.Model.Model == "" {
		c.Model.Model = def.Model.Model
	}
	if c.Model.ContextWindow <= 0 {
		c.Model.ContextWindow = def.Model.ContextWindow
	}
	if c.Model.TimeoutSecs <= 0 {
		c.Model.TimeoutSecs = def.Model.TimeoutSecs
	}
	if c.Defaults.TopK == 0 {
		c.Defaults.TopK = def.Defaults.TopK
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = def.Storage.Backend
	}
	c.Storage.Backend = strings.ToLower(c.Storage.Backend)
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = def.Storage.DataDir
	}
	if c.Storage.Capacity == 0 {
		c.Storage.Capacity = def.Storage.Capacity
	}
	if c.Storage.Namespace == "" {
		c.Storage.Namespace = def.Storage.Namespace
	}
	if c.Storage.QuotaBytes == 0 {
		c.Storage.QuotaBytes = def.Storage.QuotaBytes
	}

	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	if c.Logging.Format == "" {
		c.Logging.Format = def.Logging.Format
	}
	if c.Logging.File == "" {
		c.Logging.File = def.Logging.File
	}
	if c.UI.Theme == "" {
		c.UI.Theme = def.UI.Theme
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML atomically writes the configuration as TOML with 0600
// permissions, since it may hold a redis password.
func SaveTOML(cfg *Config, path string) error {
	var buf strings.Builder
	buf.WriteString("# sidechat configuration file\n")
	buf.WriteString("# Changes are picked up while sidechat is running\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFileWithDir(path, []byte(buf.String()), 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON atomically writes the configuration as JSON.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFileWithDir(path, data, 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String returns the configuration as JSON with secrets redacted.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.Storage.RedisPassword != "" {
		safe.Storage.RedisPassword = "[REDACTED]"
	}
	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}
