// Package config loads the daemon configuration from
// ~/.config/athar/config.json.
package config

import (
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/tiroq/athar/internal/i18n"
)

// GatewayConfig configures the remote analysis/speech service.
type GatewayConfig struct {
	BaseURL        string `json:"base_url"`
	Token          string `json:"token,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// StorageConfig selects where the archive is kept.
type StorageConfig struct {
	Backend    string `json:"backend"`               // "file" or "sqlite"
	Dir        string `json:"dir,omitempty"`         // default ~/.local/share/athar
	QuotaBytes int    `json:"quota_bytes,omitempty"` // 0 disables the quota
}

// Config holds all daemon configuration
type Config struct {
	Gateway             GatewayConfig `json:"gateway"`
	Storage             StorageConfig `json:"storage"`
	UILanguage          i18n.Language `json:"ui_language"`
	Notifications       bool          `json:"notifications"`
	Listen              string        `json:"listen"` // websocket address, empty disables
	FactIntervalSeconds int           `json:"fact_interval_seconds"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{
			BaseURL:        "http://127.0.0.1:8088",
			TimeoutSeconds: 60,
		},
		Storage: StorageConfig{
			Backend:    "file",
			QuotaBytes: 5 * 1024 * 1024, // browser localStorage budget
		},
		UILanguage:          i18n.Default,
		Notifications:       true,
		Listen:              "127.0.0.1:8765",
		FactIntervalSeconds: 4,
	}
}

// Dir returns ~/.config/athar.
func Dir() string {
	return filepath.Join(os.Getenv("HOME"), ".config", "athar")
}

// Path returns the user config file path.
func Path() string {
	return filepath.Join(Dir(), "config.json")
}

// Load reads the config file at path, falling back to Default when it does
// not exist, then applies environment overrides (ATHAR_GATEWAY_URL,
// ATHAR_GATEWAY_TOKEN) and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if v := os.Getenv("ATHAR_GATEWAY_URL"); v != "" {
		cfg.Gateway.BaseURL = v
	}
	if v := os.Getenv("ATHAR_GATEWAY_TOKEN"); v != "" {
		cfg.Gateway.Token = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path, creating the directory if needed.
func Save(path string, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	// The file may hold the gateway token.
	return os.WriteFile(path, data, 0600)
}

// Validate checks Config for validity
func (c *Config) Validate() error {
	u, err := url.Parse(c.Gateway.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("gateway.base_url must be an http(s) URL, got %q", c.Gateway.BaseURL)
	}
	if c.Gateway.TimeoutSeconds < 1 || c.Gateway.TimeoutSeconds > 600 {
		return fmt.Errorf("gateway.timeout_seconds must be between 1 and 600, got %d", c.Gateway.TimeoutSeconds)
	}

	switch c.Storage.Backend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("storage.backend must be \"file\" or \"sqlite\", got %q", c.Storage.Backend)
	}
	if c.Storage.QuotaBytes < 0 {
		return fmt.Errorf("storage.quota_bytes must not be negative, got %d", c.Storage.QuotaBytes)
	}

	if !c.UILanguage.Valid() {
		return fmt.Errorf("ui_language must be one of %v, got %q", i18n.Languages(), c.UILanguage)
	}

	if c.Listen != "" {
		if _, _, err := net.SplitHostPort(c.Listen); err != nil {
			return fmt.Errorf("listen must be host:port, got %q", c.Listen)
		}
	}

	if c.FactIntervalSeconds < 1 || c.FactIntervalSeconds > 60 {
		return fmt.Errorf("fact_interval_seconds must be between 1 and 60, got %d", c.FactIntervalSeconds)
	}
	return nil
}

// StorageDir returns the configured archive directory or
// ~/.local/share/athar.
func (c *Config) StorageDir() string {
	if c.Storage.Dir != "" {
		return c.Storage.Dir
	}
	return filepath.Join(os.Getenv("HOME"), ".local", "share", "athar")
}

// FactInterval returns the fact rotation period.
func (c *Config) FactInterval() time.Duration {
	return time.Duration(c.FactIntervalSeconds) * time.Second
}
