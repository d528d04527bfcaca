// Package config handles greenlight configuration from a YAML file, with
// defaults applied the way domwatch's internal/config package does.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level greenlight configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store"`
	Advisor    AdvisorConfig    `yaml:"advisor"`
	Request    RequestConfig    `yaml:"request"`
	Proxy      ProxyConfig      `yaml:"proxy"`
	Inspection InspectionConfig `yaml:"inspection"`
	Browser    BrowserConfig    `yaml:"browser"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// StoreConfig controls the SQLite persistence layer.
type StoreConfig struct {
	Path                   string        `yaml:"path"`
	ObservabilityRetention time.Duration `yaml:"observability_retention"`

	// SessionKeyHex is a 64-character hex-encoded 32-byte key used to
	// encrypt Target.SessionCookie at rest. Empty means plaintext storage.
	SessionKeyHex string `yaml:"session_key_hex"`
}

// AdvisorConfig controls the Advisor Bridge's live transport.
type AdvisorConfig struct {
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	MaxTokens   int64   `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// RequestConfig controls the HTTP/browser acquisition paths.
type RequestConfig struct {
	TimeoutMs int `yaml:"timeout_ms"`
}

// ProxyConfig controls outbound SOCKS5 proxying for crawl requests.
type ProxyConfig struct {
	Enabled bool   `yaml:"enabled"`
	Type    string `yaml:"type"` // socks5
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// InspectionConfig controls the optional upstream inspection proxy used
// to observe outbound traffic shape during development.
type InspectionConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

// BrowserConfig controls the optional Rod-driven browser escalation path
// the Crawl Engine uses when a target's DNA sets capabilities.jsEnabled
// and an HTTP-only fetch comes back insufficient. Disabled by default.
type BrowserConfig struct {
	Enabled          bool          `yaml:"enabled"`
	RemoteURL        string        `yaml:"remote_url"`
	MemoryLimitMB    int64         `yaml:"memory_limit_mb"`
	RecycleInterval  time.Duration `yaml:"recycle_interval"`
	ResourceBlocking []string      `yaml:"resource_blocking"`
	Headful          bool          `yaml:"headful"`
	XvfbDisplay      string        `yaml:"xvfb_display"`
}

// LoggingConfig controls the ambient structured logger.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug | info | warn | error
}

// LoadFile reads and parses a YAML configuration file, applying defaults
// for anything left unset.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Store.Path == "" {
		c.Store.Path = "greenlight.db"
	}
	if c.Store.ObservabilityRetention <= 0 {
		c.Store.ObservabilityRetention = 30 * 24 * time.Hour
	}
	if c.Advisor.MaxTokens <= 0 {
		c.Advisor.MaxTokens = 4096
	}
	if c.Advisor.Temperature <= 0 {
		c.Advisor.Temperature = 0.3
	}
	if c.Request.TimeoutMs <= 0 {
		c.Request.TimeoutMs = 15000
	}
	if c.Proxy.Type == "" {
		c.Proxy.Type = "socks5"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Browser.MemoryLimitMB <= 0 {
		c.Browser.MemoryLimitMB = 1024
	}
	if c.Browser.RecycleInterval <= 0 {
		c.Browser.RecycleInterval = 4 * time.Hour
	}
	if c.Browser.XvfbDisplay == "" {
		c.Browser.XvfbDisplay = ":99"
	}
}
