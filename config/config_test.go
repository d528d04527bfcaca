package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadFileAppliesDefaults(t *testing.T) {
	yamlDoc := `
advisor:
  api_key: "sk-test"
  model: "claude-sonnet-4-5-20250929"
`
	f, err := os.CreateTemp("", "greenlight_config_*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(f.Name())
	if _, err := f.WriteString(yamlDoc); err != nil {
		t.Fatal(err)
	}
	f.Close()

	cfg, err := LoadFile(f.Name())
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Advisor.APIKey != "sk-test" {
		t.Errorf("Advisor.APIKey = %q, want %q", cfg.Advisor.APIKey, "sk-test")
	}
	if cfg.Store.Path != "greenlight.db" {
		t.Errorf("Store.Path = %q, want default %q", cfg.Store.Path, "greenlight.db")
	}
	if cfg.Store.ObservabilityRetention != 30*24*time.Hour {
		t.Errorf("Store.ObservabilityRetention = %v, want default 30 days", cfg.Store.ObservabilityRetention)
	}
	if cfg.Advisor.MaxTokens != 4096 {
		t.Errorf("Advisor.MaxTokens = %d, want default 4096", cfg.Advisor.MaxTokens)
	}
	if cfg.Advisor.Temperature != 0.3 {
		t.Errorf("Advisor.Temperature = %v, want default 0.3", cfg.Advisor.Temperature)
	}
	if cfg.Request.TimeoutMs != 15000 {
		t.Errorf("Request.TimeoutMs = %d, want default 15000", cfg.Request.TimeoutMs)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want default %q", cfg.Logging.Level, "info")
	}
	if cfg.Browser.Enabled {
		t.Error("Browser.Enabled default = true, want false")
	}
	if cfg.Browser.MemoryLimitMB != 1024 {
		t.Errorf("Browser.MemoryLimitMB = %d, want default 1024", cfg.Browser.MemoryLimitMB)
	}
	if cfg.Browser.RecycleInterval != 4*time.Hour {
		t.Errorf("Browser.RecycleInterval = %v, want default 4h", cfg.Browser.RecycleInterval)
	}
	if cfg.Browser.XvfbDisplay != ":99" {
		t.Errorf("Browser.XvfbDisplay = %q, want default %q", cfg.Browser.XvfbDisplay, ":99")
	}
}

func TestLoadFileRespectsExplicitValues(t *testing.T) {
	yamlDoc := `
request:
  timeout_ms: 30000
logging:
  level: debug
proxy:
  enabled: true
  host: "127.0.0.1"
  port: 1080
`
	f, err := os.CreateTemp("", "greenlight_config_*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(f.Name())
	if _, err := f.WriteString(yamlDoc); err != nil {
		t.Fatal(err)
	}
	f.Close()

	cfg, err := LoadFile(f.Name())
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Request.TimeoutMs != 30000 {
		t.Errorf("Request.TimeoutMs = %d, want 30000", cfg.Request.TimeoutMs)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if !cfg.Proxy.Enabled || cfg.Proxy.Port != 1080 {
		t.Errorf("Proxy = %+v, want enabled on port 1080", cfg.Proxy)
	}
	if cfg.Proxy.Type != "socks5" {
		t.Errorf("Proxy.Type = %q, want default socks5", cfg.Proxy.Type)
	}
}

func TestLoadFileMissingFile(t *testing.T) {
	if _, err := LoadFile("/nonexistent/path/config.yaml"); err == nil {
		t.Fatal("LoadFile(missing): want error")
	}
}
