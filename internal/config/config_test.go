package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return configPath
}

func TestLoadValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
pktcraft:
  log:
    level: "debug"
    format: "json"
  craft:
    show_warnings: false
  backend:
    type: "pcap"
    pcap:
      path: "/tmp/out.pcap"
  metrics:
    enabled: true
    listen: "127.0.0.1:9100"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Expected log level debug, got %s", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Expected log format json, got %s", cfg.Log.Format)
	}
	if cfg.Craft.ShowWarnings {
		t.Errorf("Expected show_warnings false, got true")
	}
	if cfg.Backend.Type != "pcap" || cfg.Backend.Pcap.Path != "/tmp/out.pcap" {
		t.Errorf("Expected pcap backend writing /tmp/out.pcap, got %s %s", cfg.Backend.Type, cfg.Backend.Pcap.Path)
	}
	if cfg.Backend.Pcap.SnapLen != 65535 {
		t.Errorf("Expected default snaplen 65535, got %d", cfg.Backend.Pcap.SnapLen)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Listen != "127.0.0.1:9100" {
		t.Errorf("Expected metrics on 127.0.0.1:9100, got %v %s", cfg.Metrics.Enabled, cfg.Metrics.Listen)
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Expected default metrics path /metrics, got %s", cfg.Metrics.Path)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Failed to load defaults: %v", err)
	}

	if cfg.Log.Level != "info" {
		t.Errorf("Expected log level info, got %s", cfg.Log.Level)
	}
	if cfg.Log.Format != "pattern" {
		t.Errorf("Expected log format pattern, got %s", cfg.Log.Format)
	}
	if !cfg.Craft.ShowWarnings {
		t.Errorf("Expected warnings enabled by default")
	}
	if cfg.Backend.Type != "hexdump" {
		t.Errorf("Expected hexdump backend, got %s", cfg.Backend.Type)
	}
	if cfg.Backend.Raw.Network != "ip4:255" {
		t.Errorf("Expected raw network ip4:255, got %s", cfg.Backend.Raw.Network)
	}
	if cfg.Metrics.Enabled {
		t.Errorf("Expected metrics disabled by default")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("PKTCRAFT_LOG_LEVEL", "warn")
	t.Setenv("PKTCRAFT_BACKEND_TYPE", "raw")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Expected log level warn from env, got %s", cfg.Log.Level)
	}
	if cfg.Backend.Type != "raw" {
		t.Errorf("Expected backend raw from env, got %s", cfg.Backend.Type)
	}
}

func TestLoadInvalidLogLevel(t *testing.T) {
	configPath := writeConfig(t, `
pktcraft:
  log:
    level: "loud"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Expected error for invalid log level, got nil")
	}
	if !strings.Contains(err.Error(), "invalid log level") {
		t.Errorf("Expected error about invalid log level, got: %v", err)
	}
}

func TestLoadInvalidBackend(t *testing.T) {
	configPath := writeConfig(t, `
pktcraft:
  backend:
    type: "carrier-pigeon"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Expected error for unsupported backend, got nil")
	}
	if !strings.Contains(err.Error(), "unsupported backend.type") {
		t.Errorf("Expected error about backend type, got: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	if err == nil {
		t.Fatal("Expected error for missing file, got nil")
	}
}

func TestValidateFileOutputNeedsPath(t *testing.T) {
	cfg := Default()
	cfg.Log.File.Enabled = true
	cfg.Log.File.Path = ""

	if err := cfg.ValidateAndApplyDefaults(); err == nil {
		t.Error("Expected error for file output without path, got nil")
	}
}
