// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// GlobalConfig represents the top-level configuration.
// Maps to the `pktcraft:` root key in YAML.
type GlobalConfig struct {
	Log     LogConfig     `mapstructure:"log"`
	Craft   CraftConfig   `mapstructure:"craft"`
	Backend BackendConfig `mapstructure:"backend"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level      string           `mapstructure:"level"`       // trace / debug / info / warn / error
	Format     string           `mapstructure:"format"`      // text / json / pattern
	Pattern    string           `mapstructure:"pattern"`     // used when format=pattern
	TimeFormat string           `mapstructure:"time_format"` // Go reference layout
	File       FileOutputConfig `mapstructure:"file"`
}

// FileOutputConfig configures the rotating log file.
type FileOutputConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ─── Craft ───

// CraftConfig controls stack crafting.
type CraftConfig struct {
	ShowWarnings bool `mapstructure:"show_warnings"`
}

// ─── Backend ───

// BackendConfig selects and configures the sender that receives finished packets.
type BackendConfig struct {
	Type    string               `mapstructure:"type"` // hexdump / pcap / raw
	Hexdump HexdumpBackendConfig `mapstructure:"hexdump"`
	Pcap    PcapBackendConfig    `mapstructure:"pcap"`
	Raw     RawBackendConfig     `mapstructure:"raw"`
}

// HexdumpBackendConfig configures the console dump.
type HexdumpBackendConfig struct {
	Decode bool `mapstructure:"decode"` // append gopacket's layer summary
}

// PcapBackendConfig configures the capture file writer.
type PcapBackendConfig struct {
	Path    string `mapstructure:"path"`
	SnapLen int    `mapstructure:"snaplen"`
}

// RawBackendConfig configures the raw IPv4 socket.
type RawBackendConfig struct {
	Network string `mapstructure:"network"` // e.g. ip4:255
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// ─── Loading ───

// configRoot is the top-level wrapper matching the YAML structure `pktcraft: ...`.
type configRoot struct {
	Pktcraft GlobalConfig `mapstructure:"pktcraft"`
}

// Load loads configuration from file. An empty path yields the defaults,
// still subject to environment overrides.
// Env vars map through the key replacer, e.g. "pktcraft.log.level" -> PKTCRAFT_LOG_LEVEL.
func Load(path string) (*GlobalConfig, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Pktcraft

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *GlobalConfig {
	cfg, err := Load("")
	if err != nil {
		panic(err)
	}
	return cfg
}

// setDefaults sets default values for configuration.
// All keys use the "pktcraft." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	// Log defaults
	v.SetDefault("pktcraft.log.level", "info")
	v.SetDefault("pktcraft.log.format", "pattern")
	v.SetDefault("pktcraft.log.pattern", "%time [%level] %msg %field%n")
	v.SetDefault("pktcraft.log.time_format", "2006-01-02 15:04:05")
	v.SetDefault("pktcraft.log.file.enabled", false)
	v.SetDefault("pktcraft.log.file.path", "/var/log/pktcraft/pktcraft.log")
	v.SetDefault("pktcraft.log.file.max_size_mb", 100)
	v.SetDefault("pktcraft.log.file.max_backups", 5)
	v.SetDefault("pktcraft.log.file.max_age_days", 30)
	v.SetDefault("pktcraft.log.file.compress", true)

	// Craft defaults
	v.SetDefault("pktcraft.craft.show_warnings", true)

	// Backend defaults
	v.SetDefault("pktcraft.backend.type", "hexdump")
	v.SetDefault("pktcraft.backend.hexdump.decode", false)
	v.SetDefault("pktcraft.backend.pcap.path", "pktcraft.pcap")
	v.SetDefault("pktcraft.backend.pcap.snaplen", 65535)
	v.SetDefault("pktcraft.backend.raw.network", "ip4:255")

	// Metrics defaults
	v.SetDefault("pktcraft.metrics.enabled", false)
	v.SetDefault("pktcraft.metrics.listen", ":9091")
	v.SetDefault("pktcraft.metrics.path", "/metrics")
}

// ValidateAndApplyDefaults validates configuration and applies runtime defaults.
func (cfg *GlobalConfig) ValidateAndApplyDefaults() error {
	// ── Log validation ──
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("invalid log level: %s (must be trace/debug/info/warn/error)", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "json", "text", "pattern":
	default:
		return fmt.Errorf("invalid log format: %s (must be json/text/pattern)", cfg.Log.Format)
	}
	if cfg.Log.File.Enabled && cfg.Log.File.Path == "" {
		return fmt.Errorf("log.file.path is required when log.file.enabled=true")
	}

	// ── Backend validation ──
	switch cfg.Backend.Type {
	case "hexdump", "pcap", "raw":
	default:
		return fmt.Errorf("unsupported backend.type: %s (must be hexdump/pcap/raw)", cfg.Backend.Type)
	}
	if cfg.Backend.Pcap.SnapLen <= 0 {
		cfg.Backend.Pcap.SnapLen = 65535
	}
	if cfg.Backend.Type == "pcap" && cfg.Backend.Pcap.Path == "" {
		return fmt.Errorf("backend.pcap.path is required when backend.type=pcap")
	}
	if cfg.Backend.Raw.Network == "" {
		cfg.Backend.Raw.Network = "ip4:255"
	}

	// ── Metrics ──
	if cfg.Metrics.Enabled && cfg.Metrics.Listen == "" {
		return fmt.Errorf("metrics.listen is required when metrics.enabled=true")
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	return nil
}
