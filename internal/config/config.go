// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"firestige.xyz/facerelay/internal/core"
	"firestige.xyz/facerelay/internal/remap"
)

// rootKey is the top-level YAML key; env vars use the FACERELAY_ prefix.
const rootKey = "facerelay"

// GlobalConfig represents the top-level configuration.
// Maps to the `facerelay:` root key in YAML.
type GlobalConfig struct {
	LiveLink LiveLinkConfig `mapstructure:"livelink" yaml:"livelink"`
	OSC      OSCConfig      `mapstructure:"osc" yaml:"osc"`
	Remap    RemapConfig    `mapstructure:"remap" yaml:"remap"`
	Replay   ReplayConfig   `mapstructure:"replay" yaml:"replay"`
	Control  ControlConfig  `mapstructure:"control" yaml:"control"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

// ─── Inbound ───

// LiveLinkConfig configures the LiveLink UDP listener and decoder.
type LiveLinkConfig struct {
	Listen        string   `mapstructure:"listen" yaml:"listen"`
	Port          int      `mapstructure:"port" yaml:"port"`                     // 0 = ephemeral
	RecvBuffer    int      `mapstructure:"recv_buffer" yaml:"recv_buffer"`       // bytes, 0 = OS default
	PollInterval  string   `mapstructure:"poll_interval" yaml:"poll_interval"`   // e.g. "100ms"
	BufferSize    int      `mapstructure:"buffer_size" yaml:"buffer_size"`       // largest datagram
	Versions      []uint32 `mapstructure:"versions" yaml:"versions"`             // accepted protocol versions
	MaxNameLength int      `mapstructure:"max_name_length" yaml:"max_name_length"`
}

// PollDuration returns the parsed poll interval. Only valid after
// ValidateAndApplyDefaults.
func (c LiveLinkConfig) PollDuration() time.Duration {
	d, _ := time.ParseDuration(c.PollInterval)
	return d
}

// ─── Outbound ───

// OSCConfig configures the OSC destination.
type OSCConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

// ─── Remapping ───

// RemapConfig configures blendshape remapping.
type RemapConfig struct {
	Missing      string `mapstructure:"missing" yaml:"missing"`             // zero | reject
	ClampWeights bool   `mapstructure:"clamp_weights" yaml:"clamp_weights"` // clamp weights to [0,1]
}

// MissingPolicy returns the parsed policy. Only valid after
// ValidateAndApplyDefaults.
func (c RemapConfig) MissingPolicy() remap.MissingPolicy {
	p, _ := remap.ParseMissingPolicy(c.Missing)
	return p
}

// ─── Replay ───

// ReplayConfig configures pcap replay.
type ReplayConfig struct {
	Realtime bool    `mapstructure:"realtime" yaml:"realtime"`
	Speed    float64 `mapstructure:"speed" yaml:"speed"`
}

// ─── Control Plane ───

// ControlConfig contains local process control settings.
type ControlConfig struct {
	PIDFile string `mapstructure:"pid_file" yaml:"pid_file"` // empty = no PID file
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level   string           `mapstructure:"level" yaml:"level"`   // debug / info / warn / error
	Format  string           `mapstructure:"format" yaml:"format"` // json / text
	Outputs LogOutputsConfig `mapstructure:"outputs" yaml:"outputs"`
}

// LogOutputsConfig contains structured log output destinations.
type LogOutputsConfig struct {
	File FileOutputConfig `mapstructure:"file" yaml:"file"`
}

// FileOutputConfig configures file log output.
type FileOutputConfig struct {
	Enabled  bool           `mapstructure:"enabled" yaml:"enabled"`
	Path     string         `mapstructure:"path" yaml:"path"`
	Rotation RotationConfig `mapstructure:"rotation" yaml:"rotation"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxAgeDays int  `mapstructure:"max_age_days" yaml:"max_age_days"`
	MaxBackups int  `mapstructure:"max_backups" yaml:"max_backups"`
	Compress   bool `mapstructure:"compress" yaml:"compress"`
}

// ─── Loading ───

// configRoot is the top-level wrapper matching the YAML structure `facerelay: ...`.
type configRoot struct {
	FaceRelay GlobalConfig `mapstructure:"facerelay" yaml:"facerelay"`
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"listen":         "livelink.listen",
	"port":           "livelink.port",
	"osc-host":       "osc.host",
	"osc-port":       "osc.port",
	"missing":        "remap.missing",
	"clamp-weights":  "remap.clamp_weights",
	"realtime":       "replay.realtime",
	"speed":          "replay.speed",
	"pid-file":       "control.pid_file",
	"metrics":        "metrics.enabled",
	"metrics-listen": "metrics.listen",
	"log-level":      "log.level",
	"log-format":     "log.format",
}

// Load loads configuration. Precedence, highest first: flags explicitly set
// in flags, FACERELAY_* environment variables, the YAML file at path, and
// built-in defaults. path and flags may both be empty/nil.
func Load(path string, flags *pflag.FlagSet) (*GlobalConfig, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variable overrides.
	// The `facerelay.` key prefix maps to `FACERELAY_` via the key replacer
	// (e.g., key "facerelay.osc.port" → env "FACERELAY_OSC_PORT").
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(rootKey+"."+key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag --%s: %w", name, err)
				}
			}
		}
	}

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.FaceRelay

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Default returns the built-in configuration.
func Default() *GlobalConfig {
	cfg, err := Load("", nil)
	if err != nil {
		panic(fmt.Sprintf("config: built-in defaults are invalid: %v", err))
	}
	return cfg
}

// setDefaults sets default values for configuration.
// All keys use the "facerelay." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	d := func(key string, value any) { v.SetDefault(rootKey+"."+key, value) }

	// Inbound
	d("livelink.listen", "0.0.0.0")
	d("livelink.port", 11111)
	d("livelink.recv_buffer", 0)
	d("livelink.poll_interval", "100ms")
	d("livelink.buffer_size", 2048)
	d("livelink.versions", []uint32{6})
	d("livelink.max_name_length", 256)

	// Outbound
	d("osc.host", "127.0.0.1")
	d("osc.port", 9000)

	// Remap
	d("remap.missing", "zero")
	d("remap.clamp_weights", false)

	// Replay
	d("replay.realtime", true)
	d("replay.speed", 1.0)

	// Control
	d("control.pid_file", "")

	// Metrics
	d("metrics.enabled", false)
	d("metrics.listen", "127.0.0.1:9091")
	d("metrics.path", "/metrics")

	// Log
	d("log.level", "info")
	d("log.format", "text")
	d("log.outputs.file.enabled", false)
	d("log.outputs.file.path", "facerelay.log")
	d("log.outputs.file.rotation.max_size_mb", 100)
	d("log.outputs.file.rotation.max_age_days", 30)
	d("log.outputs.file.rotation.max_backups", 5)
	d("log.outputs.file.rotation.compress", true)
}

// ValidateAndApplyDefaults validates configuration and applies runtime defaults.
func (cfg *GlobalConfig) ValidateAndApplyDefaults() error {
	// ── Log validation ──
	validLevels := []string{"debug", "info", "warn", "error"}
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	if !slices.Contains(validLevels, cfg.Log.Level) {
		return invalid("invalid log level: %s (must be debug/info/warn/error)", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		return invalid("invalid log format: %s (must be json/text)", cfg.Log.Format)
	}
	if cfg.Log.Outputs.File.Enabled && cfg.Log.Outputs.File.Path == "" {
		return invalid("log.outputs.file.path is required when file output is enabled")
	}

	// ── LiveLink ──
	ll := &cfg.LiveLink
	if ll.Port < 0 || ll.Port > 65535 {
		return invalid("invalid livelink.port: %d", ll.Port)
	}
	if ll.PollInterval == "" {
		ll.PollInterval = "100ms"
	}
	if d, err := time.ParseDuration(ll.PollInterval); err != nil || d <= 0 {
		return invalid("invalid livelink.poll_interval: %q", ll.PollInterval)
	}
	if ll.BufferSize <= 0 {
		ll.BufferSize = 2048
	}
	if ll.RecvBuffer < 0 {
		return invalid("invalid livelink.recv_buffer: %d", ll.RecvBuffer)
	}
	if len(ll.Versions) == 0 {
		ll.Versions = []uint32{6}
	}
	if ll.MaxNameLength < 0 {
		return invalid("invalid livelink.max_name_length: %d", ll.MaxNameLength)
	}

	// ── OSC ──
	if cfg.OSC.Host == "" {
		return invalid("osc.host is required")
	}
	if cfg.OSC.Port <= 0 || cfg.OSC.Port > 65535 {
		return invalid("invalid osc.port: %d", cfg.OSC.Port)
	}

	// ── Remap ──
	if _, err := remap.ParseMissingPolicy(cfg.Remap.Missing); err != nil {
		return invalid("invalid remap.missing: %v", err)
	}
	if cfg.Remap.Missing == "" {
		cfg.Remap.Missing = "zero"
	}

	// ── Replay ──
	if cfg.Replay.Speed <= 0 {
		return invalid("invalid replay.speed: %v (must be > 0)", cfg.Replay.Speed)
	}

	// ── Metrics ──
	if cfg.Metrics.Enabled && cfg.Metrics.Listen == "" {
		return invalid("metrics.listen is required when metrics are enabled")
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", core.ErrConfigInvalid, fmt.Sprintf(format, args...))
}

// YAML renders the configuration under its root key.
func (cfg *GlobalConfig) YAML() ([]byte, error) {
	out, err := yaml.Marshal(configRoot{FaceRelay: *cfg})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return out, nil
}
