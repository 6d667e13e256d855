package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"firestige.xyz/facerelay/internal/core"
	"firestige.xyz/facerelay/internal/remap"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "facerelay.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.LiveLink.Listen)
	assert.Equal(t, 11111, cfg.LiveLink.Port)
	assert.Equal(t, 100*time.Millisecond, cfg.LiveLink.PollDuration())
	assert.Equal(t, 2048, cfg.LiveLink.BufferSize)
	assert.Equal(t, []uint32{6}, cfg.LiveLink.Versions)
	assert.Equal(t, 256, cfg.LiveLink.MaxNameLength)
	assert.Equal(t, "127.0.0.1", cfg.OSC.Host)
	assert.Equal(t, 9000, cfg.OSC.Port)
	assert.Equal(t, remap.MissingZero, cfg.Remap.MissingPolicy())
	assert.False(t, cfg.Remap.ClampWeights)
	assert.True(t, cfg.Replay.Realtime)
	assert.Equal(t, 1.0, cfg.Replay.Speed)
	assert.Empty(t, cfg.Control.PIDFile)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, 100, cfg.Log.Outputs.File.Rotation.MaxSizeMB)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
facerelay:
  livelink:
    listen: "127.0.0.1"
    port: 12000
    poll_interval: "50ms"
    versions: [6, 7]
  osc:
    host: "192.168.1.50"
    port: 8000
  remap:
    missing: reject
    clamp_weights: true
  control:
    pid_file: "/tmp/facerelay.pid"
  log:
    level: DEBUG
    format: json
`)
	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.LiveLink.Listen)
	assert.Equal(t, 12000, cfg.LiveLink.Port)
	assert.Equal(t, 50*time.Millisecond, cfg.LiveLink.PollDuration())
	assert.Equal(t, []uint32{6, 7}, cfg.LiveLink.Versions)
	assert.Equal(t, "192.168.1.50", cfg.OSC.Host)
	assert.Equal(t, 8000, cfg.OSC.Port)
	assert.Equal(t, remap.MissingReject, cfg.Remap.MissingPolicy())
	assert.True(t, cfg.Remap.ClampWeights)
	assert.Equal(t, "/tmp/facerelay.pid", cfg.Control.PIDFile)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	// Unset keys keep their defaults.
	assert.Equal(t, 2048, cfg.LiveLink.BufferSize)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, `
facerelay:
  osc:
    port: 8000
`)
	t.Setenv("FACERELAY_OSC_PORT", "7000")
	t.Setenv("FACERELAY_LOG_LEVEL", "warn")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.OSC.Port)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_FlagOverride(t *testing.T) {
	path := writeConfig(t, `
facerelay:
  osc:
    host: "10.0.0.1"
    port: 8000
`)
	t.Setenv("FACERELAY_OSC_HOST", "10.0.0.2")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("port", 11111, "")
	fs.String("osc-host", "127.0.0.1", "")
	fs.Int("osc-port", 9000, "")
	fs.String("unrelated", "", "")
	require.NoError(t, fs.Parse([]string{"--osc-host", "10.0.0.3", "--port", "12345"}))

	cfg, err := Load(path, fs)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.3", cfg.OSC.Host, "explicit flag beats env and file")
	assert.Equal(t, 8000, cfg.OSC.Port, "unset flag does not mask the file")
	assert.Equal(t, 12345, cfg.LiveLink.Port)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"), nil)
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"log level", "facerelay:\n  log:\n    level: loud\n"},
		{"log format", "facerelay:\n  log:\n    format: xml\n"},
		{"livelink port", "facerelay:\n  livelink:\n    port: 70000\n"},
		{"poll interval", "facerelay:\n  livelink:\n    poll_interval: soon\n"},
		{"osc port", "facerelay:\n  osc:\n    port: 0\n"},
		{"osc host", "facerelay:\n  osc:\n    host: \"\"\n"},
		{"missing policy", "facerelay:\n  remap:\n    missing: guess\n"},
		{"replay speed", "facerelay:\n  replay:\n    speed: -1\n"},
		{"file log path", "facerelay:\n  log:\n    outputs:\n      file:\n        enabled: true\n        path: \"\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content), nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrConfigInvalid)
		})
	}
}

func TestYAML_RoundTrip(t *testing.T) {
	cfg := Default()
	cfg.OSC.Port = 9100

	out, err := cfg.YAML()
	require.NoError(t, err)

	var decoded map[string]map[string]any
	require.NoError(t, yaml.Unmarshal(out, &decoded))
	require.Contains(t, decoded, "facerelay")
	assert.Contains(t, decoded["facerelay"], "livelink")

	path := writeConfig(t, string(out))
	reloaded, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, cfg, reloaded)
}
