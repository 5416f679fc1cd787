package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFileYAML(t *testing.T) {
	path := writeConfig(t, "photosphere.yaml", `
server:
  port: "9100"
viewer:
  surface: headless
  load_mode: auto
  script_timeout: 750ms
provisioning:
  enabled: true
  max_width: 8192
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "9100", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "headless", cfg.Viewer.Surface)
	assert.Equal(t, "auto", cfg.Viewer.LoadMode)
	assert.Equal(t, 750*time.Millisecond, cfg.Viewer.ScriptTimeout.Std())
	assert.Equal(t, 11008, cfg.Viewer.GeometryWidth)
	assert.True(t, cfg.Provisioning.Enabled)
	assert.Equal(t, 8192, cfg.Provisioning.MaxWidth)
	assert.Equal(t, 5504, cfg.Provisioning.MaxHeight)
}

func TestLoadFileTOML(t *testing.T) {
	path := writeConfig(t, "photosphere.toml", `
[logging]
level = "debug"

[rate_limit]
requests_per_second = 5

[viewer]
pool_size = 2
script_timeout = "2s"
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 5, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.Equal(t, 2, cfg.Viewer.PoolSize)
	assert.Equal(t, 2*time.Second, cfg.Viewer.ScriptTimeout.Std())
}

func TestLoadFileOverridesEnvironment(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("HOST", "127.0.0.1")
	path := writeConfig(t, "photosphere.yml", "server:\n  port: \"9200\"\n")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "9200", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
}

func TestLoadFileEmptyPath(t *testing.T) {
	cfg, err := LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFileRejects(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
	}{
		{name: "unknown yaml key", file: "c.yaml", body: "viewer:\n  colour: blue\n"},
		{name: "unknown toml key", file: "c.toml", body: "[viewer]\ncolour = \"blue\"\n"},
		{name: "invalid surface", file: "c.yaml", body: "viewer:\n  surface: native\n"},
		{name: "bad duration", file: "c.toml", body: "[viewer]\nscript_timeout = \"soon\"\n"},
		{name: "unsupported extension", file: "c.json", body: "{}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(writeConfig(t, tt.file, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDurationText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte(" 1m30s ")))
	assert.Equal(t, 90*time.Second, d.Std())

	text, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(text))
}
