package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	t.Setenv("MEDIAJOIN_LOG_FORMAT", "text")

	cfg, err := parseFlags([]string{"--config", "base.yaml, site.json", "--debug", "--shutdown-timeout", "3s"})
	require.NoError(t, err)
	assert.Equal(t, []string{"base.yaml", "site.json"}, cfg.ConfigPaths)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
}

func TestValidateFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("element: {name: e}\n"), 0600))

	valid := func() *CLIConfig {
		return &CLIConfig{ConfigPaths: []string{path}, LogLevel: "info", LogFormat: "json", ShutdownTimeout: time.Second}
	}
	require.NoError(t, validateFlags(valid()))

	tests := []struct {
		name   string
		mutate func(*CLIConfig)
	}{
		{"missing file", func(c *CLIConfig) { c.ConfigPaths = []string{filepath.Join(t.TempDir(), "nope.yaml")} }},
		{"no file", func(c *CLIConfig) { c.ConfigPaths = nil }},
		{"bad level", func(c *CLIConfig) { c.LogLevel = "loud" }},
		{"bad format", func(c *CLIConfig) { c.LogFormat = "xml" }},
		{"bad timeout", func(c *CLIConfig) { c.ShutdownTimeout = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, validateFlags(cfg))
		})
	}

	assert.NoError(t, validateFlags(&CLIConfig{ShowVersion: true}))
}

func TestSetupLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(&buf, "warn", "json")
	logger.Info("hidden")
	logger.Warn("shown", "port", "left")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, appName, entry["service"])
	assert.Equal(t, "left", entry["port"])
}

func TestRun_ValidateOnly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mixer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
element:
  name: mixer
  inputs:
    - {name: a, caps: "video/x-raw,format=GRAY8,width=2,height=2"}
  outputs:
    - {name: out, caps: "video/x-raw,format=GRAY8,width=2,height=2"}
transform:
  name: mean
`), 0600))
	t.Setenv("MEDIAJOIN_ENV_FILE", filepath.Join(dir, "missing.env"))

	assert.NoError(t, run([]string{"--config", path, "--validate"}))

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("element: {name: e}\ntransform: {name: blur}\n"), 0600))
	assert.ErrorContains(t, run([]string{"--config", bad, "--validate"}), "blur")
}

func TestRun_ValidateWithPreset(t *testing.T) {
	dir := t.TempDir()
	presets := filepath.Join(dir, "presets")
	require.NoError(t, os.Mkdir(presets, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(presets, "dim.yaml"),
		[]byte("transform: fill\nparams: {value: 16}\n"), 0600))

	path := filepath.Join(dir, "dim.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
element:
  name: dimmer
  inputs:
    - {name: a, caps: "video/x-raw,format=GRAY8,width=2,height=2"}
  outputs:
    - {name: out, caps: "video/x-raw,format=GRAY8,width=2,height=2"}
plugin_dirs: [`+presets+`]
transform:
  name: dim
`), 0600))
	t.Setenv("MEDIAJOIN_ENV_FILE", filepath.Join(dir, "missing.env"))

	assert.NoError(t, run([]string{"--config", path, "--validate"}))

	bad := filepath.Join(presets, "broken.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"transform": "blur"}`), 0600))
	assert.ErrorContains(t, run([]string{"--config", path, "--validate"}), "blur")
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("MEDIAJOIN_TEST_VALUE=from-file\n"), 0600))
	t.Setenv("MEDIAJOIN_TEST_VALUE", "")
	require.NoError(t, os.Unsetenv("MEDIAJOIN_TEST_VALUE"))

	require.NoError(t, loadEnvFile(path))
	assert.Equal(t, "from-file", os.Getenv("MEDIAJOIN_TEST_VALUE"))
	assert.NoError(t, loadEnvFile(filepath.Join(t.TempDir(), "none.env")))
}
