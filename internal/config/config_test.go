package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "tickd/pkg/feed/sim"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const validFeedYAML = `
default: local
sources:
  local:
    type: sim
    interval: 100ms
`

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "feed.yaml", validFeedYAML)
	path := writeConfig(t, dir, "tickd.yaml", `
Name: tickd
Host: 0.0.0.0
Port: 8888
Ingest:
  Symbols:
    - tcs
    - " reliance "
    - TCS
Feed:
  File: feed.yaml
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.Env)
	assert.True(t, cfg.IsTestEnv())
	assert.Equal(t, 10, cfg.Ingest.WindowSize)
	assert.Equal(t, 4, cfg.Ingest.Workers)
	assert.Equal(t, 500, cfg.Ingest.FlushSize)
	assert.Equal(t, 2000, cfg.Ingest.FlushIntervalMs)
	assert.Equal(t, 5000, cfg.Ingest.MaxBacklog)
	assert.False(t, cfg.Ingest.Autostart)
	assert.Equal(t, 10, cfg.TTL.Short)

	// Symbols are uppercased, trimmed and deduplicated.
	assert.Equal(t, []string{"TCS", "RELIANCE"}, cfg.Ingest.Symbols)

	// The feed section is hydrated relative to the main config file.
	require.NotNil(t, cfg.Feed.Value)
	assert.Equal(t, "local", cfg.Feed.Value.Default)
	assert.Equal(t, filepath.Join(dir, "feed.yaml"), cfg.Feed.File)
}

func TestLoadRejectsEmptySymbols(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "tickd.yaml", `
Name: tickd
Host: 0.0.0.0
Port: 8888
Ingest:
  Symbols:
    - "   "
`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "symbols cannot be empty")
}

func TestLoadRejectsBadEnv(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "tickd.yaml", `
Name: tickd
Host: 0.0.0.0
Port: 8888
Env: staging
Ingest:
  Symbols: [TCS]
`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "env must be one of")
}

func TestLoadRejectsBacklogBelowFlushSize(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "tickd.yaml", `
Name: tickd
Host: 0.0.0.0
Port: 8888
Ingest:
  Symbols: [TCS]
  FlushSize: 500
  MaxBacklog: 100
`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "maxBacklog")
}

func TestLoadRejectsBrokenFeedSection(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "feed.yaml", `
sources:
  local:
    type: carrier-pigeon
`)
	path := writeConfig(t, dir, "tickd.yaml", `
Name: tickd
Host: 0.0.0.0
Port: 8888
Ingest:
  Symbols: [TCS]
Feed:
  File: feed.yaml
`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "unsupported type")
}
