package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTOML(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "server.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeTOML(t, `
[server]
host = "127.0.0.1"
port = 9000
threads = 4
keep_alive_timeout = 30
max_connections = 1000
`)
	store, err := Load(path)
	require.NoError(t, err)
	cfg := store.Get()
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Features.EnableCache)
}

func TestLoadRejectsOutOfRangeField(t *testing.T) {
	path := writeTOML(t, `
[server]
host = "h"
port = 99999
threads = 4
keep_alive_timeout = 30
max_connections = 1000
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestReloadRetainsSnapshotOnFailure(t *testing.T) {
	path := writeTOML(t, `
[server]
host = "h"
port = 9000
threads = 4
keep_alive_timeout = 30
max_connections = 1000
`)
	store, err := Load(path)
	require.NoError(t, err)
	before := store.Get()

	require.NoError(t, os.WriteFile(path, []byte(`[server]
host = "h"
port = -1
threads = 4
keep_alive_timeout = 30
max_connections = 1000
`), 0o644))

	err = store.Reload()
	require.Error(t, err)
	assert.Same(t, before, store.Get())
}

func TestReloadSwapsOnSuccessAndNotifiesObserver(t *testing.T) {
	path := writeTOML(t, `
[server]
host = "h"
port = 9000
threads = 4
keep_alive_timeout = 30
max_connections = 1000
`)
	store, err := Load(path)
	require.NoError(t, err)

	notified := false
	store.OnChange(func(c *Config) { notified = true })

	require.NoError(t, os.WriteFile(path, []byte(`[server]
host = "other"
port = 9001
threads = 4
keep_alive_timeout = 30
max_connections = 1000
`), 0o644))

	require.NoError(t, store.Reload())
	assert.Equal(t, "other", store.Get().Server.Host)
	assert.True(t, notified)
}
