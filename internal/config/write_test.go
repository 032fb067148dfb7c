package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteInitial_LoadsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	require.NoError(t, WriteInitial(path, "https://cloud.example.com", "u1", testLogger()))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(configFilePermissions), info.Mode().Perm())

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://cloud.example.com", cfg.Server.URL)
	assert.Equal(t, "u1", cfg.Server.UserID)
	assert.Equal(t, DefaultConfig().Transfers, cfg.Transfers)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestWriteInitial_RefusesOverwrite(t *testing.T) {
	path := writeTestConfig(t, "# mine\n")

	err := WriteInitial(path, "https://cloud.example.com", "u1", testLogger())
	require.ErrorIs(t, err, ErrConfigExists)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# mine\n", string(data))
}

func TestWriteInitial_Validates(t *testing.T) {
	dir := t.TempDir()

	assert.Error(t, WriteInitial(filepath.Join(dir, "a.toml"), "cloud.example.com", "u1", testLogger()))
	assert.ErrorIs(t, WriteInitial(filepath.Join(dir, "b.toml"), "https://cloud.example.com", "", testLogger()), ErrNoUser)
}

func TestRenderEffective(t *testing.T) {
	r := &Resolved{
		ConfigPath:        "/etc/ocdav.toml",
		ServerURL:         "https://cloud.example.com",
		UserID:            "u1",
		Username:          "alice",
		Password:          "hunter2",
		ChunkSize:         10 * 1024 * 1024,
		ChunkingThreshold: 100 * 1024 * 1024,
		ParallelDownloads: 4,
		LogFormat:         "text",
		LedgerEnabled:     true,
		LedgerPath:        "/tmp/ledger.db",
	}

	var buf bytes.Buffer
	require.NoError(t, RenderEffective(r, &buf))

	out := buf.String()
	assert.Contains(t, out, "file: /etc/ocdav.toml")
	assert.Contains(t, out, `url              = "https://cloud.example.com"`)
	assert.Contains(t, out, `chunk_size         = "10 MiB"`)
	assert.Contains(t, out, "password from OCDAV_PASSWORD: set")
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, `log_level  = "INFO"`)
}
