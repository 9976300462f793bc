package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	assert.Equal(t, "karaoke.db", v.GetString("database.path"))
	assert.Equal(t, "library", v.GetString("library.path"))
	assert.Equal(t, 1, v.GetInt("worker.pool_size"))
	assert.Equal(t, 30, v.GetInt("worker.stale_job_threshold_minutes"))
	assert.Equal(t, "htdemucs", v.GetString("separation.model"))
	assert.Equal(t, 320, v.GetInt("separation.mp3_bitrate"))
	assert.Equal(t, "auto", v.GetString("separation.device"))
	assert.Equal(t, 20, v.GetInt("metadata.requests_per_minute"))
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "karaoke.toml")

	content := `
[database]
path = "/data/karaoke.db"

[server]
port = 9000
allowed_origins = ["http://example.com"]

[worker]
pool_size = 4
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	cfg, err := LoadFromFile(configPath)
	require.NoError(t, err)

	assert.Equal(t, "/data/karaoke.db", cfg.Database.Path)
	require.NotNil(t, cfg.Server.Port)
	assert.Equal(t, 9000, *cfg.Server.Port)
	assert.Equal(t, []string{"http://example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 4, cfg.Worker.PoolSize)

	// Unset sections keep defaults
	assert.Equal(t, "htdemucs", cfg.Separation.Model)
	assert.Equal(t, "library", cfg.Library.Path)
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestServerPort(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, DefaultServerPort, cfg.ServerPort())

	port := 8080
	cfg.Server.Port = &port
	assert.Equal(t, 8080, cfg.ServerPort())
}

func TestSaveRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "karaoke.toml")

	port := 7000
	cfg := &Config{}
	cfg.Database.Path = "x.db"
	cfg.Server.Port = &port
	cfg.Library.Path = "/media/library"
	cfg.Worker.PoolSize = 2

	require.NoError(t, Save(cfg, configPath))

	loaded, err := LoadFromFile(configPath)
	require.NoError(t, err)
	assert.Equal(t, "x.db", loaded.Database.Path)
	assert.Equal(t, "/media/library", loaded.Library.Path)
	assert.Equal(t, 2, loaded.Worker.PoolSize)
	require.NotNil(t, loaded.Server.Port)
	assert.Equal(t, 7000, *loaded.Server.Port)
}

func TestSaveKeepsBackup(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "karaoke.toml")

	cfg := &Config{}
	cfg.Database.Path = "first.db"
	require.NoError(t, Save(cfg, configPath))

	cfg.Database.Path = "second.db"
	require.NoError(t, Save(cfg, configPath))

	backup, err := os.ReadFile(configPath + ".back")
	require.NoError(t, err)
	assert.Contains(t, string(backup), "first.db")
}

func TestSetValue(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "karaoke.toml")

	require.NoError(t, SetValue(configPath, "worker.pool_size", 8))

	loaded, err := LoadFromFile(configPath)
	require.NoError(t, err)
	assert.Equal(t, 8, loaded.Worker.PoolSize)
}

func TestReset(t *testing.T) {
	Reset()
	_, err := Load()
	require.NoError(t, err)
	require.NotNil(t, globalConfig)
	Reset()
	assert.Nil(t, globalConfig)
}
