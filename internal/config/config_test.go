package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load(NewViper(), "")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".trainlog"), cfg.DataDir)
	assert.Equal(t, DefaultHistoryDays, cfg.Sync.HistoryDays)
	assert.Equal(t, DefaultBackfillLimit, cfg.Sync.BackfillLimit)
	assert.Equal(t, DefaultClassifyBatch, cfg.Sync.ClassifyBatch)
	assert.Equal(t, time.Second, cfg.Sync.DetailDelay)
	assert.Equal(t, filepath.Join(home, ".trainlog", "activities.parquet"), cfg.Export.ParquetPath)
	assert.Empty(t, cfg.Metrics.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.NoError(t, cfg.Validate())
	assert.Error(t, cfg.ValidateCredentials())
}

func TestLoad_File(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := writeConfig(t, `
strava:
  client_id: "12345"
  client_secret: abc123secret
data_dir: /tmp/trainlog-data
sync:
  history_days: 30
  detail_delay: 250ms
export:
  parquet_path: ""
metrics:
  addr: 127.0.0.1:9464
log:
  level: debug
  format: json
`)

	cfg, err := Load(NewViper(), path)
	require.NoError(t, err)

	assert.Equal(t, "12345", cfg.Strava.ClientID)
	assert.Equal(t, "abc123secret", cfg.Strava.ClientSecret)
	assert.Equal(t, "/tmp/trainlog-data", cfg.DataDir)
	assert.Equal(t, 30, cfg.Sync.HistoryDays)
	assert.Equal(t, DefaultBackfillLimit, cfg.Sync.BackfillLimit)
	assert.Equal(t, 250*time.Millisecond, cfg.Sync.DetailDelay)
	assert.Empty(t, cfg.Export.ParquetPath, "explicit empty path disables export")
	assert.Equal(t, "127.0.0.1:9464", cfg.Metrics.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.NoError(t, cfg.Validate())
	assert.NoError(t, cfg.ValidateCredentials())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("TRAINLOG_STRAVA_CLIENT_ID", "from-env")
	t.Setenv("TRAINLOG_SYNC_BACKFILL_LIMIT", "7")
	path := writeConfig(t, `
strava:
  client_id: from-file
`)

	cfg, err := Load(NewViper(), path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Strava.ClientID)
	assert.Equal(t, 7, cfg.Sync.BackfillLimit)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	_, err := Load(NewViper(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestCreateExample(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	created, err := CreateExample(path)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = CreateExample(path)
	require.NoError(t, err)
	assert.False(t, created, "existing config is never overwritten")

	cfg, err := Load(NewViper(), path)
	require.NoError(t, err)
	assert.Equal(t, placeholderClientID, cfg.Strava.ClientID)
	assert.Equal(t, time.Second, cfg.Sync.DetailDelay)
	assert.NoError(t, cfg.Validate())

	err = cfg.ValidateCredentials()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client_id")
}

func TestConfigValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Sync: SyncConfig{HistoryDays: 180, BackfillLimit: 100, ClassifyBatch: 200, DetailDelay: time.Second},
			Log:  LogConfig{Level: "info", Format: "text"},
		}
	}

	tests := []struct {
		name        string
		mutate      func(*Config)
		errContains string
	}{
		{"valid", func(*Config) {}, ""},
		{"zero delay allowed", func(c *Config) { c.Sync.DetailDelay = 0 }, ""},
		{"history days", func(c *Config) { c.Sync.HistoryDays = 0 }, "sync.history_days"},
		{"backfill limit", func(c *Config) { c.Sync.BackfillLimit = -1 }, "sync.backfill_limit"},
		{"classify batch", func(c *Config) { c.Sync.ClassifyBatch = 0 }, "sync.classify_batch"},
		{"negative delay", func(c *Config) { c.Sync.DetailDelay = -time.Second }, "sync.detail_delay"},
		{"log level", func(c *Config) { c.Log.Level = "verbose" }, "log.level"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.errContains == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestValidateCredentials(t *testing.T) {
	tests := []struct {
		name        string
		strava      StravaConfig
		errContains string
	}{
		{"valid", StravaConfig{ClientID: "12345", ClientSecret: "secret"}, ""},
		{"empty id", StravaConfig{ClientSecret: "secret"}, "client_id"},
		{"placeholder id", StravaConfig{ClientID: placeholderClientID, ClientSecret: "secret"}, "client_id"},
		{"empty secret", StravaConfig{ClientID: "12345"}, "client_secret"},
		{"placeholder secret", StravaConfig{ClientID: "12345", ClientSecret: placeholderClientSecret}, "client_secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{Strava: tt.strava}
			err := cfg.ValidateCredentials()
			if tt.errContains == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}
