package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes every environment override, e.g. TRAINLOG_STRAVA_CLIENT_ID
	EnvPrefix = "TRAINLOG"

	dirName    = ".trainlog"
	configName = "config"
	configType = "yaml"

	placeholderClientID     = "YOUR_CLIENT_ID"
	placeholderClientSecret = "YOUR_CLIENT_SECRET"
)

// Defaults
const (
	DefaultHistoryDays   = 180
	DefaultBackfillLimit = 100
	DefaultClassifyBatch = 200
	DefaultDetailDelay   = time.Second
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "text"
	parquetFile          = "activities.parquet"
)

// Config represents the application configuration
type Config struct {
	Strava  StravaConfig  `mapstructure:"strava"`
	DataDir string        `mapstructure:"data_dir"`
	Sync    SyncConfig    `mapstructure:"sync"`
	Export  ExportConfig  `mapstructure:"export"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Log     LogConfig     `mapstructure:"log"`
}

// StravaConfig holds Strava API credentials
type StravaConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

// SyncConfig bounds one sync run
type SyncConfig struct {
	HistoryDays   int           `mapstructure:"history_days"`
	BackfillLimit int           `mapstructure:"backfill_limit"`
	ClassifyBatch int           `mapstructure:"classify_batch"`
	DetailDelay   time.Duration `mapstructure:"detail_delay"`
}

// ExportConfig controls the parquet snapshot. An empty path disables it.
type ExportConfig struct {
	ParquetPath string `mapstructure:"parquet_path"`
}

// MetricsConfig controls the Prometheus endpoint. An empty address disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultDir returns ~/.trainlog
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, dirName), nil
}

// DefaultPath returns ~/.trainlog/config.yaml
func DefaultPath() (string, error) {
	dir, err := DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configName+"."+configType), nil
}

// NewViper returns a viper instance with defaults and environment
// overrides configured. Callers may bind flags to it before Load.
func NewViper() *viper.Viper {
	v := viper.New()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("strava.client_id", "")
	v.SetDefault("strava.client_secret", "")
	v.SetDefault("data_dir", "")
	v.SetDefault("sync.history_days", DefaultHistoryDays)
	v.SetDefault("sync.backfill_limit", DefaultBackfillLimit)
	v.SetDefault("sync.classify_batch", DefaultClassifyBatch)
	v.SetDefault("sync.detail_delay", DefaultDetailDelay)
	v.SetDefault("metrics.addr", "")
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)
	return v
}

// Load reads .env, the config file and the environment. configFile may be
// empty, in which case ~/.trainlog/config.yaml is used when present.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	// A missing .env is fine
	_ = godotenv.Load()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		dir, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		v.SetConfigName(configName)
		v.SetConfigType(configType)
		v.AddConfigPath(dir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.DataDir == "" {
		dir, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		cfg.DataDir = dir
	}

	// Unset means the default location, an explicit empty value disables export
	if v.IsSet("export.parquet_path") {
		cfg.Export.ParquetPath = v.GetString("export.parquet_path")
	} else {
		cfg.Export.ParquetPath = filepath.Join(cfg.DataDir, parquetFile)
	}

	return &cfg, nil
}

// Validate checks the non-credential settings
func (c *Config) Validate() error {
	if c.Sync.HistoryDays <= 0 {
		return fmt.Errorf("sync.history_days must be positive, got %d", c.Sync.HistoryDays)
	}
	if c.Sync.BackfillLimit <= 0 {
		return fmt.Errorf("sync.backfill_limit must be positive, got %d", c.Sync.BackfillLimit)
	}
	if c.Sync.ClassifyBatch <= 0 {
		return fmt.Errorf("sync.classify_batch must be positive, got %d", c.Sync.ClassifyBatch)
	}
	if c.Sync.DetailDelay < 0 {
		return fmt.Errorf("sync.detail_delay must not be negative, got %s", c.Sync.DetailDelay)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be \"text\" or \"json\", got %q", c.Log.Format)
	}

	return nil
}

// ValidateCredentials checks that Strava API credentials are configured
func (c *Config) ValidateCredentials() error {
	if c.Strava.ClientID == "" || c.Strava.ClientID == placeholderClientID {
		return errors.New("strava.client_id is required - get it from https://www.strava.com/settings/api")
	}
	if c.Strava.ClientSecret == "" || c.Strava.ClientSecret == placeholderClientSecret {
		return errors.New("strava.client_secret is required - get it from https://www.strava.com/settings/api")
	}
	return nil
}

const exampleConfig = `# trainlog configuration
# Environment variables override these, e.g. TRAINLOG_STRAVA_CLIENT_ID.

strava:
  # Create an API application at https://www.strava.com/settings/api
  client_id: ` + placeholderClientID + `
  client_secret: ` + placeholderClientSecret + `

# Where the database and exports live (default ~/.trainlog)
# data_dir: /path/to/data

sync:
  history_days: 180     # first sync window
  backfill_limit: 100   # older activities fetched per run
  classify_batch: 200   # pending activities classified per run
  detail_delay: 1s      # pause between detail requests

export:
  # parquet_path: /path/to/activities.parquet  (empty string disables)

metrics:
  addr: ""              # e.g. "127.0.0.1:9464"

log:
  level: info
  format: text
`

// CreateExample writes an example config file to path if none exists.
// Returns true when a file was written.
func CreateExample(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(exampleConfig), 0600); err != nil {
		return false, fmt.Errorf("writing config file: %w", err)
	}
	return true, nil
}
