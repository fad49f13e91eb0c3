// Package config loads runtime configuration from a YAML file and
// environment variables. Priority: ENV > YAML > defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Catalog CatalogConfig `yaml:"catalog"`
	Notify  NotifyConfig  `yaml:"notify"`
	Sync    SyncConfig    `yaml:"sync"`
	Log     LogConfig     `yaml:"log"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"             env:"BOSSWATCH_ADDR"             env-default:":8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"BOSSWATCH_READ_TIMEOUT"     env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"BOSSWATCH_WRITE_TIMEOUT"    env-default:"30s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"BOSSWATCH_SHUTDOWN_TIMEOUT" env-default:"10s"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"   env:"BOSSWATCH_MAX_BODY_BYTES"   env-default:"1048576"`
}

type StorageConfig struct {
	// Profile picks backend defaults: custom (DSN decides), memory,
	// production (Postgres, DSN required), durable-local (JSON file under
	// DataDir).
	Profile         string `yaml:"profile"          env:"BOSSWATCH_BACKEND_PROFILE" env-default:"durable-local"`
	StateDSN        string `yaml:"state_dsn"        env:"BOSSWATCH_STATE_DSN"`
	DataDir         string `yaml:"data_dir"         env:"BOSSWATCH_DATA_DIR"        env-default:".bosswatch"`
	PostgresDSN     string `yaml:"postgres_dsn"     env:"BOSSWATCH_POSTGRES_DSN"`
	PatrolRetention int    `yaml:"patrol_retention" env:"BOSSWATCH_PATROL_RETENTION" env-default:"500"`
}

type CatalogConfig struct {
	// Path points to a catalog YAML file; empty uses the embedded catalog.
	Path  string `yaml:"path"  env:"BOSSWATCH_CATALOG_PATH"`
	Watch bool   `yaml:"watch" env:"BOSSWATCH_CATALOG_WATCH" env-default:"false"`
}

type NotifyConfig struct {
	Workers   int `yaml:"workers"    env:"BOSSWATCH_NOTIFY_WORKERS"    env-default:"4"`
	QueueSize int `yaml:"queue_size" env:"BOSSWATCH_NOTIFY_QUEUE_SIZE" env-default:"64"`
}

type SyncConfig struct {
	// Endpoint seeds the sync target on first start; once the store has
	// persisted a sync config, that wins.
	Endpoint string `yaml:"endpoint" env:"BOSSWATCH_SYNC_ENDPOINT"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"BOSSWATCH_LOG_LEVEL" env-default:"info"`
	// Pretty switches to the human console writer instead of JSON.
	Pretty bool `yaml:"pretty" env:"BOSSWATCH_LOG_PRETTY" env-default:"false"`
}

// Load reads configuration from BOSSWATCH_CONFIG (fallback ./bosswatch.yaml)
// plus the environment. A missing default file is not an error.
func Load() (*Config, error) {
	var cfg Config

	path := os.Getenv("BOSSWATCH_CONFIG")
	explicitPath := path != ""
	if !explicitPath {
		path = "./bosswatch.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if explicitPath {
		return nil, fmt.Errorf("config: file %s: %w", path, err)
	} else {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("config: read env: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if _, err := c.StateBackendDSN(); err != nil {
		return err
	}
	if c.Notify.Workers <= 0 {
		return fmt.Errorf("notify workers must be positive, got %d", c.Notify.Workers)
	}
	if c.Storage.PatrolRetention <= 0 {
		return fmt.Errorf("patrol retention must be positive, got %d", c.Storage.PatrolRetention)
	}
	return nil
}

// StateBackendDSN resolves the effective state backend DSN. An explicit
// StateDSN always wins; otherwise the profile supplies a default.
func (c *Config) StateBackendDSN() (string, error) {
	if dsn := strings.TrimSpace(c.Storage.StateDSN); dsn != "" {
		return dsn, nil
	}
	dataDir := strings.TrimSpace(c.Storage.DataDir)
	if dataDir == "" {
		dataDir = ".bosswatch"
	}
	switch strings.ToLower(strings.TrimSpace(c.Storage.Profile)) {
	case "", "custom":
		return "", nil
	case "memory", "inmemory":
		return "memory://", nil
	case "production", "prod":
		dsn := strings.TrimSpace(c.Storage.PostgresDSN)
		if dsn == "" {
			return "", fmt.Errorf("BOSSWATCH_POSTGRES_DSN is required for the production profile")
		}
		return dsn, nil
	case "durable-local", "local-durable":
		return "file://" + filepath.Join(dataDir, "state.json"), nil
	default:
		return "", fmt.Errorf("unsupported storage profile: %s", c.Storage.Profile)
	}
}
