package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Dataset   DatasetConfig   `yaml:"dataset"`
	Snapshots SnapshotsConfig `yaml:"snapshots"`
	Advisory  AdvisoryConfig  `yaml:"advisory"`
	Logging   LoggingConfig   `yaml:"logging"`

	// ViewsPath points at a YAML/JSON file with view definitions. Empty or
	// unreadable means the built-in views.
	ViewsPath string `yaml:"views_path"`
}

type ServerConfig struct {
	Address         string   `yaml:"address"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
	ShutdownTimeout string   `yaml:"shutdown_timeout"`
}

type DatasetConfig struct {
	Source       string `yaml:"source"` // file path or http(s) URL
	Delimiter    string `yaml:"delimiter"`
	FetchTimeout string `yaml:"fetch_timeout"`
}

type SnapshotsConfig struct {
	DatabasePath string `yaml:"database_path"`
	DefaultKey   string `yaml:"default_key"`
}

type AdvisoryConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`
}

type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8080",
			AllowedOrigins:  []string{"*"},
			ShutdownTimeout: "10s",
		},
		Dataset: DatasetConfig{
			Source:       "data/building_data_clustered.csv",
			Delimiter:    ",",
			FetchTimeout: "30s",
		},
		Snapshots: SnapshotsConfig{
			DatabasePath: "data/snapshots.db",
			DefaultKey:   "buildingFilters",
		},
		Advisory: AdvisoryConfig{
			BaseURL: "http://localhost:5000",
			Timeout: "15s",
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads path over the defaults and applies environment overrides. A
// missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read config file: %w", err)
		default:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("unmarshal config: %w", err)
			}
		}
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	c.Server.Address = getEnv("API_ADDRESS", c.Server.Address)
	c.Dataset.Source = getEnv("DATASET_SOURCE", c.Dataset.Source)
	c.Snapshots.DatabasePath = getEnv("SNAPSHOT_DB_PATH", c.Snapshots.DatabasePath)
	c.Advisory.BaseURL = getEnv("ADVISORY_BASE_URL", c.Advisory.BaseURL)
	c.ViewsPath = getEnv("VIEWS_PATH", c.ViewsPath)
	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Duration parses a config duration, falling back to def when empty or invalid.
func Duration(v string, def time.Duration) time.Duration {
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
