package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rhasspy/rhasspy-speakers-cli-hermes/domain"
)

// Config is the adapter configuration. Values come from defaults, then the
// YAML file, then the environment, then command-line flags.
type Config struct {
	Audio   AudioConfig   `yaml:"audio"`
	Server  ServerConfig  `yaml:"server"`
	MongoDB MongoDBConfig `yaml:"mongodb"`
	History HistoryConfig `yaml:"history"`
	Log     LogConfig     `yaml:"log"`
}

type AudioConfig struct {
	PlayCommand string        `yaml:"play_command"`
	ListCommand string        `yaml:"list_command"`
	SiteIDs     []string      `yaml:"site_ids"`
	Volume      float64       `yaml:"volume"`
	PlayTimeout time.Duration `yaml:"play_timeout"`
}

type ServerConfig struct {
	HTTPAddr  string `yaml:"http_addr"`
	JWTSecret string `yaml:"jwt_secret"`
	QueueSize int    `yaml:"queue_size"`
}

type MongoDBConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

type HistoryConfig struct {
	// MaxRecords bounds the in-memory history
	MaxRecords      int           `yaml:"max_records"`
	Retention       time.Duration `yaml:"retention"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Audio: AudioConfig{
			Volume: 1.0,
		},
		Server: ServerConfig{
			HTTPAddr:  ":12333",
			QueueSize: 64,
		},
		MongoDB: MongoDBConfig{
			Database: "rhasspy_speakers",
		},
		History: HistoryConfig{
			MaxRecords:      1000,
			Retention:       7 * 24 * time.Hour,
			CleanupInterval: time.Hour,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from a .env file, the optional YAML file at
// path and the environment. A missing .env file is ignored.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: loading .env: %v", domain.ErrConfiguration, err)
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: reading config file: %v", domain.ErrConfiguration, err)
		}

		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("%w: parsing config: %v", domain.ErrConfiguration, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("SPEAKERS_PLAY_COMMAND"); v != "" {
		c.Audio.PlayCommand = v
	}
	if v := os.Getenv("SPEAKERS_LIST_COMMAND"); v != "" {
		c.Audio.ListCommand = v
	}
	if v := os.Getenv("SPEAKERS_SITE_IDS"); v != "" {
		c.Audio.SiteIDs = splitList(v)
	}
	if v := os.Getenv("SPEAKERS_VOLUME"); v != "" {
		volume, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: SPEAKERS_VOLUME: %v", domain.ErrConfiguration, err)
		}
		c.Audio.Volume = volume
	}
	if v := os.Getenv("SPEAKERS_PLAY_TIMEOUT"); v != "" {
		timeout, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: SPEAKERS_PLAY_TIMEOUT: %v", domain.ErrConfiguration, err)
		}
		c.Audio.PlayTimeout = timeout
	}
	if v := os.Getenv("SPEAKERS_HTTP_ADDR"); v != "" {
		c.Server.HTTPAddr = v
	}
	if v := os.Getenv("SPEAKERS_JWT_SECRET"); v != "" {
		c.Server.JWTSecret = v
	}
	if v := os.Getenv("MONGODB_URI"); v != "" {
		c.MongoDB.URI = v
	}
	if v := os.Getenv("MONGODB_DATABASE"); v != "" {
		c.MongoDB.Database = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	return nil
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Audio.PlayCommand) == "" {
		return fmt.Errorf("%w: play command is required", domain.ErrConfiguration)
	}
	if c.Audio.Volume < 0 {
		return fmt.Errorf("%w: volume must not be negative", domain.ErrConfiguration)
	}
	if c.Audio.PlayTimeout < 0 {
		return fmt.Errorf("%w: play timeout must not be negative", domain.ErrConfiguration)
	}
	if c.Server.QueueSize <= 0 {
		return fmt.Errorf("%w: queue size must be positive", domain.ErrConfiguration)
	}
	if c.History.Retention > 0 && c.History.CleanupInterval <= 0 {
		return fmt.Errorf("%w: history cleanup interval must be positive", domain.ErrConfiguration)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("%w: unknown log format %q", domain.ErrConfiguration, c.Log.Format)
	}
	return nil
}

func splitList(v string) []string {
	var items []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
