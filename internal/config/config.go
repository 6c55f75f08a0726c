// Package config loads the .formsync.yaml settings shared by the CLI
// commands.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfig names the environment variable that points at a config file.
const EnvConfig = "FORMSYNC_CONFIG"

// Store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverDynamo = "dynamo"
	DriverRemote = "remote"
)

// DefaultConfigNames are the filenames searched for, nearest directory first.
var DefaultConfigNames = []string{".formsync.yaml", ".formsync.yml", "formsync.yaml"}

var (
	ErrConfigNotFound = errors.New("config: no config file found")
	ErrInvalid        = errors.New("config: invalid configuration")
)

// Config represents the .formsync.yaml configuration file.
type Config struct {
	Store  StoreConfig  `yaml:"store"`
	Sync   SyncConfig   `yaml:"sync"`
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`

	// Path is the file the config was read from, empty for defaults.
	Path string `yaml:"-"`
}

// StoreConfig selects and configures the document store.
type StoreConfig struct {
	Driver string `yaml:"driver"`
	// DSN is the sqlite data source name.
	DSN string `yaml:"dsn,omitempty"`
	// URL is the base URL of a remote store server.
	URL string `yaml:"url,omitempty"`

	Table        string        `yaml:"table,omitempty"`
	Region       string        `yaml:"region,omitempty"`
	Endpoint     string        `yaml:"endpoint,omitempty"`
	PollInterval time.Duration `yaml:"pollInterval,omitempty"`
}

// SyncConfig holds document sync defaults.
type SyncConfig struct {
	Collection      string        `yaml:"collection,omitempty"`
	AutoSaveDelay   time.Duration `yaml:"autoSaveDelay,omitempty"`
	IncludeMetadata *bool         `yaml:"includeMetadata,omitempty"`
	User            string        `yaml:"user,omitempty"`
	// Sanitize strips markup from string values before they are saved.
	Sanitize bool `yaml:"sanitize,omitempty"`
}

// Metadata reports whether writes are stamped with _metadata.
func (s SyncConfig) Metadata() bool {
	return s.IncludeMetadata == nil || *s.IncludeMetadata
}

// ServerConfig configures the remote store server.
type ServerConfig struct {
	Addr           string   `yaml:"addr,omitempty"`
	MaxBody        int64    `yaml:"maxBody,omitempty"`
	OriginPatterns []string `yaml:"originPatterns,omitempty"`
}

// LogConfig configures the CLI logger.
type LogConfig struct {
	Level       string `yaml:"level,omitempty"`
	Development bool   `yaml:"development,omitempty"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Store.Driver == "" {
		c.Store.Driver = DriverMemory
	}
	c.Store.Driver = strings.ToLower(c.Store.Driver)
	if c.Store.Driver == DriverSQLite && c.Store.DSN == "" {
		c.Store.DSN = "formsync.db"
	}
	if c.Store.Driver == DriverDynamo && c.Store.Table == "" {
		c.Store.Table = "formsync"
	}
	if c.Sync.AutoSaveDelay == 0 {
		c.Sync.AutoSaveDelay = time.Second
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks driver specific requirements.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory, DriverSQLite:
	case DriverDynamo:
		if c.Store.Region == "" && c.Store.Endpoint == "" {
			return fmt.Errorf("%w: dynamo store needs a region or endpoint", ErrInvalid)
		}
	case DriverRemote:
		if c.Store.URL == "" {
			return fmt.Errorf("%w: remote store needs a url", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown store driver %q", ErrInvalid, c.Store.Driver)
	}
	if c.Sync.AutoSaveDelay < 0 {
		return fmt.Errorf("%w: autoSaveDelay must not be negative", ErrInvalid)
	}
	return nil
}

// Load resolves the config file in this order: explicit path, the
// FORMSYNC_CONFIG variable, then the nearest default file walking up from dir.
// Without any file the defaults are returned.
func Load(path, dir string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path == "" {
		found, err := FindConfig(dir)
		switch {
		case errors.Is(err, ErrConfigNotFound):
			return Default(), nil
		case err != nil:
			return nil, err
		}
		path = found
	}
	return LoadFile(path)
}

// FindConfig searches for a config file starting from dir and walking up.
func FindConfig(dir string) (string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	for dir := absDir; ; {
		for _, name := range DefaultConfigNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrConfigNotFound
		}
		dir = parent
	}
}

// LoadFile reads, defaults and validates a config from path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	cfg.Path = path
	return cfg, nil
}

// Parse decodes YAML config data, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
