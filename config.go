package ouroboros

import (
	"fmt"

	"github.com/i5heu/ouroboros-objects/internal/config"
	"github.com/i5heu/ouroboros-objects/pkg/schema"
	"github.com/sirupsen/logrus"
)

const (
	BackendMemory = "memory"
	BackendBadger = "badger"
	BackendBolt   = "bolt"
)

type StoreConfig struct {
	// Backend is one of memory, badger or bolt.
	Backend string `yaml:"backend" toml:"backend"`
	// Path is the data directory for badger and the database file for bolt.
	Path string `yaml:"path" toml:"path"`
	// MinimumFreeGB makes the badger store refuse to open on a fuller disk.
	MinimumFreeGB int  `yaml:"minimum_free_gb" toml:"minimum_free_gb"`
	Compress      bool `yaml:"compress" toml:"compress"`
	NoSync        bool `yaml:"no_sync" toml:"no_sync"`
}

// Config configures an ObjectDB. Files loaded with LoadConfig fill the tagged
// fields; Logger and Registry can only be set in code.
type Config struct {
	Store    StoreConfig `yaml:"store" toml:"store"`
	LogLevel string      `yaml:"log_level" toml:"log_level"`
	// SchemaFiles are binary FileDescriptorSet files registered at open.
	SchemaFiles []string `yaml:"schema_files" toml:"schema_files"`
	// Workers sizes the pool used for flushing and verification. Zero picks
	// a default based on the CPU count.
	Workers int `yaml:"workers" toml:"workers"`

	Logger   *logrus.Logger   `yaml:"-" toml:"-"`
	Registry *schema.Registry `yaml:"-" toml:"-"`
}

// LoadConfig reads a YAML or TOML file and fills in defaults.
func LoadConfig(path string) (Config, error) {
	var conf Config
	if err := config.Load(path, &conf); err != nil {
		return Config{}, err
	}
	conf.applyDefaults()
	if err := conf.validate(); err != nil {
		return Config{}, err
	}
	return conf, nil
}

func (c *Config) applyDefaults() {
	if c.Store.Backend == "" {
		c.Store.Backend = BackendMemory
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case BackendMemory:
	case BackendBadger, BackendBolt:
		if c.Store.Path == "" {
			return fmt.Errorf("config: store backend %s needs a path", c.Store.Backend)
		}
	default:
		return fmt.Errorf("config: unknown store backend %q", c.Store.Backend)
	}
	if c.Workers < 0 {
		return fmt.Errorf("config: workers must not be negative")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
