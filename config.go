package articlestore

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type ConfOption func(*Config)

// Config is the configuration for a Store instance.
type Config struct {
	DatabasePath  string `yaml:"database_path"`
	BodiesDir     string `yaml:"bodies_dir"`
	TableCapacity int    `yaml:"table_capacity"`
	SyncWrites    bool   `yaml:"sync_writes"`

	Logger *slog.Logger `yaml:"-"`
}

const (
	// DefaultDatabasePath is the default flat database file.
	DefaultDatabasePath = "articulos_db.txt"
	// DefaultBodiesDir is the default directory for article bodies.
	DefaultBodiesDir = "articulos"
)

// DatabasePath sets the flat database file.
func DatabasePath(path string) ConfOption {
	return func(c *Config) {
		c.DatabasePath = path
	}
}

// BodiesDir sets the directory holding article bodies.
func BodiesDir(dir string) ConfOption {
	return func(c *Config) {
		c.BodiesDir = dir
	}
}

// TableCapacity sets the bucket count of the primary index.
func TableCapacity(capacity int) ConfOption {
	return func(c *Config) {
		c.TableCapacity = capacity
	}
}

// SyncWrites sets whether to fsync body and database writes.
func SyncWrites(sync bool) ConfOption {
	return func(c *Config) {
		c.SyncWrites = sync
	}
}

// WithLogger sets the logger. The default logger discards everything.
func WithLogger(logger *slog.Logger) ConfOption {
	return func(c *Config) {
		c.Logger = logger
	}
}

// FromConfig copies every field of other, for use with LoadConfig.
func FromConfig(other *Config) ConfOption {
	return func(c *Config) {
		logger := c.Logger
		*c = *other
		if c.Logger == nil {
			c.Logger = logger
		}
	}
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		DatabasePath:  DefaultDatabasePath,
		BodiesDir:     DefaultBodiesDir,
		TableCapacity: DefaultTableCapacity,
		SyncWrites:    false,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// Normalize replaces empty or out-of-range values with defaults.
func (c *Config) Normalize() {
	d := DefaultConfig()
	if c.DatabasePath == "" {
		c.DatabasePath = d.DatabasePath
	}
	if c.BodiesDir == "" {
		c.BodiesDir = d.BodiesDir
	}
	if c.TableCapacity <= 0 {
		c.TableCapacity = d.TableCapacity
	}
	if c.Logger == nil {
		c.Logger = d.Logger
	}
}

// Validate rejects layouts the store cannot manage safely. The bodies
// directory must not be the directory holding the database file, or body
// maintenance could touch the database and its neighbours.
func (c *Config) Validate() error {
	bodies, err := filepath.Abs(c.BodiesDir)
	if err != nil {
		return fmt.Errorf("%w: bodies_dir: %w", ErrInvalidConfig, err)
	}
	db, err := filepath.Abs(c.DatabasePath)
	if err != nil {
		return fmt.Errorf("%w: database_path: %w", ErrInvalidConfig, err)
	}
	if bodies == filepath.Dir(db) {
		return fmt.Errorf("%w: bodies_dir %s must differ from the database directory", ErrInvalidConfig, c.BodiesDir)
	}
	if bodies == db {
		return fmt.Errorf("%w: bodies_dir %s is the database file", ErrInvalidConfig, c.BodiesDir)
	}
	return nil
}

// LoadConfig reads a YAML configuration file. Fields missing from the file
// keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	c := DefaultConfig()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	c.Normalize()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return c, nil
}
