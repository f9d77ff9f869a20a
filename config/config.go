// Package config loads the YAML job configuration of the rbnc command
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/neurlang/rbnc/stats"
	"github.com/neurlang/rbnc/store"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config is one counting job
type Config struct {
	// Schema is the YAML schema file
	Schema string `yaml:"schema" validate:"required"`

	// Structures is the binary structure file
	Structures string `yaml:"structures" validate:"required"`

	// Inputs are the record files, one partition each
	Inputs []string `yaml:"inputs" validate:"required,min=1,dive,required"`

	// Output is the table file written after the merge
	Output string `yaml:"output" validate:"required"`

	// Workers limits concurrent partitions, zero means one per core
	Workers int `yaml:"workers" validate:"gte=0"`

	Compression  string `yaml:"compression" validate:"oneof=none snappy zstd"`
	SplitPattern string `yaml:"split_pattern"`

	// Strict fails partitions that contain invalid records
	Strict bool `yaml:"strict"`

	Store Store `yaml:"store"`
	Log   Log   `yaml:"log"`
}

// Store configures the optional shuffle store
type Store struct {
	Enabled  bool   `yaml:"enabled"`
	Path     string `yaml:"path" validate:"required_if=Enabled true InMemory false"`
	InMemory bool   `yaml:"in_memory"`
	Keep     bool   `yaml:"keep"`
}

// Log configures logging
type Log struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// Default gets the configuration every loaded file starts from
func Default() Config {
	return Config{
		Compression: stats.Zstd.String(),
		Log:         Log{Level: "info", Format: "text"},
	}
}

// Load reads and validates a configuration file. Relative paths in the file
// are relative to the directory of the file.
func Load(name string) (Config, error) {
	var cfg = Default()
	data, err := os.ReadFile(name)
	if err != nil {
		return cfg, fmt.Errorf("failed to read the config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", name, err)
	}
	cfg.resolve(filepath.Dir(name))
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", name, err)
	}
	return cfg, nil
}

// Write stores the configuration as YAML
func Write(name string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(name, data, 0644)
}

func (c *Config) resolve(dir string) {
	var abs = func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	c.Schema = abs(c.Schema)
	c.Structures = abs(c.Structures)
	c.Output = abs(c.Output)
	for i := range c.Inputs {
		c.Inputs[i] = abs(c.Inputs[i])
	}
	c.Store.Path = abs(c.Store.Path)
}

// Validate checks field constraints
func (c Config) Validate() error {
	return validate.Struct(c)
}

// Validate checks the field constraints of any section, such as a Log
// assembled from command line flags.
func Validate(section any) error {
	return validate.Struct(section)
}

// CompressionKind gets the table file compression
func (c Config) CompressionKind() (stats.Compression, error) {
	return stats.ParseCompression(c.Compression)
}

// StoreConfig converts the store section, logging badger internals to logger
func (s Store) StoreConfig(logger *slog.Logger) store.Config {
	if s.InMemory {
		cfg := store.InMemoryConfig()
		cfg.Logger = logger
		return cfg
	}
	cfg := store.DefaultConfig(s.Path)
	cfg.Logger = logger
	return cfg
}

// Handler builds the slog handler writing to w
func (l Log) Handler(w io.Writer) slog.Handler {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(l.Level))); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}
