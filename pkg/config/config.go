// Package config reads and writes glacia.yaml.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultFile is looked up in the working directory when no path is given.
const DefaultFile = "glacia.yaml"

type Config struct {
	Store StoreConfig `yaml:"store"`
	Run   RunConfig   `yaml:"run"`
	Log   LogConfig   `yaml:"log"`
}

type StoreConfig struct {
	Backend string `yaml:"backend"` // memory, snapshot or bolt
	Path    string `yaml:"path,omitempty"`
}

type RunConfig struct {
	Lines   int  `yaml:"lines"` // -1 runs to completion, 0 only loads
	Verbose bool `yaml:"verbose"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

func Default() *Config {
	return &Config{
		Store: StoreConfig{Backend: "memory"},
		Run:   RunConfig{Lines: -1},
		Log:   LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "memory":
	case "snapshot", "bolt":
		if c.Store.Path == "" {
			return fmt.Errorf("store backend %s needs a path", c.Store.Backend)
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Run.Lines < -1 {
		return fmt.Errorf("run.lines must be -1 or more, got %d", c.Run.Lines)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

// Level maps the configured level name onto slog. Verbose forces debug.
func (c *Config) Level() (slog.Level, error) {
	if c.Run.Verbose {
		return slog.LevelDebug, nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	return l, nil
}

// Logger builds the stderr logger the entry points use.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, err := c.Level()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Save writes the configuration to path.
func Save(path string, c *Config) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
