// Package config loads the service configuration for the quizmeet binary.
//
// Values come from three layers, later ones winning: built-in defaults, an
// optional YAML file, then environment variables (a .env file in the
// working directory is loaded first).
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/koustreak/quizmeet/internal/database"
	"github.com/koustreak/quizmeet/internal/errs"
	"github.com/koustreak/quizmeet/internal/logger"
	"go.yaml.in/yaml/v3"
)

// Config is the process configuration.
type Config struct {
	HTTP     HTTP     `yaml:"http"`
	Log      Log      `yaml:"log"`
	Database Database `yaml:"database"`
}

type HTTP struct {
	Addr            string        `yaml:"addr" env:"QUIZMEET_HTTP_ADDR"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"QUIZMEET_SHUTDOWN_TIMEOUT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"QUIZMEET_READ_TIMEOUT"`
}

type Log struct {
	Level  string `yaml:"level" env:"QUIZMEET_LOG_LEVEL"`
	Format string `yaml:"format" env:"QUIZMEET_LOG_FORMAT"`
}

// Database names where the connection URL lives; the URL itself is never
// stored in the file.
type Database struct {
	URLVar string `yaml:"url_var" env:"QUIZMEET_DB_URL_VAR"`
	Mode   string `yaml:"mode" env:"QUIZMEET_DB_MODE"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		HTTP: HTTP{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
			ReadTimeout:     15 * time.Second,
		},
		Log: Log{
			Level:  "info",
			Format: "json",
		},
		Database: Database{
			URLVar: "DATABASE_URL",
			Mode:   database.ModeConcurrent.String(),
		},
	}
}

// Load builds the configuration. path may be empty; a named file that
// does not exist is an error.
func Load(path string) (*Config, error) {
	// the .env file is optional
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, errs.Wrap(errs.ErrKindConfigMissing, fmt.Sprintf("cannot open config file %s", path), err)
		}
		defer f.Close()

		if err := cfg.decode(f); err != nil {
			return nil, err
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "invalid configuration in environment", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return errs.Wrap(errs.ErrKindInvalidInput, "failed to decode YAML config", err)
	}
	return nil
}

// Validate checks values that would otherwise fail much later.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		return errs.New(errs.ErrKindInvalidInput, "http.addr must not be empty")
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		return errs.New(errs.ErrKindInvalidInput, "http.shutdown_timeout must be positive")
	}
	if strings.TrimSpace(c.Database.URLVar) == "" {
		return errs.New(errs.ErrKindInvalidInput, "database.url_var must not be empty")
	}
	if _, err := database.ParseMode(c.Database.Mode); err != nil {
		return err
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return errs.New(errs.ErrKindInvalidInput, fmt.Sprintf("unknown log format %q", c.Log.Format))
	}
	return nil
}

// PoolMode returns the parsed database.mode. Validate has already
// rejected unknown values.
func (c *Config) PoolMode() database.Mode {
	m, _ := database.ParseMode(c.Database.Mode)
	return m
}

// Logger builds the process logger from the log section.
func (c *Config) Logger(out io.Writer) *logger.Logger {
	return logger.New(&logger.Config{
		Level:      c.Log.Level,
		Format:     c.Log.Format,
		TimeFormat: "rfc3339",
		Output:     out,
	})
}
