package database

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/koustreak/quizmeet/internal/errs"
)

// Mode selects how many connections a pool may hand out at once.
type Mode int

const (
	// ModeConcurrent is the service mode: many callers share the pool.
	ModeConcurrent Mode = iota

	// ModeSerialized pins the pool to a single connection so writers run
	// one after another. Used for deterministic test scenarios and
	// deployment steps such as migrations.
	ModeSerialized
)

func (m Mode) String() string {
	if m == ModeSerialized {
		return "serialized"
	}
	return "concurrent"
}

// ParseMode maps "serialized" / "concurrent" (case-insensitive) to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "concurrent":
		return ModeConcurrent, nil
	case "serialized", "single":
		return ModeSerialized, nil
	default:
		return ModeConcurrent, errs.New(errs.ErrKindInvalidInput, fmt.Sprintf("unknown pool mode %q", s))
	}
}

const (
	DefaultMaxConns        = 10
	DefaultAcquireTimeout  = 5 * time.Second
	DefaultConnectTimeout  = 5 * time.Second
	DefaultHealthCheckIdle = time.Minute
)

// Config holds everything needed to build a pool. NewPool copies it, so
// changing a Config after construction has no effect on the pool.
type Config struct {
	// DSN is the connection URL. The scheme selects the driver:
	// "postgres://" / "postgresql://" or "mysql://".
	DSN string

	Mode Mode

	// MaxConns caps the connections checked out at once. Forced to 1 in
	// ModeSerialized.
	MaxConns int32

	// AcquireTimeout bounds how long Acquire waits for a free connection.
	AcquireTimeout time.Duration

	// ConnectTimeout bounds the dial of a single new connection.
	ConnectTimeout time.Duration

	// HealthCheckIdle is how long a connection may sit idle before it is
	// pinged on checkout.
	HealthCheckIdle time.Duration
}

// DefaultConfig returns the concurrent-mode settings for dsn.
func DefaultConfig(dsn string) *Config {
	return &Config{
		DSN:             dsn,
		Mode:            ModeConcurrent,
		MaxConns:        DefaultMaxConns,
		AcquireTimeout:  DefaultAcquireTimeout,
		ConnectTimeout:  DefaultConnectTimeout,
		HealthCheckIdle: DefaultHealthCheckIdle,
	}
}

// SerializedConfig returns single-connection settings for dsn.
func SerializedConfig(dsn string) *Config {
	cfg := DefaultConfig(dsn)
	cfg.Mode = ModeSerialized
	cfg.MaxConns = 1
	return cfg
}

// Validate rejects settings no pool can be built from.
func (c Config) Validate() error {
	if strings.TrimSpace(c.DSN) == "" {
		return errs.New(errs.ErrKindPoolConstruction, "empty connection URL")
	}
	if c.MaxConns < 1 {
		return errs.New(errs.ErrKindPoolConstruction, fmt.Sprintf("max connections must be >= 1, got %d", c.MaxConns))
	}
	if c.Mode == ModeSerialized && c.MaxConns != 1 {
		return errs.New(errs.ErrKindPoolConstruction, fmt.Sprintf("serialized mode requires exactly 1 connection, got %d", c.MaxConns))
	}
	if c.AcquireTimeout <= 0 {
		return errs.New(errs.ErrKindPoolConstruction, "acquire timeout must be positive")
	}
	return nil
}

// Scheme returns the lower-cased URL scheme of the DSN, or "" when absent.
func (c Config) Scheme() string {
	i := strings.Index(c.DSN, "://")
	if i <= 0 {
		return ""
	}
	return strings.ToLower(c.DSN[:i])
}

// tuning is the pool tuning read from the environment.
type tuning struct {
	MaxConns        int32         `env:"DB_MAX_CONNS" envDefault:"10"`
	AcquireTimeout  time.Duration `env:"DB_ACQUIRE_TIMEOUT" envDefault:"5s"`
	ConnectTimeout  time.Duration `env:"DB_CONNECT_TIMEOUT" envDefault:"5s"`
	HealthCheckIdle time.Duration `env:"DB_HEALTHCHECK_IDLE" envDefault:"1m"`
}

var dotenvOnce sync.Once

// FromEnv builds a Config from the environment variable named urlVar and
// the DB_* tuning variables. A .env file in the working directory is
// loaded first when present. A missing urlVar is a ConfigMissing error
// naming the variable.
func FromEnv(urlVar string, mode Mode) (*Config, error) {
	dotenvOnce.Do(func() {
		// the .env file is optional
		_ = godotenv.Load()
	})

	dsn, ok := os.LookupEnv(urlVar)
	if !ok || strings.TrimSpace(dsn) == "" {
		return nil, errs.New(errs.ErrKindConfigMissing, fmt.Sprintf("%s environment variable expected", urlVar))
	}

	var t tuning
	if err := env.Parse(&t); err != nil {
		return nil, errs.Wrap(errs.ErrKindPoolConstruction, "invalid pool tuning", err)
	}

	cfg := &Config{
		DSN:             dsn,
		Mode:            mode,
		MaxConns:        t.MaxConns,
		AcquireTimeout:  t.AcquireTimeout,
		ConnectTimeout:  t.ConnectTimeout,
		HealthCheckIdle: t.HealthCheckIdle,
	}
	if mode == ModeSerialized {
		cfg.MaxConns = 1
	}
	return cfg, nil
}
