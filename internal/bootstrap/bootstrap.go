// Package bootstrap turns configuration into a ready connection pool.
//
// Configured mode (Open) reads a connection URL from the environment and
// builds a pool without touching the database; schema changes are a
// separate deployment step. Ephemeral mode (NewEphemeral) provisions a
// throwaway database, waits for it to accept connections and migrates it.
package bootstrap

import (
	"fmt"

	"github.com/koustreak/quizmeet/internal/database"
	"github.com/koustreak/quizmeet/internal/database/mysql"
	"github.com/koustreak/quizmeet/internal/database/postgres"
	"github.com/koustreak/quizmeet/internal/errs"
	"github.com/koustreak/quizmeet/internal/logger"
)

// DialerFactory builds the dialer for a pool configuration.
type DialerFactory func(cfg database.Config) (database.Dialer, error)

// Option customises Open and NewEphemeral.
type Option func(*options)

type options struct {
	log         *logger.Logger
	dialers     DialerFactory
	poolOptions []database.PoolOption
}

func newOptions(opts []Option) *options {
	o := &options{log: logger.Nop(), dialers: DialerFor}
	for _, opt := range opts {
		opt(o)
	}
	o.poolOptions = append(o.poolOptions, database.WithLogger(o.log))
	return o
}

// WithLogger routes bootstrap and pool diagnostics to l.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithDialerFactory replaces scheme-based driver selection.
func WithDialerFactory(f DialerFactory) Option {
	return func(o *options) {
		if f != nil {
			o.dialers = f
		}
	}
}

// DialerFor picks a driver from the URL scheme.
func DialerFor(cfg database.Config) (database.Dialer, error) {
	switch cfg.Scheme() {
	case "postgres", "postgresql":
		return postgres.NewDialer(cfg)
	case "mysql":
		return mysql.NewDialer(cfg)
	default:
		return nil, errs.New(errs.ErrKindPoolConstruction,
			fmt.Sprintf("unsupported connection URL scheme %q", cfg.Scheme()))
	}
}

// DialectFor reports the SQL dialect a configuration will speak.
func DialectFor(cfg database.Config) database.Dialect {
	if cfg.Scheme() == "mysql" {
		return database.DialectMySQL
	}
	return database.DialectPostgres
}

// Open builds a pool from the connection URL held in the environment
// variable urlVar. Nothing is dialled until the first acquire. A missing
// variable is ErrKindConfigMissing; a malformed URL or bad tuning is
// ErrKindPoolConstruction.
func Open(urlVar string, mode database.Mode, opts ...Option) (*database.Pool, error) {
	o := newOptions(opts)

	cfg, err := database.FromEnv(urlVar, mode)
	if err != nil {
		return nil, err
	}

	pool, err := o.build(*cfg)
	if err != nil {
		return nil, err
	}

	o.log.With().
		Str("env", urlVar).
		Str("mode", mode.String()).
		Int("max_conns", int(cfg.MaxConns)).
		Logger().
		Info("database pool configured")
	return pool, nil
}

// MustOpen is Open for process startup: any failure is logged and the
// process exits.
func MustOpen(urlVar string, mode database.Mode, opts ...Option) *database.Pool {
	pool, err := Open(urlVar, mode, opts...)
	if err != nil {
		o := newOptions(opts)
		o.log.With().Err(err).Str("kind", errs.KindOf(err).String()).Logger().
			Fatal("cannot configure database pool")
	}
	return pool
}

func (o *options) build(cfg database.Config) (*database.Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dialer, err := o.dialers(cfg)
	if err != nil {
		return nil, err
	}
	return database.NewPool(cfg, dialer, o.poolOptions...)
}
