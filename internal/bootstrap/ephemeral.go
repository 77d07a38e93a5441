package bootstrap

import (
	"context"
	"sync"
	"time"

	"github.com/koustreak/quizmeet/internal/database"
	"github.com/koustreak/quizmeet/internal/errs"
	"github.com/koustreak/quizmeet/internal/logger"
	"github.com/koustreak/quizmeet/internal/migrate"
)

const (
	// EphemeralPoolSize is the pool size used against a provisioned database.
	EphemeralPoolSize = 10

	teardownTimeout = 30 * time.Second
)

// Teardown destroys a provisioned database.
type Teardown func(ctx context.Context) error

// Provisioner creates an isolated database and reports how to reach it.
type Provisioner interface {
	Provision(ctx context.Context) (url string, teardown Teardown, err error)
}

// ProvisionerFunc adapts a function to the Provisioner interface.
type ProvisionerFunc func(ctx context.Context) (string, Teardown, error)

func (f ProvisionerFunc) Provision(ctx context.Context) (string, Teardown, error) { return f(ctx) }

// EphemeralDatabase is a provisioned database shared by reference count.
// The provisioner's teardown runs when the last holder releases it.
type EphemeralDatabase struct {
	url      string
	teardown Teardown
	log      *logger.Logger

	mu   sync.Mutex
	refs int
	gone bool
}

func newEphemeralDatabase(url string, teardown Teardown, log *logger.Logger) *EphemeralDatabase {
	return &EphemeralDatabase{url: url, teardown: teardown, log: log, refs: 1}
}

// URL is the connection URL of the database.
func (d *EphemeralDatabase) URL() string {
	return d.url
}

// Retain adds a holder. It fails once the database has been torn down.
func (d *EphemeralDatabase) Retain() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gone {
		return errs.New(errs.ErrKindConnectionFailed, "ephemeral database already torn down")
	}
	d.refs++
	return nil
}

// Release drops a holder; the last release tears the database down and
// returns the teardown error. Releasing a torn down database is a no-op.
func (d *EphemeralDatabase) Release() error {
	d.mu.Lock()
	if d.gone {
		d.mu.Unlock()
		return nil
	}
	d.refs--
	if d.refs > 0 {
		d.mu.Unlock()
		return nil
	}
	d.gone = true
	d.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()

	var err error
	if d.teardown != nil {
		err = d.teardown(ctx)
	}
	if err != nil {
		d.log.ErrorWith("failed to tear down ephemeral database", err, nil)
	} else {
		d.log.Info("ephemeral database torn down")
	}
	return err
}

// TornDown reports whether the last holder has released the database.
func (d *EphemeralDatabase) TornDown() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gone
}

// Ephemeral is a migrated database together with the pool serving it.
type Ephemeral struct {
	Pool     *database.Pool
	Database *EphemeralDatabase

	once sync.Once
	err  error
}

// Close drains and closes the pool, then releases this handle's reference
// to the database. The pool holds its own reference until it has drained,
// so the database outlives every connection.
func (e *Ephemeral) Close() error {
	e.once.Do(func() {
		poolErr := e.Pool.Close()
		dbErr := e.Database.Release()
		if poolErr != nil {
			e.err = poolErr
		} else {
			e.err = dbErr
		}
	})
	return e.err
}

// EphemeralOption customises NewEphemeral.
type EphemeralOption func(*ephemeralOptions)

type ephemeralOptions struct {
	poolSize      int32
	prober        *database.Prober
	migrations    *migrate.Set
	skipMigration bool
	shared        []Option
}

// WithPoolSize overrides EphemeralPoolSize.
func WithPoolSize(n int32) EphemeralOption {
	return func(o *ephemeralOptions) { o.poolSize = n }
}

// WithProber overrides the readiness deadline, interval and settle delay.
func WithProber(p *database.Prober) EphemeralOption {
	return func(o *ephemeralOptions) { o.prober = p }
}

// WithMigrations applies set instead of the embedded migrations.
func WithMigrations(set *migrate.Set) EphemeralOption {
	return func(o *ephemeralOptions) { o.migrations = set }
}

// WithoutMigrations leaves the provisioned database empty.
func WithoutMigrations() EphemeralOption {
	return func(o *ephemeralOptions) { o.skipMigration = true }
}

// WithOptions applies the shared bootstrap options (logger, dialers).
func WithOptions(opts ...Option) EphemeralOption {
	return func(o *ephemeralOptions) { o.shared = append(o.shared, opts...) }
}

// attachPool gives pool its own reference to db, dropped only after every
// lease is back.
func attachPool(pool *database.Pool, db *EphemeralDatabase) error {
	if err := db.Retain(); err != nil {
		return err
	}
	pool.OnClose(func() { _ = db.Release() })
	return nil
}

// NewEphemeral provisions a database, builds a pool of EphemeralPoolSize
// connections, waits until a connection can be acquired and applies the
// migrations. Any failure tears down what was created and is returned
// typed; the readiness deadline surfaces as ErrKindReadinessTimeout.
func NewEphemeral(ctx context.Context, prov Provisioner, opts ...EphemeralOption) (*Ephemeral, error) {
	eo := &ephemeralOptions{poolSize: EphemeralPoolSize}
	for _, opt := range opts {
		opt(eo)
	}
	o := newOptions(eo.shared)
	log := o.log.With().Str("component", "ephemeral").Logger()

	url, teardown, err := prov.Provision(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindPoolConstruction, "failed to provision ephemeral database", err)
	}
	db := newEphemeralDatabase(url, teardown, log)

	cfg := database.DefaultConfig(url)
	cfg.MaxConns = eo.poolSize
	pool, err := o.build(*cfg)
	if err != nil {
		_ = db.Release()
		return nil, err
	}

	fail := func(err error) (*Ephemeral, error) {
		_ = pool.Close()
		_ = db.Release()
		return nil, err
	}

	if err := attachPool(pool, db); err != nil {
		return fail(err)
	}

	prober := eo.prober
	if prober == nil {
		prober = database.NewProber(log)
	} else if prober.Log == nil {
		p := *prober
		p.Log = log
		prober = &p
	}
	if err := prober.WaitUntilReady(ctx, pool); err != nil {
		log.ErrorWith("ephemeral database never became ready", err, map[string]any{
			"deadline": prober.Deadline.String(),
		})
		return fail(err)
	}

	if !eo.skipMigration {
		set := eo.migrations
		if set == nil {
			set, err = migrate.Embedded(DialectFor(*cfg))
			if err != nil {
				return fail(err)
			}
		}
		applied, err := migrate.Apply(ctx, pool, set, log)
		if err != nil {
			return fail(err)
		}
		log.InfoWith("ephemeral database migrated", map[string]any{"applied": len(applied)})
	}

	log.InfoWith("ephemeral database ready", map[string]any{"max_conns": eo.poolSize})
	return &Ephemeral{Pool: pool, Database: db}, nil
}
