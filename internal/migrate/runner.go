package migrate

import (
	"context"
	"fmt"
	"time"

	"github.com/koustreak/quizmeet/internal/database"
	"github.com/koustreak/quizmeet/internal/errs"
	"github.com/koustreak/quizmeet/internal/logger"
)

const (
	// lockKey identifies the migration lock. Value: "quizmt" in ASCII hex.
	lockKey = 0x7175697a6d74

	lockName           = "quizmeet_migrations"
	lockWaitSeconds    = 30
	lockReleaseTimeout = 5 * time.Second
)

// Runner applies migration sets over a single connection.
type Runner struct {
	log *logger.Logger
}

// NewRunner returns a Runner that logs through log (nil discards).
func NewRunner(log *logger.Logger) *Runner {
	if log == nil {
		log = logger.Nop()
	}
	return &Runner{log: log}
}

// ApplyPending applies, in order, every migration of set not yet recorded
// in schema_migrations and returns the IDs it applied. Each migration and
// its history row commit together. A failure stops the run with an
// ErrKindMigrationFailed error naming the migration; earlier ones stay
// applied. Running an already applied set is a no-op.
func (r *Runner) ApplyPending(ctx context.Context, conn database.Conn, set *Set) ([]string, error) {
	if err := checkDialect(conn, set); err != nil {
		return nil, err
	}

	unlock, err := r.lock(ctx, conn)
	if err != nil {
		return nil, err
	}
	defer unlock()

	applied, err := r.prepare(ctx, conn)
	if err != nil {
		return nil, err
	}

	var done []string
	for _, m := range set.Migrations {
		if applied[m.Version] {
			r.log.DebugWith("migration already applied", map[string]any{"migration": m.ID()})
			continue
		}

		start := time.Now()
		if err := r.apply(ctx, conn, m); err != nil {
			return done, errs.Wrap(errs.ErrKindMigrationFailed, fmt.Sprintf("migration %s failed", m.ID()), err)
		}
		r.log.InfoWith("migration applied", map[string]any{
			"migration": m.ID(),
			"took":      time.Since(start).String(),
		})
		done = append(done, m.ID())
	}
	return done, nil
}

// Status describes how a set relates to a database's history.
type Status struct {
	Applied []Migration
	Pending []Migration

	// Unknown lists recorded versions that the set does not contain.
	Unknown []int64
}

// Status reports applied and pending migrations without changing anything
// beyond creating the history table.
func (r *Runner) Status(ctx context.Context, conn database.Conn, set *Set) (*Status, error) {
	if err := checkDialect(conn, set); err != nil {
		return nil, err
	}

	applied, err := r.prepare(ctx, conn)
	if err != nil {
		return nil, err
	}

	st := &Status{}
	known := make(map[int64]bool, len(set.Migrations))
	for _, m := range set.Migrations {
		known[m.Version] = true
		if applied[m.Version] {
			st.Applied = append(st.Applied, m)
		} else {
			st.Pending = append(st.Pending, m)
		}
	}
	for v := range applied {
		if !known[v] {
			st.Unknown = append(st.Unknown, v)
		}
	}
	return st, nil
}

// Apply borrows one connection from pool and applies set over it.
func Apply(ctx context.Context, pool *database.Pool, set *Set, log *logger.Logger) ([]string, error) {
	var done []string
	err := pool.WithConn(ctx, func(ctx context.Context, conn database.Conn) error {
		var err error
		done, err = NewRunner(log).ApplyPending(ctx, conn, set)
		return err
	})
	return done, err
}

func checkDialect(conn database.Conn, set *Set) error {
	if set == nil {
		return errs.New(errs.ErrKindInvalidInput, "nil migration set")
	}
	if conn.Dialect() != set.Dialect {
		return errs.New(errs.ErrKindInvalidInput,
			fmt.Sprintf("%s migrations cannot run on a %s connection", set.Dialect, conn.Dialect()))
	}
	return nil
}

// prepare creates the history table and returns the recorded versions.
func (r *Runner) prepare(ctx context.Context, conn database.Conn) (map[int64]bool, error) {
	if _, err := conn.Exec(ctx, historyTableDDL(conn.Dialect())); err != nil {
		return nil, errs.Wrap(errs.ErrKindMigrationFailed, "cannot create schema_migrations", err)
	}

	rows, err := conn.Query(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindMigrationFailed, "cannot read schema_migrations", err)
	}
	versions, err := database.CollectRows(rows, func(row database.Row) (int64, error) {
		var v int64
		err := row.Scan(&v)
		return v, err
	})
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindMigrationFailed, "cannot read schema_migrations", err)
	}

	applied := make(map[int64]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}
	return applied, nil
}

func (r *Runner) apply(ctx context.Context, conn database.Conn, m Migration) error {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return err
	}
	// no-op after a successful commit
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, m.SQL); err != nil {
		return err
	}

	d := conn.Dialect()
	insert := fmt.Sprintf("INSERT INTO schema_migrations (version, name) VALUES (%s, %s)",
		d.Placeholder(1), d.Placeholder(2))
	if _, err := tx.Exec(ctx, insert, m.Version, m.Name); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// lock takes a session-level lock so concurrent runners apply one at a time.
func (r *Runner) lock(ctx context.Context, conn database.Conn) (unlock func(), err error) {
	switch conn.Dialect() {
	case database.DialectMySQL:
		var got int64
		if err := conn.QueryRow(ctx, "SELECT GET_LOCK(?, ?)", lockName, lockWaitSeconds).Scan(&got); err != nil {
			return nil, errs.Wrap(errs.ErrKindMigrationFailed, "failed to acquire migration lock", err)
		}
		if got != 1 {
			return nil, errs.New(errs.ErrKindMigrationFailed,
				fmt.Sprintf("migration lock still held after %ds", lockWaitSeconds))
		}
		return r.unlocker(conn, "SELECT RELEASE_LOCK(?)", lockName), nil

	default:
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", int64(lockKey)); err != nil {
			return nil, errs.Wrap(errs.ErrKindMigrationFailed, "failed to acquire migration lock", err)
		}
		return r.unlocker(conn, "SELECT pg_advisory_unlock($1)", int64(lockKey)), nil
	}
}

func (r *Runner) unlocker(conn database.Conn, sql string, arg any) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), lockReleaseTimeout)
		defer cancel()

		if _, err := conn.Exec(ctx, sql, arg); err != nil {
			r.log.ErrorWith("failed to release migration lock", err, nil)
		}
	}
}

func historyTableDDL(d database.Dialect) string {
	if d == database.DialectMySQL {
		return `CREATE TABLE IF NOT EXISTS schema_migrations (
	version    BIGINT       NOT NULL PRIMARY KEY,
	name       VARCHAR(255) NOT NULL,
	applied_at TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP
)`
	}
	return `CREATE TABLE IF NOT EXISTS schema_migrations (
	version    BIGINT      PRIMARY KEY,
	name       TEXT        NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`
}
