// Package postgres adapts pgx connections to database.Conn.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/koustreak/quizmeet/internal/database"
)

// PgxConn is the subset of *pgx.Conn used by the adapter. pgxmock's
// PgxConnIface satisfies it as well.
type PgxConn interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Conn implements database.Conn on top of a single pgx connection.
type Conn struct {
	conn PgxConn
}

// Wrap adapts c. Errors returned through the adapter are *errs.Error.
func Wrap(c PgxConn) *Conn {
	return &Conn{conn: c}
}

func (c *Conn) Dialect() database.Dialect { return database.DialectPostgres }

// Ping verifies the connection is alive
func (c *Conn) Ping(ctx context.Context) error {
	return mapConnError(c.conn.Ping(ctx), "ping failed")
}

// Close terminates the connection
func (c *Conn) Close(ctx context.Context) error {
	return mapConnError(c.conn.Close(ctx), "failed to close connection")
}

// Query executes a query returning multiple rows
func (c *Conn) Query(ctx context.Context, sql string, args ...any) (database.Rows, error) {
	rows, err := c.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError(err, "query failed")
	}
	return &pgRows{rows: rows}, nil
}

// QueryRow executes a query returning a single row
func (c *Conn) QueryRow(ctx context.Context, sql string, args ...any) database.Row {
	return &pgRow{row: c.conn.QueryRow(ctx, sql, args...)}
}

// Exec executes a statement returning the number of rows affected
func (c *Conn) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	tag, err := c.conn.Exec(ctx, sql, args...)
	if err != nil {
		return 0, mapError(err, "exec failed")
	}
	return tag.RowsAffected(), nil
}

// Begin starts a transaction
func (c *Conn) Begin(ctx context.Context) (database.Tx, error) {
	tx, err := c.conn.Begin(ctx)
	if err != nil {
		return nil, mapConnError(err, "failed to begin transaction")
	}
	return &pgTx{tx: tx}, nil
}

// --- pgRows wraps pgx.Rows ---

type pgRows struct{ rows pgx.Rows }

func (r *pgRows) Next() bool             { return r.rows.Next() }
func (r *pgRows) Scan(dest ...any) error { return mapScanError(r.rows.Scan(dest...)) }
func (r *pgRows) Close()                 { r.rows.Close() }
func (r *pgRows) Err() error             { return mapError(r.rows.Err(), "error during row iteration") }

func (r *pgRows) Columns() ([]string, error) {
	descs := r.rows.FieldDescriptions()
	cols := make([]string, len(descs))
	for i, d := range descs {
		cols[i] = d.Name
	}
	return cols, nil
}

// --- pgRow wraps pgx.Row ---

type pgRow struct{ row pgx.Row }

func (r *pgRow) Scan(dest ...any) error { return mapScanError(r.row.Scan(dest...)) }

// --- pgTx wraps pgx.Tx ---

type pgTx struct{ tx pgx.Tx }

func (t *pgTx) Query(ctx context.Context, sql string, args ...any) (database.Rows, error) {
	rows, err := t.tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError(err, "query failed")
	}
	return &pgRows{rows: rows}, nil
}

func (t *pgTx) QueryRow(ctx context.Context, sql string, args ...any) database.Row {
	return &pgRow{row: t.tx.QueryRow(ctx, sql, args...)}
}

func (t *pgTx) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	tag, err := t.tx.Exec(ctx, sql, args...)
	if err != nil {
		return 0, mapError(err, "exec failed")
	}
	return tag.RowsAffected(), nil
}

func (t *pgTx) Commit(ctx context.Context) error {
	return mapError(t.tx.Commit(ctx), "commit failed")
}

func (t *pgTx) Rollback(ctx context.Context) error {
	return mapError(t.tx.Rollback(ctx), "rollback failed")
}
