// Package mysql adapts go-sql-driver/mysql connections to database.Conn.
package mysql

import (
	"context"
	"database/sql"

	"github.com/koustreak/quizmeet/internal/database"
)

// sqlConn is the subset of *sql.Conn used by the adapter.
type sqlConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
	PingContext(ctx context.Context) error
	Close() error
}

// Conn implements database.Conn on one dedicated database/sql connection.
type Conn struct {
	conn sqlConn
}

func (c *Conn) Dialect() database.Dialect { return database.DialectMySQL }

// Ping verifies the connection is alive
func (c *Conn) Ping(ctx context.Context) error {
	return mapConnError(c.conn.PingContext(ctx), "ping failed")
}

// Close returns the connection to database/sql, which closes it since the
// dialer keeps no idle connections.
func (c *Conn) Close(_ context.Context) error {
	return mapConnError(c.conn.Close(), "failed to close connection")
}

// Query executes a query returning multiple rows
func (c *Conn) Query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	rows, err := c.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "query failed")
	}
	return &mysqlRows{rows: rows}, nil
}

// QueryRow executes a query returning a single row
func (c *Conn) QueryRow(ctx context.Context, query string, args ...any) database.Row {
	return &mysqlRow{row: c.conn.QueryRowContext(ctx, query, args...)}
}

// Exec executes a statement returning rows affected
func (c *Conn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := c.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, mapError(err, "exec failed")
	}
	n, err := res.RowsAffected()
	return n, mapError(err, "failed to read rows affected")
}

// Begin starts a transaction
func (c *Conn) Begin(ctx context.Context) (database.Tx, error) {
	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, mapConnError(err, "failed to begin transaction")
	}
	return &mysqlTx{tx: tx}, nil
}

// --- mysqlRows wraps *sql.Rows ---

type mysqlRows struct{ rows *sql.Rows }

func (r *mysqlRows) Next() bool             { return r.rows.Next() }
func (r *mysqlRows) Scan(dest ...any) error { return mapScanError(r.rows.Scan(dest...)) }
func (r *mysqlRows) Close()                 { _ = r.rows.Close() }
func (r *mysqlRows) Err() error             { return mapError(r.rows.Err(), "error during row iteration") }

func (r *mysqlRows) Columns() ([]string, error) {
	cols, err := r.rows.Columns()
	return cols, mapError(err, "failed to read column names")
}

// --- mysqlRow wraps *sql.Row ---

type mysqlRow struct{ row *sql.Row }

func (r *mysqlRow) Scan(dest ...any) error { return mapScanError(r.row.Scan(dest...)) }

// --- mysqlTx wraps *sql.Tx ---

type mysqlTx struct{ tx *sql.Tx }

func (t *mysqlTx) Query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "query failed")
	}
	return &mysqlRows{rows: rows}, nil
}

func (t *mysqlTx) QueryRow(ctx context.Context, query string, args ...any) database.Row {
	return &mysqlRow{row: t.tx.QueryRowContext(ctx, query, args...)}
}

func (t *mysqlTx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, mapError(err, "exec failed")
	}
	n, err := res.RowsAffected()
	return n, mapError(err, "failed to read rows affected")
}

func (t *mysqlTx) Commit(_ context.Context) error   { return mapError(t.tx.Commit(), "commit failed") }
func (t *mysqlTx) Rollback(_ context.Context) error { return mapError(t.tx.Rollback(), "rollback failed") }
