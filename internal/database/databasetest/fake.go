// Package databasetest provides in-memory connections and dialers for
// exercising database.Pool and its consumers without a server.
package databasetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/koustreak/quizmeet/internal/database"
	"github.com/koustreak/quizmeet/internal/errs"
)

// Statement is one Exec or Query seen by a Conn.
type Statement struct {
	SQL  string
	Args []any
	InTx bool
}

// Conn is a database.Conn that records statements. ExecFunc and QueryFunc
// override the default behaviour (Exec affects 0 rows, Query returns no rows).
type Conn struct {
	ID         int
	SQLDialect database.Dialect

	ExecFunc  func(sql string, args []any) (int64, error)
	QueryFunc func(sql string, args []any) (database.Rows, error)
	PingErr   error

	mu         sync.Mutex
	statements []Statement
	closed     bool
	onClose    func()
}

func (c *Conn) Dialect() database.Dialect { return c.SQLDialect }

func (c *Conn) Ping(context.Context) error {
	if c.isClosed() {
		return errs.New(errs.ErrKindConnectionFailed, "connection closed")
	}
	return c.PingErr
}

func (c *Conn) Exec(_ context.Context, sql string, args ...any) (int64, error) {
	return c.exec(sql, args, false)
}

func (c *Conn) Query(_ context.Context, sql string, args ...any) (database.Rows, error) {
	return c.query(sql, args, false)
}

func (c *Conn) QueryRow(ctx context.Context, sql string, args ...any) database.Row {
	rows, err := c.Query(ctx, sql, args...)
	return &row{rows: rows, err: err}
}

func (c *Conn) Begin(context.Context) (database.Tx, error) {
	if c.isClosed() {
		return nil, errs.New(errs.ErrKindConnectionFailed, "connection closed")
	}
	return &Tx{conn: c}, nil
}

func (c *Conn) Close(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.onClose != nil {
		c.onClose()
	}
	return nil
}

// Statements returns a copy of everything executed so far.
func (c *Conn) Statements() []Statement {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Statement(nil), c.statements...)
}

// Closed reports whether Close has been called.
func (c *Conn) Closed() bool {
	return c.isClosed()
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Conn) record(sql string, args []any, inTx bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errs.New(errs.ErrKindConnectionFailed, "connection closed")
	}
	c.statements = append(c.statements, Statement{SQL: sql, Args: args, InTx: inTx})
	return nil
}

func (c *Conn) exec(sql string, args []any, inTx bool) (int64, error) {
	if err := c.record(sql, args, inTx); err != nil {
		return 0, err
	}
	if c.ExecFunc != nil {
		return c.ExecFunc(sql, args)
	}
	return 0, nil
}

func (c *Conn) query(sql string, args []any, inTx bool) (database.Rows, error) {
	if err := c.record(sql, args, inTx); err != nil {
		return nil, err
	}
	if c.QueryFunc != nil {
		return c.QueryFunc(sql, args)
	}
	return NewRows(nil), nil
}

// Tx forwards to its Conn and records whether it committed.
type Tx struct {
	conn       *Conn
	Committed  bool
	RolledBack bool
}

func (t *Tx) Exec(_ context.Context, sql string, args ...any) (int64, error) {
	return t.conn.exec(sql, args, true)
}

func (t *Tx) Query(_ context.Context, sql string, args ...any) (database.Rows, error) {
	return t.conn.query(sql, args, true)
}

func (t *Tx) QueryRow(_ context.Context, sql string, args ...any) database.Row {
	rows, err := t.conn.query(sql, args, true)
	return &row{rows: rows, err: err}
}

func (t *Tx) Commit(context.Context) error {
	t.Committed = true
	return nil
}

func (t *Tx) Rollback(context.Context) error {
	if !t.Committed {
		t.RolledBack = true
	}
	return nil
}

// Rows is a static result set.
type Rows struct {
	columns []string
	values  [][]any
	pos     int
}

// NewRows builds a result set; each element of values is one row.
func NewRows(columns []string, values ...[]any) *Rows {
	return &Rows{columns: columns, values: values}
}

func (r *Rows) Next() bool {
	if r.pos >= len(r.values) {
		return false
	}
	r.pos++
	return true
}

func (r *Rows) Scan(dest ...any) error {
	if r.pos == 0 || r.pos > len(r.values) {
		return errors.New("scan called without a current row")
	}
	src := r.values[r.pos-1]
	if len(dest) != len(src) {
		return fmt.Errorf("scan expects %d destinations, got %d", len(src), len(dest))
	}
	for i, v := range src {
		if err := assign(dest[i], v); err != nil {
			return err
		}
	}
	return nil
}

func (r *Rows) Columns() ([]string, error) { return r.columns, nil }
func (r *Rows) Close()                     {}
func (r *Rows) Err() error                 { return nil }

type row struct {
	rows database.Rows
	err  error
}

func (r *row) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	defer r.rows.Close()
	if !r.rows.Next() {
		return errs.New(errs.ErrKindNotFound, "record not found")
	}
	return r.rows.Scan(dest...)
}

func assign(dest, v any) error {
	switch d := dest.(type) {
	case *any:
		*d = v
	case *string:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("cannot scan %T into *string", v)
		}
		*d = s
	case *int:
		n, ok := v.(int)
		if !ok {
			return fmt.Errorf("cannot scan %T into *int", v)
		}
		*d = n
	case *int64:
		n, ok := v.(int64)
		if !ok {
			return fmt.Errorf("cannot scan %T into *int64", v)
		}
		*d = n
	case *bool:
		b, ok := v.(bool)
		if !ok {
			return fmt.Errorf("cannot scan %T into *bool", v)
		}
		*d = b
	default:
		return fmt.Errorf("unsupported scan destination %T", dest)
	}
	return nil
}

// Dialer hands out Conns and counts how many are open. Fail, when set, is
// consulted before each dial; a non-nil result fails that dial.
type Dialer struct {
	Dialect database.Dialect
	Fail    func(attempt int) error
	Setup   func(*Conn)

	attempts atomic.Int64
	dialed   atomic.Int64
	open     atomic.Int64
}

func (d *Dialer) Dial(ctx context.Context) (database.Conn, error) {
	attempt := int(d.attempts.Add(1))
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.Fail != nil {
		if err := d.Fail(attempt); err != nil {
			return nil, err
		}
	}

	id := int(d.dialed.Add(1))
	d.open.Add(1)
	c := &Conn{ID: id, SQLDialect: d.Dialect, onClose: func() { d.open.Add(-1) }}
	if d.Setup != nil {
		d.Setup(c)
	}
	return c, nil
}

// Attempts is the number of Dial calls, successful or not.
func (d *Dialer) Attempts() int { return int(d.attempts.Load()) }

// Dialed is the number of connections successfully opened.
func (d *Dialer) Dialed() int { return int(d.dialed.Load()) }

// Open is the number of connections opened and not yet closed.
func (d *Dialer) Open() int { return int(d.open.Load()) }

// UnreachableUntil returns a Fail func that refuses connections until at.
func UnreachableUntil(at time.Time) func(int) error {
	return func(int) error {
		if time.Now().Before(at) {
			return errs.New(errs.ErrKindConnectionFailed, "connection refused")
		}
		return nil
	}
}

// Unreachable is a Fail func that always refuses.
func Unreachable(int) error {
	return errs.New(errs.ErrKindConnectionFailed, "connection refused")
}
