package mysql

import (
	"context"
	"database/sql"
	"net/url"
	"strings"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/koustreak/quizmeet/internal/database"
	"github.com/koustreak/quizmeet/internal/errs"
)

const defaultPort = "3306"

// Dialer hands out dedicated connections from a database/sql handle whose
// own pooling is disabled; database.Pool does the pooling.
type Dialer struct {
	db *sql.DB
}

// NewDialer accepts either a mysql:// URL or a native driver DSN
// (user:pass@tcp(host:port)/db).
func NewDialer(cfg database.Config) (*Dialer, error) {
	mcfg, err := ParseURL(cfg.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.ConnectTimeout > 0 {
		mcfg.Timeout = cfg.ConnectTimeout
	}

	connector, err := gomysql.NewConnector(mcfg)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindPoolConstruction, "invalid mysql configuration", err)
	}

	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(int(cfg.MaxConns))
	db.SetMaxIdleConns(0)
	return &Dialer{db: db}, nil
}

// Dial checks out one connection and verifies it.
func (d *Dialer) Dial(ctx context.Context) (database.Conn, error) {
	conn, err := d.db.Conn(ctx)
	if err != nil {
		return nil, mapConnError(err, "failed to connect to mysql")
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, mapConnError(err, "failed to connect to mysql")
	}
	return &Conn{conn: conn}, nil
}

// Close releases the underlying database/sql handle.
func (d *Dialer) Close() error {
	return d.db.Close()
}

// ParseURL converts a connection URL into a driver config with ParseTime
// and MultiStatements enabled. Migrations rely on the latter.
func ParseURL(dsn string) (*gomysql.Config, error) {
	native := dsn
	if strings.HasPrefix(strings.ToLower(dsn), "mysql://") {
		var err error
		native, err = urlToDSN(dsn)
		if err != nil {
			return nil, err
		}
	}

	mcfg, err := gomysql.ParseDSN(native)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindPoolConstruction, "invalid mysql connection URL", err)
	}
	mcfg.ParseTime = true
	mcfg.MultiStatements = true
	return mcfg, nil
}

func urlToDSN(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", errs.Wrap(errs.ErrKindPoolConstruction, "invalid mysql connection URL", err)
	}
	if u.Host == "" {
		return "", errs.New(errs.ErrKindPoolConstruction, "mysql connection URL has no host")
	}

	mcfg := gomysql.NewConfig()
	mcfg.Net = "tcp"
	mcfg.Addr = u.Host
	if u.Port() == "" {
		mcfg.Addr = u.Hostname() + ":" + defaultPort
	}
	mcfg.DBName = strings.TrimPrefix(u.Path, "/")
	if u.User != nil {
		mcfg.User = u.User.Username()
		mcfg.Passwd, _ = u.User.Password()
	}

	dsn := mcfg.FormatDSN()
	if u.RawQuery != "" {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + u.RawQuery
	}
	return dsn, nil
}
