package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/koustreak/quizmeet/internal/database"
	"github.com/koustreak/quizmeet/internal/errs"
)

// Dialer opens one pgx connection per pool slot.
type Dialer struct {
	connCfg *pgx.ConnConfig
}

// NewDialer parses cfg.DSN up front so a malformed URL fails pool
// construction instead of every later acquire.
func NewDialer(cfg database.Config) (*Dialer, error) {
	connCfg, err := pgx.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindPoolConstruction, "invalid postgres connection URL", err)
	}
	if cfg.ConnectTimeout > 0 {
		connCfg.ConnectTimeout = cfg.ConnectTimeout
	}
	return &Dialer{connCfg: connCfg}, nil
}

// Dial connects and returns the connection wrapped as database.Conn.
func (d *Dialer) Dial(ctx context.Context) (database.Conn, error) {
	conn, err := pgx.ConnectConfig(ctx, d.connCfg.Copy())
	if err != nil {
		return nil, mapConnError(err, "failed to connect to postgres")
	}
	return Wrap(conn), nil
}
