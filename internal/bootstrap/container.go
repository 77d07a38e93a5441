package bootstrap

import (
	"context"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/koustreak/quizmeet/internal/errs"
)

const (
	DefaultPostgresImage   = "postgres:16-alpine"
	defaultStartupTimeout  = 60 * time.Second
	defaultContainerDBName = "quizmeet"
)

// PostgresContainer provisions a throwaway PostgreSQL server in a container.
// Zero fields fall back to defaults.
type PostgresContainer struct {
	Image          string
	Database       string
	Username       string
	Password       string
	StartupTimeout time.Duration
}

// Provision starts the container and returns its connection URL. The
// returned teardown terminates the container.
func (p *PostgresContainer) Provision(ctx context.Context) (string, Teardown, error) {
	image := p.Image
	if image == "" {
		image = DefaultPostgresImage
	}
	timeout := p.StartupTimeout
	if timeout <= 0 {
		timeout = defaultStartupTimeout
	}

	container, err := tcpostgres.Run(ctx,
		image,
		tcpostgres.WithDatabase(orDefault(p.Database, defaultContainerDBName)),
		tcpostgres.WithUsername(orDefault(p.Username, "quizmeet")),
		tcpostgres.WithPassword(orDefault(p.Password, "quizmeet")),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(timeout)),
	)
	if err != nil {
		if container != nil {
			_ = container.Terminate(context.Background())
		}
		return "", nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to start postgres container", err)
	}

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(context.Background())
		return "", nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to read container connection string", err)
	}

	teardown := func(ctx context.Context) error {
		return container.Terminate(ctx)
	}
	return url, teardown, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
