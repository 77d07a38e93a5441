package bootstrap_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/koustreak/quizmeet/internal/bootstrap"
	"github.com/koustreak/quizmeet/internal/database"
	"github.com/koustreak/quizmeet/internal/database/databasetest"
	"github.com/koustreak/quizmeet/internal/errs"
	"github.com/koustreak/quizmeet/internal/migrate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer stands in for a provisioned database: it hands out a URL,
// dials through a databasetest.Dialer and records teardown.
type fakeServer struct {
	dialer *databasetest.Dialer

	mu         sync.Mutex
	tornDown   int
	openAtDown int
}

func (s *fakeServer) Provision(context.Context) (string, bootstrap.Teardown, error) {
	return "postgres://quiz@fake:5432/quiz", func(context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.tornDown++
		s.openAtDown = s.dialer.Open()
		return nil
	}, nil
}

func (s *fakeServer) teardowns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tornDown
}

func (s *fakeServer) options() bootstrap.EphemeralOption {
	return bootstrap.WithOptions(bootstrap.WithDialerFactory(func(database.Config) (database.Dialer, error) {
		return s.dialer, nil
	}))
}

func TestNewEphemeral_ReadyAfterOneSecond(t *testing.T) {
	srv := &fakeServer{dialer: &databasetest.Dialer{
		Fail: databasetest.UnreachableUntil(time.Now().Add(time.Second)),
	}}

	start := time.Now()
	e, err := bootstrap.NewEphemeral(context.Background(), srv, srv.options())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), time.Second)
	assert.Less(t, time.Since(start), database.DefaultReadinessDeadline)

	assert.Equal(t, int32(bootstrap.EphemeralPoolSize), e.Pool.Stat().Max)
	assert.Equal(t, "postgres://quiz@fake:5432/quiz", e.Database.URL())

	acquireStart := time.Now()
	lease, err := e.Pool.Acquire(context.Background())
	require.NoError(t, err)
	assert.Less(t, time.Since(acquireStart), 50*time.Millisecond)
	lease.Release()

	require.NoError(t, e.Close())
	assert.Equal(t, 1, srv.teardowns())
	assert.Equal(t, 0, srv.openAtDown, "database torn down before the pool drained")
	assert.NoError(t, e.Close())
	assert.Equal(t, 1, srv.teardowns())
}

func TestNewEphemeral_AppliesEmbeddedMigrations(t *testing.T) {
	var mu sync.Mutex
	var executed []string
	srv := &fakeServer{dialer: &databasetest.Dialer{
		Setup: func(c *databasetest.Conn) {
			c.ExecFunc = func(sql string, _ []any) (int64, error) {
				mu.Lock()
				executed = append(executed, sql)
				mu.Unlock()
				return 0, nil
			}
		},
	}}

	e, err := bootstrap.NewEphemeral(context.Background(), srv, srv.options(),
		bootstrap.WithProber(&database.Prober{Deadline: time.Second, Interval: 10 * time.Millisecond}))
	require.NoError(t, err)
	defer e.Close()

	set, err := migrate.Embedded(database.DialectPostgres)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	for _, m := range set.Migrations {
		assert.Contains(t, executed, m.SQL, m.ID())
	}
}

func TestNewEphemeral_UnreachableTimesOut(t *testing.T) {
	srv := &fakeServer{dialer: &databasetest.Dialer{Fail: databasetest.Unreachable}}
	prober := &database.Prober{
		Deadline:    700 * time.Millisecond,
		Interval:    50 * time.Millisecond,
		SettleDelay: 100 * time.Millisecond,
	}

	start := time.Now()
	e, err := bootstrap.NewEphemeral(context.Background(), srv, srv.options(), bootstrap.WithProber(prober))
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Nil(t, e)
	assert.True(t, errs.IsReadinessTimeout(err), "got %v", err)
	assert.True(t, errs.KindOf(err).Fatal())
	assert.GreaterOrEqual(t, elapsed, prober.Deadline)
	assert.Equal(t, 1, srv.teardowns(), "failed bootstrap must tear the database down")
}

func TestNewEphemeral_MigrationFailureCleansUp(t *testing.T) {
	srv := &fakeServer{dialer: &databasetest.Dialer{
		Setup: func(c *databasetest.Conn) {
			c.ExecFunc = func(sql string, _ []any) (int64, error) {
				if sql == "CREATE TABLE broken" {
					return 0, errs.New(errs.ErrKindQueryFailed, "syntax error")
				}
				return 0, nil
			}
		},
	}}
	set := &migrate.Set{
		Dialect:    database.DialectPostgres,
		Migrations: []migrate.Migration{{Version: 1, Name: "broken", SQL: "CREATE TABLE broken"}},
	}

	_, err := bootstrap.NewEphemeral(context.Background(), srv, srv.options(),
		bootstrap.WithProber(&database.Prober{Deadline: time.Second, Interval: 10 * time.Millisecond}),
		bootstrap.WithMigrations(set))

	require.Error(t, err)
	assert.True(t, errs.IsMigrationFailed(err))
	assert.Equal(t, 1, srv.teardowns())
	assert.Equal(t, 0, srv.dialer.Open())
}

func TestNewEphemeral_ProvisionFailure(t *testing.T) {
	prov := bootstrap.ProvisionerFunc(func(context.Context) (string, bootstrap.Teardown, error) {
		return "", nil, errors.New("docker daemon not running")
	})

	_, err := bootstrap.NewEphemeral(context.Background(), prov)
	require.Error(t, err)
	assert.True(t, errs.IsPoolConstruction(err))
}

func TestEphemeral_DatabaseOutlivesLeases(t *testing.T) {
	srv := &fakeServer{dialer: &databasetest.Dialer{}}
	e, err := bootstrap.NewEphemeral(context.Background(), srv, srv.options(),
		bootstrap.WithProber(&database.Prober{Deadline: time.Second, Interval: 10 * time.Millisecond}),
		bootstrap.WithoutMigrations())
	require.NoError(t, err)

	lease, err := e.Pool.Acquire(context.Background())
	require.NoError(t, err)

	closed := make(chan error, 1)
	go func() { closed <- e.Close() }()

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, srv.teardowns(), "database torn down while a lease was outstanding")
	assert.False(t, e.Database.TornDown())

	lease.Release()
	require.NoError(t, <-closed)
	assert.Equal(t, 1, srv.teardowns())
	assert.True(t, e.Database.TornDown())
}

func TestEphemeralDatabase_RetainAfterTeardown(t *testing.T) {
	srv := &fakeServer{dialer: &databasetest.Dialer{}}
	e, err := bootstrap.NewEphemeral(context.Background(), srv, srv.options(),
		bootstrap.WithProber(&database.Prober{Deadline: time.Second, Interval: 10 * time.Millisecond}),
		bootstrap.WithoutMigrations())
	require.NoError(t, err)

	require.NoError(t, e.Database.Retain())
	require.NoError(t, e.Close())
	assert.False(t, e.Database.TornDown(), "extra holder keeps the database alive")

	require.NoError(t, e.Database.Release())
	assert.True(t, e.Database.TornDown())
	assert.Error(t, e.Database.Retain())
	assert.NoError(t, e.Database.Release())
	assert.Equal(t, 1, srv.teardowns())
}
