package migrate_test

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/koustreak/quizmeet/internal/database"
	"github.com/koustreak/quizmeet/internal/database/databasetest"
	"github.com/koustreak/quizmeet/internal/database/postgres"
	"github.com/koustreak/quizmeet/internal/errs"
	"github.com/koustreak/quizmeet/internal/migrate"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// history emulates the schema_migrations table on a fake connection.
type history struct {
	mu       sync.Mutex
	versions map[int64]bool
	failOn   string
}

func newHistoryConn(d database.Dialect, h *history) *databasetest.Conn {
	conn := &databasetest.Conn{SQLDialect: d}
	conn.ExecFunc = func(sql string, args []any) (int64, error) {
		if h.failOn != "" && strings.Contains(sql, h.failOn) {
			return 0, errs.New(errs.ErrKindQueryFailed, "syntax error at or near \"TABL\"")
		}
		if strings.HasPrefix(sql, "INSERT INTO schema_migrations") {
			h.mu.Lock()
			h.versions[args[0].(int64)] = true
			h.mu.Unlock()
		}
		return 1, nil
	}
	conn.QueryFunc = func(sql string, args []any) (database.Rows, error) {
		if strings.HasPrefix(sql, "SELECT GET_LOCK") {
			return databasetest.NewRows([]string{"lock"}, []any{int64(1)}), nil
		}
		h.mu.Lock()
		defer h.mu.Unlock()
		var vs []int64
		for v := range h.versions {
			vs = append(vs, v)
		}
		sort.Slice(vs, func(i, j int) bool { return vs[i] < vs[j] })
		rows := make([][]any, len(vs))
		for i, v := range vs {
			rows[i] = []any{v}
		}
		return databasetest.NewRows([]string{"version"}, rows...), nil
	}
	return conn
}

func testSet(d database.Dialect) *migrate.Set {
	return &migrate.Set{
		Dialect: d,
		Migrations: []migrate.Migration{
			{Version: 1, Name: "create_tournaments", SQL: "CREATE TABLE tournaments (id int)"},
			{Version: 2, Name: "create_divisions", SQL: "CREATE TABLE divisions (id int)"},
			{Version: 3, Name: "create_rounds", SQL: "CREATE TABLE rounds (id int)"},
		},
	}
}

func countExecuted(conn *databasetest.Conn, sql string) int {
	n := 0
	for _, st := range conn.Statements() {
		if st.SQL == sql {
			n++
		}
	}
	return n
}

func TestApplyPending_TwiceEqualsOnce(t *testing.T) {
	h := &history{versions: map[int64]bool{}}
	conn := newHistoryConn(database.DialectPostgres, h)
	set := testSet(database.DialectPostgres)
	r := migrate.NewRunner(nil)
	ctx := context.Background()

	first, err := r.ApplyPending(ctx, conn, set)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_create_tournaments", "0002_create_divisions", "0003_create_rounds"}, first)

	second, err := r.ApplyPending(ctx, conn, set)
	require.NoError(t, err)
	assert.Empty(t, second)

	for _, m := range set.Migrations {
		assert.Equal(t, 1, countExecuted(conn, m.SQL), m.ID())
	}
	assert.Len(t, h.versions, 3)
}

func TestApplyPending_SkipsRecordedVersions(t *testing.T) {
	h := &history{versions: map[int64]bool{1: true}}
	conn := newHistoryConn(database.DialectPostgres, h)

	done, err := migrate.NewRunner(nil).ApplyPending(context.Background(), conn, testSet(database.DialectPostgres))
	require.NoError(t, err)
	assert.Equal(t, []string{"0002_create_divisions", "0003_create_rounds"}, done)
	assert.Zero(t, countExecuted(conn, "CREATE TABLE tournaments (id int)"))
}

func TestApplyPending_FailureStopsAndKeepsEarlier(t *testing.T) {
	h := &history{versions: map[int64]bool{}, failOn: "divisions"}
	conn := newHistoryConn(database.DialectPostgres, h)

	done, err := migrate.NewRunner(nil).ApplyPending(context.Background(), conn, testSet(database.DialectPostgres))
	require.Error(t, err)
	assert.True(t, errs.IsMigrationFailed(err))
	assert.Contains(t, err.Error(), "0002_create_divisions")
	assert.True(t, errs.IsQueryFailed(errors.Unwrap(err)))

	assert.Equal(t, []string{"0001_create_tournaments"}, done)
	assert.Equal(t, map[int64]bool{1: true}, h.versions)
	assert.Zero(t, countExecuted(conn, "CREATE TABLE rounds (id int)"))

	stmts := conn.Statements()
	assert.Equal(t, "SELECT pg_advisory_unlock($1)", stmts[len(stmts)-1].SQL, "lock released after failure")
}

func TestApplyPending_MySQLUsesNamedLock(t *testing.T) {
	h := &history{versions: map[int64]bool{}}
	conn := newHistoryConn(database.DialectMySQL, h)

	_, err := migrate.NewRunner(nil).ApplyPending(context.Background(), conn, testSet(database.DialectMySQL))
	require.NoError(t, err)

	stmts := conn.Statements()
	assert.Equal(t, "SELECT GET_LOCK(?, ?)", stmts[0].SQL)
	assert.Equal(t, "SELECT RELEASE_LOCK(?)", stmts[len(stmts)-1].SQL)

	var inserts int
	for _, st := range stmts {
		if strings.HasPrefix(st.SQL, "INSERT INTO schema_migrations") {
			assert.Contains(t, st.SQL, "VALUES (?, ?)")
			assert.True(t, st.InTx)
			inserts++
		}
	}
	assert.Equal(t, 3, inserts)
}

func TestApplyPending_DialectMismatch(t *testing.T) {
	conn := &databasetest.Conn{SQLDialect: database.DialectMySQL}

	_, err := migrate.NewRunner(nil).ApplyPending(context.Background(), conn, testSet(database.DialectPostgres))
	assert.True(t, errs.IsInvalidInput(err))
	assert.Empty(t, conn.Statements())
}

func TestStatus(t *testing.T) {
	h := &history{versions: map[int64]bool{1: true, 99: true}}
	conn := newHistoryConn(database.DialectPostgres, h)

	st, err := migrate.NewRunner(nil).Status(context.Background(), conn, testSet(database.DialectPostgres))
	require.NoError(t, err)

	require.Len(t, st.Applied, 1)
	assert.Equal(t, int64(1), st.Applied[0].Version)
	require.Len(t, st.Pending, 2)
	assert.Equal(t, []int64{99}, st.Unknown)
}

func TestApply_OverPool(t *testing.T) {
	h := &history{versions: map[int64]bool{}}
	d := database.DialerFunc(func(context.Context) (database.Conn, error) {
		return newHistoryConn(database.DialectPostgres, h), nil
	})
	pool, err := database.NewPool(*database.SerializedConfig("postgres://fake/quiz"), d)
	require.NoError(t, err)
	defer pool.Close()

	done, err := migrate.Apply(context.Background(), pool, testSet(database.DialectPostgres), nil)
	require.NoError(t, err)
	assert.Len(t, done, 3)
	assert.Equal(t, int32(0), pool.Stat().Acquired)
}

func TestApplyPending_Postgres(t *testing.T) {
	mock, err := pgxmock.NewConn()
	require.NoError(t, err)
	conn := postgres.Wrap(mock)

	set := &migrate.Set{
		Dialect: database.DialectPostgres,
		Migrations: []migrate.Migration{
			{Version: 1, Name: "create_tournaments", SQL: "CREATE TABLE tournaments (id uuid)"},
			{Version: 2, Name: "index_dates", SQL: "CREATE INDEX tournaments_to_date_idx ON tournaments (to_date)"},
		},
	}

	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_lock($1)")).
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM schema_migrations")).
		WillReturnRows(mock.NewRows([]string{"version"}).AddRow(int64(1)))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE INDEX tournaments_to_date_idx")).
		WillReturnResult(pgxmock.NewResult("CREATE INDEX", 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schema_migrations (version, name) VALUES ($1, $2)")).
		WithArgs(int64(2), "index_dates").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_unlock($1)")).
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))

	done, err := migrate.NewRunner(nil).ApplyPending(context.Background(), conn, set)
	require.NoError(t, err)
	assert.Equal(t, []string{"0002_index_dates"}, done)
	assert.NoError(t, mock.ExpectationsWereMet())
}
