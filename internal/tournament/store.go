package tournament

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/koustreak/quizmeet/internal/database"
	"github.com/koustreak/quizmeet/internal/errs"
)

const table = "tournaments"

var columns = []string{
	"id", "organization", "name", "breadcrumb", "from_date", "to_date",
	"venue", "city", "region", "country", "contact", "contact_email",
	"is_public", "short_info", "info", "created_at", "updated_at",
}

// writable is the column order of Changeset.args.
var writable = columns[1:15]

// Store reads and writes tournaments through a shared pool.
type Store struct {
	pool    *database.Pool
	dialect database.Dialect
	now     func() time.Time
}

// NewStore returns a Store issuing SQL for dialect.
func NewStore(pool *database.Pool, dialect database.Dialect) *Store {
	return &Store{pool: pool, dialect: dialect, now: time.Now}
}

// Create inserts a tournament with a fresh id and returns the stored row.
func (s *Store) Create(ctx context.Context, c Changeset) (Tournament, error) {
	id := uuid.New()

	var out Tournament
	err := s.pool.WithConn(ctx, func(ctx context.Context, conn database.Conn) error {
		return inTx(ctx, conn, func(tx database.Tx) error {
			placeholders := make([]string, len(columns)-2)
			for i := range placeholders {
				placeholders[i] = s.dialect.Placeholder(i + 1)
			}
			query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
				table, strings.Join(columns[:15], ", "), strings.Join(placeholders, ", "))

			args := append([]any{id.String()}, c.args()...)
			if _, err := tx.Exec(ctx, query, args...); err != nil {
				return err
			}

			var err error
			out, err = s.selectByID(ctx, tx, id)
			return err
		})
	})
	return out, err
}

// Get returns the tournament with id, or a NotFound error.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (Tournament, error) {
	var out Tournament
	err := s.pool.WithConn(ctx, func(ctx context.Context, conn database.Conn) error {
		var err error
		out, err = s.selectByID(ctx, conn, id)
		return err
	})
	return out, err
}

// List returns one page of tournaments ordered by end date.
func (s *Store) List(ctx context.Context, p Page) ([]Tournament, error) {
	p = p.Normalize()
	query, args, err := database.Select(table, s.dialect).
		Columns(columns...).
		OrderBy("to_date", database.Asc).
		OrderBy("id", database.Asc).
		Limit(p.PageSize).
		Offset(p.Offset()).
		Build()
	if err != nil {
		return nil, err
	}
	return s.query(ctx, query, args)
}

// Between returns tournaments overlapping the closed range [from, to].
func (s *Store) Between(ctx context.Context, from, to Date) ([]Tournament, error) {
	if from.After(to.Time) {
		return nil, errs.New(errs.ErrKindInvalidInput,
			fmt.Sprintf("range start %s is after range end %s", from, to))
	}
	query, args, err := database.Select(table, s.dialect).
		Columns(columns...).
		Where("to_date", ">=", from.Time).
		Where("from_date", "<=", to.Time).
		OrderBy("to_date", database.Asc).
		Build()
	if err != nil {
		return nil, err
	}
	return s.query(ctx, query, args)
}

// Current returns tournaments running within a week either side of today.
func (s *Store) Current(ctx context.Context) ([]Tournament, error) {
	today := DateOf(s.now())
	week := 7 * 24 * time.Hour
	return s.Between(ctx, Date{today.Add(-week)}, Date{today.Add(week)})
}

// Update overwrites the writable fields of id and returns the stored row.
func (s *Store) Update(ctx context.Context, id uuid.UUID, c Changeset) (Tournament, error) {
	var out Tournament
	err := s.pool.WithConn(ctx, func(ctx context.Context, conn database.Conn) error {
		return inTx(ctx, conn, func(tx database.Tx) error {
			sets := make([]string, len(writable))
			for i, col := range writable {
				sets[i] = fmt.Sprintf("%s = %s", col, s.dialect.Placeholder(i+1))
			}
			query := fmt.Sprintf("UPDATE %s SET %s, updated_at = CURRENT_TIMESTAMP WHERE id = %s",
				table, strings.Join(sets, ", "), s.dialect.Placeholder(len(writable)+1))

			args := append(c.args(), id.String())
			if _, err := tx.Exec(ctx, query, args...); err != nil {
				return err
			}

			// MySQL reports zero affected rows when nothing changed, so
			// existence is decided by reading the row back.
			var err error
			out, err = s.selectByID(ctx, tx, id)
			return err
		})
	})
	return out, err
}

// Delete removes id. Deleting an absent tournament is a NotFound error.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) (Deleted, error) {
	err := s.pool.WithConn(ctx, func(ctx context.Context, conn database.Conn) error {
		n, err := conn.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = %s", table, s.dialect.Placeholder(1)), id.String())
		if err != nil {
			return err
		}
		if n == 0 {
			return errs.New(errs.ErrKindNotFound, fmt.Sprintf("tournament %s not found", id))
		}
		return nil
	})
	if err != nil {
		return Deleted{}, err
	}
	return Deleted{ID: id}, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (database.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) database.Row
}

func (s *Store) selectByID(ctx context.Context, q querier, id uuid.UUID) (Tournament, error) {
	query, args, err := database.Select(table, s.dialect).
		Columns(columns...).
		Where("id", "=", id.String()).
		Build()
	if err != nil {
		return Tournament{}, err
	}

	t, err := scan(q.QueryRow(ctx, query, args...))
	if errs.IsNotFound(err) {
		return Tournament{}, errs.Wrap(errs.ErrKindNotFound, fmt.Sprintf("tournament %s not found", id), err)
	}
	return t, err
}

func (s *Store) query(ctx context.Context, query string, args []any) ([]Tournament, error) {
	var out []Tournament
	err := s.pool.WithConn(ctx, func(ctx context.Context, conn database.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		out, err = database.CollectRows(rows, scan)
		return err
	})
	return out, err
}

func scan(row database.Row) (Tournament, error) {
	var (
		t        Tournament
		from, to time.Time
	)
	err := row.Scan(
		&t.ID, &t.Organization, &t.Name, &t.Breadcrumb, &from, &to,
		&t.Venue, &t.City, &t.Region, &t.Country, &t.Contact, &t.ContactEmail,
		&t.IsPublic, &t.ShortInfo, &t.Info, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return Tournament{}, err
	}
	t.FromDate = DateOf(from)
	t.ToDate = DateOf(to)
	return t, nil
}

func (c Changeset) args() []any {
	return []any{
		c.Organization, c.Name, c.Breadcrumb, c.FromDate.Time, c.ToDate.Time,
		c.Venue, c.City, c.Region, c.Country, c.Contact, c.ContactEmail,
		c.IsPublic, c.ShortInfo, c.Info,
	}
}

func inTx(ctx context.Context, conn database.Conn, fn func(database.Tx) error) error {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
