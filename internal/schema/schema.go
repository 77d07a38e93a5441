// Package schema inspects the tables of the database a connection is
// attached to. Queries are scoped to the connection's current schema
// (Postgres) or database (MySQL).
package schema

import (
	"context"
	"fmt"

	"github.com/koustreak/quizmeet/internal/database"
	"github.com/koustreak/quizmeet/internal/errs"
)

type queries struct {
	listTables  string
	tableExists string
	columns     string
}

func queriesFor(d database.Dialect) queries {
	if d == database.DialectMySQL {
		return mysqlQueries
	}
	return postgresQueries
}

// ListTables returns all user tables, sorted by name.
func ListTables(ctx context.Context, conn database.Conn) ([]string, error) {
	rows, err := conn.Query(ctx, queriesFor(conn.Dialect()).listTables)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	tables, err := database.CollectRows(rows, func(r database.Row) (string, error) {
		var name string
		err := r.Scan(&name)
		return name, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan table name: %w", err)
	}
	return tables, nil
}

// TableExists checks whether a specific table exists
func TableExists(ctx context.Context, conn database.Conn, table string) (bool, error) {
	var exists bool
	if err := conn.QueryRow(ctx, queriesFor(conn.Dialect()).tableExists, table).Scan(&exists); err != nil {
		return false, fmt.Errorf("table exists check: %w", err)
	}
	return exists, nil
}

// InspectTable returns column details for a single table
func InspectTable(ctx context.Context, conn database.Conn, table string) (*TableInfo, error) {
	rows, err := conn.Query(ctx, queriesFor(conn.Dialect()).columns, table)
	if err != nil {
		return nil, fmt.Errorf("inspect table %s: %w", table, err)
	}

	cols, err := database.CollectRows(rows, func(r database.Row) (ColumnInfo, error) {
		var col ColumnInfo
		err := r.Scan(
			&col.Name,
			&col.DataType,
			&col.IsNullable,
			&col.DefaultValue,
			&col.MaxLength,
			&col.IsPrimaryKey,
			&col.IsUnique,
		)
		return col, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan column: %w", err)
	}
	if len(cols) == 0 {
		return nil, errs.New(errs.ErrKindNotFound, fmt.Sprintf("table %s not found or has no columns", table))
	}
	return &TableInfo{Name: table, Columns: cols}, nil
}

// Missing returns the names in want that are not tables.
func Missing(ctx context.Context, conn database.Conn, want ...string) ([]string, error) {
	tables, err := ListTables(ctx, conn)
	if err != nil {
		return nil, err
	}
	have := make(map[string]bool, len(tables))
	for _, t := range tables {
		have[t] = true
	}

	var missing []string
	for _, w := range want {
		if !have[w] {
			missing = append(missing, w)
		}
	}
	return missing, nil
}
