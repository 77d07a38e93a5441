// Package migrate applies ordered SQL migrations and records them in a
// schema_migrations history table.
package migrate

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/koustreak/quizmeet/internal/database"
	"github.com/koustreak/quizmeet/internal/errs"
)

//go:embed sql
var bundled embed.FS

var fileName = regexp.MustCompile(`^(\d+)_([a-z0-9_]+)\.sql$`)

// Migration is one versioned SQL script.
type Migration struct {
	Version int64
	Name    string
	SQL     string
}

// ID is the file stem, e.g. 0001_create_tournaments.
func (m Migration) ID() string {
	return fmt.Sprintf("%04d_%s", m.Version, m.Name)
}

// Set is an ordered list of migrations for one dialect.
type Set struct {
	Dialect    database.Dialect
	Migrations []Migration
}

// Versions lists the set's versions in apply order.
func (s *Set) Versions() []int64 {
	out := make([]int64, len(s.Migrations))
	for i, m := range s.Migrations {
		out[i] = m.Version
	}
	return out
}

// Load reads every NNNN_name.sql file in dir. Files are ordered by version;
// malformed names, empty scripts and repeated versions are rejected.
func Load(fsys fs.FS, dir string, dialect database.Dialect) (*Set, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, fmt.Sprintf("cannot read migrations from %q", dir), err)
	}

	set := &Set{Dialect: dialect}
	seen := make(map[int64]string)

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		match := fileName.FindStringSubmatch(entry.Name())
		if match == nil {
			return nil, errs.New(errs.ErrKindInvalidInput,
				fmt.Sprintf("migration file %q does not match NNNN_name.sql", entry.Name()))
		}

		version, err := strconv.ParseInt(match[1], 10, 64)
		if err != nil || version <= 0 {
			return nil, errs.New(errs.ErrKindInvalidInput,
				fmt.Sprintf("migration file %q has an invalid version", entry.Name()))
		}
		if prev, ok := seen[version]; ok {
			return nil, errs.New(errs.ErrKindInvalidInput,
				fmt.Sprintf("migration version %d declared by both %q and %q", version, prev, entry.Name()))
		}
		seen[version] = entry.Name()

		body, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, errs.Wrap(errs.ErrKindInvalidInput, fmt.Sprintf("cannot read %q", entry.Name()), err)
		}
		if strings.TrimSpace(string(body)) == "" {
			return nil, errs.New(errs.ErrKindInvalidInput, fmt.Sprintf("migration file %q is empty", entry.Name()))
		}

		set.Migrations = append(set.Migrations, Migration{
			Version: version,
			Name:    match[2],
			SQL:     string(body),
		})
	}

	sort.Slice(set.Migrations, func(i, j int) bool {
		return set.Migrations[i].Version < set.Migrations[j].Version
	})
	return set, nil
}

// Embedded returns the migrations compiled into the binary for dialect.
func Embedded(dialect database.Dialect) (*Set, error) {
	return Load(bundled, path.Join("sql", dialect.String()), dialect)
}
