package database

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const schemaTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version    INTEGER PRIMARY KEY,
	name       TEXT NOT NULL,
	applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
)`

// Migration is one NNN_name.sql file
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// Migrator applies embedded schema files in version order
type Migrator struct {
	db     *DB
	logger *zap.Logger
}

func NewMigrator(db *DB, logger *zap.Logger) *Migrator {
	return &Migrator{db: db, logger: logger}
}

// RunMigrations applies every migration in fsys not yet recorded in
// schema_migrations. Each file runs in its own transaction together with
// its bookkeeping row.
func (m *Migrator) RunMigrations(fsys fs.FS) error {
	ctx := context.Background()

	all, err := LoadMigrations(fsys)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	if _, err := m.db.ExecContext(ctx, schemaTable); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	done, err := m.applied(ctx)
	if err != nil {
		return fmt.Errorf("read schema_migrations: %w", err)
	}

	var count int
	for _, mig := range all {
		if done[mig.Version] {
			continue
		}
		if err := m.apply(ctx, mig); err != nil {
			return fmt.Errorf("migration %03d_%s: %w", mig.Version, mig.Name, err)
		}
		m.logger.Info("Migration applied",
			zap.Int("version", mig.Version),
			zap.String("name", mig.Name))
		count++
	}

	m.logger.Info("Schema up to date",
		zap.Int("known", len(all)),
		zap.Int("applied", count))
	return nil
}

func (m *Migrator) applied(ctx context.Context) (map[int]bool, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out[v] = true
	}
	return out, rows.Err()
}

func (m *Migrator) apply(ctx context.Context, mig Migration) (err error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, mig.SQL); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, name) VALUES (?, ?)`, mig.Version, mig.Name); err != nil {
		return err
	}
	return tx.Commit()
}

// LoadMigrations collects the .sql files of fsys sorted by their numeric
// prefix. Other files are ignored; a missing prefix or a repeated version
// is an error.
func LoadMigrations(fsys fs.FS) ([]Migration, error) {
	byVersion := make(map[int]Migration)

	walk := func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || path.Ext(p) != ".sql" {
			return err
		}

		base := strings.TrimSuffix(path.Base(p), ".sql")
		prefix, name, _ := strings.Cut(base, "_")
		version, convErr := strconv.Atoi(prefix)
		if convErr != nil {
			return fmt.Errorf("migration %s has no numeric version prefix", p)
		}
		if prev, dup := byVersion[version]; dup {
			return fmt.Errorf("version %d used by both %s and %s", version, prev.Name, base)
		}

		body, readErr := fs.ReadFile(fsys, p)
		if readErr != nil {
			return fmt.Errorf("read %s: %w", p, readErr)
		}
		byVersion[version] = Migration{Version: version, Name: name, SQL: string(body)}
		return nil
	}
	if err := fs.WalkDir(fsys, ".", walk); err != nil {
		return nil, err
	}

	out := make([]Migration, 0, len(byVersion))
	for _, mig := range byVersion {
		out = append(out, mig)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}
