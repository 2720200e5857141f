package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"

	"github.com/flight-logger/backend/internal/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migration is one embedded schema step. Files are applied in name order,
// so names carry a zero-padded numeric prefix.
type migration struct {
	name string
	sql  string
}

// RunMigrations applies every embedded migration not yet recorded in the
// _migrations table. Each migration runs in its own transaction.
func RunMigrations(db *DB) error {
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS _migrations (
			name TEXT PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	applied, err := appliedMigrations(ctx, db)
	if err != nil {
		return fmt.Errorf("getting applied migrations: %w", err)
	}

	pending, err := embeddedMigrations()
	if err != nil {
		return fmt.Errorf("reading migration files: %w", err)
	}

	count := 0
	for _, m := range pending {
		if applied[m.name] {
			continue
		}

		logger.Info("applying migration", "name", m.name)
		err := db.Transaction(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, m.sql); err != nil {
				return fmt.Errorf("executing SQL: %w", err)
			}
			_, err := tx.ExecContext(ctx, `INSERT INTO _migrations (name) VALUES (?)`, m.name)
			return err
		})
		if err != nil {
			return fmt.Errorf("applying migration %s: %w", m.name, err)
		}
		count++
	}

	if count > 0 {
		logger.Info("database migrations complete", "applied", count)
	}
	return nil
}

func appliedMigrations(ctx context.Context, db *DB) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT name FROM _migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		applied[name] = true
	}
	return applied, rows.Err()
}

func embeddedMigrations() ([]migration, error) {
	files, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	out := make([]migration, 0, len(files))
	for _, file := range files {
		content, err := migrationsFS.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", file, err)
		}
		out = append(out, migration{name: path.Base(file), sql: string(content)})
	}
	return out, nil
}
