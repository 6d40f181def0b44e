package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/findirfin/ringil/internal/pkg/constants"
	"github.com/findirfin/ringil/internal/pkg/dbutil"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Adapter owns the SQLite database backing the primary and secondary stores
type Adapter struct {
	db      *sql.DB
	wrapper *dbutil.Wrapper
}

// NewAdapter opens (creating if needed) the database at dbPath
func NewAdapter(dbPath string) (*Adapter, error) {
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=1&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// a single connection keeps :memory: databases coherent and serializes writers
	db.SetMaxOpenConns(constants.DatabaseMaxOpenConns)
	db.SetConnMaxLifetime(constants.DatabaseConnMaxLifetime)

	return &Adapter{
		db:      db,
		wrapper: dbutil.NewWrapper(db, constants.DatabaseTimeout),
	}, nil
}

// Migrate applies every embedded migration that has not been recorded yet
func (a *Adapter) Migrate(ctx context.Context) error {
	_, err := a.wrapper.ExecQuery(ctx, `
		CREATE TABLE IF NOT EXISTS `+constants.MigrationsTableName+` (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := a.appliedMigrations(ctx)
	if err != nil {
		return err
	}

	files, err := fs.Glob(migrationFiles, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("failed to read migration files: %w", err)
	}
	sort.Strings(files)

	for _, file := range files {
		version := strings.TrimSuffix(path.Base(file), ".sql")
		if applied[version] {
			continue
		}

		content, err := migrationFiles.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", file, err)
		}

		err = a.wrapper.WithTransaction(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, string(content)); err != nil {
				return fmt.Errorf("failed to execute migration %s: %w", version, err)
			}
			if _, err := tx.ExecContext(ctx, "INSERT INTO "+constants.MigrationsTableName+" (version) VALUES (?)", version); err != nil {
				return fmt.Errorf("failed to record migration %s: %w", version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// AppliedMigrations returns the recorded migration versions in order
func (a *Adapter) AppliedMigrations(ctx context.Context) ([]string, error) {
	applied, err := a.appliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	versions := make([]string, 0, len(applied))
	for v := range applied {
		versions = append(versions, v)
	}
	sort.Strings(versions)
	return versions, nil
}

func (a *Adapter) appliedMigrations(ctx context.Context) (map[string]bool, error) {
	applied := make(map[string]bool)
	err := a.wrapper.QueryWithTimeout(ctx, func(ctx context.Context, db dbutil.DB) error {
		rows, err := db.QueryContext(ctx, "SELECT version FROM "+constants.MigrationsTableName)
		if err != nil {
			return fmt.Errorf("failed to query applied migrations: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var version string
			if err := rows.Scan(&version); err != nil {
				return fmt.Errorf("failed to scan migration version: %w", err)
			}
			applied[version] = true
		}
		return rows.Err()
	})
	return applied, err
}

// Ping checks database connectivity
func (a *Adapter) Ping(ctx context.Context) error {
	return a.wrapper.PingWithTimeout(ctx)
}

// Close closes the database connection
func (a *Adapter) Close() error {
	return a.db.Close()
}
