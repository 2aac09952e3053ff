package db

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	migrationsGlobPattern = "migrations/*.sql"
	// Stable advisory lock key so two planners never migrate at once.
	migrationsAdvisoryLockID int64 = 7170312457812035101
)

// Migrations returns the embedded migration file names in the order they
// are applied.
func Migrations() ([]string, error) {
	paths, err := fs.Glob(migrationsFS, migrationsGlobPattern)
	if err != nil {
		return nil, fmt.Errorf("glob migrations: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

// runMigrations applies embedded SQL migrations in filename order and
// records each in schema_migrations with its checksum.
func runMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, migrationsAdvisoryLockID); err != nil {
		return fmt.Errorf("acquire migrations advisory lock: %w", err)
	}
	defer func() {
		_, _ = db.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, migrationsAdvisoryLockID)
	}()

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			checksum TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	paths, err := Migrations()
	if err != nil {
		return err
	}

	for _, path := range paths {
		version := filepath.Base(path)
		sqlBytes, err := fs.ReadFile(migrationsFS, path)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", path, err)
		}
		checksum := sha256.Sum256(sqlBytes)
		checksumHex := hex.EncodeToString(checksum[:])

		var applied string
		err = db.QueryRowContext(ctx, `SELECT checksum FROM schema_migrations WHERE version = $1`, version).Scan(&applied)
		switch {
		case err == nil:
			if !strings.EqualFold(applied, checksumHex) {
				return fmt.Errorf("migration %s checksum mismatch (db=%s file=%s)", version, applied, checksumHex)
			}
			continue
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("check schema_migrations for %s: %w", version, err)
		}

		if err := applyOneMigration(ctx, db, version, checksumHex, string(sqlBytes)); err != nil {
			return err
		}
	}
	return nil
}

func applyOneMigration(ctx context.Context, db *sql.DB, version, checksum, migrationSQL string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration tx for %s: %w", version, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, migrationSQL); err != nil {
		return fmt.Errorf("execute migration %s: %w", version, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, checksum, applied_at) VALUES ($1, $2, NOW())`,
		version, checksum,
	); err != nil {
		return fmt.Errorf("record schema_migrations row for %s: %w", version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", version, err)
	}
	return nil
}
