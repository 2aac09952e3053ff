package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/gilby125/seven-continents/config"
)

// PostgresDB represents a PostgreSQL database connection
type PostgresDB struct {
	db *sql.DB
}

// ConnString builds a lib/pq keyword/value DSN.
func ConnString(cfg config.PostgresConfig) string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)
}

// NewPostgresDB creates a new PostgreSQL database connection
func NewPostgresDB(ctx context.Context, cfg config.PostgresConfig) (*PostgresDB, error) {
	db, err := sql.Open("postgres", ConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	return &PostgresDB{db: db}, nil
}

// Close closes the database connection
func (p *PostgresDB) Close() error {
	return p.db.Close()
}

// GetDB returns the underlying database connection
func (p *PostgresDB) GetDB() *sql.DB {
	return p.db
}

// InitSchema applies the embedded migrations.
func (p *PostgresDB) InitSchema(ctx context.Context) error {
	return runMigrations(ctx, p.db)
}

// BeginTx starts a transaction.
func (p *PostgresDB) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return sqlTx{tx}, nil
}

// QueryRowContext runs a query expected to return at most one row.
func (p *PostgresDB) QueryRowContext(ctx context.Context, query string, args ...any) RowScanner {
	return p.db.QueryRowContext(ctx, query, args...)
}

type sqlTx struct {
	*sql.Tx
}

func (t sqlTx) QueryRowContext(ctx context.Context, query string, args ...any) RowScanner {
	return t.Tx.QueryRowContext(ctx, query, args...)
}

var (
	_ Conn = (*PostgresDB)(nil)
	_ Tx   = sqlTx{}
)

// PingContext verifies the connection is alive.
func (p *PostgresDB) PingContext(ctx context.Context) error {
	return p.db.PingContext(ctx)
}
