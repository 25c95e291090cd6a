package postgresql

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/loykin/crawlsend/internal/constants"
)

// Dialect implements SQL dialect for PostgreSQL
type Dialect struct{}

// NewDialect creates a new PostgreSQL dialect
func NewDialect() *Dialect {
	return &Dialect{}
}

// GetPlaceholder returns PostgreSQL-style placeholders ($1, $2, etc.)
func (p *Dialect) GetPlaceholder(index int) string {
	return fmt.Sprintf("$%d", index)
}

// ConvertTimeToStorage converts time to PostgreSQL storage format (native
// time.Time). A zero time is stored as NULL.
func (p *Dialect) ConvertTimeToStorage(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}

// ConvertTimeFromStorage converts PostgreSQL time storage to time.Time
func (p *Dialect) ConvertTimeFromStorage(val interface{}) time.Time {
	if t, ok := val.(*time.Time); ok && t != nil {
		return t.UTC()
	}
	if t, ok := val.(time.Time); ok {
		return t.UTC()
	}
	return time.Time{}
}

// Connect establishes a connection to PostgreSQL with connection pooling
func (p *Dialect) Connect(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL connection: %w", err)
	}

	db.SetMaxOpenConns(constants.DefaultPostgresMaxConnections)
	db.SetMaxIdleConns(constants.DefaultPostgresMaxIdleConns)
	db.SetConnMaxLifetime(constants.DefaultMaxConnLifetime)
	db.SetConnMaxIdleTime(constants.DefaultMaxIdleTime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL database: %w", err)
	}
	return db, nil
}

// GetEnsureStatements returns PostgreSQL-specific table creation statements
func (p *Dialect) GetEnsureStatements(settings, runs string) []string {
	return []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (name TEXT PRIMARY KEY, value TEXT NOT NULL, updated_at TIMESTAMPTZ NOT NULL)", settings),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (id TEXT PRIMARY KEY, url TEXT NOT NULL, argv TEXT NOT NULL, status TEXT NOT NULL, exit_code INTEGER NOT NULL, error TEXT NULL, pid INTEGER NOT NULL DEFAULT 0, started_at TIMESTAMPTZ NULL, ended_at TIMESTAMPTZ NULL, requests INTEGER NULL, all_requests INTEGER NULL, domains INTEGER NULL, sub_domains INTEGER NULL)", runs),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_ended_at ON %s (ended_at)", runs, runs),
	}
}

// GetDriverName returns the driver name for logging
func (p *Dialect) GetDriverName() string {
	return "postgresql"
}
