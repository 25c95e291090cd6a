package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/loykin/crawlsend/internal/constants"
	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so stored times sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Dialect implements SQL dialect for SQLite
type Dialect struct{}

// NewDialect creates a new SQLite dialect
func NewDialect() *Dialect {
	return &Dialect{}
}

// GetPlaceholder returns SQLite-style placeholders (?)
func (s *Dialect) GetPlaceholder(int) string {
	return "?"
}

// ConvertTimeToStorage converts time to SQLite storage format (UTC text).
// A zero time is stored as NULL.
func (s *Dialect) ConvertTimeToStorage(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

// ConvertTimeFromStorage parses SQLite text storage back into a time.
func (s *Dialect) ConvertTimeFromStorage(val interface{}) time.Time {
	var str string
	switch v := val.(type) {
	case string:
		str = v
	case []byte:
		str = string(v)
	case time.Time:
		return v.UTC()
	default:
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, str)
	if err != nil {
		if t, err = time.Parse(time.RFC3339Nano, str); err != nil {
			return time.Time{}
		}
	}
	return t.UTC()
}

// Connect establishes a connection to SQLite with connection pooling
func (s *Dialect) Connect(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	db.SetMaxOpenConns(constants.DefaultSQLiteMaxConnections)
	db.SetMaxIdleConns(constants.DefaultSQLiteMaxIdleConns)
	db.SetConnMaxLifetime(constants.DefaultSQLiteLifetime)
	db.SetConnMaxIdleTime(constants.DefaultSQLiteIdleTime)

	return db, nil
}

// GetEnsureStatements returns SQLite-specific table creation statements
func (s *Dialect) GetEnsureStatements(settings, runs string) []string {
	return []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (name TEXT PRIMARY KEY, value TEXT NOT NULL, updated_at TEXT NOT NULL)", settings),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (id TEXT PRIMARY KEY, url TEXT NOT NULL, argv TEXT NOT NULL, status TEXT NOT NULL, exit_code INTEGER NOT NULL, error TEXT NULL, pid INTEGER NOT NULL DEFAULT 0, started_at TEXT NULL, ended_at TEXT NULL, requests INTEGER NULL, all_requests INTEGER NULL, domains INTEGER NULL, sub_domains INTEGER NULL)", runs),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_ended_at ON %s (ended_at)", runs, runs),
	}
}

// GetDriverName returns the driver name for logging
func (s *Dialect) GetDriverName() string {
	return "sqlite"
}
