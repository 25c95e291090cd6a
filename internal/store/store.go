// Package store persists operator settings and run history in SQLite or
// PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/loykin/crawlsend/internal/common"
	"github.com/loykin/crawlsend/internal/retry"
	"github.com/loykin/crawlsend/internal/store/postgresql"
	"github.com/loykin/crawlsend/internal/store/sqlite"
	"github.com/loykin/crawlsend/internal/util"
)

// ErrNotFound is returned when a setting or run does not exist.
var ErrNotFound = errors.New("not found")

// Dialect hides the SQL differences between drivers.
type Dialect interface {
	GetPlaceholder(index int) string
	ConvertTimeToStorage(t time.Time) interface{}
	ConvertTimeFromStorage(val interface{}) time.Time
	Connect(dsn string) (*sql.DB, error)
	GetEnsureStatements(settings, runs string) []string
	GetDriverName() string
}

// Store is a settings and run history database.
type Store struct {
	DB      *sql.DB
	dialect Dialect
	tables  TableNames
	retry   retry.Policy
	logger  *common.Logger
}

// Open connects using cfg and creates the tables when missing.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	var (
		dialect Dialect
		dsn     string
	)
	switch driver := util.TrimAndLower(cfg.Type); driver {
	case "", DriverSqlite:
		dialect = sqlite.NewDialect()
		dsn = cfg.SQLite.DSN()
	case DriverPostgresql, "postgres", "pg":
		dialect = postgresql.NewDialect()
		dsn = cfg.Postgres.BuildDSN()
		if dsn == "" {
			return nil, errors.New("postgres store requires dsn or host")
		}
	default:
		return nil, fmt.Errorf("unsupported store type %q", cfg.Type)
	}

	db, err := dialect.Connect(dsn)
	if err != nil {
		return nil, err
	}
	st := &Store{
		DB:      db,
		dialect: dialect,
		tables:  cfg.tables(),
		retry:   retry.DefaultPolicy(),
		logger:  common.GetLogger().WithStore(dialect.GetDriverName()),
	}
	if err := st.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	st.logger.Debug("store opened", "settings_table", st.tables.Settings, "runs_table", st.tables.Runs)
	return st, nil
}

// OpenSQLite is a shortcut for a SQLite store at path.
func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	return Open(ctx, Config{Type: DriverSqlite, SQLite: sqlite.Config{Path: path}})
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// Driver returns the dialect name.
func (s *Store) Driver() string { return s.dialect.GetDriverName() }

// EnsureSchema creates the tables when they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range s.dialect.GetEnsureStatements(s.tables.Settings, s.tables.Runs) {
		if _, err := retry.Do(ctx, s.retry, func() (sql.Result, error) {
			return s.DB.ExecContext(ctx, stmt)
		}); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// placeholders returns n comma separated placeholders starting at 1.
func (s *Store) placeholders(n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = s.dialect.GetPlaceholder(i + 1)
	}
	return strings.Join(ph, ", ")
}

func (s *Store) ph(i int) string { return s.dialect.GetPlaceholder(i) }
