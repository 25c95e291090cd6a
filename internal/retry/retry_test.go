package retry

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"modernc.org/sqlite"
)

func fastPolicy(attempts int) Policy {
	return Policy{Attempts: attempts, Backoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}
}

func TestTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"no rows", sql.ErrNoRows, false},
		{"cancelled", context.Canceled, false},
		{"deadline wrapped", fmt.Errorf("list runs: %w", context.DeadlineExceeded), false},
		{"bad conn", driver.ErrBadConn, true},
		{"pg serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"pg deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"pg lock not available", &pgconn.PgError{Code: "55P03"}, true},
		{"pg connection failure", &pgconn.PgError{Code: "08006"}, true},
		{"pg wrapped", fmt.Errorf("record run r1: %w", &pgconn.PgError{Code: "40001"}), true},
		{"pg unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"pg undefined table", &pgconn.PgError{Code: "42P01"}, false},
		{"message only", errors.New("database is locked"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Transient(tt.err))
		})
	}
}

// lockedSQLite returns a second handle on a database file whose first handle
// holds an exclusive transaction, plus a func that commits it.
func lockedSQLite(t *testing.T) (*sql.DB, func()) {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "crawlsend.db")

	owner, err := sql.Open("sqlite", "file:"+path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = owner.Close() })
	_, err = owner.ExecContext(ctx, `CREATE TABLE settings (name TEXT PRIMARY KEY, value TEXT)`)
	require.NoError(t, err)

	conn, err := owner.Conn(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	_, err = conn.ExecContext(ctx, `BEGIN EXCLUSIVE`)
	require.NoError(t, err)

	other, err := sql.Open("sqlite", "file:"+path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = other.Close() })

	return other, func() { _, _ = conn.ExecContext(ctx, `COMMIT`) }
}

func TestTransient_SQLiteBusy(t *testing.T) {
	db, unlock := lockedSQLite(t)
	defer unlock()

	_, err := db.Exec(`INSERT INTO settings (name, value) VALUES ('exePath', '/opt/crawlergo')`)
	require.Error(t, err)

	var se *sqlite.Error
	require.ErrorAs(t, err, &se)
	assert.True(t, Transient(err), "locked database should be retried: %v", err)
}

func TestDo_WaitsForLockRelease(t *testing.T) {
	db, unlock := lockedSQLite(t)
	time.AfterFunc(150*time.Millisecond, unlock)

	p := Policy{Attempts: 20, Backoff: 20 * time.Millisecond, MaxBackoff: 100 * time.Millisecond}
	res, err := Do(context.Background(), p, func() (sql.Result, error) {
		return db.Exec(`INSERT INTO settings (name, value) VALUES ('exePath', '/opt/crawlergo')`)
	})
	require.NoError(t, err)
	n, err := res.RowsAffected()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestDo_PermanentErrorReturnedAsIs(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(5), func() (string, error) {
		calls++
		return "", sql.ErrNoRows
	})
	assert.True(t, err == sql.ErrNoRows, "got %v", err)
	assert.Equal(t, 1, calls)
}

func TestDo_GivesUp(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(3), func() (int, error) {
		calls++
		return 0, &pgconn.PgError{Code: "40P01", Message: "deadlock detected"}
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "after 3 attempts")

	var pe *pgconn.PgError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "40P01", pe.Code)
}

func TestDo_CancelledWhileWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	calls := 0
	p := Policy{Attempts: 5, Backoff: time.Hour, MaxBackoff: time.Hour}
	_, err := Do(ctx, p, func() (int, error) {
		calls++
		return 0, driver.ErrBadConn
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, driver.ErrBadConn)
	assert.Equal(t, 1, calls)
}

func TestDo_ReturnsValue(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fastPolicy(3), func() (string, error) {
		calls++
		if calls == 1 {
			return "", &pgconn.PgError{Code: "40001"}
		}
		return "/usr/bin/chromium", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/chromium", got)
	assert.Equal(t, 2, calls)
}

func TestExec(t *testing.T) {
	calls := 0
	err := Exec(context.Background(), fastPolicy(0), func() error {
		calls++
		return driver.ErrBadConn
	})
	assert.ErrorIs(t, err, driver.ErrBadConn)
	assert.Equal(t, 1, calls, "a policy without attempts still runs once")
}

func TestPolicy_Delay(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, 50*time.Millisecond, p.delay(1))
	assert.Equal(t, 100*time.Millisecond, p.delay(2))
	assert.Equal(t, 200*time.Millisecond, p.delay(3))
	assert.Equal(t, time.Second, p.delay(10))
}
