// Package retry re-runs store statements that fail because the database is
// briefly unavailable: a SQLite file held by another writer, or a Postgres
// serialization conflict, lock timeout or dropped connection.
package retry

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/loykin/crawlsend/internal/common"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Policy bounds how often and how long a statement is retried.
type Policy struct {
	Attempts   int           // total tries, including the first
	Backoff    time.Duration // wait after the first failure, doubled after each further one
	MaxBackoff time.Duration
}

// DefaultPolicy is used by the store. The SQLite busy_timeout already waits
// inside the driver, so a few short retries are enough on top of it.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:   4,
		Backoff:    50 * time.Millisecond,
		MaxBackoff: time.Second,
	}
}

func (p Policy) delay(failures int) time.Duration {
	d := p.Backoff
	for i := 1; i < failures && d < p.MaxBackoff; i++ {
		d *= 2
	}
	return min(d, p.MaxBackoff)
}

// Postgres SQLSTATE codes worth another try.
var transientPgCodes = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
	"57P03": true, // cannot_connect_now
	"53300": true, // too_many_connections
}

// Transient reports whether err is a temporary database condition. A
// cancelled or expired context is never transient.
func Transient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
		return false
	}

	var pe *pgconn.PgError
	if errors.As(err, &pe) {
		return transientPgCodes[pe.Code] || strings.HasPrefix(pe.Code, "08")
	}

	return errors.Is(err, driver.ErrBadConn) || pgconn.SafeToRetry(err)
}

// Do runs op until it succeeds, fails with an error that is not Transient,
// runs out of attempts, or ctx is done. Errors that are not transient are
// returned as is, so callers can still match sql.ErrNoRows.
func Do[T any](ctx context.Context, p Policy, op func() (T, error)) (T, error) {
	attempts := max(p.Attempts, 1)
	log := common.GetLogger().WithComponent("store")

	var zero T
	for failures := 1; ; failures++ {
		out, err := op()
		if err == nil {
			if failures > 1 {
				log.Debug("statement succeeded after retry", "attempts", failures)
			}
			return out, nil
		}
		if !Transient(err) {
			return zero, err
		}
		if failures == attempts {
			log.Warn("statement failed, giving up", "error", err, "attempts", failures)
			return zero, fmt.Errorf("database busy after %d attempts: %w", failures, err)
		}

		wait := p.delay(failures)
		log.Debug("database busy, retrying", "error", err, "attempt", failures, "wait", wait)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("retry cancelled: %w", errors.Join(ctx.Err(), err))
		case <-timer.C:
		}
	}
}

// Exec is Do for statements without a result.
func Exec(ctx context.Context, p Policy, op func() error) error {
	_, err := Do(ctx, p, func() (struct{}, error) {
		return struct{}{}, op()
	})
	return err
}
