package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/loykin/crawlsend/internal/constants"
	"github.com/loykin/crawlsend/internal/retry"
	"github.com/loykin/crawlsend/internal/supervisor"
)

// RunRecord is one row of run history.
type RunRecord struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	Argv        []string  `json:"argv"`
	Status      string    `json:"status"`
	ExitCode    int       `json:"exit_code"`
	Error       string    `json:"error,omitempty"`
	PID         int       `json:"pid,omitempty"`
	StartedAt   time.Time `json:"started_at,omitzero"`
	EndedAt     time.Time `json:"ended_at,omitzero"`
	Requests    *int      `json:"requests,omitempty"`
	AllRequests *int      `json:"all_requests,omitempty"`
	Domains     *int      `json:"domains,omitempty"`
	SubDomains  *int      `json:"sub_domains,omitempty"`
}

// Duration is the wall time of the run, or zero if it never started.
func (r RunRecord) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.EndedAt.IsZero() {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}

// RecordFromResult converts a concluded run. The URL is the last argv token.
func RecordFromResult(res supervisor.RunResult) RunRecord {
	rec := RunRecord{
		ID:        res.ID,
		Argv:      res.Argv,
		Status:    string(res.Status),
		ExitCode:  res.ExitCode,
		Error:     res.Error,
		PID:       res.PID,
		StartedAt: res.StartedAt,
		EndedAt:   res.EndedAt,
	}
	if n := len(res.Argv); n > 0 {
		rec.URL = res.Argv[n-1]
	}
	if sum := res.Summary; sum != nil {
		rec.Requests = &sum.Requests
		rec.AllRequests = &sum.AllRequests
		rec.Domains = &sum.Domains
		rec.SubDomains = &sum.SubDomains
	}
	return rec
}

// RecordRun stores rec, replacing an earlier row with the same id.
func (s *Store) RecordRun(ctx context.Context, rec RunRecord) error {
	argv, err := json.Marshal(rec.Argv)
	if err != nil {
		return fmt.Errorf("encode argv: %w", err)
	}
	var errText interface{}
	if rec.Error != "" {
		errText = rec.Error
	}

	q := fmt.Sprintf(`INSERT INTO %s (id, url, argv, status, exit_code, error, pid, started_at, ended_at, requests, all_requests, domains, sub_domains)
		VALUES (%s)
		ON CONFLICT (id) DO UPDATE SET status = excluded.status, exit_code = excluded.exit_code, error = excluded.error,
			pid = excluded.pid, started_at = excluded.started_at, ended_at = excluded.ended_at, requests = excluded.requests,
			all_requests = excluded.all_requests, domains = excluded.domains, sub_domains = excluded.sub_domains`,
		s.tables.Runs, s.placeholders(13))

	_, err = retry.Do(ctx, s.retry, func() (sql.Result, error) {
		return s.DB.ExecContext(ctx, q,
			rec.ID, rec.URL, string(argv), rec.Status, rec.ExitCode, errText, rec.PID,
			s.dialect.ConvertTimeToStorage(rec.StartedAt), s.dialect.ConvertTimeToStorage(rec.EndedAt),
			nullInt(rec.Requests), nullInt(rec.AllRequests), nullInt(rec.Domains), nullInt(rec.SubDomains),
		)
	})
	if err != nil {
		return fmt.Errorf("record run %s: %w", rec.ID, err)
	}
	return nil
}

// ListRuns returns the most recent runs first. A limit <= 0 uses the default.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = constants.DefaultHistoryLimit
	}
	q := fmt.Sprintf(`SELECT %s FROM %s ORDER BY ended_at DESC, id LIMIT %s`, runColumns, s.tables.Runs, s.ph(1))
	rows, err := retry.Do(ctx, s.retry, func() (*sql.Rows, error) {
		return s.DB.QueryContext(ctx, q, limit)
	})
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []RunRecord
	for rows.Next() {
		rec, err := s.scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetRun returns one run, or ErrNotFound.
func (s *Store) GetRun(ctx context.Context, id string) (RunRecord, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE id = %s`, runColumns, s.tables.Runs, s.ph(1))
	rec, err := retry.Do(ctx, s.retry, func() (RunRecord, error) {
		return s.scanRun(s.DB.QueryRowContext(ctx, q, id))
	})
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return rec, err
}

const runColumns = `id, url, argv, status, exit_code, error, pid, started_at, ended_at, requests, all_requests, domains, sub_domains`

type scanner interface {
	Scan(dest ...interface{}) error
}

func (s *Store) scanRun(row scanner) (RunRecord, error) {
	var (
		rec                                 RunRecord
		argv                                string
		errText                             sql.NullString
		started, ended                      interface{}
		requests, allRequests, domains, sub sql.NullInt64
	)
	if err := row.Scan(&rec.ID, &rec.URL, &argv, &rec.Status, &rec.ExitCode, &errText, &rec.PID,
		&started, &ended, &requests, &allRequests, &domains, &sub); err != nil {
		return RunRecord{}, err
	}
	if err := json.Unmarshal([]byte(argv), &rec.Argv); err != nil {
		return RunRecord{}, fmt.Errorf("decode argv of run %s: %w", rec.ID, err)
	}
	rec.Error = errText.String
	rec.StartedAt = s.dialect.ConvertTimeFromStorage(started)
	rec.EndedAt = s.dialect.ConvertTimeFromStorage(ended)
	rec.Requests = intPtr(requests)
	rec.AllRequests = intPtr(allRequests)
	rec.Domains = intPtr(domains)
	rec.SubDomains = intPtr(sub)
	return rec, nil
}

func nullInt(p *int) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

// Observer returns a supervisor run observer that records every concluded
// run. Failures are logged and otherwise ignored.
func (s *Store) Observer() func(supervisor.RunResult) {
	return func(res supervisor.RunResult) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.RecordRun(ctx, RecordFromResult(res)); err != nil {
			s.logger.WithRun(res.ID).Error("record run failed", "error", err)
		}
	}
}
