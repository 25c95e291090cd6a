package store

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/loykin/crawlsend/internal/drain"
	"github.com/loykin/crawlsend/internal/supervisor"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// waitForPostgresDSN pings the DSN until it responds or timeout elapses (pgx stdlib).
func waitForPostgresDSN(dsn string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		db, err := sql.Open("pgx", dsn)
		if err == nil {
			pingErr := db.Ping()
			_ = db.Close()
			if pingErr == nil {
				return nil
			}
			lastErr = pingErr
		} else {
			lastErr = err
		}
		time.Sleep(500 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for postgres")
	}
	return lastErr
}

// Integration test with PostgreSQL via testcontainers
func TestPostgresStore_SettingsAndRuns(t *testing.T) {
	tc.SkipIfProviderIsNotHealthy(t)

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	req := tc.ContainerRequest{
		Image:        "postgres:16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "crawlsend_test",
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("5432/tcp"),
			wait.ForLog("database system is ready to accept connections"),
		),
	}
	pg, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		// Skip on CI envs that cannot run containers, rather than failing whole suite
		t.Skipf("skipping Postgres container test: %v", err)
		return
	}
	defer func() { _ = pg.Terminate(ctx) }()

	host, err := pg.Host(ctx)
	if err != nil {
		_ = pg.Terminate(ctx)
		t.Fatalf("container host: %v", err)
	}
	port, err := pg.MappedPort(ctx, "5432/tcp")
	if err != nil {
		_ = pg.Terminate(ctx)
		t.Fatalf("container port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://test:test@%s:%s/crawlsend_test?sslmode=disable", host, port.Port())

	// Ensure DB is accepting connections before opening the store
	if err := waitForPostgresDSN(dsn, 30*time.Second); err != nil {
		_ = pg.Terminate(ctx)
		t.Fatalf("postgres not ready: %v", err)
	}

	cfg := Config{Type: DriverPostgresql}
	cfg.Postgres.DSN = dsn
	st, err := Open(ctx, cfg)
	if err != nil {
		_ = pg.Terminate(ctx)
		t.Fatalf("Open(Postgres): %v", err)
	}
	defer func() { _ = st.Close() }()

	// idempotent
	if err := st.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}

	for _, tbl := range []string{"settings", "runs"} {
		row := st.DB.QueryRow(`SELECT 1 FROM information_schema.tables WHERE table_name = $1`, tbl)
		var one int
		if err := row.Scan(&one); err != nil {
			t.Fatalf("expected table %s to exist: %v", tbl, err)
		}
	}

	if err := st.SetSetting(ctx, "exePath", "/opt/crawlergo"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	if err := st.SetSetting(ctx, "exePath", "/opt/crawlergo2"); err != nil {
		t.Fatalf("SetSetting overwrite: %v", err)
	}
	if v, err := st.GetSetting(ctx, "exePath"); err != nil || v != "/opt/crawlergo2" {
		t.Fatalf("GetSetting = %q, %v", v, err)
	}

	now := time.Now()
	res := supervisor.RunResult{
		ID: "pg-run", Argv: []string{"crawlergo", "http://pg/"},
		Status: supervisor.StatusExited, StartedAt: now.Add(-time.Second), EndedAt: now,
		Summary: &drain.Summary{Requests: 3},
	}
	if err := st.RecordRun(ctx, RecordFromResult(res)); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	got, err := st.GetRun(ctx, "pg-run")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.URL != "http://pg/" || got.Requests == nil || *got.Requests != 3 || got.EndedAt.IsZero() {
		t.Fatalf("unexpected run: %+v", got)
	}
	runs, err := st.ListRuns(ctx, 5)
	if err != nil || len(runs) != 1 {
		t.Fatalf("ListRuns = %v, %v", runs, err)
	}
}
