package crawlsend

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/crawlsend/internal/store/sqlite"
	"github.com/loykin/crawlsend/internal/supervisor"
)

func TestLauncher_FailedSpawnIsLoggedAndRecorded(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	storeCfg := StoreConfig{Type: DriverSqlite, SQLite: sqlite.Config{Path: filepath.Join(dir, "crawlsend.db")}}

	// A persisted setting overrides the configured executable.
	st, err := OpenStore(ctx, storeCfg)
	require.NoError(t, err)
	missing := filepath.Join(dir, "no-such-crawler")
	require.NoError(t, st.SetSetting(ctx, "exePath", missing))
	require.NoError(t, st.Close())

	var observed []RunResult
	l, err := New(ctx, Config{
		Options:   Options{ExecutablePath: "crawlergo", CustomHeaders: "X-Op: 1"},
		Log:       LogConfig{File: filepath.Join(dir, "crawl.log")},
		Store:     storeCfg,
		Observers: []func(RunResult){func(r RunResult) { observed = append(observed, r) }},
	})
	require.NoError(t, err)

	run, err := l.Send(&Request{Method: "GET", URL: "https://example.com/", Headers: []Header{{Name: "Cookie", Value: "a=1"}}})
	require.NoError(t, err)
	assert.Equal(t, missing, run.Argv[0])

	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	res, err := run.Wait(waitCtx)
	require.NoError(t, err)
	assert.Equal(t, supervisor.StatusFailed, res.Status)
	require.Len(t, observed, 1)

	rec, err := l.Store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "failed", rec.Status)
	assert.Equal(t, "https://example.com/", rec.URL)

	require.NoError(t, l.Close(ctx))

	data, err := os.ReadFile(filepath.Join(dir, "crawl.log"))
	require.NoError(t, err)
	log := string(data)
	assert.Contains(t, log, "[INFO] full command: "+missing)
	assert.Contains(t, log, `{\"Cookie\":\"a=1\",\"X-Op\":\"1\"}`)
	assert.Equal(t, 1, strings.Count(log, "[ERROR] execution error: "))
}

func TestLoadOptions_DisabledStore(t *testing.T) {
	base := Options{ExecutablePath: "x"}
	got, err := LoadOptions(context.Background(), StoreConfig{Disabled: true}, base)
	require.NoError(t, err)
	assert.Equal(t, base, got)

	_, err = OpenStore(context.Background(), StoreConfig{Disabled: true})
	assert.Error(t, err)
}

func TestFacadeHelpers(t *testing.T) {
	assert.Equal(t, []string{"-flag", "value with spaces", "-x"}, Tokenize(`-flag "value with spaces" -x`))
	assert.Equal(t, `{"Cookie":"b"}`, MergeHeaders([]Header{{Name: "Cookie", Value: "a"}}, "Cookie: b"))
	assert.Equal(t, "a b", DisplayCommand([]string{"a", "b"}))
}
