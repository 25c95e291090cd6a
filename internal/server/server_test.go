package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/crawlsend/internal/logsink"
	"github.com/loykin/crawlsend/internal/sender"
	"github.com/loykin/crawlsend/internal/store"
	"github.com/loykin/crawlsend/internal/supervisor"
)

type fakeStatus struct {
	state supervisor.State
	cur   *supervisor.RunResult
}

func (f fakeStatus) State() supervisor.State { return f.state }

func (f fakeStatus) Current() (supervisor.RunResult, bool) {
	if f.cur == nil {
		return supervisor.RunResult{}, false
	}
	return *f.cur, true
}

type fakeHistory struct {
	runs []store.RunRecord
}

func (f *fakeHistory) ListRuns(_ context.Context, limit int) ([]store.RunRecord, error) {
	if limit < len(f.runs) {
		return f.runs[:limit], nil
	}
	return f.runs, nil
}

func (f *fakeHistory) GetRun(_ context.Context, id string) (store.RunRecord, error) {
	for _, r := range f.runs {
		if r.ID == id {
			return r, nil
		}
	}
	return store.RunRecord{}, store.ErrNotFound
}

// newSender returns a sender backed by a closed supervisor, so submitted
// runs conclude at once without spawning anything.
func newSender(t *testing.T) *sender.Sender {
	t.Helper()
	sup := supervisor.New(logsink.Discard)
	require.NoError(t, sup.Close(context.Background()))
	return sender.New(sender.Options{ExecutablePath: "crawlergo", CustomHeaders: `{"X-Op":"1"}`}, sup, logsink.Discard)
}

func newTestServer(t *testing.T, cfg Config, deps Deps) http.Handler {
	t.Helper()
	if deps.Sender == nil {
		deps.Sender = newSender(t)
	}
	if deps.Status == nil {
		deps.Status = fakeStatus{}
	}
	return New(cfg, deps).Handler()
}

func do(t *testing.T, h http.Handler, method, path, contentType, body string, hdr ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestSubmitRun_JSON(t *testing.T) {
	h := newTestServer(t, Config{}, Deps{})
	body := `{"method":"get","url":"https://example.com/","headers":[{"name":"Cookie","value":"a=1"}]}`
	w := do(t, h, http.MethodPost, "/api/v1/runs", "application/json", body)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var resp submitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ID)
	require.NotEmpty(t, resp.Argv)
	assert.Equal(t, "https://example.com/", resp.Argv[len(resp.Argv)-1])
	assert.Contains(t, strings.Join(resp.Argv, " "), `{\"Cookie\":\"a=1\",\"X-Op\":\"1\"}`)
}

func TestSubmitRun_RawText(t *testing.T) {
	h := newTestServer(t, Config{}, Deps{})
	raw := "GET /search?q=1 HTTP/1.1\r\nHost: example.com\r\nCookie: sid=9\r\n\r\n"
	w := do(t, h, http.MethodPost, "/api/v1/runs?scheme=http", "text/plain; charset=utf-8", raw)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var resp submitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "http://example.com/search?q=1", resp.Argv[len(resp.Argv)-1])
}

func TestSubmitRun_ValidationErrors(t *testing.T) {
	h := newTestServer(t, Config{}, Deps{})

	w := do(t, h, http.MethodPost, "/api/v1/runs", "application/json", `{"url":"ftp://example.com"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPost, "/api/v1/runs", "application/json", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPost, "/api/v1/runs", "text/plain", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRuns_History(t *testing.T) {
	hist := &fakeHistory{runs: []store.RunRecord{
		{ID: "r2", URL: "https://b/", Status: "exited"},
		{ID: "r1", URL: "https://a/", Status: "superseded"},
	}}
	h := newTestServer(t, Config{}, Deps{History: hist})

	w := do(t, h, http.MethodGet, "/api/v1/runs?limit=1", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Runs []store.RunRecord `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Runs, 1)
	assert.Equal(t, "r2", list.Runs[0].ID)

	w = do(t, h, http.MethodGet, "/api/v1/runs?limit=zero", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodGet, "/api/v1/runs/r1", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"superseded"`)

	w = do(t, h, http.MethodGet, "/api/v1/runs/missing", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRuns_HistoryDisabled(t *testing.T) {
	h := newTestServer(t, Config{}, Deps{})
	w := do(t, h, http.MethodGet, "/api/v1/runs", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestStatus(t *testing.T) {
	cur := &supervisor.RunResult{ID: "abc", Status: supervisor.StatusRunning, Argv: []string{"crawlergo", "https://a/"}}
	h := newTestServer(t, Config{}, Deps{Status: fakeStatus{state: supervisor.StateRunning, cur: cur}})

	w := do(t, h, http.MethodGet, "/api/v1/status", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"state":"running"`)
	assert.Contains(t, w.Body.String(), `"id":"abc"`)
	assert.NotContains(t, w.Body.String(), `"process"`)
}

func TestJWT(t *testing.T) {
	secret := "s3cret"
	h := newTestServer(t, Config{JWTSecret: secret}, Deps{})

	w := do(t, h, http.MethodGet, "/api/v1/status", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, h, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	tok, err := IssueToken([]byte(secret), "operator", time.Minute)
	require.NoError(t, err)
	w = do(t, h, http.MethodGet, "/api/v1/status", "", "", "Authorization", "Bearer "+tok)
	assert.Equal(t, http.StatusOK, w.Code)

	bad, err := IssueToken([]byte("other"), "operator", time.Minute)
	require.NoError(t, err)
	w = do(t, h, http.MethodGet, "/api/v1/status", "", "", "Authorization", "Bearer "+bad)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "operator",
		"exp": time.Now().Add(-time.Hour).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	w = do(t, h, http.MethodGet, "/api/v1/status", "", "", "Authorization", "Bearer "+expired)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestValidateClaims(t *testing.T) {
	cfg := VerifyConfig{RequireJTI: true, AllowedIssuer: "crawlsend", AllowedAudience: "api"}
	ok := map[string]interface{}{"jti": "1", "iss": "crawlsend", "aud": []interface{}{"x", "api"}}
	assert.NoError(t, validateClaims(ok, cfg))

	assert.EqualError(t, validateClaims(map[string]interface{}{"iss": "crawlsend"}, cfg), "token missing jti")
	assert.EqualError(t, validateClaims(map[string]interface{}{"jti": "1", "iss": "x"}, cfg), "invalid iss")
	assert.EqualError(t, validateClaims(map[string]interface{}{"jti": "1", "iss": "crawlsend", "aud": "web"}, cfg), "invalid aud")
}

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	start := time.Now()
	m.Observe(supervisor.RunResult{Status: supervisor.StatusExited, StartedAt: start, EndedAt: start.Add(3 * time.Second)})
	m.Observe(supervisor.RunResult{Status: supervisor.StatusFailed})

	h := newTestServer(t, Config{Metrics: true}, Deps{Metrics: m, Status: fakeStatus{state: supervisor.StateRunning}})
	w := do(t, h, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `crawlsend_runs_total{status="exited"} 1`)
	assert.Contains(t, body, `crawlsend_runs_total{status="failed"} 1`)
	assert.Contains(t, body, "crawlsend_run_duration_seconds_count 1")
	assert.Contains(t, body, "crawlsend_process_running 1")
}
