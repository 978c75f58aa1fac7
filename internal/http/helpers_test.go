package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"bodega/internal/config"
	"bodega/internal/domain"
	"bodega/internal/http/handlers"
	applog "bodega/internal/log"
	"bodega/internal/repos"
	"bodega/internal/services"
)

const templatesDir = "../../web/templates"

type testEnv struct {
	app  *fiber.App
	db   *sqlx.DB
	deps *handlers.Deps
}

// newTestEnv builds the full app on an in-memory store with an admin
// account (admin / Passw0rd!).
func newTestEnv(t *testing.T, invoices services.InvoiceSubmitter) *testEnv {
	t.Helper()
	applog.SetOutput(io.Discard)
	db, err := repos.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, repos.SeedAdmin(db, "admin", "Passw0rd!"))

	cfg := config.Config{DBDSN: ":memory:", TemplatesDir: templatesDir, Location: time.UTC}
	deps := handlers.NewDeps(db, cfg, invoices)
	return &testEnv{app: handlers.NewApp(cfg, deps), db: db, deps: deps}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *http.Response {
	t.Helper()
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

// session binds a fresh sid to the admin user, skipping the login form.
func (e *testEnv) session(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	u, err := repos.NewUserRepo(e.db).ByUsername(ctx, "admin")
	require.NoError(t, err)
	sid := "sid-" + t.Name()
	require.NoError(t, repos.NewSessionRepo(e.db).Open(ctx, sid, u.ID, time.Now()))
	return sid
}

// csrfToken fetches the double-submit token from the login page.
func (e *testEnv) csrfToken(t *testing.T) string {
	t.Helper()
	resp := e.do(t, httptest.NewRequest(http.MethodGet, "/login", nil))
	tok := extractCookie(resp, "csrf_")
	require.NotEmpty(t, tok, "csrf token missing")
	return tok
}

func (e *testEnv) product(t *testing.T, name, price string, stock int) domain.Product {
	t.Helper()
	p, err := e.deps.ProductHandler.Catalog.Create(context.Background(), services.ProductInput{
		Name: name, Price: decimal.RequireFromString(price), Stock: stock,
	})
	require.NoError(t, err)
	return p
}

func (e *testEnv) stock(t *testing.T, id int64) int {
	t.Helper()
	var n int
	require.NoError(t, e.db.Get(&n, `SELECT stock FROM products WHERE id = ?`, id))
	return n
}

func extractCookie(resp *http.Response, name string) string {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func formRequest(target, sid, csrf string, values url.Values) *http.Request {
	if csrf != "" {
		values.Set("csrf", csrf)
	}
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if sid != "" {
		req.AddCookie(&http.Cookie{Name: "sid", Value: sid})
	}
	if csrf != "" {
		req.AddCookie(&http.Cookie{Name: "csrf_", Value: csrf})
	}
	return req
}

func jsonRequest(method, target, sid string, body any) *http.Request {
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	if sid != "" {
		req.AddCookie(&http.Cookie{Name: "sid", Value: sid})
	}
	return req
}

func getRequest(target, sid string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if sid != "" {
		req.AddCookie(&http.Cookie{Name: "sid", Value: sid})
	}
	return req
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

type logEntry struct {
	Level  string         `json:"level"`
	Action string         `json:"action"`
	Kind   string         `json:"kind"`
	Fields map[string]any `json:"fields"`
}

type lockedWriter struct {
	mu sync.Mutex
	w  bytes.Buffer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// captureLogs collects the JSON entries written while fn runs.
func captureLogs(t *testing.T, fn func()) []logEntry {
	t.Helper()
	buf := &lockedWriter{}
	old := applog.Output()
	applog.SetOutput(buf)
	defer applog.SetOutput(old)

	fn()

	var entries []logEntry
	for _, line := range strings.Split(strings.TrimSpace(buf.w.String()), "\n") {
		var e logEntry
		if err := json.Unmarshal([]byte(strings.TrimSpace(line)), &e); err == nil && e.Action != "" {
			entries = append(entries, e)
		}
	}
	return entries
}

func findLog(entries []logEntry, action string) (logEntry, bool) {
	for _, e := range entries {
		if e.Action == action {
			return e, true
		}
	}
	return logEntry{}, false
}
