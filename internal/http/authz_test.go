package handlers_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnonymousPagesRedirectToLogin(t *testing.T) {
	env := newTestEnv(t, nil)
	for _, path := range []string{"/", "/products", "/products/1/sell", "/sales", "/sales/1", "/reports/sales.xlsx", "/backup"} {
		resp := env.do(t, getRequest(path, ""))
		assert.Equal(t, http.StatusFound, resp.StatusCode, path)
		assert.Equal(t, "/login", resp.Header.Get("Location"), path)
	}

	// unknown sid behaves like no session
	resp := env.do(t, getRequest("/", "sid-unknown"))
	assert.Equal(t, http.StatusFound, resp.StatusCode)
}

func TestAnonymousAPIGets401AndIsLogged(t *testing.T) {
	env := newTestEnv(t, nil)

	var resp *http.Response
	entries := captureLogs(t, func() {
		resp = env.do(t, getRequest("/api/v1/chart-data", ""))
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "login required", body["error"])

	e, ok := findLog(entries, "access.denied.api")
	require.True(t, ok, "expected access.denied.api log")
	assert.Equal(t, "security", e.Kind)

	resp = env.do(t, jsonRequest(http.MethodPost, "/api/v1/sales", "", map[string]any{"product_id": 1, "quantity": 1}))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHealthIsPublic(t *testing.T) {
	env := newTestEnv(t, nil)
	resp := env.do(t, getRequest("/healthz", ""))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestIdleSessionRedirectsWithNotice(t *testing.T) {
	env := newTestEnv(t, nil)
	sid := env.session(t)

	_, err := env.db.Exec(`UPDATE sessions SET last_seen = '2020-01-01T00:00:00Z' WHERE id = ?`, sid)
	require.NoError(t, err)

	var resp *http.Response
	entries := captureLogs(t, func() {
		resp = env.do(t, getRequest("/products", sid))
	})
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login?expired=1", resp.Header.Get("Location"))
	_, ok := findLog(entries, "session.expired")
	assert.True(t, ok, "expected session.expired log")

	resp = env.do(t, getRequest("/login?expired=1", ""))
	assert.Contains(t, readBody(t, resp), "Your session expired")

	// the session was closed, so the API sees no login at all
	resp = env.do(t, getRequest("/api/v1/chart-data", sid))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
