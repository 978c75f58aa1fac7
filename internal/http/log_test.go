package handlers_test

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaleIsAudited(t *testing.T) {
	env := newTestEnv(t, nil)
	sid := env.session(t)
	p := env.product(t, "Widget", "10.00", 5)

	entries := captureLogs(t, func() {
		resp := env.do(t, jsonRequest(http.MethodPost, "/api/v1/sales", sid, map[string]any{"product_id": p.ID, "quantity": 2}))
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	})

	e, ok := findLog(entries, "sale.record")
	require.True(t, ok, "expected sale.record log")
	assert.Equal(t, "audit", e.Kind)
	assert.Equal(t, "info", e.Level)
	assert.Equal(t, "20.00", e.Fields["total"])
	assert.EqualValues(t, 3, e.Fields["remaining"])
}

func TestRejectedSaleIsLogged(t *testing.T) {
	env := newTestEnv(t, nil)
	sid := env.session(t)
	p := env.product(t, "Widget", "10.00", 1)

	entries := captureLogs(t, func() {
		env.do(t, jsonRequest(http.MethodPost, "/api/v1/sales", sid, map[string]any{"product_id": p.ID, "quantity": 2}))
	})
	e, ok := findLog(entries, "sale.rejected")
	require.True(t, ok, "expected sale.rejected log")
	assert.Equal(t, "warning", e.Level)
}

func TestLoginFailureIsSecurityLogged(t *testing.T) {
	env := newTestEnv(t, nil)
	tok := env.csrfToken(t)

	entries := captureLogs(t, func() {
		env.do(t, formRequest("/login", "", tok, url.Values{"username": {"admin"}, "password": {"bad"}}))
	})
	e, ok := findLog(entries, "auth.login.fail")
	require.True(t, ok, "expected auth.login.fail log")
	assert.Equal(t, "security", e.Kind)
	assert.Equal(t, "admin", e.Fields["username"])
	// the password never reaches the log
	for _, e := range entries {
		for _, v := range e.Fields {
			assert.NotEqual(t, "bad", v)
		}
	}
}

func TestProductChangesAreAudited(t *testing.T) {
	env := newTestEnv(t, nil)
	sid := env.session(t)
	tok := env.csrfToken(t)

	entries := captureLogs(t, func() {
		env.do(t, formRequest("/products", sid, tok, url.Values{"name": {"Widget"}, "price": {"1.00"}, "stock": {"3"}}))
		env.do(t, formRequest("/products/1/delete", sid, tok, url.Values{}))
	})
	_, ok := findLog(entries, "product.create")
	assert.True(t, ok, "expected product.create log")
	_, ok = findLog(entries, "product.delete")
	assert.True(t, ok, "expected product.delete log")
}
