package invoicing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bodega/internal/config"
	"bodega/internal/domain"
)

func newTestClient(t *testing.T, h http.HandlerFunc, timeout time.Duration) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(config.InvoiceConfig{
		Enabled:       true,
		BaseURL:       srv.URL + "/",
		Token:         "tok-123",
		Timeout:       timeout,
		SeriesFactura: "F001",
		SeriesBoleta:  "B001",
	}), srv
}

func TestSubmitInvoiceSuccess(t *testing.T) {
	var gotAuth, gotPath string
	var gotDoc map[string]any
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotDoc)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":{"number":"F001-123","filename":"20123456789-01-F001-123"}}`))
	}, time.Second)

	ref, err := c.SubmitInvoice(context.Background(), sampleSale("20123456789"))
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok-123", gotAuth)
	assert.Equal(t, "/api/documents", gotPath)
	assert.Equal(t, "F001", gotDoc["serie_documento"])

	assert.Equal(t, "F001-123", ref.Number)
	assert.Equal(t, "F001", ref.Series)
	assert.Equal(t, "123", ref.Correlative)
	assert.Equal(t, srv.URL+"/print/document/20123456789-01-F001-123/a4", ref.URL)
}

func TestSubmitInvoiceFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"success":false}`},
		{"unauthorized", http.StatusUnauthorized, `nope`},
		{"success false", http.StatusOK, `{"success":false,"message":"RUC inválido"}`},
		{"missing number", http.StatusOK, `{"success":true,"data":{"number":""}}`},
		{"no data", http.StatusOK, `{"success":true}`},
		{"malformed", http.StatusOK, `{"success":tr`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}, time.Second)

			ref, err := c.SubmitInvoice(context.Background(), sampleSale("12345678"))
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrGateway))
			assert.Empty(t, ref.Number)

			var ge *domain.GatewayError
			require.True(t, errors.As(err, &ge))
			assert.NotEmpty(t, ge.Reason)
		})
	}
}

func TestErrorBodyTruncatedOnRuneBoundary(t *testing.T) {
	body := strings.Repeat("a", 199) + strings.Repeat("ñ", 50)
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(body))
	}, time.Second)

	_, err := c.SubmitInvoice(context.Background(), sampleSale(""))
	var ge *domain.GatewayError
	require.True(t, errors.As(err, &ge))
	require.Error(t, ge.Err)

	msg := ge.Err.Error()
	assert.True(t, utf8.ValidString(msg))
	assert.Equal(t, 200, utf8.RuneCountInString(msg))
	assert.True(t, strings.HasSuffix(msg, "añ"))

	assert.Equal(t, "empty body", snippet([]byte("  ")))
	assert.Equal(t, "a?b", snippet([]byte{'a', 0xff, 'b'}))
}

func TestSubmitInvoiceTimeout(t *testing.T) {
	release := make(chan struct{})
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, 50*time.Millisecond)
	defer close(release)

	_, err := c.SubmitInvoice(context.Background(), sampleSale(""))
	require.Error(t, err)
	var ge *domain.GatewayError
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, "timeout", ge.Reason)
}

func TestSubmitInvoiceUnreachable(t *testing.T) {
	c := NewClient(config.InvoiceConfig{BaseURL: "http://127.0.0.1:1", Token: "x", Timeout: time.Second})
	_, err := c.SubmitInvoice(context.Background(), sampleSale(""))
	assert.ErrorIs(t, err, domain.ErrGateway)
}
