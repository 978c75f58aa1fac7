package invoicing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bodega/internal/config"
	"bodega/internal/domain"
)

const maxResponseBytes = 1 << 20

type Client struct {
	baseURL string
	token   string
	timeout time.Duration
	series  Series
	http    *http.Client
}

func NewClient(cfg config.InvoiceConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		timeout: timeout,
		series:  Series{Factura: cfg.SeriesFactura, Boleta: cfg.SeriesBoleta},
		http:    &http.Client{Timeout: timeout},
	}
}

type documentResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    *struct {
		Number   string `json:"number"`
		Filename string `json:"filename"`
	} `json:"data"`
}

// SubmitInvoice sends the sale to the partner. Every failure, including
// timeouts and malformed bodies, comes back as a *domain.GatewayError.
func (c *Client) SubmitInvoice(ctx context.Context, sale domain.Sale) (domain.InvoiceRef, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	doc := BuildDocument(sale, c.series)
	body, err := json.Marshal(doc)
	if err != nil {
		return domain.InvoiceRef{}, &domain.GatewayError{Reason: "encode document", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/documents", bytes.NewReader(body))
	if err != nil {
		return domain.InvoiceRef{}, &domain.GatewayError{Reason: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		reason := "request failed"
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			reason = "timeout"
		}
		return domain.InvoiceRef{}, &domain.GatewayError{Reason: reason, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return domain.InvoiceRef{}, &domain.GatewayError{Reason: "read response", Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.InvoiceRef{}, &domain.GatewayError{
			Reason: fmt.Sprintf("status %d", resp.StatusCode),
			Status: resp.StatusCode,
			Err:    errors.New(snippet(raw)),
		}
	}

	var parsed documentResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return domain.InvoiceRef{}, &domain.GatewayError{Reason: "malformed response", Status: resp.StatusCode, Err: err}
	}
	if !parsed.Success || parsed.Data == nil || strings.TrimSpace(parsed.Data.Number) == "" {
		msg := parsed.Message
		if msg == "" {
			msg = "no invoice number"
		}
		return domain.InvoiceRef{}, &domain.GatewayError{Reason: "rejected: " + msg, Status: resp.StatusCode}
	}

	return c.ref(doc.Series, parsed.Data.Number, parsed.Data.Filename), nil
}

func (c *Client) ref(series, number, filename string) domain.InvoiceRef {
	number = strings.TrimSpace(number)
	ref := domain.InvoiceRef{Number: number, Series: series, Correlative: number, Filename: filename}
	if s, corr, ok := strings.Cut(number, "-"); ok {
		ref.Series, ref.Correlative = s, corr
	}
	if filename != "" {
		ref.URL = c.DocumentURL(filename)
	}
	return ref
}

// DocumentURL is where the partner serves the printable A4 document.
func (c *Client) DocumentURL(filename string) string {
	return c.baseURL + "/print/document/" + url.PathEscape(filename) + "/a4"
}

func isTimeout(err error) bool {
	var ne interface{ Timeout() bool }
	return errors.As(err, &ne) && ne.Timeout()
}

func snippet(b []byte) string {
	s := strings.ToValidUTF8(strings.TrimSpace(string(b)), "?")
	if r := []rune(s); len(r) > 200 {
		s = string(r[:200])
	}
	if s == "" {
		s = "empty body"
	}
	return s
}
