package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ErrUnavailable is what callers match on; the two wrapped variants exist so
// logs can tell a dead gateway apart from a contract drift.
var (
	ErrUnavailable       = errors.New("payment gateway unavailable")
	ErrRequestFailed     = fmt.Errorf("gateway request failed: %w", ErrUnavailable)
	ErrMalformedResponse = fmt.Errorf("malformed gateway response: %w", ErrUnavailable)
)

type Client struct {
	baseURL   string
	secretKey string
	http      *http.Client
}

func NewClient(baseURL, secretKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		http:      &http.Client{Timeout: timeout},
	}
}

// CreateInvoice asks the gateway for a new invoice. It holds no local state:
// recording the returned id against the booking is the caller's job.
func (c *Client) CreateInvoice(ctx context.Context, req PaymentRequest) (*PaymentResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", ErrRequestFailed, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/invoices", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrRequestFailed, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(c.secretKey, "")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrRequestFailed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d: %s", ErrRequestFailed, resp.StatusCode, truncate(raw, 256))
	}

	normalized, err := normalize(raw)
	if err != nil {
		return nil, err
	}
	normalized.Raw = raw
	return normalized, nil
}

// invoicePayload accepts the field-name variants seen across provider API
// versions; normalize() collapses them.
type invoicePayload struct {
	ID              string      `json:"id"`
	ExternalID      string      `json:"external_id"`
	ExternalIDCamel string      `json:"externalId"`
	Status          string      `json:"status"`
	Amount          amountField `json:"amount"`
	Currency        string      `json:"currency"`
	InvoiceURL      string      `json:"invoice_url"`
	InvoiceURLCamel string      `json:"invoiceUrl"`
	PaymentURL      string      `json:"payment_url"`
}

// amountField tolerates both JSON numbers and quoted strings; some provider
// API versions serialize amounts as strings.
type amountField string

func (a *amountField) UnmarshalJSON(b []byte) error {
	*a = amountField(strings.Trim(string(b), `"`))
	return nil
}

func normalize(raw []byte) (*PaymentResponse, error) {
	var p invoicePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if p.ID == "" {
		return nil, fmt.Errorf("%w: missing invoice id", ErrMalformedResponse)
	}

	amount, err := parseAmount(string(p.Amount))
	if err != nil {
		return nil, fmt.Errorf("%w: amount %q", ErrMalformedResponse, string(p.Amount))
	}

	return &PaymentResponse{
		ID:          p.ID,
		ExternalRef: firstNonEmpty(p.ExternalID, p.ExternalIDCamel),
		Status:      p.Status,
		Amount:      amount,
		Currency:    p.Currency,
		InvoiceURL:  firstNonEmpty(p.InvoiceURL, p.InvoiceURLCamel, p.PaymentURL),
	}, nil
}

func parseAmount(s string) (int64, error) {
	if s == "" || s == "null" {
		return 0, nil
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		// amounts are minor-unit integers; a fraction means the provider and
		// this client disagree about the unit
		return 0, fmt.Errorf("fractional amount %q", s)
	}
	return int64(f), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
