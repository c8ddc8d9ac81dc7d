package anchor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPLedger talks to an external ledger node over its REST API.
type HTTPLedger struct {
	baseURL string
	client  *http.Client
}

// NewHTTPLedger creates a client for the ledger node at baseURL.
func NewHTTPLedger(baseURL string, timeout time.Duration) *HTTPLedger {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPLedger{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Write implements Ledger via POST /store.
func (l *HTTPLedger) Write(ctx context.Context, p Proof) (Proof, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return Proof{}, fmt.Errorf("marshal proof: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/store", bytes.NewReader(body))
	if err != nil {
		return Proof{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return Proof{}, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return Proof{}, fmt.Errorf("%w: node returned %d", ErrLedgerUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return Proof{}, fmt.Errorf("store rejected: status %d", resp.StatusCode)
	}
	var stored Proof
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&stored); err != nil {
		return Proof{}, fmt.Errorf("decode store response: %w", err)
	}
	return stored, nil
}

// Read implements Ledger via GET /verify/{fingerprint}.
func (l *HTTPLedger) Read(ctx context.Context, fingerprint string) (Proof, error) {
	u := l.baseURL + "/verify/" + url.PathEscape(fingerprint)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Proof{}, fmt.Errorf("build request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return Proof{}, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Proof{}, ErrNotFound
	case resp.StatusCode >= 500:
		return Proof{}, fmt.Errorf("%w: node returned %d", ErrLedgerUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return Proof{}, fmt.Errorf("verify failed: status %d", resp.StatusCode)
	}
	var p Proof
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&p); err != nil {
		return Proof{}, fmt.Errorf("decode verify response: %w", err)
	}
	return p, nil
}

// Ping implements Ledger via GET /health.
func (l *HTTPLedger) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health returned %d", ErrLedgerUnavailable, resp.StatusCode)
	}
	return nil
}
