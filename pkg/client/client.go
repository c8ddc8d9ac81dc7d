// Package client provides the Go SDK for the docproof verification service:
// anchoring new documents, verifying uploads, and querying the ledger.
package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// ErrNotFound is returned when the service reports a missing record or
// unanchored fingerprint.
var ErrNotFound = errors.New("not found")

// ErrServiceUnavailable is returned when the verification service cannot
// reach its ledger. The operation may be retried.
var ErrServiceUnavailable = errors.New("service unavailable")

// VerificationResult mirrors the service's verification response.
type VerificationResult struct {
	Status              string         `json:"status"`
	Verified            bool           `json:"verified"`
	Method              string         `json:"method"`
	FingerprintMatch    bool           `json:"fingerprint_match"`
	UploadedFingerprint string         `json:"uploaded_fingerprint"`
	OriginalFingerprint string         `json:"original_fingerprint,omitempty"`
	SubjectID           string         `json:"subject_id,omitempty"`
	MatchPercent        int            `json:"match_percent,omitempty"`
	LooksScanned        bool           `json:"looks_scanned"`
	Details             map[string]any `json:"details,omitempty"`
	Warnings            []string       `json:"warnings,omitempty"`
}

// AnchorRequest is the payload for CreateAnchor.
type AnchorRequest struct {
	PatientName string   `json:"patient_name"`
	DoctorName  string   `json:"doctor_name"`
	PatientID   string   `json:"patient_id"`
	DoctorID    string   `json:"doctor_id"`
	ItemNames   []string `json:"item_names"`
}

// AnchorRecord mirrors the service's anchor record.
type AnchorRecord struct {
	SubjectID        string     `json:"subject_id"`
	Fingerprint      string     `json:"fingerprint"`
	FinalFingerprint string     `json:"final_fingerprint,omitempty"`
	TxRef            string     `json:"tx_ref"`
	FinalTxRef       string     `json:"final_tx_ref,omitempty"`
	State            string     `json:"state"`
	ConfirmedAt      *time.Time `json:"confirmed_at,omitempty"`
}

// AnchorResult is the outcome of CreateAnchor, including the rendered
// document bytes.
type AnchorResult struct {
	SubjectID         string
	Anchor            *AnchorRecord
	StoredFingerprint string
	Finalized         bool
	FinalizeWarning   string
	Document          []byte
}

// Proof mirrors a ledger entry returned by GetAnchor.
type Proof struct {
	Fingerprint string            `json:"fingerprint"`
	TxRef       string            `json:"tx_ref"`
	Timestamp   time.Time         `json:"timestamp"`
	PartyHashA  string            `json:"party_hash_a,omitempty"`
	PartyHashB  string            `json:"party_hash_b,omitempty"`
	Sequence    int64             `json:"sequence,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Client is the docproof SDK entry point.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		c.httpClient = hc
		return nil
	}
}

// WithTimeout sets the request timeout on the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		c.httpClient.Timeout = d
		return nil
	}
}

// WithInsecureSkipVerify disables TLS certificate verification.
// Only use this in development.
func WithInsecureSkipVerify() Option {
	return func(c *Client) error {
		c.httpClient = &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec
			},
			Timeout: 30 * time.Second,
		}
		return nil
	}
}

// New creates a new Client connected to baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Verify uploads document bytes for verification. subjectID may be empty;
// the service then recovers it from the document text.
func (c *Client) Verify(ctx context.Context, documentBytes []byte, subjectID string) (*VerificationResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("document", "document.pdf")
	if err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}
	if _, err := part.Write(documentBytes); err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}
	if subjectID != "" {
		if err := mw.WriteField("subject_id", subjectID); err != nil {
			return nil, fmt.Errorf("build upload: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/verify", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result VerificationResult
	if err := decodeBody(resp, &result); err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusServiceUnavailable {
		return &result, ErrServiceUnavailable
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp.StatusCode, nil)
	}
	return &result, nil
}

// CreateAnchor issues and anchors a new document.
func (c *Client) CreateAnchor(ctx context.Context, req AnchorRequest) (*AnchorResult, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/anchors", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusServiceUnavailable {
		return nil, ErrServiceUnavailable
	}
	if resp.StatusCode != http.StatusCreated {
		return nil, apiError(resp.StatusCode, resp.Body)
	}

	var raw struct {
		Subject struct {
			ID string `json:"id"`
		} `json:"subject"`
		Anchor            *AnchorRecord `json:"anchor"`
		StoredFingerprint string        `json:"stored_fingerprint"`
		Finalized         bool          `json:"finalized"`
		FinalizeWarning   string        `json:"finalize_warning"`
		DocumentBase64    string        `json:"document_base64"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	doc, err := base64.StdEncoding.DecodeString(raw.DocumentBase64)
	if err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return &AnchorResult{
		SubjectID:         raw.Subject.ID,
		Anchor:            raw.Anchor,
		StoredFingerprint: raw.StoredFingerprint,
		Finalized:         raw.Finalized,
		FinalizeWarning:   raw.FinalizeWarning,
		Document:          doc,
	}, nil
}

// GetAnchor looks a fingerprint up on the ledger.
func (c *Client) GetAnchor(ctx context.Context, fingerprint string) (*Proof, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/anchors/"+fingerprint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotFound:
		return nil, ErrNotFound
	case http.StatusServiceUnavailable:
		return nil, ErrServiceUnavailable
	case http.StatusOK:
	default:
		return nil, apiError(resp.StatusCode, resp.Body)
	}
	var raw struct {
		Proof Proof `json:"proof"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &raw.Proof, nil
}

// LedgerStatus reports whether the service can reach its ledger.
func (c *Client) LedgerStatus(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/ledger/status", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusServiceUnavailable {
		return ErrServiceUnavailable
	}
	if resp.StatusCode != http.StatusOK {
		return apiError(resp.StatusCode, resp.Body)
	}
	return nil
}

func decodeBody(resp *http.Response, v any) error {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func apiError(status int, body io.Reader) error {
	if body != nil {
		var e struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(body).Decode(&e) == nil && e.Error != "" {
			return fmt.Errorf("server returned %d: %s", status, e.Error)
		}
	}
	return fmt.Errorf("server returned %d", status)
}
