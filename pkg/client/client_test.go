package client

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestVerify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/verify" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if r.FormValue("subject_id") != "subj-1" {
			t.Errorf("subject_id = %q", r.FormValue("subject_id"))
		}
		if _, _, err := r.FormFile("document"); err != nil {
			t.Errorf("missing document part: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","verified":true,"method":"exact-hash"}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := c.Verify(context.Background(), []byte("%PDF-1.4 test"), "subj-1")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !res.Verified || res.Method != "exact-hash" {
		t.Errorf("result = %+v", res)
	}
}

func TestVerifyServiceUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"service-unavailable","verified":false}`))
	}))
	defer srv.Close()

	c, _ := New(srv.URL)
	res, err := c.Verify(context.Background(), []byte("data"), "")
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("error = %v, want ErrServiceUnavailable", err)
	}
	if res == nil || res.Status != "service-unavailable" {
		t.Errorf("result = %+v", res)
	}
}

func TestCreateAnchor(t *testing.T) {
	doc := []byte("%PDF-1.4 rendered")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/anchors" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{
			"subject": {"id": "5f0f0a52-1111-2222-3333-444455556666"},
			"anchor": {"tx_ref": "0xabc", "state": "confirmed"},
			"stored_fingerprint": "ff00",
			"finalized": true,
			"document_base64": "` + base64.StdEncoding.EncodeToString(doc) + `"
		}`))
	}))
	defer srv.Close()

	c, _ := New(srv.URL)
	res, err := c.CreateAnchor(context.Background(), AnchorRequest{
		PatientName: "Ana", DoctorName: "Dr. Lima",
		PatientID: "p1", DoctorID: "d1",
		ItemNames: []string{"Amoxicillin 500mg"},
	})
	if err != nil {
		t.Fatalf("CreateAnchor: %v", err)
	}
	if res.SubjectID != "5f0f0a52-1111-2222-3333-444455556666" || !res.Finalized {
		t.Errorf("result = %+v", res)
	}
	if string(res.Document) != string(doc) {
		t.Error("document bytes not decoded")
	}
	if res.Anchor == nil || res.Anchor.TxRef != "0xabc" {
		t.Errorf("anchor = %+v", res.Anchor)
	}
}

func TestGetAnchorNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c, _ := New(srv.URL)
	if _, err := c.GetAnchor(context.Background(), "deadbeef"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestLedgerStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/ledger/status" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	c, _ := New(srv.URL)
	if err := c.LedgerStatus(context.Background()); err != nil {
		t.Fatalf("LedgerStatus: %v", err)
	}
}
