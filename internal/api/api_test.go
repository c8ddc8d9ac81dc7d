package api_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/ruralcare/docproof/internal/anchor"
	"github.com/ruralcare/docproof/internal/api"
	"github.com/ruralcare/docproof/internal/document"
	"github.com/ruralcare/docproof/internal/fingerprint"
	"github.com/ruralcare/docproof/internal/ocr"
	"github.com/ruralcare/docproof/internal/pdf"
	"github.com/ruralcare/docproof/internal/record"
	"github.com/ruralcare/docproof/internal/verify"
	"go.uber.org/zap"
)

type env struct {
	router *gin.Engine
	store  *record.MemoryRepository
	ledger *anchor.LevelDBLedger
	svc    *anchor.Service
}

func setup(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ledger, err := anchor.OpenMem()
	if err != nil {
		t.Fatalf("OpenMem: %v", err)
	}
	t.Cleanup(func() { ledger.Close() })
	store := record.NewMemoryRepository()
	renderer := &document.PrescriptionRenderer{Network: "polygon-amoy"}
	svc := anchor.NewService(ledger, store, renderer, anchor.ConfirmationPolicy{}, zap.NewNop())
	engine := fingerprint.New(ocr.Noop{}, fingerprint.Policy{}, zap.NewNop())
	verifier := verify.New(engine, ledger, store, verify.Policy{}, zap.NewNop())

	r := gin.New()
	v1 := r.Group("/api/v1")
	api.NewVerifyHandler(verifier, zap.NewNop()).Register(v1)
	api.NewAnchorHandler(svc, store, zap.NewNop()).Register(v1)
	return &env{router: r, store: store, ledger: ledger, svc: svc}
}

func uploadDocument(t *testing.T, router *gin.Engine, data []byte, subjectID string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("document", "upload.pdf")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	part.Write(data)
	if subjectID != "" {
		mw.WriteField("subject_id", subjectID)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/verify", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func issueViaAPI(t *testing.T, e *env) (subjectID, fingerprintHex string, doc []byte) {
	t.Helper()
	payload := `{
		"patient_name": "Ana Souza",
		"doctor_name": "Dr. Carlos Lima",
		"patient_id": "pat-1",
		"doctor_id": "doc-1",
		"item_names": ["Amoxicillin 500mg"]
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/anchors", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Subject struct {
			ID string `json:"id"`
		} `json:"subject"`
		StoredFingerprint string `json:"stored_fingerprint"`
		Finalized         bool   `json:"finalized"`
		DocumentBase64    string `json:"document_base64"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Finalized {
		t.Error("anchor not finalized against a healthy ledger")
	}
	docBytes, err := base64.StdEncoding.DecodeString(resp.DocumentBase64)
	if err != nil {
		t.Fatalf("decode document: %v", err)
	}
	return resp.Subject.ID, resp.StoredFingerprint, docBytes
}

func TestCreateAnchorAndVerifyRoundTrip(t *testing.T) {
	e := setup(t)
	subjectID, storedFP, doc := issueViaAPI(t, e)
	if subjectID == "" || storedFP == "" || len(doc) == 0 {
		t.Fatal("incomplete issuance response")
	}
	if fingerprint.Fingerprint(doc) != storedFP {
		t.Fatal("served document does not hash to the stored fingerprint")
	}

	w := uploadDocument(t, e.router, doc, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var res verify.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if !res.Verified || res.Method != verify.MethodExactHash {
		t.Errorf("result = %+v, want verified exact-hash", res)
	}
}

func TestVerifyMissingUpload(t *testing.T) {
	e := setup(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/verify", nil)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestVerifyUnknownDocument(t *testing.T) {
	e := setup(t)
	b := pdf.NewBuilder()
	b.AddPage().Text(56, 780, 10, "unknown document")
	data, err := b.Bytes()
	if err != nil {
		t.Fatalf("build document: %v", err)
	}

	w := uploadDocument(t, e.router, data, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var res verify.Result
	json.Unmarshal(w.Body.Bytes(), &res)
	if res.Verified || res.Method != verify.MethodHashNotFound {
		t.Errorf("result = %+v, want hash-not-found", res)
	}
}

func TestGetAnchorByFingerprint(t *testing.T) {
	e := setup(t)
	proof, err := e.ledger.Write(context.Background(), anchor.Proof{Fingerprint: "abc123"})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/anchors/abc123", nil)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Proof anchor.Proof `json:"proof"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Proof.TxRef != proof.TxRef {
		t.Errorf("tx_ref = %s, want %s", resp.Proof.TxRef, proof.TxRef)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/anchors/missing", nil)
	w = httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestGetSubject(t *testing.T) {
	e := setup(t)
	subjectID, _, _ := issueViaAPI(t, e)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/subjects/"+subjectID, nil)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/subjects/not-a-uuid", nil)
	w = httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestLedgerStatus(t *testing.T) {
	e := setup(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/ledger/status", nil)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCreateAnchorValidation(t *testing.T) {
	e := setup(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/anchors", strings.NewReader(`{"patient_name": "x"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}
