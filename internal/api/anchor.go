package api

import (
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ruralcare/docproof/internal/anchor"
	"github.com/ruralcare/docproof/internal/record"
	"go.uber.org/zap"
)

// AnchorHandler handles document issuance and ledger lookups.
type AnchorHandler struct {
	svc    *anchor.Service
	store  record.Repository
	logger *zap.Logger
}

// NewAnchorHandler creates a new AnchorHandler.
func NewAnchorHandler(svc *anchor.Service, store record.Repository, logger *zap.Logger) *AnchorHandler {
	return &AnchorHandler{svc: svc, store: store, logger: logger}
}

// Register registers anchoring routes on the given router group.
func (h *AnchorHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/anchors", h.CreateAnchor)
	rg.GET("/anchors/:fingerprint", h.GetAnchor)
	rg.GET("/subjects/:id", h.GetSubject)
	rg.GET("/ledger/status", h.LedgerStatus)
}

// CreateAnchorRequest is the payload for issuing and anchoring a document.
type CreateAnchorRequest struct {
	PatientName string   `json:"patient_name" binding:"required"`
	DoctorName  string   `json:"doctor_name" binding:"required"`
	PatientID   string   `json:"patient_id" binding:"required"`
	DoctorID    string   `json:"doctor_id" binding:"required"`
	ItemNames   []string `json:"item_names" binding:"required"`
}

// CreateAnchor handles POST /anchors. It creates a subject, runs the
// two-phase anchoring flow, and returns the anchored document.
func (h *AnchorHandler) CreateAnchor(c *gin.Context) {
	var req CreateAnchorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	subject := &record.Subject{
		PatientName: req.PatientName,
		DoctorName:  req.DoctorName,
		PatientID:   req.PatientID,
		DoctorID:    req.DoctorID,
		ItemNames:   req.ItemNames,
	}
	if err := h.store.Create(ctx, subject); err != nil {
		h.logger.Error("create subject", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create subject"})
		return
	}

	status, err := h.svc.Anchor(ctx, subject)
	if err != nil {
		RecordLedgerWrite(false)
		h.logger.Error("anchor subject", zap.String("subject_id", subject.ID.String()), zap.Error(err))
		if errors.Is(err, anchor.ErrLedgerUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ledger unavailable", "subject_id": subject.ID})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "anchoring failed"})
		return
	}
	RecordLedgerWrite(true)
	RecordAnchor(status.Finalized)

	c.JSON(http.StatusCreated, gin.H{
		"subject":            subject,
		"anchor":             status.Record,
		"stored_fingerprint": status.StoredFingerprint,
		"finalized":          status.Finalized,
		"finalize_warning":   status.FinalizeWarning,
		"document_base64":    base64.StdEncoding.EncodeToString(status.Document),
	})
}

// GetAnchor handles GET /anchors/:fingerprint by looking the fingerprint
// up on the ledger.
func (h *AnchorHandler) GetAnchor(c *gin.Context) {
	fingerprint := c.Param("fingerprint")
	proof, err := h.svc.LookupByFingerprint(c.Request.Context(), fingerprint)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"proof": proof})
	case errors.Is(err, anchor.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "fingerprint not anchored"})
	case errors.Is(err, anchor.ErrLedgerUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ledger unavailable"})
	default:
		h.logger.Error("ledger lookup", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
	}
}

// GetSubject handles GET /subjects/:id and returns the stored subject record.
func (h *AnchorHandler) GetSubject(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid subject ID"})
		return
	}
	subject, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, record.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "subject not found"})
			return
		}
		h.logger.Error("get subject", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"subject": subject})
}

// LedgerStatus handles GET /ledger/status and reports ledger reachability.
func (h *AnchorHandler) LedgerStatus(c *gin.Context) {
	if err := h.svc.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unreachable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
