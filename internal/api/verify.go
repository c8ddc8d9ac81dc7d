package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ruralcare/docproof/internal/verify"
	"go.uber.org/zap"
)

// VerifyHandler handles document verification uploads.
type VerifyHandler struct {
	verifier *verify.Verifier
	logger   *zap.Logger
}

// NewVerifyHandler creates a new VerifyHandler.
func NewVerifyHandler(verifier *verify.Verifier, logger *zap.Logger) *VerifyHandler {
	return &VerifyHandler{verifier: verifier, logger: logger}
}

// Register registers verification routes on the given router group.
func (h *VerifyHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/verify", h.Verify)
}

// Verify handles POST /verify: a multipart upload with a "document" file
// part and an optional "subject_id" field. Always answers with a structured
// result; 503 signals that the ledger could not be consulted.
func (h *VerifyHandler) Verify(c *gin.Context) {
	file, _, err := c.Request.FormFile("document")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing document upload"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable document upload"})
		return
	}
	if len(data) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty document upload"})
		return
	}
	subjectID := c.PostForm("subject_id")

	res := h.verifier.Verify(c.Request.Context(), data, subjectID)
	RecordVerification(res.Method, res.Verified)

	if res.Status == verify.StatusUnavailable {
		c.JSON(http.StatusServiceUnavailable, res)
		return
	}
	c.JSON(http.StatusOK, res)
}
