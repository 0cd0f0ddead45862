package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/verigate/verigate/internal/domain"
	"github.com/verigate/verigate/internal/usecase"
)

// VerifyHandler handles long-poll verification submissions and status reads.
type VerifyHandler struct {
	submitUC *usecase.SubmitVerificationUsecase
	statusUC *usecase.GetStatusUsecase
	logger   *zap.Logger
}

// NewVerifyHandler creates a new VerifyHandler.
func NewVerifyHandler(submitUC *usecase.SubmitVerificationUsecase, statusUC *usecase.GetStatusUsecase, logger *zap.Logger) *VerifyHandler {
	return &VerifyHandler{
		submitUC: submitUC,
		statusUC: statusUC,
		logger:   logger,
	}
}

// Verify handles POST /api/v1/verify. The connection stays open until the
// callback resolves the correlation id or the long-poll budget elapses.
func (h *VerifyHandler) Verify(c *gin.Context) {
	var req domain.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body: " + err.Error(),
		})
		return
	}

	resp, err := h.submitUC.Execute(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrMissingCorrelationID):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, domain.ErrUpstreamSubmit):
			c.JSON(http.StatusBadGateway, gin.H{"error": "Upstream verifier unavailable"})
		case errors.Is(err, context.Canceled):
			// Client went away while parked; nothing left to answer.
			c.Abort()
		default:
			h.logger.Error("Verify failed", zap.Error(err), zap.String("correlation_id", req.CorrelationID))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Status handles GET /api/v1/status/:correlationId. Read-only.
func (h *VerifyHandler) Status(c *gin.Context) {
	id := c.Param("correlationId")

	rec, err := h.statusUC.Execute(id)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
			return
		}
		h.logger.Error("Status read failed", zap.Error(err), zap.String("correlation_id", id))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, rec)
}
