package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/verigate/verigate/internal/domain"
	"github.com/verigate/verigate/internal/usecase"
)

const fingerprintHeader = "X-Fingerprint"

// WebhookHandler handles inbound callback deliveries from the upstream
// verifier. Deliveries are idempotent: a retried identical payload receives
// the identical acknowledgement bytes.
type WebhookHandler struct {
	webhookUC *usecase.CompleteVerificationUsecase
	logger    *zap.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(webhookUC *usecase.CompleteVerificationUsecase, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		webhookUC: webhookUC,
		logger:    logger,
	}
}

// Deliver handles POST /api/v1/webhook.
func (h *WebhookHandler) Deliver(c *gin.Context) {
	var req domain.CallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body: " + err.Error(),
		})
		return
	}

	ack, fp, err := h.webhookUC.Execute(c.Request.Context(), &req)
	if fp != "" {
		c.Header(fingerprintHeader, fp)
	}
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrMissingCorrelationID),
			errors.Is(err, domain.ErrMissingOutcome),
			errors.Is(err, domain.ErrNotSerializable):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, domain.ErrInFlight):
			// A concurrent identical delivery holds the leader lock; tell the
			// verifier to retry shortly.
			c.Header("Retry-After", "1")
			c.JSON(http.StatusAccepted, gin.H{"status": "processing"})
		default:
			h.logger.Error("Webhook delivery failed", zap.Error(err), zap.String("correlation_id", req.CorrelationID))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	c.Data(http.StatusOK, "application/json; charset=utf-8", ack)
}
