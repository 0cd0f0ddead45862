package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/verigate/verigate/internal/domain"
	"github.com/verigate/verigate/internal/usecase"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development; restrict in production
	},
}

// WebSocketHandler streams record transitions for a correlation id until the
// record turns terminal. Read-only; an alternative to holding a long-poll.
type WebSocketHandler struct {
	statusUC *usecase.GetStatusUsecase
	logger   *zap.Logger
}

// NewWebSocketHandler creates a new WebSocketHandler.
func NewWebSocketHandler(statusUC *usecase.GetStatusUsecase, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		statusUC: statusUC,
		logger:   logger,
	}
}

// Stream handles GET /api/v1/status/:correlationId/stream (WebSocket upgrade)
func (h *WebSocketHandler) Stream(c *gin.Context) {
	id := c.Param("correlationId")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	h.logger.Debug("WebSocket connection opened", zap.String("correlation_id", id))

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		rec, err := h.statusUC.Execute(id)
		if err != nil {
			if errors.Is(err, domain.ErrRecordNotFound) {
				conn.WriteJSON(gin.H{"error": "Record not found"})
				return
			}
			conn.WriteJSON(gin.H{"error": "Internal error"})
			return
		}

		if err := conn.WriteJSON(rec); err != nil {
			h.logger.Debug("WebSocket write failed (client disconnected)", zap.Error(err))
			return
		}

		// Stop streaming once the record reaches a terminal state
		if rec.Status.IsTerminal() {
			h.logger.Debug("Record reached terminal state, closing WebSocket", zap.String("correlation_id", id))
			return
		}
	}
}
