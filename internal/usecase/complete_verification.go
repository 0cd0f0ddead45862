package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/verigate/verigate/internal/coalesce"
	"github.com/verigate/verigate/internal/domain"
	"github.com/verigate/verigate/internal/fingerprint"
	"github.com/verigate/verigate/internal/metrics"
	"github.com/verigate/verigate/internal/waitlist"
)

// CompleteVerificationUsecase handles inbound webhook deliveries. The flush is
// wrapped by the coalescer keyed on the callback's own fingerprint, so a
// retried delivery of the same payload replays the identical acknowledgement
// bytes and the flush itself runs at most once per distinct payload.
type CompleteVerificationUsecase struct {
	coalescer *coalesce.Coalescer
	registry  *waitlist.Registry
	logger    *zap.Logger
}

// NewCompleteVerificationUsecase creates a new CompleteVerificationUsecase.
func NewCompleteVerificationUsecase(coalescer *coalesce.Coalescer, registry *waitlist.Registry, logger *zap.Logger) *CompleteVerificationUsecase {
	return &CompleteVerificationUsecase{
		coalescer: coalescer,
		registry:  registry,
		logger:    logger,
	}
}

// Execute validates the callback, fingerprints it, and runs the flush under
// the coalescer. It returns the serialized acknowledgement bytes and the
// computed fingerprint (exposed to the caller for observability).
func (uc *CompleteVerificationUsecase) Execute(ctx context.Context, req *domain.CallbackRequest) ([]byte, string, error) {
	if req.CorrelationID == "" {
		return nil, "", domain.ErrMissingCorrelationID
	}
	if req.Valid == nil {
		return nil, "", domain.ErrMissingOutcome
	}

	fp, err := fingerprint.Compute("POST", "/webhook", req)
	if err != nil {
		return nil, "", err
	}

	body, replayed, err := uc.coalescer.Do(ctx, fp, func() ([]byte, error) {
		rec, drained, _ := uc.registry.Complete(req.CorrelationID, *req.Valid, req.Value)

		ack := domain.CallbackAck{
			CorrelationID: rec.CorrelationID,
			Status:        rec.Status,
			Waiters:       drained,
		}
		encoded, err := json.Marshal(ack)
		if err != nil {
			return nil, fmt.Errorf("marshal ack: %w", err)
		}
		return encoded, nil
	})
	if err != nil {
		return nil, fp, err
	}

	if replayed {
		metrics.WebhookReplaysTotal.Inc()
		metrics.CoalescedRequestsTotal.WithLabelValues("follower").Inc()
		uc.logger.Info("Webhook delivery replayed from cache",
			zap.String("correlation_id", req.CorrelationID),
			zap.String("fingerprint", fp),
		)
	} else {
		metrics.CoalescedRequestsTotal.WithLabelValues("leader").Inc()
	}

	return body, fp, nil
}
