package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/verigate/verigate/internal/domain"
	"github.com/verigate/verigate/internal/upstream"
	"github.com/verigate/verigate/internal/waitlist"
)

// SubmitVerificationUsecase handles a long-poll verification submission: it
// parks the caller until the upstream callback resolves it or the wait budget
// elapses.
type SubmitVerificationUsecase struct {
	registry  *waitlist.Registry
	submitter upstream.Submitter
	waitFor   time.Duration
	logger    *zap.Logger
}

// NewSubmitVerificationUsecase creates a new SubmitVerificationUsecase.
// waitFor is the long-poll timeout budget per request.
func NewSubmitVerificationUsecase(registry *waitlist.Registry, submitter upstream.Submitter, waitFor time.Duration, logger *zap.Logger) *SubmitVerificationUsecase {
	return &SubmitVerificationUsecase{
		registry:  registry,
		submitter: submitter,
		waitFor:   waitFor,
		logger:    logger,
	}
}

// Execute registers the caller as a waiter and blocks until resolution. An
// already-terminal record resolves synchronously. When the request carries a
// payload it is forwarded to the upstream verifier only after the waiter is
// registered, so a callback can never arrive before the waiter exists; if the
// forward itself fails the waiter is torn down and the error is surfaced to
// this caller alone.
func (uc *SubmitVerificationUsecase) Execute(ctx context.Context, req *domain.VerifyRequest) (*domain.VerifyResponse, error) {
	if req.CorrelationID == "" {
		return nil, domain.ErrMissingCorrelationID
	}

	rec, w := uc.registry.Begin(req.CorrelationID, req.Expected)
	if w == nil {
		uc.logger.Debug("Record already terminal, resolving synchronously",
			zap.String("correlation_id", req.CorrelationID),
		)
		return waitlist.DeriveResponse(rec, req.Expected), nil
	}

	if len(req.Payload) > 0 {
		if err := uc.submitter.Submit(ctx, req.CorrelationID, req.Payload); err != nil {
			uc.registry.Deregister(w)
			uc.logger.Error("Upstream submission failed",
				zap.Error(err),
				zap.String("correlation_id", req.CorrelationID),
			)
			return nil, err
		}
	}

	timer := time.NewTimer(uc.waitFor)
	defer timer.Stop()

	select {
	case resp := <-w.Done():
		return resp, nil
	case <-timer.C:
		// Cancel loses to a concurrent flush; either way exactly one
		// resolution is waiting on the channel.
		uc.registry.Cancel(w)
		return <-w.Done(), nil
	case <-ctx.Done():
		uc.registry.Cancel(w)
		return nil, ctx.Err()
	}
}
