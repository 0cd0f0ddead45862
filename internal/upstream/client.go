package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/verigate/verigate/internal/domain"
)

const submitTimeout = 5 * time.Second

// Submitter forwards a verification payload to the external verifier, with
// this gateway's callback URL attached so the asynchronous result routes back
// to the webhook endpoint.
type Submitter interface {
	Submit(ctx context.Context, correlationID string, payload json.RawMessage) error
}

// submission is the wire shape posted to the verifier.
type submission struct {
	CorrelationID string          `json:"correlation_id"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	CallbackURL   string          `json:"callback_url"`
}

type httpSubmitter struct {
	client      *http.Client
	url         string
	callbackURL string
	logger      *zap.Logger
}

// NewHTTPSubmitter creates a Submitter that POSTs payloads to url. callbackURL
// is this gateway's own webhook address, included in every submission.
func NewHTTPSubmitter(url, callbackURL string, logger *zap.Logger) Submitter {
	return &httpSubmitter{
		client:      &http.Client{Timeout: submitTimeout},
		url:         url,
		callbackURL: callbackURL,
		logger:      logger,
	}
}

func (s *httpSubmitter) Submit(ctx context.Context, correlationID string, payload json.RawMessage) error {
	body, err := json.Marshal(submission{
		CorrelationID: correlationID,
		Payload:       payload,
		CallbackURL:   s.callbackURL,
	})
	if err != nil {
		return fmt.Errorf("upstream: marshal submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("upstream: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUpstreamSubmit, err)
	}
	defer resp.Body.Close()
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: verifier returned %d", domain.ErrUpstreamSubmit, resp.StatusCode)
	}

	s.logger.Debug("Submitted payload to verifier",
		zap.String("correlation_id", correlationID),
		zap.Int("status", resp.StatusCode),
	)
	return nil
}
