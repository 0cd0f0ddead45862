package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/verigate/verigate/internal/coalesce"
	"github.com/verigate/verigate/internal/domain"
	"github.com/verigate/verigate/internal/store"
	mockupstream "github.com/verigate/verigate/internal/upstream/mock"
	"github.com/verigate/verigate/internal/usecase"
	"github.com/verigate/verigate/internal/waitlist"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupTestRouter(waitFor time.Duration) (*gin.Engine, *mockupstream.MockSubmitter) {
	logger := zap.NewNop()
	records := store.NewRecordStore()
	registry := waitlist.NewRegistry(records, logger)
	submitter := mockupstream.NewMockSubmitter()
	coalescer := coalesce.New(store.NewIdempotencyCache(), store.NewLockTable(), coalesce.Options{
		IdempotencyTTL: time.Minute,
		LockTTL:        time.Minute,
		PollInterval:   5 * time.Millisecond,
		Grace:          200 * time.Millisecond,
	}, logger)

	submitUC := usecase.NewSubmitVerificationUsecase(registry, submitter, waitFor, logger)
	webhookUC := usecase.NewCompleteVerificationUsecase(coalescer, registry, logger)
	statusUC := usecase.NewGetStatusUsecase(records, logger)

	router := gin.New()
	verifyHandler := NewVerifyHandler(submitUC, statusUC, logger)
	webhookHandler := NewWebhookHandler(webhookUC, logger)

	router.POST("/api/v1/verify", verifyHandler.Verify)
	router.POST("/api/v1/webhook", webhookHandler.Deliver)
	router.GET("/api/v1/status/:correlationId", verifyHandler.Status)

	return router, submitter
}

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestVerifyHandler_MissingCorrelationID(t *testing.T) {
	router, _ := setupTestRouter(time.Second)

	w := doJSON(router, http.MethodPost, "/api/v1/verify", map[string]any{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestVerifyHandler_ResolvedByWebhook(t *testing.T) {
	router, _ := setupTestRouter(5 * time.Second)

	go func() {
		time.Sleep(30 * time.Millisecond)
		w := doJSON(router, http.MethodPost, "/api/v1/webhook", map[string]any{
			"correlation_id": "p1",
			"valid":          true,
			"value":          "X",
		})
		if w.Code != http.StatusOK {
			t.Errorf("webhook expected 200, got %d: %s", w.Code, w.Body.String())
		}
	}()

	w := doJSON(router, http.MethodPost, "/api/v1/verify", map[string]any{
		"correlation_id": "p1",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp domain.VerifyResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Status != domain.StatusCompleted || resp.Value != "X" {
		t.Errorf("unexpected resolution: %+v", resp)
	}

	// The status read returns the same terminal record.
	statusW := doJSON(router, http.MethodGet, "/api/v1/status/p1", nil)
	if statusW.Code != http.StatusOK {
		t.Fatalf("status expected 200, got %d", statusW.Code)
	}
	var rec domain.Record
	if err := json.Unmarshal(statusW.Body.Bytes(), &rec); err != nil {
		t.Fatalf("failed to unmarshal record: %v", err)
	}
	if rec.Status != domain.StatusCompleted || rec.Value != "X" {
		t.Errorf("status read disagrees with resolution: %+v", rec)
	}
}

func TestVerifyHandler_ExpectedMismatch(t *testing.T) {
	router, _ := setupTestRouter(5 * time.Second)

	go func() {
		time.Sleep(30 * time.Millisecond)
		doJSON(router, http.MethodPost, "/api/v1/webhook", map[string]any{
			"correlation_id": "p2",
			"valid":          true,
			"value":          "X",
		})
	}()

	w := doJSON(router, http.MethodPost, "/api/v1/verify", map[string]any{
		"correlation_id": "p2",
		"expected":       "Y",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp domain.VerifyResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Status != domain.StatusRejected {
		t.Errorf("expected rejected, got %s", resp.Status)
	}
	if resp.Reason != "expected value mismatch" {
		t.Errorf("unexpected reason %q", resp.Reason)
	}

	// The stored record reflects the raw upstream outcome.
	statusW := doJSON(router, http.MethodGet, "/api/v1/status/p2", nil)
	var rec domain.Record
	_ = json.Unmarshal(statusW.Body.Bytes(), &rec)
	if rec.Status != domain.StatusCompleted || rec.Value != "X" {
		t.Errorf("shared record must keep the raw outcome: %+v", rec)
	}
}

func TestVerifyHandler_Timeout(t *testing.T) {
	router, _ := setupTestRouter(50 * time.Millisecond)

	w := doJSON(router, http.MethodPost, "/api/v1/verify", map[string]any{
		"correlation_id": "never",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp domain.VerifyResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if !resp.TimedOut {
		t.Error("expected timed_out response")
	}
	if resp.Status != domain.StatusPending {
		t.Errorf("expected pending status, got %s", resp.Status)
	}
	if resp.WaitedMs < 45 {
		t.Errorf("expected waited_ms near the 50ms budget, got %d", resp.WaitedMs)
	}
}

func TestVerifyHandler_UpstreamFailure(t *testing.T) {
	router, submitter := setupTestRouter(time.Second)
	submitter.SubmitFunc = func(_ context.Context, _ string, _ json.RawMessage) error {
		return domain.ErrUpstreamSubmit
	}

	w := doJSON(router, http.MethodPost, "/api/v1/verify", map[string]any{
		"correlation_id": "p4",
		"payload":        map[string]any{"doc": "abc"},
	})
	if w.Code != http.StatusBadGateway {
		t.Errorf("expected status 502, got %d: %s", w.Code, w.Body.String())
	}
}

func TestWebhookHandler_DuplicateDeliveryIdentical(t *testing.T) {
	router, _ := setupTestRouter(time.Second)

	body := map[string]any{
		"correlation_id": "c1",
		"valid":          true,
		"value":          "X",
	}

	first := doJSON(router, http.MethodPost, "/api/v1/webhook", body)
	if first.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", first.Code, first.Body.String())
	}
	second := doJSON(router, http.MethodPost, "/api/v1/webhook", body)
	if second.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", second.Code, second.Body.String())
	}

	if !bytes.Equal(first.Body.Bytes(), second.Body.Bytes()) {
		t.Errorf("ack bodies differ: %s vs %s", first.Body.String(), second.Body.String())
	}

	fp1 := first.Header().Get("X-Fingerprint")
	fp2 := second.Header().Get("X-Fingerprint")
	if fp1 == "" || fp1 != fp2 {
		t.Errorf("fingerprint headers differ or missing: %q vs %q", fp1, fp2)
	}
}

func TestWebhookHandler_KeyOrderCollapses(t *testing.T) {
	router, _ := setupTestRouter(time.Second)

	first := doJSON(router, http.MethodPost, "/api/v1/webhook", map[string]any{
		"correlation_id": "c2", "valid": true, "value": "X",
	})

	// Same payload, different field order on the wire.
	raw := []byte(`{"value":"X","valid":true,"correlation_id":"c2"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhook", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	second := httptest.NewRecorder()
	router.ServeHTTP(second, req)

	if first.Header().Get("X-Fingerprint") != second.Header().Get("X-Fingerprint") {
		t.Error("reordered callback fields must collapse to one fingerprint")
	}
	if !bytes.Equal(first.Body.Bytes(), second.Body.Bytes()) {
		t.Error("reordered callback must replay the identical ack bytes")
	}
}

func TestWebhookHandler_MissingOutcome(t *testing.T) {
	router, _ := setupTestRouter(time.Second)

	w := doJSON(router, http.MethodPost, "/api/v1/webhook", map[string]any{
		"correlation_id": "c1",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestStatusHandler_NotFound(t *testing.T) {
	router, _ := setupTestRouter(time.Second)

	w := doJSON(router, http.MethodGet, "/api/v1/status/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d: %s", w.Code, w.Body.String())
	}
}
