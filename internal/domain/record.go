package domain

import (
	"encoding/json"
	"time"
)

// Status represents the lifecycle state of a verification record.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusRejected  Status = "rejected"
)

// IsTerminal returns true if the status represents a final state.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

// Record is the shared outcome of one logical verification, keyed by
// correlation id. It is written once per terminal transition and read by any
// number of waiters; after it turns terminal it never changes again.
type Record struct {
	CorrelationID string     `json:"correlation_id"`
	Status        Status     `json:"status"`
	Value         string     `json:"value,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
}

// VerifyRequest is an incoming long-poll verification submission.
type VerifyRequest struct {
	CorrelationID string          `json:"correlation_id"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	Expected      string          `json:"expected,omitempty"`
}

// VerifyResponse is delivered to each waiter when its verification resolves,
// either by a callback or by the long-poll timeout.
type VerifyResponse struct {
	CorrelationID string `json:"correlation_id"`
	Status        Status `json:"status"`
	Value         string `json:"value,omitempty"`
	Reason        string `json:"reason,omitempty"`
	TimedOut      bool   `json:"timed_out,omitempty"`
	WaitedMs      int64  `json:"waited_ms,omitempty"`
}

// CallbackRequest is the payload of an inbound webhook delivery from the
// upstream verifier. Valid is a pointer so a missing field is distinguishable
// from an explicit false.
type CallbackRequest struct {
	CorrelationID string `json:"correlation_id"`
	Valid         *bool  `json:"valid"`
	Value         string `json:"value,omitempty"`
}

// CallbackAck acknowledges a webhook delivery. Its serialized bytes are cached
// so retried deliveries of the same payload replay the identical body.
type CallbackAck struct {
	CorrelationID string `json:"correlation_id"`
	Status        Status `json:"status"`
	Waiters       int    `json:"waiters_resolved"`
}
