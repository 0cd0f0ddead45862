package domain

import "errors"

var (
	// ErrRecordNotFound is returned when no record exists for a correlation id.
	ErrRecordNotFound = errors.New("record not found")

	// ErrMissingCorrelationID is returned when a request omits the correlation id.
	ErrMissingCorrelationID = errors.New("correlation_id is required")

	// ErrMissingOutcome is returned when a callback omits the valid field.
	ErrMissingOutcome = errors.New("valid is required")

	// ErrUpstreamSubmit is returned when the upstream verifier cannot be reached.
	ErrUpstreamSubmit = errors.New("failed to submit payload to upstream verifier")

	// ErrInFlight is returned to a follower whose leader has not finished
	// within the follower grace period.
	ErrInFlight = errors.New("request is already being processed, retry later")

	// ErrNotSerializable is returned when a request body cannot be rendered
	// into canonical form for fingerprinting.
	ErrNotSerializable = errors.New("request body is not serializable")

	// ErrShuttingDown is returned to waiters drained during process shutdown.
	ErrShuttingDown = errors.New("gateway is shutting down")
)
