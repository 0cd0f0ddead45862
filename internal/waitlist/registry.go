// Package waitlist parks long-poll callers per correlation id until an
// external event resolves them. Flush and timeout race per waiter; whichever
// detaches the waiter first delivers its resolution, the other is a no-op.
package waitlist

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/verigate/verigate/internal/domain"
	"github.com/verigate/verigate/internal/metrics"
	"github.com/verigate/verigate/internal/store"
)

const reasonExpectedMismatch = "expected value mismatch"

// Registry owns the pending waiters per correlation id and drives the shared
// record store through its single terminal transition. All waiter mutation
// for one id happens under that id's entry lock, so registration can never
// race a concurrent flush into an orphaned waiter.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	closed  bool

	records *store.RecordStore
	logger  *zap.Logger
	now     func() time.Time
}

type entry struct {
	mu      sync.Mutex
	gone    bool
	waiters []*Waiter
}

// NewRegistry creates a registry over the given record store.
func NewRegistry(records *store.RecordStore, logger *zap.Logger) *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		records: records,
		logger:  logger,
		now:     time.Now,
	}
}

// lockedEntry returns the entry for id with its lock held, plus whether the
// registry has shut down. Entries removed by a concurrent flush are retried so
// callers never operate on a dead entry.
func (r *Registry) lockedEntry(id string) (*entry, bool) {
	for {
		r.mu.Lock()
		closed := r.closed
		e, ok := r.entries[id]
		if !ok {
			e = &entry{}
			r.entries[id] = e
		}
		r.mu.Unlock()

		e.mu.Lock()
		if e.gone {
			e.mu.Unlock()
			continue
		}
		return e, closed
	}
}

// dropIfIdle removes an entry that holds no waiters, keeping the map from
// accumulating husks for ids that resolved synchronously.
func (r *Registry) dropIfIdle(id string, e *entry) {
	r.mu.Lock()
	if r.entries[id] == e {
		e.mu.Lock()
		if len(e.waiters) == 0 {
			e.gone = true
			delete(r.entries, id)
		}
		e.mu.Unlock()
	}
	r.mu.Unlock()
}

// Begin registers interest in the outcome for id. If the record is already
// terminal the caller is resolved synchronously: the returned record is
// terminal and the waiter is nil. Otherwise the record is pending and the
// returned waiter must be awaited (and Cancel'ed on timeout).
func (r *Registry) Begin(id, expected string) (*domain.Record, *Waiter) {
	e, closed := r.lockedEntry(id)

	if rec, ok := r.records.Get(id); ok && rec.Status.IsTerminal() {
		e.mu.Unlock()
		r.dropIfIdle(id, e)
		return rec, nil
	}

	rec := r.records.EnsurePending(id)
	w := newWaiter(id, expected, r.now())

	if closed {
		// Shutdown already ran; resolve immediately rather than parking a
		// waiter nobody will ever flush.
		resp := r.timeoutResponse(rec, w)
		resp.Reason = domain.ErrShuttingDown.Error()
		w.resolve(resp)
		e.mu.Unlock()
		r.dropIfIdle(id, e)
		return rec, w
	}

	e.waiters = append(e.waiters, w)
	e.mu.Unlock()

	metrics.WaitersActive.Inc()
	r.logger.Debug("Waiter registered",
		zap.String("correlation_id", id),
		zap.String("waiter_id", w.ID.String()),
	)
	return rec, w
}

// Deregister detaches a just-registered waiter after a synchronous upstream
// submission failure, leaving no orphan behind. It reports whether the waiter
// was still registered.
func (r *Registry) Deregister(w *Waiter) bool {
	e, _ := r.lockedEntry(w.CorrelationID)
	removed := e.remove(w)
	e.mu.Unlock()

	if removed {
		metrics.WaitersActive.Dec()
		r.logger.Debug("Waiter deregistered",
			zap.String("correlation_id", w.CorrelationID),
			zap.String("waiter_id", w.ID.String()),
		)
	}
	return removed
}

// Complete applies the terminal outcome for id and atomically drains every
// registered waiter. Each waiter's response is derived from the shared record
// at flush time; an expected-value constraint that the outcome does not match
// downgrades that waiter alone. A callback for an already-terminal record is
// redundant: it is logged, late waiters are drained against the stored
// outcome, and the record itself is never overwritten.
func (r *Registry) Complete(id string, valid bool, value string) (*domain.Record, int, bool) {
	status := domain.StatusCompleted
	reason := ""
	if !valid {
		status = domain.StatusRejected
		reason = "verification rejected by upstream"
	}

	e, _ := r.lockedEntry(id)

	rec, changed := r.records.Resolve(id, status, value, reason)
	if !changed {
		r.logger.Info("Redundant callback for terminal record",
			zap.String("correlation_id", id),
			zap.String("status", string(rec.Status)),
		)
		metrics.RedundantCallbacksTotal.Inc()
	}

	drained := e.waiters
	e.waiters = nil
	e.gone = true
	e.mu.Unlock()

	r.mu.Lock()
	if r.entries[id] == e {
		delete(r.entries, id)
	}
	r.mu.Unlock()

	now := r.now()
	for _, w := range drained {
		resp := r.deriveResponse(rec, w, now)
		w.resolve(resp)
		metrics.WaitersActive.Dec()
		metrics.LongPollWaitSeconds.Observe(now.Sub(w.RegisteredAt).Seconds())
		metrics.VerificationsTotal.WithLabelValues(string(resp.Status)).Inc()
	}

	r.logger.Info("Flushed waiters",
		zap.String("correlation_id", id),
		zap.String("status", string(rec.Status)),
		zap.Int("waiters", len(drained)),
	)
	return rec, len(drained), changed
}

// Cancel detaches w on its timeout path and resolves it with the best-known
// record. It returns false when a concurrent flush already took the waiter;
// the caller then reads the flush resolution from the waiter channel instead.
func (r *Registry) Cancel(w *Waiter) bool {
	e, _ := r.lockedEntry(w.CorrelationID)
	if !e.remove(w) {
		e.mu.Unlock()
		r.dropIfIdle(w.CorrelationID, e)
		return false
	}

	rec, ok := r.records.Get(w.CorrelationID)
	if !ok {
		rec = &domain.Record{CorrelationID: w.CorrelationID, Status: domain.StatusPending}
	}
	w.resolve(r.timeoutResponse(rec, w))
	e.mu.Unlock()

	metrics.WaitersActive.Dec()
	metrics.VerificationsTotal.WithLabelValues("timeout").Inc()
	r.logger.Debug("Waiter timed out",
		zap.String("correlation_id", w.CorrelationID),
		zap.String("waiter_id", w.ID.String()),
	)
	return true
}

// Shutdown drains every in-flight waiter with a timed-out outcome so open
// long-poll connections are answered rather than dropped on process exit.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	r.closed = true
	snapshot := make(map[string]*entry, len(r.entries))
	for id, e := range r.entries {
		snapshot[id] = e
	}
	r.entries = make(map[string]*entry)
	r.mu.Unlock()

	total := 0
	for id, e := range snapshot {
		e.mu.Lock()
		drained := e.waiters
		e.waiters = nil
		e.gone = true
		e.mu.Unlock()

		rec, ok := r.records.Get(id)
		if !ok {
			rec = &domain.Record{CorrelationID: id, Status: domain.StatusPending}
		}
		for _, w := range drained {
			resp := r.timeoutResponse(rec, w)
			resp.Reason = domain.ErrShuttingDown.Error()
			w.resolve(resp)
			metrics.WaitersActive.Dec()
			total++
		}
	}

	if total > 0 {
		r.logger.Info("Drained waiters on shutdown", zap.Int("waiters", total))
	}
}

// ActiveWaiters reports the number of currently parked waiters.
func (r *Registry) ActiveWaiters() int {
	r.mu.Lock()
	entries := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.Unlock()

	total := 0
	for _, e := range entries {
		e.mu.Lock()
		total += len(e.waiters)
		e.mu.Unlock()
	}
	return total
}

// DeriveResponse computes one caller's view of a record. This is the one
// place a response may diverge from the shared record: a completed record
// whose value does not match the caller's expected constraint is downgraded
// to rejected for that caller alone, never in the stored outcome.
func DeriveResponse(rec *domain.Record, expected string) *domain.VerifyResponse {
	resp := &domain.VerifyResponse{
		CorrelationID: rec.CorrelationID,
		Status:        rec.Status,
		Value:         rec.Value,
		Reason:        rec.Reason,
	}
	if expected != "" && rec.Status == domain.StatusCompleted && rec.Value != expected {
		resp.Status = domain.StatusRejected
		resp.Reason = reasonExpectedMismatch
	}
	return resp
}

func (r *Registry) deriveResponse(rec *domain.Record, w *Waiter, now time.Time) *domain.VerifyResponse {
	resp := DeriveResponse(rec, w.Expected)
	resp.WaitedMs = now.Sub(w.RegisteredAt).Milliseconds()
	return resp
}

func (r *Registry) timeoutResponse(rec *domain.Record, w *Waiter) *domain.VerifyResponse {
	return &domain.VerifyResponse{
		CorrelationID: rec.CorrelationID,
		Status:        rec.Status,
		Value:         rec.Value,
		Reason:        rec.Reason,
		TimedOut:      true,
		WaitedMs:      r.now().Sub(w.RegisteredAt).Milliseconds(),
	}
}

// remove detaches w from the entry's waiter list. Caller holds e.mu.
func (e *entry) remove(w *Waiter) bool {
	for i, candidate := range e.waiters {
		if candidate == w {
			e.waiters = append(e.waiters[:i], e.waiters[i+1:]...)
			return true
		}
	}
	return false
}
