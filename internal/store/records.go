package store

import (
	"sync"
	"time"

	"github.com/verigate/verigate/internal/domain"
)

// RecordStore holds the shared verification record per correlation id. The
// terminal transition (pending -> completed/rejected) happens at most once;
// later resolution attempts are reported as redundant and never overwrite the
// stored outcome.
type RecordStore struct {
	mu      sync.RWMutex
	records map[string]*domain.Record
	now     func() time.Time
}

// NewRecordStore creates an empty record store.
func NewRecordStore() *RecordStore {
	return &RecordStore{
		records: make(map[string]*domain.Record),
		now:     time.Now,
	}
}

// Get returns a copy of the record for id, if one exists.
func (s *RecordStore) Get(id string) (*domain.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, false
	}
	out := *rec
	return &out, true
}

// EnsurePending creates a pending record for id if none exists and returns a
// copy of the current record either way.
func (s *RecordStore) EnsurePending(id string) *domain.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		rec = &domain.Record{
			CorrelationID: id,
			Status:        domain.StatusPending,
			CreatedAt:     s.now(),
		}
		s.records[id] = rec
	}
	out := *rec
	return &out
}

// Resolve transitions the record for id to the given terminal status. If no
// record exists one is created already terminal (a callback may legitimately
// arrive before any submit). The returned bool is false when the record was
// already terminal, in which case the existing outcome is returned untouched.
func (s *RecordStore) Resolve(id string, status domain.Status, value, reason string) (*domain.Record, bool) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		rec = &domain.Record{
			CorrelationID: id,
			CreatedAt:     now,
		}
		s.records[id] = rec
	}

	if rec.Status.IsTerminal() {
		out := *rec
		return &out, false
	}

	rec.Status = status
	rec.Value = value
	rec.Reason = reason
	rec.ResolvedAt = &now

	out := *rec
	return &out, true
}
