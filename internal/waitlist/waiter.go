package waitlist

import (
	"time"

	"github.com/google/uuid"

	"github.com/verigate/verigate/internal/domain"
)

// Waiter is one parked long-poll caller for a correlation id. It is resolved
// exactly once, by exactly one of: flush (Complete), timeout (Cancel), or
// registry shutdown. The resolution channel is buffered so the resolver never
// blocks on a caller that already gave up.
type Waiter struct {
	ID            uuid.UUID
	CorrelationID string
	// Expected, when non-empty, constrains this waiter's response: a completed
	// record whose value differs is downgraded to rejected for this waiter
	// alone, without touching the shared record.
	Expected     string
	RegisteredAt time.Time

	ch chan *domain.VerifyResponse
}

func newWaiter(correlationID, expected string, now time.Time) *Waiter {
	id, _ := uuid.NewV7()
	return &Waiter{
		ID:            id,
		CorrelationID: correlationID,
		Expected:      expected,
		RegisteredAt:  now,
		ch:            make(chan *domain.VerifyResponse, 1),
	}
}

// Done returns the channel the waiter's single resolution is delivered on.
func (w *Waiter) Done() <-chan *domain.VerifyResponse {
	return w.ch
}

func (w *Waiter) resolve(resp *domain.VerifyResponse) {
	w.ch <- resp
}
