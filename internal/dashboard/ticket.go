package dashboard

import (
	"context"

	"github.com/vidfriends/videosync/internal/optimistic"
)

// Ticket tracks one accepted mutation until its authoritative outcome has
// been applied to the collection.
type Ticket struct {
	ID  string
	Key string

	mutation *optimistic.Mutation
	done     chan struct{}
	outcome  optimistic.Outcome
	err      error
}

func newTicket(mu *optimistic.Mutation) *Ticket {
	return &Ticket{
		ID:       mu.ID,
		Key:      mu.Key,
		mutation: mu,
		done:     make(chan struct{}),
	}
}

// Done is closed once the outcome is applied.
func (t *Ticket) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the outcome is applied. The error is nil when the write
// was confirmed, wraps ErrMutationRejected when it was reverted and is
// ErrClosed when the synchronizer closed first.
func (t *Ticket) Wait(ctx context.Context) (optimistic.Outcome, error) {
	select {
	case <-t.done:
		return t.outcome, t.err
	case <-ctx.Done():
		return optimistic.Outcome{}, ctx.Err()
	}
}

func (t *Ticket) resolve(outcome optimistic.Outcome, err error) {
	t.outcome = outcome
	t.err = err
	close(t.done)
}
