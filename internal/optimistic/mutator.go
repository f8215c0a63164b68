// Package optimistic applies local edits ahead of the authoritative write and
// reverts them when the write fails.
package optimistic

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/vidfriends/videosync/internal/models"
)

// Store is the subset of the record collection the mutator patches.
type Store interface {
	Get(key string) (models.Record, bool)
	Patch(key string, updates models.Fields) bool
	Unset(key string, names ...string) bool
}

// Mutation is one in-flight optimistic edit.
type Mutation struct {
	ID        string
	Key       string
	Updates   models.Fields
	StartedAt time.Time

	prior  models.Fields
	absent []string
}

// Prior returns the captured pre-mutation values of the touched fields.
func (m *Mutation) Prior() models.Fields {
	return m.prior.Clone()
}

// Outcome describes how a resolved mutation ended.
type Outcome struct {
	Mutation *Mutation
	Err      error
	Reason   Reason
	Reverted bool
}

// Mutator tracks the pending set and owns the revert targets. It is not safe
// for concurrent use; the owning event loop serialises access.
type Mutator struct {
	store   Store
	pending map[string]*Mutation
	now     func() time.Time
}

// NewMutator constructs a mutator patching store.
func NewMutator(store Store) *Mutator {
	return &Mutator{
		store:   store,
		pending: make(map[string]*Mutation),
		now:     time.Now,
	}
}

// WithNowFunc allows tests to override the time source.
func (m *Mutator) WithNowFunc(now func() time.Time) {
	m.now = now
}

// Begin applies updates to key immediately and marks the key pending. A key
// that is already pending is rejected without touching state.
func (m *Mutator) Begin(key string, updates models.Fields) (*Mutation, error) {
	if len(updates) == 0 {
		return nil, ErrEmptyMutation
	}
	if _, busy := m.pending[key]; busy {
		return nil, &ConflictError{Key: key}
	}
	current, ok := m.store.Get(key)
	if !ok {
		return nil, ErrRecordNotFound
	}

	mu := &Mutation{
		ID:        uuid.NewString(),
		Key:       key,
		Updates:   updates.Clone(),
		StartedAt: m.now(),
	}
	for _, name := range updates.Names() {
		if value, had := current.Fields.Get(name); had {
			mu.prior = mu.prior.Set(name, value)
		} else {
			mu.absent = append(mu.absent, name)
		}
	}

	m.store.Patch(key, mu.Updates)
	m.pending[key] = mu
	return mu, nil
}

// Resolve settles mu with the authoritative write result. On failure the
// captured values are restored. Resolving a mutation that is no longer
// pending returns false and changes nothing.
func (m *Mutator) Resolve(mu *Mutation, writeErr error) (Outcome, bool) {
	if mu == nil || m.pending[mu.Key] != mu {
		return Outcome{}, false
	}
	delete(m.pending, mu.Key)

	out := Outcome{Mutation: mu, Err: writeErr}
	if writeErr == nil {
		return out, true
	}

	out.Reason = ReasonOf(writeErr)
	patched := false
	if len(mu.prior) > 0 {
		patched = m.store.Patch(mu.Key, mu.prior)
	}
	if len(mu.absent) > 0 {
		patched = m.store.Unset(mu.Key, mu.absent...) || patched
	}
	out.Reverted = patched
	return out, true
}

// IsPending reports whether key has an unresolved mutation.
func (m *Mutator) IsPending(key string) bool {
	_, ok := m.pending[key]
	return ok
}

// Pending lists pending keys in sorted order.
func (m *Mutator) Pending() []string {
	keys := make([]string, 0, len(m.pending))
	for key := range m.pending {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of pending mutations.
func (m *Mutator) Len() int {
	return len(m.pending)
}
