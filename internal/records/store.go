// Package records holds the in-memory ordered collection shown by a
// dashboard view.
package records

import (
	"sync"

	"github.com/vidfriends/videosync/internal/models"
)

// Store is the authoritative local collection for one mounted view. Keys are
// unique at all times. Every operation is total: absent keys turn updates
// into no-ops instead of errors.
//
// Mutations are expected to come from a single owner; the lock only lets
// readers take consistent snapshots from other goroutines.
type Store struct {
	mu    sync.RWMutex
	items []models.Record
	index map[string]int
}

// NewStore returns an empty collection.
func NewStore() *Store {
	return &Store{index: make(map[string]int)}
}

// ReplaceAll swaps the collection for the provided ordered records. When the
// input repeats a key, the first occurrence wins.
func (s *Store) ReplaceAll(recs []models.Record) {
	items := make([]models.Record, 0, len(recs))
	index := make(map[string]int, len(recs))
	for _, rec := range recs {
		if rec.Key == "" {
			continue
		}
		if _, dup := index[rec.Key]; dup {
			continue
		}
		index[rec.Key] = len(items)
		items = append(items, rec.Clone())
	}

	s.mu.Lock()
	s.items = items
	s.index = index
	s.mu.Unlock()
}

// Upsert inserts rec at the front when its key is unseen, otherwise merges its
// fields into the existing record in place. It reports whether the collection
// changed.
func (s *Store) Upsert(rec models.Record) bool {
	if rec.Key == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if pos, ok := s.index[rec.Key]; ok {
		current := s.items[pos]
		merged := current
		merged.Fields = current.Fields.With(rec.Fields)
		if !rec.UpdatedAt.IsZero() {
			merged.UpdatedAt = rec.UpdatedAt
		}
		if merged.Digest() == current.Digest() && merged.UpdatedAt.Equal(current.UpdatedAt) {
			return false
		}
		s.items[pos] = merged
		return true
	}

	s.items = append([]models.Record{rec.Clone()}, s.items...)
	s.reindexLocked()
	return true
}

// Remove deletes the record stored under key, reporting whether it existed.
func (s *Store) Remove(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.index[key]
	if !ok {
		return false
	}
	s.items = append(s.items[:pos:pos], s.items[pos+1:]...)
	s.reindexLocked()
	return true
}

// Patch applies a partial field update to the record stored under key.
func (s *Store) Patch(key string, updates models.Fields) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.index[key]
	if !ok {
		return false
	}
	s.items[pos].Fields = s.items[pos].Fields.With(updates)
	return true
}

// Unset drops the named fields from the record stored under key.
func (s *Store) Unset(key string, names ...string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.index[key]
	if !ok || len(names) == 0 {
		return false
	}
	s.items[pos].Fields = s.items[pos].Fields.Without(names...)
	return true
}

// Get returns a copy of the record stored under key.
func (s *Store) Get(key string) (models.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pos, ok := s.index[key]
	if !ok {
		return models.Record{}, false
	}
	return s.items[pos].Clone(), true
}

// Snapshot returns a copy of the ordered collection.
func (s *Store) Snapshot() []models.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Record, len(s.items))
	for i, rec := range s.items {
		out[i] = rec.Clone()
	}
	return out
}

// Keys lists record keys in collection order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, len(s.items))
	for i, rec := range s.items {
		keys[i] = rec.Key
	}
	return keys
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *Store) reindexLocked() {
	index := make(map[string]int, len(s.items))
	for i, rec := range s.items {
		index[rec.Key] = i
	}
	s.index = index
}
