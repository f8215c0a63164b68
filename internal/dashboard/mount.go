package dashboard

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// Factory builds an unstarted synchronizer for ownerID.
type Factory func(ownerID string) (*Synchronizer, error)

// Mount holds the synchronizer for the currently authenticated owner. Owner
// changes tear the old view down before the new one subscribes.
type Mount struct {
	factory Factory
	logger  *slog.Logger

	mu      sync.Mutex
	owner   string
	current *Synchronizer
}

// NewMount returns an empty mount.
func NewMount(factory Factory, logger *slog.Logger) *Mount {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mount{factory: factory, logger: logger}
}

// SetOwner switches the mounted collection to ownerID. An empty owner means
// nobody is signed in and leaves nothing mounted. Setting the current owner
// again keeps the existing synchronizer.
func (m *Mount) SetOwner(ctx context.Context, ownerID string) (*Synchronizer, error) {
	ownerID = strings.TrimSpace(ownerID)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil && m.owner == ownerID {
		return m.current, nil
	}
	if m.current != nil {
		if err := m.current.Close(); err != nil {
			m.logger.Warn("close previous synchronizer", "ownerId", m.owner, "error", err)
		}
		m.current = nil
		m.owner = ""
	}
	if ownerID == "" {
		return nil, nil
	}

	s, err := m.factory(ownerID)
	if err != nil {
		return nil, err
	}
	if err := s.Start(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	m.current = s
	m.owner = ownerID
	m.logger.Info("mounted workspace", "ownerId", ownerID)
	return s, nil
}

// Current returns the mounted synchronizer, or nil.
func (m *Mount) Current() *Synchronizer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Close unmounts the current owner.
func (m *Mount) Close() error {
	_, err := m.SetOwner(context.Background(), "")
	return err
}
