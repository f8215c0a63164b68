package changefeed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/vidfriends/videosync/internal/models"
)

// Handler receives change events in delivery order.
type Handler func(ev models.ChangeEvent)

// Subscription is a live push-channel registration. Done is closed when the
// channel stops delivering, either through Close or because it was lost.
type Subscription interface {
	Close() error
	Done() <-chan struct{}
}

// Subscriber opens push channels keyed by owner.
type Subscriber interface {
	Subscribe(ctx context.Context, ownerID string, handler Handler) (Subscription, error)
}

// Listener owns the single change-feed subscription of one mounted view.
type Listener struct {
	subscriber Subscriber
	logger     *slog.Logger

	mu      sync.Mutex
	sub     Subscription
	owner   string
	stopped chan struct{}
}

// NewListener constructs a listener using subscriber.
func NewListener(subscriber Subscriber, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{subscriber: subscriber, logger: logger}
}

// Start subscribes to ownerID's collection. Any handle produced by a failed
// setup is released before Start returns. lost, when set, runs once if the
// channel drops before Stop is called.
func (l *Listener) Start(ctx context.Context, ownerID string, handler Handler, lost func()) (err error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return ErrOwnerRequired
	}
	if l.subscriber == nil {
		return fmt.Errorf("%w: no subscriber configured", ErrSubscriptionFailed)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sub != nil {
		return ErrAlreadySubscribed
	}

	sub, err := l.subscriber.Subscribe(ctx, ownerID, handler)
	defer func() {
		if err != nil && sub != nil {
			if closeErr := sub.Close(); closeErr != nil {
				l.logger.Warn("release failed subscription", "ownerId", ownerID, "error", closeErr)
			}
		}
	}()
	if err != nil {
		if errors.Is(err, ErrSubscriptionFailed) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrSubscriptionFailed, err)
	}
	if sub == nil {
		return fmt.Errorf("%w: subscriber returned no handle", ErrSubscriptionFailed)
	}

	stopped := make(chan struct{})
	l.sub = sub
	l.owner = ownerID
	l.stopped = stopped

	go func() {
		select {
		case <-stopped:
		case <-sub.Done():
			select {
			case <-stopped:
				return
			default:
			}
			l.logger.Warn("change feed lost", "ownerId", ownerID)
			if lost != nil {
				lost()
			}
		}
	}()

	l.logger.Debug("change feed subscribed", "ownerId", ownerID)
	return nil
}

// Stop releases the active subscription. Calling Stop more than once, or
// without a successful Start, is a no-op.
func (l *Listener) Stop() error {
	l.mu.Lock()
	sub := l.sub
	owner := l.owner
	stopped := l.stopped
	l.sub = nil
	l.owner = ""
	l.stopped = nil
	l.mu.Unlock()

	if sub == nil {
		return nil
	}
	close(stopped)
	l.logger.Debug("change feed released", "ownerId", owner)
	return sub.Close()
}

// Active reports whether a subscription is held.
func (l *Listener) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sub != nil
}
