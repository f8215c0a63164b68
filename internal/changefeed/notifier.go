package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vidfriends/videosync/internal/db"
	"github.com/vidfriends/videosync/internal/models"
)

// DefaultChannel is the NOTIFY channel written by the videos trigger.
const DefaultChannel = "video_changes"

const (
	notifierBaseBackoff = 250 * time.Millisecond
	notifierMaxBackoff  = 10 * time.Second
)

// RecordLoader reads the current snapshot of a record.
type RecordLoader interface {
	FindByKey(ctx context.Context, key string) (models.Record, error)
}

// Publisher receives translated change events.
type Publisher interface {
	Publish(ev models.ChangeEvent) int
}

// Notifier listens for row notifications from PostgreSQL and republishes them
// as full-snapshot change events.
type Notifier struct {
	pool      db.Pool
	channel   string
	loader    RecordLoader
	publisher Publisher
	logger    *slog.Logger
}

// NewNotifier constructs a notifier for channel (DefaultChannel when empty).
func NewNotifier(pool db.Pool, channel string, loader RecordLoader, publisher Publisher, logger *slog.Logger) *Notifier {
	if strings.TrimSpace(channel) == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		pool:      pool,
		channel:   channel,
		loader:    loader,
		publisher: publisher,
		logger:    logger,
	}
}

// Run listens until ctx is cancelled, reconnecting with exponential backoff
// when the connection drops.
func (n *Notifier) Run(ctx context.Context) error {
	if n.pool == nil || n.loader == nil || n.publisher == nil {
		return fmt.Errorf("notifier: pool, loader and publisher are required")
	}

	attempt := 0
	for {
		err := n.listen(ctx)
		if ctx.Err() != nil {
			return nil
		}
		attempt++
		backoff := time.Duration(math.Pow(2, float64(attempt-1))) * notifierBaseBackoff
		if backoff > notifierMaxBackoff {
			backoff = notifierMaxBackoff
		}
		n.logger.Warn("change notifier disconnected; events may have been missed", "channel", n.channel, "attempt", attempt, "retryIn", backoff, "error", err)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (n *Notifier) listen(ctx context.Context) error {
	pooled, err := n.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	// LISTEN state must not leak back into the pool.
	conn := pooled.Hijack()
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{n.channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen %s: %w", n.channel, err)
	}
	n.logger.Info("listening for video changes", "channel", n.channel)

	for {
		note, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}
		n.handle(ctx, note.Payload)
	}
}

func (n *Notifier) handle(ctx context.Context, payload string) {
	ev, err := ParseNotification(payload)
	if err != nil {
		n.logger.Error("discarding malformed notification", "payload", payload, "error", err)
		return
	}

	if ev.Kind != models.EventDeleted {
		loadCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		rec, err := n.loader.FindByKey(loadCtx, ev.Key)
		cancel()
		if err != nil {
			// A delete racing the load publishes its own event.
			n.logger.Warn("load changed video", "key", ev.Key, "error", err)
			return
		}
		ev.Record = &rec
	}

	delivered := n.publisher.Publish(ev)
	n.logger.Debug("published change", "kind", ev.Kind, "key", ev.Key, "ownerId", ev.OwnerID, "subscribers", delivered)
}

type rowNotification struct {
	Op      string `json:"op"`
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`
}

// ParseNotification decodes a trigger payload into a change event without a
// record snapshot.
func ParseNotification(payload string) (models.ChangeEvent, error) {
	var note rowNotification
	if err := json.Unmarshal([]byte(payload), &note); err != nil {
		return models.ChangeEvent{}, fmt.Errorf("decode notification: %w", err)
	}
	if note.ID == "" || note.OwnerID == "" {
		return models.ChangeEvent{}, fmt.Errorf("notification missing id or owner")
	}

	ev := models.ChangeEvent{Key: note.ID, OwnerID: note.OwnerID}
	switch strings.ToUpper(note.Op) {
	case "INSERT":
		ev.Kind = models.EventInserted
	case "UPDATE":
		ev.Kind = models.EventUpdated
	case "DELETE":
		ev.Kind = models.EventDeleted
	default:
		return models.ChangeEvent{}, fmt.Errorf("unknown operation %q", note.Op)
	}
	return ev, nil
}
