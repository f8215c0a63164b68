package handlers

import (
	"context"

	"github.com/vidfriends/videosync/internal/changefeed"
	"github.com/vidfriends/videosync/internal/models"
)

// VideoStore captures persistence for a workspace's video collection.
type VideoStore interface {
	ListByOwner(ctx context.Context, ownerID string) ([]models.Record, error)
	FindByKey(ctx context.Context, key string) (models.Record, error)
	OwnerOf(ctx context.Context, key string) (string, error)
	Create(ctx context.Context, ownerID string, fields models.Fields) (models.Record, error)
	ApplyMutation(ctx context.Context, key string, updates models.Fields) (models.Record, error)
	Delete(ctx context.Context, key string) error
}

// ChangePublisher receives change events produced by API writes. It is only
// set when the database does not publish its own notifications.
type ChangePublisher interface {
	Publish(ev models.ChangeEvent) int
}

// LocationSigner turns an object key into a time-limited read URL.
type LocationSigner interface {
	Presign(ctx context.Context, key string) (string, error)
}

// HealthChecker reports whether a backing service is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

var _ changefeed.Subscriber = (*changefeed.Hub)(nil)
