package repositories

import (
	"context"

	"github.com/vidfriends/videosync/internal/models"
)

// VideoRepository exposes data access for a workspace's video collection.
type VideoRepository interface {
	ListByOwner(ctx context.Context, ownerID string) ([]models.Record, error)
	FindByKey(ctx context.Context, key string) (models.Record, error)
	OwnerOf(ctx context.Context, key string) (string, error)
	Create(ctx context.Context, ownerID string, fields models.Fields) (models.Record, error)
	ApplyMutation(ctx context.Context, key string, updates models.Fields) (models.Record, error)
	Delete(ctx context.Context, key string) error
}

var _ VideoRepository = (*PostgresVideoRepository)(nil)
