package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vidfriends/videosync/internal/changefeed"
	"github.com/vidfriends/videosync/internal/config"
	"github.com/vidfriends/videosync/internal/dashboard"
	"github.com/vidfriends/videosync/internal/db"
	"github.com/vidfriends/videosync/internal/handlers"
	"github.com/vidfriends/videosync/internal/middleware"
	"github.com/vidfriends/videosync/internal/remote"
	"github.com/vidfriends/videosync/internal/repositories"
	"github.com/vidfriends/videosync/internal/storage"
)

const (
	limiterTTL       = 10 * time.Minute
	locationCacheLen = 1024
)

// serverDependencies are the collaborators behind `serve`.
type serverDependencies struct {
	Handlers handlers.Dependencies
	Hub      *changefeed.Hub
	// Notifier is set in postgres notify mode and must be run alongside the
	// HTTP server.
	Notifier *changefeed.Notifier
}

// buildServerDependencies wires together concrete implementations used by the HTTP handlers.
func buildServerDependencies(ctx context.Context, pool db.Pool, cfg config.Config, reg *prometheus.Registry, logger *slog.Logger) (serverDependencies, error) {
	var repo repositories.VideoRepository = repositories.NewPostgresVideoRepository(pool)
	hub := changefeed.NewHub()

	deps := handlers.Dependencies{
		Videos:   repo,
		Changes:  hub,
		Database: pool,
		MutationLimiter: middleware.NewKeyedLimiter(
			cfg.MutationRateLimit.Requests,
			cfg.MutationRateLimit.Window,
			cfg.MutationRateLimit.Burst,
			limiterTTL,
		),
		Metrics:  middleware.NewHTTPMetrics(reg),
		Gatherer: reg,
	}

	out := serverDependencies{Hub: hub}
	if cfg.NotifyMode == config.NotifyInline {
		deps.Events = hub
	} else {
		out.Notifier = changefeed.NewNotifier(pool, cfg.NotifyChannel, repo, hub, logger)
	}

	if cfg.ObjectStore.Enabled() {
		objects, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
		if err != nil {
			return serverDependencies{}, err
		}
		// Cached URLs expire well before their signatures do.
		deps.Locations = storage.NewCachingSigner(objects, locationCacheLen, objects.TTL()/2)
	}

	out.Handlers = deps
	return out, nil
}

// synchronizerFactory builds dashboard synchronizers that fetch and write
// through the HTTP API and follow its websocket change feed. configure may
// adjust options per command.
func synchronizerFactory(cfg config.Config, logger *slog.Logger, reg prometheus.Registerer, configure func(*dashboard.Options)) dashboard.Factory {
	client := remote.NewClient(cfg.API.BaseURL, cfg.API.Token, nil)
	feed := changefeed.NewWebSocketSubscriber(cfg.API.BaseURL, cfg.API.Token, nil, logger)
	metrics := dashboard.NewMetrics(reg)

	return func(ownerID string) (*dashboard.Synchronizer, error) {
		opts := dashboard.Options{
			OwnerID:        ownerID,
			Fetcher:        client,
			Writer:         client,
			Subscriber:     feed,
			Threshold:      cfg.Sync.Threshold,
			PollInterval:   cfg.Sync.PollInterval,
			FetchTimeout:   cfg.Sync.FetchTimeout,
			WriteTimeout:   cfg.Sync.WriteTimeout,
			ConfirmRefetch: cfg.Sync.ConfirmRefetch,
			Logger:         logger,
			Metrics:        metrics,
		}
		if configure != nil {
			configure(&opts)
		}
		return dashboard.New(opts)
	}
}

// mountOwner mounts ownerID and waits for its first successful fetch.
func mountOwner(ctx context.Context, factory dashboard.Factory, ownerID string, logger *slog.Logger) (*dashboard.Mount, *dashboard.Synchronizer, error) {
	mount := dashboard.NewMount(factory, logger)
	synchronizer, err := mount.SetOwner(ctx, ownerID)
	if err != nil {
		return nil, nil, err
	}

	select {
	case <-synchronizer.Synced():
		return mount, synchronizer, nil
	case <-ctx.Done():
		_ = mount.Close()
		return nil, nil, ctx.Err()
	}
}
