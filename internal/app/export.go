package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/vidfriends/videosync/internal/dashboard"
	"github.com/vidfriends/videosync/internal/logging"
	"github.com/vidfriends/videosync/internal/models"
	"github.com/vidfriends/videosync/internal/storage"
)

// snapshotDocument is the exported form of a workspace collection.
type snapshotDocument struct {
	OwnerID    string          `json:"ownerId"`
	ExportedAt time.Time       `json:"exportedAt"`
	Digest     string          `json:"digest"`
	Videos     []models.Record `json:"videos"`
}

func newExportCommand(opts *rootOptions) *cobra.Command {
	var (
		owner   string
		output  string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Snapshot a workspace's videos to object storage or a file",
		Long: "Mounts the workspace, waits for the first complete fetch and writes the collection as JSON. " +
			"With an object store configured the snapshot is uploaded and a presigned link printed; " +
			"otherwise it is written to --output (default stdout).",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			logger, err := opts.logger(cfg, os.Stderr, true)
			if err != nil {
				return err
			}
			ownerID := resolveOwner(owner, cfg)
			if ownerID == "" {
				return fmt.Errorf("an owner is required (--owner or VIDEOSYNC_OWNER)")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			factory := synchronizerFactory(cfg, logger, prometheus.NewRegistry(), func(o *dashboard.Options) {
				o.Subscriber = nil
			})
			mount, synchronizer, err := mountOwner(ctx, factory, ownerID, logger)
			if err != nil {
				return fmt.Errorf("load workspace %s: %w", ownerID, err)
			}
			snapshot := buildSnapshot(ownerID, synchronizer.Snapshot(), time.Now())
			_ = mount.Close()

			payload, err := json.MarshalIndent(snapshot, "", "  ")
			if err != nil {
				return fmt.Errorf("encode snapshot: %w", err)
			}

			if !cfg.ObjectStore.Enabled() {
				return writeSnapshot(cmd.OutOrStdout(), output, payload)
			}

			objects, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
			if err != nil {
				return err
			}

			ctx, span := logging.StartSpan(ctx, "export.upload")
			key, location, err := objects.Save(ctx, storage.SnapshotName(ownerID, snapshot.ExportedAt), "application/json", bytes.NewReader(payload))
			span.End(err)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "exported %d videos to %s\n", len(snapshot.Videos), location)
			if link, err := objects.Presign(ctx, key); err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "download (valid %s): %s\n", objects.TTL(), link)
			} else {
				logger.Warn("presign snapshot", "key", key, "error", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "workspace owner id")
	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write when no object store is configured")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall deadline")
	return cmd
}

func buildSnapshot(ownerID string, videos []models.Record, at time.Time) snapshotDocument {
	if videos == nil {
		videos = []models.Record{}
	}
	return snapshotDocument{
		OwnerID:    ownerID,
		ExportedAt: at.UTC(),
		Digest:     models.CollectionDigest(videos),
		Videos:     videos,
	}
}

func writeSnapshot(stdout io.Writer, path string, payload []byte) error {
	if path == "" || path == "-" {
		_, err := stdout.Write(append(payload, '\n'))
		return err
	}
	if err := os.WriteFile(path, append(payload, '\n'), 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}
