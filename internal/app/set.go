package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/vidfriends/videosync/internal/dashboard"
	"github.com/vidfriends/videosync/internal/models"
)

func newSetCommand(opts *rootOptions) *cobra.Command {
	var (
		owner   string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "set KEY FIELD=VALUE...",
		Short: "Edit fields of one video and wait for the backend to confirm",
		Long: "Values that parse as integers are sent as numbers and the literal null clears a field. " +
			"A rejected edit is reverted and reported with its cause.",
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
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
			updates, err := parseAssignments(args[1:])
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			var (
				mu     sync.Mutex
				report dashboard.ErrorReport
			)
			factory := synchronizerFactory(cfg, logger, prometheus.NewRegistry(), func(o *dashboard.Options) {
				o.Subscriber = nil
				o.Reporter = dashboard.ReporterFunc(func(r dashboard.ErrorReport) {
					mu.Lock()
					defer mu.Unlock()
					if errors.Is(r.Err, dashboard.ErrMutationRejected) {
						report = r
					}
				})
			})
			mount, synchronizer, err := mountOwner(ctx, factory, ownerID, logger)
			if err != nil {
				return fmt.Errorf("load workspace %s: %w", ownerID, err)
			}
			defer mount.Close()

			ticket, err := synchronizer.Mutate(ctx, args[0], updates)
			if err != nil {
				return err
			}
			outcome, err := ticket.Wait(ctx)
			if err != nil {
				mu.Lock()
				rejected := report
				mu.Unlock()
				if errors.Is(err, dashboard.ErrMutationRejected) && rejected.Message != "" {
					return fmt.Errorf("%s: %s (%s)", rejected.Title, rejected.Message, outcome.Reason)
				}
				return err
			}

			rec, _ := synchronizer.Get(args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", describe(rec, nil))
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "workspace owner id")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "how long to wait for the workspace and the write")
	return cmd
}

// parseAssignments turns FIELD=VALUE arguments into ordered field updates.
func parseAssignments(args []string) (models.Fields, error) {
	var updates models.Fields
	for _, arg := range args {
		name, raw, ok := strings.Cut(arg, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("expected FIELD=VALUE, got %q", arg)
		}
		if updates.Has(name) {
			return nil, fmt.Errorf("field %s given twice", name)
		}
		updates = updates.Set(name, parseValue(raw))
	}
	return updates, nil
}

func parseValue(raw string) any {
	if raw == "null" {
		return nil
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	return raw
}
