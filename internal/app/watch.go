package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/vidfriends/videosync/internal/dashboard"
)

func newWatchCommand(opts *rootOptions) *cobra.Command {
	var (
		owner   string
		noColor bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Mirror a workspace's videos and print changes as they arrive",
		Long: "Mounts the workspace, follows its change feed and prints every change. " +
			"Send SIGHUP to force a refetch.",
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

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			printer := newChangePrinter(cmd.OutOrStdout(), noColor)
			factory := synchronizerFactory(cfg, logger, prometheus.NewRegistry(), func(o *dashboard.Options) {
				o.OnChange = printer.Update
				o.Reporter = dashboard.ReporterFunc(printer.Report)
				o.Notifier = dashboard.NotifierFunc(printer.Confirmed)
			})

			mount := dashboard.NewMount(factory, logger)
			defer mount.Close()

			synchronizer, err := mount.SetOwner(ctx, ownerID)
			if err != nil {
				return err
			}
			return followSignals(ctx, synchronizer)
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "workspace owner id")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable coloured output")
	return cmd
}

// followSignals maps SIGHUP to a manual refresh until ctx ends.
func followSignals(ctx context.Context, synchronizer *dashboard.Synchronizer) error {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-hup:
			synchronizer.Refresh()
		}
	}
}
