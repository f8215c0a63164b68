// Package app assembles the videosync command line.
package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vidfriends/videosync/internal/config"
	"github.com/vidfriends/videosync/internal/logging"
)

// Run executes the videosync command line with args.
func Run(ctx context.Context, args []string) error {
	root := NewRootCommand()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

type rootOptions struct {
	configPath string
	logLevel   string
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "videosync",
		Short:         "Workspace video collections kept in sync across dashboards",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv("VIDEOSYNC_CONFIG"), "path to a YAML config file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	root.AddCommand(
		newServeCommand(opts),
		newMigrateCommand(opts),
		newWatchCommand(opts),
		newSetCommand(opts),
		newExportCommand(opts),
	)
	return root
}

func (o *rootOptions) load() (config.Config, error) {
	cfg, err := config.LoadFile(o.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if level := strings.TrimSpace(o.logLevel); level != "" {
		cfg.LogLevel = level
	}
	return cfg, nil
}

// logger builds the command logger. Server processes use the configured
// format; interactive commands always log text.
func (o *rootOptions) logger(cfg config.Config, w io.Writer, interactive bool) (*slog.Logger, error) {
	format := cfg.LogFormat
	if interactive {
		format = "text"
	}
	logger, err := logging.NewLogger(w, cfg.LogLevel, format)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return logger, nil
}

func resolveOwner(flagValue string, cfg config.Config) string {
	if owner := strings.TrimSpace(flagValue); owner != "" {
		return owner
	}
	return strings.TrimSpace(cfg.Sync.Owner)
}
