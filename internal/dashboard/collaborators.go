package dashboard

import (
	"context"
	"log/slog"

	"github.com/vidfriends/videosync/internal/models"
)

// Fetcher loads an owner's full collection in display order.
type Fetcher interface {
	FetchAll(ctx context.Context, ownerID string) ([]models.Record, error)
}

// Writer performs the authoritative write for a mutation. Failures should be
// *optimistic.WriteError so the cause can be reported.
type Writer interface {
	WriteMutation(ctx context.Context, key string, updates models.Fields) error
}

// Reporter surfaces failures to the user.
type Reporter interface {
	Report(report ErrorReport)
}

// Notifier receives confirmations of successful writes.
type Notifier interface {
	MutationConfirmed(key string, updates models.Fields)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, ownerID string) ([]models.Record, error)

func (f FetcherFunc) FetchAll(ctx context.Context, ownerID string) ([]models.Record, error) {
	return f(ctx, ownerID)
}

// WriterFunc adapts a function to Writer.
type WriterFunc func(ctx context.Context, key string, updates models.Fields) error

func (f WriterFunc) WriteMutation(ctx context.Context, key string, updates models.Fields) error {
	return f(ctx, key, updates)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(report ErrorReport)

func (f ReporterFunc) Report(report ErrorReport) { f(report) }

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(key string, updates models.Fields)

func (f NotifierFunc) MutationConfirmed(key string, updates models.Fields) { f(key, updates) }

// LogReporter writes reports to a structured logger.
type LogReporter struct {
	Logger *slog.Logger
}

func (r LogReporter) Report(report ErrorReport) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error(report.Title, "message", report.Message, "cause", report.Cause, "error", report.Err)
}

type discardNotifier struct{}

func (discardNotifier) MutationConfirmed(string, models.Fields) {}
