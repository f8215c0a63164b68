// Package dashboard keeps a mounted view's copy of a workspace's video
// collection in sync with the backend.
//
// Every state change happens on one event-loop goroutine per Synchronizer.
// Signals, change-feed deliveries and collaborator completions are posted to
// an unbounded FIFO queue and applied in arrival order.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vidfriends/videosync/internal/changefeed"
	"github.com/vidfriends/videosync/internal/logging"
	"github.com/vidfriends/videosync/internal/models"
	"github.com/vidfriends/videosync/internal/optimistic"
	"github.com/vidfriends/videosync/internal/records"
	"github.com/vidfriends/videosync/internal/revalidate"
)

const (
	defaultFetchTimeout = 30 * time.Second
	defaultWriteTimeout = 30 * time.Second
)

// Options configures a Synchronizer.
type Options struct {
	OwnerID string

	Fetcher Fetcher
	Writer  Writer
	// Subscriber opens the change feed. Without one the view relies on
	// fetches alone.
	Subscriber changefeed.Subscriber
	Reporter   Reporter
	Notifier   Notifier

	// Threshold is the staleness threshold for focus, visibility and poll
	// signals. Defaults to revalidate.DefaultThreshold.
	Threshold time.Duration
	// PollInterval enables a periodic revalidation signal when positive.
	PollInterval time.Duration
	FetchTimeout time.Duration
	WriteTimeout time.Duration
	// ConfirmRefetch requests a full refetch after every successful write.
	ConfirmRefetch bool

	// OnChange runs on the event loop after every state change. It must not
	// call Mutate or Close.
	OnChange func(View)

	Logger  *slog.Logger
	Metrics *Metrics
	Now     func() time.Time
}

// SyncState describes the view's freshness.
type SyncState struct {
	LastFetch  time.Time
	Loading    bool
	Subscribed bool
}

// View is a consistent snapshot of the synchronizer's state.
type View struct {
	Records []models.Record
	Pending []string
	State   SyncState
}

// Synchronizer owns one owner's collection, pending mutations, revalidation
// gate and change-feed subscription.
type Synchronizer struct {
	owner    string
	fetcher  Fetcher
	writer   Writer
	reporter Reporter
	notifier Notifier
	opts     Options
	logger   *slog.Logger
	metrics  *Metrics
	now      func() time.Time

	queue    *taskQueue
	store    *records.Store
	mutator  *optimistic.Mutator
	gate     *revalidate.Gate
	listener *changefeed.Listener

	// Owned by the event loop.
	state   SyncState
	tickets map[string]*Ticket

	view       atomic.Pointer[View]
	synced     chan struct{}
	syncedOnce sync.Once

	ctx    context.Context
	cancel context.CancelFunc

	lifecycle sync.Mutex
	started   bool
	closed    bool
	loopDone  chan struct{}
}

// New constructs a synchronizer for opts.OwnerID. Call Start to mount it.
func New(opts Options) (*Synchronizer, error) {
	owner := strings.TrimSpace(opts.OwnerID)
	if owner == "" {
		return nil, ErrOwnerRequired
	}
	if opts.Fetcher == nil || opts.Writer == nil {
		return nil, errors.New("dashboard: fetcher and writer are required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("owner_id", owner))

	reporter := opts.Reporter
	if reporter == nil {
		reporter = LogReporter{Logger: logger}
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = discardNotifier{}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = defaultFetchTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}

	store := records.NewStore()
	mutator := optimistic.NewMutator(store)
	mutator.WithNowFunc(now)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Synchronizer{
		owner:    owner,
		fetcher:  opts.Fetcher,
		writer:   opts.Writer,
		reporter: reporter,
		notifier: notifier,
		opts:     opts,
		logger:   logger,
		metrics:  opts.Metrics,
		now:      now,
		queue:    newTaskQueue(),
		store:    store,
		mutator:  mutator,
		gate:     revalidate.NewGate(opts.Threshold),
		tickets:  make(map[string]*Ticket),
		synced:   make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
		loopDone: make(chan struct{}),
	}
	if opts.Subscriber != nil {
		s.listener = changefeed.NewListener(opts.Subscriber, logger)
	}
	s.view.Store(&View{})
	return s, nil
}

// Owner returns the owner whose collection is mounted.
func (s *Synchronizer) Owner() string {
	return s.owner
}

// Start runs the event loop, subscribes to the change feed and triggers the
// initial refetch. A failed subscription is reported and the view continues
// without push updates. Calling Start again is a no-op.
func (s *Synchronizer) Start(ctx context.Context) error {
	s.lifecycle.Lock()
	if s.closed {
		s.lifecycle.Unlock()
		return ErrClosed
	}
	if s.started {
		s.lifecycle.Unlock()
		return nil
	}
	s.started = true
	go s.run()
	s.lifecycle.Unlock()

	if s.listener != nil {
		s.subscribe(ctx)
	}
	s.post(func() { s.revalidate(revalidate.SignalMount) })

	if s.opts.PollInterval > 0 {
		go s.poll(s.opts.PollInterval)
	}
	return nil
}

func (s *Synchronizer) subscribe(ctx context.Context) {
	err := s.listener.Start(ctx, s.owner, s.onEvent, s.onFeedLost)
	if err != nil {
		s.post(func() {
			s.report(ErrorReport{
				Title:   "Live updates unavailable",
				Message: "Changes made elsewhere will appear after the next refresh.",
				Cause:   "subscription",
				Err:     fmt.Errorf("%w: %w", ErrSubscriptionFailure, err),
			})
		})
		return
	}

	s.lifecycle.Lock()
	closed := s.closed
	s.lifecycle.Unlock()
	if closed {
		_ = s.listener.Stop()
		return
	}

	s.post(func() {
		s.state.Subscribed = true
		s.metrics.subscribed(1)
		s.publish()
	})
}

// Close releases the subscription and stops the event loop. Outstanding
// writes still reach the backend but their results are dropped; their
// tickets resolve with ErrClosed. Close must not be called from OnChange.
func (s *Synchronizer) Close() error {
	s.lifecycle.Lock()
	if s.closed {
		s.lifecycle.Unlock()
		return nil
	}
	s.closed = true
	started := s.started
	s.lifecycle.Unlock()

	// Closing the queue first drops results from fetches the cancel aborts.
	s.queue.Close()
	s.cancel()
	var err error
	if s.listener != nil {
		err = s.listener.Stop()
	}
	if started {
		<-s.loopDone
	}
	return err
}

// Focus signals that the view regained focus.
func (s *Synchronizer) Focus() {
	s.post(func() { s.revalidate(revalidate.SignalFocus) })
}

// VisibilityChanged signals a visibility transition. Only becoming visible
// can trigger a refetch.
func (s *Synchronizer) VisibilityChanged(visible bool) {
	if !visible {
		return
	}
	s.post(func() { s.revalidate(revalidate.SignalVisible) })
}

// Refresh requests a refetch regardless of staleness.
func (s *Synchronizer) Refresh() {
	s.post(func() { s.revalidate(revalidate.SignalManual) })
}

// Mutate applies updates to key optimistically and starts the authoritative
// write. Conflicting, empty or unknown-key mutations are rejected before any
// state changes. ctx bounds only the wait for the event loop.
func (s *Synchronizer) Mutate(ctx context.Context, key string, updates models.Fields) (*Ticket, error) {
	s.lifecycle.Lock()
	started, closed := s.started, s.closed
	s.lifecycle.Unlock()
	if closed {
		return nil, ErrClosed
	}
	if !started {
		return nil, ErrNotStarted
	}

	type result struct {
		ticket *Ticket
		err    error
	}
	ch := make(chan result, 1)
	if !s.post(func() {
		t, err := s.begin(key, updates)
		ch <- result{ticket: t, err: err}
	}) {
		return nil, ErrClosed
	}

	select {
	case r := <-ch:
		return r.ticket, r.err
	case <-s.loopDone:
		select {
		case r := <-ch:
			return r.ticket, r.err
		default:
			return nil, ErrClosed
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Snapshot returns the collection in display order.
func (s *Synchronizer) Snapshot() []models.Record {
	v := s.view.Load()
	out := make([]models.Record, len(v.Records))
	for i, rec := range v.Records {
		out[i] = rec.Clone()
	}
	return out
}

// Get returns the record stored under key.
func (s *Synchronizer) Get(key string) (models.Record, bool) {
	for _, rec := range s.view.Load().Records {
		if rec.Key == key {
			return rec.Clone(), true
		}
	}
	return models.Record{}, false
}

// Pending lists keys with unresolved mutations in sorted order.
func (s *Synchronizer) Pending() []string {
	return append([]string(nil), s.view.Load().Pending...)
}

// State returns the current freshness state.
func (s *Synchronizer) State() SyncState {
	return s.view.Load().State
}

// Synced is closed after the first successful refetch.
func (s *Synchronizer) Synced() <-chan struct{} {
	return s.synced
}

func (s *Synchronizer) post(t task) bool {
	return s.queue.Enqueue(t)
}

func (s *Synchronizer) run() {
	defer close(s.loopDone)
	for {
		if _, ok := <-s.queue.Wait(); !ok {
			s.shutdown()
			return
		}
		for {
			t, ok := s.queue.TryDequeue()
			if !ok {
				break
			}
			t()
		}
	}
}

func (s *Synchronizer) shutdown() {
	for id, ticket := range s.tickets {
		ticket.resolve(optimistic.Outcome{Mutation: ticket.mutation}, ErrClosed)
		delete(s.tickets, id)
	}
	s.metrics.pendingDelta(-s.mutator.Len())
	if s.state.Subscribed {
		s.state.Subscribed = false
		s.metrics.subscribed(-1)
	}
	s.logger.Debug("synchronizer closed")
}

func (s *Synchronizer) revalidate(signal revalidate.Signal) {
	if !s.gate.Allow(signal, s.now(), s.state.LastFetch) {
		s.metrics.skipped(signal)
		return
	}
	s.state.Loading = true
	s.publish()
	go s.fetch(signal)
}

func (s *Synchronizer) fetch(signal revalidate.Signal) {
	ctx, cancel := context.WithTimeout(logging.WithLogger(s.ctx, s.logger), s.opts.FetchTimeout)
	defer cancel()
	ctx, span := logging.StartSpan(ctx, "collection.refetch")

	start := time.Now()
	recs, err := s.fetcher.FetchAll(ctx, s.owner)
	elapsed := time.Since(start)
	span.End(err)

	s.post(func() { s.finishFetch(signal, recs, err, elapsed) })
}

func (s *Synchronizer) finishFetch(signal revalidate.Signal, recs []models.Record, err error, elapsed time.Duration) {
	s.gate.Complete()
	s.state.Loading = false
	s.metrics.refetch(signal, err, elapsed)

	if err != nil {
		s.report(ErrorReport{
			Title:   "Could not load videos",
			Message: "The list may be out of date. It refreshes again on the next focus or poll.",
			Cause:   "fetch",
			Err:     fmt.Errorf("%w: %w", ErrFetchFailure, err),
		})
		s.publish()
		return
	}

	s.store.ReplaceAll(recs)
	s.state.LastFetch = s.now()
	s.publish()
	s.syncedOnce.Do(func() { close(s.synced) })
	s.logger.Debug("collection refetched", "signal", signal, "records", len(recs), "duration", elapsed)
}

func (s *Synchronizer) onEvent(ev models.ChangeEvent) {
	s.post(func() { s.applyEvent(ev) })
}

func (s *Synchronizer) applyEvent(ev models.ChangeEvent) {
	if ev.OwnerID != "" && ev.OwnerID != s.owner {
		return
	}
	changed := changefeed.Apply(s.store, ev)
	s.metrics.event(string(ev.Kind), changed)
	if changed {
		s.publish()
	}
}

func (s *Synchronizer) onFeedLost() {
	s.post(func() {
		if s.state.Subscribed {
			s.state.Subscribed = false
			s.metrics.subscribed(-1)
		}
		s.report(ErrorReport{
			Title:   "Live updates disconnected",
			Message: "Changes made elsewhere will appear after the next refresh.",
			Cause:   "subscription",
			Err:     fmt.Errorf("%w: change feed closed", ErrSubscriptionFailure),
		})
		s.publish()
	})
}

func (s *Synchronizer) begin(key string, updates models.Fields) (*Ticket, error) {
	mu, err := s.mutator.Begin(key, updates)
	if err != nil {
		if errors.Is(err, optimistic.ErrMutationInProgress) {
			s.metrics.mutation("conflict")
			s.report(ErrorReport{
				Title:   "Update already in progress",
				Message: "Wait for the previous change to this video to finish.",
				Cause:   "conflict",
				Err:     err,
			})
		} else {
			s.metrics.mutation("invalid")
		}
		return nil, err
	}

	s.metrics.pendingDelta(1)
	ticket := newTicket(mu)
	s.tickets[mu.ID] = ticket
	s.publish()

	go s.write(mu)
	return ticket, nil
}

// write runs detached from Close so an accepted mutation always reaches the
// backend.
func (s *Synchronizer) write(mu *optimistic.Mutation) {
	ctx, cancel := context.WithTimeout(logging.WithLogger(context.Background(), s.logger), s.opts.WriteTimeout)
	defer cancel()
	ctx, span := logging.StartSpan(ctx, "mutation.write")

	err := s.writer.WriteMutation(ctx, mu.Key, mu.Updates.Clone())
	span.End(err)

	s.post(func() { s.finishWrite(mu, err) })
}

func (s *Synchronizer) finishWrite(mu *optimistic.Mutation, writeErr error) {
	ticket := s.tickets[mu.ID]
	delete(s.tickets, mu.ID)

	outcome, ok := s.mutator.Resolve(mu, writeErr)
	if !ok {
		outcome = optimistic.Outcome{Mutation: mu, Err: writeErr, Reason: optimistic.ReasonOf(writeErr)}
	} else {
		s.metrics.pendingDelta(-1)
	}

	var err error
	if writeErr != nil {
		s.metrics.mutation("reverted")
		err = fmt.Errorf("%w: %w", ErrMutationRejected, writeErr)
		s.report(ErrorReport{
			Title:   "Update failed",
			Message: rejectionMessage(outcome.Reason),
			Cause:   string(outcome.Reason),
			Err:     err,
		})
	} else {
		s.metrics.mutation("confirmed")
		s.notifier.MutationConfirmed(mu.Key, mu.Updates.Clone())
		if s.opts.ConfirmRefetch {
			s.revalidate(revalidate.SignalConfirm)
		}
	}

	s.publish()
	if ticket != nil {
		ticket.resolve(outcome, err)
	}
}

func (s *Synchronizer) report(r ErrorReport) {
	s.reporter.Report(r)
}

// publish stores a fresh view and hands it to OnChange.
func (s *Synchronizer) publish() {
	v := &View{
		Records: s.store.Snapshot(),
		Pending: s.mutator.Pending(),
		State:   s.state,
	}
	s.view.Store(v)
	if s.opts.OnChange != nil {
		s.opts.OnChange(View{
			Records: s.Snapshot(),
			Pending: append([]string(nil), v.Pending...),
			State:   v.State,
		})
	}
}

func (s *Synchronizer) poll(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.post(func() { s.revalidate(revalidate.SignalTimer) })
		}
	}
}
