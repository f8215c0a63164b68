package dashboard

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vidfriends/videosync/internal/revalidate"
)

// Metrics instruments synchronizers. A nil *Metrics records nothing.
type Metrics struct {
	refetches       *prometheus.CounterVec
	refetchSkipped  *prometheus.CounterVec
	refetchDuration prometheus.Histogram
	mutations       *prometheus.CounterVec
	pending         prometheus.Gauge
	events          *prometheus.CounterVec
	subscriptions   prometheus.Gauge
}

// NewMetrics registers synchronizer metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		refetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "videosync",
			Name:      "refetches_total",
			Help:      "Full collection refetches by trigger and result.",
		}, []string{"signal", "result"}),
		refetchSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "videosync",
			Name:      "refetches_skipped_total",
			Help:      "Revalidation signals dropped by the staleness gate.",
		}, []string{"signal"}),
		refetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "videosync",
			Name:      "refetch_duration_seconds",
			Help:      "Latency of full collection refetches.",
			Buckets:   prometheus.DefBuckets,
		}),
		mutations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "videosync",
			Name:      "mutations_total",
			Help:      "Optimistic mutations by outcome.",
		}, []string{"outcome"}),
		pending: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "videosync",
			Name:      "pending_mutations",
			Help:      "Mutations awaiting their authoritative write.",
		}),
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "videosync",
			Name:      "change_events_total",
			Help:      "Change-feed deliveries by kind and whether they changed the collection.",
		}, []string{"kind", "applied"}),
		subscriptions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "videosync",
			Name:      "active_subscriptions",
			Help:      "Synchronizers holding a live change feed.",
		}),
	}
}

func (m *Metrics) refetch(signal revalidate.Signal, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.refetches.WithLabelValues(string(signal), result).Inc()
	m.refetchDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) skipped(signal revalidate.Signal) {
	if m == nil {
		return
	}
	m.refetchSkipped.WithLabelValues(string(signal)).Inc()
}

func (m *Metrics) mutation(outcome string) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) pendingDelta(delta int) {
	if m == nil || delta == 0 {
		return
	}
	m.pending.Add(float64(delta))
}

func (m *Metrics) event(kind string, applied bool) {
	if m == nil {
		return
	}
	label := "false"
	if applied {
		label = "true"
	}
	m.events.WithLabelValues(kind, label).Inc()
}

func (m *Metrics) subscribed(delta int) {
	if m == nil || delta == 0 {
		return
	}
	m.subscriptions.Add(float64(delta))
}
