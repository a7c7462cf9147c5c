// Package metrics exposes Prometheus counters for the store, the query
// pipeline, replication and threshold checks.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/ecowatch/internal/threshold"
)

// Metrics implements store.Recorder, query.Recorder and
// replication.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	storeMutationsTotal *prometheus.CounterVec

	lookupsStartedTotal   *prometheus.CounterVec
	lookupsAbandonedTotal prometheus.Counter
	staleResultsTotal     prometheus.Counter

	syncPushesTotal      *prometheus.CounterVec
	syncPullsTotal       *prometheus.CounterVec
	syncPulledEntries    prometheus.Counter
	syncSkippedDocuments prometheus.Counter

	violationsTotal *prometheus.CounterVec

	collectors []prometheus.Collector
}

// New creates and registers metrics on registry.
func New(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	return m, nil
}

func (m *Metrics) initMetrics() {
	m.storeMutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecowatch_store_mutations_total",
			Help: "Store mutations by operation and outcome",
		},
		[]string{"operation", "status"}, // operation: upsert, delete, delete_all
	)

	m.lookupsStartedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecowatch_query_lookups_started_total",
			Help: "Lookups started by the query pipeline",
		},
		[]string{"kind"}, // kind: all, search
	)
	m.lookupsAbandonedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ecowatch_query_lookups_abandoned_total",
		Help: "Lookups cancelled because a newer query superseded them",
	})
	m.staleResultsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ecowatch_query_stale_results_dropped_total",
		Help: "Results of superseded lookups that were discarded",
	})

	m.syncPushesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecowatch_sync_pushes_total",
			Help: "Entries pushed to the remote replica by outcome",
		},
		[]string{"status"},
	)
	m.syncPullsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecowatch_sync_pulls_total",
			Help: "Pull-replace restores by outcome",
		},
		[]string{"status"},
	)
	m.syncPulledEntries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ecowatch_sync_pulled_entries_total",
		Help: "Entries written locally by restores",
	})
	m.syncSkippedDocuments = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ecowatch_sync_skipped_documents_total",
		Help: "Remote documents skipped because they could not be decoded",
	})

	m.violationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecowatch_threshold_violations_total",
			Help: "Threshold violations found at save or check time",
		},
		[]string{"kind"},
	)

	m.collectors = []prometheus.Collector{
		m.storeMutationsTotal,
		m.lookupsStartedTotal,
		m.lookupsAbandonedTotal,
		m.staleResultsTotal,
		m.syncPushesTotal,
		m.syncPullsTotal,
		m.syncPulledEntries,
		m.syncSkippedDocuments,
		m.violationsTotal,
	}
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors {
		c.Describe(ch)
	}
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors {
		c.Collect(ch)
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (m *Metrics) StoreMutation(op string, err error) {
	m.storeMutationsTotal.WithLabelValues(op, status(err)).Inc()
}

func (m *Metrics) LookupStarted(search bool) {
	kind := "all"
	if search {
		kind = "search"
	}
	m.lookupsStartedTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) LookupAbandoned()    { m.lookupsAbandonedTotal.Inc() }
func (m *Metrics) StaleResultDropped() { m.staleResultsTotal.Inc() }

func (m *Metrics) SyncPush(err error) {
	m.syncPushesTotal.WithLabelValues(status(err)).Inc()
}

func (m *Metrics) SyncPull(applied, skipped int, err error) {
	m.syncPullsTotal.WithLabelValues(status(err)).Inc()
	m.syncPulledEntries.Add(float64(applied))
	m.syncSkippedDocuments.Add(float64(skipped))
}

// Violations counts each violation by kind.
func (m *Metrics) Violations(vs []threshold.Violation) {
	for _, v := range vs {
		m.violationsTotal.WithLabelValues(string(v.Kind)).Inc()
	}
}
