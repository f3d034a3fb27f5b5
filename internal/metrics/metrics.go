// Package metrics exposes pipeline counters over Prometheus.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/deskpilot-io/deskpilot/internal/config"
)

// Metrics holds the pipeline instrumentation. Construct one per process with
// New and pass it down explicitly.
type Metrics struct {
	MessagesFetched   prometheus.Counter
	MessagesProcessed *prometheus.CounterVec
	MessagesSkipped   prometheus.Counter
	MessagesRejected  *prometheus.CounterVec
	MessagesErrored   prometheus.Counter

	TicketsCreated   prometheus.Counter
	CommentsAppended prometheus.Counter
	Assignments      *prometheus.CounterVec

	IngestionDuration prometheus.Histogram

	registry *prometheus.Registry
}

// New builds the metric set on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
		registry.MustRegister(c)
		return c
	}
	vec := func(name, help string, labels ...string) *prometheus.CounterVec {
		c := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labels)
		registry.MustRegister(c)
		return c
	}

	m := &Metrics{
		MessagesFetched:   factory("deskpilot_messages_fetched_total", "Messages fetched from the mailbox"),
		MessagesProcessed: vec("deskpilot_messages_processed_total", "Messages processed, by classification", "type"),
		MessagesSkipped:   factory("deskpilot_messages_skipped_total", "Duplicate messages short-circuited by the audit log"),
		MessagesRejected:  vec("deskpilot_messages_rejected_total", "Messages rejected by the filter chain, by rule", "rule"),
		MessagesErrored:   factory("deskpilot_messages_errored_total", "Messages that failed processing"),
		TicketsCreated:    factory("deskpilot_tickets_created_total", "Tickets created from inbound mail"),
		CommentsAppended:  factory("deskpilot_comments_appended_total", "Comments appended for replies and follow-ups"),
		Assignments:       vec("deskpilot_assignments_total", "Auto-assignment outcomes", "method", "outcome"),
		registry:          registry,
	}

	m.IngestionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "deskpilot_ingestion_duration_seconds",
		Help:    "Duration of one ingestion run",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	})
	registry.MustRegister(m.IngestionDuration)
	return m
}

// Handler returns the scrape endpoint handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve starts the scrape endpoint in a goroutine. The returned server can
// be shut down by the caller.
func (m *Metrics) Serve(cfg config.MetricsConfig) *http.Server {
	mux := http.NewServeMux()
	path := cfg.Path
	if path == "" {
		path = "/metrics"
	}
	mux.Handle(path, m.Handler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go srv.ListenAndServe()
	return srv
}
