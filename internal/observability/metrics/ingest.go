package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// IngestMetrics contains all Prometheus metrics related to event ingestion.
type IngestMetrics struct {
	EventsAccepted  prometheus.Counter
	EventsDropped   *prometheus.CounterVec
	QueueDepth      prometheus.Gauge
	QueueOverflows  prometheus.Counter
	registry        *prometheus.Registry
}

// NewIngestMetrics creates a new instance of IngestMetrics.
// It requires a Prometheus registry to register the metrics.
// It returns an error if metric registration fails.
func NewIngestMetrics(registry *prometheus.Registry) (*IngestMetrics, error) {
	m := &IngestMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register ingest metrics: %w", err)
	}
	return m, nil
}

// initMetrics initializes all metrics for IngestMetrics.
func (m *IngestMetrics) initMetrics() {
	m.EventsAccepted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ingest_events_accepted_total",
		Help: "Total number of Frigate events accepted for processing",
	})

	m.EventsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_events_dropped_total",
		Help: "Total number of Frigate events dropped, by reason",
	}, []string{"reason"})

	m.QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ingest_queue_depth",
		Help: "Current number of events waiting in the processing queue",
	})

	m.QueueOverflows = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ingest_queue_overflows_total",
		Help: "Total number of events discarded because the processing queue was full",
	})
}

// EventAccepted increments the count of accepted events.
func (m *IngestMetrics) EventAccepted() {
	m.EventsAccepted.Inc()
}

// EventDropped increments the count of dropped events for a reason.
func (m *IngestMetrics) EventDropped(reason string) {
	m.EventsDropped.WithLabelValues(reason).Inc()
}

// SetQueueDepth records the current processing queue depth.
func (m *IngestMetrics) SetQueueDepth(depth int) {
	m.QueueDepth.Set(float64(depth))
}

// QueueOverflow increments the count of queue overflow discards.
func (m *IngestMetrics) QueueOverflow() {
	m.QueueOverflows.Inc()
}

// Collect implements the prometheus.Collector interface.
func (m *IngestMetrics) Collect(ch chan<- prometheus.Metric) {
	ch <- m.EventsAccepted
	m.EventsDropped.Collect(ch)
	ch <- m.QueueDepth
	ch <- m.QueueOverflows
}

// Describe implements the prometheus.Collector interface.
func (m *IngestMetrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.EventsAccepted.Desc()
	m.EventsDropped.Describe(ch)
	ch <- m.QueueDepth.Desc()
	ch <- m.QueueOverflows.Desc()
}
