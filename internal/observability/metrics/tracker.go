package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// TrackerMetrics contains all Prometheus metrics related to identity matching.
type TrackerMetrics struct {
	WalkersCreated     prometheus.Counter
	WalkerMatches      *prometheus.CounterVec
	DetectionsRecorded *prometheus.CounterVec
	ImagesEvicted      prometheus.Counter
	registry           *prometheus.Registry
}

// NewTrackerMetrics creates a new instance of TrackerMetrics.
// It requires a Prometheus registry to register the metrics.
// It returns an error if metric registration fails.
func NewTrackerMetrics(registry *prometheus.Registry) (*TrackerMetrics, error) {
	m := &TrackerMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register tracker metrics: %w", err)
	}
	return m, nil
}

// initMetrics initializes all metrics for TrackerMetrics.
func (m *TrackerMetrics) initMetrics() {
	m.WalkersCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tracker_walkers_created_total",
		Help: "Total number of new walker identities created",
	})

	m.WalkerMatches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_walker_matches_total",
		Help: "Total number of detections matched to an existing walker, by match reason",
	}, []string{"reason"})

	m.DetectionsRecorded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_detections_recorded_total",
		Help: "Total number of detections recorded, by camera",
	}, []string{"camera"})

	m.ImagesEvicted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tracker_images_evicted_total",
		Help: "Total number of walker images evicted by the retention policy",
	})
}

// WalkerCreated increments the count of new walker identities.
func (m *TrackerMetrics) WalkerCreated() {
	m.WalkersCreated.Inc()
}

// WalkerMatched increments the count of matched detections for a reason.
func (m *TrackerMetrics) WalkerMatched(reason string) {
	m.WalkerMatches.WithLabelValues(reason).Inc()
}

// DetectionRecorded increments the count of recorded detections for a camera.
func (m *TrackerMetrics) DetectionRecorded(camera string) {
	m.DetectionsRecorded.WithLabelValues(camera).Inc()
}

// ImageEvicted increments the count of evicted walker images.
func (m *TrackerMetrics) ImageEvicted() {
	m.ImagesEvicted.Inc()
}

// Collect implements the prometheus.Collector interface.
func (m *TrackerMetrics) Collect(ch chan<- prometheus.Metric) {
	ch <- m.WalkersCreated
	m.WalkerMatches.Collect(ch)
	m.DetectionsRecorded.Collect(ch)
	ch <- m.ImagesEvicted
}

// Describe implements the prometheus.Collector interface.
func (m *TrackerMetrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.WalkersCreated.Desc()
	m.WalkerMatches.Describe(ch)
	m.DetectionsRecorded.Describe(ch)
	ch <- m.ImagesEvicted.Desc()
}
