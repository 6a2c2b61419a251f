// Package ingest normalizes raw Frigate MQTT traffic into tracker
// observations and feeds them through a bounded ordered queue.
package ingest

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/DanceAddiction/DogShitAEye/internal/conf"
	"github.com/DanceAddiction/DogShitAEye/internal/frigate"
	"github.com/DanceAddiction/DogShitAEye/internal/logging"
	"github.com/DanceAddiction/DogShitAEye/internal/observability/metrics"
	"github.com/DanceAddiction/DogShitAEye/internal/tracker"
)

var logger *slog.Logger

func init() {
	var err error
	logger, _, err = logging.NewFileLogger("logs/ingest.log", "ingest", slog.LevelInfo)
	if err != nil {
		logging.Error("Failed to initialize ingest file logger", "error", err)
		logger = logging.Structured().With("service", "ingest")
		if logger == nil {
			panic(fmt.Sprintf("Failed to initialize any logger for ingest service: %v", err))
		}
	}
}

// Job kinds delivered on the queue.
const (
	KindEnter = "enter"
	KindLeave = "leave"
	KindClose = "close"
)

// Job is one normalized unit of work for the tracking consumer. Enter jobs
// carry a full observation; leave jobs identify the ended event and whether
// a snapshot is available for it; close jobs request an explicit session
// close for a walker.
type Job struct {
	Kind        string
	Label       string
	EventID     string
	Camera      string
	Zone        string
	PathName    string
	WalkerID    uint
	HasSnapshot bool
	Observation tracker.Observation
}

// dogState remembers the last dog activity per camera for correlation with
// person events on the same camera.
type dogState struct {
	lastSeen   time.Time
	confidence float64
}

// Adapter turns Frigate MQTT messages into Jobs. It is safe for concurrent
// use; the queue preserves arrival order because the paho router delivers
// messages sequentially.
type Adapter struct {
	settings *conf.Settings
	metrics  *metrics.IngestMetrics
	queue    chan Job

	mu   sync.Mutex
	dogs map[string]dogState

	// seenEvents dedupes ended event ids: Frigate can re-deliver an end and
	// each event must produce at most one leave job.
	seenEvents *gocache.Cache

	now func() time.Time
}

// New creates an Adapter with a bounded queue sized from configuration.
func New(settings *conf.Settings, m *metrics.IngestMetrics) *Adapter {
	return &Adapter{
		settings:   settings,
		metrics:    m,
		queue:      make(chan Job, settings.Tracking.QueueSize),
		dogs:       make(map[string]dogState),
		seenEvents: gocache.New(10*time.Minute, 30*time.Minute),
		now:        time.Now,
	}
}

// Queue returns the channel the consumer drains.
func (a *Adapter) Queue() <-chan Job {
	return a.queue
}

// EnqueueClose requests an explicit session close for a walker. The close
// travels the same queue as detections so it is ordered against them.
func (a *Adapter) EnqueueClose(walkerID uint) {
	a.enqueue(Job{Kind: KindClose, WalkerID: walkerID})
}

// HandleMessage routes one MQTT message. Malformed payloads and events from
// unconfigured cameras are dropped with a log line; they never error out.
func (a *Adapter) HandleMessage(topic string, payload []byte) {
	if topic == frigate.TopicEvents {
		a.handleEvent(payload)
		return
	}
	if camera, label, ok := frigate.ParseCountTopic(topic); ok {
		a.handleCount(camera, label, payload)
		return
	}
	logger.Debug("Ignoring message on unexpected topic", "topic", topic)
}

func (a *Adapter) handleEvent(payload []byte) {
	event, err := frigate.ParseEvent(payload)
	if err != nil {
		logger.Warn("Dropping malformed event payload", "error", err)
		a.drop("malformed")
		return
	}

	state := &event.After
	camConfig, configured := a.settings.Cameras[state.Camera]
	if !configured {
		logger.Debug("Dropping event from unconfigured camera",
			"camera", state.Camera,
			"event_id", state.ID)
		a.drop("unconfigured_camera")
		return
	}

	switch state.Label {
	case frigate.LabelDog:
		a.recordDog(state.Camera, state.Confidence())
		if event.Type == frigate.EventTypeEnd {
			a.handleEventEnd(event, camConfig)
		}
	case frigate.LabelPerson:
		a.handlePersonEvent(event, camConfig)
	default:
		logger.Debug("Ignoring event with untracked label",
			"label", state.Label,
			"camera", state.Camera)
	}
}

// Lifecycle events never resolve identity; positive person counts do. Ends
// still matter: they mark the walker leaving the camera and are the moment
// a usable snapshot exists.
func (a *Adapter) handlePersonEvent(event *frigate.Event, camConfig conf.CameraConfig) {
	state := &event.After

	switch event.Type {
	case frigate.EventTypeNew:
		logger.Debug("Person event started",
			"camera", state.Camera,
			"event_id", state.ID)
	case frigate.EventTypeEnd:
		a.handleEventEnd(event, camConfig)
	}
}

// handleEventEnd queues a leave job for an ended event. Dog ends are only
// worth queueing for their snapshot; person ends always are, since they
// record the walker's exit.
func (a *Adapter) handleEventEnd(event *frigate.Event, camConfig conf.CameraConfig) {
	state := &event.After

	if state.Label == frigate.LabelDog && !state.HasSnapshot {
		return
	}
	if _, dup := a.seenEvents.Get(state.ID); dup {
		a.drop("duplicate")
		return
	}
	a.seenEvents.SetDefault(state.ID, struct{}{})

	endedAt := state.EndedAt()
	if endedAt.IsZero() {
		endedAt = a.now()
	}
	hasDog := state.Label == frigate.LabelDog
	if !hasDog {
		hasDog, _ = a.dogNearby(state.Camera, endedAt)
	}

	a.enqueue(Job{
		Kind:        KindLeave,
		Label:       state.Label,
		EventID:     state.ID,
		Camera:      state.Camera,
		Zone:        a.zoneFor(state, camConfig),
		PathName:    camConfig.PathName,
		HasSnapshot: state.HasSnapshot,
		Observation: tracker.Observation{
			Camera:           state.Camera,
			HasDog:           hasDog,
			PersonConfidence: state.Confidence(),
			Time:             endedAt,
		},
	})
}

func (a *Adapter) handleCount(camera, label string, payload []byte) {
	camConfig, configured := a.settings.Cameras[camera]
	if !configured {
		return
	}

	count, err := frigate.ParseObjectCount(payload)
	if err != nil {
		logger.Warn("Dropping malformed object count",
			"camera", camera,
			"label", label,
			"error", err)
		return
	}
	if count == 0 {
		return
	}

	switch label {
	case frigate.LabelDog:
		a.recordDog(camera, 0)
	case frigate.LabelPerson:
		a.enqueueDetection(camera, camConfig)
	}
}

// enqueueDetection turns a positive person count into an enter job. Count
// topics re-fire for as long as the person stays in frame; the tracker's
// same-camera debounce collapses those re-triggers onto one walker. Counts
// carry no score, so the configured confidence floor stands in for it.
func (a *Adapter) enqueueDetection(camera string, camConfig conf.CameraConfig) {
	now := a.now()
	hasDog, dogConfidence := a.dogNearby(camera, now)

	a.enqueue(Job{
		Kind:     KindEnter,
		Camera:   camera,
		Zone:     camConfig.Zone,
		PathName: camConfig.PathName,
		Observation: tracker.Observation{
			Camera:           camera,
			Zone:             camConfig.Zone,
			PathName:         camConfig.PathName,
			HasPerson:        true,
			HasDog:           hasDog,
			PersonConfidence: a.settings.Tracking.MinPersonConfidence,
			DogConfidence:    dogConfidence,
			Time:             now,
		},
	})
}

// recordDog notes dog activity on a camera. A zero confidence means the
// sighting came from a bare object count; an earlier scored sighting's
// confidence is kept in that case.
func (a *Adapter) recordDog(camera string, confidence float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	state := a.dogs[camera]
	state.lastSeen = a.now()
	if confidence > 0 {
		state.confidence = confidence
	}
	a.dogs[camera] = state
}

// dogNearby reports whether a dog was active on the camera within the
// correlation window of the event time.
func (a *Adapter) dogNearby(camera string, eventTime time.Time) (bool, float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	state, ok := a.dogs[camera]
	if !ok {
		return false, 0
	}
	window := a.settings.Tracking.DogCorrelation
	ref := eventTime
	if now := a.now(); now.After(ref) {
		ref = now
	}
	if ref.Sub(state.lastSeen) > window {
		return false, 0
	}
	return true, state.confidence
}

func (a *Adapter) zoneFor(state *frigate.ObjectState, camConfig conf.CameraConfig) string {
	if len(state.CurrentZones) > 0 {
		return state.CurrentZones[0]
	}
	if len(state.EnteredZones) > 0 {
		return state.EnteredZones[0]
	}
	return camConfig.Zone
}

func (a *Adapter) enqueue(job Job) {
	select {
	case a.queue <- job:
		if a.metrics != nil {
			a.metrics.EventAccepted()
			a.metrics.SetQueueDepth(len(a.queue))
		}
	default:
		logger.Warn("Processing queue full, discarding event",
			"event_id", job.EventID,
			"camera", job.Camera,
			"kind", job.Kind)
		if a.metrics != nil {
			a.metrics.QueueOverflow()
			a.metrics.EventDropped("queue_full")
		}
	}
}

func (a *Adapter) drop(reason string) {
	if a.metrics != nil {
		a.metrics.EventDropped(reason)
	}
}
