// Package tracker resolves presence detections to walker identities and
// aggregates them into walk sessions.
package tracker

import (
	"io"
	"log"
	"log/slog"
	"time"

	"github.com/DanceAddiction/DogShitAEye/internal/datastore"
	"github.com/DanceAddiction/DogShitAEye/internal/logging"
)

// Package-level logger specific to the tracker service
var logger *slog.Logger

func init() {
	var err error
	logger, _, err = logging.NewFileLogger("logs/tracker.log", "tracker", slog.LevelInfo)
	if err != nil {
		log.Printf("Failed to initialize tracker file logger: %v. Service logging disabled.", err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelInfo})
		logger = slog.New(fbHandler).With("service", "tracker")
	}
}

// Config holds the identity-matching thresholds. The cross-camera window and
// the same-camera debounce floor come from independent configuration sources
// and do not interact.
type Config struct {
	CrossCameraWindow  time.Duration // evidence older than this never matches
	SameCameraDebounce time.Duration // same-camera gap treated as loop re-entry rather than re-trigger
	MaxImagesPerWalker int           // retention bound for stored evidence images
}

// Observation is one normalized person detection handed in by the ingestion
// adapter. Time is the event's arrival time; the tracker performs no clock
// reads of its own.
type Observation struct {
	Camera           string
	Zone             string
	PathName         string
	HasPerson        bool
	HasDog           bool
	PersonConfidence float64
	DogConfidence    float64
	Time             time.Time
}

// ImageRemover deletes the stored artifact behind an evicted walker image.
type ImageRemover interface {
	Remove(path string) error
}

// Metrics receives tracker outcome counts. Implemented by the observability
// package; a nil Metrics disables reporting.
type Metrics interface {
	WalkerCreated()
	WalkerMatched(reason string)
	DetectionRecorded(camera string)
	ImageEvicted()
}

// Tracker maps detections onto walker identities using a sliding evidence
// window, maintains walk sessions and enforces per-walker image retention.
//
// A Tracker assumes single-threaded access: all events must be serialized
// through one ordered queue before reaching it.
type Tracker struct {
	ds      datastore.Interface
	cfg     Config
	window  *EvidenceWindow
	remover ImageRemover
	metrics Metrics
}

// New creates a Tracker backed by the given datastore. The evidence window
// is owned exclusively by the returned Tracker; independent Tracker
// instances never share matching state.
func New(ds datastore.Interface, cfg Config, remover ImageRemover, metrics Metrics) *Tracker {
	return &Tracker{
		ds:      ds,
		cfg:     cfg,
		window:  NewEvidenceWindow(),
		remover: remover,
		metrics: metrics,
	}
}

// ProcessDetection resolves a person observation to a walker identity,
// creating a fresh identity when no recent evidence matches. It records a
// detection, updates the walker's open session and prunes the evidence
// window. The returned id is 0 when the observation carried no person.
//
// A storage failure is returned as-is; the tracker does not retry or roll
// back already-persisted state.
func (t *Tracker) ProcessDetection(obs Observation) (uint, error) {
	if !obs.HasPerson {
		return 0, nil
	}

	now := obs.Time

	walkerID, reason := t.matchToWalker(obs.Camera, obs.HasDog, now)
	if walkerID == 0 {
		walker := datastore.Walker{
			FirstSeen:  now,
			LastSeen:   now,
			TotalWalks: 1,
		}
		if err := t.ds.SaveWalker(&walker); err != nil {
			return 0, err
		}
		walkerID = walker.ID
		if t.metrics != nil {
			t.metrics.WalkerCreated()
		}
		logger.Info("Created new walker",
			"walker_id", walkerID,
			"camera", obs.Camera,
			"has_dog", obs.HasDog)
	} else {
		if err := t.ds.UpdateWalker(walkerID, map[string]any{"last_seen": now}); err != nil {
			return 0, err
		}
		if t.metrics != nil {
			t.metrics.WalkerMatched(reason)
		}
		logger.Info("Matched to existing walker",
			"walker_id", walkerID,
			"camera", obs.Camera,
			"match_reason", reason)
	}

	detection := datastore.Detection{
		WalkerID:         walkerID,
		Camera:           obs.Camera,
		Zone:             obs.Zone,
		PathName:         obs.PathName,
		Timestamp:        now,
		EventType:        "enter",
		HasDog:           obs.HasDog,
		PersonConfidence: obs.PersonConfidence,
	}
	if obs.HasDog {
		dogConfidence := obs.DogConfidence
		detection.DogConfidence = &dogConfidence
	}
	if err := t.ds.SaveDetection(&detection); err != nil {
		// The walker record may already exist without this detection; that
		// inconsistency window is surfaced, not repaired here.
		return 0, err
	}
	if t.metrics != nil {
		t.metrics.DetectionRecorded(obs.Camera)
	}

	t.window.Record(Entry{
		WalkerID:  walkerID,
		Camera:    obs.Camera,
		Timestamp: now,
		HasDog:    obs.HasDog,
	})
	t.window.Prune(now, t.cfg.CrossCameraWindow)

	if err := t.upsertSession(walkerID, obs.Camera, obs.PathName, obs.HasDog, now); err != nil {
		return 0, err
	}

	return walkerID, nil
}

// matchToWalker scans the evidence window newest-first for an identity the
// observation continues. Dog presence is a near-certain discriminator and
// overrides temporal proximity; entries older than the cross-camera window
// never match even when pruning has not caught up with them yet.
//
// Returns 0 when no evidence matches. The reason distinguishes a
// cross-camera transition, a same-camera loop re-entry after the debounce
// floor, and a debounced re-trigger of a still-visible walker.
func (t *Tracker) matchToWalker(camera string, hasDog bool, now time.Time) (walkerID uint, reason string) {
	cutoff := now.Add(-t.cfg.CrossCameraWindow)

	for entry := range t.window.Recent() {
		if entry.Timestamp.Before(cutoff) {
			continue
		}
		if entry.HasDog != hasDog {
			continue
		}
		switch {
		case entry.Camera != camera:
			// Different camera, likely same walker in transit. Distinct
			// cameras cannot both be triggered by one stationary subject,
			// so no minimum elapsed time applies.
			return entry.WalkerID, "cross_camera"
		case now.Sub(entry.Timestamp) >= t.cfg.SameCameraDebounce:
			// Same camera after a sufficient gap: the walker looped back
			// into this camera's field of view.
			return entry.WalkerID, "re_entry"
		default:
			// Same camera inside the debounce floor: a re-trigger of the
			// same still-visible walker, never a fresh identity.
			return entry.WalkerID, "debounce"
		}
	}

	return 0, ""
}

// RecordExit appends a leave detection for a walker departing a camera zone.
// Exits are not re-detected, so dog presence is not recorded.
func (t *Tracker) RecordExit(walkerID uint, camera, zone, pathName string, now time.Time) error {
	detection := datastore.Detection{
		WalkerID:  walkerID,
		Camera:    camera,
		Zone:      zone,
		PathName:  pathName,
		Timestamp: now,
		EventType: "leave",
	}
	if err := t.ds.SaveDetection(&detection); err != nil {
		return err
	}
	logger.Info("Recorded exit",
		"walker_id", walkerID,
		"camera", camera)
	return nil
}

// WindowSize reports the current number of evidence entries. Exposed for
// diagnostics.
func (t *Tracker) WindowSize() int {
	return t.window.Len()
}
