// Package service wires the Frigate intake, tracker, capture and HTTP API
// together into the long-running realtime process.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"

	"github.com/DanceAddiction/DogShitAEye/internal/analytics"
	"github.com/DanceAddiction/DogShitAEye/internal/api"
	"github.com/DanceAddiction/DogShitAEye/internal/capture"
	"github.com/DanceAddiction/DogShitAEye/internal/conf"
	"github.com/DanceAddiction/DogShitAEye/internal/datastore"
	"github.com/DanceAddiction/DogShitAEye/internal/frigate"
	"github.com/DanceAddiction/DogShitAEye/internal/ingest"
	"github.com/DanceAddiction/DogShitAEye/internal/logging"
	"github.com/DanceAddiction/DogShitAEye/internal/observability"
	"github.com/DanceAddiction/DogShitAEye/internal/tracker"
)

var logger *slog.Logger

func init() {
	var err error
	logger, _, err = logging.NewFileLogger("logs/service.log", "service", slog.LevelInfo)
	if err != nil {
		logging.Error("Failed to initialize service file logger", "error", err)
		logger = logging.Structured().With("service", "service")
		if logger == nil {
			panic(fmt.Sprintf("Failed to initialize any logger for realtime service: %v", err))
		}
	}
}

// captureConcurrency bounds parallel image fetches against Frigate.
const captureConcurrency = 4

// walkerMappingTTL is how long a camera's last resolved walker stays
// attributable, so ended events on that camera can record exits and claim
// snapshots. Frigate events rarely outlive a few minutes.
const walkerMappingTTL = 15 * time.Minute

// Service is the realtime tracking process.
type Service struct {
	settings *conf.Settings
	ds       datastore.Interface
	metrics  *observability.Metrics
	tracker  *tracker.Tracker
	adapter  *ingest.Adapter
	capture  *capture.Capture
	mqtt     frigate.Client
	echo     *echo.Echo
	api      *api.Controller

	// cameraWalkers maps camera names to the walker most recently resolved
	// there, so ended events can be attributed. Lifecycle events carry no
	// walker id and enters are count-driven, so the camera is the join key.
	// go-cache expires stale mappings.
	cameraWalkers *gocache.Cache

	captures errgroup.Group
}

// New assembles the service from configuration. The datastore is opened and
// migrated here.
func New(settings *conf.Settings) (*Service, error) {
	metrics, err := observability.NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("initializing metrics: %w", err)
	}

	ds := datastore.New(settings)
	if ds == nil {
		return nil, fmt.Errorf("no database backend enabled in configuration")
	}
	if err := ds.Open(); err != nil {
		return nil, fmt.Errorf("opening datastore: %w", err)
	}

	trk := tracker.New(ds, tracker.Config{
		CrossCameraWindow:  settings.Tracking.CrossCameraWindow,
		SameCameraDebounce: settings.Tracking.SameCameraDebounce,
		MaxImagesPerWalker: settings.Images.MaxPerWalker,
	}, capture.Remover{}, metrics.Tracker)

	adapter := ingest.New(settings, metrics.Ingest)

	s := &Service{
		settings:      settings,
		ds:            ds,
		metrics:       metrics,
		tracker:       trk,
		adapter:       adapter,
		capture:       capture.New(frigate.NewAPIClient(settings), trk, settings),
		cameraWalkers: gocache.New(walkerMappingTTL, 2*walkerMappingTTL),
	}
	s.captures.SetLimit(captureConcurrency)

	mqttClient, err := frigate.NewClient(settings, metrics.MQTT, adapter.HandleMessage)
	if err != nil {
		return nil, fmt.Errorf("creating MQTT client: %w", err)
	}
	s.mqtt = mqttClient

	if settings.WebServer.Enabled {
		e := echo.New()
		e.HideBanner = true
		s.echo = e
		s.api = api.New(e, ds, settings, analytics.New(ds, settings), adapter, metrics)
	}

	return s, nil
}

// Run starts the service and blocks until the context is cancelled or a
// component fails fatally.
func (s *Service) Run(ctx context.Context) error {
	defer s.shutdown()

	if err := s.mqtt.Connect(ctx); err != nil {
		return fmt.Errorf("connecting to MQTT broker: %w", err)
	}
	logger.Info("Realtime tracking started",
		"broker", s.settings.Frigate.MQTT.Broker,
		"cameras", len(s.settings.Cameras))

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.consume(ctx)
	})

	if s.echo != nil {
		g.Go(func() error {
			addr := fmt.Sprintf(":%d", s.settings.WebServer.Port)
			logger.Info("Web server listening", "addr", addr)
			if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("web server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return s.echo.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

// consume is the single tracker writer: every detection, exit and close
// request passes through here in queue order, interleaved with the session
// staleness sweep.
func (s *Service) consume(ctx context.Context) error {
	ticker := time.NewTicker(s.settings.Tracking.SessionPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case job := <-s.adapter.Queue():
			s.handleJob(ctx, job)
		case <-ticker.C:
			if _, err := s.tracker.CloseStaleSessions(s.settings.Tracking.SessionTimeout, time.Now()); err != nil {
				logger.Error("Stale session sweep failed", "error", err)
			}
		}
	}
}

func (s *Service) handleJob(ctx context.Context, job ingest.Job) {
	switch job.Kind {
	case ingest.KindEnter:
		walkerID, err := s.tracker.ProcessDetection(job.Observation)
		if err != nil {
			logger.Error("Failed to process detection",
				"camera", job.Camera,
				"error", err)
			return
		}
		if walkerID == 0 {
			return
		}
		s.cameraWalkers.SetDefault(job.Camera, walkerID)
		s.captureEvidence(ctx, walkerID, job)

	case ingest.KindLeave:
		cached, ok := s.cameraWalkers.Get(job.Camera)
		if !ok {
			logger.Debug("Event end with no recent walker",
				"camera", job.Camera,
				"event_id", job.EventID)
			return
		}
		walkerID := cached.(uint)
		// Dog ends only contribute imagery; a walker's exit is the person
		// event ending.
		if job.Label == frigate.LabelPerson {
			if err := s.tracker.RecordExit(walkerID, job.Camera, job.Zone, job.PathName, time.Now()); err != nil {
				logger.Error("Failed to record exit",
					"event_id", job.EventID,
					"error", err)
			}
		}
		if job.HasSnapshot {
			s.captureEvidence(ctx, walkerID, job)
		}

	case ingest.KindClose:
		if err := s.tracker.CloseSession(job.WalkerID, time.Now()); err != nil {
			logger.Error("Failed to close session",
				"walker_id", job.WalkerID,
				"error", err)
		}
	}
}

// captureEvidence fetches imagery off the consumer goroutine. The tracker's
// image save path is safe to call concurrently with detection processing
// because it only touches the datastore and the filesystem.
func (s *Service) captureEvidence(ctx context.Context, walkerID uint, job ingest.Job) {
	if !s.settings.Images.Enabled {
		return
	}
	req := capture.Request{
		WalkerID:    walkerID,
		EventID:     job.EventID,
		Camera:      job.Camera,
		HasSnapshot: job.HasSnapshot,
		HasDog:      job.Observation.HasDog,
		Confidence:  job.Observation.PersonConfidence,
		Time:        job.Observation.Time,
	}
	s.captures.Go(func() error {
		if err := s.capture.Evidence(ctx, req); err != nil {
			logger.Warn("Evidence capture failed",
				"walker_id", walkerID,
				"event_id", job.EventID,
				"error", err)
		}
		return nil
	})
}

func (s *Service) shutdown() {
	s.mqtt.Disconnect()
	if err := s.captures.Wait(); err != nil {
		logger.Error("Capture worker error", "error", err)
	}
	if s.api != nil {
		s.api.Shutdown()
	}
	if err := s.ds.Close(); err != nil {
		logger.Error("Failed to close datastore", "error", err)
	}
	logger.Info("Realtime tracking stopped")
}
