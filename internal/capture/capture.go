// Package capture stores evidence imagery for resolved walkers, fetched
// from the Frigate HTTP API.
package capture

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/DanceAddiction/DogShitAEye/internal/conf"
	"github.com/DanceAddiction/DogShitAEye/internal/errors"
	"github.com/DanceAddiction/DogShitAEye/internal/logging"
)

var logger *slog.Logger

func init() {
	var err error
	logger, _, err = logging.NewFileLogger("logs/capture.log", "capture", slog.LevelInfo)
	if err != nil {
		logging.Error("Failed to initialize capture file logger", "error", err)
		logger = logging.Structured().With("service", "capture")
		if logger == nil {
			panic(fmt.Sprintf("Failed to initialize any logger for capture service: %v", err))
		}
	}
}

// FrameSource fetches imagery from the NVR. Satisfied by frigate.APIClient.
type FrameSource interface {
	GetEventSnapshot(ctx context.Context, eventID string) ([]byte, error)
	GetLatestFrame(ctx context.Context, camera string) ([]byte, error)
}

// ImageSaver persists a stored image reference and applies retention.
// Satisfied by tracker.Tracker.
type ImageSaver interface {
	SaveWalkerImage(walkerID uint, imagePath, imageType, camera string, quality float64, now time.Time) error
}

// Request describes one evidence capture for a resolved walker.
type Request struct {
	WalkerID    uint
	EventID     string
	Camera      string
	HasSnapshot bool
	HasDog      bool
	Confidence  float64
	Time        time.Time
}

// Capture fetches and stores evidence images.
type Capture struct {
	source   FrameSource
	saver    ImageSaver
	settings *conf.Settings
}

// New creates a Capture writing under the configured storage path.
func New(source FrameSource, saver ImageSaver, settings *conf.Settings) *Capture {
	return &Capture{
		source:   source,
		saver:    saver,
		settings: settings,
	}
}

// Evidence fetches the best available image for the request and records it
// against the walker. Disabled image storage is a silent no-op. Event
// snapshots use the detection confidence as the quality score; the
// latest-frame fallback uses the configured frame quality since no score
// applies to it.
func (c *Capture) Evidence(ctx context.Context, req Request) error {
	if !c.settings.Images.Enabled {
		return nil
	}

	var (
		data    []byte
		quality float64
		err     error
	)
	if req.HasSnapshot {
		data, err = c.source.GetEventSnapshot(ctx, req.EventID)
		quality = req.Confidence
	} else {
		data, err = c.source.GetLatestFrame(ctx, req.Camera)
		quality = c.settings.Images.FrameQuality
	}
	if err != nil {
		logger.Warn("Failed to fetch evidence image",
			"walker_id", req.WalkerID,
			"event_id", req.EventID,
			"camera", req.Camera,
			"error", err)
		return err
	}

	imageType := "person"
	if req.HasDog {
		imageType = "combined"
	}

	path, err := c.writeImage(req.WalkerID, data, req.Time)
	if err != nil {
		return err
	}

	if err := c.saver.SaveWalkerImage(req.WalkerID, path, imageType, req.Camera, quality, req.Time); err != nil {
		// The file is orphaned if the record fails; remove it so retention
		// accounting stays consistent with disk contents.
		if rmErr := os.Remove(path); rmErr != nil {
			logger.Error("Failed to remove orphaned image file",
				"path", path,
				"error", rmErr)
		}
		return err
	}

	logger.Debug("Stored evidence image",
		"walker_id", req.WalkerID,
		"path", path,
		"type", imageType)
	return nil
}

func (c *Capture) writeImage(walkerID uint, data []byte, at time.Time) (string, error) {
	dir := c.settings.Images.StoragePath
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Newf("creating image storage directory %s: %w", dir, err).
			Category(errors.CategoryFileIO).
			Component("capture").
			Build()
	}

	name := fmt.Sprintf("walker_%d_%d.jpg", walkerID, at.UnixMilli())
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Newf("writing image file %s: %w", path, err).
			Category(errors.CategoryFileIO).
			Component("capture").
			Build()
	}
	return path, nil
}

// Remover deletes image files from local storage. Wired into the tracker's
// retention policy.
type Remover struct{}

// Remove deletes the file at path. A file already gone is not an error.
func (Remover) Remove(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return errors.Newf("removing image file %s: %w", path, err).
			Category(errors.CategoryFileIO).
			Component("capture").
			Build()
	}
	return nil
}
