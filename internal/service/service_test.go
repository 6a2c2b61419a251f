package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DanceAddiction/DogShitAEye/internal/capture"
	"github.com/DanceAddiction/DogShitAEye/internal/conf"
	"github.com/DanceAddiction/DogShitAEye/internal/datastore"
	"github.com/DanceAddiction/DogShitAEye/internal/frigate"
	"github.com/DanceAddiction/DogShitAEye/internal/ingest"
	"github.com/DanceAddiction/DogShitAEye/internal/tracker"
)

type fakeSource struct {
	mu        sync.Mutex
	snapshots []string
	frames    []string
}

func (f *fakeSource) GetEventSnapshot(_ context.Context, eventID string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots = append(f.snapshots, eventID)
	return []byte("snapshot"), nil
}

func (f *fakeSource) GetLatestFrame(_ context.Context, camera string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, camera)
	return []byte("frame"), nil
}

func (f *fakeSource) snapshotIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.snapshots...)
}

func newTestService(t *testing.T) (*Service, *fakeSource) {
	t.Helper()

	settings := &conf.Settings{}
	settings.Tracking.CrossCameraWindow = 30 * time.Second
	settings.Tracking.SameCameraDebounce = 60 * time.Second
	settings.Images.Enabled = true
	settings.Images.StoragePath = t.TempDir()
	settings.Images.MaxPerWalker = 10
	settings.Images.FrameQuality = 0.6
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = filepath.Join(t.TempDir(), "test.db")

	ds := datastore.New(settings)
	require.NotNil(t, ds)
	require.NoError(t, ds.Open())
	t.Cleanup(func() { _ = ds.Close() })

	trk := tracker.New(ds, tracker.Config{
		CrossCameraWindow:  settings.Tracking.CrossCameraWindow,
		SameCameraDebounce: settings.Tracking.SameCameraDebounce,
		MaxImagesPerWalker: settings.Images.MaxPerWalker,
	}, capture.Remover{}, nil)

	source := &fakeSource{}
	svc := &Service{
		settings:      settings,
		ds:            ds,
		tracker:       trk,
		capture:       capture.New(source, trk, settings),
		cameraWalkers: gocache.New(walkerMappingTTL, 2*walkerMappingTTL),
	}
	return svc, source
}

func enterJob(camera string, at time.Time) ingest.Job {
	return ingest.Job{
		Kind:     ingest.KindEnter,
		Camera:   camera,
		Zone:     "yard",
		PathName: "main_path",
		Observation: tracker.Observation{
			Camera:           camera,
			Zone:             "yard",
			PathName:         "main_path",
			HasPerson:        true,
			PersonConfidence: 0.7,
			Time:             at,
		},
	}
}

func TestEndedEventSnapshotCaptured(t *testing.T) {
	svc, source := newTestService(t)
	ctx := context.Background()
	now := time.Now()

	svc.handleJob(ctx, enterJob("front_yard", now))
	require.NoError(t, svc.captures.Wait())

	svc.handleJob(ctx, ingest.Job{
		Kind:        ingest.KindLeave,
		Label:       frigate.LabelPerson,
		EventID:     "evt7",
		Camera:      "front_yard",
		Zone:        "yard",
		PathName:    "main_path",
		HasSnapshot: true,
		Observation: tracker.Observation{
			Camera:           "front_yard",
			PersonConfidence: 0.9,
			Time:             now.Add(20 * time.Second),
		},
	})
	require.NoError(t, svc.captures.Wait())

	assert.Equal(t, []string{"evt7"}, source.snapshotIDs())

	images, err := svc.ds.GetWalkerImages(1)
	require.NoError(t, err)
	require.Len(t, images, 2)
	// Snapshot outranks the enter-time frame by quality.
	assert.InDelta(t, 0.9, images[0].QualityScore, 0.001)

	detections, err := svc.ds.GetWalkerDetections(1)
	require.NoError(t, err)
	require.Len(t, detections, 2)
	assert.Equal(t, "leave", detections[0].EventType)
}

func TestLeaveWithoutRecentWalkerIgnored(t *testing.T) {
	svc, source := newTestService(t)

	svc.handleJob(context.Background(), ingest.Job{
		Kind:        ingest.KindLeave,
		Label:       frigate.LabelPerson,
		EventID:     "evt9",
		Camera:      "front_yard",
		HasSnapshot: true,
	})
	require.NoError(t, svc.captures.Wait())

	assert.Empty(t, source.snapshotIDs())
}

func TestDogEndCapturesWithoutExit(t *testing.T) {
	svc, source := newTestService(t)
	ctx := context.Background()
	now := time.Now()

	svc.handleJob(ctx, enterJob("front_yard", now))
	require.NoError(t, svc.captures.Wait())

	svc.handleJob(ctx, ingest.Job{
		Kind:        ingest.KindLeave,
		Label:       frigate.LabelDog,
		EventID:     "dog3",
		Camera:      "front_yard",
		HasSnapshot: true,
		Observation: tracker.Observation{
			Camera:           "front_yard",
			HasDog:           true,
			PersonConfidence: 0.85,
			Time:             now.Add(15 * time.Second),
		},
	})
	require.NoError(t, svc.captures.Wait())

	assert.Equal(t, []string{"dog3"}, source.snapshotIDs())

	detections, err := svc.ds.GetWalkerDetections(1)
	require.NoError(t, err)
	require.Len(t, detections, 1)
	assert.Equal(t, "enter", detections[0].EventType)
}

func TestLeaveWithoutSnapshotRecordsExitOnly(t *testing.T) {
	svc, source := newTestService(t)
	ctx := context.Background()
	now := time.Now()

	svc.handleJob(ctx, enterJob("front_yard", now))
	require.NoError(t, svc.captures.Wait())

	svc.handleJob(ctx, ingest.Job{
		Kind:     ingest.KindLeave,
		Label:    frigate.LabelPerson,
		EventID:  "evt4",
		Camera:   "front_yard",
		Zone:     "yard",
		PathName: "main_path",
		Observation: tracker.Observation{
			Camera: "front_yard",
			Time:   now.Add(10 * time.Second),
		},
	})
	require.NoError(t, svc.captures.Wait())

	assert.Empty(t, source.snapshotIDs())
	detections, err := svc.ds.GetWalkerDetections(1)
	require.NoError(t, err)
	require.Len(t, detections, 2)
	assert.Equal(t, "leave", detections[0].EventType)
}
