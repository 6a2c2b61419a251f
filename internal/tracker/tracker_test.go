package tracker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		CrossCameraWindow:  30 * time.Second,
		SameCameraDebounce: 60 * time.Second,
		MaxImagesPerWalker: 10,
	}
}

func newTestTracker(t *testing.T) (*Tracker, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	return New(store, testConfig(), nil, nil), store
}

func observation(camera string, hasDog bool, at time.Time) Observation {
	return Observation{
		Camera:           camera,
		Zone:             "sidewalk",
		PathName:         "main_path",
		HasPerson:        true,
		HasDog:           hasDog,
		PersonConfidence: 0.92,
		DogConfidence:    0.85,
		Time:             at,
	}
}

func TestProcessDetectionIgnoresNonPerson(t *testing.T) {
	tracker, store := newTestTracker(t)

	obs := observation("front_yard", true, time.Now())
	obs.HasPerson = false

	id, err := tracker.ProcessDetection(obs)
	require.NoError(t, err)
	assert.Zero(t, id)

	count, err := store.CountWalkers()
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, tracker.WindowSize())
}

func TestProcessDetectionCreatesWalker(t *testing.T) {
	tracker, store := newTestTracker(t)
	now := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)

	id, err := tracker.ProcessDetection(observation("front_yard", true, now))
	require.NoError(t, err)
	require.NotZero(t, id)

	walker, err := store.GetWalker(id)
	require.NoError(t, err)
	assert.Equal(t, now, walker.FirstSeen)
	assert.Equal(t, now, walker.LastSeen)
	assert.Equal(t, 1, walker.TotalWalks)

	detections, err := store.GetWalkerDetections(id)
	require.NoError(t, err)
	require.Len(t, detections, 1)
	assert.Equal(t, "enter", detections[0].EventType)
	assert.Equal(t, "front_yard", detections[0].Camera)
	assert.True(t, detections[0].HasDog)
	require.NotNil(t, detections[0].DogConfidence)
	assert.InDelta(t, 0.85, *detections[0].DogConfidence, 0.001)
}

func TestProcessDetectionNoDogConfidenceWithoutDog(t *testing.T) {
	tracker, store := newTestTracker(t)

	id, err := tracker.ProcessDetection(observation("front_yard", false, time.Now()))
	require.NoError(t, err)

	detections, err := store.GetWalkerDetections(id)
	require.NoError(t, err)
	require.Len(t, detections, 1)
	assert.False(t, detections[0].HasDog)
	assert.Nil(t, detections[0].DogConfidence)
}

func TestCrossCameraContinuity(t *testing.T) {
	tracker, _ := newTestTracker(t)
	now := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)

	first, err := tracker.ProcessDetection(observation("front_yard", true, now))
	require.NoError(t, err)

	second, err := tracker.ProcessDetection(observation("driveway", true, now.Add(20*time.Second)))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestDogMismatchForcesNewWalker(t *testing.T) {
	tracker, _ := newTestTracker(t)
	now := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)

	withDog, err := tracker.ProcessDetection(observation("front_yard", true, now))
	require.NoError(t, err)

	withoutDog, err := tracker.ProcessDetection(observation("driveway", false, now.Add(5*time.Second)))
	require.NoError(t, err)

	assert.NotEqual(t, withDog, withoutDog)
}

func TestWindowExpiryForcesNewWalker(t *testing.T) {
	tracker, _ := newTestTracker(t)
	now := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)

	first, err := tracker.ProcessDetection(observation("front_yard", true, now))
	require.NoError(t, err)

	second, err := tracker.ProcessDetection(observation("driveway", true, now.Add(31*time.Second)))
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestSameCameraDebounceMatchesSameWalker(t *testing.T) {
	tracker, _ := newTestTracker(t)
	now := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)

	first, err := tracker.ProcessDetection(observation("front_yard", true, now))
	require.NoError(t, err)

	// Re-trigger inside the debounce floor: same still-visible walker.
	second, err := tracker.ProcessDetection(observation("front_yard", true, now.Add(10*time.Second)))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestSameCameraReEntryMatchesSameWalker(t *testing.T) {
	store := newFakeStore()
	cfg := testConfig()
	cfg.CrossCameraWindow = 5 * time.Minute
	cfg.SameCameraDebounce = 60 * time.Second
	tracker := New(store, cfg, nil, nil)
	now := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)

	first, err := tracker.ProcessDetection(observation("front_yard", true, now))
	require.NoError(t, err)

	// Past the debounce floor but inside the window: the walker looped back.
	second, err := tracker.ProcessDetection(observation("front_yard", true, now.Add(90*time.Second)))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

// Walks a sequence through three cameras: two transitions inside the window
// keep one identity, a dog mismatch splits off a second and a gap past the
// window a third.
func TestMatchingScenario(t *testing.T) {
	tracker, store := newTestTracker(t)
	base := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)

	a, err := tracker.ProcessDetection(observation("front_yard", true, base))
	require.NoError(t, err)

	b, err := tracker.ProcessDetection(observation("driveway", true, base.Add(20*time.Second)))
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := tracker.ProcessDetection(observation("street", true, base.Add(45*time.Second)))
	require.NoError(t, err)
	assert.Equal(t, a, c)

	d, err := tracker.ProcessDetection(observation("street", false, base.Add(50*time.Second)))
	require.NoError(t, err)
	assert.NotEqual(t, a, d)

	e, err := tracker.ProcessDetection(observation("front_yard", true, base.Add(2*time.Minute)))
	require.NoError(t, err)
	assert.NotEqual(t, a, e)
	assert.NotEqual(t, d, e)

	count, err := store.CountWalkers()
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestMatchUpdatesLastSeenOnly(t *testing.T) {
	tracker, store := newTestTracker(t)
	now := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)

	id, err := tracker.ProcessDetection(observation("front_yard", true, now))
	require.NoError(t, err)

	later := now.Add(15 * time.Second)
	matched, err := tracker.ProcessDetection(observation("driveway", true, later))
	require.NoError(t, err)
	require.Equal(t, id, matched)

	walker, err := store.GetWalker(id)
	require.NoError(t, err)
	assert.Equal(t, now, walker.FirstSeen)
	assert.Equal(t, later, walker.LastSeen)
	assert.Equal(t, 1, walker.TotalWalks)
}

func TestWindowPrunedAfterProcessing(t *testing.T) {
	tracker, _ := newTestTracker(t)
	now := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)

	_, err := tracker.ProcessDetection(observation("front_yard", true, now))
	require.NoError(t, err)
	assert.Equal(t, 1, tracker.WindowSize())

	_, err = tracker.ProcessDetection(observation("driveway", true, now.Add(45*time.Second)))
	require.NoError(t, err)

	// The first entry fell outside the window and was pruned.
	assert.Equal(t, 1, tracker.WindowSize())
}

func TestProcessDetectionStorageFailure(t *testing.T) {
	store := newFakeStore()
	store.failOn["SaveWalker"] = errors.New("disk full")
	tracker := New(store, testConfig(), nil, nil)

	_, err := tracker.ProcessDetection(observation("front_yard", true, time.Now()))
	require.Error(t, err)
	assert.Zero(t, tracker.WindowSize())
}

func TestRecordExit(t *testing.T) {
	tracker, store := newTestTracker(t)
	now := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)

	id, err := tracker.ProcessDetection(observation("front_yard", true, now))
	require.NoError(t, err)

	require.NoError(t, tracker.RecordExit(id, "front_yard", "sidewalk", "main_path", now.Add(8*time.Second)))

	detections, err := store.GetWalkerDetections(id)
	require.NoError(t, err)
	require.Len(t, detections, 2)
	assert.Equal(t, "leave", detections[0].EventType)
	assert.False(t, detections[0].HasDog)
	assert.Nil(t, detections[0].DogConfidence)
}
