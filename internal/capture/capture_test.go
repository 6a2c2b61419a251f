package capture

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DanceAddiction/DogShitAEye/internal/conf"
)

type fakeSource struct {
	snapshot      []byte
	frame         []byte
	snapshotCalls int
	frameCalls    int
	err           error
}

func (f *fakeSource) GetEventSnapshot(context.Context, string) ([]byte, error) {
	f.snapshotCalls++
	return f.snapshot, f.err
}

func (f *fakeSource) GetLatestFrame(context.Context, string) ([]byte, error) {
	f.frameCalls++
	return f.frame, f.err
}

type fakeSaver struct {
	walkerID  uint
	path      string
	imageType string
	quality   float64
	err       error
}

func (f *fakeSaver) SaveWalkerImage(walkerID uint, path, imageType, _ string, quality float64, _ time.Time) error {
	f.walkerID = walkerID
	f.path = path
	f.imageType = imageType
	f.quality = quality
	return f.err
}

func testSettings(t *testing.T) *conf.Settings {
	t.Helper()
	settings := &conf.Settings{}
	settings.Images.Enabled = true
	settings.Images.StoragePath = t.TempDir()
	settings.Images.FrameQuality = 0.6
	return settings
}

func TestEvidenceFromSnapshot(t *testing.T) {
	source := &fakeSource{snapshot: []byte("jpeg")}
	saver := &fakeSaver{}
	c := New(source, saver, testSettings(t))

	req := Request{
		WalkerID:    7,
		EventID:     "evt1",
		Camera:      "front_yard",
		HasSnapshot: true,
		HasDog:      true,
		Confidence:  0.91,
		Time:        time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC),
	}
	require.NoError(t, c.Evidence(context.Background(), req))

	assert.Equal(t, 1, source.snapshotCalls)
	assert.Zero(t, source.frameCalls)
	assert.Equal(t, uint(7), saver.walkerID)
	assert.Equal(t, "combined", saver.imageType)
	assert.InDelta(t, 0.91, saver.quality, 0.001)

	data, err := os.ReadFile(saver.path)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg"), data)
}

func TestEvidenceFallsBackToLatestFrame(t *testing.T) {
	source := &fakeSource{frame: []byte("frame")}
	saver := &fakeSaver{}
	settings := testSettings(t)
	c := New(source, saver, settings)

	req := Request{WalkerID: 3, Camera: "front_yard", Time: time.Now()}
	require.NoError(t, c.Evidence(context.Background(), req))

	assert.Equal(t, 1, source.frameCalls)
	assert.Zero(t, source.snapshotCalls)
	assert.Equal(t, "person", saver.imageType)
	assert.InDelta(t, settings.Images.FrameQuality, saver.quality, 0.001)
}

func TestEvidenceDisabledIsNoop(t *testing.T) {
	source := &fakeSource{snapshot: []byte("jpeg")}
	saver := &fakeSaver{}
	settings := testSettings(t)
	settings.Images.Enabled = false
	c := New(source, saver, settings)

	require.NoError(t, c.Evidence(context.Background(), Request{WalkerID: 1, HasSnapshot: true}))
	assert.Zero(t, source.snapshotCalls)
	assert.Empty(t, saver.path)
}

func TestEvidenceFetchFailure(t *testing.T) {
	source := &fakeSource{err: errors.New("unreachable")}
	saver := &fakeSaver{}
	c := New(source, saver, testSettings(t))

	err := c.Evidence(context.Background(), Request{WalkerID: 1, HasSnapshot: true, Time: time.Now()})
	require.Error(t, err)
	assert.Empty(t, saver.path)
}

func TestEvidenceSaveFailureRemovesFile(t *testing.T) {
	source := &fakeSource{snapshot: []byte("jpeg")}
	saver := &fakeSaver{err: errors.New("db down")}
	settings := testSettings(t)
	c := New(source, saver, settings)

	err := c.Evidence(context.Background(), Request{WalkerID: 1, HasSnapshot: true, Time: time.Now()})
	require.Error(t, err)

	entries, err := os.ReadDir(settings.Images.StoragePath)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRemover(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "img.jpg")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	var r Remover
	require.NoError(t, r.Remove(path))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Already gone is fine.
	assert.NoError(t, r.Remove(path))
}
