package tracker

import (
	"time"

	"github.com/DanceAddiction/DogShitAEye/internal/datastore"
)

// SaveWalkerImage stores an evidence image for a walker and enforces the
// per-walker retention bound: when over the limit, the lowest-quality
// (oldest on ties) images are evicted, file first, row second. A failed
// file removal aborts the eviction so the row keeps pointing at an
// artifact that still exists.
func (t *Tracker) SaveWalkerImage(walkerID uint, imagePath, imageType, camera string, quality float64, now time.Time) error {
	img := datastore.WalkerImage{
		WalkerID:     walkerID,
		ImagePath:    imagePath,
		ImageType:    imageType,
		Timestamp:    now,
		Camera:       camera,
		QualityScore: quality,
	}
	if err := t.ds.SaveWalkerImage(&img); err != nil {
		return err
	}
	logger.Debug("Saved walker image",
		"walker_id", walkerID,
		"image_type", imageType,
		"quality", quality)

	return t.enforceImageLimit(walkerID)
}

func (t *Tracker) enforceImageLimit(walkerID uint) error {
	if t.cfg.MaxImagesPerWalker <= 0 {
		return nil
	}

	images, err := t.ds.GetWalkerImages(walkerID)
	if err != nil {
		return err
	}
	if len(images) <= t.cfg.MaxImagesPerWalker {
		return nil
	}

	// GetWalkerImages orders by quality descending, newest first on ties,
	// so everything past the limit is the eviction set.
	for _, img := range images[t.cfg.MaxImagesPerWalker:] {
		if t.remover != nil {
			if err := t.remover.Remove(img.ImagePath); err != nil {
				logger.Error("Failed to remove evicted image file",
					"walker_id", walkerID,
					"path", img.ImagePath,
					"error", err)
				return err
			}
		}
		if err := t.ds.DeleteWalkerImage(img.ID); err != nil {
			return err
		}
		if t.metrics != nil {
			t.metrics.ImageEvicted()
		}
		logger.Debug("Evicted walker image",
			"walker_id", walkerID,
			"path", img.ImagePath,
			"quality", img.QualityScore)
	}
	return nil
}
