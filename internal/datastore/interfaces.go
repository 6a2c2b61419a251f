// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"time"

	"gorm.io/gorm"

	"github.com/DanceAddiction/DogShitAEye/internal/conf"
	"github.com/DanceAddiction/DogShitAEye/internal/errors"
)

// Interface abstracts the underlying database implementation and defines the
// operations the tracker, analytics and API layers depend on.
type Interface interface {
	Open() error
	Close() error

	// walkers
	SaveWalker(walker *Walker) error
	UpdateWalker(id uint, fields map[string]any) error
	GetWalker(id uint) (Walker, error)
	GetAllWalkers() ([]Walker, error)
	CountWalkers() (int64, error)

	// detections
	SaveDetection(detection *Detection) error
	GetWalkerDetections(walkerID uint) ([]Detection, error)
	CountDetections() (int64, error)
	CameraCoverage() (map[string]int64, error)

	// walk sessions
	SaveSession(session *WalkSession) error
	UpdateSession(session *WalkSession) error
	GetOpenSession(walkerID uint) (*WalkSession, error)
	GetStaleSessions(inactiveSince time.Time) ([]WalkSession, error)
	GetWalkerSessions(walkerID uint) ([]WalkSession, error)
	GetSessionsSince(since time.Time) ([]WalkSession, error)
	GetAllSessions() ([]WalkSession, error)
	CountSessions() (int64, error)
	CountWalkerSessions(walkerID uint) (int64, error)

	// walker images
	SaveWalkerImage(image *WalkerImage) error
	GetWalkerImages(walkerID uint) ([]WalkerImage, error)
	DeleteWalkerImage(id uint) error
	CountWalkerImages(walkerID uint) (int64, error)
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB // GORM database instance
}

// New creates a new datastore based on the provided configuration.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{
			Settings: settings,
		}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{
			Settings: settings,
		}
	default:
		return nil
	}
}

// SaveWalker inserts a new walker record.
func (ds *DataStore) SaveWalker(walker *Walker) error {
	if err := ds.DB.Create(walker).Error; err != nil {
		return errors.Newf("saving walker: %w", err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Build()
	}
	return nil
}

// UpdateWalker updates specific fields of a walker record.
func (ds *DataStore) UpdateWalker(id uint, fields map[string]any) error {
	if err := ds.DB.Model(&Walker{}).Where("id = ?", id).Updates(fields).Error; err != nil {
		return errors.Newf("updating walker %d: %w", id, err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Context("walker_id", id).
			Build()
	}
	return nil
}

// GetWalker retrieves a walker by its ID.
func (ds *DataStore) GetWalker(id uint) (Walker, error) {
	var walker Walker
	if err := ds.DB.First(&walker, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Walker{}, errors.Newf("walker %d not found", id).
				Category(errors.CategoryNotFound).
				Component("datastore").
				Context("walker_id", id).
				Build()
		}
		return Walker{}, errors.Newf("getting walker %d: %w", id, err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Build()
	}
	return walker, nil
}

// GetAllWalkers retrieves every walker record.
func (ds *DataStore) GetAllWalkers() ([]Walker, error) {
	var walkers []Walker
	if err := ds.DB.Order("id").Find(&walkers).Error; err != nil {
		return nil, errors.Newf("getting all walkers: %w", err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Build()
	}
	return walkers, nil
}

// CountWalkers returns the number of walker records.
func (ds *DataStore) CountWalkers() (int64, error) {
	var count int64
	if err := ds.DB.Model(&Walker{}).Count(&count).Error; err != nil {
		return 0, errors.Newf("counting walkers: %w", err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Build()
	}
	return count, nil
}

// SaveDetection appends an immutable detection record.
func (ds *DataStore) SaveDetection(detection *Detection) error {
	if err := ds.DB.Create(detection).Error; err != nil {
		return errors.Newf("saving detection: %w", err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Context("walker_id", detection.WalkerID).
			Context("camera", detection.Camera).
			Build()
	}
	return nil
}

// GetWalkerDetections retrieves a walker's detections, most recent first.
func (ds *DataStore) GetWalkerDetections(walkerID uint) ([]Detection, error) {
	var detections []Detection
	if err := ds.DB.Where("walker_id = ?", walkerID).
		Order("timestamp DESC").
		Find(&detections).Error; err != nil {
		return nil, errors.Newf("getting detections for walker %d: %w", walkerID, err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Build()
	}
	return detections, nil
}

// CountDetections returns the number of detection records.
func (ds *DataStore) CountDetections() (int64, error) {
	var count int64
	if err := ds.DB.Model(&Detection{}).Count(&count).Error; err != nil {
		return 0, errors.Newf("counting detections: %w", err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Build()
	}
	return count, nil
}

// CameraCoverage returns the detection count per camera.
func (ds *DataStore) CameraCoverage() (map[string]int64, error) {
	var rows []struct {
		Camera string
		Count  int64
	}
	if err := ds.DB.Model(&Detection{}).
		Select("camera, count(id) as count").
		Group("camera").
		Scan(&rows).Error; err != nil {
		return nil, errors.Newf("querying camera coverage: %w", err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Build()
	}

	coverage := make(map[string]int64, len(rows))
	for _, row := range rows {
		coverage[row.Camera] = row.Count
	}
	return coverage, nil
}

// SaveSession inserts a new walk session record.
func (ds *DataStore) SaveSession(session *WalkSession) error {
	if err := ds.DB.Create(session).Error; err != nil {
		return errors.Newf("saving walk session: %w", err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Context("walker_id", session.WalkerID).
			Build()
	}
	return nil
}

// UpdateSession persists the full state of an existing walk session.
func (ds *DataStore) UpdateSession(session *WalkSession) error {
	if err := ds.DB.Save(session).Error; err != nil {
		return errors.Newf("updating walk session %d: %w", session.ID, err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Context("walker_id", session.WalkerID).
			Build()
	}
	return nil
}

// GetOpenSession returns the walker's open session, or nil when none is open.
func (ds *DataStore) GetOpenSession(walkerID uint) (*WalkSession, error) {
	var session WalkSession
	err := ds.DB.Where("walker_id = ? AND end_time IS NULL", walkerID).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Newf("getting open session for walker %d: %w", walkerID, err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Build()
	}
	return &session, nil
}

// GetStaleSessions returns open sessions with no activity since inactiveSince.
func (ds *DataStore) GetStaleSessions(inactiveSince time.Time) ([]WalkSession, error) {
	var sessions []WalkSession
	if err := ds.DB.Where("end_time IS NULL AND updated_at < ?", inactiveSince).
		Find(&sessions).Error; err != nil {
		return nil, errors.Newf("getting stale sessions: %w", err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Build()
	}
	return sessions, nil
}

// GetWalkerSessions retrieves a walker's sessions, most recent first.
func (ds *DataStore) GetWalkerSessions(walkerID uint) ([]WalkSession, error) {
	var sessions []WalkSession
	if err := ds.DB.Where("walker_id = ?", walkerID).
		Order("start_time DESC").
		Find(&sessions).Error; err != nil {
		return nil, errors.Newf("getting sessions for walker %d: %w", walkerID, err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Build()
	}
	return sessions, nil
}

// GetSessionsSince retrieves sessions that started at or after since.
func (ds *DataStore) GetSessionsSince(since time.Time) ([]WalkSession, error) {
	var sessions []WalkSession
	if err := ds.DB.Where("start_time >= ?", since).
		Order("start_time").
		Find(&sessions).Error; err != nil {
		return nil, errors.Newf("getting sessions since %s: %w", since, err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Build()
	}
	return sessions, nil
}

// GetAllSessions retrieves every walk session record.
func (ds *DataStore) GetAllSessions() ([]WalkSession, error) {
	var sessions []WalkSession
	if err := ds.DB.Order("start_time").Find(&sessions).Error; err != nil {
		return nil, errors.Newf("getting all sessions: %w", err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Build()
	}
	return sessions, nil
}

// CountSessions returns the number of walk session records.
func (ds *DataStore) CountSessions() (int64, error) {
	var count int64
	if err := ds.DB.Model(&WalkSession{}).Count(&count).Error; err != nil {
		return 0, errors.Newf("counting sessions: %w", err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Build()
	}
	return count, nil
}

// CountWalkerSessions returns the number of walk sessions for a walker.
func (ds *DataStore) CountWalkerSessions(walkerID uint) (int64, error) {
	var count int64
	if err := ds.DB.Model(&WalkSession{}).
		Where("walker_id = ?", walkerID).
		Count(&count).Error; err != nil {
		return 0, errors.Newf("counting sessions for walker %d: %w", walkerID, err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Build()
	}
	return count, nil
}

// SaveWalkerImage inserts a new walker image record.
func (ds *DataStore) SaveWalkerImage(image *WalkerImage) error {
	if err := ds.DB.Create(image).Error; err != nil {
		return errors.Newf("saving walker image: %w", err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Context("walker_id", image.WalkerID).
			Build()
	}
	return nil
}

// GetWalkerImages retrieves a walker's images ordered by quality score
// descending, timestamp descending. The retention policy relies on this
// ordering to pick eviction candidates.
func (ds *DataStore) GetWalkerImages(walkerID uint) ([]WalkerImage, error) {
	var images []WalkerImage
	if err := ds.DB.Where("walker_id = ?", walkerID).
		Order("quality_score DESC, timestamp DESC").
		Find(&images).Error; err != nil {
		return nil, errors.Newf("getting images for walker %d: %w", walkerID, err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Build()
	}
	return images, nil
}

// DeleteWalkerImage removes a walker image record.
func (ds *DataStore) DeleteWalkerImage(id uint) error {
	if err := ds.DB.Delete(&WalkerImage{}, id).Error; err != nil {
		return errors.Newf("deleting walker image %d: %w", id, err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Build()
	}
	return nil
}

// CountWalkerImages returns the number of stored images for a walker.
func (ds *DataStore) CountWalkerImages(walkerID uint) (int64, error) {
	var count int64
	if err := ds.DB.Model(&WalkerImage{}).
		Where("walker_id = ?", walkerID).
		Count(&count).Error; err != nil {
		return 0, errors.Newf("counting images for walker %d: %w", walkerID, err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Build()
	}
	return count, nil
}
