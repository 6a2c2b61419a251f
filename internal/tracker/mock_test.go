package tracker

import (
	"fmt"
	"sort"
	"time"

	"github.com/DanceAddiction/DogShitAEye/internal/datastore"
)

// fakeStore is an in-memory datastore.Interface for tracker tests.
type fakeStore struct {
	walkers  map[uint]*datastore.Walker
	sessions map[uint]*datastore.WalkSession
	images   map[uint]*datastore.WalkerImage

	detections []datastore.Detection

	nextWalkerID  uint
	nextSessionID uint
	nextImageID   uint

	// failOn makes the named operation return an error.
	failOn map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		walkers:  make(map[uint]*datastore.Walker),
		sessions: make(map[uint]*datastore.WalkSession),
		images:   make(map[uint]*datastore.WalkerImage),
		failOn:   make(map[string]error),
	}
}

func (f *fakeStore) fail(op string) error { return f.failOn[op] }

func (f *fakeStore) Open() error  { return nil }
func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) SaveWalker(walker *datastore.Walker) error {
	if err := f.fail("SaveWalker"); err != nil {
		return err
	}
	f.nextWalkerID++
	walker.ID = f.nextWalkerID
	stored := *walker
	f.walkers[walker.ID] = &stored
	return nil
}

func (f *fakeStore) UpdateWalker(id uint, fields map[string]any) error {
	if err := f.fail("UpdateWalker"); err != nil {
		return err
	}
	walker, ok := f.walkers[id]
	if !ok {
		return fmt.Errorf("walker %d not found", id)
	}
	for key, value := range fields {
		switch key {
		case "last_seen":
			walker.LastSeen = value.(time.Time)
		case "total_walks":
			walker.TotalWalks = value.(int)
		}
	}
	return nil
}

func (f *fakeStore) GetWalker(id uint) (datastore.Walker, error) {
	walker, ok := f.walkers[id]
	if !ok {
		return datastore.Walker{}, fmt.Errorf("walker %d not found", id)
	}
	return *walker, nil
}

func (f *fakeStore) GetAllWalkers() ([]datastore.Walker, error) {
	walkers := make([]datastore.Walker, 0, len(f.walkers))
	for _, walker := range f.walkers {
		walkers = append(walkers, *walker)
	}
	sort.Slice(walkers, func(i, j int) bool { return walkers[i].ID < walkers[j].ID })
	return walkers, nil
}

func (f *fakeStore) CountWalkers() (int64, error) {
	return int64(len(f.walkers)), nil
}

func (f *fakeStore) SaveDetection(detection *datastore.Detection) error {
	if err := f.fail("SaveDetection"); err != nil {
		return err
	}
	detection.ID = uint(len(f.detections) + 1)
	f.detections = append(f.detections, *detection)
	return nil
}

func (f *fakeStore) GetWalkerDetections(walkerID uint) ([]datastore.Detection, error) {
	var out []datastore.Detection
	for _, d := range f.detections {
		if d.WalkerID == walkerID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func (f *fakeStore) CountDetections() (int64, error) {
	return int64(len(f.detections)), nil
}

func (f *fakeStore) CameraCoverage() (map[string]int64, error) {
	coverage := make(map[string]int64)
	for _, d := range f.detections {
		coverage[d.Camera]++
	}
	return coverage, nil
}

func (f *fakeStore) SaveSession(session *datastore.WalkSession) error {
	if err := f.fail("SaveSession"); err != nil {
		return err
	}
	f.nextSessionID++
	session.ID = f.nextSessionID
	stored := *session
	f.sessions[session.ID] = &stored
	return nil
}

func (f *fakeStore) UpdateSession(session *datastore.WalkSession) error {
	if err := f.fail("UpdateSession"); err != nil {
		return err
	}
	if _, ok := f.sessions[session.ID]; !ok {
		return fmt.Errorf("session %d not found", session.ID)
	}
	stored := *session
	f.sessions[session.ID] = &stored
	return nil
}

func (f *fakeStore) GetOpenSession(walkerID uint) (*datastore.WalkSession, error) {
	if err := f.fail("GetOpenSession"); err != nil {
		return nil, err
	}
	for _, session := range f.sessions {
		if session.WalkerID == walkerID && session.EndTime == nil {
			copied := *session
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetStaleSessions(inactiveSince time.Time) ([]datastore.WalkSession, error) {
	var out []datastore.WalkSession
	for _, session := range f.sessions {
		if session.EndTime == nil && session.UpdatedAt.Before(inactiveSince) {
			out = append(out, *session)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) GetWalkerSessions(walkerID uint) ([]datastore.WalkSession, error) {
	var out []datastore.WalkSession
	for _, session := range f.sessions {
		if session.WalkerID == walkerID {
			out = append(out, *session)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	return out, nil
}

func (f *fakeStore) GetSessionsSince(since time.Time) ([]datastore.WalkSession, error) {
	var out []datastore.WalkSession
	for _, session := range f.sessions {
		if !session.StartTime.Before(since) {
			out = append(out, *session)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (f *fakeStore) GetAllSessions() ([]datastore.WalkSession, error) {
	var out []datastore.WalkSession
	for _, session := range f.sessions {
		out = append(out, *session)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (f *fakeStore) CountSessions() (int64, error) {
	return int64(len(f.sessions)), nil
}

func (f *fakeStore) CountWalkerSessions(walkerID uint) (int64, error) {
	var count int64
	for _, session := range f.sessions {
		if session.WalkerID == walkerID {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) SaveWalkerImage(image *datastore.WalkerImage) error {
	if err := f.fail("SaveWalkerImage"); err != nil {
		return err
	}
	f.nextImageID++
	image.ID = f.nextImageID
	stored := *image
	f.images[image.ID] = &stored
	return nil
}

func (f *fakeStore) GetWalkerImages(walkerID uint) ([]datastore.WalkerImage, error) {
	var out []datastore.WalkerImage
	for _, image := range f.images {
		if image.WalkerID == walkerID {
			out = append(out, *image)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].QualityScore != out[j].QualityScore {
			return out[i].QualityScore > out[j].QualityScore
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

func (f *fakeStore) DeleteWalkerImage(id uint) error {
	if err := f.fail("DeleteWalkerImage"); err != nil {
		return err
	}
	delete(f.images, id)
	return nil
}

func (f *fakeStore) CountWalkerImages(walkerID uint) (int64, error) {
	var count int64
	for _, image := range f.images {
		if image.WalkerID == walkerID {
			count++
		}
	}
	return count, nil
}

// fakeRemover records removed paths and can be primed to fail.
type fakeRemover struct {
	removed []string
	err     error
}

func (r *fakeRemover) Remove(path string) error {
	if r.err != nil {
		return r.err
	}
	r.removed = append(r.removed, path)
	return nil
}

var _ datastore.Interface = (*fakeStore)(nil)
