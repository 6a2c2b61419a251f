package tracker

import (
	"time"

	"github.com/DanceAddiction/DogShitAEye/internal/datastore"
)

// upsertSession folds a detection into the walker's open walk session,
// opening one when none exists. Opening a session on a walker that already
// walked before increments the walk counter; the first session rides on the
// count set at identity creation.
func (t *Tracker) upsertSession(walkerID uint, camera, pathName string, hasDog bool, now time.Time) error {
	session, err := t.ds.GetOpenSession(walkerID)
	if err != nil {
		return err
	}

	if session == nil {
		session = &datastore.WalkSession{
			WalkerID:       walkerID,
			StartTime:      now,
			CamerasVisited: datastore.StringSet{camera},
			HasDog:         hasDog,
			UpdatedAt:      now,
		}
		if pathName != "" {
			session.PathsTaken = datastore.StringSet{pathName}
		}
		if err := t.ds.SaveSession(session); err != nil {
			return err
		}
		count, err := t.ds.CountWalkerSessions(walkerID)
		if err != nil {
			return err
		}
		if count > 1 {
			walker, err := t.ds.GetWalker(walkerID)
			if err != nil {
				return err
			}
			if err := t.ds.UpdateWalker(walkerID, map[string]any{"total_walks": walker.TotalWalks + 1}); err != nil {
				return err
			}
		}
		logger.Info("Opened walk session",
			"session_id", session.ID,
			"walker_id", walkerID,
			"camera", camera)
		return nil
	}

	session.CamerasVisited = session.CamerasVisited.Add(camera)
	if pathName != "" {
		session.PathsTaken = session.PathsTaken.Add(pathName)
	}
	if hasDog {
		session.HasDog = true
	}
	session.UpdatedAt = now
	return t.ds.UpdateSession(session)
}

// CloseSession ends the walker's open session at the given time. A walker
// with no open session is a no-op, not an error: staleness sweeps and
// explicit closes may race benignly.
func (t *Tracker) CloseSession(walkerID uint, now time.Time) error {
	session, err := t.ds.GetOpenSession(walkerID)
	if err != nil {
		return err
	}
	if session == nil {
		return nil
	}

	endTime := now
	session.EndTime = &endTime
	session.UpdatedAt = now
	if err := t.ds.UpdateSession(session); err != nil {
		return err
	}
	logger.Info("Closed walk session",
		"session_id", session.ID,
		"walker_id", walkerID,
		"duration", now.Sub(session.StartTime).String())
	return nil
}

// CloseStaleSessions closes every session whose last activity predates the
// timeout. Called periodically by the realtime service.
func (t *Tracker) CloseStaleSessions(timeout time.Duration, now time.Time) (int, error) {
	sessions, err := t.ds.GetStaleSessions(now.Add(-timeout))
	if err != nil {
		return 0, err
	}

	closed := 0
	for i := range sessions {
		endTime := now
		sessions[i].EndTime = &endTime
		sessions[i].UpdatedAt = now
		if err := t.ds.UpdateSession(&sessions[i]); err != nil {
			return closed, err
		}
		closed++
	}
	if closed > 0 {
		logger.Info("Closed stale walk sessions", "count", closed)
	}
	return closed, nil
}
