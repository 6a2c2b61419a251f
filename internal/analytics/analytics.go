// Package analytics derives aggregate views over walkers, sessions and
// detections: habits, schedules, paths and anomalies.
package analytics

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/DanceAddiction/DogShitAEye/internal/conf"
	"github.com/DanceAddiction/DogShitAEye/internal/datastore"
	"github.com/DanceAddiction/DogShitAEye/internal/logging"
)

var logger *slog.Logger

func init() {
	var err error
	logger, _, err = logging.NewFileLogger("logs/analytics.log", "analytics", slog.LevelInfo)
	if err != nil {
		logging.Error("Failed to initialize analytics file logger", "error", err)
		logger = logging.Structured().With("service", "analytics")
		if logger == nil {
			panic(fmt.Sprintf("Failed to initialize any logger for analytics service: %v", err))
		}
	}
}

const (
	cacheTTL     = time.Minute
	cacheCleanup = 5 * time.Minute
)

// Analytics computes aggregate reports. Query results are cached briefly so
// dashboard polling does not translate into repeated full scans.
type Analytics struct {
	ds       datastore.Interface
	settings *conf.Settings
	cache    *gocache.Cache
	now      func() time.Time
}

// New creates an Analytics service over the datastore.
func New(ds datastore.Interface, settings *conf.Settings) *Analytics {
	return &Analytics{
		ds:       ds,
		settings: settings,
		cache:    gocache.New(cacheTTL, cacheCleanup),
		now:      time.Now,
	}
}

// RegularWalker is a walker seen repeatedly within the configured lookback.
type RegularWalker struct {
	WalkerID  uint      `json:"walker_id"`
	Walks     int       `json:"walks"`
	HasDog    bool      `json:"has_dog"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// SuspiciousWalker is a walker with repeated visits and never a dog.
type SuspiciousWalker struct {
	WalkerID   uint      `json:"walker_id"`
	Walks      int       `json:"walks"`
	Detections int       `json:"detections"`
	LastSeen   time.Time `json:"last_seen"`
}

// PathPattern is a camera route taken on one or more walks.
type PathPattern struct {
	Route string `json:"route"`
	Count int    `json:"count"`
}

// Summary is the system-wide counters for the stats endpoint.
type Summary struct {
	TotalWalkers    int64 `json:"total_walkers"`
	TotalDetections int64 `json:"total_detections"`
	TotalSessions   int64 `json:"total_sessions"`
	OpenSessions    int   `json:"open_sessions"`
	DogWalks        int   `json:"dog_walks"`
}

// WalkerReport is the per-walker detail view.
type WalkerReport struct {
	Walker     datastore.Walker        `json:"walker"`
	Sessions   []datastore.WalkSession `json:"sessions"`
	Detections []datastore.Detection   `json:"detections"`
	Images     []datastore.WalkerImage `json:"images"`
	Schedule   [24]int                 `json:"schedule"`
}

// Summary returns system-wide counters.
func (a *Analytics) Summary() (*Summary, error) {
	if cached, found := a.cache.Get("summary"); found {
		return cached.(*Summary), nil
	}

	walkers, err := a.ds.CountWalkers()
	if err != nil {
		return nil, err
	}
	detections, err := a.ds.CountDetections()
	if err != nil {
		return nil, err
	}
	sessionCount, err := a.ds.CountSessions()
	if err != nil {
		return nil, err
	}
	sessions, err := a.ds.GetAllSessions()
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		TotalWalkers:    walkers,
		TotalDetections: detections,
		TotalSessions:   sessionCount,
	}
	for i := range sessions {
		if sessions[i].EndTime == nil {
			summary.OpenSessions++
		}
		if sessions[i].HasDog {
			summary.DogWalks++
		}
	}

	a.cache.SetDefault("summary", summary)
	return summary, nil
}

// RegularWalkers returns walkers with more than one walk inside the
// configured lookback window, busiest first.
func (a *Analytics) RegularWalkers() ([]RegularWalker, error) {
	if cached, found := a.cache.Get("regular"); found {
		return cached.([]RegularWalker), nil
	}

	since := a.now().AddDate(0, 0, -a.settings.Analytics.RegularWalkerDays)
	sessions, err := a.ds.GetSessionsSince(since)
	if err != nil {
		return nil, err
	}

	type agg struct {
		walks  int
		hasDog bool
	}
	byWalker := make(map[uint]*agg)
	for i := range sessions {
		entry := byWalker[sessions[i].WalkerID]
		if entry == nil {
			entry = &agg{}
			byWalker[sessions[i].WalkerID] = entry
		}
		entry.walks++
		if sessions[i].HasDog {
			entry.hasDog = true
		}
	}

	var regulars []RegularWalker
	for walkerID, entry := range byWalker {
		if entry.walks < 2 {
			continue
		}
		walker, err := a.ds.GetWalker(walkerID)
		if err != nil {
			return nil, err
		}
		regulars = append(regulars, RegularWalker{
			WalkerID:  walkerID,
			Walks:     entry.walks,
			HasDog:    entry.hasDog,
			FirstSeen: walker.FirstSeen,
			LastSeen:  walker.LastSeen,
		})
	}
	sort.Slice(regulars, func(i, j int) bool {
		if regulars[i].Walks != regulars[j].Walks {
			return regulars[i].Walks > regulars[j].Walks
		}
		return regulars[i].WalkerID < regulars[j].WalkerID
	})

	a.cache.SetDefault("regular", regulars)
	return regulars, nil
}

// SuspiciousWalkers returns walkers at or past the visit threshold that have
// never been seen with a dog. Most active first.
func (a *Analytics) SuspiciousWalkers() ([]SuspiciousWalker, error) {
	if cached, found := a.cache.Get("suspicious"); found {
		return cached.([]SuspiciousWalker), nil
	}

	walkers, err := a.ds.GetAllWalkers()
	if err != nil {
		return nil, err
	}

	var suspicious []SuspiciousWalker
	for i := range walkers {
		if walkers[i].TotalWalks < a.settings.Analytics.SuspiciousThreshold {
			continue
		}
		sessions, err := a.ds.GetWalkerSessions(walkers[i].ID)
		if err != nil {
			return nil, err
		}
		hadDog := false
		for j := range sessions {
			if sessions[j].HasDog {
				hadDog = true
				break
			}
		}
		if hadDog {
			continue
		}
		detections, err := a.ds.GetWalkerDetections(walkers[i].ID)
		if err != nil {
			return nil, err
		}
		suspicious = append(suspicious, SuspiciousWalker{
			WalkerID:   walkers[i].ID,
			Walks:      walkers[i].TotalWalks,
			Detections: len(detections),
			LastSeen:   walkers[i].LastSeen,
		})
	}
	sort.Slice(suspicious, func(i, j int) bool {
		if suspicious[i].Walks != suspicious[j].Walks {
			return suspicious[i].Walks > suspicious[j].Walks
		}
		return suspicious[i].WalkerID < suspicious[j].WalkerID
	})

	a.cache.SetDefault("suspicious", suspicious)
	return suspicious, nil
}

// Schedule returns the count of session starts per hour of day.
func (a *Analytics) Schedule() ([24]int, error) {
	if cached, found := a.cache.Get("schedule"); found {
		return cached.([24]int), nil
	}

	var schedule [24]int
	sessions, err := a.ds.GetAllSessions()
	if err != nil {
		return schedule, err
	}
	for i := range sessions {
		schedule[sessions[i].StartTime.Hour()]++
	}

	a.cache.SetDefault("schedule", schedule)
	return schedule, nil
}

// PathPatterns returns the distinct camera routes walked, most common first.
// A route is the session's visited camera set joined in order.
func (a *Analytics) PathPatterns() ([]PathPattern, error) {
	if cached, found := a.cache.Get("paths"); found {
		return cached.([]PathPattern), nil
	}

	sessions, err := a.ds.GetAllSessions()
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for i := range sessions {
		if len(sessions[i].CamerasVisited) == 0 {
			continue
		}
		counts[strings.Join(sessions[i].CamerasVisited, " -> ")]++
	}

	patterns := make([]PathPattern, 0, len(counts))
	for route, count := range counts {
		patterns = append(patterns, PathPattern{Route: route, Count: count})
	}
	sort.Slice(patterns, func(i, j int) bool {
		if patterns[i].Count != patterns[j].Count {
			return patterns[i].Count > patterns[j].Count
		}
		return patterns[i].Route < patterns[j].Route
	})

	a.cache.SetDefault("paths", patterns)
	return patterns, nil
}

// Heatmap returns detection counts per camera and hour of day.
func (a *Analytics) Heatmap() (map[string][24]int, error) {
	if cached, found := a.cache.Get("heatmap"); found {
		return cached.(map[string][24]int), nil
	}

	walkers, err := a.ds.GetAllWalkers()
	if err != nil {
		return nil, err
	}

	heatmap := make(map[string][24]int)
	for i := range walkers {
		detections, err := a.ds.GetWalkerDetections(walkers[i].ID)
		if err != nil {
			return nil, err
		}
		for j := range detections {
			row := heatmap[detections[j].Camera]
			row[detections[j].Timestamp.Hour()]++
			heatmap[detections[j].Camera] = row
		}
	}

	a.cache.SetDefault("heatmap", heatmap)
	return heatmap, nil
}

// Coverage returns the total detection count per camera.
func (a *Analytics) Coverage() (map[string]int64, error) {
	if cached, found := a.cache.Get("coverage"); found {
		return cached.(map[string]int64), nil
	}

	coverage, err := a.ds.CameraCoverage()
	if err != nil {
		return nil, err
	}

	a.cache.SetDefault("coverage", coverage)
	return coverage, nil
}

// WalkerReport assembles the full detail view for one walker.
func (a *Analytics) WalkerReport(walkerID uint) (*WalkerReport, error) {
	walker, err := a.ds.GetWalker(walkerID)
	if err != nil {
		return nil, err
	}
	sessions, err := a.ds.GetWalkerSessions(walkerID)
	if err != nil {
		return nil, err
	}
	detections, err := a.ds.GetWalkerDetections(walkerID)
	if err != nil {
		return nil, err
	}
	images, err := a.ds.GetWalkerImages(walkerID)
	if err != nil {
		return nil, err
	}

	report := &WalkerReport{
		Walker:     walker,
		Sessions:   sessions,
		Detections: detections,
		Images:     images,
	}
	for i := range sessions {
		report.Schedule[sessions[i].StartTime.Hour()]++
	}
	return report, nil
}

// Invalidate clears all cached reports. Called by tests and after bulk
// imports.
func (a *Analytics) Invalidate() {
	a.cache.Flush()
	logger.Debug("Analytics cache flushed")
}
