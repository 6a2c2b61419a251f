// model.go this code defines the data model for the application
package datastore

import (
	"slices"
	"time"
)

// Walker represents one presumed-unique physical person tracked across cameras.
// Identity is assigned by the matcher; there is no appearance matching, so a
// walker returning after a long gap receives a fresh identity.
type Walker struct {
	ID         uint      `gorm:"primaryKey"`
	FirstSeen  time.Time `gorm:"index:idx_walkers_first_seen"`
	LastSeen   time.Time `gorm:"index:idx_walkers_last_seen"`
	TotalWalks int

	Detections []Detection   `gorm:"foreignKey:WalkerID;constraint:OnDelete:CASCADE"` // One-to-many relationship with cascade delete
	Images     []WalkerImage `gorm:"foreignKey:WalkerID;constraint:OnDelete:CASCADE"` // One-to-many relationship with cascade delete
}

// Detection represents a single immutable observation of a walker at a
// camera/zone/path at a point in time.
type Detection struct {
	ID               uint   `gorm:"primaryKey"`
	WalkerID         uint   `gorm:"index;not null;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;foreignKey:WalkerID;references:ID"` // Foreign key to associate with Walker
	Camera           string `gorm:"index:idx_detections_camera"`
	Zone             string
	PathName         string
	Timestamp        time.Time `gorm:"index:idx_detections_timestamp"`
	EventType        string    `gorm:"type:varchar(20)"` // Values: "enter", "leave"
	HasDog           bool
	PersonConfidence float64
	DogConfidence    *float64 // nil when no dog was present
}

// WalkerImage references a captured evidence image for a walker.
type WalkerImage struct {
	ID           uint `gorm:"primaryKey"`
	WalkerID     uint `gorm:"index;not null;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;foreignKey:WalkerID;references:ID"` // Foreign key to associate with Walker
	ImagePath    string
	ImageType    string    `gorm:"type:varchar(20)"` // Values: "person", "dog", "combined"
	Timestamp    time.Time `gorm:"index"`
	Camera       string
	QualityScore float64
}

// WalkSession aggregates the detections belonging to one continuous outing.
// EndTime is nil while the session is open; at most one open session may
// exist per walker at any time.
type WalkSession struct {
	ID             uint       `gorm:"primaryKey"`
	WalkerID       uint       `gorm:"index;not null;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;foreignKey:WalkerID;references:ID"` // Foreign key to associate with Walker
	StartTime      time.Time  `gorm:"index:idx_walk_sessions_start"`
	EndTime        *time.Time `gorm:"index:idx_walk_sessions_end"`
	CamerasVisited StringSet  `gorm:"serializer:json"`
	PathsTaken     StringSet  `gorm:"serializer:json"`
	HasDog         bool
	UpdatedAt      time.Time // maintained by GORM, used for staleness polling
}

// StringSet is an unordered, deduplicated membership set persisted as JSON.
// Elements are kept sorted so serialized values are deterministic.
type StringSet []string

// Add returns the set with value included. The receiver is not mutated.
func (s StringSet) Add(value string) StringSet {
	idx, found := slices.BinarySearch(s, value)
	if found {
		return s
	}
	return slices.Insert(slices.Clone(s), idx, value)
}

// Contains reports whether value is a member of the set.
func (s StringSet) Contains(value string) bool {
	_, found := slices.BinarySearch(s, value)
	return found
}
