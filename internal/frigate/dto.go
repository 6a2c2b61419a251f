// Package frigate provides MQTT client functionality and the Frigate wire
// format types.
package frigate

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/DanceAddiction/DogShitAEye/internal/errors"
)

// Event lifecycle phases published on frigate/events.
const (
	EventTypeNew    = "new"
	EventTypeUpdate = "update"
	EventTypeEnd    = "end"
)

// Object labels this service cares about.
const (
	LabelPerson = "person"
	LabelDog    = "dog"
)

// Event is one message on frigate/events. Before and After carry the tracked
// object's state on either side of the transition; After is authoritative
// for the current state.
type Event struct {
	Type   string      `json:"type"` // "new", "update", "end"
	Before ObjectState `json:"before"`
	After  ObjectState `json:"after"`
}

// ObjectState describes a tracked object as Frigate reports it. Timestamps
// are Unix seconds with fractional precision.
type ObjectState struct {
	ID           string   `json:"id"`
	Camera       string   `json:"camera"`
	Label        string   `json:"label"`
	Score        float64  `json:"score"`
	TopScore     float64  `json:"top_score"`
	StartTime    float64  `json:"start_time"`
	EndTime      *float64 `json:"end_time"`
	CurrentZones []string `json:"current_zones"`
	EnteredZones []string `json:"entered_zones"`
	HasSnapshot  bool     `json:"has_snapshot"`
	HasClip      bool     `json:"has_clip"`
}

// Confidence returns the best available score for the object.
func (s *ObjectState) Confidence() float64 {
	if s.TopScore > s.Score {
		return s.TopScore
	}
	return s.Score
}

// StartedAt converts the fractional Unix start time to a time.Time.
func (s *ObjectState) StartedAt() time.Time {
	return unixFloat(s.StartTime)
}

// EndedAt converts the fractional Unix end time, or zero when the object is
// still tracked.
func (s *ObjectState) EndedAt() time.Time {
	if s.EndTime == nil {
		return time.Time{}
	}
	return unixFloat(*s.EndTime)
}

func unixFloat(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec)
}

// ParseEvent decodes a frigate/events payload.
func ParseEvent(payload []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, errors.Newf("parsing frigate event: %w", err).
			Category(errors.CategoryValidation).
			Component("frigate").
			Build()
	}
	return &event, nil
}

// ParseObjectCount decodes a per-camera object count payload, which Frigate
// publishes as a bare integer.
func ParseObjectCount(payload []byte) (int, error) {
	count, err := strconv.Atoi(strings.TrimSpace(string(payload)))
	if err != nil {
		return 0, errors.Newf("parsing object count %q: %w", string(payload), err).
			Category(errors.CategoryValidation).
			Component("frigate").
			Build()
	}
	return count, nil
}

// ParseCountTopic splits a frigate/{camera}/{label} topic into its camera
// and label. ok is false for topics of any other shape.
func ParseCountTopic(topic string) (camera, label string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != "frigate" {
		return "", "", false
	}
	if parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}
