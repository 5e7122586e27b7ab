package domain

import (
	"fmt"
	"time"
)

// EventType classifies an event by the kind of behavior it captures.
type EventType string

const (
	EventTypeLearning     EventType = "learning"
	EventTypeSession      EventType = "session"
	EventTypePerformance  EventType = "performance"
	EventTypeUserBehavior EventType = "user_behavior"
	EventTypeCrossSystem  EventType = "cross_system"
	EventTypeAnomaly      EventType = "anomaly"
)

// TimeRange is a half-open interval [Start, End) over event timestamps.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the range.
func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// Validate checks the range is well-formed.
func (r TimeRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return fmt.Errorf("time range requires both start and end")
	}
	if !r.End.After(r.Start) {
		return fmt.Errorf("time range end %s must be after start %s", r.End, r.Start)
	}
	return nil
}

// EventContext carries the situational features attached to an event
// at collection time. Optional fields default to their zero value.
type EventContext struct {
	TimeOfDay        string   `json:"time_of_day"`
	DayOfWeek        string   `json:"day_of_week"`
	SessionDuration  float64  `json:"session_duration,omitempty"` // minutes
	PreviousActivity string   `json:"previous_activity,omitempty"`
	SystemLoad       float64  `json:"system_load,omitempty"`
	UserExperience   string   `json:"user_experience,omitempty"`
	Collaborators    []string `json:"collaborators,omitempty"`
}

// EventMetadata carries collection-time quality signals for an event.
type EventMetadata struct {
	Confidence      float64   `json:"confidence"`
	Importance      float64   `json:"importance"`
	Frequency       int       `json:"frequency"`
	LastSeen        time.Time `json:"last_seen"`
	RelatedPatterns []string  `json:"related_patterns,omitempty"`
	Tags            []string  `json:"tags,omitempty"`
}

// Event is the common record every subsystem adapter normalizes into.
// Immutable once collected.
type Event struct {
	ID           string                 `json:"id"`
	Type         EventType              `json:"type"`
	Timestamp    time.Time              `json:"timestamp"`
	UserID       string                 `json:"user_id"`
	SessionID    string                 `json:"session_id,omitempty"`
	SystemSource string                 `json:"system_source"`
	Data         map[string]interface{} `json:"data"`
	Context      EventContext           `json:"context"`
	Metadata     EventMetadata          `json:"metadata"`
}

// Validate checks required fields and bounded scores.
func (e *Event) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("event ID is required")
	}
	if e.Type == "" {
		return fmt.Errorf("event type is required")
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("event timestamp is required")
	}
	if e.SystemSource == "" {
		return fmt.Errorf("event system source is required")
	}
	if e.Metadata.Confidence < 0 || e.Metadata.Confidence > 1 {
		return fmt.Errorf("event confidence %f out of [0,1]", e.Metadata.Confidence)
	}
	if e.Metadata.Importance < 0 || e.Metadata.Importance > 1 {
		return fmt.Errorf("event importance %f out of [0,1]", e.Metadata.Importance)
	}
	if e.Metadata.Frequency < 0 {
		return fmt.Errorf("event frequency %d must be non-negative", e.Metadata.Frequency)
	}
	return nil
}
