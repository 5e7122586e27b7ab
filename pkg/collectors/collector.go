// Package collectors adapts the raw event streams of the tracked
// subsystems into the common event record. One adapter per subsystem;
// each is independently replaceable, and a failing adapter degrades
// coverage instead of aborting the pipeline.
package collectors

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/crosslens/crosslens/pkg/domain"
)

// Subsystem names the registry knows about.
const (
	SystemLearning  = "learning"
	SystemSessions  = "sessions"
	SystemAnalytics = "analytics"
	SystemCache     = "cache"
	SystemFiles     = "files"
)

// Source supplies the raw records behind an adapter. The record store
// implements this; tests substitute fixtures.
type Source interface {
	Fetch(ctx context.Context, system, userID string, timeRange domain.TimeRange) ([]domain.RawRecord, error)
}

// Collector fetches and normalizes one subsystem's events. An empty
// userID collects across all users.
type Collector interface {
	System() string
	Collect(ctx context.Context, userID string, timeRange domain.TimeRange) ([]*domain.Event, error)
}

// timeOfDay maps an hour to the ordinal context bucket.
func timeOfDay(t time.Time) string {
	switch h := t.Hour(); {
	case h < 6:
		return "night"
	case h < 12:
		return "morning"
	case h < 18:
		return "afternoon"
	default:
		return "evening"
	}
}

func dayOfWeek(t time.Time) string {
	return strings.ToLower(t.Weekday().String())
}

// baseContext derives the situational context every adapter shares.
func baseContext(record domain.RawRecord) domain.EventContext {
	ctx := domain.EventContext{
		TimeOfDay: timeOfDay(record.Timestamp),
		DayOfWeek: dayOfWeek(record.Timestamp),
	}
	ctx.SessionDuration = floatField(record.Fields, "duration_minutes")
	ctx.SystemLoad = floatField(record.Fields, "system_load")
	ctx.PreviousActivity = stringField(record.Fields, "previous_activity")
	return ctx
}

func floatField(fields map[string]interface{}, key string) float64 {
	if fields == nil {
		return 0
	}
	switch v := fields[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

func stringField(fields map[string]interface{}, key string) string {
	if fields == nil {
		return ""
	}
	if s, ok := fields[key].(string); ok {
		return s
	}
	return ""
}

// boundedField reads a [0,1] score with a fallback default.
func boundedField(fields map[string]interface{}, key string, fallback float64) float64 {
	if fields == nil {
		return fallback
	}
	if _, ok := fields[key]; !ok {
		return fallback
	}
	v := floatField(fields, key)
	if v < 0 || v > 1 {
		return fallback
	}
	return v
}

func eventID(record domain.RawRecord, system string) string {
	if record.ID != "" {
		return record.ID
	}
	return fmt.Sprintf("%s-%d", system, record.Timestamp.UnixNano())
}
