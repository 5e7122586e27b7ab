// Package features converts events into numeric vectors for the
// analysis strategies. Extraction is deterministic and side-effect-free
// so a strategy pass is reproducible for the same event set.
package features

import (
	"github.com/crosslens/crosslens/pkg/domain"
)

// Fixed ordinal encodings for categorical context. Unknown values map
// to -1 so they never collide with a real bucket.
var timeOfDayOrdinal = map[string]float64{
	"night":     0,
	"morning":   1,
	"afternoon": 2,
	"evening":   3,
}

var dayOfWeekOrdinal = map[string]float64{
	"monday":    0,
	"tuesday":   1,
	"wednesday": 2,
	"thursday":  3,
	"friday":    4,
	"saturday":  5,
	"sunday":    6,
}

var eventTypeOrdinal = map[domain.EventType]float64{
	domain.EventTypeLearning:     0,
	domain.EventTypeSession:      1,
	domain.EventTypePerformance:  2,
	domain.EventTypeUserBehavior: 3,
	domain.EventTypeCrossSystem:  4,
	domain.EventTypeAnomaly:      5,
}

// VectorSize is the length of every extracted feature vector.
const VectorSize = 8

// Names labels each position of the extracted vector, in order.
var Names = []string{
	"time_of_day",
	"day_of_week",
	"session_duration",
	"system_load",
	"collaborators",
	"confidence",
	"importance",
	"event_type",
}

// Keys probed, in order, when deriving the time-series scalar from
// event payload data.
var scalarDataKeys = []string{"value", "duration", "latency_ms", "hit_rate", "score", "count"}

// Extractor converts events into feature vectors and scalar series.
type Extractor struct{}

// NewExtractor creates a feature extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns the fixed-size numeric feature vector for an event.
// Absent numeric context fields contribute 0.
func (x *Extractor) Extract(event *domain.Event) []float64 {
	v := make([]float64, 0, VectorSize)
	v = append(v, ordinal(timeOfDayOrdinal, event.Context.TimeOfDay))
	v = append(v, ordinal(dayOfWeekOrdinal, event.Context.DayOfWeek))
	v = append(v, event.Context.SessionDuration)
	v = append(v, event.Context.SystemLoad)
	v = append(v, float64(len(event.Context.Collaborators)))
	v = append(v, event.Metadata.Confidence)
	v = append(v, event.Metadata.Importance)
	if ord, ok := eventTypeOrdinal[event.Type]; ok {
		v = append(v, ord)
	} else {
		v = append(v, -1)
	}
	return v
}

// TimeSeriesValue returns the scalar an event contributes to the
// time-series strategy. The first well-known numeric payload key wins;
// session duration and then importance serve as fallbacks so every
// event yields a value.
func (x *Extractor) TimeSeriesValue(event *domain.Event) float64 {
	for _, key := range scalarDataKeys {
		if raw, ok := event.Data[key]; ok {
			if f, ok := asFloat(raw); ok {
				return f
			}
		}
	}
	if event.Context.SessionDuration > 0 {
		return event.Context.SessionDuration
	}
	return event.Metadata.Importance
}

func ordinal(table map[string]float64, value string) float64 {
	if ord, ok := table[value]; ok {
		return ord
	}
	return -1
}

func asFloat(raw interface{}) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	}
	return 0, false
}
