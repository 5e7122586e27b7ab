package collectors

import (
	"context"
	"fmt"

	"github.com/crosslens/crosslens/pkg/domain"
	"go.uber.org/zap"
)

// adapter is the shared fetch-and-normalize skeleton. Each subsystem
// supplies its own normalize func.
type adapter struct {
	system    string
	source    Source
	logger    *zap.Logger
	normalize func(domain.RawRecord) *domain.Event
}

func (a *adapter) System() string { return a.system }

func (a *adapter) Collect(ctx context.Context, userID string, timeRange domain.TimeRange) ([]*domain.Event, error) {
	records, err := a.source.Fetch(ctx, a.system, userID, timeRange)
	if err != nil {
		return nil, fmt.Errorf("fetching %s records: %w", a.system, err)
	}

	events := make([]*domain.Event, 0, len(records))
	for _, record := range records {
		event := a.normalize(record)
		if err := event.Validate(); err != nil {
			a.logger.Warn("Dropping malformed record",
				zap.String("system", a.system),
				zap.String("record_id", record.ID),
				zap.Error(err))
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

// NewLearning adapts the learning-capture subsystem. Retention maps to
// importance; capture quality to confidence.
func NewLearning(source Source, logger *zap.Logger) Collector {
	return &adapter{
		system: SystemLearning,
		source: source,
		logger: logger,
		normalize: func(record domain.RawRecord) *domain.Event {
			return &domain.Event{
				ID:           eventID(record, SystemLearning),
				Type:         domain.EventTypeLearning,
				Timestamp:    record.Timestamp,
				UserID:       record.UserID,
				SessionID:    record.SessionID,
				SystemSource: SystemLearning,
				Data:         record.Fields,
				Context:      baseContext(record),
				Metadata: domain.EventMetadata{
					Confidence: boundedField(record.Fields, "capture_quality", 0.7),
					Importance: boundedField(record.Fields, "retention", 0.5),
					Frequency:  1,
					LastSeen:   record.Timestamp,
				},
			}
		},
	}
}

// NewSessions adapts the work-session tracker. Completed sessions carry
// higher confidence; productivity drives importance.
func NewSessions(source Source, logger *zap.Logger) Collector {
	return &adapter{
		system: SystemSessions,
		source: source,
		logger: logger,
		normalize: func(record domain.RawRecord) *domain.Event {
			confidence := 0.6
			if stringField(record.Fields, "status") == "completed" {
				confidence = 0.9
			}
			return &domain.Event{
				ID:           eventID(record, SystemSessions),
				Type:         domain.EventTypeSession,
				Timestamp:    record.Timestamp,
				UserID:       record.UserID,
				SessionID:    record.SessionID,
				SystemSource: SystemSessions,
				Data:         record.Fields,
				Context:      baseContext(record),
				Metadata: domain.EventMetadata{
					Confidence: confidence,
					Importance: boundedField(record.Fields, "productivity", 0.5),
					Frequency:  1,
					LastSeen:   record.Timestamp,
				},
			}
		},
	}
}

// NewAnalytics adapts runtime telemetry into performance events.
func NewAnalytics(source Source, logger *zap.Logger) Collector {
	return &adapter{
		system: SystemAnalytics,
		source: source,
		logger: logger,
		normalize: func(record domain.RawRecord) *domain.Event {
			return &domain.Event{
				ID:           eventID(record, SystemAnalytics),
				Type:         domain.EventTypePerformance,
				Timestamp:    record.Timestamp,
				UserID:       record.UserID,
				SessionID:    record.SessionID,
				SystemSource: SystemAnalytics,
				Data:         record.Fields,
				Context:      baseContext(record),
				Metadata: domain.EventMetadata{
					Confidence: 0.95, // instrumented measurements
					Importance: boundedField(record.Fields, "severity_score", 0.5),
					Frequency:  1,
					LastSeen:   record.Timestamp,
				},
			}
		},
	}
}

// NewCacheStats adapts cache instrumentation into performance events.
// Low hit rates raise importance.
func NewCacheStats(source Source, logger *zap.Logger) Collector {
	return &adapter{
		system: SystemCache,
		source: source,
		logger: logger,
		normalize: func(record domain.RawRecord) *domain.Event {
			hitRate := boundedField(record.Fields, "hit_rate", 0.5)
			return &domain.Event{
				ID:           eventID(record, SystemCache),
				Type:         domain.EventTypePerformance,
				Timestamp:    record.Timestamp,
				UserID:       record.UserID,
				SessionID:    record.SessionID,
				SystemSource: SystemCache,
				Data:         record.Fields,
				Context:      baseContext(record),
				Metadata: domain.EventMetadata{
					Confidence: 0.9,
					Importance: 1 - hitRate,
					Frequency:  1,
					LastSeen:   record.Timestamp,
				},
			}
		},
	}
}

// NewFileOps adapts file-operation logs into user-behavior events.
func NewFileOps(source Source, logger *zap.Logger) Collector {
	return &adapter{
		system: SystemFiles,
		source: source,
		logger: logger,
		normalize: func(record domain.RawRecord) *domain.Event {
			return &domain.Event{
				ID:           eventID(record, SystemFiles),
				Type:         domain.EventTypeUserBehavior,
				Timestamp:    record.Timestamp,
				UserID:       record.UserID,
				SessionID:    record.SessionID,
				SystemSource: SystemFiles,
				Data:         record.Fields,
				Context:      baseContext(record),
				Metadata: domain.EventMetadata{
					Confidence: 0.8,
					Importance: boundedField(record.Fields, "churn", 0.4),
					Frequency:  1,
					LastSeen:   record.Timestamp,
				},
			}
		},
	}
}
