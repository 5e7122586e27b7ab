package collectors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/crosslens/crosslens/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fixtureSource serves canned records per system and can be told to
// fail for specific systems.
type fixtureSource struct {
	records map[string][]domain.RawRecord
	failing map[string]error
}

func (s *fixtureSource) Fetch(ctx context.Context, system, userID string, timeRange domain.TimeRange) ([]domain.RawRecord, error) {
	if err := s.failing[system]; err != nil {
		return nil, err
	}
	return s.records[system], nil
}

func testRange() domain.TimeRange {
	return domain.TimeRange{
		Start: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC),
	}
}

func rawRecord(id, system string, ts time.Time, fields map[string]interface{}) domain.RawRecord {
	return domain.RawRecord{
		ID:        id,
		System:    system,
		Kind:      "test",
		Timestamp: ts,
		UserID:    "u1",
		SessionID: "s1",
		Fields:    fields,
	}
}

func TestSessionsAdapterNormalization(t *testing.T) {
	ts := time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC)
	source := &fixtureSource{records: map[string][]domain.RawRecord{
		SystemSessions: {
			rawRecord("r1", SystemSessions, ts, map[string]interface{}{
				"status":           "completed",
				"productivity":     0.85,
				"duration_minutes": 50.0,
			}),
			rawRecord("r2", SystemSessions, ts.Add(time.Hour), map[string]interface{}{
				"status": "abandoned",
			}),
		},
	}}

	collector := NewSessions(source, zap.NewNop())
	events, err := collector.Collect(context.Background(), "u1", testRange())
	require.NoError(t, err)
	require.Len(t, events, 2)

	completed, abandoned := events[0], events[1]
	assert.Equal(t, domain.EventTypeSession, completed.Type)
	assert.Equal(t, SystemSessions, completed.SystemSource)
	assert.Equal(t, 0.9, completed.Metadata.Confidence)
	assert.Equal(t, 0.85, completed.Metadata.Importance)
	assert.Equal(t, 50.0, completed.Context.SessionDuration)
	assert.Equal(t, "morning", completed.Context.TimeOfDay)
	assert.Equal(t, "monday", completed.Context.DayOfWeek)

	assert.Equal(t, 0.6, abandoned.Metadata.Confidence)
	assert.Equal(t, 0.5, abandoned.Metadata.Importance) // default productivity
}

func TestCacheStatsImportanceInvertsHitRate(t *testing.T) {
	ts := time.Date(2026, 3, 2, 22, 0, 0, 0, time.UTC)
	source := &fixtureSource{records: map[string][]domain.RawRecord{
		SystemCache: {
			rawRecord("c1", SystemCache, ts, map[string]interface{}{"hit_rate": 0.92}),
		},
	}}

	collector := NewCacheStats(source, zap.NewNop())
	events, err := collector.Collect(context.Background(), "", testRange())
	require.NoError(t, err)
	require.Len(t, events, 1)

	assert.Equal(t, domain.EventTypePerformance, events[0].Type)
	assert.InDelta(t, 0.08, events[0].Metadata.Importance, 1e-9)
	assert.Equal(t, "evening", events[0].Context.TimeOfDay)
}

func TestAdapterDropsMalformedRecords(t *testing.T) {
	ts := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	source := &fixtureSource{records: map[string][]domain.RawRecord{
		SystemLearning: {
			rawRecord("ok", SystemLearning, ts, map[string]interface{}{"retention": 0.7}),
			rawRecord("bad", SystemLearning, time.Time{}, nil), // zero timestamp
		},
	}}

	collector := NewLearning(source, zap.NewNop())
	events, err := collector.Collect(context.Background(), "u1", testRange())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "ok", events[0].ID)
	assert.Equal(t, 0.7, events[0].Metadata.Importance)
	assert.Equal(t, 0.7, events[0].Metadata.Confidence) // capture_quality default
}

func TestAdapterGeneratesIDWhenMissing(t *testing.T) {
	ts := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	source := &fixtureSource{records: map[string][]domain.RawRecord{
		SystemFiles: {
			rawRecord("", SystemFiles, ts, map[string]interface{}{"churn": 0.3}),
		},
	}}

	collector := NewFileOps(source, zap.NewNop())
	events, err := collector.Collect(context.Background(), "u1", testRange())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.NotEmpty(t, events[0].ID)
	assert.Equal(t, domain.EventTypeUserBehavior, events[0].Type)
}

func newTestRegistry(source Source) *Registry {
	logger := zap.NewNop()
	return NewRegistry(logger,
		NewLearning(source, logger),
		NewSessions(source, logger),
		NewAnalytics(source, logger),
		NewCacheStats(source, logger),
		NewFileOps(source, logger),
	)
}

func TestRegistrySystemsSorted(t *testing.T) {
	registry := newTestRegistry(&fixtureSource{})
	assert.Equal(t, []string{"analytics", "cache", "files", "learning", "sessions"}, registry.Systems())
}

func TestCollectAllMergesAndSorts(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	source := &fixtureSource{records: map[string][]domain.RawRecord{
		SystemSessions: {
			rawRecord("s-late", SystemSessions, base.Add(2*time.Hour), map[string]interface{}{"status": "completed"}),
		},
		SystemLearning: {
			rawRecord("l-early", SystemLearning, base, nil),
		},
		SystemAnalytics: {
			rawRecord("a-mid", SystemAnalytics, base.Add(time.Hour), map[string]interface{}{"value": 1.0}),
		},
	}}

	registry := newTestRegistry(source)
	events, coverage := registry.CollectAll(context.Background(), []string{SystemSessions, SystemLearning, SystemAnalytics}, "u1", testRange())

	require.Len(t, events, 3)
	assert.Equal(t, "l-early", events[0].ID)
	assert.Equal(t, "a-mid", events[1].ID)
	assert.Equal(t, "s-late", events[2].ID)

	for _, system := range []string{SystemSessions, SystemLearning, SystemAnalytics} {
		assert.False(t, coverage[system].Degraded)
		assert.Equal(t, 1, coverage[system].Events)
	}
}

func TestCollectAllIsolatesFailures(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	source := &fixtureSource{
		records: map[string][]domain.RawRecord{
			SystemSessions: {
				rawRecord("s1", SystemSessions, base, map[string]interface{}{"status": "completed"}),
			},
		},
		failing: map[string]error{
			SystemCache: errors.New("cache stats unavailable"),
		},
	}

	registry := newTestRegistry(source)
	events, coverage := registry.CollectAll(context.Background(), []string{SystemSessions, SystemCache, "unknown"}, "u1", testRange())

	require.Len(t, events, 1)
	assert.Equal(t, "s1", events[0].ID)

	assert.True(t, coverage[SystemCache].Degraded)
	assert.Contains(t, coverage[SystemCache].Error, "cache stats unavailable")
	assert.True(t, coverage["unknown"].Degraded)
	assert.Equal(t, "unknown system", coverage["unknown"].Error)
	assert.False(t, coverage[SystemSessions].Degraded)
}
