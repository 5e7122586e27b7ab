package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/crosslens/crosslens/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func storeRange() domain.TimeRange {
	return domain.TimeRange{
		Start: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC),
	}
}

func stubRecord(id, system, userID string, ts time.Time) domain.RawRecord {
	return domain.RawRecord{
		ID:        id,
		System:    system,
		Kind:      "test",
		Timestamp: ts,
		UserID:    userID,
		Fields:    map[string]interface{}{"value": 1.0},
	}
}

func stubPattern(id string, confidence float64) domain.IdentifiedPattern {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	return domain.IdentifiedPattern{
		ID:          id,
		Type:        domain.EventTypeSession,
		Name:        "test pattern",
		Confidence:  confidence,
		Frequency:   3,
		SuccessRate: 0.9,
		Impact:      0.5,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// recordStoreSuite exercises the RecordStore contract against any engine.
func recordStoreSuite(t *testing.T, store RecordStore) {
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	require.NoError(t, store.Append(ctx, stubRecord("r2", "sessions", "u1", base.Add(time.Hour))))
	require.NoError(t, store.Append(ctx, stubRecord("r1", "sessions", "u1", base)))
	require.NoError(t, store.Append(ctx, stubRecord("r3", "sessions", "u2", base.Add(2*time.Hour))))
	require.NoError(t, store.Append(ctx, stubRecord("other", "learning", "u1", base)))
	require.NoError(t, store.Append(ctx, stubRecord("late", "sessions", "u1", base.Add(48*time.Hour))))

	t.Run("fetch filters by system and range, sorted ascending", func(t *testing.T) {
		records, err := store.Fetch(ctx, "sessions", "", storeRange())
		require.NoError(t, err)
		require.Len(t, records, 3)
		assert.Equal(t, "r1", records[0].ID)
		assert.Equal(t, "r2", records[1].ID)
		assert.Equal(t, "r3", records[2].ID)
	})

	t.Run("fetch filters by user", func(t *testing.T) {
		records, err := store.Fetch(ctx, "sessions", "u2", storeRange())
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "r3", records[0].ID)
	})

	t.Run("fetch of unknown system is empty", func(t *testing.T) {
		records, err := store.Fetch(ctx, "missing", "", storeRange())
		require.NoError(t, err)
		assert.Empty(t, records)
	})
}

// patternStoreSuite exercises the PatternStore contract against any engine.
func patternStoreSuite(t *testing.T, store PatternStore) {
	ctx := context.Background()

	t.Run("get miss on absent id", func(t *testing.T) {
		_, found, err := store.Get(ctx, "nope")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("upsert preserves created at", func(t *testing.T) {
		original := stubPattern("p1", 0.8)
		require.NoError(t, store.Upsert(ctx, "u1", original))

		updated := stubPattern("p1", 0.95)
		updated.CreatedAt = original.CreatedAt.Add(time.Hour) // must be ignored
		updated.UpdatedAt = original.UpdatedAt.Add(time.Hour)
		require.NoError(t, store.Upsert(ctx, "u1", updated))

		stored, found, err := store.Get(ctx, "p1")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, 0.95, stored.Confidence)
		assert.True(t, stored.CreatedAt.Equal(original.CreatedAt))
		assert.True(t, stored.UpdatedAt.Equal(updated.UpdatedAt))
	})

	t.Run("list filters by user", func(t *testing.T) {
		require.NoError(t, store.Upsert(ctx, "u2", stubPattern("p2", 0.7)))

		mine, err := store.List(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, mine, 1)
		assert.Equal(t, "p1", mine[0].ID)

		all, err := store.List(ctx, "")
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})
}

func TestMemoryRecordStore(t *testing.T) {
	store := NewMemoryRecordStore()
	defer store.Close()
	recordStoreSuite(t, store)
}

func TestMemoryPatternStore(t *testing.T) {
	store := NewMemoryPatternStore()
	defer store.Close()
	patternStoreSuite(t, store)
}

func TestBadgerRecordStore(t *testing.T) {
	store, err := NewBadgerStore("", zap.NewNop())
	require.NoError(t, err)
	defer store.Close()
	recordStoreSuite(t, store)
}

func TestBadgerPatternStore(t *testing.T) {
	store, err := NewBadgerStore("", zap.NewNop())
	require.NoError(t, err)
	defer store.Close()
	patternStoreSuite(t, store)
}

func TestBadgerStoresManyRecords(t *testing.T) {
	store, err := NewBadgerStore("", zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	base := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 200; i++ {
		record := stubRecord(fmt.Sprintf("r%03d", i), "analytics", "u1", base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, store.Append(ctx, record))
	}

	records, err := store.Fetch(ctx, "analytics", "u1", storeRange())
	require.NoError(t, err)
	require.Len(t, records, 200)
	for i := 1; i < len(records); i++ {
		assert.False(t, records[i].Timestamp.Before(records[i-1].Timestamp))
	}
}
