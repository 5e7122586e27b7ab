package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/crosslens/crosslens/pkg/domain"
	"github.com/crosslens/crosslens/pkg/storage"
	natsgo "github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseSubject(t *testing.T) {
	tests := []struct {
		subject string
		system  string
		kind    string
		ok      bool
	}{
		{"events.sessions.work_session", "sessions", "work_session", true},
		{"events.cache", "cache", "", true},
		{"events.files.op.rename", "files", "op.rename", true},
		{"metrics.sessions.foo", "", "", false},
		{"events", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.subject, func(t *testing.T) {
			system, kind, ok := parseSubject(tt.subject)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.system, system)
			assert.Equal(t, tt.kind, kind)
		})
	}
}

func TestNewSubscriberRequiresDependencies(t *testing.T) {
	_, err := NewSubscriber(SubscriberConfig{}, nil, zap.NewNop())
	assert.Error(t, err)
	_, err = NewSubscriber(SubscriberConfig{}, storage.NewMemoryRecordStore(), nil)
	assert.Error(t, err)
}

func newTestSubscriber(t *testing.T, systems []string) (*Subscriber, *storage.MemoryRecordStore) {
	t.Helper()
	store := storage.NewMemoryRecordStore()
	sub, err := NewSubscriber(SubscriberConfig{Systems: systems}, store, zap.NewNop())
	require.NoError(t, err)
	return sub, store
}

func wideRange() domain.TimeRange {
	return domain.TimeRange{
		Start: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestHandleStoresRecord(t *testing.T) {
	sub, store := newTestSubscriber(t, nil)

	sub.handle(context.Background(), &natsgo.Msg{
		Subject: "events.sessions.work_session",
		Data: []byte(`{
			"id": "r1",
			"timestamp": "2026-03-02T09:00:00Z",
			"user_id": "u1",
			"session_id": "sess-1",
			"fields": {"status": "completed", "duration_minutes": 50}
		}`),
	})

	records, err := store.Fetch(context.Background(), "sessions", "u1", wideRange())
	require.NoError(t, err)
	require.Len(t, records, 1)

	record := records[0]
	assert.Equal(t, "r1", record.ID)
	assert.Equal(t, "sessions", record.System)
	assert.Equal(t, "work_session", record.Kind)
	assert.Equal(t, "sess-1", record.SessionID)
	assert.Equal(t, "completed", record.Fields["status"])
	assert.True(t, record.Timestamp.Equal(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)))
}

func TestHandleDefaultsMissingTimestamp(t *testing.T) {
	sub, store := newTestSubscriber(t, nil)

	before := time.Now()
	sub.handle(context.Background(), &natsgo.Msg{
		Subject: "events.cache.stats",
		Data:    []byte(`{"id": "c1", "fields": {"hit_rate": 0.9}}`),
	})

	records, err := store.Fetch(context.Background(), "cache", "", wideRange())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.False(t, records[0].Timestamp.Before(before))
}

func TestHandleFiltersDisallowedSystems(t *testing.T) {
	sub, store := newTestSubscriber(t, []string{"sessions"})

	sub.handle(context.Background(), &natsgo.Msg{
		Subject: "events.files.op",
		Data:    []byte(`{"id": "f1", "user_id": "u1"}`),
	})

	records, err := store.Fetch(context.Background(), "files", "", wideRange())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestHandleDropsBadMessages(t *testing.T) {
	sub, store := newTestSubscriber(t, nil)

	sub.handle(context.Background(), &natsgo.Msg{
		Subject: "events.sessions.work_session",
		Data:    []byte(`{not json`),
	})
	sub.handle(context.Background(), &natsgo.Msg{
		Subject: "telemetry.sessions",
		Data:    []byte(`{"id": "x"}`),
	})

	records, err := store.Fetch(context.Background(), "sessions", "", wideRange())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestStopBeforeStartIsNoop(t *testing.T) {
	sub, _ := newTestSubscriber(t, nil)
	assert.NoError(t, sub.Stop())
}
