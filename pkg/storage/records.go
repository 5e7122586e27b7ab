// Package storage provides the persistence layer: raw subsystem
// records feeding the collectors and identified patterns shared by the
// analysis and prediction paths.
//
// Two engines exist for each store: an in-memory implementation used in
// tests and single-process setups, and a BadgerDB-backed implementation
// for durable, replayable history. All engines are safe for concurrent
// use.
package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/crosslens/crosslens/pkg/domain"
)

// RecordStore holds raw subsystem records. It implements
// collectors.Source so adapters can read directly from it.
type RecordStore interface {
	// Append stores one record.
	Append(ctx context.Context, record domain.RawRecord) error

	// Fetch returns records for a system within the time range,
	// optionally filtered to one user. Ordered ascending by timestamp.
	Fetch(ctx context.Context, system, userID string, timeRange domain.TimeRange) ([]domain.RawRecord, error)

	// Close releases the underlying engine.
	Close() error
}

// MemoryRecordStore is the in-memory record engine.
type MemoryRecordStore struct {
	mu      sync.RWMutex
	records map[string][]domain.RawRecord // system -> records
}

// NewMemoryRecordStore creates an empty in-memory record store.
func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{records: make(map[string][]domain.RawRecord)}
}

// Append implements RecordStore.
func (s *MemoryRecordStore) Append(ctx context.Context, record domain.RawRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.System] = append(s.records[record.System], record)
	return nil
}

// Fetch implements RecordStore.
func (s *MemoryRecordStore) Fetch(ctx context.Context, system, userID string, timeRange domain.TimeRange) ([]domain.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.RawRecord
	for _, record := range s.records[system] {
		if !timeRange.Contains(record.Timestamp) {
			continue
		}
		if userID != "" && record.UserID != userID {
			continue
		}
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// Close implements RecordStore.
func (s *MemoryRecordStore) Close() error { return nil }
