package storage

import (
	"context"
	"sync"

	"github.com/crosslens/crosslens/pkg/domain"
)

// PatternStore holds identified patterns keyed by pattern id. The
// store is append/update-only: entries are upserted on re-derivation
// (last write wins) and never removed by the pipeline.
type PatternStore interface {
	// Upsert stores or replaces a pattern. On replacement the original
	// CreatedAt is preserved and only UpdatedAt advances.
	Upsert(ctx context.Context, userID string, pattern domain.IdentifiedPattern) error

	// Get returns the pattern with the given id, if present.
	Get(ctx context.Context, id string) (domain.IdentifiedPattern, bool, error)

	// List returns the patterns for a user; empty userID lists all.
	List(ctx context.Context, userID string) ([]domain.IdentifiedPattern, error)

	// Close releases the underlying engine.
	Close() error
}

type memoryPatternEntry struct {
	userID  string
	pattern domain.IdentifiedPattern
}

// MemoryPatternStore is the in-memory pattern engine: concurrent reads,
// writes serialized per store (coarser than per-id, acceptable since
// patterns are derived, not authoritative).
type MemoryPatternStore struct {
	mu      sync.RWMutex
	entries map[string]memoryPatternEntry
}

// NewMemoryPatternStore creates an empty in-memory pattern store.
func NewMemoryPatternStore() *MemoryPatternStore {
	return &MemoryPatternStore{entries: make(map[string]memoryPatternEntry)}
}

// Upsert implements PatternStore.
func (s *MemoryPatternStore) Upsert(ctx context.Context, userID string, pattern domain.IdentifiedPattern) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.entries[pattern.ID]; ok {
		pattern.CreatedAt = existing.pattern.CreatedAt
	}
	s.entries[pattern.ID] = memoryPatternEntry{userID: userID, pattern: pattern}
	return nil
}

// Get implements PatternStore.
func (s *MemoryPatternStore) Get(ctx context.Context, id string) (domain.IdentifiedPattern, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.IdentifiedPattern{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[id]
	return entry.pattern, ok, nil
}

// List implements PatternStore.
func (s *MemoryPatternStore) List(ctx context.Context, userID string) ([]domain.IdentifiedPattern, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.IdentifiedPattern, 0, len(s.entries))
	for _, entry := range s.entries {
		if userID != "" && entry.userID != userID {
			continue
		}
		out = append(out, entry.pattern)
	}
	return out, nil
}

// Close implements PatternStore.
func (s *MemoryPatternStore) Close() error { return nil }
