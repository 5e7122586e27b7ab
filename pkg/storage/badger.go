package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/crosslens/crosslens/pkg/domain"
	badger "github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// Key layout:
//
//	rec:<system>:<unixnano padded>:<id>  -> RawRecord JSON
//	pat:<id>                             -> storedPattern JSON
//	patu:<user>:<id>                     -> pattern id
const (
	recordPrefix       = "rec:"
	patternPrefix      = "pat:"
	patternIndexPrefix = "patu:"
)

// BadgerStore is the persistent engine backing both the record store
// and the pattern store.
type BadgerStore struct {
	db     *badger.DB
	logger *zap.Logger
}

// NewBadgerStore opens (or creates) a Badger database at dir. An empty
// dir opens an in-memory database, used by tests.
func NewBadgerStore(dir string, logger *zap.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLogger(nil) // badger's own logger is too chatty

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger store: %w", err)
	}
	return &BadgerStore{db: db, logger: logger}, nil
}

func recordKey(record domain.RawRecord) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d:%s", recordPrefix, record.System, record.Timestamp.UnixNano(), record.ID))
}

// Append implements RecordStore.
func (s *BadgerStore) Append(ctx context.Context, record domain.RawRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	value, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding record %s: %w", record.ID, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(record), value)
	})
	if err != nil {
		return fmt.Errorf("storing record %s: %w", record.ID, err)
	}
	return nil
}

// Fetch implements RecordStore. The key layout orders records by
// timestamp, so a prefix scan already yields ascending order.
func (s *BadgerStore) Fetch(ctx context.Context, system, userID string, timeRange domain.TimeRange) ([]domain.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := []byte(recordPrefix + system + ":")
	var out []domain.RawRecord
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			value, err := it.Item().ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("reading record value: %w", err)
			}
			var record domain.RawRecord
			if err := json.Unmarshal(value, &record); err != nil {
				s.logger.Warn("Skipping undecodable record", zap.Error(err))
				continue
			}
			if !timeRange.Contains(record.Timestamp) {
				continue
			}
			if userID != "" && record.UserID != userID {
				continue
			}
			out = append(out, record)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s records: %w", system, err)
	}
	return out, nil
}

type storedPattern struct {
	UserID  string                   `json:"user_id"`
	Pattern domain.IdentifiedPattern `json:"pattern"`
}

// Upsert implements PatternStore. Re-derivation keeps the original
// CreatedAt and bumps only UpdatedAt.
func (s *BadgerStore) Upsert(ctx context.Context, userID string, pattern domain.IdentifiedPattern) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := []byte(patternPrefix + pattern.ID)
	return s.db.Update(func(txn *badger.Txn) error {
		if item, err := txn.Get(key); err == nil {
			value, err := item.ValueCopy(nil)
			if err == nil {
				var existing storedPattern
				if json.Unmarshal(value, &existing) == nil {
					pattern.CreatedAt = existing.Pattern.CreatedAt
				}
			}
		}

		value, err := json.Marshal(storedPattern{UserID: userID, Pattern: pattern})
		if err != nil {
			return fmt.Errorf("encoding pattern %s: %w", pattern.ID, err)
		}
		if err := txn.Set(key, value); err != nil {
			return fmt.Errorf("storing pattern %s: %w", pattern.ID, err)
		}
		if userID != "" {
			indexKey := []byte(patternIndexPrefix + userID + ":" + pattern.ID)
			if err := txn.Set(indexKey, []byte(pattern.ID)); err != nil {
				return fmt.Errorf("indexing pattern %s: %w", pattern.ID, err)
			}
		}
		return nil
	})
}

// Get implements PatternStore.
func (s *BadgerStore) Get(ctx context.Context, id string) (domain.IdentifiedPattern, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.IdentifiedPattern{}, false, err
	}
	var stored storedPattern
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(patternPrefix + id))
		if err != nil {
			return err
		}
		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return json.Unmarshal(value, &stored)
	})
	if err == badger.ErrKeyNotFound {
		return domain.IdentifiedPattern{}, false, nil
	}
	if err != nil {
		return domain.IdentifiedPattern{}, false, fmt.Errorf("loading pattern %s: %w", id, err)
	}
	return stored.Pattern, true, nil
}

// List implements PatternStore. An empty userID lists every pattern.
func (s *BadgerStore) List(ctx context.Context, userID string) ([]domain.IdentifiedPattern, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []domain.IdentifiedPattern
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(patternPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			value, err := it.Item().ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("reading pattern value: %w", err)
			}
			var stored storedPattern
			if err := json.Unmarshal(value, &stored); err != nil {
				s.logger.Warn("Skipping undecodable pattern", zap.Error(err))
				continue
			}
			if userID != "" && stored.UserID != userID {
				continue
			}
			out = append(out, stored.Pattern)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning patterns: %w", err)
	}
	return out, nil
}

// Close implements both store interfaces.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
