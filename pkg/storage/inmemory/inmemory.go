// Package inmemory provides a map-backed storage driver.
package inmemory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/papercomputeco/ssechat/pkg/storage"
)

// Driver implements storage.Driver using an in-memory map.
type Driver struct {
	// mu is a read write sync mutex for locking the mapping of records
	mu sync.RWMutex

	// records is keyed by record ID
	records map[string]*storage.Record
}

// NewDriver creates a new in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		records: make(map[string]*storage.Record),
	}
}

// Put stores a record. Returns true if the record was newly inserted.
func (s *Driver) Put(_ context.Context, rec *storage.Record) (bool, error) {
	if rec == nil {
		return false, errors.New("cannot store nil record")
	}
	if rec.ID == "" {
		return false, errors.New("cannot store record without an id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.ID]; ok {
		return false, nil
	}

	s.records[rec.ID] = clone(rec)
	return true, nil
}

// Get retrieves a record by its ID.
func (s *Driver) Get(_ context.Context, id string) (*storage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, storage.NotFoundError{ID: id}
	}

	return clone(rec), nil
}

// List returns records, most recently completed first.
func (s *Driver) List(_ context.Context, limit int) ([]*storage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*storage.Record, 0, len(s.records))
	for _, rec := range s.records {
		records = append(records, clone(rec))
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].CompletedAt.Equal(records[j].CompletedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].CompletedAt.After(records[j].CompletedAt)
	})

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Close is a no-op for the in-memory driver.
func (s *Driver) Close() error {
	return nil
}

func clone(rec *storage.Record) *storage.Record {
	out := *rec
	out.Turn = rec.Turn.Clone()
	return &out
}
