package repository

import (
	"context"
	"sync"

	"github.com/okian/zcalc/internal/domain/model"
)

type memKey struct {
	attribute model.Attribute
	key       model.ReferenceKey
}

// MemoryStore keeps reference records in a map. Records are stored raw so the
// same parsing rules apply as for the networked backends.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[memKey]map[string]string
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[memKey]map[string]string)}
}

// Put stores a raw record, replacing any previous one at the same key.
func (s *MemoryStore) Put(attribute model.Attribute, key model.ReferenceKey, fields map[string]string) {
	cp := make(map[string]string, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	s.mu.Lock()
	s.records[memKey{attribute, key}] = cp
	s.mu.Unlock()
}

// Fetch implements Store.
func (s *MemoryStore) Fetch(_ context.Context, attribute model.Attribute, key model.ReferenceKey) (model.ReferenceParameters, error) {
	s.mu.RLock()
	fields, ok := s.records[memKey{attribute, key}]
	s.mu.RUnlock()
	if !ok {
		return model.ReferenceParameters{}, notFound(attribute, key)
	}
	return parseRecord(attribute, key, fields)
}

// Upsert implements Writer.
func (s *MemoryStore) Upsert(_ context.Context, attribute model.Attribute, rows []Row) (int, error) {
	for _, r := range rows {
		s.Put(attribute, r.Key, r.fields())
	}
	return len(rows), nil
}

// Len returns the number of records held.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Name implements Store.
func (s *MemoryStore) Name() string { return DriverMemory }

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }
