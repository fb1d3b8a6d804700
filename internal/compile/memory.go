package compile

import (
	"context"
	"sort"
	"sync"
)

// Compile-time checks for the in-memory implementations.
var (
	_ Repository  = (*MemoryRepository)(nil)
	_ RecordStore = (*MemoryRecordStore)(nil)
)

// MemoryRepository is an in-memory implementation of Repository.
type MemoryRepository struct {
	mu    sync.RWMutex
	comps map[string]*Compilation
}

// NewMemoryRepository creates a new in-memory compilation repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{comps: make(map[string]*Compilation)}
}

// Save persists a compilation clone to avoid external mutations.
func (r *MemoryRepository) Save(_ context.Context, comp *Compilation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.comps[comp.ID] = comp.Clone()
	return nil
}

// FindByID retrieves a compilation clone by id.
func (r *MemoryRepository) FindByID(_ context.Context, id string) (*Compilation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	comp, ok := r.comps[id]
	if !ok {
		return nil, ErrNotFound
	}
	return comp.Clone(), nil
}

// MemoryRecordStore is an in-memory implementation of RecordStore,
// suitable for development and tests; production uses the SQLite store.
type MemoryRecordStore struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewMemoryRecordStore creates a new in-memory record store.
func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{records: make(map[string]*Record)}
}

// Save writes one record.
func (s *MemoryRecordStore) Save(_ context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *record
	clone.SourcePublicIDs = append([]string(nil), record.SourcePublicIDs...)
	s.records[record.ID] = &clone
	return nil
}

// FindByID retrieves a record by id.
func (s *MemoryRecordStore) FindByID(_ context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	clone := *record
	return &clone, nil
}

// ListByUser returns the user's records, newest first.
func (s *MemoryRecordStore) ListByUser(_ context.Context, userID string) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*Record, 0)
	for _, record := range s.records {
		if record.UserID == userID {
			clone := *record
			result = append(result, &clone)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}
