package memory

import (
	"context"
	"sync"

	"github.com/ButyrinIA/forum/internal/storage"
)

// MemoryStorage хранит коллекции в порядке вставки
type MemoryStorage struct {
	collections map[string][]storage.Record
	mu          sync.RWMutex
}

func New() *MemoryStorage {
	return &MemoryStorage{
		collections: make(map[string][]storage.Record),
	}
}

var _ storage.Storage = (*MemoryStorage)(nil)

func (s *MemoryStorage) List(ctx context.Context, collection string, filter map[string]string) ([]storage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []storage.Record{}
	for _, rec := range s.collections[collection] {
		if storage.Matches(rec, filter) {
			result = append(result, copyRecord(rec))
		}
	}
	return result, nil
}

func (s *MemoryStorage) Get(ctx context.Context, collection, id string) (storage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexLocked(collection, id)
	if i < 0 {
		return nil, storage.ErrNotFound
	}
	return copyRecord(s.collections[collection][i]), nil
}

func (s *MemoryStorage) Create(ctx context.Context, collection string, rec storage.Record) (storage.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	created := storage.Prepare(rec)
	if i := s.indexLocked(collection, storage.RecordID(created)); i >= 0 {
		s.collections[collection][i] = created
	} else {
		s.collections[collection] = append(s.collections[collection], created)
	}
	return copyRecord(created), nil
}

func (s *MemoryStorage) Patch(ctx context.Context, collection, id string, patch storage.Record) (storage.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(collection, id)
	if i < 0 {
		return nil, storage.ErrNotFound
	}
	merged := storage.Merge(s.collections[collection][i], patch)
	s.collections[collection][i] = merged
	return copyRecord(merged), nil
}

func (s *MemoryStorage) Replace(ctx context.Context, collection, id string, rec storage.Record) (storage.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(collection, id)
	if i < 0 {
		return nil, storage.ErrNotFound
	}
	replaced := copyRecord(rec)
	replaced["id"] = s.collections[collection][i]["id"]
	s.collections[collection][i] = replaced
	return copyRecord(replaced), nil
}

func (s *MemoryStorage) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(collection, id)
	if i < 0 {
		return storage.ErrNotFound
	}
	records := s.collections[collection]
	s.collections[collection] = append(records[:i:i], records[i+1:]...)
	return nil
}

func (s *MemoryStorage) Close() error {
	return nil
}

func (s *MemoryStorage) indexLocked(collection, id string) int {
	for i, rec := range s.collections[collection] {
		if storage.RecordID(rec) == id {
			return i
		}
	}
	return -1
}

func copyRecord(rec storage.Record) storage.Record {
	out := make(storage.Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}
