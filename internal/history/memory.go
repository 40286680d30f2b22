package history

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps records in process memory. With a capacity set, the
// oldest records are dropped once it is exceeded.
type MemoryStore struct {
	mu       sync.RWMutex
	records  []Record
	byID     map[uuid.UUID]int
	capacity int
	now      func() time.Time
}

// NewMemoryStore returns an empty store. capacity <= 0 means unbounded.
func NewMemoryStore(capacity int) *MemoryStore {
	return &MemoryStore{
		byID:     make(map[uuid.UUID]int),
		capacity: capacity,
		now:      time.Now,
	}
}

// Save implements Store.
func (s *MemoryStore) Save(ctx context.Context, rec Record) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	rec = Prepare(rec, s.now())

	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.byID[rec.ID]; ok {
		s.records[i] = rec
		return rec, nil
	}
	s.records = append(s.records, rec)
	s.byID[rec.ID] = len(s.records) - 1
	if s.capacity > 0 && len(s.records) > s.capacity {
		s.evict(len(s.records) - s.capacity)
	}
	return rec, nil
}

// evict drops the n oldest records. Callers hold mu.
func (s *MemoryStore) evict(n int) {
	for _, r := range s.records[:n] {
		delete(s.byID, r.ID)
	}
	s.records = append([]Record(nil), s.records[n:]...)
	for i, r := range s.records {
		s.byID[r.ID] = i
	}
}

// List implements Store. Records saved later come first; equal CreatedAt
// values keep reverse insertion order.
func (s *MemoryStore) List(ctx context.Context, userID string, limit int) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit = Limit(limit)

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Record{}
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		if r := s.records[i]; r.UserID == userID {
			r.Symbols = r.Symbols.Clone()
			out = append(out, r)
		}
	}
	return out, nil
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byID[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	r := s.records[i]
	r.Symbols = r.Symbols.Clone()
	return r, nil
}
