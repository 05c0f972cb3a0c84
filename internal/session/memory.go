package session

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	data      []byte
	updatedAt time.Time
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// MemoryStore keeps sessions in process. Entries are stored as JSON
// snapshots so callers never share slices with the store.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memEntry
	locks   map[string]*keyLock
	ttl     time.Duration
	clock   func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memEntry),
		locks:   make(map[string]*keyLock),
		ttl:     ttl,
		clock:   time.Now,
	}
}

func (s *MemoryStore) lock(id string) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &keyLock{}
		s.locks[id] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, id)
		}
		s.mu.Unlock()
	}
}

func (s *MemoryStore) expired(e memEntry, now time.Time) bool {
	return s.ttl > 0 && !now.Before(e.updatedAt.Add(s.ttl))
}

func (s *MemoryStore) snapshot(id string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || s.expired(e, s.clock()) {
		return nil, false
	}
	return e.data, true
}

func (s *MemoryStore) Load(_ context.Context, id string) (*State, error) {
	data, ok := s.snapshot(id)
	if !ok {
		return nil, ErrNotFound
	}
	return decode(id, data)
}

func (s *MemoryStore) Update(ctx context.Context, id string, fn func(*State) error) (*State, error) {
	unlock := s.lock(id)
	defer unlock()

	data, _ := s.snapshot(id)
	st, err := decode(id, data)
	if err != nil {
		return nil, err
	}

	fnErr := fn(st)

	st.UpdatedAt = s.clock().UTC()
	b, err := encode(st)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.entries[id] = memEntry{data: b, updatedAt: st.UpdatedAt}
	s.mu.Unlock()

	return st, fnErr
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

func (s *MemoryStore) PurgeExpired(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	var n int64
	for id, e := range s.entries {
		if s.expired(e, now) {
			delete(s.entries, id)
			n++
		}
	}
	return n, nil
}

var _ Store = (*MemoryStore)(nil)
