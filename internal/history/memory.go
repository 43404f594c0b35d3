package history

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

type MemoryStore struct {
	mu    sync.Mutex
	cache *cache.Cache
	now   func() time.Time
}

type transcript struct {
	createdAt time.Time
	entries   []Entry
}

// NewMemoryStore expires a session ttl after its last access and purges
// expired sessions every 10 minutes.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &MemoryStore{
		cache: cache.New(ttl, 10*time.Minute),
		now:   time.Now,
	}
}

func (s *MemoryStore) Create(ctx context.Context, sessionID string) (time.Time, error) {
	_ = ctx
	at := s.now().UTC()
	s.mu.Lock()
	s.cache.Set(sessionID, &transcript{createdAt: at}, cache.DefaultExpiration)
	s.mu.Unlock()
	return at, nil
}

func (s *MemoryStore) Append(ctx context.Context, sessionID string, entries ...Entry) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.get(sessionID)
	if !ok {
		t = &transcript{createdAt: s.now().UTC()}
	}
	t.entries = append(t.entries, entries...)
	s.cache.Set(sessionID, t, cache.DefaultExpiration)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, sessionID string) ([]Entry, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.get(sessionID)
	if !ok {
		return nil, ErrNotFound
	}
	// sliding expiry
	s.cache.Set(sessionID, t, cache.DefaultExpiration)

	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out, nil
}

func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	_ = ctx
	s.mu.Lock()
	s.cache.Delete(sessionID)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) get(sessionID string) (*transcript, bool) {
	if x, found := s.cache.Get(sessionID); found {
		return x.(*transcript), true
	}
	return nil, false
}
