package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryStore is a single-process Store for tests and local development.
// Entries expire through ttlcache; mu makes compare-and-swap atomic.
type MemoryStore struct {
	mu       sync.Mutex
	keys     keyspace
	values   *ttlcache.Cache[string, string]
	profiles *ttlcache.Cache[string, Profile]
	stopOnce sync.Once
}

// NewMemoryStore starts the expiry loops; call Close to stop them
func NewMemoryStore(cfg Config) *MemoryStore {
	s := &MemoryStore{
		keys: keyspace{prefix: cfg.KeyPrefix},
		values: ttlcache.New[string, string](
			ttlcache.WithDisableTouchOnHit[string, string](),
		),
		profiles: ttlcache.New[string, Profile](
			ttlcache.WithDisableTouchOnHit[string, Profile](),
		),
	}
	go s.values.Start()
	go s.profiles.Start()
	return s
}

func (s *MemoryStore) PutSession(ctx context.Context, subjectID int64, refresh string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return unavailable("put session", err)
	}
	if ttl <= 0 {
		return fmt.Errorf("session: ttl must be positive, got %s", ttl)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values.Set(s.keys.session(subjectID), refresh, ttl)
	return nil
}

func (s *MemoryStore) GetSession(ctx context.Context, subjectID int64) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, unavailable("get session", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.get(s.keys.session(subjectID))
}

func (s *MemoryStore) DeleteSession(ctx context.Context, subjectID int64) error {
	if err := ctx.Err(); err != nil {
		return unavailable("delete session", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values.Delete(s.keys.session(subjectID))
	return nil
}

func (s *MemoryStore) SwapSession(ctx context.Context, subjectID int64, expected, next string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, unavailable("swap session", err)
	}
	if ttl <= 0 {
		return false, fmt.Errorf("session: ttl must be positive, got %s", ttl)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.keys.session(subjectID)
	current, ok, _ := s.get(key)
	if !ok || current != expected {
		return false, nil
	}
	s.values.Set(key, next, ttl)
	return true, nil
}

func (s *MemoryStore) DeleteSessionIf(ctx context.Context, subjectID int64, expected string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, unavailable("delete session if", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.keys.session(subjectID)
	current, ok, _ := s.get(key)
	if !ok || current != expected {
		return false, nil
	}
	s.values.Delete(key)
	return true, nil
}

func (s *MemoryStore) Blacklist(ctx context.Context, access string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return unavailable("blacklist", err)
	}
	if ttl <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values.Set(s.keys.blacklist(access), BlacklistMarker, ttl)
	return nil
}

func (s *MemoryStore) IsBlacklisted(ctx context.Context, access string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, unavailable("check blacklist", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok, _ := s.get(s.keys.blacklist(access))
	return ok, nil
}

func (s *MemoryStore) InvalidateAll(ctx context.Context, subjectID int64, access string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return unavailable("invalidate all", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values.Delete(s.keys.session(subjectID))
	if access != "" && ttl > 0 {
		s.values.Set(s.keys.blacklist(access), BlacklistMarker, ttl)
	}
	return nil
}

func (s *MemoryStore) CacheProfile(ctx context.Context, subjectID int64, profile Profile, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return unavailable("cache profile", err)
	}
	s.profiles.Set(s.keys.profile(subjectID), profile, ttl)
	return nil
}

func (s *MemoryStore) GetCachedProfile(ctx context.Context, subjectID int64) (*Profile, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, unavailable("get cached profile", err)
	}
	item := s.profiles.Get(s.keys.profile(subjectID))
	if item == nil {
		return nil, false, nil
	}
	profile := item.Value()
	return &profile, true, nil
}

func (s *MemoryStore) EvictProfile(ctx context.Context, subjectID int64) error {
	if err := ctx.Err(); err != nil {
		return unavailable("evict profile", err)
	}
	s.profiles.Delete(s.keys.profile(subjectID))
	return nil
}

func (s *MemoryStore) EvictAll(ctx context.Context, subjectID int64) error {
	if err := ctx.Err(); err != nil {
		return unavailable("evict all", err)
	}
	for _, key := range s.keys.subjectCacheKeys(subjectID) {
		s.profiles.Delete(key)
	}
	return nil
}

// Close stops the expiry loops
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() {
		s.values.Stop()
		s.profiles.Stop()
	})
	return nil
}

// Shutdown lets the injector stop the store
func (s *MemoryStore) Shutdown() error {
	return s.Close()
}

// get must be called with mu held
func (s *MemoryStore) get(key string) (string, bool, error) {
	item := s.values.Get(key)
	if item == nil {
		return "", false, nil
	}
	return item.Value(), true, nil
}
