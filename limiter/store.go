package limiter

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// Store takes one token from the bucket at key, refilling it first.
// It returns whether a token was taken and how many are left.
type Store interface {
	Take(ctx context.Context, key string, now time.Time, rate float64, burst int64, ttl time.Duration) (bool, float64, error)
	Close() error
}

type bucket struct {
	tokens float64
	last   time.Time
}

// refill adds rate tokens per elapsed second, capped at burst
func refill(b bucket, now time.Time, rate float64, burst int64) float64 {
	elapsed := now.Sub(b.last).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	return math.Min(float64(burst), b.tokens+elapsed*rate)
}

// MemoryStore keeps buckets in process; idle buckets expire through ttlcache
type MemoryStore struct {
	mu       sync.Mutex
	buckets  *ttlcache.Cache[string, bucket]
	stopOnce sync.Once
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		buckets: ttlcache.New[string, bucket](
			ttlcache.WithDisableTouchOnHit[string, bucket](),
		),
	}
	go s.buckets.Start()
	return s
}

func (s *MemoryStore) Take(ctx context.Context, key string, now time.Time, rate float64, burst int64, ttl time.Duration) (bool, float64, error) {
	if err := ctx.Err(); err != nil {
		return false, 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tokens := float64(burst)
	if item := s.buckets.Get(key); item != nil {
		tokens = refill(item.Value(), now, rate, burst)
	}

	allowed := tokens >= 1
	if allowed {
		tokens--
	}
	s.buckets.Set(key, bucket{tokens: tokens, last: now}, ttl)
	return allowed, tokens, nil
}

func (s *MemoryStore) Close() error {
	s.stopOnce.Do(s.buckets.Stop)
	return nil
}

// Shutdown lets the injector stop the expiry loop
func (s *MemoryStore) Shutdown() error {
	return s.Close()
}
