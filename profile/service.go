// Package profile serves user profiles through the session store's
// read-through cache.
package profile

import (
	"context"
	"strconv"
	"time"

	"github.com/KOMKZ/go-yogan-tokenauth/logger"
	"github.com/KOMKZ/go-yogan-tokenauth/session"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Source loads the authoritative profile, returning autherr.ErrUserNotFound when absent
type Source interface {
	LoadProfile(ctx context.Context, subjectID int64) (session.Profile, error)
}

// Service is a read-through cache over Source
type Service struct {
	store  session.Store
	source Source
	ttl    time.Duration
	log    *logger.CtxZapLogger
	metrics *Metrics
	sf      singleflight.Group
}

type Option func(*Service)

func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates the service. ttl <= 0 uses the 7 day default; log may be nil.
func NewService(store session.Store, source Source, ttl time.Duration, log *logger.CtxZapLogger, opts ...Option) *Service {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	if log == nil {
		log = logger.GetLogger("profile")
	}
	s := &Service{store: store, source: source, ttl: ttl, log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the cached snapshot or loads it from Source and caches it.
// Cache failures never fail the read; only Source errors are returned.
func (s *Service) Get(ctx context.Context, subjectID int64) (*session.Profile, error) {
	if p, ok := s.cached(ctx, subjectID); ok {
		s.metrics.record(ctx, EventHit)
		return p, nil
	}
	s.metrics.record(ctx, EventMiss)

	// concurrent misses for one subject share a single load
	v, err, _ := s.sf.Do(strconv.FormatInt(subjectID, 10), func() (interface{}, error) {
		if p, ok := s.cached(ctx, subjectID); ok {
			return p, nil
		}

		loaded, err := s.source.LoadProfile(ctx, subjectID)
		if err != nil {
			return nil, err
		}

		if err := s.store.CacheProfile(ctx, subjectID, loaded, s.ttl); err != nil {
			s.metrics.record(ctx, EventError)
			s.log.WarnCtx(ctx, "profile cache write failed", zap.Int64("subject_id", subjectID), zap.Error(err))
		}
		return &loaded, nil
	})
	if err != nil {
		return nil, err
	}

	p := *v.(*session.Profile)
	return &p, nil
}

func (s *Service) cached(ctx context.Context, subjectID int64) (*session.Profile, bool) {
	p, ok, err := s.store.GetCachedProfile(ctx, subjectID)
	if err != nil {
		s.metrics.record(ctx, EventError)
		s.log.WarnCtx(ctx, "profile cache read failed, falling back to source",
			zap.Int64("subject_id", subjectID), zap.Error(err))
		return nil, false
	}
	return p, ok
}

// Evict drops the cached snapshot after a profile mutation
func (s *Service) Evict(ctx context.Context, subjectID int64) error {
	if err := s.store.EvictProfile(ctx, subjectID); err != nil {
		return err
	}
	s.metrics.record(ctx, EventEviction)
	return nil
}

// EvictAll drops every per-subject cache entry, used on account deletion
func (s *Service) EvictAll(ctx context.Context, subjectID int64) error {
	if err := s.store.EvictAll(ctx, subjectID); err != nil {
		return err
	}
	s.metrics.record(ctx, EventEviction)
	return nil
}
