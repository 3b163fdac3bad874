package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/KOMKZ/go-yogan-tokenauth/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// swapScript sets KEYS[1] to ARGV[2] with a PX of ARGV[3] only while it still holds ARGV[1]
var swapScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
	return 1
end
return 0
`)

// deleteIfScript deletes KEYS[1] only while it still holds ARGV[1]
var deleteIfScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	redis.call('DEL', KEYS[1])
	return 1
end
return 0
`)

// RedisStore is the production Store
type RedisStore struct {
	client  redis.UniversalClient
	keys    keyspace
	timeout time.Duration
	logger  *logger.CtxZapLogger
}

// NewRedisStore wraps client. The client is owned by the caller and is not closed by Close.
func NewRedisStore(client redis.UniversalClient, cfg Config, log *logger.CtxZapLogger) *RedisStore {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.GetLogger("session")
	}
	return &RedisStore{
		client:  client,
		keys:    keyspace{prefix: cfg.KeyPrefix},
		timeout: cfg.OperationTimeout,
		logger:  log,
	}
}

func (s *RedisStore) PutSession(ctx context.Context, subjectID int64, refresh string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("session: ttl must be positive, got %s", ttl)
	}
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.client.Set(ctx, s.keys.session(subjectID), refresh, ttl).Err(); err != nil {
		return s.fail(ctx, "put session", err, zap.Int64("subject_id", subjectID))
	}

	s.logger.DebugCtx(ctx, "session stored",
		zap.Int64("subject_id", subjectID),
		zap.Duration("ttl", ttl),
	)
	return nil
}

func (s *RedisStore) GetSession(ctx context.Context, subjectID int64) (string, bool, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	val, err := s.client.Get(ctx, s.keys.session(subjectID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, s.fail(ctx, "get session", err, zap.Int64("subject_id", subjectID))
	}
	return val, true, nil
}

func (s *RedisStore) DeleteSession(ctx context.Context, subjectID int64) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.client.Del(ctx, s.keys.session(subjectID)).Err(); err != nil {
		return s.fail(ctx, "delete session", err, zap.Int64("subject_id", subjectID))
	}
	return nil
}

func (s *RedisStore) SwapSession(ctx context.Context, subjectID int64, expected, next string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, fmt.Errorf("session: ttl must be positive, got %s", ttl)
	}
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	n, err := swapScript.Run(ctx, s.client,
		[]string{s.keys.session(subjectID)},
		expected, next, ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, s.fail(ctx, "swap session", err, zap.Int64("subject_id", subjectID))
	}
	return n == 1, nil
}

func (s *RedisStore) DeleteSessionIf(ctx context.Context, subjectID int64, expected string) (bool, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	n, err := deleteIfScript.Run(ctx, s.client, []string{s.keys.session(subjectID)}, expected).Int()
	if err != nil {
		return false, s.fail(ctx, "delete session if", err, zap.Int64("subject_id", subjectID))
	}
	return n == 1, nil
}

func (s *RedisStore) Blacklist(ctx context.Context, access string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.client.Set(ctx, s.keys.blacklist(access), BlacklistMarker, ttl).Err(); err != nil {
		return s.fail(ctx, "blacklist", err, zap.Duration("ttl", ttl))
	}

	s.logger.DebugCtx(ctx, "credential blacklisted", zap.Duration("ttl", ttl))
	return nil
}

func (s *RedisStore) IsBlacklisted(ctx context.Context, access string) (bool, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.client.Exists(ctx, s.keys.blacklist(access)).Result()
	if err != nil {
		return false, s.fail(ctx, "check blacklist", err)
	}
	return n > 0, nil
}

func (s *RedisStore) InvalidateAll(ctx context.Context, subjectID int64, access string, ttl time.Duration) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.keys.session(subjectID))
		if access != "" && ttl > 0 {
			pipe.Set(ctx, s.keys.blacklist(access), BlacklistMarker, ttl)
		}
		return nil
	})
	if err != nil {
		return s.fail(ctx, "invalidate all", err, zap.Int64("subject_id", subjectID))
	}

	s.logger.InfoCtx(ctx, "subject credentials invalidated",
		zap.Int64("subject_id", subjectID),
		zap.Bool("access_revoked", access != "" && ttl > 0),
	)
	return nil
}

func (s *RedisStore) CacheProfile(ctx context.Context, subjectID int64, profile Profile, ttl time.Duration) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("session: encode profile: %w", err)
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.client.Set(ctx, s.keys.profile(subjectID), data, ttl).Err(); err != nil {
		return s.fail(ctx, "cache profile", err, zap.Int64("subject_id", subjectID))
	}
	return nil
}

func (s *RedisStore) GetCachedProfile(ctx context.Context, subjectID int64) (*Profile, bool, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	data, err := s.client.Get(ctx, s.keys.profile(subjectID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, s.fail(ctx, "get cached profile", err, zap.Int64("subject_id", subjectID))
	}

	var profile Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		// an undecodable snapshot is treated as a miss
		s.logger.WarnCtx(ctx, "discarding undecodable profile snapshot",
			zap.Int64("subject_id", subjectID),
			zap.Error(err),
		)
		return nil, false, nil
	}
	return &profile, true, nil
}

func (s *RedisStore) EvictProfile(ctx context.Context, subjectID int64) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.client.Del(ctx, s.keys.profile(subjectID)).Err(); err != nil {
		return s.fail(ctx, "evict profile", err, zap.Int64("subject_id", subjectID))
	}
	return nil
}

func (s *RedisStore) EvictAll(ctx context.Context, subjectID int64) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.client.Del(ctx, s.keys.subjectCacheKeys(subjectID)...).Err(); err != nil {
		return s.fail(ctx, "evict all", err, zap.Int64("subject_id", subjectID))
	}
	return nil
}

// Close is a no-op; the client is closed by whoever opened it
func (s *RedisStore) Close() error {
	return nil
}

func (s *RedisStore) fail(ctx context.Context, op string, err error, fields ...zap.Field) error {
	s.logger.ErrorCtx(ctx, "session store operation failed",
		append(fields, zap.String("op", op), zap.Error(err))...,
	)
	return unavailable(op, err)
}
