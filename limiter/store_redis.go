package limiter

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// takeScript refills and takes atomically. Redis truncates Lua numbers to
// integers on return, so the token count travels back as a string.
var takeScript = redis.NewScript(`
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local state = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(state[1])
local ts = tonumber(state[2])
if tokens == nil or ts == nil then
  tokens = burst
  ts = now
end

local elapsed = now - ts
if elapsed < 0 then
  elapsed = 0
end
tokens = math.min(burst, tokens + elapsed * rate / 1000)

local allowed = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
end

redis.call("HSET", KEYS[1], "tokens", tostring(tokens), "ts", tostring(now))
redis.call("PEXPIRE", KEYS[1], ttl)
return {allowed, tostring(tokens)}
`)

// RedisStore shares buckets between instances
type RedisStore struct {
	client redis.UniversalClient
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Take(ctx context.Context, key string, now time.Time, rate float64, burst int64, ttl time.Duration) (bool, float64, error) {
	res, err := takeScript.Run(ctx, s.client, []string{key},
		rate, burst, now.UnixMilli(), ttl.Milliseconds()).Slice()
	if err != nil {
		return false, 0, fmt.Errorf("limiter take %s: %w", key, err)
	}
	if len(res) != 2 {
		return false, 0, fmt.Errorf("limiter take %s: unexpected reply %v", key, res)
	}

	allowed, _ := res[0].(int64)
	raw, _ := res[1].(string)
	tokens, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return false, 0, fmt.Errorf("limiter take %s: parse tokens: %w", key, err)
	}
	return allowed == 1, tokens, nil
}

// Close leaves the client to whoever opened it
func (s *RedisStore) Close() error {
	return nil
}
