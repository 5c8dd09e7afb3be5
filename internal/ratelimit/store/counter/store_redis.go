package counter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"greenctf/internal/ratelimit/models"
)

const defaultKeyPrefix = "greenctf:rl"

// checkAndIncrementScript runs the whole fixed-window transition inside
// Redis. The caller supplies now so every backend shares one clock; the key
// TTL only garbage-collects finished windows.
//
// KEYS[1] counter hash, ARGV[1] now ms, ARGV[2] max attempts, ARGV[3] window ms.
// Returns {allowed, attempts, reset_ms}.
var checkAndIncrementLua = redis.NewScript(`
local now = tonumber(ARGV[1])
local max = tonumber(ARGV[2])
local window = tonumber(ARGV[3])
local vals = redis.call('HMGET', KEYS[1], 'attempts', 'reset')
local attempts = tonumber(vals[1])
local reset = tonumber(vals[2])
if attempts == nil or reset == nil or now >= reset then
  reset = now + window
  redis.call('HSET', KEYS[1], 'attempts', '1', 'reset', tostring(reset))
  redis.call('PEXPIRE', KEYS[1], tostring(window))
  return {1, 1, reset}
end
if attempts >= max then
  return {0, attempts, reset}
end
attempts = redis.call('HINCRBY', KEYS[1], 'attempts', 1)
return {1, attempts, reset}
`)

// RedisStore keeps counters in Redis hashes.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

type RedisOption func(*RedisStore)

func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, prefix: defaultKeyPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) CheckAndIncrement(ctx context.Context, identifier string, action models.Action, limit models.Limit, now time.Time) (*models.Result, error) {
	key := models.CounterKey(s.prefix, identifier, action)
	raw, err := checkAndIncrementLua.Run(ctx, s.client, []string{key},
		now.UnixMilli(), limit.MaxAttempts, limit.Window.Milliseconds()).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit script: %w", err)
	}
	if len(raw) != 3 {
		return nil, fmt.Errorf("rate limit script: unexpected reply length %d", len(raw))
	}
	return models.NewResult(raw[0] == 1, int(raw[1]), limit, time.UnixMilli(raw[2]).UTC(), now), nil
}

func (s *RedisStore) Get(ctx context.Context, identifier string, action models.Action) (*models.Counter, error) {
	key := models.CounterKey(s.prefix, identifier, action)
	vals, err := s.client.HMGet(ctx, key, "attempts", "reset").Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read rate limit counter: %w", err)
	}
	if vals[0] == nil || vals[1] == nil {
		return nil, nil
	}
	attempts, err := strconv.Atoi(fmt.Sprint(vals[0]))
	if err != nil {
		return nil, fmt.Errorf("parse attempts: %w", err)
	}
	resetMs, err := strconv.ParseInt(fmt.Sprint(vals[1]), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse reset time: %w", err)
	}
	return &models.Counter{
		Identifier: identifier,
		Action:     action,
		Attempts:   attempts,
		ResetAt:    time.UnixMilli(resetMs).UTC(),
	}, nil
}

// DeleteExpired is a no-op; Redis expires finished windows by TTL.
func (s *RedisStore) DeleteExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}
