package throttle

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "lat:"

// recordFailureScript mirrors NextFailure. KEYS[1] is the record hash;
// ARGV is now (ms), threshold, lock deadline (ms).
var recordFailureScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local threshold = tonumber(ARGV[2])
local deadline = tonumber(ARGV[3])

local count = tonumber(redis.call("HGET", KEYS[1], "count") or "0")
local locked = tonumber(redis.call("HGET", KEYS[1], "locked_until") or "0")

if locked > now then
	return {count, locked, 0}
end
if locked > 0 then
	count = 0
end

count = count + 1
if count >= threshold then
	redis.call("HSET", KEYS[1], "count", threshold, "locked_until", ARGV[3])
	return {threshold, deadline, 1}
end

redis.call("HSET", KEYS[1], "count", count, "locked_until", "0")
return {count, 0, 1}
`)

// RedisStore keeps one hash per identity with fields count and locked_until
// (unix milliseconds, 0 when unset).
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisStore returns a RedisStore. An empty prefix selects "lat:".
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{redis: client, prefix: prefix}
}

func (s *RedisStore) key(identity string) string {
	return s.prefix + identity
}

// Get loads the record hash for identity.
func (s *RedisStore) Get(ctx context.Context, identity string) (*AttemptRecord, error) {
	vals, err := s.redis.HMGet(ctx, s.key(identity), "count", "locked_until").Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if len(vals) != 2 || vals[0] == nil {
		return nil, nil
	}

	count, err := parseRedisInt(vals[0])
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt count for %q: %v", ErrStorage, identity, err)
	}
	lockedMs, err := parseRedisInt(vals[1])
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt locked_until for %q: %v", ErrStorage, identity, err)
	}

	return &AttemptRecord{
		Identity:     identity,
		FailureCount: int(count),
		LockedUntil:  fromUnixMilli(lockedMs),
	}, nil
}

// RecordFailure runs the failure transition as one Lua script.
func (s *RedisStore) RecordFailure(ctx context.Context, identity string, now time.Time, policy Policy) (AttemptRecord, bool, error) {
	deadline := now.Add(policy.LockoutDuration)
	res, err := recordFailureScript.Run(
		ctx,
		s.redis,
		[]string{s.key(identity)},
		now.UnixMilli(),
		policy.Threshold,
		deadline.UnixMilli(),
	).Int64Slice()
	if err != nil {
		return AttemptRecord{}, false, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if len(res) != 3 {
		return AttemptRecord{}, false, fmt.Errorf("%w: unexpected script result length %d", ErrStorage, len(res))
	}

	return AttemptRecord{
		Identity:     identity,
		FailureCount: int(res[0]),
		LockedUntil:  fromUnixMilli(res[1]),
	}, res[2] == 1, nil
}

// Delete removes the record hash.
func (s *RedisStore) Delete(ctx context.Context, identity string) error {
	if err := s.redis.Del(ctx, s.key(identity)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

func parseRedisInt(v interface{}) (int64, error) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case string:
		return strconv.ParseInt(t, 10, 64)
	case int64:
		return t, nil
	default:
		return 0, errors.New("unexpected value type")
	}
}

func fromUnixMilli(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

var _ Store = (*RedisStore)(nil)
