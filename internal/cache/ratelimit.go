package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/linkgate/linkgate/internal/ratelimit"
)

const rateLimitPrefix = "ratelimit:"

// tokenBucketScript is a Lua script implementing the token bucket algorithm.
// It's atomic and handles token refill and consumption in a single operation.
var tokenBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local rate = tonumber(ARGV[1])      -- tokens per second
	local burst = tonumber(ARGV[2])     -- max tokens (bucket capacity)
	local now = tonumber(ARGV[3])       -- current time in milliseconds
	local ttl = tonumber(ARGV[4])       -- TTL in seconds

	local data = redis.call('HMGET', key, 'tokens', 'last_update')
	local tokens = tonumber(data[1]) or burst
	local last_update = tonumber(data[2]) or now

	local elapsed = math.max(0, now - last_update) / 1000
	tokens = math.min(burst, tokens + (elapsed * rate))

	local allowed = 0
	local retry_after_ms = 0

	if tokens >= 1 then
		tokens = tokens - 1
		allowed = 1
	else
		retry_after_ms = math.ceil((1 - tokens) / rate * 1000)
	end

	redis.call('HSET', key, 'tokens', tostring(tokens), 'last_update', now)
	redis.call('EXPIRE', key, ttl)

	return {allowed, retry_after_ms, math.floor(tokens)}
`)

// Allow implements ratelimit.Limiter on Redis so limits hold across
// instances. Client keys are hashed before they reach Redis.
func (c *Cache) Allow(ctx context.Context, rule ratelimit.Rule, key string) (*ratelimit.Result, error) {
	now := c.now()
	perSecond := rule.PerSecond()
	if perSecond <= 0 {
		return nil, fmt.Errorf("rate limit rule %q has no refill rate", rule.Name)
	}

	redisKey := rateLimitPrefix + rule.Name + ":" + ratelimit.HashKey(key)
	ttl := int(rule.Period.Seconds()) + 1

	result, err := tokenBucketScript.Run(ctx, c.client,
		[]string{redisKey},
		perSecond, rule.Burst, now.UnixMilli(), ttl,
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit script: %w", err)
	}

	retryAfter := time.Duration(result[1]) * time.Millisecond
	return &ratelimit.Result{
		Allowed:    result[0] == 1,
		Remaining:  result[2],
		ResetAt:    now.Add(time.Duration(float64(time.Second) / perSecond)),
		RetryAfter: retryAfter,
	}, nil
}
