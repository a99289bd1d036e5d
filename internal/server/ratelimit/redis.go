package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// fixedWindowScript increments the window counter, starts its expiry on first use and
// returns {count, pttl}.
const fixedWindowScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {current, redis.call("PTTL", KEYS[1])}
`

// RedisLimiter enforces fixed-window limits shared by every API instance. Redis
// failures let the request through.
type RedisLimiter struct {
	client  *redis.Client
	script  *redis.Script
	config  *Config
	prefix  string
	timeout time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

// NewRedisLimiter creates a RedisLimiter.
func NewRedisLimiter(client *redis.Client, config *Config, prefix string, logger *zap.Logger) *RedisLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLimiter{
		client:  client,
		script:  redis.NewScript(fixedWindowScript),
		config:  config,
		prefix:  prefix,
		timeout: 250 * time.Millisecond,
		logger:  logger.Named("ratelimit"),
		now:     time.Now,
	}
}

// Allow implements Allower.
func (l *RedisLimiter) Allow(clientID string, endpoint string, method string) (bool, Info) {
	ec, key, allowed, decided := resolve(l.config, clientID, endpoint, method)
	if decided {
		return allowed, Info{Allowed: allowed}
	}

	window := ec.Window
	if window <= 0 {
		window = time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	res, err := l.script.Run(ctx, l.client, []string{l.prefix + ":rl:" + key}, window.Milliseconds()).Int64Slice()
	if err != nil || len(res) != 2 {
		l.logger.Warn("rate limit check failed, allowing request", zap.String("key", key), zap.Error(err))
		return true, Info{Allowed: true, Limit: ec.Limit, Remaining: ec.Limit}
	}

	count, ttl := res[0], time.Duration(res[1])*time.Millisecond
	if ttl < 0 {
		ttl = window
	}
	now := l.now()
	info := Info{
		Allowed:   count <= int64(ec.Limit),
		Limit:     ec.Limit,
		Remaining: max(ec.Limit-int(count), 0),
		ResetTime: now.Add(ttl),
	}
	if !info.Allowed {
		info.RetryAfter = ttl
	}
	return info.Allowed, info
}

// Stop implements Allower. The client is owned by the caller.
func (l *RedisLimiter) Stop() {}
