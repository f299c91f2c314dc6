package repository

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// releaseScript deletes the key only while it still holds the caller's
// token, so a holder whose TTL ran out cannot free a lock taken since.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisFlight is a SingleFlight shared by every API instance. The TTL bounds
// how long a crashed holder can block its session.
type RedisFlight struct {
	redis *redis.Client
	ttl   time.Duration
	log   zerolog.Logger

	mu     sync.Mutex
	tokens map[string]string // key -> token held by this process
}

func NewRedisFlight(redisClient *redis.Client, ttl time.Duration, log zerolog.Logger) *RedisFlight {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisFlight{redis: redisClient, ttl: ttl, log: log, tokens: make(map[string]string)}
}

func flightKey(key string) string { return "flight:" + key }

// TryAcquire reports whether the caller now holds key. A Redis failure
// counts as not acquired. While this process holds key it is never handed
// out again here, even if the Redis entry has expired.
func (f *RedisFlight) TryAcquire(ctx context.Context, key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, held := f.tokens[key]; held {
		return false
	}

	token := ulid.Make().String()
	ok, err := f.redis.SetNX(ctx, flightKey(key), token, f.ttl).Result()
	if err != nil {
		f.log.Warn().Err(err).Str("key", key).Msg("single-flight acquire failed")
		return false
	}
	if ok {
		f.tokens[key] = token
	}
	return ok
}

// Release frees key if this process still owns it in Redis.
func (f *RedisFlight) Release(ctx context.Context, key string) {
	f.mu.Lock()
	token, held := f.tokens[key]
	delete(f.tokens, key)
	f.mu.Unlock()
	if !held {
		return
	}

	n, err := releaseScript.Run(context.WithoutCancel(ctx), f.redis, []string{flightKey(key)}, token).Int()
	if err != nil {
		f.log.Warn().Err(err).Str("key", key).Msg("single-flight release failed")
		return
	}
	if n == 0 {
		f.log.Warn().Str("key", key).Msg("single-flight lock expired before release")
	}
}
