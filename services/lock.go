package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const lockPollInterval = 50 * time.Millisecond

// releaseScript deletes the key only if it still holds our token, so a lock
// that expired and was taken over is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// SubmitLocker serializes submissions of the same attempt across instances.
type SubmitLocker interface {
	Acquire(ctx context.Context, attemptID string) (release func(), err error)
}

type RedisLocker struct {
	redis *redis.Client
	ttl   time.Duration
	wait  time.Duration
}

func NewRedisLocker(redis *redis.Client, ttl, wait time.Duration) *RedisLocker {
	return &RedisLocker{
		redis: redis,
		ttl:   ttl,
		wait:  wait,
	}
}

func submitLockKey(attemptID string) string {
	return fmt.Sprintf("attempt:submit:%s", attemptID)
}

// Acquire polls until the lock is free or the wait budget runs out, in
// which case it returns ErrSubmitInProgress. When redis cannot be reached
// it logs and hands back a no-op release.
func (l *RedisLocker) Acquire(ctx context.Context, attemptID string) (func(), error) {
	key := submitLockKey(attemptID)
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.redis.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// Finalize stays guarded by the submitted_at update.
			log.Printf("[lock] redis unavailable for %s, continuing unlocked: %v", key, err)
			return func() {}, nil
		}
		if ok {
			return func() {
				// The caller's context may already be done by now.
				if err := releaseScript.Run(context.Background(), l.redis, []string{key}, token).Err(); err != nil {
					log.Printf("[lock] failed to release %s: %v", key, err)
				}
			}, nil
		}

		if time.Now().After(deadline) {
			return nil, ErrSubmitInProgress
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}
}
