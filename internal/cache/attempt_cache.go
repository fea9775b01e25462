package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

const attemptPrefix = "login_attempts:"

// AttemptCache is a Redis-backed failed-login counter. It implements the
// session service throttle hook so deployments with more than one API
// instance share a single attempt window.
type AttemptCache struct {
	redis       *RedisClient
	maxAttempts int
	window      time.Duration
}

// NewAttemptCache creates a new AttemptCache.
func NewAttemptCache(redis *RedisClient, maxAttempts int, window time.Duration) *AttemptCache {
	return &AttemptCache{
		redis:       redis,
		maxAttempts: maxAttempts,
		window:      window,
	}
}

func (c *AttemptCache) key(subject string) string {
	return attemptPrefix + subject
}

// Allow reports whether the subject may make another login attempt.
// Redis failures fail open: an unreachable cache must not lock every
// administrator out.
func (c *AttemptCache) Allow(ctx context.Context, subject string) bool {
	raw, err := c.redis.Get(ctx, c.key(subject))
	if err != nil {
		return true
	}
	count, err := strconv.Atoi(raw)
	if err != nil {
		log.Error().Str("value", raw).Msg("invalid attempt counter value")
		return true
	}
	return count < c.maxAttempts
}

// RecordFailure increments the subject's failed-attempt counter, starting the
// window on the first failure.
func (c *AttemptCache) RecordFailure(ctx context.Context, subject string) {
	if _, err := c.redis.IncrWithExpire(ctx, c.key(subject), c.window); err != nil {
		log.Error().Err(err).Str("subject", subject).Msg("failed to record login attempt")
	}
}

// Reset clears the subject's failed-attempt counter after a successful login.
func (c *AttemptCache) Reset(ctx context.Context, subject string) {
	if err := c.redis.Delete(ctx, c.key(subject)); err != nil {
		log.Error().Err(err).Msg("failed to reset login attempt counter")
	}
}
