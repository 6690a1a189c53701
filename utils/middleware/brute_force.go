package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stgeorges/biolms/utils/cache"
	"github.com/stgeorges/biolms/utils/response"
)

const (
	maxFailedAttempts = 5
	attemptWindow     = 15 * time.Minute
	lockoutDuration   = 15 * time.Minute
)

// BruteForceProtection handles login brute force protection using Redis
type BruteForceProtection struct {
	redisCache *cache.RedisCache
}

// NewBruteForceProtection creates a new brute force protection instance
func NewBruteForceProtection(redisCache *cache.RedisCache) *BruteForceProtection {
	return &BruteForceProtection{
		redisCache: redisCache,
	}
}

// CheckAndRecordAttempt middleware checks if IP is locked out
func (b *BruteForceProtection) CheckAndRecordAttempt() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ip := c.IP()
		lockKey := fmt.Sprintf("brute_force:lock:%s", ip)

		// Check if IP is locked
		locked, err := b.redisCache.Exists(c.Context(), lockKey)
		if err != nil {
			// If Redis is down, allow the request.
			// Don't block legitimate users due to cache issues.
			return c.Next()
		}

		if locked {
			ttl, _ := b.redisCache.TTL(c.Context(), lockKey)
			retryAfter := int(ttl.Seconds())
			if retryAfter < 0 {
				retryAfter = 60
			}

			c.Set("Retry-After", fmt.Sprintf("%d", retryAfter))
			return response.TooManyRequests(c, fmt.Sprintf("Too many failed attempts. Try again in %d seconds", retryAfter))
		}

		return c.Next()
	}
}

// RecordFailedAttempt records a failed login attempt and locks the IP
// once the threshold is reached.
func (b *BruteForceProtection) RecordFailedAttempt(c *fiber.Ctx, ip, email string) error {
	ctx := c.Context()
	attemptKey := fmt.Sprintf("brute_force:attempts:%s", ip)
	lockKey := fmt.Sprintf("brute_force:lock:%s", ip)

	attempts, err := b.redisCache.Increment(ctx, attemptKey)
	if err != nil {
		return err
	}

	if attempts == 1 {
		// First failure starts the counting window
		if err := b.redisCache.Expire(ctx, attemptKey, attemptWindow); err != nil {
			return err
		}
	}

	if attempts >= maxFailedAttempts {
		if err := b.redisCache.Set(ctx, lockKey, email, lockoutDuration); err != nil {
			return err
		}
		return b.redisCache.Delete(ctx, attemptKey)
	}

	return nil
}

// RecordSuccessfulAttempt clears the failure counter for an IP
func (b *BruteForceProtection) RecordSuccessfulAttempt(c *fiber.Ctx, ip string) error {
	attemptKey := fmt.Sprintf("brute_force:attempts:%s", ip)
	return b.redisCache.Delete(c.Context(), attemptKey)
}
