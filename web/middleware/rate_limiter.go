package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// TokenBucket is a simple token-bucket rate limiter. Ported from the
// teacher's rate_limiter.go TokenBucket.
type TokenBucket struct {
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	mu         sync.Mutex
}

func NewTokenBucket(maxTokens, refillRate float64) *TokenBucket {
	return &TokenBucket{tokens: maxTokens, maxTokens: maxTokens, refillRate: refillRate, lastRefill: time.Now()}
}

func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	tb.tokens = minFloat(tb.maxTokens, tb.tokens+elapsed*tb.refillRate)
	tb.lastRefill = now

	if tb.tokens >= 1.0 {
		tb.tokens -= 1.0
		return true
	}
	return false
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// UserRateLimiter enforces per-user request-per-minute limits, keyed by the
// authenticated caller's user ID. This replaces the teacher's per-session,
// per-cookie-identity limiter since this service authenticates real
// accounts rather than anonymous browser sessions.
type UserRateLimiter struct {
	perMinute int
	burstSize int
	buckets   map[int64]*TokenBucket
	mu        sync.Mutex
}

func NewUserRateLimiter(perMinute, burstSize int) *UserRateLimiter {
	if burstSize <= 0 {
		burstSize = perMinute
	}
	return &UserRateLimiter{perMinute: perMinute, burstSize: burstSize, buckets: make(map[int64]*TokenBucket)}
}

func (l *UserRateLimiter) allow(userID int64) bool {
	l.mu.Lock()
	bucket, ok := l.buckets[userID]
	if !ok {
		bucket = NewTokenBucket(float64(l.burstSize), float64(l.perMinute)/60.0)
		l.buckets[userID] = bucket
	}
	l.mu.Unlock()
	return bucket.Allow()
}

// RateLimit rejects requests beyond the configured per-user budget with
// 429 and a Retry-After hint, mirroring the teacher's RateLimitMiddleware.
func RateLimit(limiter *UserRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := UserID(c)
		if !limiter.allow(userID) {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"message": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
