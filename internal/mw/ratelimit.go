package mw

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"carevoice-backend/internal/wire"
)

// KeyedRateLimiter stores a rate limiter per key.
type KeyedRateLimiter struct {
	keys map[string]*rate.Limiter
	mu   *sync.RWMutex
	r    rate.Limit
	b    int
}

// NewKeyedRateLimiter creates a new KeyedRateLimiter.
func NewKeyedRateLimiter(r rate.Limit, b int) *KeyedRateLimiter {
	return &KeyedRateLimiter{
		keys: make(map[string]*rate.Limiter),
		mu:   &sync.RWMutex{},
		r:    r,
		b:    b,
	}
}

// Add creates a new rate limiter for key.
func (i *KeyedRateLimiter) Add(key string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()

	if limiter, exists := i.keys[key]; exists {
		return limiter
	}
	limiter := rate.NewLimiter(i.r, i.b)
	i.keys[key] = limiter
	return limiter
}

// GetLimiter returns the rate limiter for key.
func (i *KeyedRateLimiter) GetLimiter(key string) *rate.Limiter {
	i.mu.RLock()
	limiter, exists := i.keys[key]
	i.mu.RUnlock()

	if !exists {
		return i.Add(key)
	}
	return limiter
}

// DeviceOrIP keys player requests by device id and everything else by
// client IP.
func DeviceOrIP(c *gin.Context) string {
	if id := c.Query("deviceId"); id != "" {
		return "device:" + id
	}
	if id := c.GetHeader(wire.DeviceHeader); id != "" {
		return "device:" + id
	}
	return "ip:" + c.ClientIP()
}

// RateLimiter is a middleware for keyed rate limiting.
func RateLimiter(r rate.Limit, b int, key func(*gin.Context) string) gin.HandlerFunc {
	limiter := NewKeyedRateLimiter(r, b)
	return func(c *gin.Context) {
		if !limiter.GetLimiter(key(c)).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
