package mw

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"

	"carevoice-backend/internal/metrics"
)

type cachedResponse struct {
	status  int
	headers http.Header
	body    []byte
}

type bodyCacheWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w bodyCacheWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w bodyCacheWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

const cacheLifetimeKey = "mw.cache.lifetime"

func cacheControl(lifetime time.Duration) string {
	return fmt.Sprintf("private, max-age=%d", int(lifetime.Seconds()))
}

// Cache serves repeated GET requests for the same URI from memory for
// duration and advertises the same lifetime to clients. The request URI
// carries the device id, so entries are per device. Handlers may shorten
// the lifetime of their response with CacheUntil.
func Cache(store *cache.Cache, duration time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := c.Request.RequestURI
		if resp, found := store.Get(key); found {
			metrics.ScheduleCacheHits.Inc()
			cached := resp.(cachedResponse)
			for k, v := range cached.headers {
				c.Writer.Header()[k] = v
			}
			c.Writer.Header().Set("X-Cache", "HIT")
			c.Writer.WriteHeader(cached.status)
			c.Writer.Write(cached.body)
			c.Abort()
			return
		}
		metrics.ScheduleCacheMisses.Inc()

		c.Set(cacheLifetimeKey, duration)
		c.Header("Cache-Control", cacheControl(duration))
		blw := &bodyCacheWriter{body: bytes.NewBuffer(nil), ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		// Only cache successful responses
		lifetime := c.GetDuration(cacheLifetimeKey)
		if blw.Status() >= 200 && blw.Status() < 300 && lifetime > 0 {
			response := cachedResponse{
				status: blw.Status(),
				// Make a copy of the header map.
				headers: blw.Header().Clone(),
				body:    blw.body.Bytes(),
			}
			store.Set(key, response, lifetime)
		}
	}
}

// CacheUntil keeps the response being built under Cache from outliving
// until. Under a second of lifetime left, the response is not cached at
// all. It must be called before the body is written and is a no-op
// outside Cache.
func CacheUntil(c *gin.Context, now, until time.Time) {
	lifetime := c.GetDuration(cacheLifetimeKey)
	if lifetime <= 0 {
		return
	}
	if left := until.Sub(now); left < lifetime {
		lifetime = left
	}
	if lifetime < time.Second {
		c.Set(cacheLifetimeKey, time.Duration(0))
		c.Header("Cache-Control", "no-store")
		return
	}
	c.Set(cacheLifetimeKey, lifetime)
	c.Header("Cache-Control", cacheControl(lifetime))
}

// NoStore marks responses as never cacheable.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store, no-cache, must-revalidate")
		c.Header("Pragma", "no-cache")
		c.Next()
	}
}
