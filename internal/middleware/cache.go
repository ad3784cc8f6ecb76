package middleware

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

// ResponseCacheConfig controls the in-process GET response cache.
type ResponseCacheConfig struct {
	TTL             time.Duration
	CleanupInterval time.Duration
}

// DefaultResponseCacheConfig keeps entries just long enough to absorb
// availability polling without serving stale slots for long.
func DefaultResponseCacheConfig() ResponseCacheConfig {
	return ResponseCacheConfig{
		TTL:             10 * time.Second,
		CleanupInterval: time.Minute,
	}
}

type ResponseCache struct {
	store *cache.Cache
}

func NewResponseCache(config ResponseCacheConfig) *ResponseCache {
	return &ResponseCache{
		store: cache.New(config.TTL, config.CleanupInterval),
	}
}

type cachedResponse struct {
	status      int
	contentType string
	body        []byte
}

type cacheWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *cacheWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// Cache serves repeated GETs from memory. Only 200 responses are
// stored; everything else passes through untouched.
func (rc *ResponseCache) Cache() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := c.Request.URL.RequestURI()
		if entry, found := rc.store.Get(key); found {
			cached := entry.(*cachedResponse)
			c.Header("X-Cache", "HIT")
			c.Data(cached.status, cached.contentType, cached.body)
			c.Abort()
			return
		}

		w := &cacheWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = w

		c.Next()

		if c.Writer.Status() == http.StatusOK {
			rc.store.SetDefault(key, &cachedResponse{
				status:      c.Writer.Status(),
				contentType: c.Writer.Header().Get("Content-Type"),
				body:        w.body.Bytes(),
			})
		}
	}
}
