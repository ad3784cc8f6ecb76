package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newCachedRouter(hits *int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	rc := NewResponseCache(ResponseCacheConfig{TTL: time.Minute, CleanupInterval: time.Minute})
	engine.Use(rc.Cache())
	engine.GET("/slots", func(c *gin.Context) {
		*hits++
		c.JSON(http.StatusOK, gin.H{"hits": *hits})
	})
	engine.POST("/slots", func(c *gin.Context) {
		*hits++
		c.Status(http.StatusCreated)
	})
	return engine
}

func TestCacheServesRepeatedGets(t *testing.T) {
	var hits int
	engine := newCachedRouter(&hits)

	first := httptest.NewRecorder()
	engine.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/slots?date=2025-06-02", nil))
	second := httptest.NewRecorder()
	engine.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/slots?date=2025-06-02", nil))

	assert.Equal(t, 1, hits)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
}

func TestCacheKeysIncludeQueryString(t *testing.T) {
	var hits int
	engine := newCachedRouter(&hits)

	engine.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/slots?date=2025-06-02", nil))
	engine.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/slots?date=2025-06-03", nil))

	assert.Equal(t, 2, hits)
}

func TestCacheSkipsWrites(t *testing.T) {
	var hits int
	engine := newCachedRouter(&hits)

	engine.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/slots", nil))
	engine.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/slots", nil))

	assert.Equal(t, 2, hits)
}
