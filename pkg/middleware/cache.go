package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gilby125/seven-continents/pkg/cache"
	"github.com/gilby125/seven-continents/pkg/logger"
)

// CacheConfig holds cache middleware configuration
type CacheConfig struct {
	TTL       time.Duration
	KeyPrefix string
}

// responseWriter wraps gin.ResponseWriter to capture response body
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(data []byte) (int, error) {
	w.body.Write(data)
	return w.ResponseWriter.Write(data)
}

// CachedResponse represents a cached HTTP response
type CachedResponse struct {
	StatusCode  int               `msgpack:"status_code"`
	Headers     map[string]string `msgpack:"headers"`
	Body        []byte            `msgpack:"body"`
	ContentType string            `msgpack:"content_type"`
	CachedAt    time.Time         `msgpack:"cached_at"`
}

// ResponseCache caches successful JSON responses to GET requests. Airport
// lookups only change when the data set is reloaded, so they cache well.
func ResponseCache(cacheManager *cache.CacheManager, config CacheConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		cacheKey := generateCacheKey(config.KeyPrefix, c.Request)
		log := logger.WithField("cache_key", cacheKey)

		var cached CachedResponse
		err := cacheManager.GetMsgpack(c.Request.Context(), cacheKey, &cached)
		if err == nil {
			log.Debug("Cache hit")
			for key, value := range cached.Headers {
				c.Header(key, value)
			}
			c.Header("X-Cache", "HIT")
			c.Data(cached.StatusCode, cached.ContentType, cached.Body)
			c.Abort()
			return
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Error(err, "Cache get error")
		}

		body := &bytes.Buffer{}
		c.Writer = &responseWriter{ResponseWriter: c.Writer, body: body}
		c.Header("X-Cache", "MISS")
		c.Next()

		status := c.Writer.Status()
		contentType := c.Writer.Header().Get("Content-Type")
		if status < 200 || status >= 300 || !strings.Contains(contentType, "application/json") {
			return
		}

		resp := CachedResponse{
			StatusCode:  status,
			Headers:     make(map[string]string),
			Body:        body.Bytes(),
			ContentType: contentType,
			CachedAt:    time.Now(),
		}
		for key, values := range c.Writer.Header() {
			if len(values) > 0 && shouldCacheHeader(key) {
				resp.Headers[key] = values[0]
			}
		}
		if err := cacheManager.SetMsgpack(c.Request.Context(), cacheKey, resp, config.TTL); err != nil {
			log.Error(err, "Cache set error")
		}
	}
}

// generateCacheKey hashes method, path and query into a short key.
func generateCacheKey(prefix string, req *http.Request) string {
	sum := sha256.Sum256([]byte(req.Method + ":" + req.URL.Path + ":" + req.URL.RawQuery))
	key := "response:" + hex.EncodeToString(sum[:16])
	if prefix != "" {
		return prefix + ":" + key
	}
	return key
}

var cacheableHeaders = []string{"content-type", "content-encoding", "cache-control", "etag", "last-modified"}

func shouldCacheHeader(header string) bool {
	return slices.Contains(cacheableHeaders, strings.ToLower(header))
}
