package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"bytebattle-backend/internal/common/cache"
	"bytebattle-backend/internal/common/logger"
)

type cachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// bodyRecorder keeps a copy of what the handler writes.
type bodyRecorder struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyRecorder) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// RedisCache caches successful GET responses for a short TTL. Keyed by
// method+full URL. Cache failures fall through to the handler.
func RedisCache(svc *cache.CacheService, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := cache.ResponsePrefix + c.Request.Method + ":" + c.Request.URL.RequestURI()

		var entry cachedResponse
		err := svc.Get(c.Request.Context(), key, &entry)
		if err == nil {
			c.Header("X-Cache", "HIT")
			c.Data(entry.Status, entry.ContentType, entry.Body)
			c.Abort()
			return
		}
		if !errors.Is(err, redis.Nil) {
			logger.Warn().Err(err).Str("key", key).Msg("Response cache read failed")
		}

		recorder := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = recorder
		c.Header("X-Cache", "MISS")
		c.Next()

		status := recorder.Status()
		if status < 200 || status >= 300 || len(c.Errors) > 0 {
			return
		}
		entry = cachedResponse{
			Status:      status,
			ContentType: recorder.Header().Get("Content-Type"),
			Body:        recorder.body.Bytes(),
		}
		if err := svc.Set(context.WithoutCancel(c.Request.Context()), key, entry, ttl); err != nil {
			logger.Warn().Err(err).Str("key", key).Msg("Response cache write failed")
		}
	}
}

// InvalidateOnWrite drops every cached response after a successful write
// request, so pots, statuses and leaderboards are not served stale.
func InvalidateOnWrite(svc *cache.CacheService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return
		}
		if status := c.Writer.Status(); status < 200 || status >= 300 || len(c.Errors) > 0 {
			return
		}
		if err := svc.InvalidateResponses(context.WithoutCancel(c.Request.Context())); err != nil {
			logger.Warn().Err(err).Msg("Response cache invalidation failed")
		}
	}
}
