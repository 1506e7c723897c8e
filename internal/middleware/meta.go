package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const (
	responseMetaKey = "response_meta"
	cacheHitKey     = "cache_hit"
	processingKey   = "processing_time_ms"
	requestStartKey = "request_start"
)

// WithResponseMeta gives every request an envelope meta map and stamps the
// request start so handlers can report processing time.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(requestStartKey, time.Now())
		c.Set(responseMetaKey, map[string]interface{}{})
		c.Next()
	}
}

// SetCacheHit records whether the payload was served from cache.
func SetCacheHit(c *gin.Context, hit bool) {
	metaFor(c)[cacheHitKey] = hit
}

// StampStart records when handler work began for requests that bypass
// WithResponseMeta.
func StampStart(c *gin.Context) {
	if _, ok := c.Get(requestStartKey); !ok {
		c.Set(requestStartKey, time.Now())
	}
}

// ExtractMeta returns the meta map with processing_time_ms filled in. It
// returns nil when no handler has written meta.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	value, ok := c.Get(responseMetaKey)
	if !ok {
		return nil
	}
	meta, ok := value.(map[string]interface{})
	if !ok || len(meta) == 0 {
		return nil
	}
	if _, set := meta[processingKey]; !set {
		if start, ok := c.Get(requestStartKey); ok {
			meta[processingKey] = time.Since(start.(time.Time)).Milliseconds()
		}
	}
	return meta
}

func metaFor(c *gin.Context) map[string]interface{} {
	if value, ok := c.Get(responseMetaKey); ok {
		if meta, ok := value.(map[string]interface{}); ok {
			return meta
		}
	}
	meta := map[string]interface{}{}
	c.Set(responseMetaKey, meta)
	return meta
}
