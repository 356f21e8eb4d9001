package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const requestStartKey = "request_start"

// WithResponseMeta records the request start time so handlers can attach
// timing metadata to the response envelope.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(requestStartKey, time.Now())
		c.Next()
	}
}

// ExtractMeta returns envelope metadata for the current request, stamping the
// elapsed processing time when a start was recorded.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	start, exists := c.Get(requestStartKey)
	if !exists {
		return nil
	}
	ts, ok := start.(time.Time)
	if !ok {
		return nil
	}
	return map[string]interface{}{
		"processing_time_ms": time.Since(ts).Milliseconds(),
	}
}
