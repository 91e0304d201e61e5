package middleware

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// WindowCounter is the counting capability the rate limiter needs;
// redisstore.Store satisfies it.
type WindowCounter interface {
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RateLimit caps requests per user per minute. It fails open: if the
// counter backend is unreachable the request goes through.
func RateLimit(counter WindowCounter, perMinute int) gin.HandlerFunc {
	return func(c *gin.Context) {
		if counter == nil || perMinute <= 0 {
			c.Next()
			return
		}

		uid, ok := UserID(c)
		if !ok {
			c.Next()
			return
		}

		n, err := counter.IncrWindow(c.Request.Context(), uid, time.Minute)
		if err != nil {
			log.Printf("[RateLimit] counter unavailable, allowing request: %v", err)
			c.Next()
			return
		}
		if n > int64(perMinute) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many requests",
			})
			return
		}
		c.Next()
	}
}
