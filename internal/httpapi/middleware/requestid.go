package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/datagent-dev/datagent/internal/common"
)

const RequestIDHeader = "X-Request-ID"

// RequestID attaches a ULID to each request, preserving one supplied by
// the caller.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			if generated, err := common.NewULID(); err == nil {
				id = generated
			}
		}
		if id != "" {
			c.Set("requestID", id)
			c.Header(RequestIDHeader, id)
		}
		c.Next()
	}
}
