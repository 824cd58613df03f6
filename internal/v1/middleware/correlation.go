// Package middleware contains Gin middleware for the HTTP surface.
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/parley-im/parley/internal/v1/logging"
)

// HeaderXCorrelationID is the header key for the correlation id.
const HeaderXCorrelationID = "X-Correlation-ID"

// CorrelationID honors an incoming correlation id or generates one, echoes
// it on the response, and attaches it to the request context so every log
// line for the request carries it.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader(HeaderXCorrelationID)
		if correlationID == "" {
			correlationID = uuid.NewString()
		}

		c.Header(HeaderXCorrelationID, correlationID)
		c.Request = c.Request.WithContext(
			logging.WithCorrelationID(c.Request.Context(), correlationID))

		c.Next()
	}
}
