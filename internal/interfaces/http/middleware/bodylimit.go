package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cclastrib/backend/internal/interfaces/http/dto"
)

// BodyLimit rejects request bodies over maxBytes. Batch payloads are
// the only large requests this service accepts, and even those stay
// small, so the limit mostly guards against runaway clients.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge,
				dto.NewErrorResponse(dto.ErrCodeRequestTooLarge, "Request body exceeds maximum allowed size"))
			return
		}

		// limit streaming bodies that omit Content-Length
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
