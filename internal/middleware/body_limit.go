package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// DefaultBodyLimit caps JSON request bodies.
const DefaultBodyLimit = 10 << 20

func formatLimit(bytes int64) string {
	const mb = 1 << 20
	if bytes <= 0 {
		return "0MB"
	}
	return strconv.FormatInt(max(bytes/mb, 1), 10) + "MB"
}

// BodyLimit rejects requests whose declared length exceeds limit and caps
// the reader for the rest.
func BodyLimit(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit <= 0 || c.Request.Body == nil {
			c.Next()
			return
		}
		if c.Request.ContentLength > limit {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge,
				gin.H{"error": "Request body exceeds " + formatLimit(limit)})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
