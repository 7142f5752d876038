package middleware

import (
	"bytes"
	"io"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/papercast/internal/pkg/response"
)

const (
	ContextRequestIDKey = "request_id"
	HeaderRequestID     = "X-Request-Id"
	HeaderRequestTime   = "X-Request-Time"
	HeaderAPIVersion    = "X-API-Version"
	APIVersion          = "1.0"
	maxLoggedBody       = 4 << 10
)

// RequestID tags each request with an id, reusing the caller's when given.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ContextRequestIDKey, id)
		c.Writer.Header().Set(HeaderRequestID, id)
		c.Next()
	}
}

type bodyRecorder struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	if room := maxLoggedBody - w.buf.Len(); room > 0 {
		w.buf.Write(b[:min(len(b), room)])
	}
	return w.ResponseWriter.Write(b)
}

func (w *bodyRecorder) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

func textual(contentType string) bool {
	return contentType == "" || strings.Contains(contentType, "json") || strings.HasPrefix(contentType, "text/") ||
		strings.Contains(contentType, "xml") || strings.Contains(contentType, "form")
}

// AccessLog logs every request and response, headers and bodies included,
// and stamps X-Request-Time and X-API-Version on the response.
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		logger := logutil.GetLogger(c.Request.Context()).With(
			zap.String("request_id", c.GetString(ContextRequestIDKey)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
		)
		var reqBody []byte
		if c.Request.Body != nil && textual(c.ContentType()) {
			raw, err := io.ReadAll(c.Request.Body)
			if err == nil {
				reqBody = raw
			}
			c.Request.Body = io.NopCloser(bytes.NewReader(raw))
		}
		logger.Info("request received",
			zap.String("client", c.ClientIP()),
			zap.String("query", c.Request.URL.RawQuery),
			zap.Any("headers", redact(c.Request.Header)),
			zap.ByteString("body", truncate(reqBody)),
		)
		c.Writer.Header().Set(HeaderRequestTime, start.UTC().Format(time.RFC3339Nano))
		c.Writer.Header().Set(HeaderAPIVersion, APIVersion)
		rec := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = rec
		c.Next()

		fields := []zap.Field{
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.Int("size", c.Writer.Size()),
		}
		if textual(c.Writer.Header().Get("Content-Type")) {
			fields = append(fields, zap.ByteString("body", rec.buf.Bytes()))
		}
		logger.Info("response sent", fields...)
	}
}

func truncate(b []byte) []byte {
	if len(b) > maxLoggedBody {
		return b[:maxLoggedBody]
	}
	return b
}

func redact(h http.Header) http.Header {
	out := h.Clone()
	for _, k := range []string{"Authorization", "Cookie", "Api-Key", "Ocp-Apim-Subscription-Key"} {
		if out.Get(k) != "" {
			out.Set(k, "***")
		}
	}
	return out
}

// Recovery turns a panic in a handler into a 500 with a generic message.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if p := recover(); p != nil {
				logutil.GetLogger(c.Request.Context()).Error("handler panicked",
					zap.String("request_id", c.GetString(ContextRequestIDKey)),
					zap.String("path", c.Request.URL.Path),
					zap.Any("panic", p),
					zap.ByteString("stack", debug.Stack()),
				)
				response.Error(c, http.StatusInternalServerError, "Internal server error")
				c.Abort()
			}
		}()
		c.Next()
	}
}

// NotFound answers unmatched routes with a JSON error instead of gin's plain text.
func NotFound() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if c.Writer.Status() == http.StatusNotFound && !c.Writer.Written() {
			response.Error(c, http.StatusNotFound, "Endpoint not found")
		}
	}
}
