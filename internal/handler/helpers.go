package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/xxxsen/papercast/internal/pkg/errors"
	"github.com/xxxsen/papercast/internal/pkg/response"
)

func logError(c *gin.Context, err error) {
	requestID, _ := c.Get("request_id")
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.Any("request_id", requestID),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
}

// statusOf maps service errors to HTTP codes. Errors that are not
// recognised get fallback.
func statusOf(err error, fallback int) int {
	switch {
	case appErr.IsInvalid(err):
		return http.StatusBadRequest
	case errors.Is(err, appErr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, appErr.ErrTooMany):
		return http.StatusTooManyRequests
	default:
		return fallback
	}
}

func handleError(c *gin.Context, err error, fallback int) {
	if err == nil {
		return
	}
	logError(c, err)
	response.Error(c, statusOf(err, fallback), err.Error())
}
