package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/papercast/internal/pkg/response"
	"github.com/xxxsen/papercast/internal/proxy"
)

type VideoGateway interface {
	Generate(ctx context.Context, body []byte, publicBase string) (int, map[string]interface{}, error)
	Media(ctx context.Context, quality, file string) (*http.Response, error)
}

// GatewayHandler exposes the video service through the paper service's host.
type GatewayHandler struct {
	videos VideoGateway
}

func NewGatewayHandler(videos VideoGateway) *GatewayHandler {
	return &GatewayHandler{videos: videos}
}

// publicBase is the scheme and host the caller used to reach us.
func publicBase(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if fwd := c.GetHeader("X-Forwarded-Proto"); fwd == "http" || fwd == "https" {
		scheme = fwd
	}
	return scheme + "://" + c.Request.Host
}

func (h *GatewayHandler) Generate(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	status, out, err := h.videos.Generate(c.Request.Context(), body, publicBase(c))
	if err == nil {
		response.JSON(c, status, out)
		return
	}
	logError(c, err)
	var verr *proxy.VideoError
	switch {
	case errors.Is(err, proxy.ErrVideoTimeout):
		response.JSON(c, http.StatusGatewayTimeout, gin.H{
			"status":  "timeout_error",
			"message": "Video generation service took too long to respond",
		})
	case errors.As(err, &verr):
		body := verr.Body
		if body == nil {
			body = "Unknown error"
		}
		response.JSON(c, verr.Status, gin.H{
			"status":      "proxy_error",
			"message":     "Failed to communicate with video generation service",
			"vm_error":    body,
			"status_code": verr.Status,
		})
	case errors.Is(err, proxy.ErrVideoUnavailable):
		response.JSON(c, http.StatusServiceUnavailable, gin.H{
			"status":  "service_unavailable",
			"message": "No response received from video generation service",
		})
	default:
		response.JSON(c, http.StatusInternalServerError, gin.H{
			"status":  "unexpected_error",
			"message": "An unexpected error occurred during video generation",
			"error":   err.Error(),
		})
	}
}

func (h *GatewayHandler) Media(c *gin.Context) {
	resp, err := h.videos.Media(c.Request.Context(), c.Param("quality"), c.Param("file"))
	if err != nil {
		logError(c, err)
		status := statusOf(err, http.StatusInternalServerError)
		var vmError interface{} = "connection_failed"
		var verr *proxy.VideoError
		if errors.As(err, &verr) {
			status = verr.Status
			if verr.Body != nil {
				vmError = verr.Body
			}
		}
		response.JSON(c, status, gin.H{
			"status":   "proxy_error",
			"message":  "Failed to stream video content",
			"vm_error": vmError,
		})
		return
	}
	defer resp.Body.Close()
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, resp.ContentLength, contentType, resp.Body, map[string]string{
		"Cache-Control": "no-cache",
	})
}
