package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/papercast/internal/filestore"
	appErr "github.com/xxxsen/papercast/internal/pkg/errors"
	"github.com/xxxsen/papercast/internal/pkg/response"
	"github.com/xxxsen/papercast/internal/service"
)

type VideoAPI interface {
	Create(ctx context.Context, req service.VideoRequest) (*service.VideoResult, error)
}

type VideoHandler struct {
	videos VideoAPI
	store  filestore.Store
}

func NewVideoHandler(videos VideoAPI, store filestore.Store) *VideoHandler {
	return &VideoHandler{videos: videos, store: store}
}

type videoRequest struct {
	Topic           string `json:"topic"`
	OutputName      string `json:"output_name"`
	PDFURL          string `json:"pdf_url"`
	PaperTitle      string `json:"paper_title"`
	UserDescription string `json:"user_description"`
}

type sceneStatus struct {
	Index  int    `json:"index"`
	Type   string `json:"type"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

func baseURL(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + c.Request.Host + "/"
}

func (h *VideoHandler) Generate(c *gin.Context) {
	var req videoRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Topic == "" {
		response.Error(c, http.StatusBadRequest, "Missing required parameter: topic")
		return
	}
	res, err := h.videos.Create(c.Request.Context(), service.VideoRequest{
		Topic:           req.Topic,
		OutputName:      req.OutputName,
		PDFURL:          req.PDFURL,
		PaperTitle:      req.PaperTitle,
		UserDescription: req.UserDescription,
		BaseURL:         baseURL(c),
	})
	if err != nil {
		logError(c, err)
		response.StatusError(c, statusOf(err, http.StatusInternalServerError), err.Error())
		return
	}
	scenes := make([]sceneStatus, 0, len(res.Report.Scenes))
	for _, s := range res.Report.Scenes {
		scenes = append(scenes, sceneStatus{Index: s.Index, Type: s.Type, Status: string(s.Status), Reason: s.Reason})
	}
	response.Success(c, gin.H{
		"status":    "success",
		"video_url": res.VideoURL,
		"message":   "Video generated successfully",
		"scenes":    scenes,
	})
}

func (h *VideoHandler) Media(c *gin.Context) {
	name := c.Param("file")
	rc, err := h.store.Open(c.Request.Context(), name)
	if err != nil {
		if errors.Is(err, appErr.ErrNotFound) {
			response.Error(c, http.StatusNotFound, "Video not found")
			return
		}
		handleError(c, err, http.StatusInternalServerError)
		return
	}
	defer rc.Close()
	c.Header("Content-Type", "video/mp4")
	if rs, ok := rc.(io.ReadSeeker); ok {
		http.ServeContent(c.Writer, c.Request, name, time.Time{}, rs)
		return
	}
	c.DataFromReader(http.StatusOK, -1, "video/mp4", rc, nil)
}

func (h *VideoHandler) Health(c *gin.Context) {
	response.Success(c, gin.H{"status": "healthy", "service": "video_generator"})
}
