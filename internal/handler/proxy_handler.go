package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/papercast/internal/pkg/response"
	"github.com/xxxsen/papercast/internal/proxy"
)

type ArxivAPI interface {
	Search(ctx context.Context, q proxy.SearchQuery) ([]byte, error)
	ByID(ctx context.Context, idList string) ([]byte, error)
}

type PDFFetcher interface {
	Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error)
}

type ProxyHandler struct {
	arxiv ArxivAPI
	pdfs  PDFFetcher
}

func NewProxyHandler(arxiv ArxivAPI, pdfs PDFFetcher) *ProxyHandler {
	return &ProxyHandler{arxiv: arxiv, pdfs: pdfs}
}

func queryInt(c *gin.Context, key string) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return v
}

func (h *ProxyHandler) Search(c *gin.Context) {
	body, err := h.arxiv.Search(c.Request.Context(), proxy.SearchQuery{
		Query:   c.Query("query"),
		Page:    queryInt(c, "page"),
		PerPage: queryInt(c, "perPage"),
		Sort:    c.Query("sort"),
	})
	switch {
	case errors.Is(err, proxy.ErrMissingQuery):
		response.Error(c, http.StatusBadRequest, "Search query required")
	case errors.Is(err, proxy.ErrInvalidSort):
		response.Error(c, http.StatusBadRequest, "Invalid sort parameter")
	case err != nil:
		logError(c, err)
		response.JSON(c, http.StatusInternalServerError, gin.H{"error": "Failed to fetch results", "message": err.Error()})
	default:
		c.Data(http.StatusOK, "application/xml", body)
	}
}

func (h *ProxyHandler) PaperByID(c *gin.Context) {
	body, err := h.arxiv.ByID(c.Request.Context(), c.Query("id_list"))
	switch {
	case errors.Is(err, proxy.ErrMissingIDList):
		response.Error(c, http.StatusBadRequest, "Missing id_list parameter")
	case err != nil:
		logError(c, err)
		response.Error(c, http.StatusInternalServerError, "Failed to fetch paper by ID")
	default:
		c.Data(http.StatusOK, "application/xml", body)
	}
}

func (h *ProxyHandler) PDF(c *gin.Context) {
	rc, err := h.pdfs.Fetch(c.Request.Context(), c.Query("url"))
	if err != nil {
		var remote *proxy.RemoteError
		switch {
		case errors.Is(err, proxy.ErrMissingURL):
			response.Error(c, http.StatusBadRequest, "PDF URL is required")
		case errors.Is(err, proxy.ErrDomainNotAllowed):
			response.Error(c, http.StatusForbidden, "Invalid URL or domain not allowed")
		case errors.Is(err, proxy.ErrNotPDF):
			response.Error(c, http.StatusBadRequest, "Retrieved content is not a PDF")
		case errors.Is(err, proxy.ErrTimeout):
			response.Error(c, http.StatusGatewayTimeout, "Request timed out")
		case errors.As(err, &remote):
			response.Error(c, remote.Status, "Remote server returned "+strconv.Itoa(remote.Status))
		default:
			logError(c, err)
			response.Error(c, http.StatusInternalServerError, "Failed to fetch PDF")
		}
		return
	}
	defer rc.Close()
	c.DataFromReader(http.StatusOK, -1, "application/pdf", rc, map[string]string{
		"Content-Disposition":    `inline; filename="paper.pdf"`,
		"Cache-Control":          "public, max-age=3600",
		"X-Content-Type-Options": "nosniff",
	})
}
