package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/papercast/internal/middleware"
)

type PaperDeps struct {
	Papers     *PaperHandler
	Proxy      *ProxyHandler
	Gateway    *GatewayHandler
	ProxyRPS   float64
	ProxyBurst int
}

// RegisterPaperRoutes mounts the paper API under /api. The proxy routes and,
// when a gateway is set, the video routes share one per-client rate limiter.
func RegisterPaperRoutes(root *gin.RouterGroup, deps PaperDeps) {
	limit := middleware.RateLimit(deps.ProxyRPS, deps.ProxyBurst)

	api := root.Group("/api")
	api.POST("/chat", deps.Papers.Chat)
	api.POST("/generate-questions", deps.Papers.GenerateQuestions)
	api.GET("/questions/:doc_id", deps.Papers.Questions)
	api.GET("/health", deps.Papers.Health)

	limited := api.Group("", limit)
	limited.GET("/search", deps.Proxy.Search)
	limited.GET("/arxiv/papers/byId", deps.Proxy.PaperByID)
	limited.GET("/getproxypdf", deps.Proxy.PDF)

	if deps.Gateway == nil {
		return
	}
	gateway := root.Group("", limit)
	gateway.POST("/generate_video", deps.Gateway.Generate)
	gateway.GET("/media/videos/:quality/:file", deps.Gateway.Media)
}

func RegisterVideoRoutes(root *gin.RouterGroup, videos *VideoHandler) {
	root.POST("/generate_video", videos.Generate)
	root.GET("/media/videos/1080p60/:file", videos.Media)
	root.GET("/health", videos.Health)
}
