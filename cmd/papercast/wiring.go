package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/papercast/internal/ai"
	"github.com/xxxsen/papercast/internal/config"
	"github.com/xxxsen/papercast/internal/embedcache"
	"github.com/xxxsen/papercast/internal/extract"
	"github.com/xxxsen/papercast/internal/filestore"
	"github.com/xxxsen/papercast/internal/handler"
	"github.com/xxxsen/papercast/internal/job"
	"github.com/xxxsen/papercast/internal/media"
	"github.com/xxxsen/papercast/internal/middleware"
	"github.com/xxxsen/papercast/internal/narration"
	"github.com/xxxsen/papercast/internal/proxy"
	"github.com/xxxsen/papercast/internal/render"
	"github.com/xxxsen/papercast/internal/schedule"
	"github.com/xxxsen/papercast/internal/searchindex"
	"github.com/xxxsen/papercast/internal/service"
	"github.com/xxxsen/papercast/internal/storyboard"
)

func providerArgs(cfg *config.Config) interface{} {
	if cfg.AI.Data != nil {
		return cfg.AI.Data
	}
	return cfg.AI
}

func aiTimeout(cfg *config.Config) time.Duration {
	return time.Duration(cfg.AI.Timeout) * time.Second
}

type modelPick func(b config.AIBackend) string

func backends(cfg *config.Config) []config.AIBackend {
	primary := config.AIBackend{
		Provider:        cfg.AI.Provider,
		ChatModel:       cfg.AI.ChatModel,
		EmbedModel:      cfg.AI.EmbedModel,
		StoryboardModel: cfg.AI.StoryboardModel,
		Data:            providerArgs(cfg),
	}
	return append([]config.AIBackend{primary}, cfg.AI.Fallbacks...)
}

// buildChatter chains the primary provider with the configured fallbacks.
func buildChatter(cfg *config.Config, pick modelPick) (ai.IChatter, error) {
	var entries []ai.ChatterEntry
	for _, b := range backends(cfg) {
		p, err := ai.NewProvider(b.Provider, b.Data)
		if err != nil {
			return nil, fmt.Errorf("init ai provider %s: %w", b.Provider, err)
		}
		entries = append(entries, ai.ChatterEntry{Name: b.Provider, Chatter: ai.NewChatter(p, pick(b), aiTimeout(cfg))})
	}
	return ai.NewGroupChatter(entries), nil
}

// buildEmbedder skips fallbacks whose provider cannot embed (openrouter).
func buildEmbedder(cfg *config.Config) (ai.IEmbedder, error) {
	var entries []ai.EmbedderEntry
	for i, b := range backends(cfg) {
		p, err := ai.NewEmbedProvider(b.Provider, b.Data)
		if err != nil {
			if i == 0 {
				return nil, fmt.Errorf("init embed provider %s: %w", b.Provider, err)
			}
			continue
		}
		entries = append(entries, ai.EmbedderEntry{Name: b.Provider, Embedder: ai.NewEmbedder(p, b.EmbedModel, aiTimeout(cfg))})
	}
	return ai.NewGroupEmbedder(entries), nil
}

func buildPaperService(ctx context.Context, cfg *config.Config) (*service.PaperService, error) {
	chat, err := buildChatter(cfg, func(b config.AIBackend) string { return b.ChatModel })
	if err != nil {
		return nil, err
	}
	baseEmbedder, err := buildEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	embedder, err := embedcache.New(baseEmbedder, cfg.Paper.EmbedCacheSize)
	if err != nil {
		return nil, fmt.Errorf("init embedding cache: %w", err)
	}
	extractor, err := extract.New(cfg.Paper.Extractor.Type, cfg.Paper.Extractor.Data)
	if err != nil {
		return nil, fmt.Errorf("init extractor: %w", err)
	}
	index, err := searchindex.New(ctx, cfg.Paper.Index.Type, cfg.Paper.Index.Data)
	if err != nil {
		return nil, fmt.Errorf("init search index: %w", err)
	}
	return service.NewPaperService(
		service.NewPDFValidator(nil),
		extractor,
		embedder,
		index,
		chat,
	), nil
}

func runPaper(cfg *config.Config) error {
	ctx := context.Background()
	papers, err := buildPaperService(ctx, cfg)
	if err != nil {
		return err
	}
	deps := handler.PaperDeps{
		Papers:     handler.NewPaperHandler(papers),
		Proxy:      handler.NewProxyHandler(proxy.NewArxivClient("", nil), proxy.NewPDFProxy(nil, nil)),
		ProxyRPS:   cfg.Paper.ProxyRPS,
		ProxyBurst: cfg.Paper.ProxyBurst,
	}
	if cfg.Paper.VideoServiceURL != "" {
		client := &http.Client{Timeout: time.Duration(cfg.Paper.VideoTimeout) * time.Second}
		videos, err := proxy.NewVideoProxy(cfg.Paper.VideoServiceURL, client)
		if err != nil {
			return fmt.Errorf("init video gateway: %w", err)
		}
		deps.Gateway = handler.NewGatewayHandler(videos)
	}
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Paper.Port)
	engine, err := webapi.NewEngine(
		"/",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterPaperRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(commonMiddlewares()...),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	return serve("paper", addr, engine, nil)
}

func runVideo(cfg *config.Config) error {
	ctx := context.Background()
	logger := logutil.GetLogger(ctx)
	chat, err := buildChatter(cfg, func(b config.AIBackend) string { return b.StoryboardModel })
	if err != nil {
		return err
	}
	var summarizer storyboard.PaperSummarizer
	if cfg.Video.PaperContext {
		papers, err := buildPaperService(ctx, cfg)
		if err != nil {
			logger.Warn("paper context disabled", zap.Error(err))
		} else {
			summarizer = papers
		}
	}
	generator := storyboard.NewGenerator(chat, summarizer)
	narrator := narration.NewOrSilent(ctx, cfg.Video.Narration.Type, cfg.Video.Narration.Data)
	renderer, err := render.New(narrator, media.NewWikiClient(), render.NewFFmpegEncoder(cfg.Video.FFmpegPath, render.DefaultFPS),
		render.Options{FontPath: cfg.Video.FontPath, ClosingText: cfg.Video.ClosingText})
	if err != nil {
		return fmt.Errorf("init renderer: %w", err)
	}
	store, err := filestore.New(cfg.Video.FileStore)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}
	videos := service.NewVideoService(generator, renderer, store, cfg.Video.ScratchDir)

	scheduler := schedule.NewCronScheduler()
	cleanup := job.NewScratchCleanupJob(cfg.Video.ScratchDir, time.Duration(cfg.Video.ScratchMaxAgeHours)*time.Hour)
	if err := scheduler.AddJob(cleanup, cfg.Video.CleanupSpec); err != nil {
		return fmt.Errorf("schedule scratch cleanup: %w", err)
	}

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Video.Port)
	engine, err := webapi.NewEngine(
		"/",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterVideoRoutes(group, handler.NewVideoHandler(videos, store))
		}),
		webapi.WithExtraMiddlewares(commonMiddlewares()...),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	return serve("video", addr, engine, scheduler)
}

func commonMiddlewares() []gin.HandlerFunc {
	return []gin.HandlerFunc{
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.AccessLog(),
		middleware.CORS(nil),
		middleware.BodyLimit(middleware.DefaultBodyLimit),
		middleware.NotFound(),
		gzip.Gzip(gzip.DefaultCompression,
			gzip.WithExcludedExtensions([]string{".mp4", ".pdf"}),
			gzip.WithExcludedPaths([]string{"/api/getproxypdf", "/media/"}),
		),
	}
}

type runner interface {
	Run() error
}

func serve(name, addr string, engine runner, scheduler *schedule.CronScheduler) error {
	logger := logutil.GetLogger(context.Background()).With(zap.String("service", name))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if scheduler != nil {
		scheduler.Start(ctx)
		defer scheduler.Stop()
	}
	logger.Info("http server listening", zap.String("addr", addr))
	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", zap.Error(err))
		}
	}()
	<-ctx.Done()
	logger.Info("server stopping...")
	return nil
}
