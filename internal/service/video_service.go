package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/papercast/internal/filestore"
	appErr "github.com/xxxsen/papercast/internal/pkg/errors"
	"github.com/xxxsen/papercast/internal/render"
	"github.com/xxxsen/papercast/internal/storyboard"
)

const videoExt = ".mp4"

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

type StoryboardGenerator interface {
	Generate(ctx context.Context, req storyboard.Request) (*storyboard.Storyboard, error)
}

type VideoRenderer interface {
	Render(ctx context.Context, sb *storyboard.Storyboard, workDir, outPath string) (*render.Report, error)
}

type VideoRequest struct {
	Topic           string
	OutputName      string
	PDFURL          string
	PaperTitle      string
	UserDescription string
	// BaseURL is the address the caller reached the service on.
	BaseURL string
}

type VideoResult struct {
	OutputName string
	VideoURL   string
	Report     *render.Report
}

type VideoService struct {
	generator  StoryboardGenerator
	renderer   VideoRenderer
	store      filestore.Store
	scratchDir string
	now        func() time.Time
}

func NewVideoService(generator StoryboardGenerator, renderer VideoRenderer, store filestore.Store, scratchDir string) *VideoService {
	return &VideoService{
		generator:  generator,
		renderer:   renderer,
		store:      store,
		scratchDir: scratchDir,
		now:        time.Now,
	}
}

// OutputName turns a requested name into a safe file stem, falling back to
// video_<unix seconds>.
func OutputName(requested string, now time.Time) string {
	name := strings.TrimSuffix(strings.TrimSpace(requested), videoExt)
	name = strings.Trim(unsafeName.ReplaceAllString(name, "_"), "._")
	if name == "" {
		return fmt.Sprintf("video_%d", now.Unix())
	}
	return name
}

func (s *VideoService) Create(ctx context.Context, req VideoRequest) (*VideoResult, error) {
	if strings.TrimSpace(req.Topic) == "" {
		return nil, fmt.Errorf("%w: topic is required", appErr.ErrInvalid)
	}
	name := OutputName(req.OutputName, s.now())
	key := name + videoExt
	logger := logutil.GetLogger(ctx).With(zap.String("topic", req.Topic), zap.String("output_name", name))

	if err := s.store.Delete(ctx, key); err != nil {
		return nil, fmt.Errorf("clear previous video: %w", err)
	}
	nameDir := filepath.Join(s.scratchDir, name)
	if err := os.RemoveAll(nameDir); err != nil {
		return nil, fmt.Errorf("clear scratch: %w", err)
	}
	workDir := filepath.Join(nameDir, uuid.NewString())

	sb, err := s.generator.Generate(ctx, storyboard.Request{
		Topic:           req.Topic,
		PDFURL:          req.PDFURL,
		PaperTitle:      req.PaperTitle,
		UserDescription: req.UserDescription,
	})
	if err != nil {
		return nil, err
	}
	sb.OutputName = name

	outPath := filepath.Join(workDir, key)
	report, err := s.renderer.Render(ctx, sb, workDir, outPath)
	if err != nil {
		logger.Error("render video failed", zap.Error(err), zap.String("work_dir", workDir))
		return nil, fmt.Errorf("render video: %w", err)
	}
	if report.Rendered() == 0 {
		logger.Warn("no scene rendered, video only has the closing shot", zap.Int("scenes", len(report.Scenes)))
	}
	if err := s.publish(ctx, key, outPath); err != nil {
		return nil, err
	}
	if err := os.RemoveAll(nameDir); err != nil {
		logger.Warn("remove scratch failed", zap.Error(err))
	}
	url := s.store.URL(key, req.BaseURL)
	logger.Info("video published", zap.String("url", url), zap.Int("rendered", report.Rendered()),
		zap.Float64("seconds", report.Seconds))
	return &VideoResult{OutputName: name, VideoURL: url, Report: report}, nil
}

func (s *VideoService) publish(ctx context.Context, key, path string) error {
	if err := filestore.PublishFile(ctx, s.store, key, path); err != nil {
		return fmt.Errorf("publish video: %w", err)
	}
	return nil
}
