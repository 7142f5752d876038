package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/papercast/internal/markup"
	"github.com/xxxsen/papercast/internal/media"
	"github.com/xxxsen/papercast/internal/narration"
	"github.com/xxxsen/papercast/internal/storyboard"
)

const (
	DefaultWidth       = 1920
	DefaultHeight      = 1080
	DefaultFPS         = 30
	DefaultTransition  = "Moving on."
	DefaultClosingText = "Thank you for watching! You can generate other tutorial videos with our platform."
	transitionPause    = 0.5
)

type Status string

const (
	StatusRendered Status = "rendered"
	StatusSkipped  Status = "skipped"
	StatusFailed   Status = "failed"
)

type SceneResult struct {
	Index        int
	Type         string
	Status       Status
	Reason       string
	Shots        int
	Placeholders int
}

type Report struct {
	Scenes  []SceneResult
	Shots   int
	Seconds float64
}

// Rendered counts scenes that produced output.
func (r *Report) Rendered() int {
	n := 0
	for _, s := range r.Scenes {
		if s.Status == StatusRendered {
			n++
		}
	}
	return n
}

// Shot is one still frame held on screen for Seconds, optionally with narration audio.
type Shot struct {
	Frame   string
	Audio   string
	Seconds float64
}

type Options struct {
	Width       int
	Height      int
	FPS         int
	FontPath    string
	ClosingText string
}

type Renderer struct {
	narrator narration.Narrator
	images   media.ImageFetcher
	encoder  Encoder
	fonts    *fontSet
	opts     Options
}

func New(narrator narration.Narrator, images media.ImageFetcher, encoder Encoder, opts Options) (*Renderer, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = DefaultWidth, DefaultHeight
	}
	if opts.FPS <= 0 {
		opts.FPS = DefaultFPS
	}
	if opts.ClosingText == "" {
		opts.ClosingText = DefaultClosingText
	}
	fonts, err := loadFonts(opts.FontPath)
	if err != nil {
		return nil, err
	}
	if narrator == nil {
		narrator = narration.Silent()
	}
	return &Renderer{
		narrator: narrator,
		images:   images,
		encoder:  encoder,
		fonts:    fonts,
		opts:     opts,
	}, nil
}

var errSkip = errors.New("scene skipped")

// Render draws every scene of sb into workDir and encodes the result to outPath.
// A scene that fails is recorded in the report and the rest still render.
func (r *Renderer) Render(ctx context.Context, sb *storyboard.Storyboard, workDir, outPath string) (*Report, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("output", outPath))
	for _, sub := range []string{"frames", "audio", "images"} {
		if err := os.MkdirAll(filepath.Join(workDir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("prepare work dir: %w", err)
		}
	}
	run := &sceneRun{
		ctx:      ctx,
		renderer: r,
		workDir:  workDir,
		logger:   logger,
	}
	report := &Report{}
	for i, scene := range sb.Scenes {
		res := run.renderScene(i, scene)
		switch res.Status {
		case StatusSkipped:
			logger.Warn("scene skipped", zap.Int("index", i), zap.String("type", res.Type), zap.String("reason", res.Reason))
		case StatusFailed:
			logger.Error("scene failed", zap.Int("index", i), zap.String("type", res.Type), zap.String("reason", res.Reason))
		default:
			logger.Debug("scene rendered", zap.Int("index", i), zap.String("type", res.Type), zap.Int("shots", res.Shots))
		}
		report.Scenes = append(report.Scenes, res)
		if i < len(sb.Scenes)-1 {
			run.transition(scene.Transition())
		}
	}
	run.closing()
	if err := ctx.Err(); err != nil {
		return report, err
	}
	report.Shots = len(run.shots)
	for _, s := range run.shots {
		report.Seconds += s.Seconds
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return report, fmt.Errorf("prepare output dir: %w", err)
	}
	if err := r.encoder.Encode(ctx, run.shots, sb.BackgroundMusic, workDir, outPath); err != nil {
		return report, fmt.Errorf("encode video: %w", err)
	}
	logger.Info("video rendered", zap.Int("scenes", len(report.Scenes)), zap.Int("rendered", report.Rendered()),
		zap.Int("shots", report.Shots), zap.Float64("seconds", report.Seconds))
	return report, nil
}

type sceneRun struct {
	ctx          context.Context
	renderer     *Renderer
	workDir      string
	logger       *zap.Logger
	shots        []Shot
	seq          int
	placeholders int
}

func (s *sceneRun) renderScene(i int, scene storyboard.Scene) (res SceneResult) {
	res = SceneResult{Index: i, Type: scene.Type(), Status: StatusRendered}
	mark := len(s.shots)
	s.placeholders = 0
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("scene panicked", zap.Int("index", i), zap.Any("panic", p), zap.ByteString("stack", debug.Stack()))
			s.shots = s.shots[:mark]
			res.Status = StatusFailed
			res.Reason = fmt.Sprint(p)
		}
		res.Shots = len(s.shots) - mark
		res.Placeholders = s.placeholders
	}()
	err := scene.Accept(s)
	switch {
	case err == nil:
	case errors.Is(err, errSkip):
		s.shots = s.shots[:mark]
		res.Status = StatusSkipped
		res.Reason = err.Error()
	default:
		s.shots = s.shots[:mark]
		res.Status = StatusFailed
		res.Reason = err.Error()
	}
	return res
}

func (s *sceneRun) next() int {
	s.seq++
	return s.seq
}

// narrate speaks text and returns the clip; silence is used when text is empty.
func (s *sceneRun) narrate(text string) narration.Clip {
	spoken := markup.StripTags(text)
	if spoken == "" {
		return narration.Clip{}
	}
	out := filepath.Join(s.workDir, "audio", fmt.Sprintf("%05d.wav", s.next()))
	clip, err := s.renderer.narrator.Synthesize(s.ctx, spoken, out)
	if err != nil {
		s.logger.Warn("narration failed", zap.Error(err))
		return narration.Clip{Seconds: narration.EstimateSeconds(spoken)}
	}
	return clip
}

// shot draws a frame and holds it for the longer of the narration and minSeconds.
func (s *sceneRun) shot(voiceover string, minSeconds float64, draw func(c *canvas)) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}
	c := s.renderer.newCanvas()
	draw(c)
	frame := filepath.Join(s.workDir, "frames", fmt.Sprintf("%05d.png", s.next()))
	if err := c.save(frame); err != nil {
		return fmt.Errorf("save frame: %w", err)
	}
	clip := s.narrate(voiceover)
	s.shots = append(s.shots, Shot{
		Frame:   frame,
		Audio:   clip.Path,
		Seconds: max(clip.Seconds, minSeconds, 0.1),
	})
	return nil
}

func (s *sceneRun) transition(text string) {
	if text == "" {
		text = DefaultTransition
	}
	err := s.shot(text, transitionPause, func(c *canvas) {})
	if err != nil {
		s.logger.Warn("transition failed", zap.Error(err))
	}
}

func (s *sceneRun) closing() {
	text := s.renderer.opts.ClosingText
	err := s.shot(text, transitionPause, func(c *canvas) {
		c.paragraph(text, c.w/2, c.h/2, c.w*0.8, 40, fontRegular, colorText, alignCenter)
	})
	if err != nil {
		s.logger.Warn("closing scene failed", zap.Error(err))
	}
}

func (s *sceneRun) imageDir() string {
	return filepath.Join(s.workDir, "images")
}
