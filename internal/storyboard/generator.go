package storyboard

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/papercast/internal/ai"
	appErr "github.com/xxxsen/papercast/internal/pkg/errors"
)

// PaperSummarizer answers a question about a paper; the storyboard uses it for context.
type PaperSummarizer interface {
	Summarize(ctx context.Context, pdfURL, title, question string) (string, error)
}

type Request struct {
	Topic           string
	PDFURL          string
	PaperTitle      string
	UserDescription string
}

type Generator struct {
	chatter    ai.IChatter
	summarizer PaperSummarizer
}

// NewGenerator builds a generator. summarizer may be nil, in which case
// paper context is never added.
func NewGenerator(chatter ai.IChatter, summarizer PaperSummarizer) *Generator {
	return &Generator{chatter: chatter, summarizer: summarizer}
}

func (g *Generator) Generate(ctx context.Context, req Request) (*Storyboard, error) {
	if strings.TrimSpace(req.Topic) == "" {
		return nil, fmt.Errorf("%w: topic is required", appErr.ErrInvalid)
	}
	logger := logutil.GetLogger(ctx).With(zap.String("topic", req.Topic))
	paperContext := g.paperContext(ctx, req)
	custom := ""
	if strings.TrimSpace(req.UserDescription) != "" {
		custom = customInstructionBlock(req.UserDescription)
	}
	raw, err := g.chatter.Chat(ctx, &ai.ChatRequest{
		User:        buildPrompt(req.Topic, paperContext, custom),
		Temperature: 0.1,
	})
	if err != nil {
		logger.Error("storyboard completion failed", zap.Error(err))
		return nil, fmt.Errorf("%w: storyboard completion: %v", appErr.ErrUpstream, err)
	}
	sb, err := Clean(raw)
	if err != nil {
		logger.Error("storyboard parse failed", zap.Error(err), zap.Int("raw_len", len(raw)))
		return nil, err
	}
	logger.Info("storyboard generated", zap.Int("scenes", len(sb.Scenes)), zap.Strings("types", sb.Types()))
	return sb, nil
}

func (g *Generator) paperContext(ctx context.Context, req Request) string {
	if g.summarizer == nil || req.PDFURL == "" || req.PaperTitle == "" {
		return ""
	}
	summary, err := g.summarizer.Summarize(ctx, req.PDFURL, req.PaperTitle, summaryQuestion(req.Topic))
	if err != nil {
		logutil.GetLogger(ctx).Warn("paper context unavailable, continuing without it",
			zap.String("pdf_url", req.PDFURL), zap.Error(err))
		return ""
	}
	return paperContextBlock(req.PaperTitle, summary)
}
