package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type ChatterEntry struct {
	Name    string
	Chatter IChatter
}

type EmbedderEntry struct {
	Name     string
	Embedder IEmbedder
}

// NewGroupChatter returns a chatter that walks items in order until one answers.
// A single entry is returned unwrapped.
func NewGroupChatter(items []ChatterEntry) IChatter {
	live := make([]ChatterEntry, 0, len(items))
	for _, item := range items {
		if item.Chatter != nil {
			live = append(live, item)
		}
	}
	switch len(live) {
	case 0:
		return nil
	case 1:
		return live[0].Chatter
	}
	return &fallbackChatter{items: live}
}

type fallbackChatter struct {
	items []ChatterEntry
}

func (g *fallbackChatter) Chat(ctx context.Context, req *ChatRequest) (string, error) {
	logger := logutil.GetLogger(ctx)
	var errs []error
	for _, item := range g.items {
		res, err := item.Chatter.Chat(ctx, req)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		errs = append(errs, fmt.Errorf("%s: %w", item.Name, err))
		if errors.Is(err, ErrUnavailable) {
			logger.Debug("chat backend not configured, skipped", zap.String("backend", item.Name))
			continue
		}
		logger.Warn("chat backend failed, trying next", zap.String("backend", item.Name), zap.Error(err))
	}
	return "", errors.Join(errs...)
}

// NewGroupEmbedder is the embedding counterpart of NewGroupChatter. All entries
// should produce vectors of the same dimension as the search index.
func NewGroupEmbedder(items []EmbedderEntry) IEmbedder {
	live := make([]EmbedderEntry, 0, len(items))
	for _, item := range items {
		if item.Embedder != nil {
			live = append(live, item)
		}
	}
	switch len(live) {
	case 0:
		return nil
	case 1:
		return live[0].Embedder
	}
	return &fallbackEmbedder{items: live}
}

type fallbackEmbedder struct {
	items []EmbedderEntry
}

func (g *fallbackEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var errs []error
	for _, item := range g.items {
		vec, err := item.Embedder.Embed(ctx, text)
		if err == nil {
			return vec, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		errs = append(errs, fmt.Errorf("%s: %w", item.Name, err))
		logutil.GetLogger(ctx).Warn("embed backend failed, trying next", zap.String("backend", item.Name), zap.Error(err))
	}
	return nil, errors.Join(errs...)
}

func (g *fallbackEmbedder) ModelName() string {
	names := make([]string, 0, len(g.items))
	for _, item := range g.items {
		names = append(names, item.Embedder.ModelName())
	}
	return strings.Join(names, "|")
}
