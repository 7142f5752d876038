package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/papercast/internal/ai"
	"github.com/xxxsen/papercast/internal/pkg/errors"
	"github.com/xxxsen/papercast/internal/pkg/textutil"
	"go.uber.org/zap"
)

const (
	DefaultSize  = 100
	MaxInputChar = 4000
)

// Cache memoizes embeddings per exact input string for the life of the process.
type Cache struct {
	next  ai.IEmbedder
	cache *lru.Cache[string, []float32]
}

func New(next ai.IEmbedder, size int) (*Cache, error) {
	if next == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if size <= 0 {
		size = DefaultSize
	}
	c, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &Cache{next: next, cache: c}, nil
}

// Embed never caches a failure; callers get a nil vector and ErrEmbeddingUnavailable instead.
func (c *Cache) Embed(ctx context.Context, text string) ([]float32, error) {
	key := buildCacheKey(c.next.ModelName(), text)
	if cached, ok := c.cache.Get(key); ok {
		logutil.GetLogger(ctx).Debug("embedding cache hit", zap.Int("len", len(text)))
		return cloneEmbedding(cached), nil
	}
	res, err := c.next.Embed(ctx, textutil.Truncate(text, MaxInputChar))
	if err != nil {
		logutil.GetLogger(ctx).Error("embedding failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", errors.ErrEmbeddingUnavailable, err)
	}
	if len(res) == 0 {
		return nil, errors.ErrEmbeddingUnavailable
	}
	c.cache.Add(key, cloneEmbedding(res))
	return res, nil
}

func (c *Cache) ModelName() string {
	return c.next.ModelName()
}

func (c *Cache) Len() int {
	return c.cache.Len()
}

func buildCacheKey(modelName, text string) string {
	modelName = strings.TrimSpace(modelName)
	if modelName == "" {
		modelName = "unknown"
	}
	hash := sha256.Sum256([]byte(text))
	return "embed:" + modelName + ":" + hex.EncodeToString(hash[:])
}

func cloneEmbedding(values []float32) []float32 {
	if len(values) == 0 {
		return nil
	}
	clone := make([]float32, len(values))
	copy(clone, values)
	return clone
}
