package searchindex

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xxxsen/papercast/internal/model"
)

// Index stores paper documents and answers hybrid (lexical + vector) queries over their content.
type Index interface {
	Name() string
	Get(ctx context.Context, id string) (*model.PaperDocument, error)
	Upload(ctx context.Context, docs ...*model.PaperDocument) error
	HybridSearch(ctx context.Context, text string, vector []float32, k int, top int) ([]model.SearchHit, error)
}

type Factory func(ctx context.Context, args interface{}) (Index, error)

var registry = map[string]Factory{}

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registry[key] = factory
}

func New(ctx context.Context, name string, args interface{}) (Index, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	factory := registry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported search index: %s", name)
	}
	return factory(ctx, args)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode index config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode index config: %w", err)
	}
	return nil
}
