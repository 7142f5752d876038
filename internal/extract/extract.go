package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Extractor turns a publicly reachable PDF URL into plain text.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, pdfURL string) (string, error)
}

type Factory func(args interface{}) (Extractor, error)

var registry = map[string]Factory{}

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registry[key] = factory
}

func New(name string, args interface{}) (Extractor, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	factory := registry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported extractor: %s", name)
	}
	return factory(args)
}

func joinParagraphs(paragraphs []string) string {
	parts := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, " ")
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode extractor config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode extractor config: %w", err)
	}
	return nil
}
