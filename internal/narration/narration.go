package narration

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// Clip is one synthesized line. Path is empty when there is no audio.
type Clip struct {
	Path    string
	Seconds float64
}

type Narrator interface {
	Name() string
	Synthesize(ctx context.Context, text, outPath string) (Clip, error)
}

type Factory func(args interface{}) (Narrator, error)

var registry = map[string]Factory{}

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registry[key] = factory
}

func New(name string, args interface{}) (Narrator, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	factory := registry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported narrator: %s", name)
	}
	return factory(args)
}

// NewOrSilent never fails: a backend that cannot start is replaced by the
// silent narrator, and runtime synthesis failures fall back to it as well.
func NewOrSilent(ctx context.Context, name string, args interface{}) Narrator {
	n, err := New(name, args)
	if err != nil {
		logutil.GetLogger(ctx).Warn("narration backend unavailable, continuing without audio",
			zap.String("backend", name), zap.Error(err))
		return Silent()
	}
	if n.Name() == silentName {
		return n
	}
	return &fallbackNarrator{primary: n, secondary: Silent()}
}

type fallbackNarrator struct {
	primary   Narrator
	secondary Narrator
}

func (f *fallbackNarrator) Name() string {
	return f.primary.Name()
}

func (f *fallbackNarrator) Synthesize(ctx context.Context, text, outPath string) (Clip, error) {
	clip, err := f.primary.Synthesize(ctx, text, outPath)
	if err == nil {
		return clip, nil
	}
	logutil.GetLogger(ctx).Warn("narration failed, using silent timing",
		zap.String("backend", f.primary.Name()), zap.Error(err))
	return f.secondary.Synthesize(ctx, text, outPath)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode narration config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode narration config: %w", err)
	}
	return nil
}
