package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubChatter struct {
	out string
	err error
	n   int
}

func (s *stubChatter) Chat(ctx context.Context, req *ChatRequest) (string, error) {
	s.n++
	return s.out, s.err
}

type stubEmbedder struct {
	vec   []float32
	err   error
	model string
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return s.vec, s.err
}

func (s *stubEmbedder) ModelName() string {
	return s.model
}

func TestGroupChatterSingleEntryUnwrapped(t *testing.T) {
	only := &stubChatter{out: "ok"}
	require.Same(t, only, NewGroupChatter([]ChatterEntry{{Name: "a", Chatter: only}, {Name: "b"}}))
	require.Nil(t, NewGroupChatter(nil))
}

func TestGroupChatterJoinsErrors(t *testing.T) {
	g := NewGroupChatter([]ChatterEntry{
		{Name: "openrouter", Chatter: &stubChatter{err: ErrUnavailable}},
		{Name: "openai", Chatter: &stubChatter{err: errors.New("quota")}},
	})
	_, err := g.Chat(context.Background(), &ChatRequest{User: "q"})
	require.ErrorIs(t, err, ErrUnavailable)
	require.ErrorContains(t, err, "openai: quota")
}

func TestGroupChatterStopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	second := &stubChatter{out: "late"}
	g := NewGroupChatter([]ChatterEntry{
		{Name: "a", Chatter: &stubChatter{err: context.Canceled}},
		{Name: "b", Chatter: second},
	})
	_, err := g.Chat(ctx, &ChatRequest{User: "q"})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 0, second.n)
}

func TestGroupEmbedderFallsBack(t *testing.T) {
	g := NewGroupEmbedder([]EmbedderEntry{
		{Name: "azure_openai", Embedder: &stubEmbedder{err: errors.New("down"), model: "large"}},
		{Name: "gemini", Embedder: &stubEmbedder{vec: []float32{1, 2}, model: "text-embedding-004"}},
	})
	vec, err := g.Embed(context.Background(), "x")
	require.NoError(t, err)
	require.Equal(t, []float32{1, 2}, vec)
	require.Equal(t, "large|text-embedding-004", g.ModelName())
}

func TestGroupChatterFallsBack(t *testing.T) {
	first := &stubChatter{err: errors.New("down")}
	second := &stubChatter{out: "ok"}
	g := NewGroupChatter([]ChatterEntry{{Name: "a", Chatter: first}, {Name: "b", Chatter: second}})
	out, err := g.Chat(context.Background(), &ChatRequest{User: "q"})
	require.NoError(t, err)
	require.Equal(t, "ok", out)
	require.Equal(t, 1, first.n)
	require.Equal(t, 1, second.n)
}
