package embedcache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
	perrors "github.com/xxxsen/papercast/internal/pkg/errors"
)

type countingEmbedder struct {
	calls map[string]int
	fail  bool
	last  string
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.calls == nil {
		c.calls = map[string]int{}
	}
	c.calls[text]++
	c.last = text
	if c.fail {
		return nil, errors.New("boom")
	}
	return []float32{float32(len(text)), 1}, nil
}

func (c *countingEmbedder) ModelName() string { return "test" }

func TestCacheMemoizes(t *testing.T) {
	next := &countingEmbedder{}
	c, err := New(next, 0)
	require.NoError(t, err)

	a, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	b, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.Equal(t, 1, next.calls["hello"])

	a[0] = 99
	again, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	require.Equal(t, float32(5), again[0])
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	next := &countingEmbedder{}
	c, err := New(next, DefaultSize)
	require.NoError(t, err)
	for i := 0; i <= DefaultSize; i++ {
		_, err := c.Embed(context.Background(), fmt.Sprintf("s-%d", i))
		require.NoError(t, err)
	}
	require.Equal(t, DefaultSize, c.Len())

	_, err = c.Embed(context.Background(), "s-0")
	require.NoError(t, err)
	require.Equal(t, 2, next.calls["s-0"])

	_, err = c.Embed(context.Background(), fmt.Sprintf("s-%d", DefaultSize))
	require.NoError(t, err)
	require.Equal(t, 1, next.calls[fmt.Sprintf("s-%d", DefaultSize)])
}

func TestCacheFailureNotCached(t *testing.T) {
	next := &countingEmbedder{fail: true}
	c, err := New(next, 10)
	require.NoError(t, err)

	vec, err := c.Embed(context.Background(), "x")
	require.Nil(t, vec)
	require.True(t, errors.Is(err, perrors.ErrEmbeddingUnavailable))

	next.fail = false
	vec, err = c.Embed(context.Background(), "x")
	require.NoError(t, err)
	require.NotNil(t, vec)
	require.Equal(t, 2, next.calls["x"])
}

func TestCacheTruncatesInput(t *testing.T) {
	next := &countingEmbedder{}
	c, err := New(next, 10)
	require.NoError(t, err)
	long := make([]byte, MaxInputChar+500)
	for i := range long {
		long[i] = 'a'
	}
	_, err = c.Embed(context.Background(), string(long))
	require.NoError(t, err)
	require.Equal(t, MaxInputChar, utf8.RuneCountInString(next.last))
}
