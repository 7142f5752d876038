package markup

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStripTags(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"<b>Bold</b> and <i>it</i>", "Bold and it"},
		{"<span foreground='#FF5555'>var</span> = 1", "var = 1"},
		{"a < b", "a < b"},
		{"fish &amp; chips", "fish & chips"},
		{"x <y", "x <y"},
	}
	for _, c := range cases {
		require.Equal(t, c.want, StripTags(c.in), c.in)
	}
}

func TestPlainText(t *testing.T) {
	require.Equal(t, "Bold and italic", PlainText("**Bold** and *italic*"))
	require.Equal(t, "see docs", PlainText("see [docs](https://example.com)"))
	require.Equal(t, "use x := 1", PlainText("use `x := 1`"))
	require.Equal(t, "", PlainText("   "))
	require.Equal(t, "first\nsecond", PlainText("first\n\nsecond"))
}

func TestClean(t *testing.T) {
	require.Equal(t, "Understanding attention", Clean("<b>Understanding</b> **attention**"))
}

func TestWrap(t *testing.T) {
	require.Equal(t, []string{"the quick", "brown fox", "jumps"}, Wrap("the quick brown fox jumps", 10))
	require.Equal(t, []string{"supercalifragilistic", "x"}, Wrap("supercalifragilistic x", 5))
	require.Nil(t, Wrap("   ", 10))
}

func TestChunk(t *testing.T) {
	require.Equal(t, []string{"a b c", "d e"}, Chunk("a b c d e", 3))
}
