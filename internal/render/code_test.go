package render

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatCode(t *testing.T) {
	in := `pip install torch\nimport torch\nx = 1   \n# make a tensor\nt = torch.ones(3)\nstart = 0`
	want := "pip install torch\n\nimport torch\nx = 1\n\n# make a tensor\nt = torch.ones(3)\nstart = 0"
	require.Equal(t, want, formatCode(in))
}

func TestFormatCodeCommentBlocks(t *testing.T) {
	in := "# one\n# two\n\n# three\ncode()"
	require.Equal(t, in, formatCode(in))
}

func TestClampRange(t *testing.T) {
	s, e := clampRange(2, 9, 4)
	require.Equal(t, 2, s)
	require.Equal(t, 4, e)
	s, e = clampRange(0, 0, 4)
	require.Equal(t, 1, s)
	require.Equal(t, 1, e)
	s, e = clampRange(7, 3, 4)
	require.Equal(t, 4, s)
	require.Equal(t, 4, e)
}
