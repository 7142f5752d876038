package markup

import (
	"bytes"
	"errors"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"golang.org/x/net/html"
)

var mdParser = goldmark.New().Parser()

// StripTags drops Pango/HTML style tags and keeps their text content.
// An unterminated tag at the end of the input is kept verbatim.
func StripTags(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))
	var sb strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				sb.Write(z.Raw())
			}
			return sb.String()
		case html.TextToken:
			sb.Write(z.Text())
		}
	}
}

// PlainText flattens Markdown emphasis, code spans and links into drawable text.
// Blocks are separated by newlines.
func PlainText(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	src := []byte(s)
	doc := mdParser.Parse(text.NewReader(src))
	var buf bytes.Buffer
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock && n.NextSibling() != nil && buf.Len() > 0 {
				buf.WriteByte('\n')
			}
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Text:
			buf.Write(node.Segment.Value(src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(node.Value)
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				buf.Write(seg.Value(src))
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(buf.String())
}

// Clean is StripTags followed by PlainText, the form every drawn string goes through.
func Clean(s string) string {
	return PlainText(StripTags(s))
}

// Wrap greedily breaks s into lines of at most width characters; longer words get their own line.
func Wrap(s string, width int) []string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return nil
	}
	if width <= 0 {
		return []string{strings.Join(words, " ")}
	}
	var lines []string
	current := ""
	for _, w := range words {
		switch {
		case current == "":
			current = w
		case len([]rune(current))+len([]rune(w))+1 <= width:
			current += " " + w
		default:
			lines = append(lines, current)
			current = w
		}
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}

// Chunk groups words n at a time, one group per line.
func Chunk(s string, n int) []string {
	words := strings.Fields(s)
	if n <= 0 {
		n = 1
	}
	var lines []string
	for i := 0; i < len(words); i += n {
		end := i + n
		if end > len(words) {
			end = len(words)
		}
		lines = append(lines, strings.Join(words[i:end], " "))
	}
	return lines
}
