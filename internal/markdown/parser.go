// Package markdown renders the user-written body of a position.
package markdown

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
)

// SummaryLength caps the plain-text excerpt shown in position listings.
const SummaryLength = 160

// Renderer turns markdown into safe HTML. It never enables WithUnsafe, so
// raw HTML in the source is dropped.
type Renderer struct {
	md goldmark.Markdown
}

func NewRenderer() *Renderer {
	return &Renderer{md: goldmark.New(
		goldmark.WithExtensions(extension.Strikethrough, extension.Linkify, extension.Typographer),
		goldmark.WithRendererOptions(goldmarkhtml.WithHardWraps(), goldmarkhtml.WithXHTML()),
	)}
}

// Rendered is a position body ready for display.
type Rendered struct {
	HTML    string
	Summary string
}

func (r *Renderer) Render(content string) (Rendered, error) {
	source := []byte(content)
	doc := r.md.Parser().Parse(text.NewReader(source))

	var buf bytes.Buffer
	err := r.md.Renderer().Render(&buf, source, doc)
	if err != nil {
		return Rendered{}, err
	}

	return Rendered{HTML: buf.String(), Summary: summarize(doc, source)}, nil
}

// summarize returns the text of the first non-empty block, cut at a word
// boundary when it runs past SummaryLength.
func summarize(doc ast.Node, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock && b.Len() > 0 {
				return ast.WalkStop, nil
			}
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Text:
			b.Write(node.Segment.Value(source))
			if node.SoftLineBreak() || node.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(node.Value)
		}
		return ast.WalkContinue, nil
	})

	summary := strings.Join(strings.Fields(b.String()), " ")
	if utf8.RuneCountInString(summary) <= SummaryLength {
		return summary
	}

	cut := string([]rune(summary)[:SummaryLength])
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return cut + "…"
}
